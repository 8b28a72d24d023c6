// Package shapefile exports analysis windows as an ESRI point shapefile so the
// observations can be overlaid on the model grid in GIS tools.
package shapefile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	shp "github.com/jonas-p/go-shp"

	"github.com/couchcryptid/storm-wave-etl/internal/domain"
)

// FileName is the .shp written into the output directory; the .shx and .dbf
// companions share its base name.
const FileName = "window_points.shp"

// Attribute columns, in DBF order. DBF names are limited to ten characters.
const (
	fieldFrame = iota
	fieldTime
	fieldSensor
	fieldSWH
	fieldModel
	fieldDistance
)

var fields = []shp.Field{
	shp.StringField("FRAME", 20),
	shp.StringField("OBS_TIME", 20),
	shp.StringField("SENSOR", 16),
	shp.FloatField("SWH", 12, 4),
	shp.FloatField("MODEL_SWH", 12, 4),
	shp.FloatField("DIST_KM", 12, 3),
}

type attribute struct {
	field int
	value any
}

// Writer writes one point feature per (window, observation).
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) Name() string { return "shapefile" }

// LoadWindows writes every window point. Points paired with a grid node carry
// the model value and distance; unpaired points leave those attributes blank.
func (w *Writer) LoadWindows(ctx context.Context, a domain.Alignment) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	out, err := shp.Create(filepath.Join(w.dir, FileName), shp.POINT)
	if err != nil {
		return fmt.Errorf("create shapefile: %w", err)
	}
	defer out.Close()

	if err := out.SetFields(fields); err != nil {
		return fmt.Errorf("set shapefile fields: %w", err)
	}

	pairs := make(map[pairKey]domain.MatchedPair, len(a.Pairs))
	for _, p := range a.Pairs {
		pairs[keyOf(p.Frame, p.Point)] = p
	}

	for _, win := range a.Windows {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame := win.Frame.Timestamp.UTC().Format(time.RFC3339)
		for _, p := range win.Points() {
			row := int(out.Write(&shp.Point{X: p.Longitude, Y: p.Latitude}))
			attrs := []attribute{
				{fieldFrame, frame},
				{fieldTime, p.Timestamp.UTC().Format(time.RFC3339)},
				{fieldSensor, p.Sensor},
				{fieldSWH, p.WaveHeight},
			}
			if pair, ok := pairs[keyOf(win.Frame.Timestamp, p)]; ok {
				attrs = append(attrs, attribute{fieldModel, pair.Grid.Value}, attribute{fieldDistance, pair.DistanceKm})
			}
			for _, at := range attrs {
				if err := out.WriteAttribute(row, at.field, at.value); err != nil {
					return fmt.Errorf("write attribute %d of feature %d: %w", at.field, row, err)
				}
			}
		}
	}
	return nil
}

type pairKey struct {
	frame  int64
	obs    int64
	sensor string
	lat    float64
	lon    float64
}

func keyOf(frame time.Time, p domain.TrackPoint) pairKey {
	return pairKey{
		frame:  frame.UnixNano(),
		obs:    p.Timestamp.UnixNano(),
		sensor: p.Sensor,
		lat:    p.Latitude,
		lon:    p.Longitude,
	}
}
