// Package report renders the end-of-run summary printed to the terminal.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/couchcryptid/storm-wave-etl/internal/domain"
)

var (
	colorPrimary = lipgloss.Color("#00BFFF")
	colorMuted   = lipgloss.Color("#6C757D")
	colorWarning = lipgloss.Color("#FFD93D")
	colorBorder  = lipgloss.Color("#4A90E2")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Bold(true).
			Width(18)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	cellStyle = lipgloss.NewStyle().
			Width(10).
			Align(lipgloss.Right)

	sensorCellStyle = lipgloss.NewStyle().
			Width(8)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)
)

// Render formats the run counts, per-sensor statistics and, when alignment
// ran, the collocation comparison.
func Render(table domain.ParameterTable, alignment *domain.Alignment) string {
	sections := []string{runSection(table.Report)}
	if s := sensorSection(domain.Summarize(table.Rows)); s != "" {
		sections = append(sections, s)
	}
	if alignment != nil {
		sections = append(sections, alignmentSection(table.Report, *alignment))
	}
	return paneStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func runSection(r domain.RunReport) string {
	lines := []string{
		titleStyle.Render("Wave spectra run"),
		line("generated", r.GeneratedAt.UTC().Format(time.RFC3339)),
		line("parsed", strconv.Itoa(r.Parsed)),
		line("rows", strconv.Itoa(r.Rows)),
		line("filtered out", strconv.Itoa(r.FilteredOut)),
		line("dropped (parse)", strconv.Itoa(r.DroppedParse)),
		line("dropped (range)", strconv.Itoa(r.DroppedRange)),
	}
	if r.UndefinedRows > 0 {
		lines = append(lines, labelStyle.Render("undefined rows")+warnStyle.Render(strconv.Itoa(r.UndefinedRows)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func sensorSection(summaries []domain.SensorSummary) string {
	if len(summaries) == 0 {
		return ""
	}
	lines := []string{
		"",
		titleStyle.Render("Sensors"),
		headerStyle.Render(row("sensor", "rows", "swh mean", "swh max", "tp median", "dir mean", "swell dom")),
	}
	for _, s := range summaries {
		lines = append(lines, row(s.Sensor,
			strconv.Itoa(s.Rows),
			number(s.SWH.N, s.SWH.Mean),
			number(s.SWH.N, s.SWH.Max),
			number(s.PeakPeriod.N, s.PeakPeriod.Median),
			optional(s.MeanDirection),
			strconv.Itoa(s.SwellDominated),
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func alignmentSection(r domain.RunReport, a domain.Alignment) string {
	lines := []string{
		"",
		titleStyle.Render("Model alignment"),
		line("grid frames", strconv.Itoa(r.GridFrames)),
		line("windows", strconv.Itoa(r.Windows)),
		line("window points", strconv.Itoa(r.WindowPoints)),
		line("track points", fmt.Sprintf("%d (%d dropped, %d filtered)", r.TrackPoints, r.TrackDropped, r.TrackFiltered)),
		line("pairs", strconv.Itoa(r.CollocatedPairs)),
	}
	if a.Overall.N == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	lines = append(lines, headerStyle.Render(row("sensor", "n", "bias", "rmse", "si", "r", "slope")))
	lines = append(lines, statsRow("all", a.Overall))
	sensors := make([]string, 0, len(a.BySensor))
	for s := range a.BySensor {
		sensors = append(sensors, s)
	}
	sort.Strings(sensors)
	for _, s := range sensors {
		lines = append(lines, statsRow(s, a.BySensor[s]))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func statsRow(sensor string, s domain.CompareStats) string {
	return row(sensor,
		strconv.Itoa(s.N),
		format(s.Bias),
		format(s.RMSE),
		optional(s.ScatterIndex),
		optional(s.Pearson),
		optional(s.Slope),
	)
}

func line(label, value string) string {
	return labelStyle.Render(label) + value
}

func row(first string, rest ...string) string {
	var b strings.Builder
	b.WriteString(sensorCellStyle.Render(first))
	for _, c := range rest {
		b.WriteString(cellStyle.Render(c))
	}
	return b.String()
}

func format(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func number(n int, v float64) string {
	if n == 0 {
		return "-"
	}
	return format(v)
}

func optional(p *float64) string {
	if p == nil {
		return "-"
	}
	return format(*p)
}
