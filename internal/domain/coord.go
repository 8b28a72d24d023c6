package domain

import "math"

// NormalizeLongitude maps a longitude onto the signed [-180, 180) convention.
// Values in (180, 540) become lon-360, which covers the 0–360° convention of
// the raw sources; anything else is wrapped by whole turns. The mapping is
// idempotent. Non-finite input is a RangeError.
func NormalizeLongitude(lon float64) (float64, error) {
	if math.IsNaN(lon) || math.IsInf(lon, 0) {
		return 0, &RangeError{Field: "longitude", Value: lon, Limit: "finite"}
	}
	if lon >= -180 && lon < 180 {
		return lon, nil
	}
	wrapped := math.Mod(lon+180, 360)
	if wrapped < 0 {
		wrapped += 360
	}
	wrapped -= 180
	// Mod can round up to exactly 180 for inputs a hair below a whole turn.
	if wrapped >= 180 {
		wrapped -= 360
	}
	return wrapped, nil
}

// NormalizeLatitude validates that lat lies in [-90, 90]. It never wraps.
func NormalizeLatitude(lat float64) (float64, error) {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return 0, &RangeError{Field: "latitude", Value: lat, Limit: "[-90, 90]"}
	}
	return lat, nil
}

// NormalizePosition applies both normalizers. Every coordinate entering the
// system passes through here exactly once, at ingestion.
func NormalizePosition(lat, lon float64) (float64, float64, error) {
	nlat, err := NormalizeLatitude(lat)
	if err != nil {
		return 0, 0, err
	}
	nlon, err := NormalizeLongitude(lon)
	if err != nil {
		return 0, 0, err
	}
	return nlat, nlon, nil
}
