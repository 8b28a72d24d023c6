// Package domain turns directional wave spectra and along-track wave heights
// into sea-state parameters and time-aligned analysis windows.
//
// # Spectral records
//
// SWIM (CFOSAT) and Sentinel-1 SAR spectra arrive as concatenated text records.
// Each record opens with a header line:
//
//	YYYYMMDDHHMM  lon  lat  [params...]
//	202402141200  318.25  -24.10  1.7  9.3
//
// Longitudes use the 0–360° convention; SWIM carries two extra numeric fields,
// SAR five. The header is followed by a block of 720 energy densities
// (m²/Hz/deg), 30 frequency rows of 24 direction columns. The axes are not
// stored in the file:
//
//	f(1) = 0.0345 Hz, f(i) = 1.1 * f(i-1)        (30 bins, up to ~0.55 Hz)
//	θ(j) = 7.5° + 15°(j-1)                        (24 bins, "coming from")
//
// A block with any other number of values is rejected, never padded.
//
// # Coordinates
//
// Every position is normalized once, at ingestion, to latitude in [-90, 90]
// and longitude in [-180, 180). Filters, alignment and collocation assume
// normalized input.
//
// # Parameters
//
// [ComputeParameters] integrates the spectrum over frequency and direction.
// Quantities that are undefined for a record (everything but Hs for an
// all-zero spectrum; direction and spread when the directional energy
// cancels) are nil pointers and are written as empty cells.
//
// # Alignment
//
// Gridded reanalysis frames are hourly. [Align] gives each frame the track
// points within ±half-width of it, inclusive at both ends, as a view over a
// single sorted copy of the points.
package domain
