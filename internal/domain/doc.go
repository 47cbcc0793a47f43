// Package domain models the data that flows into and out of the CityCAT
// surface-water flood solver.
//
// # Solver Contract
//
// The solver is an external executable. It reads a fixed directory of text
// and raster inputs and writes per-cell time series into R1C1_SurfaceMaps/.
// Everything in this package is a pure value transformation on either side
// of that boundary; file formats live in the adapter packages.
//
// # Coordinates and Grids
//
// All spatial inputs share one projected coordinate reference. Grids are
// stored row-major with row 0 at the northern edge, matching the ESRI ASCII
// grid layout:
//
//	x(col) = xllcorner + (col + 0.5) * cellsize
//	y(row) = yllcorner + (nrows - row - 0.5) * cellsize
//
// Cells equal to the grid's nodata sentinel (or NaN) hold no data.
//
// # Units
//
//	Durations:        seconds inside this package (hours only at the config edge)
//	Rainfall depth:   millimetres
//	Rainfall rate:    metres per second (depth / 1000 / seconds)
//	Discharge:        cubic metres per second per unit cell width
//	Depth, elevation: metres
//	Velocity:         metres per second
//
// # Unit Storm Profile
//
// Synthetic storms use a 13-point symmetric profile peaking at the centre
// sample. The profile is spread evenly over [0, duration] and scaled so the
// trapezoidal integral of the emitted intensities over that interval equals
// the requested depth exactly. Two zero samples at duration+1s and
// duration+2s close the series so the solver does not hold the last
// intensity.
//
// # Error Categories
//
// Every failure returned from this package wraps one of the sentinels in
// errors.go so callers can branch with errors.Is. None of them are retried.
package domain
