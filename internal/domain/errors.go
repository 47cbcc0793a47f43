package domain

import "errors"

var (
	// ErrConfiguration marks missing or contradictory run parameters.
	ErrConfiguration = errors.New("configuration error")

	// ErrCoverage marks an empty spatial or tabular result where data is required.
	ErrCoverage = errors.New("coverage error")

	// ErrFormat marks malformed raster, vector, or table input.
	ErrFormat = errors.New("format error")

	// ErrConservation marks a synthesized rainfall series that does not
	// integrate to its target depth.
	ErrConservation = errors.New("conservation error")

	// ErrDataIntegrity marks solver output that does not fit the grid the
	// inputs were generated from.
	ErrDataIntegrity = errors.New("data integrity error")
)
