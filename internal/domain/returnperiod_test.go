package domain

import (
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpliftFileName(t *testing.T) {
	assert.Equal(t, "Uplift_2050_1hr_Pr_100yrRL_Grid.csv", UpliftFileName(BaselineHorizon, 1, 100))
	assert.Equal(t, "Uplift_2080_6hr_Pr_30yrRL_Grid.csv", UpliftFileName("2080", 6, 30))
}

func TestReturnPeriodDepth(t *testing.T) {
	cells := []UpliftCell{
		{Easting: 500, Northing: 500, ReturnLevel: 40, Uplift50: 20},
		{Easting: 3000, Northing: 500, ReturnLevel: 60, Uplift50: 40},
		{Easting: 50000, Northing: 50000, ReturnLevel: 1000, Uplift50: 1000},
	}
	bb := BoundingBox{MinX: 0, MinY: 0, MaxX: 1000, MaxY: 1000}

	t.Run("baseline averages intersecting cells", func(t *testing.T) {
		d, up, err := ReturnPeriodDepth(cells, bb, nil, BaselineHorizon)
		require.NoError(t, err)
		assert.InDelta(t, 50.0, d, 1e-9)
		assert.InDelta(t, 30.0, up, 1e-9)
	})

	t.Run("future horizon applies mean uplift", func(t *testing.T) {
		d, _, err := ReturnPeriodDepth(cells, bb, nil, "2080")
		require.NoError(t, err)
		assert.InDelta(t, 50.0*1.3, d, 1e-9)
	})

	t.Run("boundary polygons narrow the selection", func(t *testing.T) {
		boundary := []geom.Polygonal{square(-1500, 0, -500, 100)}
		d, _, err := ReturnPeriodDepth(cells, bb, boundary, BaselineHorizon)
		require.NoError(t, err)
		assert.InDelta(t, 40.0, d, 1e-9)
	})

	t.Run("edge-touching neighbours are averaged in", func(t *testing.T) {
		lattice := []UpliftCell{
			{Easting: 2500, Northing: 2500, ReturnLevel: 50, Uplift50: 10},
			{Easting: 7500, Northing: 2500, ReturnLevel: 10, Uplift50: 30},
			{Easting: 7500, Northing: 7500, ReturnLevel: 30, Uplift50: 20},
			{Easting: 12500, Northing: 2500, ReturnLevel: 1000, Uplift50: 1000},
		}
		one := BoundingBox{MinX: 0, MinY: 0, MaxX: 5000, MaxY: 5000}
		d, up, err := ReturnPeriodDepth(lattice, one, nil, BaselineHorizon)
		require.NoError(t, err)
		assert.InDelta(t, 30.0, d, 1e-9)
		assert.InDelta(t, 20.0, up, 1e-9)

		// A boundary polygon touching the square only at its corner.
		corner := []geom.Polygonal{square(-1000, -1000, 0, 0)}
		d, _, err = ReturnPeriodDepth(lattice, one, corner, BaselineHorizon)
		require.NoError(t, err)
		assert.InDelta(t, 50.0, d, 1e-9)
	})

	t.Run("no intersecting cell", func(t *testing.T) {
		far := BoundingBox{MinX: -90000, MinY: -90000, MaxX: -89000, MaxY: -89000}
		_, _, err := ReturnPeriodDepth(cells, far, nil, BaselineHorizon)
		assert.ErrorIs(t, err, ErrCoverage)
	})
}
