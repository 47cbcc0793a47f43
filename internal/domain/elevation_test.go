package domain

import (
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNoData = -9999.0

// rampTile builds an n x n tile of cell size 10 whose value is row*100+col.
func rampTile(xll, yll float64, n int) *Grid {
	g := NewGrid(Georeference{NCols: n, NRows: n, XLL: xll, YLL: yll, CellSize: 10}, testNoData)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			g.Set(r, c, float64(r*100+c))
		}
	}
	return g
}

func constTile(xll, yll float64, n int, v float64) *Grid {
	g := NewGrid(Georeference{NCols: n, NRows: n, XLL: xll, YLL: yll, CellSize: 10}, testNoData)
	for i := range g.Data {
		g.Data[i] = v
	}
	return g
}

func TestGeoreference(t *testing.T) {
	ref := Georeference{NCols: 4, NRows: 3, XLL: 100, YLL: 200, CellSize: 5}

	x, y := ref.CellCenter(0, 0)
	assert.Equal(t, 102.5, x)
	assert.Equal(t, 212.5, y)

	row, col, ok := ref.CellAt(102.5, 212.5)
	require.True(t, ok)
	assert.Equal(t, 0, row)
	assert.Equal(t, 0, col)

	row, col, ok = ref.CellAt(119, 201)
	require.True(t, ok)
	assert.Equal(t, 2, row)
	assert.Equal(t, 3, col)

	_, _, ok = ref.CellAt(99, 201)
	assert.False(t, ok)
	// North and west edges belong to the grid, south and east edges do not.
	row, col, ok = ref.CellAt(100, 215)
	require.True(t, ok)
	assert.Equal(t, 0, row)
	assert.Equal(t, 0, col)
	_, _, ok = ref.CellAt(101, 200)
	assert.False(t, ok)
	_, _, ok = ref.CellAt(120, 201)
	assert.False(t, ok)
	_, _, ok = ref.CellAt(101, 215.01)
	assert.False(t, ok)

	assert.Equal(t, BoundingBox{MinX: 100, MinY: 200, MaxX: 120, MaxY: 215}, ref.Bounds())
}

func TestAssembleElevation(t *testing.T) {
	t.Run("single tile round trip", func(t *testing.T) {
		tile := rampTile(0, 0, 10)
		bb := BoundingBox{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100}

		g, err := AssembleElevation([]*Grid{tile}, bb, testNoData, nil)
		require.NoError(t, err)
		assert.True(t, g.SameShape(tile.Georeference))

		for r := 0; r < g.NRows; r++ {
			for c := 0; c < g.NCols; c++ {
				x, y := g.CellCenter(r, c)
				want, ok := tile.ValueAt(x, y)
				require.True(t, ok)
				assert.Equal(t, want, g.At(r, c))
			}
		}
	})

	t.Run("bbox snapped outward to tile lattice", func(t *testing.T) {
		tile := rampTile(0, 0, 10)
		bb := BoundingBox{MinX: 15, MinY: 15, MaxX: 45, MaxY: 45}

		g, err := AssembleElevation([]*Grid{tile}, bb, testNoData, nil)
		require.NoError(t, err)
		assert.Equal(t, 10.0, g.XLL)
		assert.Equal(t, 10.0, g.YLL)
		assert.Equal(t, 4, g.NCols)
		assert.Equal(t, 4, g.NRows)
		// Top-left output cell centre is (15, 45): tile row 5, col 1.
		assert.Equal(t, 501.0, g.At(0, 0))
	})

	t.Run("partial coverage is nodata", func(t *testing.T) {
		tile := rampTile(0, 0, 5)
		bb := BoundingBox{MinX: 0, MinY: 0, MaxX: 100, MaxY: 50}

		g, err := AssembleElevation([]*Grid{tile}, bb, testNoData, nil)
		require.NoError(t, err)
		assert.Equal(t, 25, g.ValidCount())
		assert.Equal(t, testNoData, g.At(0, 9))
	})

	t.Run("later tile wins", func(t *testing.T) {
		a := constTile(0, 0, 10, 1)
		b := constTile(50, 0, 10, 2)
		bb := BoundingBox{MinX: 0, MinY: 0, MaxX: 150, MaxY: 100}

		g, err := AssembleElevation([]*Grid{a, b}, bb, testNoData, nil)
		require.NoError(t, err)
		assert.Equal(t, 1.0, g.At(0, 0))
		assert.Equal(t, 2.0, g.At(0, 5))
		assert.Equal(t, 2.0, g.At(0, 14))
	})

	t.Run("nodata in a later tile keeps earlier value", func(t *testing.T) {
		a := constTile(0, 0, 10, 1)
		b := constTile(0, 0, 10, 2)
		b.Set(3, 3, testNoData)
		bb := BoundingBox{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100}

		g, err := AssembleElevation([]*Grid{a, b}, bb, testNoData, nil)
		require.NoError(t, err)
		assert.Equal(t, 1.0, g.At(3, 3))
		assert.Equal(t, 2.0, g.At(3, 4))
	})

	t.Run("no overlap is a coverage error", func(t *testing.T) {
		tile := rampTile(0, 0, 10)
		bb := BoundingBox{MinX: 1000, MinY: 1000, MaxX: 1100, MaxY: 1100}

		g, err := AssembleElevation([]*Grid{tile}, bb, testNoData, nil)
		assert.ErrorIs(t, err, ErrCoverage)
		assert.Nil(t, g)
	})

	t.Run("all nodata tile is a coverage error", func(t *testing.T) {
		tile := constTile(0, 0, 10, testNoData)
		_, err := AssembleElevation([]*Grid{tile}, BoundingBox{MaxX: 100, MaxY: 100}, testNoData, nil)
		assert.ErrorIs(t, err, ErrCoverage)
	})

	t.Run("no tiles", func(t *testing.T) {
		_, err := AssembleElevation(nil, BoundingBox{MaxX: 1, MaxY: 1}, testNoData, nil)
		assert.ErrorIs(t, err, ErrCoverage)
	})

	t.Run("mismatched cell size", func(t *testing.T) {
		a := constTile(0, 0, 10, 1)
		b := NewGrid(Georeference{NCols: 5, NRows: 5, CellSize: 20}, testNoData)
		_, err := AssembleElevation([]*Grid{a, b}, BoundingBox{MaxX: 100, MaxY: 100}, testNoData, nil)
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("boundary mask clears outside cells", func(t *testing.T) {
		tile := constTile(0, 0, 10, 7)
		mask := []geom.Polygonal{square(0, 0, 50, 100)}

		g, err := AssembleElevation([]*Grid{tile}, BoundingBox{MaxX: 100, MaxY: 100}, testNoData, mask)
		require.NoError(t, err)
		assert.Equal(t, 50, g.ValidCount())
		assert.Equal(t, 7.0, g.At(0, 4))
		assert.Equal(t, testNoData, g.At(0, 5))
	})

	t.Run("mask outside the data is a coverage error", func(t *testing.T) {
		tile := constTile(0, 0, 10, 7)
		mask := []geom.Polygonal{square(500, 500, 600, 600)}

		_, err := AssembleElevation([]*Grid{tile}, BoundingBox{MaxX: 100, MaxY: 100}, testNoData, mask)
		assert.ErrorIs(t, err, ErrCoverage)
	})
}
