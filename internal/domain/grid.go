package domain

import (
	"math"
)

// Georeference places a regular grid in the domain's CRS. Row 0 is the
// northern edge.
type Georeference struct {
	NCols    int     `json:"ncols"`
	NRows    int     `json:"nrows"`
	XLL      float64 `json:"xllcorner"`
	YLL      float64 `json:"yllcorner"`
	CellSize float64 `json:"cellsize"`
	CRS      string  `json:"crs,omitempty"`
}

// Cells returns the number of cells in the grid.
func (g Georeference) Cells() int { return g.NCols * g.NRows }

// Bounds returns the outer extent of the grid.
func (g Georeference) Bounds() BoundingBox {
	return BoundingBox{
		MinX: g.XLL,
		MinY: g.YLL,
		MaxX: g.XLL + float64(g.NCols)*g.CellSize,
		MaxY: g.YLL + float64(g.NRows)*g.CellSize,
	}
}

// Index returns the row-major offset of (row, col).
func (g Georeference) Index(row, col int) int { return row*g.NCols + col }

// CellCenter returns the coordinates of the centre of (row, col).
func (g Georeference) CellCenter(row, col int) (x, y float64) {
	x = g.XLL + (float64(col)+0.5)*g.CellSize
	y = g.YLL + (float64(g.NRows-row)-0.5)*g.CellSize
	return x, y
}

// CellAt maps a coordinate to the cell containing it. ok is false when the
// coordinate lies outside the grid. Rows count down from the north edge, so
// a cell spans [west, east) by (south, north]: the grid's north and west
// edges are inside, its south and east edges are not.
func (g Georeference) CellAt(x, y float64) (row, col int, ok bool) {
	if g.CellSize <= 0 {
		return 0, 0, false
	}
	top := g.YLL + float64(g.NRows)*g.CellSize
	col = int(math.Floor((x - g.XLL) / g.CellSize))
	row = int(math.Floor((top - y) / g.CellSize))
	if col < 0 || col >= g.NCols || row < 0 || row >= g.NRows {
		return 0, 0, false
	}
	return row, col, true
}

// SameShape reports whether two georeferences describe the same lattice.
func (g Georeference) SameShape(o Georeference) bool {
	const tol = 1e-6
	return g.NCols == o.NCols && g.NRows == o.NRows &&
		math.Abs(g.XLL-o.XLL) < tol && math.Abs(g.YLL-o.YLL) < tol &&
		math.Abs(g.CellSize-o.CellSize) < tol
}

// Grid is a single-band raster. ElevationGrid and DerivedRaster are both Grids.
type Grid struct {
	Georeference
	NoData float64
	Data   []float64
}

// NewGrid allocates a grid with every cell set to nodata.
func NewGrid(ref Georeference, nodata float64) *Grid {
	data := make([]float64, ref.Cells())
	for i := range data {
		data[i] = nodata
	}
	return &Grid{Georeference: ref, NoData: nodata, Data: data}
}

// At returns the value at (row, col).
func (g *Grid) At(row, col int) float64 { return g.Data[g.Index(row, col)] }

// Set stores v at (row, col).
func (g *Grid) Set(row, col int, v float64) { g.Data[g.Index(row, col)] = v }

// IsNoData reports whether v is the grid's sentinel or not a number.
func (g *Grid) IsNoData(v float64) bool {
	return v == g.NoData || math.IsNaN(v)
}

// ValueAt samples the cell containing (x, y). ok is false outside the grid
// or on a nodata cell.
func (g *Grid) ValueAt(x, y float64) (float64, bool) {
	row, col, ok := g.CellAt(x, y)
	if !ok {
		return g.NoData, false
	}
	v := g.At(row, col)
	if g.IsNoData(v) {
		return g.NoData, false
	}
	return v, true
}

// ValidCount returns the number of cells holding data.
func (g *Grid) ValidCount() int {
	n := 0
	for _, v := range g.Data {
		if !g.IsNoData(v) {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of g.
func (g *Grid) Clone() *Grid {
	data := make([]float64, len(g.Data))
	copy(data, g.Data)
	return &Grid{Georeference: g.Georeference, NoData: g.NoData, Data: data}
}
