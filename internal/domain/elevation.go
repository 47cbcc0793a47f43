package domain

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

// latticeEpsilon absorbs floating-point noise when snapping a bounding box
// onto a tile lattice, so an already-aligned box does not grow by a cell.
const latticeEpsilon = 1e-9

// maskPolygon adapts a boundary geometry for the rtree index.
type maskPolygon struct {
	geom.Polygonal
}

// AssembleElevation mosaics tiles into one grid covering bbox. The output
// lattice is the first tile's lattice, snapped outward to enclose bbox.
// Tiles are applied in order and a later tile overwrites earlier values
// wherever it holds data. When mask is non-empty, cells whose centre falls
// outside every mask polygon are set to nodata. A result with no valid cell
// is a coverage error.
func AssembleElevation(tiles []*Grid, bbox BoundingBox, nodata float64, mask []geom.Polygonal) (*Grid, error) {
	if len(tiles) == 0 {
		return nil, fmt.Errorf("%w: no elevation tiles supplied", ErrCoverage)
	}
	if err := bbox.Validate(); err != nil {
		return nil, err
	}

	base := tiles[0]
	cs := base.CellSize
	if !(cs > 0) {
		return nil, fmt.Errorf("%w: elevation tile has cell size %g", ErrFormat, cs)
	}
	for i, t := range tiles[1:] {
		if math.Abs(t.CellSize-cs) > cs*1e-6 {
			return nil, fmt.Errorf("%w: tile %d has cell size %g, expected %g (no resampling)", ErrFormat, i+1, t.CellSize, cs)
		}
	}

	minX := base.XLL + math.Floor((bbox.MinX-base.XLL)/cs+latticeEpsilon)*cs
	maxX := base.XLL + math.Ceil((bbox.MaxX-base.XLL)/cs-latticeEpsilon)*cs
	minY := base.YLL + math.Floor((bbox.MinY-base.YLL)/cs+latticeEpsilon)*cs
	maxY := base.YLL + math.Ceil((bbox.MaxY-base.YLL)/cs-latticeEpsilon)*cs

	ref := Georeference{
		NCols:    int(math.Round((maxX - minX) / cs)),
		NRows:    int(math.Round((maxY - minY) / cs)),
		XLL:      minX,
		YLL:      minY,
		CellSize: cs,
		CRS:      base.CRS,
	}
	out := NewGrid(ref, nodata)

	for _, t := range tiles {
		mosaicTile(out, t)
	}

	if len(mask) > 0 {
		applyMask(out, mask)
	}

	if out.ValidCount() == 0 {
		return nil, fmt.Errorf("%w: no elevation data in domain %s", ErrCoverage, bbox)
	}
	return out, nil
}

// mosaicTile copies every valid tile value whose cell centre lands inside out.
func mosaicTile(out, tile *Grid) {
	tb := tile.Bounds()
	for row := 0; row < out.NRows; row++ {
		_, y := out.CellCenter(row, 0)
		if y < tb.MinY || y > tb.MaxY {
			continue
		}
		for col := 0; col < out.NCols; col++ {
			x, _ := out.CellCenter(row, col)
			if v, ok := tile.ValueAt(x, y); ok {
				out.Set(row, col, v)
			}
		}
	}
}

// applyMask clears cells whose centre is outside all mask polygons.
func applyMask(g *Grid, mask []geom.Polygonal) {
	tree := rtree.NewTree(25, 50)
	for _, p := range mask {
		if p != nil {
			tree.Insert(maskPolygon{p})
		}
	}
	for row := 0; row < g.NRows; row++ {
		for col := 0; col < g.NCols; col++ {
			if g.IsNoData(g.At(row, col)) {
				continue
			}
			x, y := g.CellCenter(row, col)
			if !insideAny(tree, geom.Point{X: x, Y: y}) {
				g.Set(row, col, g.NoData)
			}
		}
	}
}

func insideAny(tree *rtree.Rtree, pt geom.Point) bool {
	const pad = 1e-6
	query := &geom.Bounds{
		Min: geom.Point{X: pt.X - pad, Y: pt.Y - pad},
		Max: geom.Point{X: pt.X + pad, Y: pt.Y + pad},
	}
	for _, c := range tree.SearchIntersect(query) {
		if pt.Within(c.(maskPolygon).Polygonal) != geom.Outside {
			return true
		}
	}
	return false
}
