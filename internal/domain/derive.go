package domain

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/sparse"
)

// FillValue replaces non-finite or missing cells in derived rasters.
const FillValue = -9999.0

// Output table columns written by the solver.
const (
	ColumnDepth = "Depth"
	ColumnVX    = "Vx"
	ColumnVY    = "Vy"
)

// CellRow is one solver output row keyed by its cell-centre coordinates.
type CellRow struct {
	X, Y   float64
	Values []float64
}

// CellTable is a flat per-cell table. Values in each row follow Columns.
type CellTable struct {
	Columns []string
	Rows    []CellRow
}

// ColumnIndex returns the position of name in the table's value columns.
func (t CellTable) ColumnIndex(name string) (int, error) {
	for i, c := range t.Columns {
		if c == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: output table has no %q column", ErrFormat, name)
}

// TableToRaster places one column of a cell table onto the grid described by
// ref. Cells without a row hold fill. Rows outside the grid, two rows for one
// cell, or more rows than cells indicate the table was produced for another
// grid and are data-integrity errors. An empty table is a coverage error.
func TableToRaster(t CellTable, column string, ref Georeference, fill float64) (*Grid, error) {
	if len(t.Rows) == 0 {
		return nil, fmt.Errorf("%w: output table is empty", ErrCoverage)
	}
	if len(t.Rows) > ref.Cells() {
		return nil, fmt.Errorf("%w: output table has %d rows for a %dx%d grid", ErrDataIntegrity, len(t.Rows), ref.NCols, ref.NRows)
	}
	ci, err := t.ColumnIndex(column)
	if err != nil {
		return nil, err
	}

	g := NewGrid(ref, fill)
	seen := make([]bool, ref.Cells())
	for i, r := range t.Rows {
		row, col, ok := ref.CellAt(r.X, r.Y)
		if !ok {
			return nil, fmt.Errorf("%w: output row %d at (%g, %g) lies outside the grid", ErrDataIntegrity, i+1, r.X, r.Y)
		}
		idx := ref.Index(row, col)
		if seen[idx] {
			return nil, fmt.Errorf("%w: output row %d repeats cell (%d, %d)", ErrDataIntegrity, i+1, row, col)
		}
		seen[idx] = true
		if ci >= len(r.Values) {
			return nil, fmt.Errorf("%w: output row %d has %d values, want column %d", ErrFormat, i+1, len(r.Values), ci+1)
		}
		g.Data[idx] = r.Values[ci]
	}
	return g, nil
}

// Timestep is one solver output table and its elapsed time in seconds.
type Timestep struct {
	Index int
	Time  float64
	Table CellTable
}

// Volume stacks depth and velocity components over time. Each cube has
// shape (time, row, col) and holds NaN where the solver reported no value.
type Volume struct {
	Ref   Georeference
	Times []float64
	Depth *sparse.DenseArray
	VX    *sparse.DenseArray
	VY    *sparse.DenseArray
}

// Steps returns the length of the time axis.
func (v *Volume) Steps() int { return len(v.Times) }

// BuildVolume orders steps by time and stacks them on ref. A step with no
// rows is a dry output step and contributes an all-missing slice.
func BuildVolume(steps []Timestep, ref Georeference) (*Volume, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: no solver output timesteps", ErrDataIntegrity)
	}
	ordered := make([]Timestep, len(steps))
	copy(ordered, steps)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Time < ordered[j].Time })

	nt, cells := len(ordered), ref.Cells()
	v := &Volume{
		Ref:   ref,
		Times: make([]float64, nt),
		Depth: sparse.ZerosDense(nt, ref.NRows, ref.NCols),
		VX:    sparse.ZerosDense(nt, ref.NRows, ref.NCols),
		VY:    sparse.ZerosDense(nt, ref.NRows, ref.NCols),
	}
	for k, s := range ordered {
		v.Times[k] = s.Time
		if len(s.Table.Rows) == 0 {
			for _, cube := range []*sparse.DenseArray{v.Depth, v.VX, v.VY} {
				for i := k * cells; i < (k+1)*cells; i++ {
					cube.Elements[i] = math.NaN()
				}
			}
			continue
		}
		for _, band := range []struct {
			column string
			cube   *sparse.DenseArray
		}{{ColumnDepth, v.Depth}, {ColumnVX, v.VX}, {ColumnVY, v.VY}} {
			g, err := TableToRaster(s.Table, band.column, ref, math.NaN())
			if err != nil {
				return nil, fmt.Errorf("timestep %d: %w", s.Index, err)
			}
			copy(band.cube.Elements[k*cells:(k+1)*cells], g.Data)
		}
	}
	return v, nil
}

// VelocityMagnitude returns sqrt(vx²+vy²) for every cell and timestep.
func (v *Volume) VelocityMagnitude() *sparse.DenseArray {
	out := sparse.ZerosDense(v.VX.Shape...)
	for i := range out.Elements {
		out.Elements[i] = math.Hypot(v.VX.Elements[i], v.VY.Elements[i])
	}
	return out
}

// MaxOverTime reduces a (time, row, col) cube to its per-cell maximum.
// Missing samples are skipped. Maxima are rounded to three decimals, and a
// cell with no finite maximum takes fill.
func MaxOverTime(cube *sparse.DenseArray, ref Georeference, fill float64) (*Grid, error) {
	if len(cube.Shape) != 3 || cube.Shape[0] == 0 {
		return nil, fmt.Errorf("%w: reduction over an empty time axis", ErrDataIntegrity)
	}
	if cube.Shape[1] != ref.NRows || cube.Shape[2] != ref.NCols {
		return nil, fmt.Errorf("%w: cube is %dx%d, grid is %dx%d", ErrDataIntegrity, cube.Shape[2], cube.Shape[1], ref.NCols, ref.NRows)
	}
	nt, cells := cube.Shape[0], ref.Cells()
	g := NewGrid(ref, fill)
	for i := 0; i < cells; i++ {
		best := math.NaN()
		for k := 0; k < nt; k++ {
			x := cube.Elements[k*cells+i]
			if math.IsNaN(x) {
				continue
			}
			if math.IsNaN(best) || x > best {
				best = x
			}
		}
		best = Round3(best)
		if !math.IsNaN(best) && !math.IsInf(best, 0) {
			g.Data[i] = best
		}
	}
	return g, nil
}

// DeriveMaxVelocity returns the per-cell maximum velocity magnitude.
func DeriveMaxVelocity(v *Volume, fill float64) (*Grid, error) {
	if v == nil || v.Steps() == 0 {
		return nil, fmt.Errorf("%w: reduction over an empty time axis", ErrDataIntegrity)
	}
	return MaxOverTime(v.VelocityMagnitude(), v.Ref, fill)
}

// DeriveMaxDepthVelocityProduct returns the per-cell maximum of depth times
// velocity magnitude.
func DeriveMaxDepthVelocityProduct(v *Volume, fill float64) (*Grid, error) {
	if v == nil || v.Steps() == 0 {
		return nil, fmt.Errorf("%w: reduction over an empty time axis", ErrDataIntegrity)
	}
	product := v.VelocityMagnitude()
	for i := range product.Elements {
		product.Elements[i] *= v.Depth.Elements[i]
	}
	return MaxOverTime(product, v.Ref, fill)
}

// Round3 rounds to three decimal places.
func Round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
