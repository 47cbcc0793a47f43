// Package netcdf writes and reads the multi-timestep surface map file: depth
// and velocity components over (time, y, x) with the run settings attached
// as global attributes.
package netcdf

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/couchcryptid/citycat-pipeline/internal/domain"
	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// FileName is the surface map file written into the run directory.
const FileName = "R1C1_SurfaceMaps.nc"

// Variable names in the surface map file.
const (
	VarTime  = "time"
	VarX     = "x"
	VarY     = "y"
	VarDepth = "depth"
	VarXVel  = "x_vel"
	VarYVel  = "y_vel"
)

var bands = []struct {
	name, units, description string
}{
	{VarDepth, "m", "water depth"},
	{VarXVel, "m/s", "velocity in the x direction"},
	{VarYVel, "m/s", "velocity in the y direction"},
}

// Write stores vol at path. Missing cells are written as the fill value.
func Write(path string, vol *domain.Volume, run domain.RunDescriptor) error {
	if vol == nil || vol.Steps() == 0 {
		return fmt.Errorf("%w: surface maps need at least one timestep", domain.ErrDataIntegrity)
	}
	ref := vol.Ref
	h := cdf.NewHeader(
		[]string{VarTime, VarY, VarX},
		[]int{vol.Steps(), ref.NRows, ref.NCols})

	h.AddAttribute("", "title", run.Title())
	addText(h, "rainfall_mode", string(run.RainfallMode))
	h.AddAttribute("", "rainfall_total", []float64{run.RainfallTotalMM})
	h.AddAttribute("", "size", []float64{run.Size})
	h.AddAttribute("", "duration", []float64{run.DurationHours})
	h.AddAttribute("", "post_event_duration", []float64{run.PostEventHours})
	h.AddAttribute("", "x", []int32{int32(math.Round(run.X))})
	h.AddAttribute("", "y", []int32{int32(math.Round(run.Y))})
	h.AddAttribute("", "open_boundaries", strconv.FormatBool(run.OpenBoundaries))
	addText(h, "permeable_areas", run.PermeableAreas)
	addText(h, "crs", ref.CRS)
	h.AddAttribute("", "cellsize", []float64{ref.CellSize})

	h.AddVariable(VarTime, []string{VarTime}, []float64{0})
	h.AddAttribute(VarTime, "units", "seconds since start of simulation")
	h.AddVariable(VarY, []string{VarY}, []float64{0})
	h.AddAttribute(VarY, "units", "m")
	h.AddVariable(VarX, []string{VarX}, []float64{0})
	h.AddAttribute(VarX, "units", "m")
	for _, b := range bands {
		h.AddVariable(b.name, []string{VarTime, VarY, VarX}, []float32{0})
		h.AddAttribute(b.name, "units", b.units)
		h.AddAttribute(b.name, "description", b.description)
		h.AddAttribute(b.name, "_FillValue", []float32{float32(domain.FillValue)})
	}
	h.Define()

	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create surface maps: %w", err)
	}
	defer w.Close()

	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("write surface map header: %w", err)
	}

	xs := make([]float64, ref.NCols)
	for c := range xs {
		xs[c], _ = ref.CellCenter(0, c)
	}
	ys := make([]float64, ref.NRows)
	for r := range ys {
		_, ys[r] = ref.CellCenter(r, 0)
	}
	for _, axis := range []struct {
		name string
		data []float64
	}{{VarTime, vol.Times}, {VarY, ys}, {VarX, xs}} {
		if _, err := f.Writer(axis.name, []int{0}, []int{len(axis.data)}).Write(axis.data); err != nil {
			return fmt.Errorf("write %s axis: %w", axis.name, err)
		}
	}

	for _, b := range []struct {
		name string
		cube *sparse.DenseArray
	}{{VarDepth, vol.Depth}, {VarXVel, vol.VX}, {VarYVel, vol.VY}} {
		if err := writeCube(f, b.name, b.cube); err != nil {
			return fmt.Errorf("write %s: %w", b.name, err)
		}
	}

	if err := cdf.UpdateNumRecs(w); err != nil {
		return fmt.Errorf("finalize surface maps: %w", err)
	}
	return w.Close()
}

// addText adds a global string attribute, skipping empty values.
func addText(h *cdf.Header, name, value string) {
	if value != "" {
		h.AddAttribute("", name, value)
	}
}

func writeCube(f *cdf.File, name string, data *sparse.DenseArray) error {
	end := f.Header.Lengths(name)
	n := 1
	for _, l := range end {
		n *= l
	}
	if len(data.Elements) != n {
		return fmt.Errorf("%w: %s has %d values, dims want %d", domain.ErrDataIntegrity, name, len(data.Elements), n)
	}
	data32 := make([]float32, n)
	for i, e := range data.Elements {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			e = domain.FillValue
		}
		data32[i] = float32(e)
	}
	_, err := f.Writer(name, make([]int, len(end)), end).Write(data32)
	return err
}

// Read loads a surface map file written by Write. Fill values come back as
// NaN. The returned attributes hold the global attributes by name.
func Read(path string) (*domain.Volume, map[string]any, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open surface maps: %w", err)
	}
	defer r.Close()

	f, err := cdf.Open(r)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read surface map header: %v", domain.ErrFormat, err)
	}

	attrs := map[string]any{}
	for _, name := range f.Header.Attributes("") {
		attrs[name] = f.Header.GetAttribute("", name)
	}

	times, err := readFloat64(f, VarTime)
	if err != nil {
		return nil, nil, err
	}
	xs, err := readFloat64(f, VarX)
	if err != nil {
		return nil, nil, err
	}
	ys, err := readFloat64(f, VarY)
	if err != nil {
		return nil, nil, err
	}

	ref := domain.Georeference{NCols: len(xs), NRows: len(ys)}
	if cs, ok := attrs["cellsize"].([]float64); ok && len(cs) == 1 {
		ref.CellSize = cs[0]
	}
	if len(xs) > 0 && len(ys) > 0 {
		ref.XLL = xs[0] - ref.CellSize/2
		ref.YLL = ys[len(ys)-1] - ref.CellSize/2
	}
	if crs, ok := attrs["crs"].(string); ok {
		ref.CRS = crs
	}

	vol := &domain.Volume{Ref: ref, Times: times}
	for _, b := range []struct {
		name string
		dst  **sparse.DenseArray
	}{{VarDepth, &vol.Depth}, {VarXVel, &vol.VX}, {VarYVel, &vol.VY}} {
		cube, err := readCube(f, b.name)
		if err != nil {
			return nil, nil, err
		}
		*b.dst = cube
	}
	return vol, attrs, nil
}

func readFloat64(f *cdf.File, name string) ([]float64, error) {
	out := make([]float64, f.Header.Lengths(name)[0])
	if len(out) == 0 {
		return out, nil
	}
	if _, err := f.Reader(name, nil, nil).Read(out); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrFormat, name, err)
	}
	return out, nil
}

func readCube(f *cdf.File, name string) (*sparse.DenseArray, error) {
	dims := f.Header.Lengths(name)
	cube := sparse.ZerosDense(dims...)
	tmp := make([]float32, len(cube.Elements))
	if len(tmp) > 0 {
		if _, err := f.Reader(name, nil, nil).Read(tmp); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", domain.ErrFormat, name, err)
		}
	}
	for i, v := range tmp {
		if float64(v) == domain.FillValue {
			cube.Elements[i] = math.NaN()
			continue
		}
		cube.Elements[i] = float64(v)
	}
	return cube, nil
}
