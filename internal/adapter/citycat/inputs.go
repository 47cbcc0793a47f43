package citycat

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/couchcryptid/citycat-pipeline/internal/adapter/asciigrid"
	"github.com/couchcryptid/citycat-pipeline/internal/domain"
	"github.com/google/uuid"
)

// Solver input file names.
const (
	DEMFile              = "Domain_DEM.asc"
	BuildingsFile        = "Buildings.txt"
	GreenAreasFile       = "GreenAreas.txt"
	SpatialGreenFile     = "Spatial_GreenAreas.txt"
	ReservoirsFile       = "InitSurfaceWaterElev_Polygons.txt"
	OpenBoundariesFile   = "OpenBoundaries.txt"
	FlowPolygonsFile     = "FlowPolygons.txt"
	RainfallPolygonsFile = "RainfallPolygons.txt"
	FrictionFile         = "Friction.txt"
	RainfallFile         = "Rainfall_Data_1.txt"
	FlowFile             = "Flow_Data.txt"
	ConfigFile           = "CityCat_Config_1.txt"
)

// inputFile is one file of the input set and the function that renders it.
type inputFile struct {
	name  string
	write func(io.Writer) error
}

// WriteInputs writes the complete solver input set for m into target. Files
// are rendered into a staging directory next to target which is renamed
// into place only when every file succeeded, so target either holds a full
// input set or does not exist. target must be absent or empty.
func WriteInputs(target string, m *domain.ModelConfiguration) (*Manifest, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := ensureVacant(target); err != nil {
		return nil, err
	}

	staging := filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+"-"+uuid.NewString())
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(staging)
		}
	}()

	files := planInputs(m)
	names := make([]string, 0, len(files))
	for _, f := range files {
		if err := writeFile(filepath.Join(staging, f.name), f.write); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.name, err)
		}
		names = append(names, f.name)
	}
	manifest, err := writeManifest(staging, names)
	if err != nil {
		return nil, err
	}

	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("clear target directory: %w", err)
	}
	if err := os.Rename(staging, target); err != nil {
		return nil, fmt.Errorf("commit input directory: %w", err)
	}
	committed = true
	return manifest, nil
}

func ensureVacant(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("inspect target directory: %w", err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("%w: input directory %s is not empty", domain.ErrConfiguration, dir)
	}
	return nil
}

// planInputs lists the files for m. Absent layers produce no file.
func planInputs(m *domain.ModelConfiguration) []inputFile {
	files := []inputFile{
		{DEMFile, func(w io.Writer) error { return asciigrid.Write(w, m.Elevation) }},
		{RainfallFile, func(w io.Writer) error { return writeSeries(w, "rainfall", m.Rainfall.Samples) }},
		{ConfigFile, func(w io.Writer) error { return writeConfig(w, m) }},
	}

	layer := func(name string, l *domain.VectorLayer, layout Layout) {
		if l == nil {
			return
		}
		files = append(files, inputFile{name, func(w io.Writer) error { return Serialize(w, l, layout) }})
	}

	l := m.Layers
	layer(BuildingsFile, l.Buildings, LayoutPlain)
	if l.GreenAreas != nil && l.GreenAreas.HasValue {
		layer(SpatialGreenFile, l.GreenAreas, LayoutIndexFirst)
	} else {
		layer(GreenAreasFile, l.GreenAreas, LayoutPlain)
	}
	layer(ReservoirsFile, l.Reservoirs, LayoutIndexFirst)
	layer(OpenBoundariesFile, l.OpenBoundaries, LayoutPlain)
	layer(FlowPolygonsFile, l.FlowPolygons, LayoutPlain)
	layer(RainfallPolygonsFile, l.RainfallPolygons, LayoutPlain)
	if l.Friction != nil && l.Friction.HasValue {
		layer(FrictionFile, l.Friction, LayoutIndexFirst)
	} else {
		layer(FrictionFile, l.Friction, LayoutPlain)
	}

	if m.Discharge != nil {
		d := m.Discharge
		files = append(files, inputFile{FlowFile, func(w io.Writer) error { return writeSeries(w, "flow", d.Samples) }})
	}
	return files
}

func writeFile(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := render(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeSeries writes a time series table: a banner, the sample count, then
// one "seconds value" row per sample.
func writeSeries(w io.Writer, label string, samples []domain.Sample) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "* * *\n* * * %s * * *\n* * *\n", label)
	fmt.Fprintf(bw, "%d\n", len(samples))
	fmt.Fprintf(bw, "* * *\n")
	for _, s := range samples {
		fmt.Fprintf(bw, "%s %s\n", formatNumber(s.Time), formatNumber(s.Value))
	}
	return bw.Flush()
}

// Friction coefficients used where no friction polygons apply.
const (
	frictionImpermeable = 0.02
	frictionPermeable   = 0.035
)

type configXML struct {
	XMLName         xml.Name `xml:"CityCatConfiguration"`
	NumericalScheme int      `xml:"NumericalScheme"`
	TimeControl     struct {
		MaxInitTimeStep float64 `xml:"MaxInitTimeStep"`
		MinTimeStep     float64 `xml:"MinTimeStep"`
		MaxTimeStep     float64 `xml:"MaxTimeStep"`
		SimulationTime  float64 `xml:"SimulationTime"`
		OutputFrequency float64 `xml:"OutputFrequency"`
		ScalingFactor   float64 `xml:"ScalingFactor"`
	} `xml:"TimeControl"`
	RainfallData struct {
		Spatial bool `xml:"spatial,attr"`
		Zones   int  `xml:"zones,attr"`
	} `xml:"RainfallData"`
	IsSurfaceFlowBoundary    bool `xml:"IsSurfaceFlowBoundary"`
	IsOpenExternalBoundaries bool `xml:"IsOpenExternalBoundaries"`
	Infiltration             struct {
		Model           string `xml:"model,attr"`
		UseInfiltration bool   `xml:"useInfiltration,attr"`
		PermeableAreas  int    `xml:"PermeableAreas"`
		SpatialGreen    bool   `xml:"SpatialGreenAreas"`
	} `xml:"Infiltration"`
	RoofStorage          float64 `xml:"RoofStorage"`
	FrictionCoefficients struct {
		Impermeable float64 `xml:"Impermeable"`
		Permeable   float64 `xml:"Permeable"`
		Spatial     bool    `xml:"spatial,attr"`
	} `xml:"FrictionCoefficients"`
	InitialSurfaceWaterElevation bool `xml:"InitialSurfaceWaterElevation"`
}

func writeConfig(w io.Writer, m *domain.ModelConfiguration) error {
	p := m.Parameters
	var c configXML
	c.NumericalScheme = 2
	c.TimeControl.MaxInitTimeStep = 0.1
	c.TimeControl.MinTimeStep = 0.01
	c.TimeControl.MaxTimeStep = 5
	c.TimeControl.SimulationTime = p.DurationSec
	c.TimeControl.OutputFrequency = p.OutputIntervalSec
	c.TimeControl.ScalingFactor = 0.25
	c.RainfallData.Spatial = !m.Layers.RainfallPolygons.Empty()
	c.RainfallData.Zones = 1
	c.IsSurfaceFlowBoundary = m.Discharge != nil
	c.IsOpenExternalBoundaries = p.OpenBoundaries
	c.Infiltration.Model = "GreenAmpt"
	if !p.UseInfiltration {
		c.Infiltration.Model = "None"
	}
	c.Infiltration.UseInfiltration = p.UseInfiltration
	c.Infiltration.PermeableAreas = int(p.PermeableAreas)
	c.Infiltration.SpatialGreen = m.Layers.GreenAreas != nil && m.Layers.GreenAreas.HasValue
	c.RoofStorage = p.RoofStorage
	c.FrictionCoefficients.Impermeable = frictionImpermeable
	c.FrictionCoefficients.Permeable = frictionPermeable
	c.FrictionCoefficients.Spatial = !m.Layers.Friction.Empty()
	c.InitialSurfaceWaterElevation = !m.Layers.Reservoirs.Empty()

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}

// ReadConfig decodes the scalar parameters back from a configuration file.
func ReadConfig(path string) (domain.Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Parameters{}, fmt.Errorf("read configuration: %w", err)
	}
	var c configXML
	if err := xml.Unmarshal(data, &c); err != nil {
		return domain.Parameters{}, fmt.Errorf("%w: decode configuration: %v", domain.ErrFormat, err)
	}
	return domain.Parameters{
		DurationSec:       c.TimeControl.SimulationTime,
		OutputIntervalSec: c.TimeControl.OutputFrequency,
		OpenBoundaries:    c.IsOpenExternalBoundaries,
		UseInfiltration:   c.Infiltration.UseInfiltration,
		PermeableAreas:    domain.PermeableAreas(c.Infiltration.PermeableAreas),
		RoofStorage:       c.RoofStorage,
	}, nil
}
