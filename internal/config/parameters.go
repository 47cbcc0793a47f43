package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/couchcryptid/citycat-pipeline/internal/domain"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// RunParameters are the per-run model settings. Durations are in hours
// except OutputInterval, which is in seconds. Size is the domain edge in km.
type RunParameters struct {
	RainfallMode      string  `koanf:"rainfall_mode"`
	TotalDepth        float64 `koanf:"total_depth"`
	Duration          float64 `koanf:"duration"`
	PostEventDuration float64 `koanf:"post_event_duration"`
	OutputInterval    float64 `koanf:"output_interval"`
	OpenBoundaries    bool    `koanf:"open_boundaries"`
	RoofStorage       float64 `koanf:"roof_storage"`
	PermeableAreas    string  `koanf:"permeable_areas"`
	Projection        int     `koanf:"projection"`
	GridProj          string  `koanf:"grid_proj"`
	Size              float64 `koanf:"size"`
	X                 float64 `koanf:"x"`
	Y                 float64 `koanf:"y"`
	ReturnPeriod      int     `koanf:"return_period"`
	TimeHorizon       string  `koanf:"time_horizon"`
	Discharge         float64 `koanf:"discharge"`
	NoData            float64 `koanf:"nodata"`

	// HasCenter is set when both X and Y were supplied.
	HasCenter bool `koanf:"-"`
}

// parameterKeys are the recognised keys. Environment variables are matched
// by their upper-case form.
var parameterKeys = []string{
	"rainfall_mode", "total_depth", "duration", "post_event_duration",
	"output_interval", "open_boundaries", "roof_storage", "permeable_areas",
	"projection", "grid_proj", "size", "x", "y", "return_period",
	"time_horizon", "discharge", "nodata",
}

// DefaultRunParameters returns the settings used when nothing overrides them.
func DefaultRunParameters() RunParameters {
	return RunParameters{
		RainfallMode:   string(domain.RainfallModeTotalDepth),
		TotalDepth:     40,
		Duration:       1,
		OutputInterval: 600,
		OpenBoundaries: true,
		PermeableAreas: "polygons",
		Projection:     27700,
		NoData:         -9999,
	}
}

// LoadRunParameters layers run settings, low -> high precedence:
//  1. defaults
//  2. environment (DURATION, TOTAL_DEPTH, ...)
//  3. YAML files in dir
//  4. PARAMETER,VALUE CSV files in dir
//
// A missing dir only skips the file layers.
func LoadRunParameters(dir string) (RunParameters, error) {
	k := koanf.New(".")

	known := make(map[string]bool, len(parameterKeys))
	for _, key := range parameterKeys {
		known[key] = true
	}
	envProvider := env.Provider("", ".", func(s string) string {
		s = strings.ToLower(s)
		if !known[s] {
			return ""
		}
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return RunParameters{}, fmt.Errorf("load parameter environment: %w", err)
	}

	yamlFiles, err := globAll(dir, "*.yaml", "*.yml")
	if err != nil {
		return RunParameters{}, err
	}
	for _, path := range yamlFiles {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return RunParameters{}, fmt.Errorf("%w: load %s: %v", domain.ErrConfiguration, filepath.Base(path), err)
		}
	}

	csvFiles, err := globAll(dir, "*.csv")
	if err != nil {
		return RunParameters{}, err
	}
	for _, path := range csvFiles {
		if err := k.Load(csvProvider{path: path, known: known}, nil); err != nil {
			return RunParameters{}, fmt.Errorf("%w: load %s: %v", domain.ErrConfiguration, filepath.Base(path), err)
		}
	}

	p := DefaultRunParameters()
	if err := k.UnmarshalWithConf("", &p, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return RunParameters{}, fmt.Errorf("%w: decode run parameters: %v", domain.ErrConfiguration, err)
	}
	p.HasCenter = k.Exists("x") && k.Exists("y")
	p.RainfallMode = strings.ToLower(strings.TrimSpace(p.RainfallMode))

	if err := p.Validate(); err != nil {
		return RunParameters{}, err
	}
	return p, nil
}

func globAll(dir string, patterns ...string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	var out []string
	for _, pat := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pat))
		if err != nil {
			return nil, fmt.Errorf("list parameter files: %w", err)
		}
		out = append(out, matches...)
	}
	sort.Strings(out)
	return out, nil
}

// Validate checks ranges and mode-dependent requirements.
func (p RunParameters) Validate() error {
	var errs []error
	if p.Duration <= 0 {
		errs = append(errs, errors.New("duration must be positive"))
	}
	if p.OutputInterval <= 0 {
		errs = append(errs, errors.New("output interval must be positive"))
	}
	if p.PostEventDuration < 0 {
		errs = append(errs, errors.New("post-event duration must not be negative"))
	}
	if p.RoofStorage < 0 {
		errs = append(errs, errors.New("roof storage must not be negative"))
	}
	if p.Discharge < 0 {
		errs = append(errs, errors.New("discharge must not be negative"))
	}
	if _, err := domain.ParsePermeableAreas(p.PermeableAreas); err != nil {
		errs = append(errs, err)
	}
	switch domain.RainfallMode(p.RainfallMode) {
	case domain.RainfallModeTotalDepth:
		if p.TotalDepth <= 0 {
			errs = append(errs, errors.New("total depth must be positive"))
		}
	case domain.RainfallModeReturnPeriod:
		if p.ReturnPeriod <= 0 {
			errs = append(errs, errors.New("return period mode needs RETURN_PERIOD"))
		}
		if p.TimeHorizon == "" {
			errs = append(errs, errors.New("return period mode needs TIME_HORIZON"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown rainfall mode %q", p.RainfallMode))
	}
	if p.Size < 0 {
		errs = append(errs, errors.New("size must not be negative"))
	}
	if p.Projection <= 0 {
		errs = append(errs, errors.New("projection must be a positive EPSG code"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// SizeMetres is the domain edge length in metres.
func (p RunParameters) SizeMetres() float64 { return p.Size * 1000 }

// TotalDurationSec covers the storm plus the post-event period.
func (p RunParameters) TotalDurationSec() float64 {
	return 3600*p.Duration + 3600*p.PostEventDuration
}

// ModelParameters converts the run settings to the solver scalars.
func (p RunParameters) ModelParameters() (domain.Parameters, error) {
	perm, err := domain.ParsePermeableAreas(p.PermeableAreas)
	if err != nil {
		return domain.Parameters{}, err
	}
	return domain.Parameters{
		DurationSec:       p.TotalDurationSec(),
		OutputIntervalSec: p.OutputInterval,
		OpenBoundaries:    p.OpenBoundaries,
		UseInfiltration:   true,
		PermeableAreas:    perm,
		RoofStorage:       p.RoofStorage,
	}, nil
}

// Descriptor fills the run summary fields known before inputs are read.
func (p RunParameters) Descriptor() domain.RunDescriptor {
	d := domain.RunDescriptor{
		RainfallMode:    domain.RainfallMode(p.RainfallMode),
		RainfallTotalMM: p.TotalDepth,
		DurationHours:   p.Duration,
		PostEventHours:  p.PostEventDuration,
		OpenBoundaries:  p.OpenBoundaries,
		PermeableAreas:  p.PermeableAreas,
		RoofStorage:     p.RoofStorage,
		ReturnPeriod:    p.ReturnPeriod,
		TimeHorizon:     p.TimeHorizon,
		Discharge:       p.Discharge,
		ProjectionEPSG:  p.Projection,
	}
	if p.Size > 0 {
		d.Size = p.SizeMetres()
	}
	if p.HasCenter {
		d.X, d.Y = p.X, p.Y
	}
	return d
}

// WriteRecord writes the resolved settings as PARAMETER,VALUE rows.
// Optional settings appear only when set.
func (p RunParameters) WriteRecord(w io.Writer) error {
	cw := csv.NewWriter(w)
	rows := [][]string{
		{"PARAMETER", "VALUE"},
		{"RAINFALL_MODE", p.RainfallMode},
		{"OPEN_BOUNDARIES", strconv.FormatBool(p.OpenBoundaries)},
		{"ROOF_STORAGE", formatFloat(p.RoofStorage)},
		{"POST_EVENT_DURATION", formatFloat(p.PostEventDuration)},
		{"OUTPUT_INTERVAL", formatFloat(p.OutputInterval)},
	}
	if p.Size > 0 {
		rows = append(rows, []string{"SIZE", formatFloat(p.SizeMetres())})
	}
	if p.HasCenter {
		rows = append(rows, []string{"X", formatFloat(p.X)}, []string{"Y", formatFloat(p.Y)})
	}
	if p.TimeHorizon != "" {
		rows = append(rows, []string{"TIME_HORIZON", p.TimeHorizon})
	}
	if p.ReturnPeriod > 0 {
		rows = append(rows, []string{"RETURN_PERIOD", strconv.Itoa(p.ReturnPeriod)})
	}
	rows = append(rows, []string{"DISCHARGE", formatFloat(p.Discharge)})
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write parameter record: %w", err)
	}
	return nil
}

// WriteRecordFile writes the parameter record to path, creating parents.
func (p RunParameters) WriteRecordFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parameter record dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parameter record: %w", err)
	}
	if err := p.WriteRecord(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// csvProvider reads PARAMETER,VALUE files as a flat koanf map. Unknown
// parameter names are ignored.
type csvProvider struct {
	path  string
	known map[string]bool
}

func (c csvProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("csv parameter provider does not support this method")
}

func (c csvProvider) Read() (map[string]any, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	out := map[string]any{}
	for i, rec := range records {
		if len(rec) < 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(rec[0]))
		if i == 0 && key == "parameter" {
			continue
		}
		if c.known[key] {
			out[key] = strings.TrimSpace(rec[1])
		}
	}
	return out, nil
}
