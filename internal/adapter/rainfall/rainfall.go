// Package rainfall reads the tabular rainfall inputs: a verbatim time/value
// profile and the gridded return-level and uplift tables.
package rainfall

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/citycat-pipeline/internal/domain"
)

// ProfileFile is the optional verbatim rainfall table in the inputs directory.
const ProfileFile = "rainfall_data.csv"

// UpliftDir holds the return-level grids under the inputs directory.
const UpliftDir = "future-drainage"

// ReadProfile parses "time,value" rows. Times are seconds from the start of
// the storm, values are rainfall rates. A non-numeric first row is treated as
// a header.
func ReadProfile(r io.Reader) (domain.RainfallSeries, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return domain.RainfallSeries{}, fmt.Errorf("%w: read rainfall profile: %v", domain.ErrFormat, err)
	}

	samples := make([]domain.Sample, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return domain.RainfallSeries{}, fmt.Errorf("%w: rainfall row %d has %d columns, want 2", domain.ErrFormat, i+1, len(row))
		}
		t, errT := strconv.ParseFloat(strings.TrimSpace(row[0]), 64)
		v, errV := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if errT != nil || errV != nil {
			if i == 0 {
				continue
			}
			return domain.RainfallSeries{}, fmt.Errorf("%w: rainfall row %d is not numeric", domain.ErrFormat, i+1)
		}
		samples = append(samples, domain.Sample{Time: t, Value: v})
	}
	return domain.VerbatimRainfall(samples)
}

// ReadProfileFile reads inputs/rainfall_data.csv. ok is false when the file
// does not exist.
func ReadProfileFile(inputsDir string) (series domain.RainfallSeries, ok bool, err error) {
	f, err := os.Open(filepath.Join(inputsDir, ProfileFile))
	if errors.Is(err, os.ErrNotExist) {
		return domain.RainfallSeries{}, false, nil
	}
	if err != nil {
		return domain.RainfallSeries{}, false, fmt.Errorf("open rainfall profile: %w", err)
	}
	defer f.Close()

	series, err = ReadProfile(f)
	if err != nil {
		return domain.RainfallSeries{}, false, err
	}
	return series, true, nil
}

// ReadUplift parses a return-level grid. The first line is a banner; the
// second holds the column names, which must include easting, northing and
// ReturnLevel.<returnPeriod>. Uplift_50 is optional.
func ReadUplift(r io.Reader, returnPeriod int) ([]domain.UpliftCell, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: read uplift grid: %v", domain.ErrFormat, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: uplift grid has no header", domain.ErrFormat)
	}

	cols := map[string]int{}
	for i, h := range rows[1] {
		cols[strings.TrimSpace(h)] = i
	}
	level := "ReturnLevel." + strconv.Itoa(returnPeriod)
	var idx [4]int
	for i, name := range []string{"easting", "northing", level, "Uplift_50"} {
		c, ok := cols[name]
		if !ok {
			if name == "Uplift_50" {
				idx[i] = -1
				continue
			}
			return nil, fmt.Errorf("%w: uplift grid has no %s column", domain.ErrFormat, name)
		}
		idx[i] = c
	}

	cells := make([]domain.UpliftCell, 0, len(rows)-2)
	for n, row := range rows[2:] {
		var vals [4]float64
		for i, c := range idx {
			if c < 0 {
				continue
			}
			if c >= len(row) {
				return nil, fmt.Errorf("%w: uplift row %d is short", domain.ErrFormat, n+3)
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[c]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: uplift row %d: %v", domain.ErrFormat, n+3, err)
			}
			vals[i] = v
		}
		cells = append(cells, domain.UpliftCell{
			Easting:     vals[0],
			Northing:    vals[1],
			ReturnLevel: vals[2],
			Uplift50:    vals[3],
		})
	}
	return cells, nil
}

// ReadUpliftFile reads the grid matching horizon, duration and return
// period from inputs/future-drainage. A missing file is a configuration
// error.
func ReadUpliftFile(inputsDir, horizon string, durationHours, returnPeriod int) ([]domain.UpliftCell, error) {
	name := domain.UpliftFileName(horizon, durationHours, returnPeriod)
	f, err := os.Open(filepath.Join(inputsDir, UpliftDir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: return-level grid %s not found", domain.ErrConfiguration, name)
	}
	if err != nil {
		return nil, fmt.Errorf("open uplift grid: %w", err)
	}
	defer f.Close()
	return ReadUplift(f, returnPeriod)
}
