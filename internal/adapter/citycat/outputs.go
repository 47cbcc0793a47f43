package citycat

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/couchcryptid/citycat-pipeline/internal/domain"
)

// Solver output locations, relative to the run directory.
const (
	SurfaceMapsDir = "R1C1_SurfaceMaps"
	MaxDepthFile   = "R1_C1_max_depth.csv"
)

var timestepName = regexp.MustCompile(`^R1_C1_T(\d+)_(\d+(?:\.\d+)?)min\.csv$`)

// ReadTable parses a solver CSV table. The first two columns are the cell
// centre XCen and YCen; the remaining header names become value columns.
func ReadTable(r io.Reader) (domain.CellTable, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return domain.CellTable{}, fmt.Errorf("%w: read table header: %v", domain.ErrFormat, err)
	}
	if len(header) < 3 || !strings.EqualFold(header[0], "XCen") || !strings.EqualFold(header[1], "YCen") {
		return domain.CellTable{}, fmt.Errorf("%w: unexpected table header %v", domain.ErrFormat, header)
	}
	t := domain.CellTable{Columns: append([]string(nil), header[2:]...)}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.CellTable{}, fmt.Errorf("%w: table line %d: %v", domain.ErrFormat, line, err)
		}
		vals := make([]float64, len(rec))
		for i, s := range rec {
			if vals[i], err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
				return domain.CellTable{}, fmt.Errorf("%w: table line %d column %d: %v", domain.ErrFormat, line, i+1, err)
			}
		}
		t.Rows = append(t.Rows, domain.CellRow{X: vals[0], Y: vals[1], Values: vals[2:]})
	}
	return t, nil
}

// ReadTableFile opens and parses one solver table.
func ReadTableFile(path string) (domain.CellTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.CellTable{}, fmt.Errorf("open output table: %w", err)
	}
	defer f.Close()

	t, err := ReadTable(f)
	if err != nil {
		return t, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// ReadTimesteps loads every per-timestep table in dir. The elapsed time is
// taken from the minutes in the file name.
func ReadTimesteps(dir string) ([]domain.Timestep, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list solver outputs: %w", err)
	}
	var steps []domain.Timestep
	for _, e := range entries {
		m := timestepName.FindStringSubmatch(e.Name())
		if m == nil || e.IsDir() {
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		minutes, _ := strconv.ParseFloat(m[2], 64)
		t, err := ReadTableFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		steps = append(steps, domain.Timestep{Index: idx, Time: minutes * 60, Table: t})
	}
	return steps, nil
}

// ReadMaxDepth loads the solver's maximum depth summary table.
func ReadMaxDepth(dir string) (domain.CellTable, error) {
	return ReadTableFile(filepath.Join(dir, MaxDepthFile))
}
