// Package citycat reads and writes the file formats exchanged with the
// CityCAT solver and runs the solver process.
package citycat

import (
	"io"
	"strconv"
	"strings"

	"github.com/couchcryptid/citycat-pipeline/internal/domain"
	"github.com/ctessum/geom"
)

// Layout selects where the feature index and value go in a polygon record.
type Layout int

const (
	// LayoutPlain writes vertices only: n x1 y1 ... xn yn.
	LayoutPlain Layout = iota
	// LayoutIndexFirst writes idx value n x1 y1 ... xn yn.
	LayoutIndexFirst
)

// Serialize encodes a layer in the solver's polygon text format. The
// document starts with the record count; each ring of each feature is one
// record and the rings of a feature share its 1-based index and value.
// Values are written only for valued layers. An empty layer yields an empty
// document.
func Serialize(w io.Writer, layer *domain.VectorLayer, layout Layout) error {
	if layer.Empty() {
		return nil
	}

	var b strings.Builder
	records := 0
	for i, f := range layer.Features {
		if f.Geometry == nil {
			continue
		}
		for _, poly := range f.Geometry.Polygons() {
			for _, ring := range poly {
				if len(ring) == 0 {
					continue
				}
				writeRecord(&b, closeRing(ring), i+1, f.Value, layer.HasValue, layout)
				records++
			}
		}
	}

	if _, err := io.WriteString(w, strconv.Itoa(records)+"\n"); err != nil {
		return err
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeRecord(b *strings.Builder, ring []geom.Point, index int, value float64, hasValue bool, layout Layout) {
	prefix := func() {
		b.WriteString(strconv.Itoa(index))
		b.WriteByte(' ')
		if hasValue {
			b.WriteString(formatNumber(value))
			b.WriteByte(' ')
		}
	}

	if layout == LayoutIndexFirst {
		prefix()
	}
	b.WriteString(strconv.Itoa(len(ring)))
	for _, p := range ring {
		b.WriteByte(' ')
		b.WriteString(formatNumber(p.X))
		b.WriteByte(' ')
		b.WriteString(formatNumber(p.Y))
	}
	b.WriteByte('\n')
}

// closeRing returns ring with its first vertex repeated at the end.
func closeRing(ring []geom.Point) []geom.Point {
	if ring[0] == ring[len(ring)-1] {
		return ring
	}
	out := make([]geom.Point, len(ring)+1)
	copy(out, ring)
	out[len(ring)] = ring[0]
	return out
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
