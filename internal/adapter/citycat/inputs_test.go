package citycat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/citycat-pipeline/internal/adapter/asciigrid"
	"github.com/couchcryptid/citycat-pipeline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModel(t *testing.T) *domain.ModelConfiguration {
	t.Helper()
	dem := domain.NewGrid(domain.Georeference{NCols: 4, NRows: 3, XLL: 1000, YLL: 2000, CellSize: 5}, -9999)
	for i := range dem.Data {
		dem.Data[i] = float64(10 + i)
	}
	rain, err := domain.SynthesizeRainfall(3600, 40)
	require.NoError(t, err)
	return &domain.ModelConfiguration{
		Domain:    dem.Bounds(),
		Elevation: dem,
		Rainfall:  rain,
		Layers: domain.Layers{
			Buildings: &domain.VectorLayer{
				Kind:     domain.LayerBuildings,
				Features: []domain.Feature{{Geometry: unitSquare(1001, 2001)}},
			},
		},
		Parameters: domain.Parameters{
			DurationSec:       7200,
			OutputIntervalSec: 600,
			OpenBoundaries:    true,
			UseInfiltration:   true,
			PermeableAreas:    domain.PermeableAll,
			RoofStorage:       0.05,
		},
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestWriteInputs(t *testing.T) {
	target := filepath.Join(t.TempDir(), "run")
	m := testModel(t)

	manifest, err := WriteInputs(target, m)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{DEMFile, RainfallFile, ConfigFile, BuildingsFile, ManifestFile}, listDir(t, target))
	require.Len(t, manifest.Files, 4)
	require.NoError(t, VerifyManifest(target))

	dem, err := asciigrid.ReadFile(filepath.Join(target, DEMFile))
	require.NoError(t, err)
	assert.Equal(t, m.Elevation.Data, dem.Data)
	assert.True(t, dem.SameShape(m.Elevation.Georeference))

	rain, err := os.ReadFile(filepath.Join(target, RainfallFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(rain)), "\n")
	assert.Equal(t, "15", lines[3])
	assert.Equal(t, "3602 0", lines[len(lines)-1])

	params, err := ReadConfig(filepath.Join(target, ConfigFile))
	require.NoError(t, err)
	assert.Equal(t, m.Parameters, params)

	siblings := listDir(t, filepath.Dir(target))
	assert.Equal(t, []string{"run"}, siblings, "staging directory must be gone")
}

func TestWriteInputsLayerFiles(t *testing.T) {
	m := testModel(t)
	sq := unitSquare(1002, 2002)
	m.Layers.GreenAreas = &domain.VectorLayer{Kind: domain.LayerGreenAreas, HasValue: true, Features: []domain.Feature{{Geometry: sq, Value: 1}}}
	m.Layers.Reservoirs = &domain.VectorLayer{Kind: domain.LayerReservoirs, HasValue: true, Features: []domain.Feature{{Geometry: sq, Value: 11.5}}}
	m.Layers.FlowPolygons = &domain.VectorLayer{Kind: domain.LayerFlowPolygons, Features: []domain.Feature{{Geometry: sq}}}
	m.Layers.OpenBoundaries = &domain.VectorLayer{Kind: domain.LayerOpenBoundaries}
	d, err := domain.NewConstantDischarge(10, 7200, domain.DefaultFlowCellWidth)
	require.NoError(t, err)
	m.Discharge = &d

	target := filepath.Join(t.TempDir(), "run")
	_, err = WriteInputs(target, m)
	require.NoError(t, err)

	names := listDir(t, target)
	assert.Contains(t, names, SpatialGreenFile)
	assert.NotContains(t, names, GreenAreasFile)
	assert.Contains(t, names, ReservoirsFile)
	assert.Contains(t, names, FlowPolygonsFile)
	assert.Contains(t, names, FlowFile)
	assert.NotContains(t, names, FrictionFile)

	empty, err := os.ReadFile(filepath.Join(target, OpenBoundariesFile))
	require.NoError(t, err)
	assert.Empty(t, empty)

	res, err := os.ReadFile(filepath.Join(target, ReservoirsFile))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(res), "1\n1 11.5 5 "))

	flow, err := os.ReadFile(filepath.Join(target, FlowFile))
	require.NoError(t, err)
	assert.Contains(t, string(flow), "0 2\n7200 2\n")
}

func TestWriteInputsRejectsNonEmptyTarget(t *testing.T) {
	target := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(target, "stale.txt"), []byte("x"), 0o644))

	_, err := WriteInputs(target, testModel(t))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Equal(t, []string{"stale.txt"}, listDir(t, target))
}

func TestWriteInputsInvalidModelWritesNothing(t *testing.T) {
	parent := t.TempDir()
	m := testModel(t)
	m.Elevation = nil

	_, err := WriteInputs(filepath.Join(parent, "run"), m)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Empty(t, listDir(t, parent))
}

func TestWriteInputsIntoEmptyDirectory(t *testing.T) {
	target := t.TempDir()
	_, err := WriteInputs(target, testModel(t))
	require.NoError(t, err)
	assert.Contains(t, listDir(t, target), DEMFile)
}

func TestVerifyManifestDetectsTampering(t *testing.T) {
	target := filepath.Join(t.TempDir(), "run")
	_, err := WriteInputs(target, testModel(t))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(target, BuildingsFile), []byte("0\n"), 0o644))
	assert.ErrorIs(t, VerifyManifest(target), domain.ErrDataIntegrity)

	require.NoError(t, os.Remove(filepath.Join(target, BuildingsFile)))
	assert.ErrorIs(t, VerifyManifest(target), domain.ErrDataIntegrity)
}
