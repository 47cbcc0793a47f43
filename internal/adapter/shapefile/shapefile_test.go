package shapefile

import (
	"path/filepath"
	"testing"

	"github.com/couchcryptid/citycat-pipeline/internal/domain"
	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(minX, minY, maxX, maxY float64) geom.Polygon {
	return domain.BoundingBox{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}.Polygon()
}

func TestLoadLayerValued(t *testing.T) {
	dir := t.TempDir()
	in := &domain.VectorLayer{
		Kind:     domain.LayerGreenAreas,
		HasValue: true,
		Features: []domain.Feature{
			{Geometry: box(0, 0, 10, 10), Value: 0.5},
			{Geometry: box(20, 20, 30, 30), Value: 1.5},
			{Geometry: box(900, 900, 910, 910), Value: 9},
		},
	}
	require.NoError(t, WriteLayer(filepath.Join(dir, "green.shp"), in))

	loader, err := NewLoader("")
	require.NoError(t, err)

	clip := &domain.BoundingBox{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100}
	layer, err := loader.LoadLayer(dir, domain.LayerGreenAreas, clip)
	require.NoError(t, err)
	require.NotNil(t, layer)

	assert.True(t, layer.HasValue)
	require.Len(t, layer.Features, 2)
	assert.Equal(t, 0.5, layer.Features[0].Value)
	assert.Equal(t, 1.5, layer.Features[1].Value)
	b := layer.Features[1].Geometry.Bounds()
	assert.Equal(t, 20.0, b.Min.X)
	assert.Equal(t, 30.0, b.Max.Y)
}

func TestLoadLayerPlain(t *testing.T) {
	dir := t.TempDir()
	in := &domain.VectorLayer{
		Kind:     domain.LayerBuildings,
		Features: []domain.Feature{{Geometry: box(0, 0, 1, 1)}, {Geometry: box(2, 2, 3, 3)}},
	}
	require.NoError(t, WriteLayer(filepath.Join(dir, "buildings.shp"), in))

	layer, err := (&Loader{}).LoadLayer(dir, domain.LayerBuildings, nil)
	require.NoError(t, err)
	assert.False(t, layer.HasValue)
	assert.Equal(t, 2, layer.Len())
}

func TestLoadLayerMissingDirectory(t *testing.T) {
	layer, err := (&Loader{}).LoadLayer(filepath.Join(t.TempDir(), "nope"), domain.LayerBuildings, nil)
	require.NoError(t, err)
	assert.Nil(t, layer)
	assert.True(t, layer.Empty())
}
