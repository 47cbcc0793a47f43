package rainfall

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/citycat-pipeline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadProfile(t *testing.T) {
	t.Run("headerless", func(t *testing.T) {
		s, err := ReadProfile(strings.NewReader("0,0\n600,0.00001\n1200,0\n"))
		require.NoError(t, err)
		assert.Equal(t, domain.RainfallVerbatim, s.Source)
		assert.Equal(t, []float64{0, 600, 1200}, s.Times())
		assert.Equal(t, 0.00001, s.Values()[1])
	})

	t.Run("header row skipped", func(t *testing.T) {
		s, err := ReadProfile(strings.NewReader("time,rate\n0,1\n60,2\n"))
		require.NoError(t, err)
		assert.Len(t, s.Samples, 2)
	})

	for name, src := range map[string]string{
		"empty":        "",
		"one column":   "0\n",
		"bad value":    "0,1\n60,x\n",
		"out of order": "60,1\n0,1\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadProfile(strings.NewReader(src))
			assert.ErrorIs(t, err, domain.ErrFormat)
		})
	}
}

func TestReadProfileFile(t *testing.T) {
	dir := t.TempDir()
	_, ok, err := ReadProfileFile(dir)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ProfileFile), []byte("0,1\n10,0\n"), 0o644))
	s, ok, err := ReadProfileFile(dir)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, s.Samples, 2)
}

const upliftGrid = `Return levels and uplifts, 5km grid
easting,northing,ReturnLevel.100,ReturnLevel.30,Uplift_50
2500,2500,40,30,20
7500,2500,60,45,40
`

func TestReadUplift(t *testing.T) {
	cells, err := ReadUplift(strings.NewReader(upliftGrid), 100)
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, domain.UpliftCell{Easting: 2500, Northing: 2500, ReturnLevel: 40, Uplift50: 20}, cells[0])

	cells, err = ReadUplift(strings.NewReader(upliftGrid), 30)
	require.NoError(t, err)
	assert.Equal(t, 45.0, cells[1].ReturnLevel)

	_, err = ReadUplift(strings.NewReader(upliftGrid), 50)
	assert.ErrorIs(t, err, domain.ErrFormat)

	_, err = ReadUplift(strings.NewReader("banner\neasting,northing,ReturnLevel.100\n1,2,x\n"), 100)
	assert.ErrorIs(t, err, domain.ErrFormat)

	_, err = ReadUplift(strings.NewReader("banner only\n"), 100)
	assert.ErrorIs(t, err, domain.ErrFormat)
}

func TestReadUpliftFile(t *testing.T) {
	inputs := t.TempDir()
	_, err := ReadUpliftFile(inputs, "2080", 1, 100)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	dir := filepath.Join(inputs, UpliftDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Uplift_2050_1hr_Pr_100yrRL_Grid.csv"), []byte(upliftGrid), 0o644))

	cells, err := ReadUpliftFile(inputs, domain.BaselineHorizon, 1, 100)
	require.NoError(t, err)
	depth, uplift, err := domain.ReturnPeriodDepth(cells, domain.BoundingBox{MinX: 4000, MinY: 0, MaxX: 6000, MaxY: 1000}, nil, "2050")
	require.NoError(t, err)
	assert.InDelta(t, 50*1.3, depth, 1e-9)
	assert.InDelta(t, 30.0, uplift, 1e-9)
}
