package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("SOLQC_DATA_DIR", "/tmp/solqc-test")
	t.Setenv("CLICKHOUSE_DATABASE", "")
	t.Setenv("CLICKHOUSE_PORT", "")

	cfg := DefaultConfig()
	assert.Equal(t, "/tmp/solqc-test", cfg.DataDir)
	assert.Equal(t, "solqc", cfg.ClickHouseDatabase)
	assert.Equal(t, 9000, cfg.ClickHousePort)
}

func TestStationFiles(t *testing.T) {
	cfg := &Config{DataDir: "/data"}

	raw, toa, clearSky := cfg.StationFiles("Aas")
	assert.Equal(t, "/data/raw_data/Aas.csv", raw)
	assert.Equal(t, "/data/toa/Aastoa.csv", toa)
	assert.Equal(t, "/data/clear_sky/Aasclear.txt", clearSky)
}

func TestLoadStations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.yaml")
	content := `Aas:
  id: 17850
  lon: 10.781
  lat: 59.660
  hgt: 93.3
Apelsvoll:
  id: 11500
  lon: 10.870
  lat: 60.700
  hgt: 264.0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	stations, err := LoadStations(path)
	require.NoError(t, err)
	require.Len(t, stations, 2)

	aas := stations["Aas"]
	assert.Equal(t, 17850, aas.ID)
	assert.InDelta(t, 59.660, aas.Latitude, 1e-9)
	assert.InDelta(t, 93.3, aas.Altitude, 1e-9)
}

func TestLoadStationsMissingFile(t *testing.T) {
	_, err := LoadStations("/nonexistent/stations.yaml")
	assert.Error(t, err)
}

func TestResolveStation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.yaml")
	content := `Aas:
  id: 17850
  lon: 10.781
  lat: 59.660
  hgt: 93.3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	info, ok, err := ResolveStation(path, "Aas")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 17850, info.ID)
	assert.InDelta(t, 59.660, info.Latitude, 1e-9)
}

func TestResolveStationUnknown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Aas:\n  id: 1\n"), 0644))

	_, _, err := ResolveStation(path, "Nowhere")
	assert.ErrorContains(t, err, "Nowhere")
}

func TestResolveStationNoMetadataFile(t *testing.T) {
	_, ok, err := ResolveStation(filepath.Join(t.TempDir(), "stations.yaml"), "Aas")
	require.NoError(t, err)
	assert.False(t, ok)
}
