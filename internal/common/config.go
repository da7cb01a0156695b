// Package common provides shared utilities for the solqc applications.
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds common configuration for all applications.
type Config struct {
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	DataDir            string
	LogLevel           string
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ClickHouseHost:     getEnv("CLICKHOUSE_HOST", "localhost"),
		ClickHousePort:     getEnvInt("CLICKHOUSE_PORT", 9000),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "solqc"),
		ClickHouseUser:     getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
		DataDir:            getEnv("SOLQC_DATA_DIR", "/var/lib/solqc"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}

// RawDataDir returns the directory holding raw station CSV files.
func (c *Config) RawDataDir() string {
	return filepath.Join(c.DataDir, "raw_data")
}

// TOADataDir returns the directory holding extraterrestrial files.
func (c *Config) TOADataDir() string {
	return filepath.Join(c.DataDir, "toa")
}

// ClearSkyDataDir returns the directory holding clear-sky files.
func (c *Config) ClearSkyDataDir() string {
	return filepath.Join(c.DataDir, "clear_sky")
}

// OutputDir returns the directory for derived tables and reports.
func (c *Config) OutputDir() string {
	return filepath.Join(c.DataDir, "output")
}

// StationsFile returns the default stations metadata path.
func (c *Config) StationsFile() string {
	return filepath.Join(c.DataDir, "stations.yaml")
}

// StationFiles returns the conventional input paths for a station.
func (c *Config) StationFiles(station string) (raw, toa, clearSky string) {
	raw = filepath.Join(c.RawDataDir(), station+".csv")
	toa = filepath.Join(c.TOADataDir(), station+"toa.csv")
	clearSky = filepath.Join(c.ClearSkyDataDir(), station+"clear.txt")
	return raw, toa, clearSky
}

// StationInfo is the metadata of one measurement station.
type StationInfo struct {
	ID        int     `yaml:"id"`
	Longitude float64 `yaml:"lon"`
	Latitude  float64 `yaml:"lat"`
	Altitude  float64 `yaml:"hgt"`
}

// LoadStations reads the stations metadata file (station name -> info).
func LoadStations(path string) (map[string]StationInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	stations := make(map[string]StationInfo)
	if err := yaml.Unmarshal(data, &stations); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return stations, nil
}

// ResolveStation looks up a station in the metadata file. A missing
// file just means no metadata is available; a file that exists but
// does not list the station is a configuration error.
func ResolveStation(path, name string) (StationInfo, bool, error) {
	stations, err := LoadStations(path)
	if err != nil {
		if os.IsNotExist(err) {
			return StationInfo{}, false, nil
		}
		return StationInfo{}, false, err
	}
	info, ok := stations[name]
	if !ok {
		return StationInfo{}, false, fmt.Errorf("station %q not listed in %s", name, path)
	}
	return info, true, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
