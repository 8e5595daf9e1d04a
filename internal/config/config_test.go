// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/edu-pipeline/pkg/types"
)

// chdir runs the test from an empty directory so no stray config file or
// .env is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	t.Setenv("HOME", dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdir(t)

	cfg, used, err := Load(NewViper(""))
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, Defaults(), cfg)
	require.NoError(t, Validate(cfg))
}

func TestLoadFile(t *testing.T) {
	dir := chdir(t)
	yaml := `
extraction:
  base_url: https://sdmx.oecd.org/public/rest/data/
  request_delay: 250ms
  datasets:
    - name: enrollment
      code: EDU_ENRL_V2
      params:
        startPeriod: "2010"
database:
  driver: pgx
  dsn: postgres://edu@localhost/edu
  tables:
    enrollment: enrl
dashboard:
  default_year: 2019
schedule: 24h
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, Name+".yaml"), []byte(yaml), 0o644))

	cfg, used, err := Load(NewViper(""))
	require.NoError(t, err)
	assert.Equal(t, Name+".yaml", filepath.Base(used))

	assert.Equal(t, "https://sdmx.oecd.org/public/rest/data/", cfg.Extraction.BaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Extraction.RequestDelay)
	require.Len(t, cfg.Extraction.Datasets, 1)
	assert.Equal(t, "EDU_ENRL_V2", cfg.Extraction.Datasets[0].Code)
	assert.Equal(t, map[string]string{"startPeriod": "2010"}, cfg.Extraction.Datasets[0].Params)
	assert.Equal(t, types.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "enrl", cfg.Database.Tables.Enrollment)
	assert.Equal(t, "graduation_data", cfg.Database.Tables.Graduation, "unset keys keep defaults")
	assert.Equal(t, 2019, cfg.Dashboard.DefaultYear)
	assert.Equal(t, 24*time.Hour, cfg.Schedule)
	assert.Equal(t, 30*time.Second, cfg.Extraction.Timeout)
	require.NoError(t, Validate(cfg))
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t)
	t.Setenv("EDU_PIPELINE_DATABASE_SQLITE_PATH", "/tmp/edu.db")
	t.Setenv("EDU_PIPELINE_DASHBOARD_ADDR", ":9000")
	t.Setenv("EDU_PIPELINE_DASHBOARD_DEFAULT_COUNTRIES", "CAN,AUS")
	t.Setenv("EDU_PIPELINE_EXTRACTION_REQUEST_DELAY", "2s")
	t.Setenv("EDU_PIPELINE_LOGGING_LEVEL", "debug")

	cfg, _, err := Load(NewViper(""))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/edu.db", cfg.Database.SQLitePath)
	assert.Equal(t, ":9000", cfg.Dashboard.Addr)
	assert.Equal(t, []string{"CAN", "AUS"}, cfg.Dashboard.DefaultCountries)
	assert.Equal(t, 2*time.Second, cfg.Extraction.RequestDelay)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	dir := chdir(t)
	_, _, err := Load(NewViper(filepath.Join(dir, "nope.yaml")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config")
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extraction: [unclosed"), 0o644))
	_, _, err := Load(NewViper(path))
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, LoadDotEnv(filepath.Join(dir, ".env")), "missing file is ignored")

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("EDU_PIPELINE_DASHBOARD_DEFAULT_YEAR=2015\n"), 0o644))
	t.Setenv("EDU_PIPELINE_DASHBOARD_DEFAULT_YEAR", "")
	os.Unsetenv("EDU_PIPELINE_DASHBOARD_DEFAULT_YEAR")

	require.NoError(t, LoadDotEnv(path))
	cfg, _, err := Load(NewViper(""))
	require.NoError(t, err)
	assert.Equal(t, 2015, cfg.Dashboard.DefaultYear)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*types.PipelineConfig)
		wantErr string
	}{
		{"defaults", func(*types.PipelineConfig) {}, ""},
		{"bad base url", func(c *types.PipelineConfig) { c.Extraction.BaseURL = "not a url" }, "BaseURL"},
		{"no datasets", func(c *types.PipelineConfig) { c.Extraction.Datasets = nil }, "Datasets"},
		{"unknown dataset", func(c *types.PipelineConfig) { c.Extraction.Datasets[0].Name = "budget" }, "Name"},
		{"year range inverted", func(c *types.PipelineConfig) { c.Transform.MaxYear = 1999 }, "MaxYear"},
		{"unknown driver", func(c *types.PipelineConfig) { c.Database.Driver = "mysql" }, "Driver"},
		{"pgx without dsn", func(c *types.PipelineConfig) { c.Database.Driver = types.DriverPostgres }, "DSN"},
		{"archive without bucket", func(c *types.PipelineConfig) {
			c.Archive.Endpoint = "localhost:9000"
			c.Archive.Bucket = ""
		}, "Bucket"},
		{"file logger without path", func(c *types.PipelineConfig) {
			c.Logging.Type = "file"
			c.Logging.FilePath = ""
		}, "FilePath"},
		{"bad sample ratio", func(c *types.PipelineConfig) { c.Telemetry.SampleRatio = 2 }, "SampleRatio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
