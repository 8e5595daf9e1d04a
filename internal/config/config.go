// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads the pipeline configuration from defaults, an
// optional edu-pipeline.yaml file, a .env file, and EDU_PIPELINE_*
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/pdiddy/edu-pipeline/internal/extract"
	"github.com/pdiddy/edu-pipeline/internal/store"
	"github.com/pdiddy/edu-pipeline/pkg/types"
)

const (
	// EnvPrefix prefixes every environment override, e.g.
	// EDU_PIPELINE_DATABASE_DRIVER.
	EnvPrefix = "EDU_PIPELINE"

	// Name is the config file base name searched in ./ and
	// ~/.config/edu-pipeline/.
	Name = "edu-pipeline"

	DefaultBaseURL = "https://stats.oecd.org/SDMX-JSON/data/"
)

// Defaults returns the configuration used when nothing is overridden.
func Defaults() types.PipelineConfig {
	return types.PipelineConfig{
		Extraction: types.ExtractionConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   30 * time.Second,
				UserAgent: "edu-pipeline/0.1",
			},
			BaseURL:      DefaultBaseURL,
			Datasets:     extract.DefaultDatasets(),
			RequestDelay: time.Second,
			RawDir:       filepath.Join("data", "raw"),
		},
		Transform: types.TransformConfig{
			ProcessedDir: filepath.Join("data", "processed"),
			MinYear:      2000,
			MaxYear:      2023,
		},
		Database: types.DatabaseConfig{
			Driver:          types.DriverSQLite,
			SQLitePath:      filepath.Join("data", "education.db"),
			Tables:          store.DefaultTables(),
			MaxOpenConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Dashboard: types.DashboardConfig{
			Addr:             ":8501",
			DefaultYear:      2022,
			DefaultCountries: []string{"USA", "GBR", "DEU", "FRA", "JPN"},
		},
		Archive: types.ArchiveConfig{
			Bucket: "edu-pipeline",
			Prefix: "snapshots",
		},
		Logging: types.LoggingConfig{
			Type:       "console",
			Level:      "info",
			Format:     "text",
			FilePath:   filepath.Join("logs", "edu-pipeline.log"),
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Telemetry: types.TelemetryConfig{
			ServiceName: Name,
			Protocol:    "grpc",
			SampleRatio: 1,
		},
	}
}

// NewViper returns a viper instance with the search paths, environment
// binding and defaults configured. cfgFile overrides the search.
func NewViper(cfgFile string) *viper.Viper {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", Name))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, Defaults())
	return v
}

// setDefaults registers every leaf key so AutomaticEnv can override it
// during Unmarshal.
func setDefaults(v *viper.Viper, d types.PipelineConfig) {
	e := d.Extraction
	v.SetDefault("extraction.timeout", e.Timeout)
	v.SetDefault("extraction.user_agent", e.UserAgent)
	v.SetDefault("extraction.base_url", e.BaseURL)
	v.SetDefault("extraction.datasets", e.Datasets)
	v.SetDefault("extraction.request_delay", e.RequestDelay)
	v.SetDefault("extraction.max_retries", e.MaxRetries)
	v.SetDefault("extraction.raw_dir", e.RawDir)

	v.SetDefault("transform.processed_dir", d.Transform.ProcessedDir)
	v.SetDefault("transform.min_year", d.Transform.MinYear)
	v.SetDefault("transform.max_year", d.Transform.MaxYear)

	db := d.Database
	v.SetDefault("database.driver", string(db.Driver))
	v.SetDefault("database.sqlite_path", db.SQLitePath)
	v.SetDefault("database.dsn", db.DSN)
	v.SetDefault("database.tables.enrollment", db.Tables.Enrollment)
	v.SetDefault("database.tables.graduation", db.Tables.Graduation)
	v.SetDefault("database.tables.spending", db.Tables.Spending)
	v.SetDefault("database.tables.countries", db.Tables.Countries)
	v.SetDefault("database.max_open_conns", db.MaxOpenConns)
	v.SetDefault("database.conn_max_lifetime", db.ConnMaxLifetime)

	v.SetDefault("dashboard.addr", d.Dashboard.Addr)
	v.SetDefault("dashboard.default_year", d.Dashboard.DefaultYear)
	v.SetDefault("dashboard.default_countries", d.Dashboard.DefaultCountries)

	a := d.Archive
	v.SetDefault("archive.endpoint", a.Endpoint)
	v.SetDefault("archive.access_key", a.AccessKey)
	v.SetDefault("archive.secret_key", a.SecretKey)
	v.SetDefault("archive.bucket", a.Bucket)
	v.SetDefault("archive.prefix", a.Prefix)
	v.SetDefault("archive.use_ssl", a.UseSSL)

	l := d.Logging
	v.SetDefault("logging.type", l.Type)
	v.SetDefault("logging.level", l.Level)
	v.SetDefault("logging.format", l.Format)
	v.SetDefault("logging.file_path", l.FilePath)
	v.SetDefault("logging.max_size_mb", l.MaxSizeMB)
	v.SetDefault("logging.max_backups", l.MaxBackups)
	v.SetDefault("logging.max_age_days", l.MaxAgeDays)

	v.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)
	v.SetDefault("telemetry.protocol", d.Telemetry.Protocol)
	v.SetDefault("telemetry.sample_ratio", d.Telemetry.SampleRatio)

	v.SetDefault("schedule", d.Schedule)
}

// LoadDotEnv loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads the config file if one is found and applies environment
// overrides. It returns the file used, or "" when running on defaults and
// environment alone. Callers validate after filling in secrets.
func Load(v *viper.Viper) (types.PipelineConfig, string, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.PipelineConfig{}, "", fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg types.PipelineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return types.PipelineConfig{}, "", fmt.Errorf("decoding config: %w", err)
	}
	for i, ds := range cfg.Extraction.Datasets {
		params := make(map[string]string, len(ds.Params))
		for k, val := range ds.Params {
			params[extract.ParamName(k)] = val
		}
		cfg.Extraction.Datasets[i].Params = params
	}
	return cfg, v.ConfigFileUsed(), nil
}

var validate = validator.New()

// Validate checks cfg against the struct tags in pkg/types.
func Validate(cfg types.PipelineConfig) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
