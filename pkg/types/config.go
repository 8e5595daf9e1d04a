package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "edu-pipeline/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// DatasetSpec names one OECD dataset to extract and the query parameters
// merged over the SDMX defaults.
type DatasetSpec struct {
	// Name is the pipeline-level dataset name (enrollment, graduation, spending).
	Name string `json:"name" yaml:"name" mapstructure:"name" validate:"required,oneof=enrollment graduation spending"`

	// Code is the OECD dataset code (e.g. "EDU_ENRL").
	Code string `json:"code" yaml:"code" mapstructure:"code" validate:"required"`

	// Params are extra query parameters such as startPeriod and measure.
	Params map[string]string `json:"params,omitempty" yaml:"params,omitempty" mapstructure:"params"`
}

// ExtractionConfig holds settings for the extraction stage.
type ExtractionConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the OECD SDMX-JSON endpoint; the dataset code is appended.
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url" validate:"required,url"`

	// Datasets lists the datasets fetched by a run, in order.
	Datasets []DatasetSpec `json:"datasets" yaml:"datasets" mapstructure:"datasets" validate:"required,min=1,dive"`

	// RequestDelay is the pause between consecutive dataset requests (default 1s).
	RequestDelay time.Duration `json:"request_delay" yaml:"request_delay" mapstructure:"request_delay"`

	// MaxRetries bounds retries on HTTP 429 (0 uses the httputil default).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`

	// RawDir receives the raw CSV and metadata JSON files.
	RawDir string `json:"raw_dir" yaml:"raw_dir" mapstructure:"raw_dir" validate:"required"`
}

// TransformConfig holds settings for the cleaning stage.
type TransformConfig struct {
	// ProcessedDir receives cleaned CSV files.
	ProcessedDir string `json:"processed_dir" yaml:"processed_dir" mapstructure:"processed_dir" validate:"required"`

	// MinYear and MaxYear bound the accepted observation years (inclusive).
	MinYear int `json:"min_year" yaml:"min_year" mapstructure:"min_year" validate:"gte=1900"`
	MaxYear int `json:"max_year" yaml:"max_year" mapstructure:"max_year" validate:"gtefield=MinYear"`
}

// TableNames maps logical tables to their names in the database.
type TableNames struct {
	Enrollment string `json:"enrollment" yaml:"enrollment" mapstructure:"enrollment" validate:"required"`
	Graduation string `json:"graduation" yaml:"graduation" mapstructure:"graduation" validate:"required"`
	Spending   string `json:"spending" yaml:"spending" mapstructure:"spending" validate:"required"`
	Countries  string `json:"countries" yaml:"countries" mapstructure:"countries" validate:"required"`
}

// DatabaseDriver selects the relational backend.
type DatabaseDriver string

const (
	DriverSQLite   DatabaseDriver = "sqlite3"
	DriverPostgres DatabaseDriver = "pgx"
)

// DatabaseConfig holds settings for the relational store.
type DatabaseConfig struct {
	// Driver is sqlite3 (default) or pgx.
	Driver DatabaseDriver `json:"driver" yaml:"driver" mapstructure:"driver" validate:"required,oneof=sqlite3 pgx"`

	// SQLitePath is the database file used with the sqlite3 driver.
	SQLitePath string `json:"sqlite_path" yaml:"sqlite_path" mapstructure:"sqlite_path" validate:"required_if=Driver sqlite3"`

	// DSN is the PostgreSQL connection string used with the pgx driver.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty" mapstructure:"dsn" validate:"required_if=Driver pgx"`

	// Tables holds the table names.
	Tables TableNames `json:"tables" yaml:"tables" mapstructure:"tables"`

	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns" mapstructure:"max_open_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// DashboardConfig holds settings for the dashboard server.
type DashboardConfig struct {
	// Addr is the listen address (default ":8501").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr" validate:"required"`

	// DefaultYear is used when a request omits ?year=.
	DefaultYear int `json:"default_year" yaml:"default_year" mapstructure:"default_year"`

	// DefaultCountries is the country list for /api/enrollment/trends when
	// the request omits ?countries=.
	DefaultCountries []string `json:"default_countries" yaml:"default_countries" mapstructure:"default_countries"`

	// MinYear and MaxYear bound ?year=. They follow transform.min_year and
	// transform.max_year so the API accepts every year the pipeline loads.
	MinYear int `json:"-" yaml:"-" mapstructure:"-"`
	MaxYear int `json:"-" yaml:"-" mapstructure:"-"`
}

// ArchiveConfig holds S3-compatible object storage settings. The archive is
// disabled when Endpoint is empty.
type ArchiveConfig struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey string `json:"-" yaml:"-" mapstructure:"access_key"`
	SecretKey string `json:"-" yaml:"-" mapstructure:"secret_key"`
	Bucket    string `json:"bucket" yaml:"bucket" mapstructure:"bucket" validate:"required_with=Endpoint"`
	Prefix    string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`
	UseSSL    bool   `json:"use_ssl" yaml:"use_ssl" mapstructure:"use_ssl"`
}

// Enabled reports whether an object store is configured.
func (c ArchiveConfig) Enabled() bool {
	return c.Endpoint != ""
}

// LoggingConfig selects the log sink and level.
type LoggingConfig struct {
	// Type is console or file.
	Type string `json:"type" yaml:"type" mapstructure:"type" validate:"oneof=console file"`

	// Level is debug, info, warning, or error.
	Level string `json:"level" yaml:"level" mapstructure:"level" validate:"oneof=debug info warning error"`

	// Format is json or text.
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"oneof=json text"`

	// File rotation settings, used when Type is file.
	FilePath   string `json:"file_path" yaml:"file_path" mapstructure:"file_path" validate:"required_if=Type file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days" mapstructure:"max_age_days"`
}

// TelemetryConfig holds OpenTelemetry tracing settings.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"service_name" yaml:"service_name" mapstructure:"service_name"`

	// Protocol is grpc or http/protobuf.
	Protocol string `json:"protocol" yaml:"protocol" mapstructure:"protocol" validate:"omitempty,oneof=grpc http/protobuf"`

	// SampleRatio is the parent-based trace id ratio (0..1).
	SampleRatio float64 `json:"sample_ratio" yaml:"sample_ratio" mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
	Transform  TransformConfig  `json:"transform" yaml:"transform" mapstructure:"transform"`
	Database   DatabaseConfig   `json:"database" yaml:"database" mapstructure:"database"`
	Dashboard  DashboardConfig  `json:"dashboard" yaml:"dashboard" mapstructure:"dashboard"`
	Archive    ArchiveConfig    `json:"archive" yaml:"archive" mapstructure:"archive"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging" mapstructure:"logging"`
	Telemetry  TelemetryConfig  `json:"telemetry" yaml:"telemetry" mapstructure:"telemetry"`

	// Schedule is the interval between runs for `run --schedule`; zero runs once.
	Schedule time.Duration `json:"schedule" yaml:"schedule" mapstructure:"schedule"`
}
