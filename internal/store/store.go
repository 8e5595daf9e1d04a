// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists cleaned education records in SQLite or PostgreSQL
// and answers the dashboard's read queries. Statements are written with "?"
// placeholders and rebound for PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/pdiddy/edu-pipeline/pkg/types"
)

const pingTimeout = 5 * time.Second

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DefaultTables are the table names used when none are configured.
func DefaultTables() types.TableNames {
	return types.TableNames{
		Enrollment: "enrollment_data",
		Graduation: "graduation_data",
		Spending:   "education_spending",
		Countries:  "country_metadata",
	}
}

// Store wraps a database handle with the table layout and SQL dialect.
type Store struct {
	db     *sql.DB
	driver types.DatabaseDriver
	tables types.TableNames
}

// Open connects to the configured database. SQLite databases are created
// on first use, including their parent directory. The connection is
// instrumented with OpenTelemetry.
func Open(cfg types.DatabaseConfig) (*Store, error) {
	var (
		dsn    string
		system attribute.KeyValue
		opts   []otelsql.Option
	)
	switch cfg.Driver {
	case types.DriverSQLite, "":
		cfg.Driver = types.DriverSQLite
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite path is empty")
		}
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		dsn = cfg.SQLitePath + "?_journal_mode=WAL&_busy_timeout=5000"
		system = semconv.DBSystemSqlite
	case types.DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres dsn is empty")
		}
		dsn = cfg.DSN
		system = semconv.DBSystemPostgreSQL
		opts = append(opts, otelsql.WithSQLCommenter(true))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	opts = append(opts, otelsql.WithAttributes(system))
	driverName, err := otelsql.Register(string(cfg.Driver), opts...)
	if err != nil {
		return nil, fmt.Errorf("registering otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	s, err := New(db, cfg.Driver, cfg.Tables)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open handle. Empty table names fall back to DefaultTables;
// every name must be a plain SQL identifier.
func New(db *sql.DB, driver types.DatabaseDriver, tables types.TableNames) (*Store, error) {
	def := DefaultTables()
	if tables.Enrollment == "" {
		tables.Enrollment = def.Enrollment
	}
	if tables.Graduation == "" {
		tables.Graduation = def.Graduation
	}
	if tables.Spending == "" {
		tables.Spending = def.Spending
	}
	if tables.Countries == "" {
		tables.Countries = def.Countries
	}
	for _, name := range []string{tables.Enrollment, tables.Graduation, tables.Spending, tables.Countries} {
		if !identifier.MatchString(name) {
			return nil, fmt.Errorf("invalid table name %q", name)
		}
	}
	if driver == "" {
		driver = types.DriverSQLite
	}
	return &Store{db: db, driver: driver, tables: tables}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tables returns the resolved table names.
func (s *Store) Tables() types.TableNames {
	return s.tables
}

// rebind converts "?" placeholders to "$n" for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != types.DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// dialect holds the column types that differ between backends.
type dialect struct {
	id        string
	createdAt string
	real      string
	bigint    string
}

func (s *Store) dialect() dialect {
	if s.driver == types.DriverPostgres {
		return dialect{
			id:        "id BIGSERIAL PRIMARY KEY",
			createdAt: "created_at TIMESTAMPTZ NOT NULL DEFAULT now()",
			real:      "DOUBLE PRECISION",
			bigint:    "BIGINT",
		}
	}
	return dialect{
		id:        "id INTEGER PRIMARY KEY AUTOINCREMENT",
		createdAt: "created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP",
		real:      "REAL",
		bigint:    "INTEGER",
	}
}

// CreateTables creates the four tables and their indexes if missing.
func (s *Store) CreateTables(ctx context.Context) error {
	d := s.dialect()
	t := s.tables
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			%s,
			country_code TEXT NOT NULL,
			country_name TEXT,
			year INTEGER NOT NULL,
			enrollment_rate %s,
			education_level TEXT,
			gender TEXT,
			data_source TEXT,
			extraction_date TEXT,
			%s
		)`, t.Enrollment, d.id, d.real, d.createdAt),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			%s,
			country_code TEXT NOT NULL,
			country_name TEXT,
			year INTEGER NOT NULL,
			graduation_rate %s,
			completion_rate %s,
			education_level TEXT,
			data_source TEXT,
			extraction_date TEXT,
			%s
		)`, t.Graduation, d.id, d.real, d.real, d.createdAt),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			%s,
			country_code TEXT NOT NULL,
			country_name TEXT,
			year INTEGER NOT NULL,
			spending_usd %s,
			spending_per_capita %s,
			spending_percent_gdp %s,
			currency TEXT,
			data_source TEXT,
			extraction_date TEXT,
			%s
		)`, t.Spending, d.id, d.real, d.real, d.real, d.createdAt),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			%s,
			country_code TEXT NOT NULL UNIQUE,
			country_name TEXT,
			region TEXT,
			income_group TEXT,
			population %s,
			gdp_per_capita %s,
			data_available INTEGER NOT NULL DEFAULT 1,
			last_updated TEXT,
			%s
		)`, t.Countries, d.id, d.bigint, d.real, d.createdAt),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_country_year ON %[1]s(country_code, year)`, t.Enrollment),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_country_year ON %[1]s(country_code, year)`, t.Graduation),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_country_year ON %[1]s(country_code, year)`, t.Spending),
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}
