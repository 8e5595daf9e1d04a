// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/edu-pipeline/pkg/types"
)

// ExportYAML writes every table to path as YAML.
func (s *Store) ExportYAML(ctx context.Context, path string) error {
	b, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return writeExport(path, data)
}

// ExportJSON writes every table to path as indented JSON.
func (s *Store) ExportJSON(ctx context.Context, path string) error {
	b, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return writeExport(path, data)
}

func writeExport(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Snapshot reads all four tables back into a batch.
func (s *Store) Snapshot(ctx context.Context) (types.CleanBatch, error) {
	var b types.CleanBatch
	var err error
	if b.Countries, err = s.allCountries(ctx); err != nil {
		return b, err
	}
	if b.Enrollment, err = s.allEnrollment(ctx); err != nil {
		return b, err
	}
	if b.Graduation, err = s.allGraduation(ctx); err != nil {
		return b, err
	}
	if b.Spending, err = s.allSpending(ctx); err != nil {
		return b, err
	}
	return b, nil
}

// scanAll runs q and scans each row with fn.
func scanAll[T any](ctx context.Context, db *sql.DB, table, q string, fn func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying %s for export: %w", table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := fn(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(dateLayout, s)
	return t
}

func (s *Store) allEnrollment(ctx context.Context) ([]types.EnrollmentRecord, error) {
	q := fmt.Sprintf(`SELECT country_code, COALESCE(country_name, ''), year, COALESCE(enrollment_rate, 0),
		COALESCE(education_level, ''), COALESCE(gender, ''), COALESCE(data_source, ''),
		COALESCE(extraction_date, '') FROM %s ORDER BY id`, s.tables.Enrollment)
	return scanAll(ctx, s.db, s.tables.Enrollment, q, func(rows *sql.Rows) (types.EnrollmentRecord, error) {
		var r types.EnrollmentRecord
		var date string
		err := rows.Scan(&r.CountryCode, &r.CountryName, &r.Year, &r.EnrollmentRate,
			&r.EducationLevel, &r.Gender, &r.DataSource, &date)
		r.ExtractionDate = parseDate(date)
		return r, err
	})
}

func (s *Store) allGraduation(ctx context.Context) ([]types.GraduationRecord, error) {
	q := fmt.Sprintf(`SELECT country_code, COALESCE(country_name, ''), year, COALESCE(graduation_rate, 0),
		COALESCE(completion_rate, 0), COALESCE(education_level, ''), COALESCE(data_source, ''),
		COALESCE(extraction_date, '') FROM %s ORDER BY id`, s.tables.Graduation)
	return scanAll(ctx, s.db, s.tables.Graduation, q, func(rows *sql.Rows) (types.GraduationRecord, error) {
		var r types.GraduationRecord
		var date string
		err := rows.Scan(&r.CountryCode, &r.CountryName, &r.Year, &r.GraduationRate,
			&r.CompletionRate, &r.EducationLevel, &r.DataSource, &date)
		r.ExtractionDate = parseDate(date)
		return r, err
	})
}

func (s *Store) allSpending(ctx context.Context) ([]types.SpendingRecord, error) {
	q := fmt.Sprintf(`SELECT country_code, COALESCE(country_name, ''), year, COALESCE(spending_usd, 0),
		COALESCE(spending_per_capita, 0), spending_percent_gdp, COALESCE(currency, ''),
		COALESCE(data_source, ''), COALESCE(extraction_date, '') FROM %s ORDER BY id`, s.tables.Spending)
	return scanAll(ctx, s.db, s.tables.Spending, q, func(rows *sql.Rows) (types.SpendingRecord, error) {
		var r types.SpendingRecord
		var pct sql.NullFloat64
		var date string
		err := rows.Scan(&r.CountryCode, &r.CountryName, &r.Year, &r.SpendingUSD,
			&r.SpendingPerCapita, &pct, &r.Currency, &r.DataSource, &date)
		if pct.Valid {
			r.SpendingPercentGDP = &pct.Float64
		}
		r.ExtractionDate = parseDate(date)
		return r, err
	})
}

func (s *Store) allCountries(ctx context.Context) ([]types.CountryRecord, error) {
	q := fmt.Sprintf(`SELECT country_code, COALESCE(country_name, ''), COALESCE(region, ''),
		COALESCE(income_group, ''), population, gdp_per_capita, data_available,
		COALESCE(last_updated, '') FROM %s ORDER BY country_code`, s.tables.Countries)
	return scanAll(ctx, s.db, s.tables.Countries, q, func(rows *sql.Rows) (types.CountryRecord, error) {
		var r types.CountryRecord
		var pop sql.NullInt64
		var gdp sql.NullFloat64
		var avail int
		var date string
		err := rows.Scan(&r.CountryCode, &r.CountryName, &r.Region, &r.IncomeGroup,
			&pop, &gdp, &avail, &date)
		if pop.Valid {
			r.Population = &pop.Int64
		}
		if gdp.Valid {
			r.GDPPerCapita = &gdp.Float64
		}
		r.DataAvailable = avail != 0
		r.LastUpdated = parseDate(date)
		return r, err
	})
}
