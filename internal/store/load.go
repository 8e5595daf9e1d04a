// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/pdiddy/edu-pipeline/pkg/types"
)

const dateLayout = "2006-01-02"

// LoadSummary holds row counts written by a load.
type LoadSummary struct {
	Countries  int `json:"countries" yaml:"countries"`
	Enrollment int `json:"enrollment" yaml:"enrollment"`
	Graduation int `json:"graduation" yaml:"graduation"`
	Spending   int `json:"spending" yaml:"spending"`
}

// Total returns the number of rows written.
func (s LoadSummary) Total() int {
	return s.Countries + s.Enrollment + s.Graduation + s.Spending
}

// Load creates the tables if needed and writes the batch: country metadata
// first, then enrollment, graduation, and spending. Each table is written
// in its own transaction; the first failure stops the load.
func (s *Store) Load(ctx context.Context, b types.CleanBatch, w io.Writer) (LoadSummary, error) {
	var summary LoadSummary
	if err := s.CreateTables(ctx); err != nil {
		return summary, fmt.Errorf("creating tables: %w", err)
	}

	steps := []struct {
		name string
		n    *int
		run  func() (int, error)
	}{
		{types.DatasetCountries, &summary.Countries, func() (int, error) { return s.UpsertCountries(ctx, b.Countries) }},
		{types.DatasetEnrollment, &summary.Enrollment, func() (int, error) { return s.LoadEnrollment(ctx, b.Enrollment) }},
		{types.DatasetGraduation, &summary.Graduation, func() (int, error) { return s.LoadGraduation(ctx, b.Graduation) }},
		{types.DatasetSpending, &summary.Spending, func() (int, error) { return s.LoadSpending(ctx, b.Spending) }},
	}
	for _, step := range steps {
		n, err := step.run()
		if err != nil {
			fmt.Fprintf(w, "failed   %s: %v\n", step.name, err)
			return summary, fmt.Errorf("loading %s: %w", step.name, err)
		}
		*step.n = n
		fmt.Fprintf(w, "loaded   %s: %d records\n", step.name, n)
	}

	fmt.Fprintf(w, "\ncountries: %d, enrollment: %d, graduation: %d, spending: %d\n",
		summary.Countries, summary.Enrollment, summary.Graduation, summary.Spending)
	return summary, nil
}

// insertAll runs query once per row inside a single transaction.
func (s *Store) insertAll(ctx context.Context, query string, n int, args func(i int) []any) (int, error) {
	if n == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(query))
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return 0, fmt.Errorf("inserting row %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}
	return n, nil
}

// LoadEnrollment appends enrollment rows.
func (s *Store) LoadEnrollment(ctx context.Context, rs []types.EnrollmentRecord) (int, error) {
	q := fmt.Sprintf(`INSERT INTO %s (country_code, country_name, year, enrollment_rate,
		education_level, gender, data_source, extraction_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.tables.Enrollment)
	return s.insertAll(ctx, q, len(rs), func(i int) []any {
		r := rs[i]
		return []any{r.CountryCode, r.CountryName, r.Year, r.EnrollmentRate,
			r.EducationLevel, r.Gender, r.DataSource, r.ExtractionDate.Format(dateLayout)}
	})
}

// LoadGraduation appends graduation rows.
func (s *Store) LoadGraduation(ctx context.Context, rs []types.GraduationRecord) (int, error) {
	q := fmt.Sprintf(`INSERT INTO %s (country_code, country_name, year, graduation_rate,
		completion_rate, education_level, data_source, extraction_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.tables.Graduation)
	return s.insertAll(ctx, q, len(rs), func(i int) []any {
		r := rs[i]
		return []any{r.CountryCode, r.CountryName, r.Year, r.GraduationRate,
			r.CompletionRate, r.EducationLevel, r.DataSource, r.ExtractionDate.Format(dateLayout)}
	})
}

// LoadSpending appends spending rows.
func (s *Store) LoadSpending(ctx context.Context, rs []types.SpendingRecord) (int, error) {
	q := fmt.Sprintf(`INSERT INTO %s (country_code, country_name, year, spending_usd,
		spending_per_capita, spending_percent_gdp, currency, data_source, extraction_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.tables.Spending)
	return s.insertAll(ctx, q, len(rs), func(i int) []any {
		r := rs[i]
		return []any{r.CountryCode, r.CountryName, r.Year, r.SpendingUSD,
			r.SpendingPerCapita, nullFloat(r.SpendingPercentGDP), r.Currency, r.DataSource,
			r.ExtractionDate.Format(dateLayout)}
	})
}

// UpsertCountries inserts country metadata, replacing existing rows with the
// same country code.
func (s *Store) UpsertCountries(ctx context.Context, rs []types.CountryRecord) (int, error) {
	q := fmt.Sprintf(`INSERT INTO %s (country_code, country_name, region, income_group,
		population, gdp_per_capita, data_available, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(country_code) DO UPDATE SET
			country_name=excluded.country_name, region=excluded.region,
			income_group=excluded.income_group, population=excluded.population,
			gdp_per_capita=excluded.gdp_per_capita, data_available=excluded.data_available,
			last_updated=excluded.last_updated`, s.tables.Countries)
	return s.insertAll(ctx, q, len(rs), func(i int) []any {
		r := rs[i]
		return []any{r.CountryCode, r.CountryName, r.Region, r.IncomeGroup,
			nullInt(r.Population), nullFloat(r.GDPPerCapita), boolInt(r.DataAvailable),
			r.LastUpdated.Format(dateLayout)}
	})
}

// TableCount is the row count of one table.
type TableCount struct {
	Dataset string `json:"dataset" yaml:"dataset"`
	Table   string `json:"table" yaml:"table"`
	Rows    int    `json:"rows" yaml:"rows"`
}

// TableStats counts rows per table. A table that is missing or cannot be
// read counts as zero.
func (s *Store) TableStats(ctx context.Context) []TableCount {
	out := []TableCount{
		{Dataset: types.DatasetEnrollment, Table: s.tables.Enrollment},
		{Dataset: types.DatasetGraduation, Table: s.tables.Graduation},
		{Dataset: types.DatasetSpending, Table: s.tables.Spending},
		{Dataset: types.DatasetCountries, Table: s.tables.Countries},
	}
	for i := range out {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+out[i].Table).Scan(&n); err == nil {
			out[i].Rows = n
		}
	}
	return out
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
