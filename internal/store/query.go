// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Result limits for the ranking queries.
const (
	GraduationLimit = 20
	SpendingLimit   = 15
)

// ErrNotFound is returned when a country is not in the metadata table.
var ErrNotFound = errors.New("not found")

// Country is one row of the country list.
type Country struct {
	Code        string `json:"country_code"`
	Name        string `json:"country_name"`
	Region      string `json:"region"`
	IncomeGroup string `json:"income_group"`
}

// TrendPoint is the average enrollment rate of one country in one year.
type TrendPoint struct {
	Year          int     `json:"year"`
	CountryCode   string  `json:"country_code"`
	CountryName   string  `json:"country_name"`
	AvgEnrollment float64 `json:"avg_enrollment"`
	DataPoints    int     `json:"data_points"`
}

// GraduationRate is one row of the graduation ranking.
type GraduationRate struct {
	CountryCode    string  `json:"country_code"`
	CountryName    string  `json:"country_name"`
	GraduationRate float64 `json:"graduation_rate"`
	CompletionRate float64 `json:"completion_rate"`
}

// Spending is one row of the spending ranking.
type Spending struct {
	CountryCode       string  `json:"country_code"`
	CountryName       string  `json:"country_name"`
	SpendingUSD       float64 `json:"spending_usd"`
	SpendingPerCapita float64 `json:"spending_per_capita"`
}

// YearValue is one point of a yearly series.
type YearValue struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// Indicators holds the yearly series for one country.
type Indicators struct {
	Enrollment []YearValue `json:"enrollment"`
	Graduation []YearValue `json:"graduation"`
	Spending   []YearValue `json:"spending"`
}

// Countries lists country metadata ordered by name.
func (s *Store) Countries(ctx context.Context) ([]Country, error) {
	q := fmt.Sprintf(`SELECT country_code, COALESCE(country_name, ''), COALESCE(region, ''),
		COALESCE(income_group, '') FROM %s ORDER BY country_name, country_code`, s.tables.Countries)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying countries: %w", err)
	}
	defer rows.Close()

	var out []Country
	for rows.Next() {
		var c Country
		if err := rows.Scan(&c.Code, &c.Name, &c.Region, &c.IncomeGroup); err != nil {
			return nil, fmt.Errorf("scanning country: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Country returns one country's metadata or ErrNotFound.
func (s *Store) Country(ctx context.Context, code string) (Country, error) {
	q := fmt.Sprintf(`SELECT country_code, COALESCE(country_name, ''), COALESCE(region, ''),
		COALESCE(income_group, '') FROM %s WHERE country_code = ?`, s.tables.Countries)
	var c Country
	err := s.db.QueryRowContext(ctx, s.rebind(q), code).Scan(&c.Code, &c.Name, &c.Region, &c.IncomeGroup)
	if errors.Is(err, sql.ErrNoRows) {
		return Country{}, ErrNotFound
	}
	if err != nil {
		return Country{}, fmt.Errorf("querying country %s: %w", code, err)
	}
	return c, nil
}

// EnrollmentTrends averages enrollment rates per year and country. An empty
// codes list returns every country.
func (s *Store) EnrollmentTrends(ctx context.Context, codes []string) ([]TrendPoint, error) {
	var (
		where string
		args  []any
	)
	if len(codes) > 0 {
		where = "WHERE country_code IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(codes)), ", ") + ")"
		for _, c := range codes {
			args = append(args, c)
		}
	}
	q := fmt.Sprintf(`SELECT year, country_code, COALESCE(country_name, ''),
		AVG(enrollment_rate), COUNT(*)
		FROM %s %s
		GROUP BY year, country_code, country_name
		ORDER BY year, country_code`, s.tables.Enrollment, where)

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("querying enrollment trends: %w", err)
	}
	defer rows.Close()

	var out []TrendPoint
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.Year, &p.CountryCode, &p.CountryName, &p.AvgEnrollment, &p.DataPoints); err != nil {
			return nil, fmt.Errorf("scanning trend point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GraduationRates returns the highest graduation rates for year.
func (s *Store) GraduationRates(ctx context.Context, year int) ([]GraduationRate, error) {
	q := fmt.Sprintf(`SELECT country_code, COALESCE(country_name, ''), graduation_rate,
		COALESCE(completion_rate, 0)
		FROM %s WHERE year = ? AND graduation_rate IS NOT NULL
		ORDER BY graduation_rate DESC LIMIT %d`, s.tables.Graduation, GraduationLimit)

	rows, err := s.db.QueryContext(ctx, s.rebind(q), year)
	if err != nil {
		return nil, fmt.Errorf("querying graduation rates: %w", err)
	}
	defer rows.Close()

	var out []GraduationRate
	for rows.Next() {
		var g GraduationRate
		if err := rows.Scan(&g.CountryCode, &g.CountryName, &g.GraduationRate, &g.CompletionRate); err != nil {
			return nil, fmt.Errorf("scanning graduation rate: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// SpendingComparison returns the highest non-null spending values for year.
func (s *Store) SpendingComparison(ctx context.Context, year int) ([]Spending, error) {
	q := fmt.Sprintf(`SELECT country_code, COALESCE(country_name, ''), spending_usd,
		COALESCE(spending_per_capita, 0)
		FROM %s WHERE year = ? AND spending_usd IS NOT NULL
		ORDER BY spending_usd DESC LIMIT %d`, s.tables.Spending, SpendingLimit)

	rows, err := s.db.QueryContext(ctx, s.rebind(q), year)
	if err != nil {
		return nil, fmt.Errorf("querying spending: %w", err)
	}
	defer rows.Close()

	var out []Spending
	for rows.Next() {
		var sp Spending
		if err := rows.Scan(&sp.CountryCode, &sp.CountryName, &sp.SpendingUSD, &sp.SpendingPerCapita); err != nil {
			return nil, fmt.Errorf("scanning spending: %w", err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// CountryIndicators returns the yearly enrollment, graduation, and spending
// series for code. Years with several rows are averaged.
func (s *Store) CountryIndicators(ctx context.Context, code string) (Indicators, error) {
	var ind Indicators
	var err error
	if ind.Enrollment, err = s.series(ctx, s.tables.Enrollment, "enrollment_rate", code); err != nil {
		return Indicators{}, err
	}
	if ind.Graduation, err = s.series(ctx, s.tables.Graduation, "graduation_rate", code); err != nil {
		return Indicators{}, err
	}
	if ind.Spending, err = s.series(ctx, s.tables.Spending, "spending_usd", code); err != nil {
		return Indicators{}, err
	}
	return ind, nil
}

// series is only called with fixed table and column names.
func (s *Store) series(ctx context.Context, table, column, code string) ([]YearValue, error) {
	q := fmt.Sprintf(`SELECT year, AVG(%s) FROM %s
		WHERE country_code = ? AND %s IS NOT NULL
		GROUP BY year ORDER BY year`, column, table, column)

	rows, err := s.db.QueryContext(ctx, s.rebind(q), code)
	if err != nil {
		return nil, fmt.Errorf("querying %s series: %w", column, err)
	}
	defer rows.Close()

	var out []YearValue
	for rows.Next() {
		var v YearValue
		if err := rows.Scan(&v.Year, &v.Value); err != nil {
			return nil, fmt.Errorf("scanning %s series: %w", column, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// LastUpdated returns the most recent country metadata update date, or the
// zero time when nothing has been loaded.
func (s *Store) LastUpdated(ctx context.Context) (time.Time, error) {
	q := fmt.Sprintf(`SELECT COALESCE(MAX(last_updated), '') FROM %s`, s.tables.Countries)
	var v string
	if err := s.db.QueryRowContext(ctx, q).Scan(&v); err != nil {
		return time.Time{}, fmt.Errorf("querying last update: %w", err)
	}
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing last update %q: %w", v, err)
	}
	return t, nil
}
