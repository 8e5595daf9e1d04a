// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/edu-pipeline/internal/extract"
	"github.com/pdiddy/edu-pipeline/pkg/types"
)

const (
	cleanInfix = "_clean_"
	dateLayout = "2006-01-02"
)

var (
	enrollmentHeader = []string{"country_code", "country_name", "year", "enrollment_rate", "education_level", "gender", "data_source", "extraction_date"}
	graduationHeader = []string{"country_code", "country_name", "year", "graduation_rate", "completion_rate", "education_level", "data_source", "extraction_date"}
	spendingHeader   = []string{"country_code", "country_name", "year", "spending_usd", "spending_per_capita", "spending_percent_gdp", "currency", "data_source", "extraction_date"}
	countriesHeader  = []string{"country_code", "country_name", "region", "income_group", "population", "gdp_per_capita", "data_available", "last_updated"}
)

// SaveClean writes one {name}_clean_{ts}.csv file per table to dir and
// returns the written file names keyed by table.
func SaveClean(b types.CleanBatch, dir string, now time.Time) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating processed directory: %w", err)
	}
	ts := now.Format(extract.TimestampLayout)

	tables := map[string]extract.Table{
		types.DatasetEnrollment: enrollmentTable(b.Enrollment),
		types.DatasetGraduation: graduationTable(b.Graduation),
		types.DatasetSpending:   spendingTable(b.Spending),
		types.DatasetCountries:  countriesTable(b.Countries),
	}
	files := make(map[string]string, len(tables))
	for name, t := range tables {
		file := name + cleanInfix + ts + ".csv"
		if err := extract.WriteCSV(filepath.Join(dir, file), t); err != nil {
			return nil, fmt.Errorf("writing %s: %w", file, err)
		}
		files[name] = file
	}
	return files, nil
}

// LoadLatestClean reads the newest processed snapshot in dir. Tables whose
// file is missing from the snapshot are left empty.
func LoadLatestClean(dir string) (types.CleanBatch, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+cleanInfix+"*.csv"))
	if err != nil {
		return types.CleanBatch{}, err
	}
	latest := ""
	for _, m := range matches {
		base := strings.TrimSuffix(filepath.Base(m), ".csv")
		i := strings.LastIndex(base, cleanInfix)
		if ts := base[i+len(cleanInfix):]; ts > latest {
			latest = ts
		}
	}
	if latest == "" {
		return types.CleanBatch{}, fmt.Errorf("no processed snapshot in %s: run transform first", dir)
	}

	read := func(name string) (extract.Table, error) {
		t, err := extract.ReadCSV(filepath.Join(dir, name+cleanInfix+latest+".csv"))
		if errors.Is(err, fs.ErrNotExist) {
			return extract.Table{}, nil
		}
		return t, err
	}

	var b types.CleanBatch
	t, err := read(types.DatasetEnrollment)
	if err != nil {
		return b, err
	}
	if b.Enrollment, err = parseEnrollment(t); err != nil {
		return b, err
	}
	if t, err = read(types.DatasetGraduation); err != nil {
		return b, err
	}
	if b.Graduation, err = parseGraduation(t); err != nil {
		return b, err
	}
	if t, err = read(types.DatasetSpending); err != nil {
		return b, err
	}
	if b.Spending, err = parseSpending(t); err != nil {
		return b, err
	}
	if t, err = read(types.DatasetCountries); err != nil {
		return b, err
	}
	if b.Countries, err = parseCountries(t); err != nil {
		return b, err
	}
	return b, nil
}

func enrollmentTable(rs []types.EnrollmentRecord) extract.Table {
	t := extract.Table{Header: enrollmentHeader}
	for _, r := range rs {
		t.Records = append(t.Records, []string{
			r.CountryCode, r.CountryName, strconv.Itoa(r.Year), formatFloat(r.EnrollmentRate),
			r.EducationLevel, r.Gender, r.DataSource, r.ExtractionDate.Format(dateLayout),
		})
	}
	return t
}

func graduationTable(rs []types.GraduationRecord) extract.Table {
	t := extract.Table{Header: graduationHeader}
	for _, r := range rs {
		t.Records = append(t.Records, []string{
			r.CountryCode, r.CountryName, strconv.Itoa(r.Year), formatFloat(r.GraduationRate),
			formatFloat(r.CompletionRate), r.EducationLevel, r.DataSource, r.ExtractionDate.Format(dateLayout),
		})
	}
	return t
}

func spendingTable(rs []types.SpendingRecord) extract.Table {
	t := extract.Table{Header: spendingHeader}
	for _, r := range rs {
		pct := ""
		if r.SpendingPercentGDP != nil {
			pct = formatFloat(*r.SpendingPercentGDP)
		}
		t.Records = append(t.Records, []string{
			r.CountryCode, r.CountryName, strconv.Itoa(r.Year), formatFloat(r.SpendingUSD),
			formatFloat(r.SpendingPerCapita), pct, r.Currency, r.DataSource, r.ExtractionDate.Format(dateLayout),
		})
	}
	return t
}

func countriesTable(rs []types.CountryRecord) extract.Table {
	t := extract.Table{Header: countriesHeader}
	for _, r := range rs {
		pop, gdp := "", ""
		if r.Population != nil {
			pop = strconv.FormatInt(*r.Population, 10)
		}
		if r.GDPPerCapita != nil {
			gdp = formatFloat(*r.GDPPerCapita)
		}
		t.Records = append(t.Records, []string{
			r.CountryCode, r.CountryName, r.Region, r.IncomeGroup, pop, gdp,
			strconv.FormatBool(r.DataAvailable), r.LastUpdated.Format(dateLayout),
		})
	}
	return t
}

// record reads typed fields from one CSV row by column name, remembering
// the first conversion error.
type record struct {
	idx map[string]int
	row []string
	err error
}

func newIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	return idx
}

func (r *record) str(col string) string {
	i, ok := r.idx[col]
	if !ok || i >= len(r.row) {
		return ""
	}
	return r.row[i]
}

func (r *record) int(col string) int {
	n, err := strconv.Atoi(r.str(col))
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("column %s: %w", col, err)
	}
	return n
}

func (r *record) float(col string) float64 {
	f, err := strconv.ParseFloat(r.str(col), 64)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("column %s: %w", col, err)
	}
	return f
}

func (r *record) optFloat(col string) *float64 {
	if r.str(col) == "" {
		return nil
	}
	f := r.float(col)
	return &f
}

func (r *record) optInt64(col string) *int64 {
	s := r.str(col)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("column %s: %w", col, err)
	}
	return &n
}

func (r *record) bool(col string) bool {
	b, err := strconv.ParseBool(r.str(col))
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("column %s: %w", col, err)
	}
	return b
}

func (r *record) date(col string) time.Time {
	d, err := time.Parse(dateLayout, r.str(col))
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("column %s: %w", col, err)
	}
	return d
}

// parseRows applies fn to every record of t, stopping at the first error.
func parseRows[T any](t extract.Table, name string, fn func(*record) T) ([]T, error) {
	idx := newIndex(t.Header)
	out := make([]T, 0, len(t.Records))
	for i, row := range t.Records {
		rec := &record{idx: idx, row: row}
		v := fn(rec)
		if rec.err != nil {
			return nil, fmt.Errorf("%s row %d: %w", name, i+1, rec.err)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseEnrollment(t extract.Table) ([]types.EnrollmentRecord, error) {
	return parseRows(t, types.DatasetEnrollment, func(r *record) types.EnrollmentRecord {
		return types.EnrollmentRecord{
			CountryCode:    r.str("country_code"),
			CountryName:    r.str("country_name"),
			Year:           r.int("year"),
			EnrollmentRate: r.float("enrollment_rate"),
			EducationLevel: r.str("education_level"),
			Gender:         r.str("gender"),
			DataSource:     r.str("data_source"),
			ExtractionDate: r.date("extraction_date"),
		}
	})
}

func parseGraduation(t extract.Table) ([]types.GraduationRecord, error) {
	return parseRows(t, types.DatasetGraduation, func(r *record) types.GraduationRecord {
		return types.GraduationRecord{
			CountryCode:    r.str("country_code"),
			CountryName:    r.str("country_name"),
			Year:           r.int("year"),
			GraduationRate: r.float("graduation_rate"),
			CompletionRate: r.float("completion_rate"),
			EducationLevel: r.str("education_level"),
			DataSource:     r.str("data_source"),
			ExtractionDate: r.date("extraction_date"),
		}
	})
}

func parseSpending(t extract.Table) ([]types.SpendingRecord, error) {
	return parseRows(t, types.DatasetSpending, func(r *record) types.SpendingRecord {
		return types.SpendingRecord{
			CountryCode:        r.str("country_code"),
			CountryName:        r.str("country_name"),
			Year:               r.int("year"),
			SpendingUSD:        r.float("spending_usd"),
			SpendingPerCapita:  r.float("spending_per_capita"),
			SpendingPercentGDP: r.optFloat("spending_percent_gdp"),
			Currency:           r.str("currency"),
			DataSource:         r.str("data_source"),
			ExtractionDate:     r.date("extraction_date"),
		}
	})
}

func parseCountries(t extract.Table) ([]types.CountryRecord, error) {
	return parseRows(t, types.DatasetCountries, func(r *record) types.CountryRecord {
		return types.CountryRecord{
			CountryCode:   r.str("country_code"),
			CountryName:   r.str("country_name"),
			Region:        r.str("region"),
			IncomeGroup:   r.str("income_group"),
			Population:    r.optInt64("population"),
			GDPPerCapita:  r.optFloat("gdp_per_capita"),
			DataAvailable: r.bool("data_available"),
			LastUpdated:   r.date("last_updated"),
		}
	})
}
