// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transform

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/edu-pipeline/pkg/types"
)

// Column candidates, most specific first.
var (
	countryColumns = []string{"country_code", "country", "ref_area", "location"}
	yearColumns    = []string{"year", "time", "time_period"}
	levelColumns   = []string{"education_level", "isced11", "edu_level", "level"}
	genderColumns  = []string{"gender", "sex"}
)

// Defaults for dimensions absent from a dataset.
const (
	LevelNotSpecified  = "Not Specified"
	LevelAll           = "All Levels"
	GenderNotSpecified = "Not Specified"
	CurrencyUSD        = "USD"
)

// Accepted value ranges, inclusive.
const (
	maxEnrollmentRate = 200
	maxGraduationRate = 120
	spendingLowQ      = 0.01
	spendingHighQ     = 0.99
)

// base holds the fields every cleaned record shares.
type base struct {
	code  string
	name  string
	year  int
	value float64
	row   Row
}

// common applies the indicator filter and resolves country, year, and value
// for each row. Rows failing any step, including a non-numeric value, are
// dropped.
func common(rows Rows, indicator string, opts Options) []base {
	filterIndicator := rows.hasColumn("indicator")
	lo, hi := opts.yearRange()

	out := make([]base, 0, len(rows))
	for _, r := range rows {
		if filterIndicator && !strings.Contains(strings.ToUpper(r["indicator"]), indicator) {
			continue
		}

		raw, _ := r.first(countryColumns...)
		code := countryCode(raw)
		if code == "" {
			continue
		}

		ys, _ := r.first(yearColumns...)
		year, ok := parseYear(ys)
		if !ok || year < lo || year > hi {
			continue
		}

		v, ok := parseValue(r["value"])
		if !ok {
			continue
		}

		out = append(out, base{
			code:  code,
			name:  countryName(raw, code, r.display(countryColumns...)),
			year:  year,
			value: v,
			row:   r,
		})
	}
	return out
}

// CleanEnrollment keeps ENRL observations with a rate in [0, 200].
func CleanEnrollment(rows Rows, opts Options, now time.Time) []types.EnrollmentRecord {
	date := runDate(now)
	var out []types.EnrollmentRecord
	for _, b := range common(rows, "ENRL", opts) {
		if b.value < 0 || b.value > maxEnrollmentRate {
			continue
		}
		out = append(out, types.EnrollmentRecord{
			CountryCode:    b.code,
			CountryName:    b.name,
			Year:           b.year,
			EnrollmentRate: b.value,
			EducationLevel: orDefault(b.row.display(levelColumns...), LevelNotSpecified),
			Gender:         orDefault(b.row.display(genderColumns...), GenderNotSpecified),
			DataSource:     types.DataSourceOECD,
			ExtractionDate: date,
		})
	}
	return out
}

// CleanGraduation keeps GRAD observations with a rate in [0, 120] and
// derives the completion rate as a fraction.
func CleanGraduation(rows Rows, opts Options, now time.Time) []types.GraduationRecord {
	date := runDate(now)
	var out []types.GraduationRecord
	for _, b := range common(rows, "GRAD", opts) {
		if b.value < 0 || b.value > maxGraduationRate {
			continue
		}
		out = append(out, types.GraduationRecord{
			CountryCode:    b.code,
			CountryName:    b.name,
			Year:           b.year,
			GraduationRate: b.value,
			CompletionRate: b.value / 100,
			EducationLevel: orDefault(b.row.display(levelColumns...), LevelAll),
			DataSource:     types.DataSourceOECD,
			ExtractionDate: date,
		})
	}
	return out
}

// CleanSpending keeps FIN observations between the 1st and 99th percentile
// of the dataset's values. Per-capita spending mirrors total spending until
// population data is sourced.
func CleanSpending(rows Rows, opts Options, now time.Time) []types.SpendingRecord {
	kept := common(rows, "FIN", opts)
	if len(kept) == 0 {
		return nil
	}

	values := make([]float64, len(kept))
	for i, b := range kept {
		values[i] = b.value
	}
	sort.Float64s(values)
	qLow, qHigh := Quantile(values, spendingLowQ), Quantile(values, spendingHighQ)

	date := runDate(now)
	var out []types.SpendingRecord
	for _, b := range kept {
		if b.value < qLow || b.value > qHigh {
			continue
		}
		out = append(out, types.SpendingRecord{
			CountryCode:       b.code,
			CountryName:       b.name,
			Year:              b.year,
			SpendingUSD:       b.value,
			SpendingPerCapita: b.value,
			Currency:          CurrencyUSD,
			DataSource:        types.DataSourceOECD,
			ExtractionDate:    date,
		})
	}
	return out
}

// Quantile returns the q-quantile of sorted values using linear
// interpolation between closest ranks. sorted must be ascending and non-empty.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// countryCode is the first three characters of raw, upper-cased.
func countryCode(raw string) string {
	r := []rune(strings.ToUpper(strings.TrimSpace(raw)))
	if len(r) > 3 {
		r = r[:3]
	}
	return string(r)
}

func parseYear(s string) (int, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func parseValue(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
