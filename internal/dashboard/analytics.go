// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dashboard

import (
	"math"
	"sort"

	"github.com/pdiddy/edu-pipeline/internal/store"
)

// Extreme names the country holding a maximum or minimum.
type Extreme struct {
	CountryCode string  `json:"country_code"`
	CountryName string  `json:"country_name"`
	Value       float64 `json:"value"`
}

// SpendingSummary aggregates one year's spending ranking.
type SpendingSummary struct {
	Average float64 `json:"average"`
	Highest Extreme `json:"highest"`
	Lowest  Extreme `json:"lowest"`
}

// SummarizeSpending returns nil for an empty ranking. Ties keep the first
// row seen.
func SummarizeSpending(rows []store.Spending) *SpendingSummary {
	if len(rows) == 0 {
		return nil
	}
	first := Extreme{CountryCode: rows[0].CountryCode, CountryName: rows[0].CountryName, Value: rows[0].SpendingUSD}
	sum := &SpendingSummary{Highest: first, Lowest: first}
	total := 0.0
	for _, r := range rows {
		total += r.SpendingUSD
		if r.SpendingUSD > sum.Highest.Value {
			sum.Highest = Extreme{CountryCode: r.CountryCode, CountryName: r.CountryName, Value: r.SpendingUSD}
		}
		if r.SpendingUSD < sum.Lowest.Value {
			sum.Lowest = Extreme{CountryCode: r.CountryCode, CountryName: r.CountryName, Value: r.SpendingUSD}
		}
	}
	sum.Average = total / float64(len(rows))
	return sum
}

// Latest returns the last value of a year-ordered series.
func Latest(series []store.YearValue) *float64 {
	if len(series) == 0 {
		return nil
	}
	v := series[len(series)-1].Value
	return &v
}

// PercentChange returns the change between the last two points of a
// series, in percent. It is nil when fewer than two points exist or the
// earlier value is zero.
func PercentChange(series []store.YearValue) *float64 {
	if len(series) < 2 {
		return nil
	}
	prev, last := series[len(series)-2].Value, series[len(series)-1].Value
	if prev == 0 {
		return nil
	}
	v := (last - prev) / prev * 100
	return &v
}

// PivotRow is one year of the enrollment table, keyed by country name.
type PivotRow struct {
	Year   int                `json:"year"`
	Values map[string]float64 `json:"values"`
}

// Pivot reshapes trend points into one row per year. Points sharing a year
// and country name are averaged; values are rounded to two decimals.
func Pivot(points []store.TrendPoint) []PivotRow {
	type acc struct {
		sum float64
		n   int
	}
	byYear := make(map[int]map[string]*acc)
	for _, p := range points {
		m, ok := byYear[p.Year]
		if !ok {
			m = make(map[string]*acc)
			byYear[p.Year] = m
		}
		a, ok := m[p.CountryName]
		if !ok {
			a = &acc{}
			m[p.CountryName] = a
		}
		a.sum += p.AvgEnrollment
		a.n++
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	out := make([]PivotRow, 0, len(years))
	for _, y := range years {
		row := PivotRow{Year: y, Values: make(map[string]float64, len(byYear[y]))}
		for name, a := range byYear[y] {
			row.Values[name] = round2(a.sum / float64(a.n))
		}
		out = append(out, row)
	}
	return out
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
