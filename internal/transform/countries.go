// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transform

import (
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/edu-pipeline/pkg/types"
)

// Region and income-group fallbacks.
const (
	RegionOther        = "Other"
	IncomeHigh         = "High Income"
	IncomeNotSpecified = "Not Specified"
)

var countryNames = map[string]string{
	"USA":  "United States",
	"GBR":  "United Kingdom",
	"DEU":  "Germany",
	"FRA":  "France",
	"JPN":  "Japan",
	"CAN":  "Canada",
	"AUS":  "Australia",
	"OECD": "OECD Average",
	"EU":   "European Union",
}

var regions = map[string]string{
	"USA": "North America",
	"CAN": "North America",
	"GBR": "Europe",
	"DEU": "Europe",
	"FRA": "Europe",
	"ITA": "Europe",
	"ESP": "Europe",
	"JPN": "Asia",
	"AUS": "Oceania",
}

var highIncome = map[string]bool{
	"USA": true, "GBR": true, "DEU": true, "FRA": true,
	"JPN": true, "CAN": true, "AUS": true, "OECD": true,
}

// countryName resolves a display name: the fixed map keyed by the raw value
// or the code, then the SDMX label, then the code itself.
func countryName(raw, code, label string) string {
	if n, ok := countryNames[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return n
	}
	if n, ok := countryNames[code]; ok {
		return n
	}
	if label != "" && label != raw {
		return label
	}
	return code
}

// Region returns the region for a country code.
func Region(code string) string {
	if r, ok := regions[code]; ok {
		return r
	}
	return RegionOther
}

// IncomeGroup returns the income group for a country code.
func IncomeGroup(code string) string {
	if highIncome[code] {
		return IncomeHigh
	}
	return IncomeNotSpecified
}

// CountryMetadata builds one record per distinct country code in the batch,
// sorted by code. The first name seen for a code wins.
func CountryMetadata(b types.CleanBatch, now time.Time) []types.CountryRecord {
	names := make(map[string]string)
	add := func(code, name string) {
		if code == "" {
			return
		}
		if _, ok := names[code]; !ok {
			names[code] = name
		}
	}
	for _, r := range b.Enrollment {
		add(r.CountryCode, r.CountryName)
	}
	for _, r := range b.Graduation {
		add(r.CountryCode, r.CountryName)
	}
	for _, r := range b.Spending {
		add(r.CountryCode, r.CountryName)
	}

	codes := make([]string, 0, len(names))
	for c := range names {
		codes = append(codes, c)
	}
	sort.Strings(codes)

	date := runDate(now)
	out := make([]types.CountryRecord, 0, len(codes))
	for _, c := range codes {
		out = append(out, types.CountryRecord{
			CountryCode:   c,
			CountryName:   orDefault(names[c], c),
			Region:        Region(c),
			IncomeGroup:   IncomeGroup(c),
			DataAvailable: true,
			LastUpdated:   date,
		})
	}
	return out
}
