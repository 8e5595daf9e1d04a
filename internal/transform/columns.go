// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transform

import (
	"strings"
	"unicode"

	"github.com/pdiddy/edu-pipeline/pkg/types"
)

// labelSuffix marks a column holding the display name of a dimension value.
const labelSuffix = "_label"

var columnAliases = map[string]string{
	"time_period": "year",
	"ref_area":    "country",
	"obs_value":   "value",
	"location":    "country_code",
}

// StandardizeColumn converts a column header to snake_case and maps the
// common SDMX dimension names onto pipeline names: "TIME_PERIOD" becomes
// "year", "REF_AREA" becomes "country", "LOCATION" becomes "country_code".
func StandardizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))

	var b strings.Builder
	prevUnderscore := false
	for _, r := range name {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			r = '_'
		}
		if r == '_' {
			if prevUnderscore {
				continue
			}
			prevUnderscore = true
		} else {
			prevUnderscore = false
		}
		b.WriteRune(r)
	}
	name = b.String()

	if alias, ok := columnAliases[name]; ok {
		return alias
	}
	return name
}

// standardizeHeader standardizes a header cell. Label columns keep their
// suffix on the standardized base so "REF_AREA_label" becomes "country_label".
func standardizeHeader(h string) string {
	if base, ok := strings.CutSuffix(h, labelSuffix); ok && base != "" {
		return StandardizeColumn(base) + labelSuffix
	}
	return StandardizeColumn(h)
}

// Row is one raw observation keyed by standardized column name.
type Row map[string]string

// Rows is a raw dataset ready for cleaning.
type Rows []Row

// FromTable builds rows from a CSV header and records. Short records leave
// the trailing columns empty.
func FromTable(header []string, records [][]string) Rows {
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = standardizeHeader(h)
	}
	rows := make(Rows, 0, len(records))
	for _, rec := range records {
		row := make(Row, len(keys))
		for i, k := range keys {
			if i < len(rec) {
				row[k] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// FromObservations builds rows directly from parsed observations.
func FromObservations(obs []types.Observation) Rows {
	rows := make(Rows, 0, len(obs))
	for _, o := range obs {
		row := make(Row, 2*len(o.Dimensions)+1)
		for k, v := range o.Dimensions {
			row[StandardizeColumn(k)] = v
		}
		for k, v := range o.Labels {
			row[StandardizeColumn(k)+labelSuffix] = v
		}
		if o.Value != nil {
			row["value"] = formatFloat(*o.Value)
		} else {
			row["value"] = ""
		}
		rows = append(rows, row)
	}
	return rows
}

// hasColumn reports whether any row carries column k.
func (rs Rows) hasColumn(k string) bool {
	for _, r := range rs {
		if _, ok := r[k]; ok {
			return true
		}
	}
	return false
}

// first returns the first non-empty value among cols and the column it
// came from.
func (r Row) first(cols ...string) (string, string) {
	for _, c := range cols {
		if v := strings.TrimSpace(r[c]); v != "" {
			return v, c
		}
	}
	return "", ""
}

// display returns the label for col if present, else the value itself.
func (r Row) display(cols ...string) string {
	v, col := r.first(cols...)
	if col == "" {
		return ""
	}
	if label := strings.TrimSpace(r[col+labelSuffix]); label != "" {
		return label
	}
	return v
}
