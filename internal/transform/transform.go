// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package transform cleans raw OECD snapshots into typed records.
// Rows arrive with arbitrary SDMX dimension columns; cleaning resolves the
// country, year, and value columns, filters out-of-range observations, and
// derives country metadata from whatever countries survive.
package transform

import (
	"time"

	"github.com/pdiddy/edu-pipeline/pkg/types"
)

// Year bounds applied when a TransformConfig leaves them unset.
const (
	DefaultMinYear = 2000
	DefaultMaxYear = 2023
)

// Options controls cleaning. The zero value uses the default year range.
type Options struct {
	MinYear int
	MaxYear int
}

// OptionsFrom builds Options from the stage configuration.
func OptionsFrom(cfg types.TransformConfig) Options {
	return Options{MinYear: cfg.MinYear, MaxYear: cfg.MaxYear}
}

func (o Options) yearRange() (int, int) {
	lo, hi := o.MinYear, o.MaxYear
	if lo == 0 {
		lo = DefaultMinYear
	}
	if hi == 0 {
		hi = DefaultMaxYear
	}
	return lo, hi
}

// Batch cleans every raw dataset present in raw and builds country metadata
// from the result. Datasets missing from raw produce empty tables.
func Batch(raw map[string]Rows, opts Options, now time.Time) types.CleanBatch {
	b := types.CleanBatch{
		Enrollment: CleanEnrollment(raw[types.DatasetEnrollment], opts, now),
		Graduation: CleanGraduation(raw[types.DatasetGraduation], opts, now),
		Spending:   CleanSpending(raw[types.DatasetSpending], opts, now),
	}
	b.Countries = CountryMetadata(b, now)
	return b
}

// runDate truncates now to a UTC calendar date.
func runDate(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
