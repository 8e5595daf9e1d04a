// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the edu-pipeline stages:
// raw SDMX observations from extraction, cleaned per-table records from
// transformation, and the configuration for every stage.
package types

import "time"

// Dataset names used across stages, file names, and table lookups.
const (
	DatasetEnrollment = "enrollment"
	DatasetGraduation = "graduation"
	DatasetSpending   = "spending"
	DatasetCountries  = "countries"
)

// DataSourceOECD is written to every cleaned record's data_source column.
const DataSourceOECD = "OECD"

// Observation is one SDMX data point with its dimension coordinates resolved.
type Observation struct {
	// Dimensions maps a dimension id (e.g. "REF_AREA") to the value id ("USA").
	Dimensions map[string]string `json:"dimensions" yaml:"dimensions"`

	// Labels maps a dimension id to the value's display name ("United States").
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`

	// Value is nil when the observation carries no value.
	Value *float64 `json:"value" yaml:"value"`
}

// RawDataset holds the observations fetched for one OECD dataset.
type RawDataset struct {
	Name         string        `json:"name" yaml:"name"`
	Code         string        `json:"code" yaml:"code"`
	Observations []Observation `json:"observations" yaml:"observations"`
	FetchedAt    time.Time     `json:"fetched_at" yaml:"fetched_at"`
}

// ExtractionMetadata is written next to the raw CSV files of one run.
type ExtractionMetadata struct {
	ExtractionTime    time.Time         `json:"extraction_time"`
	DatasetsExtracted []string          `json:"datasets_extracted"`
	TotalRecords      int               `json:"total_records"`
	Files             map[string]string `json:"files"`
}

// EnrollmentRecord is one cleaned enrollment-rate row.
type EnrollmentRecord struct {
	CountryCode    string    `json:"country_code" yaml:"country_code"`
	CountryName    string    `json:"country_name" yaml:"country_name"`
	Year           int       `json:"year" yaml:"year"`
	EnrollmentRate float64   `json:"enrollment_rate" yaml:"enrollment_rate"`
	EducationLevel string    `json:"education_level" yaml:"education_level"`
	Gender         string    `json:"gender" yaml:"gender"`
	DataSource     string    `json:"data_source" yaml:"data_source"`
	ExtractionDate time.Time `json:"extraction_date" yaml:"extraction_date"`
}

// GraduationRecord is one cleaned graduation-rate row. CompletionRate is
// GraduationRate expressed as a fraction.
type GraduationRecord struct {
	CountryCode    string    `json:"country_code" yaml:"country_code"`
	CountryName    string    `json:"country_name" yaml:"country_name"`
	Year           int       `json:"year" yaml:"year"`
	GraduationRate float64   `json:"graduation_rate" yaml:"graduation_rate"`
	CompletionRate float64   `json:"completion_rate" yaml:"completion_rate"`
	EducationLevel string    `json:"education_level" yaml:"education_level"`
	DataSource     string    `json:"data_source" yaml:"data_source"`
	ExtractionDate time.Time `json:"extraction_date" yaml:"extraction_date"`
}

// SpendingRecord is one cleaned education-spending row.
type SpendingRecord struct {
	CountryCode        string    `json:"country_code" yaml:"country_code"`
	CountryName        string    `json:"country_name" yaml:"country_name"`
	Year               int       `json:"year" yaml:"year"`
	SpendingUSD        float64   `json:"spending_usd" yaml:"spending_usd"`
	SpendingPerCapita  float64   `json:"spending_per_capita" yaml:"spending_per_capita"`
	SpendingPercentGDP *float64  `json:"spending_percent_gdp" yaml:"spending_percent_gdp"`
	Currency           string    `json:"currency" yaml:"currency"`
	DataSource         string    `json:"data_source" yaml:"data_source"`
	ExtractionDate     time.Time `json:"extraction_date" yaml:"extraction_date"`
}

// CountryRecord is one row of country metadata, unique by CountryCode.
type CountryRecord struct {
	CountryCode   string    `json:"country_code" yaml:"country_code"`
	CountryName   string    `json:"country_name" yaml:"country_name"`
	Region        string    `json:"region" yaml:"region"`
	IncomeGroup   string    `json:"income_group" yaml:"income_group"`
	Population    *int64    `json:"population" yaml:"population"`
	GDPPerCapita  *float64  `json:"gdp_per_capita" yaml:"gdp_per_capita"`
	DataAvailable bool      `json:"data_available" yaml:"data_available"`
	LastUpdated   time.Time `json:"last_updated" yaml:"last_updated"`
}

// CleanBatch is the output of one transform run, ready for loading.
type CleanBatch struct {
	Enrollment []EnrollmentRecord `json:"enrollment" yaml:"enrollment"`
	Graduation []GraduationRecord `json:"graduation" yaml:"graduation"`
	Spending   []SpendingRecord   `json:"spending" yaml:"spending"`
	Countries  []CountryRecord    `json:"countries" yaml:"countries"`
}

// Total returns the number of records across all tables.
func (b CleanBatch) Total() int {
	return len(b.Enrollment) + len(b.Graduation) + len(b.Spending) + len(b.Countries)
}
