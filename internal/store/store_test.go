// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/edu-pipeline/pkg/types"
)

// --- test helpers ---

var day = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(types.DatabaseConfig{
		Driver:     types.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "data", "education.db"),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleBatch() types.CleanBatch {
	pct := 5.1
	return types.CleanBatch{
		Countries: []types.CountryRecord{
			{CountryCode: "USA", CountryName: "United States", Region: "North America", IncomeGroup: "High Income", DataAvailable: true, LastUpdated: day},
			{CountryCode: "DEU", CountryName: "Germany", Region: "Europe", IncomeGroup: "High Income", DataAvailable: true, LastUpdated: day},
			{CountryCode: "BRA", CountryName: "Brazil", Region: "Other", IncomeGroup: "Not Specified", DataAvailable: true, LastUpdated: day.AddDate(0, 0, -1)},
		},
		Enrollment: []types.EnrollmentRecord{
			{CountryCode: "USA", CountryName: "United States", Year: 2021, EnrollmentRate: 90, EducationLevel: "Primary", Gender: "Female", DataSource: "OECD", ExtractionDate: day},
			{CountryCode: "USA", CountryName: "United States", Year: 2021, EnrollmentRate: 94, EducationLevel: "Primary", Gender: "Male", DataSource: "OECD", ExtractionDate: day},
			{CountryCode: "USA", CountryName: "United States", Year: 2022, EnrollmentRate: 95, EducationLevel: "Primary", Gender: "Not Specified", DataSource: "OECD", ExtractionDate: day},
			{CountryCode: "DEU", CountryName: "Germany", Year: 2022, EnrollmentRate: 97, EducationLevel: "Primary", Gender: "Not Specified", DataSource: "OECD", ExtractionDate: day},
		},
		Graduation: []types.GraduationRecord{
			{CountryCode: "USA", CountryName: "United States", Year: 2022, GraduationRate: 85, CompletionRate: 0.85, EducationLevel: "All Levels", DataSource: "OECD", ExtractionDate: day},
			{CountryCode: "DEU", CountryName: "Germany", Year: 2022, GraduationRate: 90, CompletionRate: 0.9, EducationLevel: "All Levels", DataSource: "OECD", ExtractionDate: day},
			{CountryCode: "BRA", CountryName: "Brazil", Year: 2021, GraduationRate: 60, CompletionRate: 0.6, EducationLevel: "All Levels", DataSource: "OECD", ExtractionDate: day},
		},
		Spending: []types.SpendingRecord{
			{CountryCode: "USA", CountryName: "United States", Year: 2022, SpendingUSD: 15000, SpendingPerCapita: 15000, Currency: "USD", DataSource: "OECD", ExtractionDate: day},
			{CountryCode: "DEU", CountryName: "Germany", Year: 2022, SpendingUSD: 12000, SpendingPerCapita: 12000, SpendingPercentGDP: &pct, Currency: "USD", DataSource: "OECD", ExtractionDate: day},
			{CountryCode: "DEU", CountryName: "Germany", Year: 2020, SpendingUSD: 11000, SpendingPerCapita: 11000, Currency: "USD", DataSource: "OECD", ExtractionDate: day},
		},
	}
}

func loadSample(t *testing.T, s *Store) {
	t.Helper()
	if _, err := s.Load(context.Background(), sampleBatch(), &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
}

// --- Open / New ---

func TestOpenCreatesDatabaseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "edu.db")
	s, err := Open(types.DatabaseConfig{Driver: types.DriverSQLite, SQLitePath: path})
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
	assert.Equal(t, DefaultTables(), s.Tables())
}

func TestOpenErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  types.DatabaseConfig
		want string
	}{
		{"empty sqlite path", types.DatabaseConfig{Driver: types.DriverSQLite}, "sqlite path is empty"},
		{"empty dsn", types.DatabaseConfig{Driver: types.DriverPostgres}, "postgres dsn is empty"},
		{"unknown driver", types.DatabaseConfig{Driver: "mysql"}, "unsupported database driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewRejectsInvalidTableNames(t *testing.T) {
	_, err := New(nil, types.DriverSQLite, types.TableNames{Enrollment: "enrollment; DROP TABLE x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")
}

// --- Load ---

func TestCreateTablesIsIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateTables(ctx))
	require.NoError(t, s.CreateTables(ctx))
}

func TestLoad(t *testing.T) {
	s := testStore(t)
	var buf bytes.Buffer

	summary, err := s.Load(context.Background(), sampleBatch(), &buf)
	require.NoError(t, err)
	assert.Equal(t, LoadSummary{Countries: 3, Enrollment: 4, Graduation: 3, Spending: 3}, summary)
	assert.Equal(t, 13, summary.Total())

	out := buf.String()
	assert.Contains(t, out, "loaded   countries: 3 records")
	assert.Contains(t, out, "countries: 3, enrollment: 4, graduation: 3, spending: 3")
}

func TestLoadAppendsFactsAndUpsertsCountries(t *testing.T) {
	s := testStore(t)
	loadSample(t, s)
	loadSample(t, s)

	stats := s.TableStats(context.Background())
	got := map[string]int{}
	for _, st := range stats {
		got[st.Dataset] = st.Rows
	}
	assert.Equal(t, map[string]int{
		types.DatasetEnrollment: 8,
		types.DatasetGraduation: 6,
		types.DatasetSpending:   6,
		types.DatasetCountries:  3,
	}, got)
}

func TestUpsertCountriesReplacesFields(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	loadSample(t, s)

	pop := int64(83_000_000)
	_, err := s.UpsertCountries(ctx, []types.CountryRecord{
		{CountryCode: "DEU", CountryName: "Deutschland", Region: "Europe", IncomeGroup: "High Income", Population: &pop, DataAvailable: false, LastUpdated: day},
	})
	require.NoError(t, err)

	c, err := s.Country(ctx, "DEU")
	require.NoError(t, err)
	assert.Equal(t, "Deutschland", c.Name)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Countries, 3)
	deu := snap.Countries[1]
	assert.Equal(t, "DEU", deu.CountryCode)
	require.NotNil(t, deu.Population)
	assert.Equal(t, pop, *deu.Population)
	assert.False(t, deu.DataAvailable)
}

func TestTableStatsMissingTables(t *testing.T) {
	s := testStore(t)
	for _, st := range s.TableStats(context.Background()) {
		assert.Zero(t, st.Rows, st.Table)
	}
}

// --- queries ---

func TestCountries(t *testing.T) {
	s := testStore(t)
	loadSample(t, s)

	got, err := s.Countries(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"Brazil", "Germany", "United States"}, []string{got[0].Name, got[1].Name, got[2].Name})
	assert.Equal(t, "North America", got[2].Region)
}

func TestCountryNotFound(t *testing.T) {
	s := testStore(t)
	loadSample(t, s)

	_, err := s.Country(context.Background(), "XXX")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnrollmentTrends(t *testing.T) {
	s := testStore(t)
	loadSample(t, s)
	ctx := context.Background()

	got, err := s.EnrollmentTrends(ctx, []string{"USA"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, TrendPoint{Year: 2021, CountryCode: "USA", CountryName: "United States", AvgEnrollment: 92, DataPoints: 2}, got[0])
	assert.Equal(t, 2022, got[1].Year)

	all, err := s.EnrollmentTrends(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "DEU", all[1].CountryCode, "ordered by year then country")
}

func TestGraduationRates(t *testing.T) {
	s := testStore(t)
	loadSample(t, s)

	got, err := s.GraduationRates(context.Background(), 2022)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "DEU", got[0].CountryCode)
	assert.InDelta(t, 0.85, got[1].CompletionRate, 1e-9)

	none, err := s.GraduationRates(context.Background(), 2005)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGraduationRatesLimit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateTables(ctx))

	var rs []types.GraduationRecord
	for i := 0; i < GraduationLimit+5; i++ {
		rs = append(rs, types.GraduationRecord{CountryCode: "C" + string(rune('A'+i)), Year: 2022, GraduationRate: float64(i)})
	}
	_, err := s.LoadGraduation(ctx, rs)
	require.NoError(t, err)

	got, err := s.GraduationRates(ctx, 2022)
	require.NoError(t, err)
	assert.Len(t, got, GraduationLimit)
	assert.Equal(t, float64(GraduationLimit+4), got[0].GraduationRate)
}

func TestSpendingComparison(t *testing.T) {
	s := testStore(t)
	loadSample(t, s)

	got, err := s.SpendingComparison(context.Background(), 2022)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Spending{CountryCode: "USA", CountryName: "United States", SpendingUSD: 15000, SpendingPerCapita: 15000}, got[0])
}

func TestCountryIndicators(t *testing.T) {
	s := testStore(t)
	loadSample(t, s)

	ind, err := s.CountryIndicators(context.Background(), "DEU")
	require.NoError(t, err)
	assert.Equal(t, []YearValue{{Year: 2022, Value: 97}}, ind.Enrollment)
	assert.Equal(t, []YearValue{{Year: 2022, Value: 90}}, ind.Graduation)
	assert.Equal(t, []YearValue{{Year: 2020, Value: 11000}, {Year: 2022, Value: 12000}}, ind.Spending)
}

func TestLastUpdated(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateTables(ctx))

	got, err := s.LastUpdated(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	loadSample(t, s)
	got, err = s.LastUpdated(ctx)
	require.NoError(t, err)
	assert.Equal(t, day, got)
}

// --- export ---

func TestExportJSONAndYAML(t *testing.T) {
	s := testStore(t)
	loadSample(t, s)
	ctx := context.Background()
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "out", "export.json")
	require.NoError(t, s.ExportJSON(ctx, jsonPath))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var fromJSON types.CleanBatch
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	assert.Len(t, fromJSON.Enrollment, 4)
	assert.Equal(t, "BRA", fromJSON.Countries[0].CountryCode)

	yamlPath := filepath.Join(dir, "export.yaml")
	require.NoError(t, s.ExportYAML(ctx, yamlPath))
	data, err = os.ReadFile(yamlPath)
	require.NoError(t, err)
	var fromYAML types.CleanBatch
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	require.Len(t, fromYAML.Spending, 3)
	require.NotNil(t, fromYAML.Spending[1].SpendingPercentGDP)
	assert.InDelta(t, 5.1, *fromYAML.Spending[1].SpendingPercentGDP, 1e-9)
	assert.Nil(t, fromYAML.Spending[0].SpendingPercentGDP)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := testStore(t)
	loadSample(t, s)

	got, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	want := sampleBatch()
	assert.Equal(t, want.Enrollment, got.Enrollment)
	assert.Equal(t, want.Graduation, got.Graduation)
	assert.Equal(t, want.Spending, got.Spending)
}
