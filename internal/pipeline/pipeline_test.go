// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/edu-pipeline/internal/archive"
	"github.com/pdiddy/edu-pipeline/internal/store"
	"github.com/pdiddy/edu-pipeline/pkg/types"
)

var runTime = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func obs(country, year string, v float64) types.Observation {
	return types.Observation{
		Dimensions: map[string]string{"REF_AREA": country, "TIME_PERIOD": year},
		Value:      &v,
	}
}

// fakeFetcher serves fixed observations per dataset code.
type fakeFetcher struct {
	data    map[string][]types.Observation
	fail    string
	calls   []string
	onFetch func(code string)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{data: map[string][]types.Observation{
		"EDU_ENRL": {obs("USA", "2020", 95), obs("GBR", "2021", 90), obs("USA", "1990", 80)},
		"EDU_GRAD": {obs("DEU", "2020", 85)},
		"EDU_FIN":  {obs("USA", "2020", 10000), obs("DEU", "2020", 10000), obs("JPN", "2020", 10000)},
	}}
}

func (f *fakeFetcher) FetchDataset(_ context.Context, code string, _ map[string]string) ([]types.Observation, error) {
	f.calls = append(f.calls, code)
	if f.onFetch != nil {
		f.onFetch(code)
	}
	if code == f.fail {
		return nil, errors.New("OECD API returned HTTP 500")
	}
	return f.data[code], nil
}

type mockLoader struct {
	mock.Mock
}

func (m *mockLoader) Load(ctx context.Context, b types.CleanBatch, w io.Writer) (store.LoadSummary, error) {
	args := m.Called(ctx, b, w)
	return args.Get(0).(store.LoadSummary), args.Error(1)
}

func (m *mockLoader) TableStats(ctx context.Context) []store.TableCount {
	return m.Called(ctx).Get(0).([]store.TableCount)
}

// memStorage records uploaded keys.
type memStorage struct {
	mu   sync.Mutex
	keys []string
	fail bool
}

func (s *memStorage) Put(_ context.Context, key string, r io.Reader, _ archive.PutOptions) (archive.ObjectInfo, error) {
	if s.fail {
		return archive.ObjectInfo{}, errors.New("bucket unavailable")
	}
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return archive.ObjectInfo{}, err
	}
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
	return archive.ObjectInfo{Key: key, Size: n}, nil
}

func testConfig(t *testing.T) types.PipelineConfig {
	t.Helper()
	dir := t.TempDir()
	return types.PipelineConfig{
		Extraction: types.ExtractionConfig{RawDir: filepath.Join(dir, "raw")},
		Transform:  types.TransformConfig{ProcessedDir: filepath.Join(dir, "processed")},
		Database: types.DatabaseConfig{
			Driver:     types.DriverSQLite,
			SQLitePath: filepath.Join(dir, "education.db"),
		},
	}
}

func openStore(t *testing.T, cfg types.DatabaseConfig) *store.Store {
	t.Helper()
	s, err := store.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fixedClock() time.Time { return runTime }

func rowsByDataset(tables []store.TableCount) map[string]int {
	out := make(map[string]int, len(tables))
	for _, tc := range tables {
		out[tc.Dataset] = tc.Rows
	}
	return out
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)
	objects := &memStorage{}

	r := &Runner{
		Fetcher:  newFakeFetcher(),
		Loader:   openStore(t, cfg.Database),
		Archiver: archive.New(objects, "edu"),
		Metrics:  metrics,
		Config:   cfg,
		Now:      fixedClock,
	}

	var out bytes.Buffer
	summary, err := r.Run(context.Background(), &out)
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 7, summary.Extraction.TotalRecords)
	assert.Equal(t, store.LoadSummary{Countries: 4, Enrollment: 2, Graduation: 1, Spending: 3}, summary.Loaded)
	assert.Equal(t, map[string]int{
		types.DatasetEnrollment: 2,
		types.DatasetGraduation: 1,
		types.DatasetSpending:   3,
		types.DatasetCountries:  4,
	}, rowsByDataset(summary.Tables))

	assert.Equal(t, "enrollment_clean_20240315_103000.csv", summary.CleanFiles[types.DatasetEnrollment])
	for _, f := range []string{"enrollment_20240315_103000.csv", "metadata_20240315_103000.json"} {
		assert.FileExists(t, filepath.Join(cfg.Extraction.RawDir, f))
	}
	assert.FileExists(t, filepath.Join(cfg.Transform.ProcessedDir, "countries_clean_20240315_103000.csv"))

	assert.Len(t, summary.Archived, 8)
	assert.Contains(t, objects.keys, "edu/2024-03-15/metadata_20240315_103000.json")
	assert.Contains(t, objects.keys, "edu/2024-03-15/spending_clean_20240315_103000.csv")

	text := out.String()
	assert.Contains(t, text, "cleaned  enrollment: 2 of 3 records")
	assert.Contains(t, text, "derived  countries: 4 records")
	assert.Contains(t, text, "countries: 4, enrollment: 2, graduation: 1, spending: 3")

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues(statusSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.records.WithLabelValues(types.DatasetEnrollment)))
	assert.Equal(t, float64(runTime.Unix()), testutil.ToFloat64(metrics.lastSuccess))
}

func TestRunAppendsOnRepeat(t *testing.T) {
	cfg := testConfig(t)
	s := openStore(t, cfg.Database)
	r := &Runner{Fetcher: newFakeFetcher(), Loader: s, Config: cfg, Now: fixedClock}

	_, err := r.Run(context.Background(), io.Discard)
	require.NoError(t, err)
	summary, err := r.Run(context.Background(), io.Discard)
	require.NoError(t, err)

	counts := rowsByDataset(summary.Tables)
	assert.Equal(t, 4, counts[types.DatasetEnrollment], "fact tables append")
	assert.Equal(t, 4, counts[types.DatasetCountries], "countries upsert")
}

func TestRunExtractFailure(t *testing.T) {
	cfg := testConfig(t)
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	f := newFakeFetcher()
	f.fail = "EDU_GRAD"
	loader := new(mockLoader)

	r := &Runner{Fetcher: f, Loader: loader, Metrics: metrics, Config: cfg, Now: fixedClock}
	var out bytes.Buffer
	_, err = r.Run(context.Background(), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract: extracting graduation")
	assert.Equal(t, []string{"EDU_ENRL", "EDU_GRAD"}, f.calls)
	assert.NoDirExists(t, cfg.Extraction.RawDir)
	loader.AssertNotCalled(t, "Load", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues(statusFailure)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.runs.WithLabelValues(statusSuccess)))
}

func TestRunLoadFailure(t *testing.T) {
	cfg := testConfig(t)
	loader := new(mockLoader)
	loader.On("Load", mock.Anything, mock.Anything, mock.Anything).
		Return(store.LoadSummary{Countries: 4}, errors.New("database is locked")).Once()

	r := &Runner{Fetcher: newFakeFetcher(), Loader: loader, Config: cfg, Now: fixedClock}
	summary, err := r.Run(context.Background(), io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load: database is locked")
	assert.Equal(t, 4, summary.Loaded.Countries)
	assert.NotEmpty(t, summary.CleanFiles, "processed files are written before loading")
	loader.AssertNotCalled(t, "TableStats", mock.Anything)
}

func TestRunArchiveFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(t)
	loader := new(mockLoader)
	loader.On("Load", mock.Anything, mock.Anything, mock.Anything).Return(store.LoadSummary{}, nil)
	loader.On("TableStats", mock.Anything).Return([]store.TableCount(nil))

	r := &Runner{
		Fetcher:  newFakeFetcher(),
		Loader:   loader,
		Archiver: archive.New(&memStorage{fail: true}, ""),
		Config:   cfg,
		Now:      fixedClock,
	}
	var out bytes.Buffer
	summary, err := r.Run(context.Background(), &out)
	require.NoError(t, err)
	assert.Empty(t, summary.Archived)
	assert.Contains(t, out.String(), "failed   archive")
	loader.AssertExpectations(t)
}

func TestStagesFromDisk(t *testing.T) {
	cfg := testConfig(t)
	s := openStore(t, cfg.Database)
	objects := &memStorage{}
	r := &Runner{Fetcher: newFakeFetcher(), Loader: s, Archiver: archive.New(objects, "edu"), Config: cfg, Now: fixedClock}
	ctx := context.Background()

	meta, err := r.Extract(ctx, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, []string{types.DatasetEnrollment, types.DatasetGraduation, types.DatasetSpending}, meta.DatasetsExtracted)
	assert.Len(t, objects.keys, 4)

	batch, files, err := r.Transform(ctx, io.Discard)
	require.NoError(t, err)
	assert.Len(t, files, 4)
	require.Len(t, objects.keys, 8)
	for _, file := range files {
		assert.Contains(t, objects.keys, "edu/2024-03-15/"+file)
	}
	require.Len(t, batch.Enrollment, 2)
	assert.Equal(t, "United States", batch.Enrollment[0].CountryName)

	loaded, err := r.Load(ctx, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 10, loaded.Total())
}

func TestTransformWithoutSnapshot(t *testing.T) {
	r := &Runner{Config: testConfig(t)}
	_, _, err := r.Transform(context.Background(), io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run extract first")
}

func TestLoadWithoutSnapshot(t *testing.T) {
	r := &Runner{Config: testConfig(t), Loader: new(mockLoader)}
	_, err := r.Load(context.Background(), io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run transform first")
}

func TestScheduleOnce(t *testing.T) {
	f := newFakeFetcher()
	f.fail = "EDU_ENRL"
	r := &Runner{Fetcher: f, Config: testConfig(t), Now: fixedClock}

	err := r.Schedule(context.Background(), 0, io.Discard)
	require.Error(t, err)
	assert.Equal(t, []string{"EDU_ENRL"}, f.calls)
}

func TestScheduleContinuesAfterFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFakeFetcher()
	f.fail = "EDU_ENRL"
	runs := 0
	f.onFetch = func(code string) {
		if code == "EDU_ENRL" {
			runs++
			if runs == 2 {
				cancel()
			}
		}
	}
	r := &Runner{Fetcher: f, Config: testConfig(t), Now: fixedClock}

	var out bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- r.Schedule(ctx, 10*time.Millisecond, &out) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("schedule did not stop after cancellation")
	}
	assert.Equal(t, 2, runs)
	assert.Equal(t, 1, strings.Count(out.String(), "run failed:"))
}

func TestMetricsNilIsNoop(t *testing.T) {
	var m *Metrics
	m.observe(RunSummary{}, nil)
}

func TestRawFiles(t *testing.T) {
	meta := types.ExtractionMetadata{Files: map[string]string{"b": "b.csv", "a": "a.csv"}}
	assert.Equal(t, []string{"a.csv", "b.csv", "metadata_20240315_103000.json"}, rawFiles(meta, runTime))
}
