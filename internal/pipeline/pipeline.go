// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the extract, transform and load stages end to end.
// Each stage is also callable on its own, reading the previous stage's
// newest snapshot from disk.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/edu-pipeline/internal/archive"
	"github.com/pdiddy/edu-pipeline/internal/extract"
	"github.com/pdiddy/edu-pipeline/internal/store"
	"github.com/pdiddy/edu-pipeline/internal/transform"
	"github.com/pdiddy/edu-pipeline/pkg/types"
)

// Loader writes a cleaned batch. *store.Store implements it.
type Loader interface {
	Load(ctx context.Context, b types.CleanBatch, w io.Writer) (store.LoadSummary, error)
	TableStats(ctx context.Context) []store.TableCount
}

// Runner wires the stages together. Fetcher and Loader are required;
// a nil Archiver skips archiving and a nil Metrics records nothing.
type Runner struct {
	Fetcher  extract.Fetcher
	Loader   Loader
	Archiver *archive.Archiver
	Metrics  *Metrics
	Logger   *slog.Logger
	Config   types.PipelineConfig

	// Now defaults to time.Now.
	Now func() time.Time
}

// RunSummary describes one completed or failed run.
type RunSummary struct {
	RunID      string                   `json:"run_id" yaml:"run_id"`
	StartedAt  time.Time                `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time                `json:"finished_at" yaml:"finished_at"`
	Extraction types.ExtractionMetadata `json:"extraction" yaml:"extraction"`
	CleanFiles map[string]string        `json:"clean_files" yaml:"clean_files"`
	Archived   []string                 `json:"archived,omitempty" yaml:"archived,omitempty"`
	Loaded     store.LoadSummary        `json:"loaded" yaml:"loaded"`
	Tables     []store.TableCount       `json:"tables" yaml:"tables"`
}

// Duration is the wall time of the run.
func (s RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Run executes a full pipeline run: extract and save raw files, archive
// them, clean and save processed files, then load the database.
func (r *Runner) Run(ctx context.Context, w io.Writer) (RunSummary, error) {
	started := r.now()
	summary := RunSummary{RunID: uuid.NewString(), StartedAt: started}
	logger := r.logger().With("run_id", summary.RunID)

	logger.Info("pipeline run started")
	err := r.run(ctx, started, &summary, w)
	summary.FinishedAt = r.now()
	r.Metrics.observe(summary, err)

	if err != nil {
		logger.Error("pipeline run failed", "error", err, "duration", summary.Duration())
		return summary, err
	}
	logger.Info("pipeline run complete",
		"records", summary.Loaded.Total(),
		"duration", summary.Duration(),
	)
	return summary, nil
}

func (r *Runner) run(ctx context.Context, now time.Time, summary *RunSummary, w io.Writer) error {
	datasets, meta, err := r.extract(ctx, now, w)
	if err != nil {
		return err
	}
	summary.Extraction = meta
	summary.Archived = append(summary.Archived, r.archive(ctx, r.Config.Extraction.RawDir, rawFiles(meta, now), now, w)...)

	raw := make(map[string]transform.Rows, len(datasets))
	for _, ds := range datasets {
		raw[ds.Name] = transform.FromObservations(ds.Observations)
	}
	batch, files, err := r.clean(raw, now, w)
	if err != nil {
		return err
	}
	summary.CleanFiles = files
	summary.Archived = append(summary.Archived, r.archive(ctx, r.Config.Transform.ProcessedDir, values(files), now, w)...)

	fmt.Fprintln(w)
	loaded, err := r.Loader.Load(ctx, batch, w)
	summary.Loaded = loaded
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	summary.Tables = r.Loader.TableStats(ctx)
	return nil
}

// Extract fetches every dataset and writes the raw snapshot.
func (r *Runner) Extract(ctx context.Context, w io.Writer) (types.ExtractionMetadata, error) {
	now := r.now()
	_, meta, err := r.extract(ctx, now, w)
	if err != nil {
		return meta, err
	}
	r.archive(ctx, r.Config.Extraction.RawDir, rawFiles(meta, now), now, w)
	return meta, nil
}

func (r *Runner) extract(ctx context.Context, now time.Time, w io.Writer) ([]types.RawDataset, types.ExtractionMetadata, error) {
	datasets, err := extract.ExtractAll(ctx, r.Fetcher, r.Config.Extraction, w)
	if err != nil {
		return nil, types.ExtractionMetadata{}, fmt.Errorf("extract: %w", err)
	}
	meta, err := extract.SaveRaw(datasets, r.Config.Extraction.RawDir, now)
	if err != nil {
		return nil, types.ExtractionMetadata{}, fmt.Errorf("saving raw data: %w", err)
	}
	fmt.Fprintf(w, "\nextracted %d records from %d datasets\n", meta.TotalRecords, len(meta.DatasetsExtracted))
	return datasets, meta, nil
}

// Transform cleans the newest raw snapshot, writes the processed files, and
// archives them.
func (r *Runner) Transform(ctx context.Context, w io.Writer) (types.CleanBatch, map[string]string, error) {
	_, tables, err := extract.LoadLatestRaw(r.Config.Extraction.RawDir)
	if err != nil {
		return types.CleanBatch{}, nil, err
	}
	raw := make(map[string]transform.Rows, len(tables))
	for name, t := range tables {
		raw[name] = transform.FromTable(t.Header, t.Records)
	}
	now := r.now()
	batch, files, err := r.clean(raw, now, w)
	if err != nil {
		return batch, nil, err
	}
	r.archive(ctx, r.Config.Transform.ProcessedDir, values(files), now, w)
	return batch, files, nil
}

func (r *Runner) clean(raw map[string]transform.Rows, now time.Time, w io.Writer) (types.CleanBatch, map[string]string, error) {
	batch := transform.Batch(raw, transform.OptionsFrom(r.Config.Transform), now)

	fmt.Fprintf(w, "cleaned  %s: %d of %d records\n", types.DatasetEnrollment, len(batch.Enrollment), len(raw[types.DatasetEnrollment]))
	fmt.Fprintf(w, "cleaned  %s: %d of %d records\n", types.DatasetGraduation, len(batch.Graduation), len(raw[types.DatasetGraduation]))
	fmt.Fprintf(w, "cleaned  %s: %d of %d records\n", types.DatasetSpending, len(batch.Spending), len(raw[types.DatasetSpending]))
	fmt.Fprintf(w, "derived  %s: %d records\n", types.DatasetCountries, len(batch.Countries))

	files, err := transform.SaveClean(batch, r.Config.Transform.ProcessedDir, now)
	if err != nil {
		return batch, nil, fmt.Errorf("saving processed data: %w", err)
	}
	return batch, files, nil
}

// Load writes the newest processed snapshot to the database.
func (r *Runner) Load(ctx context.Context, w io.Writer) (store.LoadSummary, error) {
	batch, err := transform.LoadLatestClean(r.Config.Transform.ProcessedDir)
	if err != nil {
		return store.LoadSummary{}, err
	}
	return r.Loader.Load(ctx, batch, w)
}

// archive uploads files when an archiver is configured. Failures are
// reported and logged but do not fail the run; the local snapshot remains
// the source of truth.
func (r *Runner) archive(ctx context.Context, dir string, files []string, now time.Time, w io.Writer) []string {
	if r.Archiver == nil || len(files) == 0 {
		return nil
	}
	keys, err := r.Archiver.ArchiveFiles(ctx, dir, files, now, w)
	if err != nil {
		r.logger().Warn("archiving snapshot failed", "dir", dir, "error", err)
	}
	return keys
}

// Schedule runs immediately and then every interval until ctx is
// cancelled. A failed run is logged and the schedule continues. A
// non-positive interval runs once and returns that run's error.
func (r *Runner) Schedule(ctx context.Context, interval time.Duration, w io.Writer) error {
	if interval <= 0 {
		_, err := r.Run(ctx, w)
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger().Info("pipeline scheduled", "interval", interval)
	for {
		if _, err := r.Run(ctx, w); err != nil && ctx.Err() == nil {
			fmt.Fprintf(w, "run failed: %v\n", err)
		}
		select {
		case <-ctx.Done():
			r.logger().Info("pipeline schedule stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func rawFiles(meta types.ExtractionMetadata, now time.Time) []string {
	return append(values(meta.Files), extract.MetadataFile(now))
}

func values(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
