// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract fetches OECD education datasets and writes raw snapshots.
// A snapshot is one CSV per dataset plus a metadata JSON file, all sharing
// the run timestamp in their names.
package extract

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/edu-pipeline/pkg/types"
)

// TimestampLayout names snapshot files; it sorts chronologically.
const TimestampLayout = "20060102_150405"

const (
	metadataPrefix = "metadata_"
	labelSuffix    = "_label"
	valueColumn    = "value"
)

// Fetcher retrieves one dataset. Client implements it; tests supply fakes.
type Fetcher interface {
	FetchDataset(ctx context.Context, code string, params map[string]string) ([]types.Observation, error)
}

// DefaultDatasets are the datasets extracted when none are configured.
func DefaultDatasets() []types.DatasetSpec {
	period := map[string]string{"startPeriod": "2000", "endPeriod": "2023"}
	spending := map[string]string{"startPeriod": "2000", "endPeriod": "2023", "measure": "USD"}
	return []types.DatasetSpec{
		{Name: types.DatasetEnrollment, Code: "EDU_ENRL", Params: period},
		{Name: types.DatasetGraduation, Code: "EDU_GRAD", Params: copyParams(period)},
		{Name: types.DatasetSpending, Code: "EDU_FIN", Params: spending},
	}
}

func copyParams(p map[string]string) map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ExtractAll fetches every configured dataset in order, pausing
// cfg.RequestDelay between requests. The first failure aborts the run:
// a partial snapshot would load tables from different extraction times.
func ExtractAll(ctx context.Context, f Fetcher, cfg types.ExtractionConfig, w io.Writer) ([]types.RawDataset, error) {
	specs := cfg.Datasets
	if len(specs) == 0 {
		specs = DefaultDatasets()
	}

	out := make([]types.RawDataset, 0, len(specs))
	for i, spec := range specs {
		if i > 0 && cfg.RequestDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.RequestDelay):
			}
		}

		fmt.Fprintf(w, "fetching %s (%s)\n", spec.Name, spec.Code)
		obs, err := f.FetchDataset(ctx, spec.Code, spec.Params)
		if err != nil {
			fmt.Fprintf(w, "failed   %s: %v\n", spec.Name, err)
			return nil, fmt.Errorf("extracting %s: %w", spec.Name, err)
		}
		fmt.Fprintf(w, "fetched  %s: %d records\n", spec.Name, len(obs))

		out = append(out, types.RawDataset{
			Name:         spec.Name,
			Code:         spec.Code,
			Observations: obs,
			FetchedAt:    time.Now().UTC(),
		})
	}
	return out, nil
}

// Table is a dataset in tabular form: one column per dimension id, one
// "<id>_label" column per dimension, and a trailing value column.
type Table struct {
	Header  []string
	Records [][]string
}

// ToTable flattens observations. Columns are sorted by dimension id so the
// layout is stable regardless of map iteration order.
func ToTable(obs []types.Observation) Table {
	dimSet := make(map[string]struct{})
	for _, o := range obs {
		for k := range o.Dimensions {
			dimSet[k] = struct{}{}
		}
	}
	dims := make([]string, 0, len(dimSet))
	for k := range dimSet {
		dims = append(dims, k)
	}
	sort.Strings(dims)

	header := make([]string, 0, 2*len(dims)+1)
	header = append(header, dims...)
	for _, d := range dims {
		header = append(header, d+labelSuffix)
	}
	header = append(header, valueColumn)

	records := make([][]string, len(obs))
	for i, o := range obs {
		row := make([]string, 0, len(header))
		for _, d := range dims {
			row = append(row, o.Dimensions[d])
		}
		for _, d := range dims {
			row = append(row, o.Labels[d])
		}
		v := ""
		if o.Value != nil {
			v = strconv.FormatFloat(*o.Value, 'f', -1, 64)
		}
		records[i] = append(row, v)
	}
	return Table{Header: header, Records: records}
}

// SaveRaw writes one CSV per dataset and a metadata JSON file to dir.
func SaveRaw(datasets []types.RawDataset, dir string, now time.Time) (types.ExtractionMetadata, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.ExtractionMetadata{}, fmt.Errorf("creating raw directory: %w", err)
	}

	ts := now.Format(TimestampLayout)
	meta := types.ExtractionMetadata{
		ExtractionTime: now,
		Files:          make(map[string]string, len(datasets)),
	}

	for _, ds := range datasets {
		name := fmt.Sprintf("%s_%s.csv", ds.Name, ts)
		if err := WriteCSV(filepath.Join(dir, name), ToTable(ds.Observations)); err != nil {
			return types.ExtractionMetadata{}, fmt.Errorf("writing %s: %w", name, err)
		}
		meta.DatasetsExtracted = append(meta.DatasetsExtracted, ds.Name)
		meta.TotalRecords += len(ds.Observations)
		meta.Files[ds.Name] = name
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return types.ExtractionMetadata{}, fmt.Errorf("marshaling metadata: %w", err)
	}
	metaPath := filepath.Join(dir, MetadataFile(now))
	if err := os.WriteFile(metaPath, data, 0o644); err != nil {
		return types.ExtractionMetadata{}, fmt.Errorf("writing metadata: %w", err)
	}
	return meta, nil
}

// MetadataFile names the metadata file of the snapshot taken at now.
func MetadataFile(now time.Time) string {
	return metadataPrefix + now.Format(TimestampLayout) + ".json"
}

// WriteCSV writes t to path through a temporary file renamed on success.
func WriteCSV(path string, t Table) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".csv-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	cw := csv.NewWriter(tmp)
	if err := cw.Write(t.Header); err != nil {
		tmp.Close()
		return err
	}
	if err := cw.WriteAll(t.Records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadCSV reads a CSV file whose first row is the header.
func ReadCSV(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(rows) == 0 {
		return Table{}, fmt.Errorf("reading %s: missing header", path)
	}
	return Table{Header: rows[0], Records: rows[1:]}, nil
}

// LoadLatestRaw reads the most recent snapshot in dir, identified by the
// newest metadata file.
func LoadLatestRaw(dir string) (types.ExtractionMetadata, map[string]Table, error) {
	matches, err := filepath.Glob(filepath.Join(dir, metadataPrefix+"*.json"))
	if err != nil {
		return types.ExtractionMetadata{}, nil, err
	}
	if len(matches) == 0 {
		return types.ExtractionMetadata{}, nil, fmt.Errorf("no raw snapshot in %s: run extract first", dir)
	}
	sort.Strings(matches)
	latest := matches[len(matches)-1]

	data, err := os.ReadFile(latest)
	if err != nil {
		return types.ExtractionMetadata{}, nil, fmt.Errorf("reading %s: %w", latest, err)
	}
	var meta types.ExtractionMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return types.ExtractionMetadata{}, nil, fmt.Errorf("parsing %s: %w", latest, err)
	}

	tables := make(map[string]Table, len(meta.Files))
	for name, file := range meta.Files {
		if strings.ContainsAny(file, `/\`) {
			return types.ExtractionMetadata{}, nil, fmt.Errorf("metadata %s: invalid file name %q", latest, file)
		}
		t, err := ReadCSV(filepath.Join(dir, file))
		if err != nil {
			return types.ExtractionMetadata{}, nil, err
		}
		tables[name] = t
	}
	return meta, tables, nil
}
