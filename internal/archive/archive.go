// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive copies snapshot files to S3-compatible object storage.
// Objects are keyed {prefix}/{run date}/{file name}.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// PutOptions are the optional parameters of an upload.
type PutOptions struct {
	// Size is the object length, or -1 when unknown.
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key  string
	Size int64
	ETag string
}

// Storage is the subset of an object store the archiver uses.
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, opt PutOptions) (ObjectInfo, error)
}

// Archiver uploads snapshot files under a common prefix.
type Archiver struct {
	store  Storage
	prefix string
}

// New returns an Archiver writing through s. prefix may be empty.
func New(s Storage, prefix string) *Archiver {
	return &Archiver{store: s, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key for file archived on runDate.
func (a *Archiver) Key(runDate time.Time, file string) string {
	day := runDate.UTC().Format("2006-01-02")
	if a.prefix == "" {
		return path.Join(day, file)
	}
	return path.Join(a.prefix, day, file)
}

// ArchiveFiles uploads each named file from dir and returns the keys
// written, in file-name order. It stops at the first failure.
func (a *Archiver) ArchiveFiles(ctx context.Context, dir string, files []string, runDate time.Time, w io.Writer) ([]string, error) {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)

	keys := make([]string, 0, len(sorted))
	for _, name := range sorted {
		if err := ctx.Err(); err != nil {
			return keys, err
		}
		key := a.Key(runDate, name)
		if err := a.upload(ctx, filepath.Join(dir, name), key); err != nil {
			fmt.Fprintf(w, "failed   archive %s: %v\n", name, err)
			return keys, fmt.Errorf("archiving %s: %w", name, err)
		}
		fmt.Fprintf(w, "archived %s -> %s\n", name, key)
		keys = append(keys, key)
	}
	return keys, nil
}

func (a *Archiver) upload(ctx context.Context, src, key string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	_, err = a.store.Put(ctx, key, f, PutOptions{
		Size:        st.Size(),
		ContentType: contentType(src),
	})
	return err
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
