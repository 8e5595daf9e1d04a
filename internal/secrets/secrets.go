// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: database-dsn, minio-access-key, minio-secret-key.
package secrets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/edu-pipeline/pkg/types"
)

// Key names recognised by Apply.
const (
	KeyDatabaseDSN    = "database-dsn"
	KeyMinIOAccessKey = "minio-access-key"
	KeyMinIOSecretKey = "minio-secret-key"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on warn but do not abort.
func Load(dir string, warn io.Writer) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(warn, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Apply fills empty credential fields of cfg from loaded secrets. Values
// already set through the config file or environment win.
func Apply(cfg *types.PipelineConfig, secrets map[string]string) {
	fill := func(dst *string, key string) {
		if *dst != "" {
			return
		}
		if v, ok := secrets[key]; ok {
			*dst = v
		}
	}
	fill(&cfg.Database.DSN, KeyDatabaseDSN)
	fill(&cfg.Archive.AccessKey, KeyMinIOAccessKey)
	fill(&cfg.Archive.SecretKey, KeyMinIOSecretKey)
}
