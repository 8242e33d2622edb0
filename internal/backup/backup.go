// Package backup exports the stored trip documents to a JSONL file and
// restores them from one.
package backup

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"github.com/hpungsan/tripkit/internal/db"
	"github.com/hpungsan/tripkit/internal/errors"
)

// SchemaVersion is written to the header line of every export.
const SchemaVersion = "1"

// maxLineBytes bounds a single document line on import.
const maxLineBytes = 8 << 20

// Source is what Export reads from.
type Source interface {
	Keys(ctx context.Context) ([]string, error)
	Entry(ctx context.Context, key string) (*db.Entry, error)
}

// Restorer takes over importing one key. Validate runs for every record
// before anything is written; Restore replaces the plain Put.
type Restorer interface {
	Validate(raw string) error
	Restore(ctx context.Context, raw string) error
}

// Header is the first line of an export file.
type Header struct {
	TripkitExport bool   `json:"_tripkit_export"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
}

// ExportResult describes a finished export.
type ExportResult struct {
	Path       string   `json:"path"`
	Keys       []string `json:"keys"`
	ExportedAt int64    `json:"exported_at"`
}

// ImportResult describes a finished import.
type ImportResult struct {
	Imported []string `json:"imported"`
	Skipped  []string `json:"skipped"`
}

// DefaultPath returns dir/trip-<timestamp>.jsonl.
func DefaultPath(dir string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("trip-%s.jsonl", now.Format("2006-01-02T150405")))
}

// Export writes keys (all stored keys when empty) to path, which must lie
// directly in dir. The file is written to a temporary name and renamed into
// place so an existing export survives a failure.
func Export(ctx context.Context, src Source, dir, path string, keys []string, now time.Time) (*ExportResult, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create backup directory: %w", err))
	}
	absPath, err := validatePath(path, dir, forWrite)
	if err != nil {
		return nil, err
	}

	stored, err := src.Keys(ctx)
	if err != nil {
		return nil, err
	}
	if len(keys) > 0 {
		stored = slices.DeleteFunc(stored, func(k string) bool { return !slices.Contains(keys, k) })
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := absPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	if err := enc.Encode(Header{TripkitExport: true, SchemaVersion: SchemaVersion, ExportedAt: now.UnixMilli()}); err != nil {
		return nil, errors.NewInternal(err)
	}
	for _, key := range stored {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewInternal(err)
		}
		entry, err := src.Entry(ctx, key)
		if err != nil {
			return nil, err
		}
		if err := enc.Encode(entry); err != nil {
			return nil, errors.NewInternal(err)
		}
	}
	if err := w.Flush(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	if err := os.Rename(tempPath, absPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(absPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; choose a new path")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportResult{Path: absPath, Keys: stored, ExportedAt: now.UnixMilli()}, nil
}

// Import reads an export from path (directly in dir) and writes every record
// whose key is in allowed to dst, or hands it to the key's Restorer. The
// whole file is parsed and validated before anything is written; a
// malformed file changes nothing.
func Import(ctx context.Context, dst db.Store, dir, path string, allowed []string, restorers map[string]Restorer) (*ImportResult, error) {
	absPath, err := validatePath(path, dir, forRead)
	if err != nil {
		return nil, err
	}
	file, err := openNoFollow(absPath, os.O_RDONLY, 0)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("failed to open export: %v", err))
	}
	defer file.Close()

	entries, err := parse(file)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{Imported: []string{}, Skipped: []string{}}
	for _, e := range entries {
		if !slices.Contains(allowed, e.Key) {
			res.Skipped = append(res.Skipped, e.Key)
			continue
		}
		if r, ok := restorers[e.Key]; ok {
			if err := r.Validate(e.Value); err != nil {
				return nil, err
			}
			continue
		}
		if !json.Valid([]byte(e.Value)) {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("record %q does not hold a JSON document", e.Key))
		}
	}
	for _, e := range entries {
		if !slices.Contains(allowed, e.Key) {
			continue
		}
		var err error
		if r, ok := restorers[e.Key]; ok {
			err = r.Restore(ctx, e.Value)
		} else {
			err = dst.Put(ctx, e.Key, e.Value)
		}
		if err != nil {
			return nil, err
		}
		res.Imported = append(res.Imported, e.Key)
	}
	return res, nil
}

func parse(file *os.File) ([]db.Entry, error) {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)

	var entries []db.Entry
	line := 0
	for scanner.Scan() {
		line++
		if line == 1 {
			var h Header
			if err := json.Unmarshal(scanner.Bytes(), &h); err != nil || !h.TripkitExport {
				return nil, errors.NewInvalidRequest("not a tripkit export (missing header)")
			}
			if h.SchemaVersion != SchemaVersion {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("unsupported export schema version %q", h.SchemaVersion))
			}
			continue
		}

		var e db.Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("line %d: invalid JSON: %v", line, err))
		}
		if e.Key == "" {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("line %d: key is required", line))
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("failed to read export: %v", err))
	}
	if line == 0 {
		return nil, errors.NewInvalidRequest("export file is empty")
	}
	return entries, nil
}
