// Package store persists raw issue files and the derived submissions file.
// The raw store is written only by the collector; the normalizer reads it and
// exclusively owns the submissions file.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joss-metrics/joss-pipeline/internal/domain"
)

// filePattern matches the raw issue files produced by the collector.
const filePattern = "issue_*.json"

// RawStore is a directory of issue_<N>.json files keyed by issue number.
type RawStore struct {
	dir string
}

// NewRawStore creates a store rooted at dir. The directory is created lazily
// on the first write.
func NewRawStore(dir string) *RawStore {
	return &RawStore{dir: dir}
}

// Dir returns the store's root directory.
func (s *RawStore) Dir() string {
	return s.dir
}

// Path returns the file path for an issue number.
func (s *RawStore) Path(number int) string {
	return filepath.Join(s.dir, fmt.Sprintf("issue_%d.json", number))
}

// Write persists one raw item under its issue number. When the file already
// exists and overwrite is false the write is skipped. Returns whether the
// file was written.
func (s *RawStore) Write(number int, item domain.RawItem, overwrite bool) (bool, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create output directory %s: %w", s.dir, err)
	}

	path := s.Path(number)
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to marshal issue #%d: %w", number, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

// List returns the paths of all raw issue files in lexicographic filename
// order. A missing directory is an error; the collect step must run first.
func (s *RawStore) List() ([]string, error) {
	if _, err := os.Stat(s.dir); err != nil {
		return nil, fmt.Errorf("input directory does not exist: %s (run collect first): %w", s.dir, err)
	}
	// filepath.Glob returns lexicographically sorted paths, which fixes the
	// processing order of the normalizer.
	paths, err := filepath.Glob(filepath.Join(s.dir, filePattern))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.dir, err)
	}
	return paths, nil
}

// Read loads one raw item from disk.
func (s *RawStore) Read(path string) (domain.RawItem, error) {
	var item domain.RawItem
	data, err := os.ReadFile(path)
	if err != nil {
		return item, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &item); err != nil {
		return item, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return item, nil
}

// WriteSubmissions replaces the submissions file with the given list,
// pretty-printed for reproducible diffs. The parent directory is created as
// needed.
func WriteSubmissions(path string, submissions []domain.Submission) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory for %s: %w", path, err)
	}
	data, err := json.MarshalIndent(submissions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal submissions: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadSubmissions loads the normalized submissions list.
func ReadSubmissions(path string) ([]domain.Submission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s (run normalize first): %w", path, err)
	}
	var submissions []domain.Submission
	if err := json.Unmarshal(data, &submissions); err != nil {
		return nil, fmt.Errorf("failed to decode %s: expected a top-level JSON list of submissions: %w", path, err)
	}
	return submissions, nil
}
