// Package scanner detects candidate packages on local storage.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bmatcuk/doublestar/v4"
)

// Candidate is a directory eligible for packaging and upload.
type Candidate struct {
	Path      string
	SizeBytes int64
	FileCount int
}

// Scanner ...
type Scanner struct {
	logger log.Logger
}

// NewScanner ...
func NewScanner(logger log.Logger) *Scanner {
	return &Scanner{logger: logger}
}

// Scan returns the directories under root whose relative path matches any of
// the glob patterns. Patterns follow doublestar syntax, e.g. "**/export-*".
// Unreadable matches are skipped with a warning.
func (s *Scanner) Scan(root string, patterns []string) ([]Candidate, error) {
	fsys := os.DirFS(root)

	seen := map[string]bool{}
	var candidates []Candidate
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}

		for _, match := range matches {
			path := filepath.Join(root, filepath.FromSlash(match))
			if seen[path] {
				continue
			}
			seen[path] = true

			info, err := os.Stat(path)
			if err != nil {
				s.logger.Warnf("Skipping %s: %s", path, err)
				continue
			}
			if !info.IsDir() {
				continue
			}

			candidate, err := s.Inspect(path)
			if err != nil {
				s.logger.Warnf("Skipping %s: %s", path, err)
				continue
			}
			candidates = append(candidates, candidate)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Path < candidates[j].Path
	})
	return candidates, nil
}

// Validate rejects candidates that cannot be packaged.
func (s *Scanner) Validate(c Candidate) error {
	if c.FileCount == 0 {
		return fmt.Errorf("%s contains no files", c.Path)
	}
	return nil
}

// Inspect sizes up a single directory as an upload candidate.
func (s *Scanner) Inspect(dir string) (Candidate, error) {
	candidate := Candidate{Path: dir}
	err := filepath.Walk(dir, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if fi.Mode().IsRegular() {
			candidate.SizeBytes += fi.Size()
			candidate.FileCount++
		}
		return nil
	})
	if err != nil {
		return Candidate{}, err
	}
	return candidate, nil
}
