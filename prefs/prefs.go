// Package prefs persists user preferences of the upload host between runs.
package prefs

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bitrise-io/go-utils/v2/fileutil"
)

// Preferences are the persisted settings.
type Preferences struct {
	Endpoint    string `json:"endpoint"`
	LastUsedDir string `json:"last_used_dir,omitempty"`
	Verbose     bool   `json:"verbose,omitempty"`
}

// Store loads and saves preferences at a fixed file path.
type Store struct {
	path        string
	fileManager fileutil.FileManager
}

// NewStore ...
func NewStore(path string) *Store {
	return &Store{
		path:        path,
		fileManager: fileutil.NewFileManager(),
	}
}

// DefaultPath returns the preferences file location under the user config
// directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config dir: %w", err)
	}
	return filepath.Join(dir, "packship", "prefs.json"), nil
}

// Load reads the stored preferences. Returns zero-value defaults when
// nothing was saved yet.
func (s *Store) Load() (Preferences, error) {
	reader, err := s.fileManager.OpenReaderIfExists(s.path)
	if err != nil {
		return Preferences{}, fmt.Errorf("open preferences file: %w", err)
	}
	if reader == nil {
		return Preferences{}, nil
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return Preferences{}, fmt.Errorf("read preferences file: %w", err)
	}

	var preferences Preferences
	if err := json.Unmarshal(content, &preferences); err != nil {
		return Preferences{}, fmt.Errorf("parse preferences file: %w", err)
	}
	return preferences, nil
}

// Save writes the preferences, creating the parent directory if needed.
func (s *Store) Save(preferences Preferences) error {
	content, err := json.MarshalIndent(preferences, "", "  ")
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}
	if err := s.fileManager.Write(s.path, string(content), 0600); err != nil {
		return fmt.Errorf("write preferences file: %w", err)
	}
	return nil
}
