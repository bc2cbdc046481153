// Package archive builds zip packages from directory trees before upload.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
	"github.com/klauspost/compress/zip"
)

// Archiver ...
type Archiver struct {
	logger log.Logger
}

// NewArchiver ...
func NewArchiver(logger log.Logger) *Archiver {
	return &Archiver{logger: logger}
}

// Compress creates a zip archive at archivePath from the contents of
// sourceDir. Entry names are relative to sourceDir; non-regular files are
// skipped.
func (a *Archiver) Compress(archivePath string, sourceDir string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func(file *os.File) {
		if err := file.Close(); err != nil {
			a.logger.Errorf("failed to close archive: %s", err)
		}
	}(out)

	zipWriter := zip.NewWriter(out)

	sourceDir = filepath.Clean(sourceDir)
	err = filepath.Walk(sourceDir, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if fi.IsDir() {
			return nil
		}
		if !fi.Mode().IsRegular() {
			a.logger.Debugf("Skipping non-regular file %s", path)
			return nil
		}
		return a.addFile(zipWriter, sourceDir, path, fi)
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", sourceDir, err)
	}

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}
	a.logger.Printf("Archive size: %s", units.HumanSizeWithPrecision(float64(info.Size()), 3))

	return nil
}

func (a *Archiver) addFile(zipWriter *zip.Writer, sourceDir, path string, fi os.FileInfo) error {
	rel, err := filepath.Rel(sourceDir, path)
	if err != nil {
		return fmt.Errorf("relative path of %s: %w", path, err)
	}

	header, err := zip.FileInfoHeader(fi)
	if err != nil {
		return fmt.Errorf("zip header for %s: %w", path, err)
	}
	header.Name = filepath.ToSlash(rel)
	header.Method = zip.Deflate

	writer, err := zipWriter.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("add %s to archive: %w", rel, err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func(file *os.File) {
		if err := file.Close(); err != nil {
			a.logger.Errorf("failed to close file: %s", err)
		}
	}(file)

	if _, err := io.Copy(writer, file); err != nil {
		return fmt.Errorf("write %s to archive: %w", rel, err)
	}
	return nil
}
