// Command packship collects input, packages directories and drives resumable
// uploads to a tus endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/docker/go-units"

	"github.com/packship/packship/archive"
	"github.com/packship/packship/prefs"
	"github.com/packship/packship/scanner"
	"github.com/packship/packship/transfer"
	"github.com/packship/packship/transfer/network"
)

const endpointEnvKey = "PACKSHIP_ENDPOINT"

func main() {
	var (
		endpoint = flag.String("endpoint", "", "tus upload endpoint URL (defaults to $PACKSHIP_ENDPOINT or the saved preference)")
		filePath = flag.String("file", "", "file to upload")
		dirPath  = flag.String("dir", "", "directory to package into a zip archive and upload")
		name     = flag.String("name", "", "filename reported to the server (defaults to the source name)")
		scanRoot = flag.String("scan", "", "list candidate package directories under this root and exit")
		pattern  = flag.String("pattern", "*", "glob pattern for -scan candidates")
		verbose  = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	logger := log.NewLogger()
	if err := run(logger, options{
		endpoint: *endpoint,
		filePath: *filePath,
		dirPath:  *dirPath,
		name:     *name,
		scanRoot: *scanRoot,
		pattern:  *pattern,
		verbose:  *verbose,
	}); err != nil {
		logger.Errorf("%s", err)
		os.Exit(1)
	}
}

type options struct {
	endpoint string
	filePath string
	dirPath  string
	name     string
	scanRoot string
	pattern  string
	verbose  bool
}

func run(logger log.Logger, opts options) error {
	prefsPath, err := prefs.DefaultPath()
	if err != nil {
		return err
	}
	store := prefs.NewStore(prefsPath)
	preferences, err := store.Load()
	if err != nil {
		logger.Warnf("Ignoring unreadable preferences: %s", err)
		preferences = prefs.Preferences{}
	}

	logger.EnableDebugLog(opts.verbose || preferences.Verbose)

	if opts.scanRoot != "" {
		return scan(logger, opts.scanRoot, opts.pattern)
	}

	endpoint := resolveEndpoint(opts.endpoint, preferences)
	if endpoint == "" {
		return fmt.Errorf("no upload endpoint: pass -endpoint, set %s or save a preference", endpointEnvKey)
	}

	data, filename, err := collectInput(logger, opts)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := network.CheckServer(ctx, endpoint, logger); err != nil {
		return err
	}

	uploader := transfer.NewUploader(endpoint, logger, nil)
	sessionURL, err := uploader.Upload(ctx, transfer.UploadInput{
		Data:     data,
		Filename: filename,
		OnProgress: func(p transfer.Progress) {
			logger.Printf("Progress: %s", p)
		},
	})
	if err != nil {
		return err
	}
	logger.Donef("Uploaded to %s", sessionURL)

	preferences.Endpoint = endpoint
	if opts.dirPath != "" {
		preferences.LastUsedDir = opts.dirPath
	}
	if err := store.Save(preferences); err != nil {
		logger.Warnf("Failed to save preferences: %s", err)
	}
	return nil
}

func resolveEndpoint(flagValue string, preferences prefs.Preferences) string {
	if flagValue != "" {
		return flagValue
	}
	if fromEnv := env.NewRepository().Get(endpointEnvKey); fromEnv != "" {
		return fromEnv
	}
	return preferences.Endpoint
}

// collectInput produces the bytes and filename to upload, archiving a
// directory into a temp zip when -dir is given.
func collectInput(logger log.Logger, opts options) ([]byte, string, error) {
	switch {
	case opts.filePath != "" && opts.dirPath != "":
		return nil, "", fmt.Errorf("-file and -dir are mutually exclusive")
	case opts.filePath != "":
		data, err := os.ReadFile(opts.filePath)
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", opts.filePath, err)
		}
		name := opts.name
		if name == "" {
			name = filepath.Base(opts.filePath)
		}
		return data, name, nil
	case opts.dirPath != "":
		packageScanner := scanner.NewScanner(logger)
		candidate, err := packageScanner.Inspect(opts.dirPath)
		if err != nil {
			return nil, "", fmt.Errorf("inspect %s: %w", opts.dirPath, err)
		}
		if err := packageScanner.Validate(candidate); err != nil {
			return nil, "", err
		}

		tempDir, err := pathutil.NewPathProvider().CreateTempDir("packship")
		if err != nil {
			return nil, "", fmt.Errorf("create temp dir: %w", err)
		}
		archivePath := filepath.Join(tempDir, filepath.Base(opts.dirPath)+".zip")

		logger.Infof("Creating archive from %s...", opts.dirPath)
		if err := archive.NewArchiver(logger).Compress(archivePath, opts.dirPath); err != nil {
			return nil, "", err
		}
		data, err := os.ReadFile(archivePath)
		if err != nil {
			return nil, "", fmt.Errorf("read archive: %w", err)
		}
		name := opts.name
		if name == "" {
			name = filepath.Base(archivePath)
		}
		return data, name, nil
	default:
		return nil, "", fmt.Errorf("nothing to upload: pass -file or -dir")
	}
}

func scan(logger log.Logger, root, pattern string) error {
	candidates, err := scanner.NewScanner(logger).Scan(root, []string{pattern})
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		logger.Printf("No candidate packages under %s", root)
		return nil
	}
	for _, candidate := range candidates {
		logger.Printf("%s  %s (%d files)",
			candidate.Path, units.HumanSizeWithPrecision(float64(candidate.SizeBytes), 3), candidate.FileCount)
	}
	return nil
}
