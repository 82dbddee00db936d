package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/IshaanNene/driverscout/internal/report"
	"github.com/IshaanNene/driverscout/internal/types"
)

const (
	jsonDir     = "json"
	markdownDir = "markdown"

	// maxSuffix bounds the collision search for one file stem.
	maxSuffix = 1000
)

// FileStorage writes each result document as a JSON file and a Markdown
// report under one output directory. A pair is written all-or-nothing and
// existing files are never overwritten.
type FileStorage struct {
	root   string
	logger *slog.Logger
}

// NewFileStorage creates a file storage rooted at outputPath.
func NewFileStorage(outputPath string, logger *slog.Logger) (*FileStorage, error) {
	for _, dir := range []string{jsonDir, markdownDir} {
		if err := os.MkdirAll(filepath.Join(outputPath, dir), 0o755); err != nil {
			return nil, &types.StorageError{Backend: "file", Path: outputPath, Err: fmt.Errorf("create output dir: %w", err)}
		}
	}
	return &FileStorage{
		root:   outputPath,
		logger: logger.With("component", "file_storage"),
	}, nil
}

func (s *FileStorage) Name() string { return "file" }

// Close is a no-op; every Store call finishes its own writes.
func (s *FileStorage) Close() error { return nil }

// Store renders doc and writes <root>/json/<stem>.json and
// <root>/markdown/<stem>.md. When a name is taken the stem gets a _2, _3, …
// suffix. If the Markdown write fails the JSON file is removed again.
func (s *FileStorage) Store(ctx context.Context, doc *types.ResultDocument) (Location, error) {
	if err := ctx.Err(); err != nil {
		return Location{}, err
	}

	jsonData, err := report.RenderJSON(doc)
	if err != nil {
		return Location{}, &types.StorageError{Backend: s.Name(), Err: err}
	}
	mdData := []byte(report.RenderMarkdown(doc))

	base := types.FileStem(doc.ServiceTag, doc.Timestamp)
	jsonDirPath := filepath.Join(s.root, jsonDir)
	mdDirPath := filepath.Join(s.root, markdownDir)

	// Both files of a pair share one stem. When either name is taken the
	// next suffix is tried for both.
	for n := 1; n <= maxSuffix; n++ {
		stem := base
		if n > 1 {
			stem = fmt.Sprintf("%s_%d", base, n)
		}
		jsonPath := filepath.Join(jsonDirPath, stem+".json")
		mdPath := filepath.Join(mdDirPath, stem+".md")

		if err := writeExclusive(jsonPath, jsonData); err != nil {
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			return Location{}, &types.StorageError{Backend: s.Name(), Path: jsonPath, Err: err}
		}

		if err := writeExclusive(mdPath, mdData); err != nil {
			if rmErr := os.Remove(jsonPath); rmErr != nil {
				s.logger.Error("rollback of json file failed", "path", jsonPath, "error", rmErr)
			}
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			return Location{}, &types.StorageError{Backend: s.Name(), Path: mdPath, Err: err}
		}

		s.logger.Debug("result stored", "json", jsonPath, "markdown", mdPath)
		return Location{JSONPath: jsonPath, MarkdownPath: mdPath}, nil
	}

	return Location{}, &types.StorageError{
		Backend: s.Name(),
		Path:    filepath.Join(jsonDirPath, base+".json"),
		Err:     fmt.Errorf("no free file name after %d attempts", maxSuffix),
	}
}

// writeExclusive writes data to a temp file in the target directory, syncs
// it and links it to path. The link fails with fs.ErrExist when path is
// taken, so a concurrent writer can never be overwritten.
func writeExclusive(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Link(tmpName, path); err != nil {
		return err
	}
	return nil
}
