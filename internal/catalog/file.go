package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// FileSource reads the three configuration documents from disk.
// A missing compound rules or enrichments file is treated as empty; a
// missing tips file is an error.
type FileSource struct {
	TipsPath        string
	RulesPath       string
	EnrichmentsPath string
}

// Name implements Source.
func (s *FileSource) Name() string {
	return "file"
}

// Load implements Source.
func (s *FileSource) Load(ctx context.Context) (Documents, error) {
	if err := ctx.Err(); err != nil {
		return Documents{}, err
	}

	tipsDoc, err := os.ReadFile(s.TipsPath)
	if err != nil {
		return Documents{}, fmt.Errorf("failed to read tips file: %w", err)
	}

	rulesDoc, err := readOptional(s.RulesPath)
	if err != nil {
		return Documents{}, fmt.Errorf("failed to read compound rules file: %w", err)
	}

	enrichmentsDoc, err := readOptional(s.EnrichmentsPath)
	if err != nil {
		return Documents{}, fmt.Errorf("failed to read enrichments file: %w", err)
	}

	return Documents{Tips: tipsDoc, Rules: rulesDoc, Enrichments: enrichmentsDoc}, nil
}

// Paths returns the configured file paths, skipping empty ones.
func (s *FileSource) Paths() []string {
	var paths []string
	for _, p := range []string{s.TipsPath, s.RulesPath, s.EnrichmentsPath} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

var _ Source = (*FileSource)(nil)
