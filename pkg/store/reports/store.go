package reports

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gitsby/yarg/pkg/definition"
	"github.com/gitsby/yarg/pkg/models/domain"
	"github.com/rs/zerolog"
)

var ErrNotFound = errors.New("report not found")

// Store serves report definitions by name.
type Store interface {
	ListReports(ctx context.Context) ([]string, error)
	GetReport(ctx context.Context, name string) (*domain.Report, error)
}

type dirStore struct {
	dir string
}

// NewStore serves the definition files (yaml, json, toml) found in dir.
// A report is named after its file without extension.
func NewStore(dir string) (Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open reports directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	return &dirStore{dir: dir}, nil
}

func (s *dirStore) files() (map[string]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := definition.FormatOf(e.Name()); err != nil {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		out[name] = filepath.Join(s.dir, e.Name())
	}
	return out, nil
}

func (s *dirStore) ListReports(_ context.Context) ([]string, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *dirStore) GetReport(ctx context.Context, name string) (*domain.Report, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	path, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	report, err := definition.LoadFile(path)
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().Str("report", name).Str("file", path).Msg("report definition loaded")
	return report, nil
}
