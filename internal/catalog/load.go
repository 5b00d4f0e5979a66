package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searchdata"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

type Options struct {
	MaxParallel    int
	ValidateOnLoad bool
	Strict         bool
}

// ValidationError carries the violations that made a load fail.
type ValidationError struct {
	Violations []FileViolation
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d violations, first: %s", len(e.Violations), e.Violations[0])
}

func (e *ValidationError) Unwrap() error { return apperrors.ErrInvalidSearchData }

// Load reads a generated search directory. searchdata.js is optional; every
// <section>_<hex>.js file is parsed, at most opts.MaxParallel at a time.
func Load(ctx context.Context, dir string, opts Options) (*Catalog, error) {
	start := time.Now()
	logger := slog.Default().With("component", "catalog")

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading search directory: %w", err)
	}

	var sections searchdata.SectionSet
	var names []string
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		if de.Name() == SectionsFile {
			sections, err = loadSections(filepath.Join(dir, SectionsFile))
			if err != nil {
				return nil, err
			}
			continue
		}
		if _, _, ok := ParseFileName(de.Name()); ok {
			names = append(names, de.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no search files in %s", apperrors.ErrInvalidSearchData, dir)
	}

	files := make([]File, len(names))
	g, gctx := errgroup.WithContext(ctx)
	if opts.MaxParallel > 0 {
		g.SetLimit(opts.MaxParallel)
	}
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := loadFile(filepath.Join(dir, name))
			if err != nil {
				return err
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cat := New(sections, files)
	if opts.ValidateOnLoad {
		if vs := cat.Validate(opts.Strict); len(vs) > 0 {
			return nil, &ValidationError{Violations: vs}
		}
	}

	stats := cat.Stats()
	logger.Info("catalog loaded",
		"dir", dir,
		"files", stats.Files,
		"entries", stats.Entries,
		"matches", stats.Matches,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return cat, nil
}

func loadFile(path string) (File, error) {
	name := filepath.Base(path)
	section, index, _ := ParseFileName(name)
	f, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()
	tbl, err := searchdata.Parse(f, section)
	if err != nil {
		return File{}, fmt.Errorf("parsing %s: %w", name, err)
	}
	return File{Name: name, Section: section, Index: index, Table: tbl}, nil
}

func loadSections(path string) (searchdata.SectionSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return searchdata.SectionSet{}, fmt.Errorf("opening %s: %w", SectionsFile, err)
	}
	defer f.Close()
	ss, err := searchdata.ParseSections(f)
	if err != nil {
		return searchdata.SectionSet{}, fmt.Errorf("parsing %s: %w", SectionsFile, err)
	}
	return ss, nil
}

// LoadFile reads a single result file as a one-file catalog.
func LoadFile(path string) (*Catalog, error) {
	if _, _, ok := ParseFileName(filepath.Base(path)); !ok {
		return nil, fmt.Errorf("%w: %s is not a search result file name", apperrors.ErrInvalidInput, filepath.Base(path))
	}
	f, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	return New(searchdata.SectionSet{}, []File{f}), nil
}

// LoadPath loads a directory or a single result file.
func LoadPath(ctx context.Context, path string, opts Options) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", apperrors.ErrInvalidInput, path)
		}
		return nil, err
	}
	if info.IsDir() {
		return Load(ctx, path, opts)
	}
	return LoadFile(path)
}
