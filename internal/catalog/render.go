package catalog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searchdata"
)

// Render writes every table back to dir in the generator's layout, plus
// searchdata.js when the catalog was loaded with one.
func (c *Catalog) Render(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating render directory: %w", err)
	}
	for _, f := range c.AllFiles() {
		if err := writeAtomic(filepath.Join(dir, f.Name), func(w io.Writer) error {
			return searchdata.Write(w, f.Table)
		}); err != nil {
			return fmt.Errorf("rendering %s: %w", f.Name, err)
		}
	}
	if len(c.sections.Sections) > 0 {
		if err := writeAtomic(filepath.Join(dir, SectionsFile), func(w io.Writer) error {
			return searchdata.WriteSections(w, c.sections)
		}); err != nil {
			return fmt.Errorf("rendering %s: %w", SectionsFile, err)
		}
	}
	return nil
}

// RenderFile writes a single result file to w.
func (c *Catalog) RenderFile(w io.Writer, name string) error {
	if name == SectionsFile && len(c.sections.Sections) > 0 {
		return searchdata.WriteSections(w, c.sections)
	}
	f, ok := c.File(name)
	if !ok {
		return fmt.Errorf("%w: %s", os.ErrNotExist, name)
	}
	return searchdata.Write(w, f.Table)
}

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
