// Package catalog assembles every search file of a generated documentation
// site into one immutable, section-aware collection.
package catalog

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searchdata"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// SectionsFile is the metadata file the generator writes next to the
// result files.
const SectionsFile = "searchdata.js"

var fileNamePattern = regexp.MustCompile(`^([a-z]+)_([0-9a-f]+)\.js$`)

// File is one parsed result file, e.g. all_4.js.
type File struct {
	Name    string
	Section string
	Index   int
	Table   *searchdata.Table
}

// ParseFileName splits "all_4.js" into its section and hex index.
func ParseFileName(name string) (section string, index int, ok bool) {
	m := fileNamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", 0, false
	}
	n, err := strconv.ParseInt(m[2], 16, 32)
	if err != nil {
		return "", 0, false
	}
	return m[1], int(n), true
}

// FileName is the inverse of ParseFileName.
func FileName(section string, index int) string {
	return section + "_" + strconv.FormatInt(int64(index), 16) + ".js"
}

type Catalog struct {
	sections searchdata.SectionSet
	files    map[string][]File
	order    []string
	loadedAt time.Time
}

// New builds a catalog from parsed files. Files are ordered by section (in
// the order of sections, then by name) and by index within a section.
func New(sections searchdata.SectionSet, files []File) *Catalog {
	c := &Catalog{
		sections: sections,
		files:    make(map[string][]File),
		loadedAt: time.Now(),
	}
	for _, f := range files {
		c.files[f.Section] = append(c.files[f.Section], f)
	}
	for name, fs := range c.files {
		sort.Slice(fs, func(i, j int) bool { return fs[i].Index < fs[j].Index })
		c.files[name] = fs
	}

	known := map[string]bool{}
	for _, name := range sections.Names() {
		if _, ok := c.files[name]; ok {
			c.order = append(c.order, name)
			known[name] = true
		}
	}
	var extra []string
	for name := range c.files {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	c.order = append(c.order, extra...)
	return c
}

// Sections returns the names of sections that have at least one file.
func (c *Catalog) Sections() []string {
	return append([]string(nil), c.order...)
}

// SectionSet returns the parsed searchdata.js, which may be empty.
func (c *Catalog) SectionSet() searchdata.SectionSet { return c.sections }

func (c *Catalog) LoadedAt() time.Time { return c.loadedAt }

func (c *Catalog) HasSection(section string) bool {
	_, ok := c.files[section]
	return ok
}

// Files returns the files of a section in index order.
func (c *Catalog) Files(section string) ([]File, error) {
	fs, ok := c.files[section]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrUnknownSection, http.StatusNotFound, "section %q", section)
	}
	return append([]File(nil), fs...), nil
}

// AllFiles returns every file, section by section.
func (c *Catalog) AllFiles() []File {
	var out []File
	for _, s := range c.order {
		out = append(out, c.files[s]...)
	}
	return out
}

// File finds a result file by name.
func (c *Catalog) File(name string) (File, bool) {
	section, _, ok := ParseFileName(name)
	if !ok {
		return File{}, false
	}
	for _, f := range c.files[section] {
		if f.Name == name {
			return f, true
		}
	}
	return File{}, false
}

// Table concatenates the entries of every file in a section. Ids are only
// unique per file, so the merged table is meant for reading, not validation.
func (c *Catalog) Table(section string) (*searchdata.Table, error) {
	fs, err := c.Files(section)
	if err != nil {
		return nil, err
	}
	var entries []searchdata.Entry
	for _, f := range fs {
		entries = append(entries, f.Table.Entries()...)
	}
	return searchdata.NewTable(section, entries), nil
}

// Range visits every entry of a section in file order.
func (c *Catalog) Range(section string, fn func(f File, e *searchdata.Entry) bool) error {
	fs, ok := c.files[section]
	if !ok {
		return fmt.Errorf("range %q: %w", section, apperrors.ErrUnknownSection)
	}
	for _, f := range fs {
		stop := false
		f.Table.Range(func(_ int, e *searchdata.Entry) bool {
			if !fn(f, e) {
				stop = true
				return false
			}
			return true
		})
		if stop {
			return nil
		}
	}
	return nil
}
