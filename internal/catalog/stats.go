package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searchdata"
)

type SectionStats struct {
	Files        int `json:"files"`
	Entries      int `json:"entries"`
	Matches      int `json:"matches"`
	DistinctKeys int `json:"distinctKeys"`
}

type Stats struct {
	Sections      int                     `json:"sections"`
	Files         int                     `json:"files"`
	Entries       int                     `json:"entries"`
	Matches       int                     `json:"matches"`
	External      int                     `json:"external"`
	DistinctKeys  int                     `json:"distinctKeys"`
	DistinctURLs  int                     `json:"distinctUrls"`
	DistinctPages int                     `json:"distinctPages"`
	PerSection    map[string]SectionStats `json:"perSection"`
	LoadedAt      time.Time               `json:"loadedAt"`
}

func (c *Catalog) Stats() Stats {
	s := Stats{
		Sections:   len(c.order),
		PerSection: make(map[string]SectionStats, len(c.order)),
		LoadedAt:   c.loadedAt,
	}
	var keys, urls []string
	for _, section := range c.order {
		files := c.files[section]
		entries := lo.FlatMap(files, func(f File, _ int) []searchdata.Entry {
			return f.Table.Entries()
		})
		matches := lo.FlatMap(entries, func(e searchdata.Entry, _ int) []searchdata.Match {
			return e.Matches
		})
		sectionKeys := lo.Uniq(lo.Map(entries, func(e searchdata.Entry, _ int) string { return e.Key }))

		s.PerSection[section] = SectionStats{
			Files:        len(files),
			Entries:      len(entries),
			Matches:      len(matches),
			DistinctKeys: len(sectionKeys),
		}
		s.Files += len(files)
		s.Entries += len(entries)
		s.Matches += len(matches)
		s.External += lo.CountBy(matches, func(m searchdata.Match) bool { return !m.Internal })
		keys = append(keys, sectionKeys...)
		urls = append(urls, lo.Map(matches, func(m searchdata.Match, _ int) string { return m.URL })...)
	}
	s.DistinctKeys = len(lo.Uniq(keys))
	urls = lo.Uniq(urls)
	s.DistinctURLs = len(urls)
	s.DistinctPages = len(lo.Uniq(lo.Map(urls, func(u string, _ int) string {
		page, _, _ := strings.Cut(u, "#")
		return page
	})))
	return s
}

// FileViolation is a searchdata.Violation located in a result file.
type FileViolation struct {
	File string `json:"file"`
	searchdata.Violation
}

func (v FileViolation) String() string {
	return v.File + ": " + v.Violation.String()
}

// Validate checks every file independently and, when searchdata.js is
// present, that each file only holds keys starting with its character.
func (c *Catalog) Validate(strict bool) []FileViolation {
	var out []FileViolation
	for _, f := range c.AllFiles() {
		var vs []searchdata.Violation
		if strict {
			vs = searchdata.ValidateStrict(f.Table)
		} else {
			vs = searchdata.Validate(f.Table)
		}
		for _, v := range vs {
			out = append(out, FileViolation{File: f.Name, Violation: v})
		}
		out = append(out, c.checkFileChar(f)...)
	}
	return out
}

func (c *Catalog) checkFileChar(f File) []FileViolation {
	section, ok := c.sections.Lookup(f.Section)
	if !ok {
		return nil
	}
	chars := []rune(section.Chars)
	if f.Index >= len(chars) {
		return []FileViolation{{
			File: f.Name,
			Violation: searchdata.Violation{
				Field:   "file",
				Message: fmt.Sprintf("section %q lists only %d files", f.Section, len(chars)),
			},
		}}
	}
	prefix := searchdata.EncodeID(string(chars[f.Index]))
	var out []FileViolation
	f.Table.Range(func(_ int, e *searchdata.Entry) bool {
		if !strings.HasPrefix(e.Key, prefix) {
			out = append(out, FileViolation{
				File: f.Name,
				Violation: searchdata.Violation{
					EntryID: e.ID,
					Field:   "key",
					Message: fmt.Sprintf("key does not start with %q", prefix),
				},
			})
		}
		return true
	})
	return out
}
