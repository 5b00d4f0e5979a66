package store

import (
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searchdata"
)

type entryRow struct {
	File      string
	Section   string
	FileIndex int
	Position  int
	ID        string
	Key       string
	Ordinal   int
	Name      string
}

type matchRow struct {
	File          string
	Position      int
	MatchPosition int
	URL           string
	Internal      bool
	Scope         string
}

func flatten(cat *catalog.Catalog) ([]entryRow, []matchRow) {
	var entries []entryRow
	var matches []matchRow
	for _, f := range cat.AllFiles() {
		f.Table.Range(func(i int, e *searchdata.Entry) bool {
			entries = append(entries, entryRow{
				File:      f.Name,
				Section:   f.Section,
				FileIndex: f.Index,
				Position:  i,
				ID:        e.ID,
				Key:       e.Key,
				Ordinal:   e.Ordinal,
				Name:      e.Name,
			})
			for j, m := range e.Matches {
				matches = append(matches, matchRow{
					File:          f.Name,
					Position:      i,
					MatchPosition: j,
					URL:           m.URL,
					Internal:      m.Internal,
					Scope:         m.Scope,
				})
			}
			return true
		})
	}
	return entries, matches
}

// assemble expects entries ordered by file and position and matches ordered
// by file, position and match position.
func assemble(sections searchdata.SectionSet, entries []entryRow, matches []matchRow) *catalog.Catalog {
	type pos struct {
		file string
		at   int
	}
	byEntry := make(map[pos][]searchdata.Match)
	for _, m := range matches {
		k := pos{m.File, m.Position}
		byEntry[k] = append(byEntry[k], searchdata.Match{URL: m.URL, Internal: m.Internal, Scope: m.Scope})
	}

	var files []catalog.File
	var current []searchdata.Entry
	var head entryRow
	flush := func() {
		if len(current) == 0 {
			return
		}
		files = append(files, catalog.File{
			Name:    head.File,
			Section: head.Section,
			Index:   head.FileIndex,
			Table:   searchdata.NewTable(head.Section, current),
		})
		current = nil
	}
	for _, r := range entries {
		if len(current) > 0 && r.File != head.File {
			flush()
		}
		if len(current) == 0 {
			head = r
		}
		current = append(current, searchdata.Entry{
			ID:      r.ID,
			Key:     r.Key,
			Ordinal: r.Ordinal,
			Name:    r.Name,
			Matches: byEntry[pos{r.File, r.Position}],
		})
	}
	flush()
	return catalog.New(sections, files)
}
