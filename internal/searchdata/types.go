// Package searchdata reads, writes and validates the JavaScript search tables
// a documentation generator emits next to its HTML pages. Each table is an
// ordered list of entries mapping an encoded key to the pages that define
// or mention it.
package searchdata

// Match is one rendered search result.
type Match struct {
	// URL is relative to the search directory and may carry a #fragment.
	URL string `json:"url"`
	// Internal is the generator's frame flag: true opens the page in the
	// documentation frame, false in a new window.
	Internal bool `json:"internal"`
	// Scope names the enclosing namespace, class or group. It is HTML
	// escaped exactly as emitted and may be empty.
	Scope string `json:"scope,omitempty"`
}

// Entry maps a search key to its matches.
type Entry struct {
	ID      string  `json:"id"`
	Key     string  `json:"key"`
	Ordinal int     `json:"ordinal"`
	Name    string  `json:"name"`
	Matches []Match `json:"matches"`
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	c := e
	c.Matches = append([]Match(nil), e.Matches...)
	return c
}

// Table is the parsed content of one search file. It is never mutated after
// construction; accessors hand out copies.
type Table struct {
	section string
	entries []Entry
}

// NewTable builds a table from entries, copying them. Key and Ordinal are
// derived from ID when Key is empty.
func NewTable(section string, entries []Entry) *Table {
	t := &Table{
		section: section,
		entries: make([]Entry, len(entries)),
	}
	for i, e := range entries {
		e = e.Clone()
		if e.Key == "" {
			if key, ord, ok := SplitOrdinal(e.ID); ok {
				e.Key, e.Ordinal = key, ord
			} else {
				e.Key = e.ID
			}
		}
		t.entries[i] = e
	}
	return t
}

// Section returns the section name the table belongs to ("all", "classes").
func (t *Table) Section() string { return t.section }

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// At returns a copy of the i-th entry.
func (t *Table) At(i int) Entry { return t.entries[i].Clone() }

// Entries returns a copy of every entry in file order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Clone()
	}
	return out
}

// Range calls fn for each entry in file order until fn returns false. The
// entry passed to fn must not be retained or modified.
func (t *Table) Range(fn func(i int, e *Entry) bool) {
	for i := range t.entries {
		if !fn(i, &t.entries[i]) {
			return
		}
	}
}

// Find returns the entry with the given id.
func (t *Table) Find(id string) (Entry, bool) {
	for _, e := range t.entries {
		if e.ID == id {
			return e.Clone(), true
		}
	}
	return Entry{}, false
}

// MatchCount is the total number of matches across entries.
func (t *Table) MatchCount() int {
	n := 0
	for _, e := range t.entries {
		n += len(e.Matches)
	}
	return n
}
