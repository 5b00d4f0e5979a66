package searchdata

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// Violation is one structural problem found in a table.
type Violation struct {
	EntryID string `json:"entryId,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.EntryID == "" {
		return fmt.Sprintf("%s: %s", v.Field, v.Message)
	}
	return fmt.Sprintf("%s: %s: %s", v.EntryID, v.Field, v.Message)
}

// Validate checks that every entry has a unique id carrying an ordinal, a
// non-empty well-formed key, a label and at least one match, and that every
// match URL is a relative reference.
func Validate(t *Table) []Violation {
	var out []Violation
	if t.Len() == 0 {
		return append(out, Violation{Field: "table", Message: "no entries"})
	}
	seen := make(map[string]struct{}, t.Len())
	for i := range t.entries {
		e := &t.entries[i]
		report := func(field, format string, args ...any) {
			out = append(out, Violation{EntryID: e.ID, Field: field, Message: fmt.Sprintf(format, args...)})
		}

		if e.ID == "" {
			out = append(out, Violation{Field: "id", Message: fmt.Sprintf("entry %d has an empty id", i)})
		} else if _, dup := seen[e.ID]; dup {
			report("id", "duplicate id")
		}
		seen[e.ID] = struct{}{}

		if _, _, ok := SplitOrdinal(e.ID); !ok && e.ID != "" {
			report("id", "missing ordinal suffix")
		}
		if e.Key == "" {
			report("key", "empty key")
		} else if _, err := DecodeID(e.Key); err != nil {
			report("key", "%v", err)
		}
		if strings.TrimSpace(e.Name) == "" {
			report("name", "empty label")
		}
		if len(e.Matches) == 0 {
			report("matches", "no matches")
		}
		for j, m := range e.Matches {
			if msg := checkURL(m.URL); msg != "" {
				report(fmt.Sprintf("matches[%d].url", j), "%s", msg)
			}
		}
	}
	return out
}

// ValidateStrict runs Validate and also checks that every key is in
// canonical encoded form and that its words occur in the entry's label or
// in one of its scopes.
func ValidateStrict(t *Table) []Violation {
	out := Validate(t)
	for i := range t.entries {
		e := &t.entries[i]
		term, err := DecodeID(e.Key)
		if err != nil || e.Key == "" {
			continue
		}
		if enc := EncodeID(term); enc != e.Key {
			out = append(out, Violation{EntryID: e.ID, Field: "key", Message: fmt.Sprintf("not canonical, want %q", enc)})
		}
		if !keyMentioned(term, e) {
			out = append(out, Violation{EntryID: e.ID, Field: "key", Message: fmt.Sprintf("%q not found in label or scopes", term)})
		}
	}
	return out
}

func checkURL(raw string) string {
	if raw == "" {
		return "empty url"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("unparseable url: %v", err)
	}
	if u.Scheme != "" || u.Host != "" || strings.HasPrefix(raw, "/") {
		return fmt.Sprintf("url %q is not relative", raw)
	}
	if u.Path == "" {
		return fmt.Sprintf("url %q has no path", raw)
	}
	return ""
}

// keyMentioned compares word sequences, since the generator folds
// punctuation inside titles ("char-type", "libc++") into word breaks.
func keyMentioned(term string, e *Entry) bool {
	want := words(term)
	if want == "" {
		return true
	}
	if strings.Contains(words(UnescapeHTML(e.Name)), want) {
		return true
	}
	for _, m := range e.Matches {
		if strings.Contains(words(UnescapeHTML(m.Scope)), want) {
			return true
		}
	}
	return false
}

func words(s string) string {
	f := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r < 0x80 && !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(f, " ")
}
