package searchdata

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Section describes one tab of the search box: "all", "classes",
// "functions" and so on.
type Section struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Label string `json:"label"`
	// Chars lists, in order, the first characters that have a result file.
	// The n-th character's entries live in <Name>_<n in hex>.js.
	Chars string `json:"chars"`
}

// FileName returns the result file for keys starting with c.
func (s Section) FileName(c rune) (string, bool) {
	i := 0
	for _, r := range s.Chars {
		if r == c {
			return s.Name + "_" + strconv.FormatInt(int64(i), 16) + ".js", true
		}
		i++
	}
	return "", false
}

// Files lists every result file of the section in order.
func (s Section) Files() []string {
	var out []string
	i := 0
	for range s.Chars {
		out = append(out, s.Name+"_"+strconv.FormatInt(int64(i), 16)+".js")
		i++
	}
	return out
}

// SectionSet is the content of searchdata.js, ordered by index.
type SectionSet struct {
	Sections []Section `json:"sections"`
}

// Lookup returns the section with the given name.
func (ss SectionSet) Lookup(name string) (Section, bool) {
	for _, s := range ss.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// FileName resolves the result file the generator uses for keys of the
// named section starting with c.
func (ss SectionSet) FileName(section string, c rune) (string, bool) {
	s, ok := ss.Lookup(section)
	if !ok {
		return "", false
	}
	return s.FileName(c)
}

// Names returns the section names in index order.
func (ss SectionSet) Names() []string {
	out := make([]string, len(ss.Sections))
	for i, s := range ss.Sections {
		out[i] = s.Name
	}
	return out
}

const (
	varSectionsWithContent = "indexSectionsWithContent"
	varSectionNames        = "indexSectionNames"
	varSectionLabels       = "indexSectionLabels"
)

// ParseSections reads searchdata.js. Declarations other than the three
// index maps are skipped.
func ParseSections(r io.Reader) (SectionSet, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return SectionSet{}, fmt.Errorf("reading section data: %w", err)
	}
	p := &parser{lex: newLexer(string(src))}

	byIndex := map[int]*Section{}
	get := func(i int) *Section {
		s, ok := byIndex[i]
		if !ok {
			s = &Section{Index: i}
			byIndex[i] = s
		}
		return s
	}

	for {
		t, err := p.lex.Peek()
		if err != nil {
			return SectionSet{}, err
		}
		if t.kind == tokEOF {
			break
		}
		name, err := p.declaration()
		if err != nil {
			return SectionSet{}, err
		}
		obj, err := p.object()
		if err != nil {
			return SectionSet{}, err
		}
		if _, err := p.accept(";"); err != nil {
			return SectionSet{}, err
		}
		for i, v := range obj {
			switch name {
			case varSectionsWithContent:
				get(i).Chars = v
			case varSectionNames:
				get(i).Name = v
			case varSectionLabels:
				get(i).Label = v
			}
		}
	}

	var ss SectionSet
	for _, s := range byIndex {
		if s.Name == "" {
			return SectionSet{}, fmt.Errorf("%w: section %d has no name", ErrSyntax, s.Index)
		}
		ss.Sections = append(ss.Sections, *s)
	}
	sort.Slice(ss.Sections, func(i, j int) bool {
		return ss.Sections[i].Index < ss.Sections[j].Index
	})
	return ss, nil
}

// WriteSections emits searchdata.js for ss.
func WriteSections(w io.Writer, ss SectionSet) error {
	var b strings.Builder
	emit := func(name string, value func(Section) string) {
		b.WriteString("var " + name + " =\n{\n")
		for i, s := range ss.Sections {
			b.WriteString("  " + strconv.Itoa(s.Index) + ": \"" + escapeJS(value(s), '"') + "\"")
			if i < len(ss.Sections)-1 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
		}
		b.WriteString("};\n\n")
	}
	emit(varSectionsWithContent, func(s Section) string { return s.Chars })
	emit(varSectionNames, func(s Section) string { return s.Name })
	emit(varSectionLabels, func(s Section) string { return s.Label })
	_, err := io.WriteString(w, b.String())
	return err
}

// object parses { 0: "value", 1: "value" }.
func (p *parser) object() (map[int]string, error) {
	if _, err := p.expect(tokPunct, "{"); err != nil {
		return nil, err
	}
	out := map[int]string{}
	for {
		closed, err := p.accept("}")
		if err != nil {
			return nil, err
		}
		if closed {
			return out, nil
		}
		k, err := p.lex.Next()
		if err != nil {
			return nil, err
		}
		if k.kind != tokInt && k.kind != tokString {
			return nil, p.lex.errorf(k.line, k.col, "expected object key, found %s", k.describe())
		}
		idx, err := strconv.Atoi(k.text)
		if err != nil {
			return nil, p.lex.errorf(k.line, k.col, "object key %q is not an index", k.text)
		}
		if _, err := p.expect(tokPunct, ":"); err != nil {
			return nil, err
		}
		v, err := p.expect(tokString, "")
		if err != nil {
			return nil, err
		}
		out[idx] = v.text
		comma, err := p.accept(",")
		if err != nil {
			return nil, err
		}
		if !comma {
			_, err := p.expect(tokPunct, "}")
			return out, err
		}
	}
}
