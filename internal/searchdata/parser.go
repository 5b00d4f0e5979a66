package searchdata

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrEmptyTable is returned by Parse when the array literal has no entries.
var ErrEmptyTable = errors.New("search table has no entries")

// Parse reads one generated search file (var searchData=[...];).
func Parse(r io.Reader, section string) (*Table, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading search data: %w", err)
	}
	p := &parser{lex: newLexer(string(src))}
	entries, err := p.table()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrEmptyTable
	}
	return &Table{section: section, entries: entries}, nil
}

type parser struct {
	lex *lexer
}

func (p *parser) expect(kind tokenKind, text string) (token, error) {
	t, err := p.lex.Next()
	if err != nil {
		return token{}, err
	}
	if t.kind != kind || (text != "" && t.text != text) {
		want := kind.String()
		if text != "" {
			want = fmt.Sprintf("%q", text)
		}
		return token{}, p.lex.errorf(t.line, t.col, "expected %s, found %s", want, t.describe())
	}
	return t, nil
}

// accept consumes the next token if it is the punctuation text.
func (p *parser) accept(text string) (bool, error) {
	t, err := p.lex.Peek()
	if err != nil {
		return false, err
	}
	if t.kind == tokPunct && t.text == text {
		_, _ = p.lex.Next()
		return true, nil
	}
	return false, nil
}

// declaration consumes "var <name> =" and returns the name.
func (p *parser) declaration() (string, error) {
	if _, err := p.expect(tokIdent, "var"); err != nil {
		return "", err
	}
	name, err := p.expect(tokIdent, "")
	if err != nil {
		return "", err
	}
	if _, err := p.expect(tokPunct, "="); err != nil {
		return "", err
	}
	return name.text, nil
}

func (p *parser) end() error {
	if _, err := p.accept(";"); err != nil {
		return err
	}
	_, err := p.expect(tokEOF, "")
	return err
}

func (p *parser) table() ([]Entry, error) {
	if _, err := p.declaration(); err != nil {
		return nil, err
	}
	entries, err := parseList(p, p.entry)
	if err != nil {
		return nil, err
	}
	if err := p.end(); err != nil {
		return nil, err
	}
	return entries, nil
}

// parseList parses "[ item, item, ... ]". A trailing comma is accepted.
func parseList[T any](p *parser, item func() (T, error)) ([]T, error) {
	if _, err := p.expect(tokPunct, "["); err != nil {
		return nil, err
	}
	var out []T
	for {
		closed, err := p.accept("]")
		if err != nil {
			return nil, err
		}
		if closed {
			return out, nil
		}
		v, err := item()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		comma, err := p.accept(",")
		if err != nil {
			return nil, err
		}
		if !comma {
			_, err := p.expect(tokPunct, "]")
			return out, err
		}
	}
}

// entry parses ['id',['Name',[match],...]].
func (p *parser) entry() (Entry, error) {
	var e Entry
	if _, err := p.expect(tokPunct, "["); err != nil {
		return e, err
	}
	id, err := p.expect(tokString, "")
	if err != nil {
		return e, err
	}
	e.ID = id.text
	if key, ord, ok := SplitOrdinal(e.ID); ok {
		e.Key, e.Ordinal = key, ord
	} else {
		e.Key = e.ID
	}
	if _, err := p.expect(tokPunct, ","); err != nil {
		return e, err
	}
	if _, err := p.expect(tokPunct, "["); err != nil {
		return e, err
	}
	name, err := p.expect(tokString, "")
	if err != nil {
		return e, err
	}
	e.Name = name.text
	for {
		more, err := p.accept(",")
		if err != nil {
			return e, err
		}
		if !more {
			break
		}
		m, err := p.match()
		if err != nil {
			return e, err
		}
		e.Matches = append(e.Matches, m)
	}
	if _, err := p.expect(tokPunct, "]"); err != nil {
		return e, err
	}
	if _, err := p.expect(tokPunct, "]"); err != nil {
		return e, err
	}
	return e, nil
}

// match parses ['url',1,'scope']. The flag and scope may be omitted.
func (p *parser) match() (Match, error) {
	var m Match
	if _, err := p.expect(tokPunct, "["); err != nil {
		return m, err
	}
	url, err := p.expect(tokString, "")
	if err != nil {
		return m, err
	}
	m.URL = url.text
	m.Internal = true
	more, err := p.accept(",")
	if err != nil {
		return m, err
	}
	if !more {
		_, err = p.expect(tokPunct, "]")
		return m, err
	}
	flag, err := p.expect(tokInt, "")
	if err != nil {
		return m, err
	}
	n, err := strconv.Atoi(flag.text)
	if err != nil {
		return m, p.lex.errorf(flag.line, flag.col, "bad flag %q", flag.text)
	}
	m.Internal = n != 0
	if more, err = p.accept(","); err != nil {
		return m, err
	}
	if more {
		scope, err := p.expect(tokString, "")
		if err != nil {
			return m, err
		}
		m.Scope = scope.text
	}
	_, err = p.expect(tokPunct, "]")
	return m, err
}
