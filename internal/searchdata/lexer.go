package searchdata

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrSyntax is wrapped by every *SyntaxError.
var ErrSyntax = errors.New("search data syntax error")

// SyntaxError reports where a search file stopped being parseable.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokInt
	tokPunct
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokString:
		return "string"
	case tokInt:
		return "integer"
	default:
		return "punctuation"
	}
}

type token struct {
	kind tokenKind
	text string
	line int
	col  int
}

func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return t.kind.String()
	case tokString:
		return fmt.Sprintf("string %q", t.text)
	default:
		return fmt.Sprintf("%s %q", t.kind, t.text)
	}
}

// lexer tokenizes the small JavaScript subset the generator emits: var
// declarations, array and object literals, quoted strings and integers.
type lexer struct {
	src  string
	pos  int
	line int
	col  int
	peek *token
}

func newLexer(src string) *lexer {
	// A UTF-8 BOM is tolerated at the start of the file.
	src = strings.TrimPrefix(src, "\ufeff")
	return &lexer{src: src, line: 1, col: 1}
}

func (l *lexer) errorf(line, col int, format string, args ...any) error {
	return &SyntaxError{Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.src); i++ {
		if l.src[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else if l.src[l.pos]&0xC0 != 0x80 {
			l.col++
		}
		l.pos++
	}
}

func (l *lexer) skipSpace() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance(1)
		case strings.HasPrefix(l.src[l.pos:], "//"):
			end := strings.IndexByte(l.src[l.pos:], '\n')
			if end < 0 {
				end = len(l.src) - l.pos
			}
			l.advance(end)
		case strings.HasPrefix(l.src[l.pos:], "/*"):
			line, col := l.line, l.col
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				return l.errorf(line, col, "unterminated comment")
			}
			l.advance(end + 4)
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) Peek() (token, error) {
	if l.peek != nil {
		return *l.peek, nil
	}
	t, err := l.scan()
	if err != nil {
		return token{}, err
	}
	l.peek = &t
	return t, nil
}

func (l *lexer) Next() (token, error) {
	if l.peek != nil {
		t := *l.peek
		l.peek = nil
		return t, nil
	}
	return l.scan()
}

func (l *lexer) scan() (token, error) {
	if err := l.skipSpace(); err != nil {
		return token{}, err
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: l.line, col: l.col}, nil
	}
	line, col := l.line, l.col
	c := l.src[l.pos]
	switch {
	case c == '\'' || c == '"':
		s, err := l.scanString(c)
		if err != nil {
			return token{}, err
		}
		return token{kind: tokString, text: s, line: line, col: col}, nil
	case c == '-' || (c >= '0' && c <= '9'):
		start := l.pos
		n := 1
		for l.pos+n < len(l.src) && l.src[l.pos+n] >= '0' && l.src[l.pos+n] <= '9' {
			n++
		}
		text := l.src[start : start+n]
		if text == "-" {
			return token{}, l.errorf(line, col, "unexpected '-'")
		}
		l.advance(n)
		return token{kind: tokInt, text: text, line: line, col: col}, nil
	case isIdentStart(c):
		n := 1
		for l.pos+n < len(l.src) && isIdentPart(l.src[l.pos+n]) {
			n++
		}
		text := l.src[l.pos : l.pos+n]
		l.advance(n)
		return token{kind: tokIdent, text: text, line: line, col: col}, nil
	case strings.IndexByte("[]{},=;:", c) >= 0:
		l.advance(1)
		return token{kind: tokPunct, text: string(c), line: line, col: col}, nil
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return token{}, l.errorf(line, col, "unexpected character %q", r)
}

func (l *lexer) scanString(quote byte) (string, error) {
	line, col := l.line, l.col
	l.advance(1)
	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return "", l.errorf(line, col, "unterminated string")
		}
		c := l.src[l.pos]
		switch {
		case c == quote:
			l.advance(1)
			return b.String(), nil
		case c == '\n':
			return "", l.errorf(line, col, "newline in string")
		case c == '\\':
			if l.pos+1 >= len(l.src) {
				return "", l.errorf(line, col, "unterminated string")
			}
			esc := l.src[l.pos+1]
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case 'u':
				if l.pos+6 > len(l.src) {
					return "", l.errorf(l.line, l.col, "short \\u escape")
				}
				v, err := strconv.ParseUint(l.src[l.pos+2:l.pos+6], 16, 16)
				if err != nil {
					return "", l.errorf(l.line, l.col, "bad \\u escape")
				}
				b.WriteRune(rune(v))
				l.advance(6)
				continue
			default:
				// \\, \', \" and any other escaped character stand for themselves.
				b.WriteByte(esc)
			}
			l.advance(2)
		default:
			b.WriteByte(c)
			l.advance(1)
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
