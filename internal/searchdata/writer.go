package searchdata

import (
	"bufio"
	"io"
	"strings"
)

// Write emits t in the generator's layout: one entry per line, two-space
// indent, single-quoted strings and a trailing newline after "];".
func Write(w io.Writer, t *Table) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("var searchData=\n[\n")
	for i := range t.entries {
		if i > 0 {
			bw.WriteString(",\n")
		}
		bw.WriteString("  ")
		writeEntry(bw, &t.entries[i])
	}
	bw.WriteString("\n];\n")
	return bw.Flush()
}

func writeEntry(bw *bufio.Writer, e *Entry) {
	bw.WriteString("['")
	bw.WriteString(escapeJS(e.ID, '\''))
	bw.WriteString("',['")
	bw.WriteString(escapeJS(e.Name, '\''))
	bw.WriteByte('\'')
	for _, m := range e.Matches {
		bw.WriteString(",['")
		bw.WriteString(escapeJS(m.URL, '\''))
		if m.Internal {
			bw.WriteString("',1,'")
		} else {
			bw.WriteString("',0,'")
		}
		bw.WriteString(escapeJS(m.Scope, '\''))
		bw.WriteString("']")
	}
	bw.WriteString("]]")
}

func escapeJS(s string, quote byte) string {
	if !strings.ContainsAny(s, "\\\n\r"+string(quote)) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', quote:
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
