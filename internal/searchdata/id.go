package searchdata

import (
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
)

// ErrMalformedID is returned when a key contains an escape that is not
// "_" followed by two hex digits.
var ErrMalformedID = errors.New("malformed search id")

const hexDigits = "0123456789abcdef"

// EncodeID converts a term into the key form used by the generated index:
// lower case, with [a-z0-9] and non-ASCII runes kept verbatim and every other
// byte written as "_" plus two lower-case hex digits.
func EncodeID(term string) string {
	var b strings.Builder
	b.Grow(len(term) + 8)
	for _, r := range strings.ToLower(term) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r >= 0x80:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
			b.WriteByte(hexDigits[(r>>4)&0xf])
			b.WriteByte(hexDigits[r&0xf])
		}
	}
	return b.String()
}

// DecodeID reverses EncodeID. Case is not restored.
func DecodeID(key string) (string, error) {
	if strings.IndexByte(key, '_') < 0 {
		return key, nil
	}
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c != '_' {
			out = append(out, c)
			continue
		}
		if i+2 >= len(key) {
			return "", fmt.Errorf("%w: %q truncated escape at offset %d", ErrMalformedID, key, i)
		}
		hi, ok1 := unhex(key[i+1])
		lo, ok2 := unhex(key[i+2])
		if !ok1 || !ok2 {
			return "", fmt.Errorf("%w: %q bad escape at offset %d", ErrMalformedID, key, i)
		}
		out = append(out, hi<<4|lo)
		i += 2
	}
	return string(out), nil
}

// SplitOrdinal strips the trailing "_<n>" ordinal the generator appends to
// every id. Ids written by the generator always carry one.
func SplitOrdinal(id string) (key string, ordinal int, ok bool) {
	i := strings.LastIndexByte(id, '_')
	if i <= 0 || i == len(id)-1 {
		return id, 0, false
	}
	for j := i + 1; j < len(id); j++ {
		if id[j] < '0' || id[j] > '9' {
			return id, 0, false
		}
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return id, 0, false
	}
	return id[:i], n, true
}

// JoinOrdinal is the inverse of SplitOrdinal.
func JoinOrdinal(key string, ordinal int) string {
	return key + "_" + strconv.Itoa(ordinal)
}

// UnescapeHTML turns an emitted label or scope ("Foo&lt; T &gt;") into
// display text.
func UnescapeHTML(s string) string {
	return html.UnescapeString(s)
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
