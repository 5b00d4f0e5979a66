package lookup

import (
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searchdata"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

type Mode string

const (
	// ModePrefix matches keys starting with the encoded query, the way the
	// generated search box does.
	ModePrefix    Mode = "prefix"
	ModeExact     Mode = "exact"
	ModeSubstring Mode = "substring"
	// ModeFulltext matches words of labels, scopes and keys.
	ModeFulltext Mode = "fulltext"
)

// ParseMode accepts the mode names used in configuration and query strings.
// An empty string yields def.
func ParseMode(s string, def Mode) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return def, nil
	case ModePrefix, ModeExact, ModeSubstring, ModeFulltext:
		return m, nil
	default:
		return "", apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown mode %q", s)
	}
}

type Query struct {
	Text    string `json:"text"`
	Section string `json:"section"`
	Mode    Mode   `json:"mode"`
	// Limit caps the number of hits; zero or less means no cap.
	Limit int `json:"limit"`
}

// Normalize trims the text and fills in the default section and mode.
// Key modes keep trailing spaces: "call " only matches keys continuing
// with an encoded space, as in the generated search box.
func (q Query) Normalize(defaultSection string) Query {
	if q.Section == "" {
		q.Section = defaultSection
	}
	if q.Mode == "" {
		q.Mode = ModePrefix
	}
	if q.Mode == ModeFulltext {
		q.Text = strings.TrimSpace(q.Text)
	} else {
		q.Text = trimLeading(q.Text)
		if strings.TrimSpace(q.Text) == "" {
			q.Text = ""
		}
	}
	return q
}

// Key returns the encoded form of the query text used for key matching.
func (q Query) Key() string {
	return searchdata.EncodeID(trimLeading(q.Text))
}

func trimLeading(s string) string {
	return strings.TrimLeft(s, " ")
}

type Hit struct {
	File  string           `json:"file"`
	Entry searchdata.Entry `json:"entry"`
}

type Result struct {
	Query Query `json:"query"`
	// Total counts every matching entry, before Limit is applied.
	Total int   `json:"total"`
	Hits  []Hit `json:"hits"`
}
