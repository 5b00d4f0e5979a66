package lookup

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	bleveunicode "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searchdata"
)

// fulltextIndex is an in-memory bleve index over labels, scopes and keys.
// Document ids are "<section>/<position>".
type fulltextIndex struct {
	index bleve.Index
}

type fulltextDoc struct {
	Section string `json:"section"`
	Words   string `json:"words"`
	Name    string `json:"name"`
	Scopes  string `json:"scopes"`
}

// wordsAnalyzer keeps stop words: titles like "Custom char-types and
// related strings" are searched word by word.
const wordsAnalyzer = "docsearch_words"

func newFulltextMapping() (mapping.IndexMapping, error) {
	m := bleve.NewIndexMapping()
	err := m.AddCustomAnalyzer(wordsAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     bleveunicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("registering analyzer: %w", err)
	}

	section := bleve.NewTextFieldMapping()
	section.Analyzer = keyword.Name

	text := bleve.NewTextFieldMapping()
	text.Analyzer = wordsAnalyzer

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("section", section)
	doc.AddFieldMappingsAt("words", text)
	doc.AddFieldMappingsAt("name", text)
	doc.AddFieldMappingsAt("scopes", text)

	m.DefaultMapping = doc
	return m, nil
}

func newFulltextIndex(sections map[string]*sectionIndex) (*fulltextIndex, error) {
	im, err := newFulltextMapping()
	if err != nil {
		return nil, err
	}
	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, err
	}
	batch := index.NewBatch()
	for section, si := range sections {
		for pos, d := range si.docs {
			term, err := searchdata.DecodeID(d.entry.Key)
			if err != nil {
				term = d.entry.Key
			}
			scopes := make([]string, 0, len(d.entry.Matches))
			for _, m := range d.entry.Matches {
				if m.Scope != "" {
					scopes = append(scopes, searchdata.UnescapeHTML(m.Scope))
				}
			}
			label := searchdata.UnescapeHTML(d.entry.Name)
			doc := fulltextDoc{
				Section: section,
				Words:   splitWords(term + " " + label + " " + strings.Join(scopes, " ")),
				Name:    label,
				Scopes:  strings.Join(scopes, " "),
			}
			if err := batch.Index(docID(section, pos), doc); err != nil {
				index.Close()
				return nil, err
			}
		}
	}
	if err := index.Batch(batch); err != nil {
		index.Close()
		return nil, err
	}
	return &fulltextIndex{index: index}, nil
}

func (ft *fulltextIndex) Close() error { return ft.index.Close() }

// search returns the positions of section entries containing every word of
// text.
func (ft *fulltextIndex) search(section, text string, size int) (*roaring.Bitmap, error) {
	bm := roaring.New()
	words := splitWords(text)
	if words == "" || size == 0 {
		return bm, nil
	}
	match := bleve.NewMatchQuery(words)
	match.SetField("words")
	match.SetOperator(query.MatchQueryOperatorAnd)
	inSection := bleve.NewTermQuery(section)
	inSection.SetField("section")

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(match, inSection), size, 0, false)
	res, err := ft.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("fulltext search: %w", err)
	}
	for _, hit := range res.Hits {
		_, pos, ok := parseDocID(hit.ID)
		if ok {
			bm.Add(uint32(pos))
		}
	}
	return bm, nil
}

func docID(section string, pos int) string {
	return section + "/" + strconv.Itoa(pos)
}

func parseDocID(id string) (string, int, bool) {
	section, p, ok := strings.Cut(id, "/")
	if !ok {
		return "", 0, false
	}
	pos, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, false
	}
	return section, pos, true
}

// splitWords folds identifiers like "call_convention_traits" and titles
// like "char-types" into space separated lower-case words.
func splitWords(s string) string {
	f := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(f, " ")
}
