// Package lookup answers search queries over a catalog. Each section gets a
// radix trie from encoded key to a bitmap of entry positions, so every
// query mode reduces to a bitmap whose ascending iteration is file order.
package lookup

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/tchap/go-patricia/v2/patricia"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searchdata"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// DefaultSection is searched when a query names no section.
const DefaultSection = "all"

type Options struct {
	Fulltext bool
}

type doc struct {
	file  string
	entry searchdata.Entry
}

type sectionIndex struct {
	docs []doc
	trie *patricia.Trie
	// keys in first-appearance order, for substring scans.
	keys []string
}

type Index struct {
	sections       map[string]*sectionIndex
	defaultSection string
	fulltext       *fulltextIndex
	builtAt        time.Time
}

// New indexes every section of cat.
func New(cat *catalog.Catalog, opts Options) (*Index, error) {
	start := time.Now()
	idx := &Index{
		sections: make(map[string]*sectionIndex),
		builtAt:  start,
	}
	for _, name := range cat.Sections() {
		si := &sectionIndex{trie: patricia.NewTrie()}
		err := cat.Range(name, func(f catalog.File, e *searchdata.Entry) bool {
			pos := uint32(len(si.docs))
			si.docs = append(si.docs, doc{file: f.Name, entry: e.Clone()})
			if bm, ok := si.trie.Get(patricia.Prefix(e.Key)).(*roaring.Bitmap); ok {
				bm.Add(pos)
				return true
			}
			si.trie.Insert(patricia.Prefix(e.Key), roaring.BitmapOf(pos))
			si.keys = append(si.keys, e.Key)
			return true
		})
		if err != nil {
			return nil, err
		}
		idx.sections[name] = si
		if idx.defaultSection == "" || name == DefaultSection {
			idx.defaultSection = name
		}
	}

	if opts.Fulltext {
		ft, err := newFulltextIndex(idx.sections)
		if err != nil {
			return nil, fmt.Errorf("building fulltext index: %w", err)
		}
		idx.fulltext = ft
	}

	slog.Default().With("component", "lookup").Info("index built",
		"sections", len(idx.sections),
		"fulltext", opts.Fulltext,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return idx, nil
}

// Close releases the fulltext index, if any.
func (idx *Index) Close() error {
	if idx.fulltext != nil {
		return idx.fulltext.Close()
	}
	return nil
}

func (idx *Index) DefaultSection() string { return idx.defaultSection }

func (idx *Index) BuiltAt() time.Time { return idx.builtAt }

func (idx *Index) section(name string) (*sectionIndex, error) {
	si, ok := idx.sections[name]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrUnknownSection, http.StatusNotFound, "section %q", name)
	}
	return si, nil
}

// Lookup runs q. No match is an empty result, not an error.
func (idx *Index) Lookup(q Query) (Result, error) {
	q = q.Normalize(idx.defaultSection)
	if q.Text == "" {
		return Result{}, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "empty query")
	}
	si, err := idx.section(q.Section)
	if err != nil {
		return Result{}, err
	}

	var bm *roaring.Bitmap
	switch q.Mode {
	case ModePrefix:
		bm = si.prefix(q.Key())
	case ModeExact:
		bm = si.exact(q.Key())
	case ModeSubstring:
		bm = si.substring(q.Key())
	case ModeFulltext:
		if idx.fulltext == nil {
			return Result{}, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "fulltext search is disabled")
		}
		bm, err = idx.fulltext.search(q.Section, q.Text, len(si.docs))
		if err != nil {
			return Result{}, err
		}
	default:
		return Result{}, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown mode %q", q.Mode)
	}

	res := Result{Query: q, Total: int(bm.GetCardinality()), Hits: []Hit{}}
	it := bm.Iterator()
	for it.HasNext() {
		if q.Limit > 0 && len(res.Hits) >= q.Limit {
			break
		}
		d := si.docs[it.Next()]
		res.Hits = append(res.Hits, Hit{File: d.file, Entry: d.entry.Clone()})
	}
	return res, nil
}

// Suggest returns up to n distinct decoded keys starting with prefix, in
// key order. n <= 0 returns every such key.
func (idx *Index) Suggest(section, prefix string, n int) ([]string, error) {
	if section == "" {
		section = idx.defaultSection
	}
	si, err := idx.section(section)
	if err != nil {
		return nil, err
	}
	var keys []string
	key := searchdata.EncodeID(strings.TrimSpace(prefix))
	_ = si.trie.VisitSubtree(patricia.Prefix(key), func(p patricia.Prefix, _ patricia.Item) error {
		keys = append(keys, string(p))
		return nil
	})
	sort.Strings(keys)
	if n > 0 && len(keys) > n {
		keys = keys[:n]
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		term, err := searchdata.DecodeID(k)
		if err != nil {
			term = k
		}
		out[i] = term
	}
	return out, nil
}

// Keys reports the number of distinct keys per section.
func (idx *Index) Keys() map[string]int {
	out := make(map[string]int, len(idx.sections))
	for name, si := range idx.sections {
		out[name] = len(si.keys)
	}
	return out
}

func (si *sectionIndex) prefix(key string) *roaring.Bitmap {
	var parts []*roaring.Bitmap
	_ = si.trie.VisitSubtree(patricia.Prefix(key), func(_ patricia.Prefix, item patricia.Item) error {
		parts = append(parts, item.(*roaring.Bitmap))
		return nil
	})
	return roaring.FastOr(parts...)
}

func (si *sectionIndex) exact(key string) *roaring.Bitmap {
	if bm, ok := si.trie.Get(patricia.Prefix(key)).(*roaring.Bitmap); ok {
		return bm.Clone()
	}
	return roaring.New()
}

func (si *sectionIndex) substring(key string) *roaring.Bitmap {
	var parts []*roaring.Bitmap
	for _, k := range si.keys {
		if strings.Contains(k, key) {
			parts = append(parts, si.trie.Get(patricia.Prefix(k)).(*roaring.Bitmap))
		}
	}
	return roaring.FastOr(parts...)
}
