package lookup

import (
	"context"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/catalog"
)

func newBenchIndex(b *testing.B, opts Options) *Index {
	b.Helper()
	cat, err := catalog.Load(context.Background(), "../catalog/testdata/search", catalog.Options{})
	if err != nil {
		b.Fatal(err)
	}
	idx, err := New(cat, opts)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = idx.Close() })
	return idx
}

// BenchmarkLookup measures a single lookup in each match mode.
func BenchmarkLookup(b *testing.B) {
	idx := newBenchIndex(b, Options{Fulltext: true})
	queries := []struct {
		name  string
		query Query
	}{
		{"prefix", Query{Text: "call", Mode: ModePrefix}},
		{"prefix_wide", Query{Text: "c", Mode: ModePrefix}},
		{"exact", Query{Text: "Call Conventions", Mode: ModeExact}},
		{"substring", Query{Text: "type", Mode: ModeSubstring}},
		{"fulltext", Query{Text: "finalizers", Mode: ModeFulltext}},
		{"limited", Query{Text: "custom", Mode: ModePrefix, Limit: 2}},
	}
	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := idx.Lookup(q.query); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkLookupParallel(b *testing.B) {
	idx := newBenchIndex(b, Options{})
	q := Query{Text: "call", Mode: ModePrefix, Limit: 10}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := idx.Lookup(q); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkBuild(b *testing.B) {
	cat, err := catalog.Load(context.Background(), "../catalog/testdata/search", catalog.Options{})
	if err != nil {
		b.Fatal(err)
	}
	for _, ft := range []bool{false, true} {
		name := "trie"
		if ft {
			name = "trie_fulltext"
		}
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				idx, err := New(cat, Options{Fulltext: ft})
				if err != nil {
					b.Fatal(err)
				}
				_ = idx.Close()
			}
		})
	}
}
