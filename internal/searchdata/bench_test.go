package searchdata

import (
	"bytes"
	"io"
	"os"
	"testing"
)

func BenchmarkParse(b *testing.B) {
	data, err := os.ReadFile("testdata/all_4.js")
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Parse(bytes.NewReader(data), "all"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkWrite(b *testing.B) {
	f, err := os.Open("testdata/all_4.js")
	if err != nil {
		b.Fatal(err)
	}
	defer f.Close()
	table, err := Parse(f, "all")
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := Write(io.Discard, table); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncodeID(b *testing.B) {
	terms := []struct {
		name string
		term string
	}{
		{"plain", "mimicpp"},
		{"spaces", "Call Conventions"},
		{"operators", "operator<=>"},
		{"unicode", "Grüße aus Köln"},
	}
	for _, tt := range terms {
		b.Run(tt.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = EncodeID(tt.term)
			}
		})
	}
}
