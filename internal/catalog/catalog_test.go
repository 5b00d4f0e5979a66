package catalog

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searchdata"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

const fixtureDir = "testdata/search"

func loadFixture(t *testing.T) *Catalog {
	t.Helper()
	cat, err := Load(context.Background(), fixtureDir, Options{MaxParallel: 2, ValidateOnLoad: true, Strict: true})
	require.NoError(t, err)
	return cat
}

func TestParseFileName(t *testing.T) {
	tests := []struct {
		name    string
		section string
		index   int
		ok      bool
	}{
		{"all_4.js", "all", 4, true},
		{"functions_1a.js", "functions", 26, true},
		{"searchdata.js", "", 0, false},
		{"search.js", "", 0, false},
		{"all_4.js.tmp", "", 0, false},
		{"All_4.js", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			section, index, ok := ParseFileName(tt.name)
			assert.Equal(t, tt.section, section)
			assert.Equal(t, tt.index, index)
			assert.Equal(t, tt.ok, ok)
		})
	}
	assert.Equal(t, "functions_1a.js", FileName("functions", 26))
}

func TestLoad(t *testing.T) {
	cat := loadFixture(t)

	assert.Equal(t, []string{"all", "classes"}, cat.Sections())
	assert.True(t, cat.HasSection("classes"))
	assert.False(t, cat.HasSection("files"))

	files, err := cat.Files("all")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "all_4.js", files[0].Name)
	assert.Equal(t, 4, files[0].Index)
	assert.Equal(t, 57, files[0].Table.Len())

	label := cat.SectionSet().Sections[1].Label
	assert.Equal(t, "Classes", label)

	_, err = cat.Files("files")
	assert.ErrorIs(t, err, apperrors.ErrUnknownSection)
	assert.Equal(t, 404, apperrors.HTTPStatusCode(err))
}

func TestTableMergesFilesInOrder(t *testing.T) {
	cat := New(loadFixture(t).SectionSet(), []File{
		mustFile(t, "all_5.js", "var searchData=[['d_0',['D',['d.html',1,'']]]];"),
		mustFile(t, "all_4.js", "var searchData=[['c_0',['C',['c.html',1,'']]]];"),
	})
	tbl, err := cat.Table("all")
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "c_0", tbl.At(0).ID)
	assert.Equal(t, "d_0", tbl.At(1).ID)

	var seen []string
	require.NoError(t, cat.Range("all", func(f File, e *searchdata.Entry) bool {
		seen = append(seen, f.Name+":"+e.ID)
		return len(seen) < 1
	}))
	assert.Equal(t, []string{"all_4.js:c_0"}, seen)
}

func TestStats(t *testing.T) {
	s := loadFixture(t).Stats()

	assert.Equal(t, 2, s.Sections)
	assert.Equal(t, 2, s.Files)
	assert.Equal(t, 60, s.Entries)
	assert.Equal(t, 76, s.Matches)
	assert.Equal(t, 0, s.External)
	assert.Equal(t, 55, s.DistinctKeys)
	assert.Equal(t, 66, s.DistinctURLs)
	assert.Equal(t, 41, s.DistinctPages)
	assert.Equal(t, SectionStats{Files: 1, Entries: 57, Matches: 73, DistinctKeys: 55}, s.PerSection["all"])
	assert.Equal(t, SectionStats{Files: 1, Entries: 3, Matches: 3, DistinctKeys: 3}, s.PerSection["classes"])
}

func TestValidateFileCharacter(t *testing.T) {
	cat := New(loadFixture(t).SectionSet(), []File{
		mustFile(t, "classes_0.js", "var searchData=[['zeta_0',['Zeta',['z.html',1,'']]]];"),
		mustFile(t, "classes_1.js", "var searchData=[['c_0',['C',['c.html',1,'']]]];"),
	})
	var got []string
	for _, v := range cat.Validate(false) {
		got = append(got, v.String())
	}
	assert.Equal(t, []string{
		`classes_0.js: zeta_0: key: key does not start with "c"`,
		`classes_1.js: file: section "classes" lists only 1 files`,
	}, got)
}

func TestLoadRejectsInvalidData(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "all_0.js", "var searchData=[['a_0',['A']]];")

	_, err := Load(context.Background(), dir, Options{ValidateOnLoad: true})
	require.ErrorIs(t, err, apperrors.ErrInvalidSearchData)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "matches", verr.Violations[0].Field)

	cat, err := Load(context.Background(), dir, Options{})
	require.NoError(t, err)
	assert.Len(t, cat.Validate(false), 1)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(context.Background(), t.TempDir(), Options{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSearchData)

	dir := t.TempDir()
	writeFile(t, dir, "all_0.js", "var searchData=[['a_0',")
	_, err = Load(context.Background(), dir, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing all_0.js")

	_, err = LoadPath(context.Background(), filepath.Join(dir, "missing"), Options{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestLoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx, fixtureDir, Options{MaxParallel: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadPathSingleFile(t *testing.T) {
	cat, err := LoadPath(context.Background(), filepath.Join(fixtureDir, "classes_0.js"), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"classes"}, cat.Sections())

	_, err = LoadFile(filepath.Join(fixtureDir, "searchdata.js"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRenderIsByteIdentical(t *testing.T) {
	cat := loadFixture(t)
	out := t.TempDir()
	require.NoError(t, cat.Render(out))

	for _, name := range []string{"all_4.js", "classes_0.js", "searchdata.js"} {
		want, err := os.ReadFile(filepath.Join(fixtureDir, name))
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(out, name))
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got), name)
	}

	var buf bytes.Buffer
	require.NoError(t, cat.RenderFile(&buf, "classes_0.js"))
	assert.True(t, strings.HasPrefix(buf.String(), "var searchData=\n[\n  ['category_0'"))
	assert.ErrorIs(t, cat.RenderFile(&buf, "all_9.js"), os.ErrNotExist)
}

func TestLoaderKeepsPreviousCatalogOnFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "all_0.js", "var searchData=[['a_0',['A',['a.html',1,'']]]];")

	l := NewLoader(dir, Options{})
	_, err := l.Current()
	assert.ErrorIs(t, err, apperrors.ErrCatalogNotLoaded)

	var notified int
	l.OnReload(func(*Catalog) { notified++ })

	first, err := l.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), l.Generation())

	writeFile(t, dir, "all_0.js", "broken")
	_, err = l.Reload(context.Background())
	require.Error(t, err)

	cur, err := l.Current()
	require.NoError(t, err)
	assert.Same(t, first, cur)
	assert.Equal(t, 1, notified)
}

func mustFile(t *testing.T, name, src string) File {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, name, src)
	f, err := loadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return f
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}
