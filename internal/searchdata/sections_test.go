package searchdata

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSections = `var indexSectionsWithContent =
{
  0: "2_abcdefghijklmnopqrstuvw~",
  1: "abcdefghimnoprstuvw",
  2: "m"
};

var indexSectionNames =
{
  0: "all",
  1: "classes",
  2: "namespaces"
};

var indexSectionLabels =
{
  0: "All",
  1: "Classes",
  2: "Namespaces"
};
`

func TestParseSections(t *testing.T) {
	ss, err := ParseSections(strings.NewReader(sampleSections))
	require.NoError(t, err)
	require.Len(t, ss.Sections, 3)
	assert.Equal(t, []string{"all", "classes", "namespaces"}, ss.Names())

	all, ok := ss.Lookup("all")
	require.True(t, ok)
	assert.Equal(t, "All", all.Label)
	assert.Len(t, all.Files(), 26)

	name, ok := ss.FileName("all", 'c')
	require.True(t, ok)
	assert.Equal(t, "all_4.js", name)

	name, ok = ss.FileName("all", 'p')
	require.True(t, ok)
	assert.Equal(t, "all_11.js", name, "index is written in hex")

	_, ok = ss.FileName("namespaces", 'x')
	assert.False(t, ok)
	_, ok = ss.FileName("files", 'a')
	assert.False(t, ok)
}

func TestWriteSectionsRoundTrip(t *testing.T) {
	ss, err := ParseSections(strings.NewReader(sampleSections))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSections(&buf, ss))
	again, err := ParseSections(&buf)
	require.NoError(t, err)
	assert.Equal(t, ss, again)
}

func TestParseSectionsRequiresNames(t *testing.T) {
	_, err := ParseSections(strings.NewReader(`var indexSectionLabels = { 0: "All" };`))
	assert.ErrorIs(t, err, ErrSyntax)
}
