package searchdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFixtureIsClean(t *testing.T) {
	tbl, _ := loadFixture(t)
	assert.Empty(t, Validate(tbl))
	assert.Empty(t, ValidateStrict(tbl))
}

func TestValidateReportsViolations(t *testing.T) {
	tbl := NewTable("all", []Entry{
		{ID: "ok_0", Name: "ok", Matches: []Match{{URL: "../ok.html#a", Internal: true}}},
		{ID: "ok_0", Name: "dup", Matches: []Match{{URL: "dup.html", Internal: true}}},
		{ID: "noord", Name: "x", Matches: []Match{{URL: "x.html"}}},
		{ID: "bad_2g_3", Name: "bad", Matches: []Match{{URL: "b.html"}}},
		{ID: "empty_4", Name: " ", Matches: nil},
		{ID: "urls_5", Name: "urls", Matches: []Match{
			{URL: ""},
			{URL: "https://example.com/x.html"},
			{URL: "/abs.html"},
			{URL: "#only-fragment"},
			{URL: "%zz"},
		}},
	})

	got := map[string][]string{}
	for _, v := range Validate(tbl) {
		got[v.EntryID] = append(got[v.EntryID], v.Field)
	}
	assert.Equal(t, []string{"id"}, got["ok_0"])
	assert.Equal(t, []string{"id"}, got["noord"])
	assert.Equal(t, []string{"key"}, got["bad_2g_3"])
	assert.Equal(t, []string{"name", "matches"}, got["empty_4"])
	assert.Equal(t, []string{
		"matches[0].url",
		"matches[1].url",
		"matches[2].url",
		"matches[3].url",
		"matches[4].url",
	}, got["urls_5"])
}

func TestValidateEmptyTable(t *testing.T) {
	v := Validate(NewTable("all", nil))
	if assert.Len(t, v, 1) {
		assert.Equal(t, "table", v[0].Field)
		assert.Equal(t, "table: no entries", v[0].String())
	}
}

func TestValidateStrict(t *testing.T) {
	tbl := NewTable("all", []Entry{
		{ID: "libc_0", Name: "Clang-18.1 + libc++", Matches: []Match{{URL: "a.html", Internal: true}}},
		{ID: "Upper_1", Name: "Upper", Matches: []Match{{URL: "a.html", Internal: true}}},
		{ID: "missing_2", Name: "Something else", Matches: []Match{{URL: "a.html", Internal: true, Scope: "ns"}}},
		{ID: "tag_3", Name: "Other", Matches: []Match{{URL: "a.html", Internal: true, Scope: "mimicpp::Tag&lt; T &gt;"}}},
	})

	var msgs []string
	for _, v := range ValidateStrict(tbl) {
		msgs = append(msgs, v.String())
	}
	assert.Equal(t, []string{
		`Upper_1: key: not canonical, want "upper"`,
		`missing_2: key: "missing" not found in label or scopes`,
	}, msgs)
}
