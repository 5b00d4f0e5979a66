package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/lookup"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
)

const fixtureDir = "../../catalog/testdata/search"

type testServer struct {
	mux  *http.ServeMux
	exec *executor.Executor
	agg  *analytics.Aggregator
}

func newTestServer(t *testing.T, loaded bool) *testServer {
	t.Helper()
	exec := executor.New(lookup.Options{Fulltext: true}, 0)
	t.Cleanup(func() { _ = exec.Close() })

	loader := catalog.NewLoader(fixtureDir, catalog.Options{})
	loader.OnReload(func(c *catalog.Catalog) {
		require.NoError(t, exec.Swap(c))
	})
	if loaded {
		_, err := loader.Reload(context.Background())
		require.NoError(t, err)
	}

	agg := analytics.NewAggregator()
	h := New(exec, nil, agg, loader, nil, Options{DefaultLimit: 5, MaxResults: 20})
	mux := http.NewServeMux()
	h.Register(mux)
	return &testServer{mux: mux, exec: exec, agg: agg}
}

func (s *testServer) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestSearchPrefix(t *testing.T) {
	s := newTestServer(t, true)
	rec := s.do(t, http.MethodGet, "/api/v1/search?q=custom&limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[searchResponse](t, rec)
	assert.Equal(t, "custom", resp.Query)
	assert.Equal(t, "all", resp.Section)
	assert.Equal(t, lookup.ModePrefix, resp.Mode)
	assert.Equal(t, 7, resp.Total)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "custom_20char_20types_20and_20related_20strings_50", resp.Entries[0].ID)
	assert.Equal(t, "all_4.js", resp.Entries[0].File)
	assert.NotEmpty(t, resp.Entries[0].Matches)

	assert.Equal(t, int64(1), s.agg.Stats().TotalLookups)
}

func TestSearchDefaultLimit(t *testing.T) {
	s := newTestServer(t, true)
	resp := decode[searchResponse](t, s.do(t, http.MethodGet, "/api/v1/search?q=c"))
	assert.Greater(t, resp.Total, 5)
	assert.Len(t, resp.Entries, 5)
}

func TestSearchModesAndSections(t *testing.T) {
	s := newTestServer(t, true)

	resp := decode[searchResponse](t, s.do(t, http.MethodGet, "/api/v1/search?q=Call%20Conventions&mode=exact"))
	assert.Equal(t, 2, resp.Total)

	resp = decode[searchResponse](t, s.do(t, http.MethodGet, "/api/v1/search?q=con&section=classes"))
	assert.Equal(t, "classes", resp.Section)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "constness_1", resp.Entries[0].ID)
	assert.Equal(t, "controlpolicy_2", resp.Entries[1].ID)
	assert.Equal(t, "classes_0.js", resp.Entries[0].File)

	resp = decode[searchResponse](t, s.do(t, http.MethodGet, "/api/v1/search?q=cons&section=classes"))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "constness_1", resp.Entries[0].ID)

	rec := s.do(t, http.MethodGet, "/api/v1/search?q=zzz-qqq&mode=fulltext")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[searchResponse](t, rec).Total)
	assert.Equal(t, int64(1), s.agg.Stats().ZeroResultCount)
}

func TestSearchBadRequests(t *testing.T) {
	s := newTestServer(t, true)
	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?q=call&mode=regex",
		"/api/v1/search?q=call&limit=0",
		"/api/v1/search?q=call&limit=abc",
		"/api/v1/search?q=call&section=nope",
		"/api/v1/suggest",
		"/api/v1/suggest?q=c&n=-1",
		"/api/v1/suggest?q=c&section=nope",
		"/api/v1/validate?strict=maybe",
	} {
		rec := s.do(t, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, decode[map[string]string](t, rec), "error", target)
	}
}

func TestNotLoaded(t *testing.T) {
	s := newTestServer(t, false)
	for _, target := range []string{
		"/api/v1/search?q=call",
		"/api/v1/sections",
		"/api/v1/stats",
		"/search/all_4.js",
	} {
		assert.Equal(t, http.StatusServiceUnavailable, s.do(t, http.MethodGet, target).Code, target)
	}

	rec := s.do(t, http.MethodPost, "/api/v1/reload")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/search?q=call").Code)
	assert.Equal(t, int64(1), s.exec.Generation())
}

func TestSuggest(t *testing.T) {
	s := newTestServer(t, true)
	rec := s.do(t, http.MethodGet, "/api/v1/suggest?q=custom&n=3")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[struct {
		Suggestions []string `json:"suggestions"`
	}](t, rec)
	assert.Len(t, resp.Suggestions, 3)
	for _, s := range resp.Suggestions {
		assert.Regexp(t, "^custom", s)
	}
}

func TestSectionsAndStats(t *testing.T) {
	s := newTestServer(t, true)

	sections := decode[struct {
		Sections []sectionJSON `json:"sections"`
	}](t, s.do(t, http.MethodGet, "/api/v1/sections"))
	require.Len(t, sections.Sections, 2)
	assert.Equal(t, sectionJSON{Name: "all", Label: "All", Files: []string{"all_4.js"}, Entries: 57}, sections.Sections[0])
	assert.Equal(t, sectionJSON{Name: "classes", Label: "Classes", Files: []string{"classes_0.js"}, Entries: 3}, sections.Sections[1])

	stats := decode[struct {
		Generation int64         `json:"generation"`
		Catalog    catalog.Stats `json:"catalog"`
	}](t, s.do(t, http.MethodGet, "/api/v1/stats"))
	assert.Equal(t, int64(1), stats.Generation)
	assert.Equal(t, 60, stats.Catalog.Entries)
	assert.Equal(t, 76, stats.Catalog.Matches)
}

func TestValidate(t *testing.T) {
	s := newTestServer(t, true)
	resp := decode[struct {
		Valid  bool `json:"valid"`
		Strict bool `json:"strict"`
		Count  int  `json:"count"`
	}](t, s.do(t, http.MethodGet, "/api/v1/validate?strict=true"))
	assert.True(t, resp.Valid)
	assert.True(t, resp.Strict)
	assert.Zero(t, resp.Count)
}

func TestFileIsByteIdentical(t *testing.T) {
	s := newTestServer(t, true)
	rec := s.do(t, http.MethodGet, "/search/all_4.js")
	require.Equal(t, http.StatusOK, rec.Code)
	want, err := os.ReadFile(fixtureDir + "/all_4.js")
	require.NoError(t, err)
	assert.Equal(t, string(want), rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")

	rec = s.do(t, http.MethodGet, "/search/searchdata.js")
	require.Equal(t, http.StatusOK, rec.Code)
	want, err = os.ReadFile(fixtureDir + "/searchdata.js")
	require.NoError(t, err)
	assert.Equal(t, string(want), rec.Body.String())

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/search/all_9.js").Code)
}

func TestCacheDisabled(t *testing.T) {
	s := newTestServer(t, true)
	rec := s.do(t, http.MethodGet, "/api/v1/cache/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disabled", decode[map[string]string](t, rec)["status"])
	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, http.MethodPost, "/api/v1/cache/invalidate").Code)
}

func TestReloadWithoutLoader(t *testing.T) {
	exec := executor.New(lookup.Options{}, time.Second)
	defer exec.Close()
	h := New(exec, nil, nil, nil, nil, Options{})
	rec := httptest.NewRecorder()
	h.Reload(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reload", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
