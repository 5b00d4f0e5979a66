package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

type nopProducer struct{ n int }

func (p *nopProducer) Publish(ctx context.Context, e kafka.Event) error {
	return p.PublishBatch(ctx, []kafka.Event{e})
}

func (p *nopProducer) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.n += len(events)
	return nil
}

func newMux() (*http.ServeMux, *nopProducer) {
	prod := &nopProducer{}
	mux := http.NewServeMux()
	New(publisher.New(publisher.NewMemoryJobs(), prod)).Register(mux)
	return mux, prod
}

func TestPublishAccepted(t *testing.T) {
	mux, prod := newMux()
	body := `{"docset":"mimicpp","version":"v7","dir":"/srv/html/search"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/docsets", strings.NewReader(body)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp ingestion.PublishResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ingestion.JobPending, resp.Status)
	assert.Equal(t, 1, prod.n)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+resp.JobID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var job publisher.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "mimicpp", job.Docset)
}

func TestPublishRejectsBadInput(t *testing.T) {
	mux, prod := newMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/docsets", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/docsets", strings.NewReader(`{"docset":"a/b"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Fields, "docset")
	assert.Contains(t, resp.Fields, "dir")
	assert.Zero(t, prod.n)
}

func TestUnknownJob(t *testing.T) {
	mux, _ := newMux()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
