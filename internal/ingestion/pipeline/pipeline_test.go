package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/publish"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/snapshot"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/tracing"
)

const fixtureDir = "../../catalog/testdata/search"

type fakeStore struct {
	mu    sync.Mutex
	saved map[string]int
	err   error
}

func (s *fakeStore) SaveDocset(_ context.Context, name, version string, cat *catalog.Catalog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.saved == nil {
		s.saved = make(map[string]int)
	}
	s.saved[name+"@"+version] = cat.Stats().Entries
	return nil
}

type fakeSite struct {
	mu        sync.Mutex
	published []string
}

func (s *fakeSite) Publish(_ context.Context, docset, version string, cat *catalog.Catalog) (publish.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, docset+"@"+version)
	return publish.Manifest{Docset: docset, Version: version, Stats: cat.Stats()}, nil
}

type recordingProducer struct {
	mu     sync.Mutex
	events []kafka.Event
}

func (p *recordingProducer) Publish(ctx context.Context, e kafka.Event) error {
	return p.PublishBatch(ctx, []kafka.Event{e})
}

func (p *recordingProducer) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

type harness struct {
	p     *Pipeline
	store *fakeStore
	site  *fakeSite
	prod  *recordingProducer
	jobs  *publisher.MemoryJobs
	agg   *analytics.Aggregator
	m     *metrics.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store: &fakeStore{},
		site:  &fakeSite{},
		prod:  &recordingProducer{},
		jobs:  publisher.NewMemoryJobs(),
		agg:   analytics.NewAggregator(),
		m:     metrics.New(prometheus.NewRegistry()),
	}
	h.p = New(Config{
		SnapshotDir: t.TempDir(),
		Codec:       snapshot.CodecZstd,
	}, Deps{
		Store:     h.store,
		Site:      h.site,
		Notifier:  h.prod,
		Jobs:      h.jobs,
		Analytics: h.agg,
		Metrics:   h.m,
		Tracer:    tracing.New(config.TracingConfig{Enabled: true}),
	})
	return h
}

func (h *harness) job(t *testing.T, dir string) ingestion.DocsetPublished {
	t.Helper()
	require.NoError(t, h.jobs.Create(context.Background(), publisher.Job{ID: "job-1", Status: ingestion.JobPending}, ""))
	return ingestion.DocsetPublished{JobID: "job-1", Docset: "mimicpp", Version: "v7", Dir: dir}
}

func TestProcessRunsEveryStage(t *testing.T) {
	h := newHarness(t)
	ev := h.job(t, fixtureDir)

	require.NoError(t, h.p.Handle(context.Background(), ev))

	assert.Equal(t, map[string]int{"mimicpp@v7": 60}, h.store.saved)
	assert.Equal(t, []string{"mimicpp@v7"}, h.site.published)

	require.Len(t, h.prod.events, 1)
	done := h.prod.events[0].Value.(ingestion.IndexComplete)
	assert.Equal(t, "job-1", done.JobID)
	assert.Equal(t, 60, done.Entries)
	assert.Equal(t, 76, done.Matches)
	assert.Equal(t, h.p.SnapshotPath("mimicpp", "v7"), done.Snapshot)

	cat, err := ingestion.LoadSnapshot(done.Snapshot)
	require.NoError(t, err)
	assert.Equal(t, 60, cat.Stats().Entries)

	job, err := h.jobs.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, ingestion.JobIndexed, job.Status)
	assert.Equal(t, int64(1), h.agg.Stats().DocsetsIndexed)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.m.DocsetsIndexedTotal.WithLabelValues("ok")))
}

func TestMissingDirectoryIsPermanent(t *testing.T) {
	h := newHarness(t)
	ev := h.job(t, filepath.Join(t.TempDir(), "nope"))
	value, err := json.Marshal(ev)
	require.NoError(t, err)

	assert.NoError(t, h.p.HandleMessage()(context.Background(), []byte("mimicpp"), value))

	job, err := h.jobs.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, ingestion.JobFailed, job.Status)
	assert.Contains(t, job.Detail, "load")
	assert.Empty(t, h.prod.events)
	assert.Empty(t, h.store.saved)
	assert.Equal(t, int64(1), h.agg.Stats().DocsetsFailed)
}

func TestEmptyDirectoryIsPermanent(t *testing.T) {
	h := newHarness(t)
	_, err := h.p.Process(context.Background(), h.job(t, t.TempDir()))
	require.Error(t, err)
	assert.True(t, Permanent(err))
}

func TestStoreFailureIsRedelivered(t *testing.T) {
	h := newHarness(t)
	h.store.err = errors.New("connection refused")
	value, err := json.Marshal(h.job(t, fixtureDir))
	require.NoError(t, err)

	err = h.p.HandleMessage()(context.Background(), nil, value)
	require.Error(t, err)
	assert.False(t, Permanent(err))
	assert.Empty(t, h.prod.events)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.m.DocsetsIndexedTotal.WithLabelValues("retrying")))
	assert.Equal(t, float64(0), testutil.ToFloat64(h.m.DocsetsIndexedTotal.WithLabelValues("failed")))

	job, err := h.jobs.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, ingestion.JobPending, job.Status)
	assert.Contains(t, job.Detail, "connection refused")
	assert.Equal(t, int64(0), h.agg.Stats().DocsetsFailed)

	h.store.err = nil
	require.NoError(t, h.p.HandleMessage()(context.Background(), nil, value))
	job, err = h.jobs.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, ingestion.JobIndexed, job.Status)
}

func TestUndecodableMessageIsSkipped(t *testing.T) {
	h := newHarness(t)
	assert.NoError(t, h.p.HandleMessage()(context.Background(), nil, []byte("{")))
}

func TestOptionalStagesMayBeMissing(t *testing.T) {
	p := New(Config{SnapshotDir: t.TempDir()}, Deps{})
	done, err := p.Process(context.Background(), ingestion.DocsetPublished{Docset: "d", Version: "1", Dir: fixtureDir})
	require.NoError(t, err)
	_, err = os.Stat(done.Snapshot)
	assert.NoError(t, err)
}

func TestIndexCompleteInstallsSnapshot(t *testing.T) {
	h := newHarness(t)
	done, err := h.p.Process(context.Background(), ingestion.DocsetPublished{Docset: "mimicpp", Version: "v7", Dir: fixtureDir})
	require.NoError(t, err)
	value, err := json.Marshal(done)
	require.NoError(t, err)

	var installed *catalog.Catalog
	handler := ingestion.HandleIndexComplete("mimicpp", func(c *catalog.Catalog) { installed = c })
	require.NoError(t, handler(context.Background(), nil, value))
	require.NotNil(t, installed)
	assert.Equal(t, []string{"all", "classes"}, installed.Sections())

	installed = nil
	other := ingestion.HandleIndexComplete("other", func(c *catalog.Catalog) { installed = c })
	require.NoError(t, other(context.Background(), nil, value))
	assert.Nil(t, installed)

	done.Snapshot = filepath.Join(t.TempDir(), "gone.dsx")
	value, err = json.Marshal(done)
	require.NoError(t, err)
	assert.NoError(t, handler(context.Background(), nil, value))
	assert.Nil(t, installed)
}
