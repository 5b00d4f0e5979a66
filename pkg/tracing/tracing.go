// Package tracing records span trees for multi-stage operations such as
// indexing a docset and logs them through slog when the root span ends.
// Spans travel in the context; a nil *Span is a valid no-op span, so code
// paths that were not sampled need no checks.
package tracing

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

type contextKey struct{}

type Tracer struct {
	enabled    bool
	sampleRate float64
	logger     *slog.Logger
}

// New returns a Tracer. A sample rate outside (0, 1] traces everything when
// enabled.
func New(cfg config.TracingConfig) *Tracer {
	rate := cfg.SampleRate
	if rate <= 0 || rate > 1 {
		rate = 1
	}
	return &Tracer{
		enabled:    cfg.Enabled,
		sampleRate: rate,
		logger:     slog.Default().With("component", "tracing"),
	}
}

// WithLogger replaces the logger spans are written to.
func (t *Tracer) WithLogger(l *slog.Logger) *Tracer {
	t.logger = l
	return t
}

type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	Duration  time.Duration
	Err       error

	mu       sync.Mutex
	attrs    map[string]any
	children []*Span
	tracer   *Tracer
	root     bool
}

// Start begins a root span. It returns a nil span when tracing is disabled
// or the trace was not sampled.
func (t *Tracer) Start(ctx context.Context, name string) (context.Context, *Span) {
	if t == nil || !t.enabled || (t.sampleRate < 1 && rand.Float64() >= t.sampleRate) {
		return ctx, nil
	}
	span := &Span{
		Name:      name,
		TraceID:   uuid.NewString(),
		StartTime: time.Now(),
		attrs:     make(map[string]any),
		tracer:    t,
		root:      true,
	}
	return context.WithValue(ctx, contextKey{}, span), span
}

// StartChild begins a span under the one in ctx, if any.
func StartChild(ctx context.Context, name string) (context.Context, *Span) {
	parent := FromContext(ctx)
	if parent == nil {
		return ctx, nil
	}
	child := &Span{
		Name:      name,
		TraceID:   parent.TraceID,
		StartTime: time.Now(),
		attrs:     make(map[string]any),
		tracer:    parent.tracer,
	}
	parent.mu.Lock()
	parent.children = append(parent.children, child)
	parent.mu.Unlock()
	return context.WithValue(ctx, contextKey{}, child), child
}

func FromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

func (s *Span) SetAttr(key string, value any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.attrs[key] = value
	s.mu.Unlock()
}

// Fail records err on the span. A nil err is ignored.
func (s *Span) Fail(err error) {
	if s == nil || err == nil {
		return
	}
	s.mu.Lock()
	s.Err = err
	s.mu.Unlock()
}

// End stamps the duration. Ending a root span logs the whole tree.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.Duration = time.Since(s.StartTime)
	s.mu.Unlock()
	if s.root {
		s.log(s.tracer.logger, 0)
	}
}

// Children returns a copy of the direct children.
func (s *Span) Children() []*Span {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

func (s *Span) log(logger *slog.Logger, depth int) {
	s.mu.Lock()
	args := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", s.Duration.Milliseconds(),
		"depth", depth,
	}
	for k, v := range s.attrs {
		args = append(args, k, v)
	}
	failed := s.Err
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	if failed != nil {
		logger.Warn("span", append(args, "error", failed.Error())...)
	} else {
		logger.Info("span", args...)
	}
	for _, child := range children {
		child.log(logger, depth+1)
	}
}
