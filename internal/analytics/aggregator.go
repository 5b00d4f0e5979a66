package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

// latencyWindow bounds the number of latencies kept for percentiles.
const latencyWindow = 10000

type AggregatedStats struct {
	TotalLookups      int64            `json:"total_lookups"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	DocsetsIndexed    int64            `json:"docsets_indexed"`
	DocsetsFailed     int64            `json:"docsets_failed"`
	AvgLatencyUs      float64          `json:"avg_latency_us"`
	P50LatencyUs      int64            `json:"p50_latency_us"`
	P95LatencyUs      int64            `json:"p95_latency_us"`
	P99LatencyUs      int64            `json:"p99_latency_us"`
	PerMode           map[string]int64 `json:"per_mode"`
	PerSection        map[string]int64 `json:"per_section"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running statistics of lookup and index events. It is a
// Sink, so the searcher can feed it directly when Kafka is disabled.
type Aggregator struct {
	mu                sync.RWMutex
	totalLookups      int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	docsetsIndexed    int64
	docsetsFailed     int64
	latencies         []int64
	next              int
	perMode           map[string]int64
	perSection        map[string]int64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time
	now               func() time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, latencyWindow),
		perMode:           make(map[string]int64),
		perSection:        make(map[string]int64),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		now:               time.Now,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// Track records a LookupEvent or IndexEvent; anything else is ignored.
func (a *Aggregator) Track(event any) {
	switch e := event.(type) {
	case LookupEvent:
		a.recordLookup(e)
	case IndexEvent:
		a.recordIndex(e)
	}
}

// HandleEvent decodes analytics messages from Kafka into the aggregator.
// Undecodable messages are logged and skipped so they are still committed.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		typ, err := kafka.PeekType(value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		switch EventType(typ) {
		case EventLookup:
			e, err := kafka.DecodeJSON[LookupEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode lookup event", "error", err)
				return nil
			}
			agg.recordLookup(e)
		case EventDocsetIndexed:
			e, err := kafka.DecodeJSON[IndexEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode index event", "error", err)
				return nil
			}
			agg.recordIndex(e)
		default:
			agg.logger.Warn("unknown analytics event type", "type", typ)
		}
		return nil
	}
}

func (a *Aggregator) recordLookup(e LookupEvent) {
	query := strings.ToLower(strings.TrimSpace(e.Query))

	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalLookups++
	if e.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, e.LatencyUs)
	} else {
		a.latencies[a.next] = e.LatencyUs
		a.next = (a.next + 1) % latencyWindow
	}
	a.perMode[e.Mode]++
	a.perSection[e.Section]++
	a.queryCounts[query]++
	if e.Total == 0 {
		a.zeroResults++
		a.zeroResultQueries[query]++
	}
}

func (a *Aggregator) recordIndex(e IndexEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch e.Status {
	case "ok":
		a.docsetsIndexed++
	case "failed":
		a.docsetsFailed++
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalLookups:    a.totalLookups,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		ZeroResultCount: a.zeroResults,
		DocsetsIndexed:  a.docsetsIndexed,
		DocsetsFailed:   a.docsetsFailed,
		PerMode:         lo.Assign(a.perMode),
		PerSection:      lo.Assign(a.perSection),
	}
	if len(a.latencies) > 0 {
		sorted := append([]int64(nil), a.latencies...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		stats.AvgLatencyUs = float64(lo.Sum(sorted)) / float64(len(sorted))
		stats.P50LatencyUs = percentile(sorted, 50)
		stats.P95LatencyUs = percentile(sorted, 95)
		stats.P99LatencyUs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalLookups) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then query, so ties are stable.
func topN(counts map[string]int64, n int) []QueryCount {
	result := lo.MapToSlice(counts, func(q string, c int64) QueryCount {
		return QueryCount{Query: q, Count: c}
	})
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
