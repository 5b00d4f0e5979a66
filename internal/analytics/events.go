// Package analytics tracks lookup traffic: the searcher emits one event per
// query, a collector ships them to Kafka in batches and the aggregator turns
// them into top-query, zero-result and latency statistics.
package analytics

import "time"

type EventType string

const (
	EventLookup        EventType = "lookup"
	EventDocsetIndexed EventType = "docset_indexed"
)

type LookupEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Section   string    `json:"section"`
	Mode      string    `json:"mode"`
	Total     int       `json:"total"`
	Returned  int       `json:"returned"`
	LatencyUs int64     `json:"latency_us"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

type IndexEvent struct {
	Type       EventType `json:"type"`
	Docset     string    `json:"docset"`
	Version    string    `json:"version"`
	Files      int       `json:"files"`
	Entries    int       `json:"entries"`
	DurationMs int64     `json:"duration_ms"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

// Sink receives events. Collector ships them to Kafka, Aggregator records
// them in process.
type Sink interface {
	Track(event any)
}

type tee []Sink

func (t tee) Track(event any) {
	for _, s := range t {
		s.Track(event)
	}
}

// Tee returns a Sink that forwards every event to each non-nil sink.
func Tee(sinks ...Sink) Sink {
	out := make(tee, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
