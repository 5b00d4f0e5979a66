package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

type Stats struct {
	mu        sync.Mutex
	total     int64
	latencies []time.Duration
	codes     map[int]int64
	errors    int64
	cacheHits int64
}

func NewStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 100000),
		codes:     make(map[int]int64),
	}
}

// Record adds one request outcome. Requests cut short by the end of the
// run are not counted.
func (s *Stats) Record(ctx context.Context, o outcome) {
	if o.err != nil && ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	if o.err != nil {
		s.errors++
		return
	}
	s.codes[o.status]++
	if o.status < 200 || o.status >= 300 {
		s.errors++
	}
	if o.cacheHit {
		s.cacheHits++
	}
	s.latencies = append(s.latencies, o.latency)
}

type Summary struct {
	Total     int64
	Errors    int64
	CacheHits int64
	Elapsed   time.Duration
	Min       time.Duration
	Mean      time.Duration
	P50       time.Duration
	P90       time.Duration
	P99       time.Duration
	Max       time.Duration
	StdDev    time.Duration
	Codes     map[int]int64
}

func (s *Summary) RPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Total) / s.Elapsed.Seconds()
}

func (s *Stats) Summarize(elapsed time.Duration) Summary {
	s.mu.Lock()
	lat := slices.Clone(s.latencies)
	sum := Summary{
		Total:     s.total,
		Errors:    s.errors,
		CacheHits: s.cacheHits,
		Elapsed:   elapsed,
		Codes:     make(map[int]int64, len(s.codes)),
	}
	for code, n := range s.codes {
		sum.Codes[code] = n
	}
	s.mu.Unlock()

	if len(lat) == 0 {
		return sum
	}
	slices.Sort(lat)
	var total time.Duration
	for _, l := range lat {
		total += l
	}
	mean := total / time.Duration(len(lat))
	var sq float64
	for _, l := range lat {
		d := float64(l - mean)
		sq += d * d
	}
	sum.Min = lat[0]
	sum.Max = lat[len(lat)-1]
	sum.Mean = mean
	sum.P50 = percentile(lat, 50)
	sum.P90 = percentile(lat, 90)
	sum.P99 = percentile(lat, 99)
	sum.StdDev = time.Duration(math.Sqrt(sq / float64(len(lat))))
	return sum
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	i := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(i, len(sorted)-1))]
}

func printReport(w io.Writer, s Summary) {
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Requests:   %s\n", humanize.Comma(s.Total))
	fmt.Fprintf(w, "Errors:     %s\n", humanize.Comma(s.Errors))
	fmt.Fprintf(w, "Cache hits: %s\n", humanize.Comma(s.CacheHits))
	if s.Total > 0 {
		fmt.Fprintf(w, "Error rate: %.2f%%\n", float64(s.Errors)/float64(s.Total)*100)
		fmt.Fprintf(w, "Req/sec:    %.2f\n", s.RPS())
	}
	fmt.Fprintln(w)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Min", "Mean", "P50", "P90", "P99", "Max", "StdDev"})
	table.SetAutoFormatHeaders(false)
	table.Append([]string{
		s.Min.String(), s.Mean.String(), s.P50.String(), s.P90.String(),
		s.P99.String(), s.Max.String(), s.StdDev.String(),
	})
	table.Render()

	codes := make([]int, 0, len(s.Codes))
	for code := range s.Codes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	if len(codes) > 0 {
		fmt.Fprintln(w)
		ct := tablewriter.NewWriter(w)
		ct.SetHeader([]string{"Status", "Count"})
		for _, code := range codes {
			ct.Append([]string{strconv.Itoa(code), humanize.Comma(s.Codes[code])})
		}
		ct.Render()
	}

	if s.Total == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "WARNING: no requests completed. Is the searcher running?")
	}
}
