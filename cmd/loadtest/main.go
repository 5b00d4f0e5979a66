// Command loadtest drives the searcher's lookup API with a mix of prefix,
// exact and substring queries and reports latency percentiles.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type Config struct {
	BaseURL     string
	Section     string
	Concurrency int
	Duration    time.Duration
	RPS         float64
	Queries     []Query
}

// Query is one request template. Text is sent as typed by a user; the
// searcher encodes it.
type Query struct {
	Text string
	Mode string
}

var defaultQueries = []Query{
	{"call", "prefix"},
	{"c", "prefix"},
	{"custom", "prefix"},
	{"mimicpp", "prefix"},
	{"Call Conventions", "exact"},
	{"expect", "prefix"},
	{"type", "substring"},
	{"finalizer", "substring"},
	{"operator", "prefix"},
	{"sequence", "prefix"},
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the searcher")
	section := flag.String("section", "", "section to query (default section when empty)")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	rps := flag.Float64("rps", 0, "overall request rate limit, 0 for unlimited")
	queries := flag.String("queries", "", "comma separated mode:text pairs replacing the built-in mix")
	flag.Parse()

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Section:     *section,
		Concurrency: *concurrency,
		Duration:    *duration,
		RPS:         *rps,
		Queries:     defaultQueries,
	}
	if *queries != "" {
		parsed, err := parseQueries(*queries)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		cfg.Queries = parsed
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("=== Docsearch Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	if cfg.RPS > 0 {
		fmt.Printf("Rate:        %.0f req/s\n", cfg.RPS)
	}
	fmt.Println()

	stats, elapsed := run(ctx, cfg, newClient(cfg.Concurrency))
	printReport(os.Stdout, stats.Summarize(elapsed))
}

func parseQueries(s string) ([]Query, error) {
	var out []Query
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mode, text, ok := strings.Cut(part, ":")
		if !ok {
			mode, text = "prefix", part
		}
		if text == "" {
			return nil, fmt.Errorf("empty query text in %q", part)
		}
		out = append(out, Query{Text: text, Mode: mode})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no queries in %q", s)
	}
	return out, nil
}

func newClient(concurrency int) *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func searchURL(cfg Config, q Query) string {
	v := url.Values{}
	v.Set("q", q.Text)
	v.Set("mode", q.Mode)
	v.Set("limit", "10")
	if cfg.Section != "" {
		v.Set("section", cfg.Section)
	}
	return cfg.BaseURL + "/api/v1/search?" + v.Encode()
}

// run issues requests from cfg.Concurrency workers until cfg.Duration
// elapses or ctx is cancelled.
func run(ctx context.Context, cfg Config, client *http.Client) (*Stats, time.Duration) {
	stats := NewStats()
	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Concurrency)
	}

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Concurrency; w++ {
		worker := w
		g.Go(func() error {
			for i := worker; ctx.Err() == nil; i++ {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						return nil
					}
				}
				q := cfg.Queries[i%len(cfg.Queries)]
				stats.Record(ctx, doRequest(ctx, client, searchURL(cfg, q)))
			}
			return nil
		})
	}
	_ = g.Wait()
	return stats, time.Since(start)
}

type outcome struct {
	latency  time.Duration
	status   int
	cacheHit bool
	err      error
}

func doRequest(ctx context.Context, client *http.Client, rawURL string) outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return outcome{err: err}
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return outcome{latency: time.Since(start), err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return outcome{latency: time.Since(start), err: err}
	}
	return outcome{
		latency:  time.Since(start),
		status:   resp.StatusCode,
		cacheHit: bytes.Contains(body, []byte(`"cacheHit":true`)),
	}
}
