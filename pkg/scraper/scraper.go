// Package scraper provides HTTP fetching of listing pages.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 8 << 20

// FetchOptions configures the behavior of a Fetcher.
type FetchOptions struct {
	UserAgent string            `yaml:"user_agent" env:"NEWSDESK_USER_AGENT"`
	Timeout   time.Duration     `yaml:"timeout" env:"NEWSDESK_FETCH_TIMEOUT"`
	RateLimit float64           `yaml:"rate_limit" env:"NEWSDESK_FETCH_RATE"` // requests per second, 0 disables
	Headers   map[string]string `yaml:"headers"`
}

// DefaultFetchOptions returns sensible defaults for fetching.
func DefaultFetchOptions() FetchOptions {
	return FetchOptions{
		UserAgent: "Mozilla/5.0 (compatible; NewsdeskBot/1.0; +https://github.com/RobinCoderZhao/newsdesk)",
		Timeout:   10 * time.Second,
	}
}

// Page is a fetched listing page, decoded to UTF-8.
type Page struct {
	URL        string
	StatusCode int
	Body       string
	FetchedAt  time.Time
	Duration   time.Duration
}

// FetchError describes a failed fetch: transport failure, timeout, or a
// non-2xx response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Timeout reports whether the fetch hit its deadline.
func (e *FetchError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(e.Err, &te) && te.Timeout()
}

// Fetcher retrieves raw markup for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// HTTPFetcher implements Fetcher using net/http.
type HTTPFetcher struct {
	client  *http.Client
	opts    FetchOptions
	limiter *rate.Limiter
}

// NewHTTPFetcher creates a fetcher. Zero-valued options fall back to defaults.
func NewHTTPFetcher(opts FetchOptions) *HTTPFetcher {
	def := DefaultFetchOptions()
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	f := &HTTPFetcher{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}
	if opts.RateLimit > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return f
}

// Fetch performs a single GET bounded by the configured timeout. Failures are
// returned as *FetchError and are not retried.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{URL: url, Err: err}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "es-PE,es;q=0.9,en;q=0.5")
	for k, v := range f.opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("decode body: %w", err)}
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	return &Page{
		URL:        url,
		StatusCode: resp.StatusCode,
		Body:       string(body),
		FetchedAt:  time.Now(),
		Duration:   time.Since(start),
	}, nil
}
