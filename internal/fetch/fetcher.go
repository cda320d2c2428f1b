package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"draft-analyzer/internal/logging"
)

const (
	DefaultMinInterval = 1000 * time.Millisecond
	DefaultMaxRetries  = 3
	DefaultBaseBackoff = 1000 * time.Millisecond
	DefaultTimeout     = 10 * time.Second
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// FetchError is returned once every attempt for a URL has failed, or
// when the caller cancelled while the fetcher was waiting.
type FetchError struct {
	URL      string
	Attempts int
	Cause    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// StatusError is a non-200 response from the remote site.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// waitError is a failure to get a turn at the gate or the limiter before
// the caller's context ends. Retrying under the same context cannot help.
type waitError struct {
	err error
}

func (e *waitError) Error() string {
	return "waiting for request slot: " + e.err.Error()
}

func (e *waitError) Unwrap() error {
	return e.err
}

// Transient reports whether retrying the request could succeed.
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode >= 500
}

// Options configures a Fetcher.
type Options struct {
	// MinInterval is the minimum spacing between physical requests (default: 1s)
	MinInterval time.Duration

	// MaxRetries is the total number of attempts per Fetch (default: 3)
	MaxRetries int

	// BaseBackoff is the first retry delay, doubled per attempt (default: 1s)
	BaseBackoff time.Duration

	// Timeout for each HTTP request (default: 10s)
	Timeout time.Duration

	UserAgent string

	// HTTPClient allows a custom HTTP client
	HTTPClient *http.Client

	Logger *slog.Logger
}

// DefaultOptions returns conservative scraping defaults.
func DefaultOptions() Options {
	return Options{
		MinInterval: DefaultMinInterval,
		MaxRetries:  DefaultMaxRetries,
		BaseBackoff: DefaultBaseBackoff,
		Timeout:     DefaultTimeout,
		UserAgent:   DefaultUserAgent,
	}
}

// Fetcher retrieves and parses HTML documents through a single gate.
// One physical request is in flight at a time and consecutive requests
// are spaced by at least MinInterval, across all callers of the instance.
type Fetcher struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	gate       *semaphore.Weighted

	maxRetries  int
	baseBackoff time.Duration
	userAgent   string
	logger      *slog.Logger
}

// New creates a fetcher. Zero-valued options fall back to the defaults.
func New(options Options) *Fetcher {
	def := DefaultOptions()
	if options.MinInterval <= 0 {
		options.MinInterval = def.MinInterval
	}
	if options.MaxRetries < 1 {
		options.MaxRetries = def.MaxRetries
	}
	if options.BaseBackoff <= 0 {
		options.BaseBackoff = def.BaseBackoff
	}
	if options.Timeout <= 0 {
		options.Timeout = def.Timeout
	}
	if options.UserAgent == "" {
		options.UserAgent = def.UserAgent
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: options.Timeout,
		}
	}

	return &Fetcher{
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(rate.Every(options.MinInterval), 1),
		gate:        semaphore.NewWeighted(1),
		maxRetries:  options.MaxRetries,
		baseBackoff: options.BaseBackoff,
		userAgent:   options.UserAgent,
		logger:      logging.OrDiscard(options.Logger).With("component", "fetcher"),
	}
}

// Fetch returns the parsed document at url. Transient failures are
// retried with exponential backoff; the returned error is always a
// *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	for attempt := 1; ; attempt++ {
		doc, err := f.do(ctx, url)
		if err == nil {
			return doc, nil
		}

		if ctx.Err() != nil || !transient(err) || attempt >= f.maxRetries {
			f.logger.Warn("fetch failed", "url", url, "attempts", attempt, "error", err)
			return nil, &FetchError{URL: url, Attempts: attempt, Cause: err}
		}

		delay := f.baseBackoff << (attempt - 1)
		f.logger.Debug("retrying fetch", "url", url, "attempt", attempt, "delay", delay, "error", err)

		if err := sleep(ctx, delay); err != nil {
			return nil, &FetchError{URL: url, Attempts: attempt, Cause: err}
		}
	}
}

// do performs one physical request while holding the gate.
func (f *Fetcher) do(ctx context.Context, url string) (*goquery.Document, error) {
	if err := f.gate.Acquire(ctx, 1); err != nil {
		return nil, &waitError{err: err}
	}
	defer f.gate.Release(1)

	// Wait fails early, with ctx still live, when the next slot lies past
	// the deadline.
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &waitError{err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return doc, nil
}

func transient(err error) bool {
	var we *waitError
	if errors.As(err, &we) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
