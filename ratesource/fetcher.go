/*
Package ratesource obtains the per-diem rate table from its publisher.

PURPOSE:
  The rate table changes whenever a decree is published, so the engine
  reads it from a remote JSON document instead of compiling it in. This
  package fetches that document with bounded retries, keeps the last good
  copy in a cache and refreshes it in the background.

RETRY POLICY:
  Attempts (default 3) with linear backoff: after failed attempt i the
  fetcher waits BaseDelay * i before trying again (1s, 2s, ...). Network
  errors, non-2xx statuses and undecodable bodies are all retried. After
  the last attempt a *FetchError wrapping diaria.ErrRateTableUnavailable
  is returned.

TRANSPORT:
  fasthttp client; each attempt is bounded by Timeout and by the context
  deadline, whichever comes first.

SEE ALSO:
  - provider.go: Remote -> cache -> built-in fallback
  - refresher.go: Periodic reload
  - factory/ratetable.go: Document parsing
*/
package ratesource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/cadrimil/engine/diaria"
	"github.com/cadrimil/engine/factory"
	"github.com/cadrimil/engine/internal/logging"
)

// DefaultURL is where the mobile app reads its table.
const DefaultURL = "https://apps.mabesi.dev/cadrimil/api.json"

// =============================================================================
// FETCH ERROR
// =============================================================================

// FetchError reports a fetch that failed after every attempt.
type FetchError struct {
	URL      string
	Attempts int
	Err      error // last attempt's error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch rate table from %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *FetchError) Unwrap() []error {
	return []error{diaria.ErrRateTableUnavailable, e.Err}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

// =============================================================================
// FETCHER
// =============================================================================

// Fetcher downloads and parses the rate-table document.
type Fetcher struct {
	URL       string
	Attempts  int
	BaseDelay time.Duration
	Timeout   time.Duration

	Client  *fasthttp.Client
	Factory *factory.RateTableFactory
	log     *zap.Logger
}

// NewFetcher creates a fetcher with the defaults of the mobile app.
func NewFetcher(url string) *Fetcher {
	if url == "" {
		url = DefaultURL
	}
	return &Fetcher{
		URL:       url,
		Attempts:  3,
		BaseDelay: time.Second,
		Timeout:   10 * time.Second,
		Client: &fasthttp.Client{
			Name:         "cadrimil",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Factory: factory.NewRateTableFactory(),
		log:     logging.Named("ratesource"),
	}
}

// Fetch downloads the table, retrying with linear backoff.
func (f *Fetcher) Fetch(ctx context.Context) (diaria.RateTable, error) {
	attempts := f.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		table   diaria.RateTable
		tried   int
		lastErr error
	)

	err := retry.Do(ctx, f.backoff(attempts), func(ctx context.Context) error {
		tried++
		t, err := f.fetchOnce(ctx)
		if err != nil {
			lastErr = err
			f.logger().Warn("rate table fetch failed",
				zap.String("url", f.URL),
				zap.Int("attempt", tried),
				zap.Int("max_attempts", attempts),
				zap.Error(err),
			)
			return retry.RetryableError(err)
		}
		table = t
		return nil
	})
	if err != nil {
		if lastErr == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			lastErr = err
		}
		return diaria.RateTable{}, &FetchError{URL: f.URL, Attempts: tried, Err: lastErr}
	}

	f.logger().Info("rate table fetched",
		zap.String("url", f.URL),
		zap.Int("attempt", tried),
		zap.Int("groups", len(table.Groups)),
		zap.Int("localities", len(table.Localities)),
	)
	return table, nil
}

// backoff waits BaseDelay*i after the i-th failure and stops after
// attempts-1 retries.
func (f *Fetcher) backoff(attempts int) retry.Backoff {
	var n int64
	linear := retry.BackoffFunc(func() (time.Duration, bool) {
		n++
		return time.Duration(n) * f.BaseDelay, false
	})
	return retry.WithMaxRetries(uint64(attempts-1), linear)
}

func (f *Fetcher) fetchOnce(ctx context.Context) (diaria.RateTable, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(f.URL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	deadline := time.Now().Add(f.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := f.Client.DoDeadline(req, resp, deadline); err != nil {
		return diaria.RateTable{}, err
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return diaria.RateTable{}, &StatusError{StatusCode: status}
	}

	table, err := f.Factory.Parse(resp.Body())
	if err != nil {
		return diaria.RateTable{}, err
	}
	if table.IsEmpty() {
		return diaria.RateTable{}, errors.New("rate table document has no rates")
	}
	return table, nil
}

func (f *Fetcher) logger() *zap.Logger {
	if f.log == nil {
		f.log = logging.Named("ratesource")
	}
	return f.log
}

// =============================================================================
// FILE SOURCE
// =============================================================================

// FileFetcher reads the table from a local document instead of the network.
// Used for offline deployments and by the finance office's spreadsheets.
type FileFetcher struct {
	Path string
}

// Fetch loads the file on every call so edits are picked up by a reload.
func (f FileFetcher) Fetch(ctx context.Context) (diaria.RateTable, error) {
	if err := ctx.Err(); err != nil {
		return diaria.RateTable{}, err
	}
	table, err := factory.LoadFile(f.Path)
	if err != nil {
		return diaria.RateTable{}, &FetchError{URL: f.Path, Attempts: 1, Err: err}
	}
	if table.IsEmpty() {
		return diaria.RateTable{}, &FetchError{URL: f.Path, Attempts: 1, Err: errors.New("document has no rates")}
	}
	return table, nil
}
