/*
provider.go - Current rate table with fallbacks

PURPOSE:
  Owns the rate table every other component reads. Load tries, in order:

    1. Remote source (Fetcher)       -> Source "remote" ("file" for a
                                        FileFetcher), written to the cache
    2. Cached copy of the last fetch -> Source "cache"
    3. Built-in table (if allowed)   -> Source "default"

  When all three fail the provider keeps whatever it had before and
  returns the fetch error, so a failed reload never wipes a good table.

CONCURRENCY:
  Current/Status are read-locked; Load takes the write lock only to swap
  the result in, never while the network call is in flight.

SEE ALSO:
  - fetcher.go: Remote fetch with retries
  - store/sqlite/sqlite.go: Cache implementation
  - factory/defaults.go: Built-in table
*/
package ratesource

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cadrimil/engine/diaria"
	"github.com/cadrimil/engine/factory"
	"github.com/cadrimil/engine/internal/logging"
)

// ErrNoCachedTable is returned by caches that have never been written.
var ErrNoCachedTable = errors.New("no cached rate table")

// Source says where the current table came from.
type Source string

const (
	SourceNone    Source = ""
	SourceRemote  Source = "remote"
	SourceFile    Source = "file"
	SourceCache   Source = "cache"
	SourceDefault Source = "default"
	SourceStatic  Source = "static"
)

// Cache keeps the last successfully fetched table.
type Cache interface {
	SaveRateTable(ctx context.Context, table diaria.RateTable, fetchedAt time.Time) error
	LoadRateTable(ctx context.Context) (diaria.RateTable, time.Time, error)
}

// TableFetcher is satisfied by *Fetcher; tests substitute their own.
type TableFetcher interface {
	Fetch(ctx context.Context) (diaria.RateTable, error)
}

// Status describes the current table.
type Status struct {
	Source   Source
	LoadedAt time.Time
	LastErr  error // error of the last remote attempt, nil when it succeeded
}

// Provider serves the current rate table.
type Provider struct {
	fetcher         TableFetcher
	cache           Cache
	fallbackDefault bool
	now             func() time.Time
	log             *zap.Logger

	mu     sync.RWMutex
	table  diaria.RateTable
	status Status

	subsMu sync.Mutex
	subs   []func(diaria.RateTable)
}

// Option configures a Provider.
type Option func(*Provider)

// WithCache stores fetched tables and reads them back when offline.
func WithCache(c Cache) Option {
	return func(p *Provider) { p.cache = c }
}

// WithDefaultFallback enables the built-in table as last resort.
func WithDefaultFallback(enabled bool) Option {
	return func(p *Provider) { p.fallbackDefault = enabled }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// NewProvider creates a provider. Nothing is loaded until Load is called.
func NewProvider(fetcher TableFetcher, opts ...Option) *Provider {
	p := &Provider{
		fetcher:         fetcher,
		fallbackDefault: true,
		now:             time.Now,
		log:             logging.Named("ratesource"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Current returns the loaded table, or ErrRateTableUnavailable before the
// first successful Load.
func (p *Provider) Current() (diaria.RateTable, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.status.Source == SourceNone {
		return diaria.RateTable{}, diaria.ErrRateTableUnavailable
	}
	return p.table, nil
}

// Status returns where the current table came from.
func (p *Provider) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Err returns the error of the last remote attempt, nil after a success.
func (p *Provider) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status.LastErr
}

// Reload is Load under the name the API and CLI use.
func (p *Provider) Reload(ctx context.Context) error {
	return p.Load(ctx)
}

// OnChange registers fn to be called with every newly loaded table.
func (p *Provider) OnChange(fn func(diaria.RateTable)) {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	p.subs = append(p.subs, fn)
}

// Load refreshes the table. The returned error is the remote failure; it
// is non-nil even when a fallback was installed, so callers can report a
// stale table. Use Current to check whether any table is available.
func (p *Provider) Load(ctx context.Context) error {
	table, fetchErr := p.fetch(ctx)
	if fetchErr == nil {
		if p.cache != nil {
			if err := p.cache.SaveRateTable(ctx, table, p.now().UTC()); err != nil {
				p.log.Warn("failed to cache rate table", zap.Error(err))
			}
		}
		p.install(table, Status{Source: sourceOf(p.fetcher), LoadedAt: p.now().UTC()})
		return nil
	}

	if p.cache != nil {
		cached, fetchedAt, err := p.cache.LoadRateTable(ctx)
		switch {
		case err == nil && !cached.IsEmpty():
			p.log.Warn("using cached rate table",
				zap.Time("fetched_at", fetchedAt),
				zap.Error(fetchErr),
			)
			p.install(cached, Status{Source: SourceCache, LoadedAt: fetchedAt, LastErr: fetchErr})
			return fetchErr
		case err != nil && !errors.Is(err, ErrNoCachedTable):
			p.log.Warn("failed to read cached rate table", zap.Error(err))
		}
	}

	if p.fallbackDefault {
		p.mu.RLock()
		have := p.status.Source
		p.mu.RUnlock()
		// A table from an earlier successful load beats the built-in one.
		if have == SourceNone || have == SourceDefault {
			p.log.Warn("using built-in rate table", zap.Error(fetchErr))
			p.install(factory.DefaultRateTable(), Status{Source: SourceDefault, LoadedAt: p.now().UTC(), LastErr: fetchErr})
			return fetchErr
		}
	}

	p.mu.Lock()
	p.status.LastErr = fetchErr
	p.mu.Unlock()
	return fetchErr
}

func (p *Provider) fetch(ctx context.Context) (diaria.RateTable, error) {
	if p.fetcher == nil {
		return diaria.RateTable{}, diaria.ErrRateTableUnavailable
	}
	return p.fetcher.Fetch(ctx)
}

func sourceOf(f TableFetcher) Source {
	if _, ok := f.(FileFetcher); ok {
		return SourceFile
	}
	return SourceRemote
}

func (p *Provider) install(table diaria.RateTable, status Status) {
	p.mu.Lock()
	p.table = table
	p.status = status
	p.mu.Unlock()

	p.subsMu.Lock()
	subs := append(([]func(diaria.RateTable))(nil), p.subs...)
	p.subsMu.Unlock()
	for _, fn := range subs {
		fn(table)
	}
}

// Static returns a provider already holding table, with no fetcher behind
// it. Its status reports SourceStatic. Used by the CLI in offline mode.
func Static(table diaria.RateTable) *Provider {
	p := NewProvider(nil, WithDefaultFallback(false))
	p.install(table, Status{Source: SourceStatic, LoadedAt: time.Now().UTC()})
	return p
}
