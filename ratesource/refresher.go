/*
refresher.go - Periodic rate-table reload

PURPOSE:
  Decrees change rarely but without warning. A long-running server reloads
  the table in the background so it never serves a stale one for long.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - First reload one interval after Start; the caller loads synchronously
    before starting it
  - Each run is bounded by the fetcher's own retry budget
  - Errors are logged; the provider keeps its previous table

USAGE:
  r := ratesource.NewRefresher(provider, 6*time.Hour)
  r.Start()
  // ... later
  r.Stop()

SEE ALSO:
  - provider.go: Load
  - api/handlers.go: ReloadRateTable (manual reload)
*/
package ratesource

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cadrimil/engine/internal/logging"
)

// Refresher reloads a Provider on a fixed interval.
type Refresher struct {
	Provider *Provider
	Interval time.Duration
	Enabled  bool

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	started time.Time
	lastRun time.Time
	log     *zap.Logger
}

// NewRefresher creates an enabled refresher. A non-positive interval
// disables it.
func NewRefresher(p *Provider, interval time.Duration) *Refresher {
	return &Refresher{
		Provider: p,
		Interval: interval,
		Enabled:  interval > 0,
		log:      logging.Named("refresher"),
	}
}

// Start begins the refresher.
func (r *Refresher) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.Enabled {
		r.log.Info("disabled, not starting")
		return
	}
	if r.ticker != nil {
		return
	}

	r.ticker = time.NewTicker(r.Interval)
	r.stop = make(chan struct{})
	r.started = time.Now()
	r.wg.Add(1)

	go r.run(r.ticker, r.stop)

	r.log.Info("started", zap.Duration("interval", r.Interval))
}

// Stop stops the refresher and waits for an in-flight load.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if r.ticker == nil {
		r.mu.Unlock()
		return
	}
	r.ticker.Stop()
	close(r.stop)
	r.ticker = nil
	r.mu.Unlock()

	// RunNow takes r.mu, so wait outside it.
	r.wg.Wait()
	r.log.Info("stopped")
}

func (r *Refresher) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer r.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	for {
		select {
		case <-ticker.C:
			r.RunNow(ctx)
		case <-stop:
			return
		}
	}
}

// RunNow performs one reload.
func (r *Refresher) RunNow(ctx context.Context) {
	err := r.Provider.Load(ctx)

	r.mu.Lock()
	r.lastRun = time.Now()
	r.mu.Unlock()

	st := r.Provider.Status()
	if err != nil {
		r.log.Warn("rate table reload failed",
			zap.String("serving", string(st.Source)),
			zap.Error(err),
		)
		return
	}
	r.log.Debug("rate table reloaded", zap.String("source", string(st.Source)))
}

// NextRunTime returns when the next scheduled reload will occur.
func (r *Refresher) NextRunTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case !r.lastRun.IsZero():
		return r.lastRun.Add(r.Interval)
	case !r.started.IsZero():
		return r.started.Add(r.Interval)
	default:
		return time.Now()
	}
}
