// Package poller implements the fixed-interval market data refresh. Each tick
// it snapshots which tickers every holder has open, fetches quotes per holder,
// and publishes one price update event to each holder's channel. Holders are
// processed independently: one holder's provider failure never affects the
// others.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wealthwatch/portfolio-service/internal/models"
)

// Registry supplies the holder → open tickers mapping read at each tick.
type Registry interface {
	SnapshotOpenTickers() (map[int64][]string, error)
}

// QuoteFetcher is the market data provider boundary.
type QuoteFetcher interface {
	GetQuotes(ctx context.Context, symbols []string) ([]models.Quote, error)
}

// Publisher delivers events to a holder's channel.
type Publisher interface {
	Publish(holderID int64, event models.Event)
}

// Recorder persists fetched quotes (snapshot cache, daily closes). Recording
// is an add-on to the publish path and its failures only log.
type Recorder interface {
	RecordQuotes(ctx context.Context, quotes []models.Quote) error
}

// Poller owns the polling loop and its dependencies. Construct with New and
// run with Run; there is no shared global state.
type Poller struct {
	registry Registry
	fetcher  QuoteFetcher
	pub      Publisher
	recorder Recorder
	logger   *zap.Logger

	interval     time.Duration
	fetchTimeout time.Duration
	workers      int
}

// Options tune the polling loop.
type Options struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	Workers      int
}

// New creates a poller. The recorder may be nil.
func New(registry Registry, fetcher QuoteFetcher, pub Publisher, recorder Recorder, logger *zap.Logger, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	return &Poller{
		registry:     registry,
		fetcher:      fetcher,
		pub:          pub,
		recorder:     recorder,
		logger:       logger,
		interval:     opts.Interval,
		fetchTimeout: opts.FetchTimeout,
		workers:      opts.Workers,
	}
}

// Run executes the polling loop until ctx is cancelled. It returns only after
// the in-flight tick, if any, has drained.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("price poller started",
		zap.Duration("interval", p.interval),
		zap.Int("workers", p.workers))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("price poller stopped")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// holderJob is one holder's unit of work within a tick.
type holderJob struct {
	holderID int64
	tickers  []string
}

// tick runs one polling cycle. A registry read failure skips the whole tick;
// per-holder fetch failures skip only that holder.
func (p *Poller) tick(ctx context.Context) {
	start := time.Now()

	snapshot, err := p.registry.SnapshotOpenTickers()
	if err != nil {
		p.logger.Warn("skipping tick: failed to snapshot open tickers", zap.Error(err))
		return
	}
	if len(snapshot) == 0 {
		return
	}

	jobs := make(chan holderJob, len(snapshot))
	for holderID, tickers := range snapshot {
		if len(tickers) == 0 {
			continue
		}
		jobs <- holderJob{holderID: holderID, tickers: tickers}
	}
	close(jobs)

	workers := p.workers
	if workers > len(snapshot) {
		workers = len(snapshot)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				p.refreshHolder(ctx, job)
			}
		}()
	}
	wg.Wait()

	p.logger.Debug("tick complete",
		zap.Int("holders", len(snapshot)),
		zap.Duration("elapsed", time.Since(start)))
}

// refreshHolder fetches one holder's quotes and publishes their price update.
func (p *Poller) refreshHolder(ctx context.Context, job holderJob) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	quotes, err := p.fetcher.GetQuotes(fetchCtx, job.tickers)
	if err != nil {
		p.logger.Warn("quote fetch failed, skipping holder for this tick",
			zap.Int64("holder_id", job.holderID),
			zap.Strings("tickers", job.tickers),
			zap.Error(err))
		return
	}

	// Keep only quotes this holder asked for; a misbehaving provider must not
	// leak symbols across holders.
	requested := make(map[string]bool, len(job.tickers))
	for _, t := range job.tickers {
		requested[t] = true
	}

	event := models.PriceUpdateEvent{}
	for _, q := range quotes {
		if !requested[q.Symbol] {
			continue
		}
		event.Updates = append(event.Updates, models.PriceUpdate{
			Symbol:             q.Symbol,
			CurrentPrice:       q.CurrentPrice,
			DailyChangePercent: q.DailyChangePercent,
		})
	}
	if len(event.Updates) == 0 {
		p.logger.Warn("provider returned no usable quotes",
			zap.Int64("holder_id", job.holderID),
			zap.Strings("tickers", job.tickers))
		return
	}

	p.pub.Publish(job.holderID, event)

	if p.recorder != nil {
		if err := p.recorder.RecordQuotes(ctx, quotes); err != nil {
			p.logger.Warn("failed to record quotes", zap.Error(err))
		}
	}
}
