package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fundingwatch/internal/metrics"
	"fundingwatch/internal/model"
	"fundingwatch/internal/processor"
	"fundingwatch/internal/reader"
	"fundingwatch/logger"

	"github.com/google/uuid"
)

// Options tune the filtering and ranking stages.
type Options struct {
	Window    time.Duration
	TopN      int
	Watchlist []string
}

// ExchangeStat summarises one adapter call.
type ExchangeStat struct {
	Exchange model.Exchange `json:"exchange"`
	Records  int            `json:"records"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration_ns"`
}

// Result is everything one cycle produced before delivery.
type Result struct {
	RunID     string                `json:"run_id"`
	Now       time.Time             `json:"now"`
	Window    time.Duration         `json:"window_ns"`
	Exchanges []ExchangeStat        `json:"exchanges"`
	Upcoming  []model.FundingRecord `json:"-"`
	Groups    []processor.Group     `json:"-"`
}

// Messages renders the groups as digests.
func (r Result) Messages() []string {
	return processor.Messages(r.Groups, r.Window)
}

// Pipeline runs fetch, aggregate, filter and rank for one cycle.
type Pipeline struct {
	adapters []reader.Adapter
	opts     Options
	now      func() time.Time
	log      *logger.Log
}

func New(adapters []reader.Adapter, opts Options) *Pipeline {
	if opts.Window <= 0 {
		opts.Window = processor.DefaultWindow
	}
	if opts.TopN <= 0 {
		opts.TopN = processor.DefaultTopN
	}
	return &Pipeline{
		adapters: adapters,
		opts:     opts,
		now:      time.Now,
		log:      logger.GetLogger(),
	}
}

// WithClock replaces the source of the cycle instant.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Run executes one cycle. Adapter failures are isolated and reported in the
// result; an error is returned only when ctx ends before the cycle completes.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{
		RunID:  uuid.NewString(),
		Now:    p.now().UTC(),
		Window: p.opts.Window,
	}
	log := p.log.WithComponent("pipeline").WithFields(logger.Fields{"run_id": res.RunID})

	outcomes, stats := p.fetchAll(ctx, res.Now, res.RunID)
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("cycle %s interrupted: %w", res.RunID, err)
	}
	res.Exchanges = stats

	all := processor.Aggregate(outcomes)
	logger.LogDataFlowEntry(log, "aggregate", "window", len(all), "funding_record")

	windowed := processor.FilterWindow(all, res.Now, p.opts.Window)
	logger.LogDataFlowEntry(log, "window", "watchlist", len(windowed), "funding_record")

	upcoming := processor.FilterWatchlist(windowed, p.opts.Watchlist)
	logger.LogDataFlowEntry(log, "watchlist", "rank", len(upcoming), "funding_record")

	res.Upcoming = upcoming
	res.Groups = processor.Rank(upcoming, p.opts.TopN)

	log.WithFields(logger.Fields{
		"fetched":  len(all),
		"upcoming": len(upcoming),
		"groups":   len(res.Groups),
		"window":   p.opts.Window.String(),
	}).Info("funding cycle ranked")

	return res, nil
}

// fetchAll calls every adapter concurrently and joins before returning.
// Outcomes keep adapter order.
func (p *Pipeline) fetchAll(ctx context.Context, now time.Time, runID string) ([]processor.Outcome, []ExchangeStat) {
	outcomes := make([]processor.Outcome, len(p.adapters))
	stats := make([]ExchangeStat, len(p.adapters))

	var wg sync.WaitGroup
	for i, a := range p.adapters {
		wg.Add(1)
		go func(i int, a reader.Adapter) {
			defer wg.Done()

			start := time.Now()
			records, err := safeFetch(ctx, a, now)
			elapsed := time.Since(start)

			outcomes[i] = processor.Outcome{Exchange: a.Exchange(), Records: records, Err: err}
			stats[i] = ExchangeStat{Exchange: a.Exchange(), Records: len(records), Duration: elapsed}

			entry := p.log.WithComponent("pipeline").WithFields(logger.Fields{
				"run_id":   runID,
				"exchange": string(a.Exchange()),
				"duration": elapsed.String(),
			})
			if err != nil {
				stats[i].Records = 0
				stats[i].Error = err.Error()
				entry.WithError(err).Warn("exchange fetch failed")
			} else {
				entry.WithFields(logger.Fields{"records": len(records)}).Debug("exchange fetched")
			}
			metrics.RecordFetch(p.log, string(a.Exchange()), len(records), err)
		}(i, a)
	}
	wg.Wait()

	return outcomes, stats
}

func safeFetch(ctx context.Context, a reader.Adapter, now time.Time) (records []model.FundingRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = &model.FetchError{Exchange: a.Exchange(), Op: "fetch", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	records, err = a.Fetch(ctx, now)
	if err != nil {
		var fe *model.FetchError
		if !errors.As(err, &fe) {
			err = &model.FetchError{Exchange: a.Exchange(), Err: err}
		}
		return nil, err
	}
	return records, nil
}
