package monitor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"fundingwatch/internal/dedup"
	"fundingwatch/internal/metrics"
	"fundingwatch/internal/model"
	"fundingwatch/internal/notifier"
	"fundingwatch/internal/pipeline"
	"fundingwatch/internal/processor"
	"fundingwatch/logger"
)

// Runner produces the ranked result of one cycle.
type Runner interface {
	Run(ctx context.Context) (pipeline.Result, error)
}

// Report describes a completed check.
type Report struct {
	RunID          string                  `json:"run_id"`
	Now            time.Time               `json:"now"`
	FinishedAt     time.Time               `json:"finished_at"`
	Exchanges      []pipeline.ExchangeStat `json:"exchanges"`
	Upcoming       int                     `json:"upcoming"`
	Suppressed     int                     `json:"suppressed"`
	Messages       []string                `json:"messages"`
	Delivered      int                     `json:"delivered"`
	DeliveryErrors []string                `json:"delivery_errors,omitempty"`
}

// Monitor runs a cycle, drops already alerted settlements and delivers the
// digests in order.
type Monitor struct {
	runner   Runner
	notifier notifier.Notifier
	store    dedup.Store
	ttl      time.Duration
	log      *logger.Log

	mu   sync.RWMutex
	last *Report
}

type Option func(*Monitor)

// WithDedup suppresses settlements delivered within ttl.
func WithDedup(store dedup.Store, ttl time.Duration) Option {
	return func(m *Monitor) {
		m.store = store
		m.ttl = ttl
	}
}

func New(runner Runner, n notifier.Notifier, opts ...Option) *Monitor {
	m := &Monitor{
		runner:   runner,
		notifier: n,
		log:      logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check runs one full cycle. Delivery failures are recorded in the report;
// the returned error is reserved for failures of the cycle itself.
func (m *Monitor) Check(ctx context.Context) (rep Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.log.WithComponent("monitor").WithFields(logger.Fields{"stack": string(debug.Stack())}).Error("funding check panicked")
			rep = Report{}
			err = fmt.Errorf("funding check panicked: %v", r)
		}
	}()

	res, err := m.runner.Run(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("run cycle: %w", err)
	}

	log := m.log.WithComponent("monitor").WithFields(logger.Fields{"run_id": res.RunID})

	rep = Report{
		RunID:     res.RunID,
		Now:       res.Now,
		Exchanges: res.Exchanges,
		Upcoming:  len(res.Upcoming),
		Messages:  []string{},
	}

	groups := res.Groups
	if m.store != nil {
		groups, rep.Suppressed = m.suppress(ctx, log, groups)
	}

	for _, g := range groups {
		msg := processor.Format(g, res.Window)
		if msg == "" {
			continue
		}
		rep.Messages = append(rep.Messages, msg)
		metrics.RecordDigest(string(g.Exchange))

		if err := m.notifier.Deliver(ctx, msg); err != nil {
			rep.DeliveryErrors = append(rep.DeliveryErrors, err.Error())
			metrics.RecordDelivery(m.log, m.notifier.Name(), false)
			log.WithFields(logger.Fields{"exchange": string(g.Exchange)}).WithError(err).Warn("digest delivery failed")
			continue
		}
		rep.Delivered++
		metrics.RecordDelivery(m.log, m.notifier.Name(), true)

		if m.store != nil {
			if err := m.store.Mark(ctx, keys(g.Records()), m.ttl); err != nil {
				log.WithError(err).Warn("failed to record delivered settlements")
			}
		}
	}

	rep.FinishedAt = time.Now().UTC()
	metrics.RecordCycle(m.log, rep.Upcoming, len(rep.Messages))
	log.WithFields(logger.Fields{
		"digests":    len(rep.Messages),
		"delivered":  rep.Delivered,
		"suppressed": rep.Suppressed,
		"failures":   len(rep.DeliveryErrors),
	}).Info("funding check done")

	m.mu.Lock()
	stored := rep
	m.last = &stored
	m.mu.Unlock()

	return rep, nil
}

// suppress removes settlements that were already delivered. A store error
// leaves the groups untouched.
func (m *Monitor) suppress(ctx context.Context, log *logger.Entry, groups []processor.Group) ([]processor.Group, int) {
	var all []model.FundingRecord
	for _, g := range groups {
		all = append(all, g.Records()...)
	}
	if len(all) == 0 {
		return groups, 0
	}

	seen, err := m.store.Seen(ctx, keys(all))
	if err != nil {
		log.WithError(err).Warn("alert suppression unavailable, sending all digests")
		return groups, 0
	}

	suppressed := 0
	for _, r := range all {
		if seen[r.Key()] {
			suppressed++
		}
	}

	out := make([]processor.Group, 0, len(groups))
	for _, g := range groups {
		g = g.Without(func(r model.FundingRecord) bool { return seen[r.Key()] })
		if !g.Empty() {
			out = append(out, g)
		}
	}
	return out, suppressed
}

// Last returns the most recent successful report.
func (m *Monitor) Last() (Report, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return Report{}, false
	}
	return *m.last, true
}

func keys(records []model.FundingRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Key()
	}
	return out
}
