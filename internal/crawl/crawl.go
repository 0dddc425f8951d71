// Package crawl orchestrates a crawl run: it iterates the configured
// instruments, resolves each one through its strategy chain, records
// the successful observations and renders the snapshot pages.
package crawl

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mmbros/pricewatch/internal/chain"
	"github.com/mmbros/pricewatch/internal/fetcher"
	"github.com/mmbros/pricewatch/internal/obstore"
	"github.com/mmbros/pricewatch/internal/snapshot"
)

// Resolver resolves the price of one instrument.
type Resolver interface {
	Resolve(ctx context.Context, inst fetcher.Instrument) *chain.Result
}

// Target couples an instrument with its strategy chain.
type Target struct {
	Instrument fetcher.Instrument
	Chain      Resolver
}

// Recorder is the part of the observation store the orchestrator needs.
type Recorder interface {
	Record(*obstore.Observation) error
}

// Summary aggregates the outcome counts of a run.
type Summary struct {
	Succeeded int
	Degraded  int
	Elapsed   time.Duration
}

// Orchestrator runs the crawl over the configured targets.
type Orchestrator struct {
	targets  []Target
	store    Recorder
	renderer snapshot.Renderer
	gate     *Gate
	workers  int
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an orchestrator.
// workers below 2 selects the sequential flow; with more workers the
// targets are spread over a pool sharing the same pacing gate.
func New(targets []Target, store Recorder, renderer snapshot.Renderer,
	pacing time.Duration, workers int, logger *slog.Logger) *Orchestrator {

	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		targets:  targets,
		store:    store,
		renderer: renderer,
		gate:     NewGate(pacing),
		workers:  workers,
		logger:   logger,
		now:      time.Now,
	}
}

// Run processes every target and returns the run summary.
// A degraded resolution is never fatal: it is rendered and counted,
// and the run continues with the next instrument.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	start := o.now()
	summary := &Summary{}

	if o.workers == 1 {
		for _, t := range o.targets {
			if err := o.gate.Wait(ctx); err != nil {
				return summary, err
			}
			o.processTarget(ctx, t, summary, nil)
		}
		summary.Elapsed = o.now().Sub(start)
		return summary, ctx.Err()
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	targetc := make(chan Target)

	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range targetc {
				if err := o.gate.Wait(ctx); err != nil {
					return
				}
				o.processTarget(ctx, t, summary, &mu)
			}
		}()
	}

	for _, t := range o.targets {
		select {
		case targetc <- t:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(targetc)
	wg.Wait()

	summary.Elapsed = o.now().Sub(start)
	return summary, ctx.Err()
}

// processTarget resolves one instrument and records/renders the outcome.
func (o *Orchestrator) processTarget(ctx context.Context, t Target, summary *Summary, mu *sync.Mutex) {
	inst := t.Instrument

	res := t.Chain.Resolve(ctx, inst)

	if res.Success() {
		now := o.now()
		obs := &obstore.Observation{
			Code:       inst.Code,
			Market:     inst.Market,
			Currency:   inst.Currency,
			Value:      res.Value,
			Date:       now.UTC().Truncate(24 * time.Hour),
			ObservedAt: now,
			Source:     res.Source,
		}

		if err := o.store.Record(obs); err != nil {
			o.logger.Error("record failed", "instrument", inst.Code, "err", err)
		}
		if err := o.renderer.RenderFresh(obs); err != nil {
			o.logger.Error("render failed", "instrument", inst.Code, "err", err)
		}

		o.logger.Info("price resolved",
			"instrument", inst.Code,
			"market", inst.Market,
			"value", res.Value.String(),
			"source", res.Source)

		count(summary, mu, func(s *Summary) { s.Succeeded++ })
		return
	}

	// degraded: render only, never record. Recording here would
	// pollute the history with a stale duplicate.
	if err := o.renderer.RenderDegraded(inst, res.LastKnown, res.Err); err != nil {
		o.logger.Error("degraded render failed", "instrument", inst.Code, "err", err)
	}

	o.logger.Warn("price resolution degraded",
		"instrument", inst.Code,
		"market", inst.Market,
		"lastKnown", res.LastKnown != nil,
		"err", res.Err)

	count(summary, mu, func(s *Summary) { s.Degraded++ })
}

func count(s *Summary, mu *sync.Mutex, fn func(*Summary)) {
	if mu != nil {
		mu.Lock()
		defer mu.Unlock()
	}
	fn(s)
}
