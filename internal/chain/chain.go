// Package chain resolves the price of an instrument by trying an
// ordered list of source strategies until one yields a value that
// passes validation.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmbros/pricewatch/internal/fetcher"
	"github.com/mmbros/pricewatch/internal/numfmt"
	"github.com/mmbros/pricewatch/internal/obstore"
)

const defaultTimeout = 10 * time.Second

// errOutOfRange is the cause of an OutOfRange strategy error.
var errOutOfRange = errors.New("value outside the plausible range")

// Step is one strategy of the chain, with the numeric format of the
// text it extracts.
type Step struct {
	Strategy fetcher.Strategy
	Locale   numfmt.Format
}

// Range is the plausible open interval of an instrument class.
// A value outside it is rejected as if the strategy had failed: it
// guards against mis-selected page nodes returning unrelated numbers.
// A zero Max means unbounded above; the zero Range accepts any value.
type Range struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// IsZero reports whether the range is unset.
func (r Range) IsZero() bool {
	return r.Min.IsZero() && r.Max.IsZero()
}

// Contains reports whether v lies inside the open interval.
func (r Range) Contains(v decimal.Decimal) bool {
	if !v.GreaterThan(r.Min) {
		return r.IsZero()
	}
	return r.Max.IsZero() || v.LessThan(r.Max)
}

func (r Range) String() string {
	if !r.IsZero() && r.Max.IsZero() {
		return fmt.Sprintf("(%s, +inf)", r.Min)
	}
	return fmt.Sprintf("(%s, %s)", r.Min, r.Max)
}

// LatestSource is the part of the observation store the chain needs
// to build a degraded result.
type LatestSource interface {
	Latest(code string) (*obstore.Observation, error)
}

// Result is the outcome of a resolution: a validated value attributed
// to the winning strategy, or a degraded state carrying the last known
// observation and the error of the last attempt.
type Result struct {
	// set on success
	Value  decimal.Decimal
	Source string

	// set on degraded resolution
	LastKnown *obstore.Observation
	Err       error
}

// Success reports whether the resolution yielded a live value.
func (r *Result) Success() bool {
	return r.Err == nil
}

// Chain is the ordered list of strategies of an instrument.
type Chain struct {
	steps   []Step
	rng     Range
	timeout time.Duration
	store   LatestSource
	logger  *slog.Logger
}

// New creates a chain.
// A nil store means no last-known lookup on degraded resolutions.
func New(steps []Step, rng Range, timeout time.Duration, store LatestSource, logger *slog.Logger) *Chain {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		steps:   steps,
		rng:     rng,
		timeout: timeout,
		store:   store,
		logger:  logger,
	}
}

// Resolve tries each strategy in priority order and returns the first
// normalized value inside the plausible range, attributed to the
// strategy that produced it.
//
// Every strategy error is recovered locally by advancing to the next
// strategy; only exhaustion of the chain surfaces, as a degraded
// result with whatever the store holds for the instrument.
func (c *Chain) Resolve(ctx context.Context, inst fetcher.Instrument) *Result {

	var lastErr error

	for _, step := range c.steps {
		value, err := c.attempt(ctx, step, inst)
		if err != nil {
			c.logger.Debug("strategy failed",
				"instrument", inst.Code,
				"strategy", step.Strategy.Name(),
				"kind", fetcher.KindOf(err).String(),
				"err", err)
			lastErr = err
			continue
		}
		return &Result{Value: value, Source: step.Strategy.Name()}
	}

	if lastErr == nil {
		lastErr = errors.New("no strategy configured")
	}

	var lastKnown *obstore.Observation
	if c.store != nil {
		obs, err := c.store.Latest(inst.Code)
		if err != nil {
			c.logger.Warn("last known lookup failed", "instrument", inst.Code, "err", err)
		} else {
			lastKnown = obs
		}
	}

	return &Result{LastKnown: lastKnown, Err: lastErr}
}

// attempt runs one strategy bounded by the chain timeout, normalizes
// the extracted text and validates the range.
func (c *Chain) attempt(ctx context.Context, step Step, inst fetcher.Instrument) (decimal.Decimal, error) {

	sctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := step.Strategy.Fetch(sctx, inst)
	if err != nil {
		return decimal.Zero, err
	}

	value, err := numfmt.Parse(raw.Text, step.Locale)
	if err != nil {
		return decimal.Zero, err
	}

	if !value.IsPositive() || !c.rng.Contains(value) {
		return decimal.Zero, fetcher.NewError(fetcher.OutOfRange,
			step.Strategy.Name(), inst.Code, raw.URL,
			fmt.Errorf("%w %s: %s", errOutOfRange, c.rng, value))
	}

	return value, nil
}
