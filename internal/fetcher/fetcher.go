// Package fetcher defines the contract of a price source strategy:
// one way to obtain the raw price text of an instrument from one upstream.
package fetcher

import (
	"context"
)

// Instrument is a tradable entity (stock ticker or fund code) tracked
// by the engine. Immutable, defined by configuration.
type Instrument struct {
	Code     string
	Market   string
	Currency string
	Class    string
}

// Raw is the untyped text extracted by a strategy, with its provenance.
// It is consumed immediately by the number normalizer.
type Raw struct {
	Text   string
	Source string
	URL    string
}

// Strategy fetches the raw price text of an instrument from one upstream.
// Fetch is bounded by the deadline of the passed context: no strategy
// runs unbounded.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, inst Instrument) (*Raw, error)
}
