package crawl

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"

	"github.com/mmbros/pricewatch/internal/chain"
	"github.com/mmbros/pricewatch/internal/fetcher"
	"github.com/mmbros/pricewatch/internal/obstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubResolver returns a canned result.
type stubResolver struct {
	res *chain.Result
}

func (r *stubResolver) Resolve(ctx context.Context, inst fetcher.Instrument) *chain.Result {
	return r.res
}

// memRecorder collects the recorded observations.
type memRecorder struct {
	mu       sync.Mutex
	recorded []*obstore.Observation
}

func (m *memRecorder) Record(obs *obstore.Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded = append(m.recorded, obs)
	return nil
}

// memRenderer collects the rendered outcomes.
type memRenderer struct {
	mu       sync.Mutex
	fresh    []string
	degraded []string
}

func (m *memRenderer) RenderFresh(obs *obstore.Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fresh = append(m.fresh, obs.Code)
	return nil
}

func (m *memRenderer) RenderDegraded(inst fetcher.Instrument, last *obstore.Observation, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.degraded = append(m.degraded, inst.Code)
	return nil
}

func successResult(value, source string) *chain.Result {
	return &chain.Result{Value: decimal.RequireFromString(value), Source: source}
}

func degradedResult() *chain.Result {
	return &chain.Result{Err: fetcher.NewError(fetcher.Network, "s", "", "", errors.New("down"))}
}

func TestRunRecordsAndRenders(t *testing.T) {

	targets := []Target{
		{
			Instrument: fetcher.Instrument{Code: "TI2", Market: "tr-tefas", Currency: "₺"},
			Chain:      &stubResolver{res: successResult("12.50", "fund-batch")},
		},
		{
			Instrument: fetcher.Instrument{Code: "AFT", Market: "tr-tefas", Currency: "₺"},
			Chain:      &stubResolver{res: degradedResult()},
		},
		{
			Instrument: fetcher.Instrument{Code: "AAPL", Market: "us", Currency: "$"},
			Chain:      &stubResolver{res: successResult("182.63", "chart-api")},
		},
	}

	store := &memRecorder{}
	renderer := &memRenderer{}

	o := New(targets, store, renderer, 0, 1, discardLogger())
	summary, err := o.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if summary.Succeeded != 2 || summary.Degraded != 1 {
		t.Errorf("summary: got %d/%d, want 2 succeeded / 1 degraded",
			summary.Succeeded, summary.Degraded)
	}

	// degraded resolutions must never reach the store
	var recordedCodes []string
	for _, obs := range store.recorded {
		recordedCodes = append(recordedCodes, obs.Code)
	}
	opt := cmpopts.SortSlices(func(a, b string) bool { return a < b })
	if diff := cmp.Diff([]string{"AAPL", "TI2"}, recordedCodes, opt); diff != "" {
		t.Errorf("recorded codes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"AFT"}, renderer.degraded); diff != "" {
		t.Errorf("degraded renders mismatch (-want +got):\n%s", diff)
	}

	// provenance flows into the observation
	for _, obs := range store.recorded {
		if obs.Code == "TI2" && obs.Source != "fund-batch" {
			t.Errorf("TI2 source: got %q", obs.Source)
		}
	}
}

func TestRunWorkersPool(t *testing.T) {

	var targets []Target
	codes := []string{"A", "B", "C", "D", "E", "F"}
	for _, code := range codes {
		targets = append(targets, Target{
			Instrument: fetcher.Instrument{Code: code, Market: "us", Currency: "$"},
			Chain:      &stubResolver{res: successResult("10", "chart-api")},
		})
	}

	store := &memRecorder{}
	renderer := &memRenderer{}

	o := New(targets, store, renderer, 0, 3, discardLogger())
	summary, err := o.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if summary.Succeeded != len(codes) {
		t.Errorf("succeeded: got %d, want %d", summary.Succeeded, len(codes))
	}
	if len(store.recorded) != len(codes) {
		t.Errorf("recorded: got %d, want %d", len(store.recorded), len(codes))
	}
}

func TestRunCanceled(t *testing.T) {

	targets := []Target{
		{
			Instrument: fetcher.Instrument{Code: "A", Market: "us"},
			Chain:      &stubResolver{res: successResult("10", "s")},
		},
		{
			Instrument: fetcher.Instrument{Code: "B", Market: "us"},
			Chain:      &stubResolver{res: successResult("10", "s")},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := New(targets, &memRecorder{}, &memRenderer{}, time.Minute, 1, discardLogger())
	_, err := o.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
