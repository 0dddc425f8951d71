package crawl

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmbros/pricewatch/internal/chain"
	"github.com/mmbros/pricewatch/internal/fetcher"
	"github.com/mmbros/pricewatch/internal/fetcher/fundbatch"
	"github.com/mmbros/pricewatch/internal/numfmt"
	"github.com/mmbros/pricewatch/internal/obstore"
)

// BatchSource fetches the date-scoped batch of a market.
type BatchSource interface {
	Name() string
	Batch(ctx context.Context, day time.Time) (map[string]fundbatch.Record, error)
}

// BackfillStore is the part of the observation store the backfill needs.
type BackfillStore interface {
	Record(*obstore.Observation) error
	Has(code string, date time.Time) (bool, error)
}

// BackfillConfig holds the parameters of a backfill run.
type BackfillConfig struct {
	Instruments []fetcher.Instrument
	Locale      numfmt.Format
	Range       chain.Range
	Days        int
	Pacing      time.Duration
	Now         func() time.Time // nil means time.Now
}

// Backfill is a thin per-date loop over the batch source: for each of
// the last cfg.Days days it fetches the batch once and records the
// observations of the configured instruments, skipping dates already
// present in the store. A date with no batch data (weekend, holiday)
// is counted as degraded and the loop continues.
func Backfill(ctx context.Context, src BatchSource, store BackfillStore,
	cfg BackfillConfig, logger *slog.Logger) (*Summary, error) {

	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	start := now()
	summary := &Summary{}
	gate := NewGate(cfg.Pacing)

	end := now().UTC().Truncate(24 * time.Hour)
	day := end.AddDate(0, 0, -cfg.Days)

	for !day.After(end) {

		missing, err := missingInstruments(store, cfg.Instruments, day)
		if err != nil {
			return summary, err
		}
		if len(missing) == 0 {
			logger.Debug("backfill date already stored", "date", day.Format(obstore.DateFormat))
			day = day.AddDate(0, 0, 1)
			continue
		}

		if err := gate.Wait(ctx); err != nil {
			return summary, err
		}

		batch, err := src.Batch(ctx, day)
		if err != nil {
			logger.Warn("backfill batch failed",
				"date", day.Format(obstore.DateFormat), "err", err)
			summary.Degraded++
			day = day.AddDate(0, 0, 1)
			continue
		}

		recorded := 0
		for _, inst := range missing {
			rec, ok := batch[inst.Code]
			if !ok {
				continue
			}

			value, err := numfmt.Parse(rec.Price, cfg.Locale)
			if err != nil {
				logger.Warn("backfill value unparsable",
					"instrument", inst.Code, "raw", rec.Price, "err", err)
				continue
			}
			if !value.IsPositive() || !cfg.Range.Contains(value) {
				logger.Warn("backfill value out of range",
					"instrument", inst.Code, "value", value.String(), "range", cfg.Range.String())
				continue
			}

			obs := &obstore.Observation{
				Code:       inst.Code,
				Market:     inst.Market,
				Currency:   inst.Currency,
				Value:      value,
				Date:       day,
				ObservedAt: now(),
				Source:     src.Name(),
			}
			if err := store.Record(obs); err != nil {
				return summary, err
			}
			recorded++
		}

		if recorded > 0 {
			logger.Info("backfill date recorded",
				"date", day.Format(obstore.DateFormat), "instruments", recorded)
			summary.Succeeded++
		} else {
			logger.Debug("backfill date empty", "date", day.Format(obstore.DateFormat))
			summary.Degraded++
		}

		day = day.AddDate(0, 0, 1)
	}

	summary.Elapsed = now().Sub(start)
	return summary, ctx.Err()
}

func missingInstruments(store BackfillStore, insts []fetcher.Instrument, day time.Time) ([]fetcher.Instrument, error) {
	var missing []fetcher.Instrument
	for _, inst := range insts {
		ok, err := store.Has(inst.Code, day)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, inst)
		}
	}
	return missing, nil
}
