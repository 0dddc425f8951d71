package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/mmbros/pricewatch/internal/chain"
	"github.com/mmbros/pricewatch/internal/crawl"
	"github.com/mmbros/pricewatch/internal/fetcher"
	"github.com/mmbros/pricewatch/internal/fetcher/fundbatch"
	"github.com/mmbros/pricewatch/internal/numfmt"
	"github.com/mmbros/pricewatch/internal/obstore"
)

// batchSource returns the first bulk-batch source of the market chain,
// or nil if the market has none.
func (cfg *Config) batchSource(m *marketItem) *sourceItem {
	for _, name := range m.Chain {
		if s := cfg.source(name); s != nil && s.Kind == kindBulkBatch {
			return s
		}
	}
	return nil
}

// uniformRange returns the shared class range of the instruments, or
// the zero range when the classes differ.
func (cfg *Config) uniformRange(insts []fetcher.Instrument) chain.Range {
	if len(insts) == 0 {
		return chain.Range{}
	}
	class := insts[0].Class
	for _, inst := range insts[1:] {
		if inst.Class != class {
			return chain.Range{}
		}
	}
	return cfg.classRange(class)
}

func execBackfill(args *appArgs, cfg *Config) error {

	days := defaultBackfillDays
	if args.days.Passed {
		if args.days.Value < 0 {
			return fmt.Errorf("days must not be negative (found %d)", args.days.Value)
		}
		days = args.days.Value
	}

	logger := newLogger(args.verbose.Value)

	store, err := obstore.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	client := fetcher.DefaultClient(cfg.Proxy)
	byMarket := cfg.enabledInstruments()

	filled := 0
	for _, m := range cfg.Markets {
		insts := byMarket[m.Market]
		item := cfg.batchSource(m)
		if item == nil || len(insts) == 0 {
			continue
		}
		filled++

		src := fundbatch.New(item.Source,
			fundbatch.Config{PageURL: item.URL, DataURL: item.DataURL}, client)

		bcfg := crawl.BackfillConfig{
			Instruments: insts,
			Locale:      numfmt.DecimalDot,
			Range:       cfg.uniformRange(insts),
			Days:        days,
			Pacing:      cfg.pacing,
		}

		summary, err := crawl.Backfill(context.Background(), src, store, bcfg, logger)
		if err != nil {
			return err
		}
		fmt.Printf("Market %s: %d dates filled, %d skipped or failed in %v\n",
			m.Market, summary.Succeeded, summary.Degraded,
			summary.Elapsed.Round(time.Millisecond))
	}

	if filled == 0 {
		return fmt.Errorf("no market with a %s source to backfill", kindBulkBatch)
	}
	return nil
}
