package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mmbros/pricewatch/internal/chain"
	"github.com/mmbros/pricewatch/internal/crawl"
	"github.com/mmbros/pricewatch/internal/fetcher"
	"github.com/mmbros/pricewatch/internal/obstore"
	"github.com/mmbros/pricewatch/internal/snapshot"
)

// newLogger builds the application logger. Engine components receive
// it explicitly; nothing reads the process-wide default.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// buildTargets turns the config into the crawl targets: one chain per
// instrument, with the market's strategy order and locale and the
// class plausible range.
func buildTargets(cfg *Config, store *obstore.Store, logger *slog.Logger) ([]crawl.Target, error) {

	client := fetcher.DefaultClient(cfg.Proxy)
	strategies, err := cfg.buildStrategies(client)
	if err != nil {
		return nil, err
	}

	byMarket := cfg.enabledInstruments()

	var targets []crawl.Target
	for _, m := range cfg.Markets {
		insts := byMarket[m.Market]
		if len(insts) == 0 {
			continue
		}

		steps := make([]chain.Step, 0, len(m.Chain))
		for _, name := range m.Chain {
			steps = append(steps, chain.Step{
				Strategy: strategies[name],
				Locale:   stepLocale(cfg.source(name), m),
			})
		}

		for _, inst := range insts {
			targets = append(targets, crawl.Target{
				Instrument: inst,
				Chain:      chain.New(steps, cfg.classRange(inst.Class), cfg.timeout, store, logger),
			})
		}
	}
	return targets, nil
}

func execGet(args *appArgs, cfg *Config) error {

	if args.dryrun.Value {
		if args.config.Passed {
			fmt.Printf("Using configuration file %q\n", args.config.Value)
		}
		fmt.Printf("Database: %q\n", cfg.Database)
		fmt.Printf("Output: %q\n", cfg.Output)
		fmt.Println("Config:", jsonString(cfg))
		return nil
	}

	logger := newLogger(args.verbose.Value)

	store, err := obstore.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	renderer, err := snapshot.NewSiteWriter(cfg.Output)
	if err != nil {
		return err
	}

	targets, err := buildTargets(cfg, store, logger)
	if err != nil {
		return err
	}

	o := crawl.New(targets, store, renderer, cfg.pacing, cfg.Workers, logger)
	summary, err := o.Run(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Done: %d resolved, %d degraded in %v\n",
		summary.Succeeded, summary.Degraded, summary.Elapsed.Round(time.Millisecond))
	return nil
}
