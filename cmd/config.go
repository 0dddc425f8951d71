package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/mmbros/pricewatch/internal/chain"
	"github.com/mmbros/pricewatch/internal/fetcher"
	"github.com/mmbros/pricewatch/internal/fetcher/chartapi"
	"github.com/mmbros/pricewatch/internal/fetcher/fundbatch"
	"github.com/mmbros/pricewatch/internal/fetcher/fundpage"
	"github.com/mmbros/pricewatch/internal/numfmt"
)

// strategy kinds a source can declare in the config file
const (
	kindStructuredAPI  = "structured-api"
	kindBulkBatch      = "bulk-batch"
	kindSelectorScrape = "selector-scrape"
)

func strategyKinds() []string {
	return []string{kindBulkBatch, kindSelectorScrape, kindStructuredAPI}
}

type classItem struct {
	Min float64 `json:"min,omitempty" yaml:"min" toml:"min"`
	Max float64 `json:"max,omitempty" yaml:"max" toml:"max"`
}

type sourceItem struct {
	Source  string `json:"source,omitempty" yaml:"source" toml:"source"`
	Kind    string `json:"kind,omitempty" yaml:"kind" toml:"kind"`
	URL     string `json:"url,omitempty" yaml:"url" toml:"url"`
	DataURL string `json:"data_url,omitempty" yaml:"data_url" toml:"data_url"`
	Label   string `json:"label,omitempty" yaml:"label" toml:"label"`
	Locale  string `json:"locale,omitempty" yaml:"locale" toml:"locale"`

	locale numfmt.Format
}

type marketItem struct {
	Market   string   `json:"market,omitempty" yaml:"market" toml:"market"`
	Currency string   `json:"currency,omitempty" yaml:"currency" toml:"currency"`
	Locale   string   `json:"locale,omitempty" yaml:"locale" toml:"locale"`
	Chain    []string `json:"chain,omitempty" yaml:"chain" toml:"chain"`

	locale numfmt.Format
}

type instrumentItem struct {
	Code     string `json:"code,omitempty" yaml:"code" toml:"code"`
	Market   string `json:"market,omitempty" yaml:"market" toml:"market"`
	Class    string `json:"class,omitempty" yaml:"class" toml:"class"`
	Disabled bool   `json:"disabled,omitempty" yaml:"disabled" toml:"disabled"`
}

// Config is the application configuration: where to persist and render,
// how to pace the crawl, and the markets/instruments/chains to resolve.
type Config struct {
	Database string `json:"database,omitempty" yaml:"database" toml:"database"`
	Output   string `json:"output,omitempty" yaml:"output" toml:"output"`
	Proxy    string `json:"proxy,omitempty" yaml:"proxy" toml:"proxy"`
	Workers  int    `json:"workers,omitempty" yaml:"workers" toml:"workers"`
	Pacing   string `json:"pacing,omitempty" yaml:"pacing" toml:"pacing"`
	Timeout  string `json:"timeout,omitempty" yaml:"timeout" toml:"timeout"`

	Classes     map[string]*classItem `json:"classes,omitempty" yaml:"classes" toml:"classes"`
	Sources     []*sourceItem         `json:"sources,omitempty" yaml:"sources" toml:"sources"`
	Markets     []*marketItem         `json:"markets,omitempty" yaml:"markets" toml:"markets"`
	Instruments []*instrumentItem     `json:"instruments,omitempty" yaml:"instruments" toml:"instruments"`

	pacing  time.Duration
	timeout time.Duration
	ranges  map[string]chain.Range
}

// String returns a json string representation of the Config.
func (cfg *Config) String() string {
	return jsonString(cfg)
}

// jsonString returns a json string representation of the object.
func jsonString(obj interface{}) string {
	j, _ := json.MarshalIndent(obj, "", "  ")
	return string(j)
}

// defaultConfig returns the built-in configuration, used when no config
// file is given. It covers the Turkish fund market with the batch
// endpoint first and the per-fund page as fallback, plus a US equity
// market on the chart endpoint.
func defaultConfig() *Config {
	return &Config{
		Database: "pricewatch.sqlite3",
		Output:   "data",
		Workers:  1,
		Pacing:   "2s",
		Timeout:  "10s",
		Classes: map[string]*classItem{
			"fund":   {Min: 0.001, Max: 10000},
			"equity": {Min: 0.01, Max: 100000},
		},
		Sources: []*sourceItem{
			{Source: "fund-batch", Kind: kindBulkBatch},
			{Source: "fund-page", Kind: kindSelectorScrape},
			{Source: "chart-api", Kind: kindStructuredAPI},
		},
		Markets: []*marketItem{
			{
				Market:   "tr-tefas",
				Currency: "₺",
				Locale:   "decimal-comma",
				Chain:    []string{"fund-batch", "fund-page"},
			},
			{
				Market:   "us",
				Currency: "$",
				Locale:   "decimal-dot",
				Chain:    []string{"chart-api"},
			},
		},
		Instruments: []*instrumentItem{
			{Code: "TI2", Market: "tr-tefas", Class: "fund"},
			{Code: "NLE", Market: "tr-tefas", Class: "fund"},
			{Code: "PPB", Market: "tr-tefas", Class: "fund"},
			{Code: "IOG", Market: "tr-tefas", Class: "fund"},
			{Code: "TI1", Market: "tr-tefas", Class: "fund"},
			{Code: "BDS", Market: "tr-tefas", Class: "fund"},
			{Code: "IML", Market: "tr-tefas", Class: "fund"},
		},
	}
}

// unmarshalConfig decodes the config data. The format is selected by
// the file extension, or by typ when the file has none.
func unmarshalConfig(data []byte, path, typ string) (*Config, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		format = strings.ToLower(typ)
	}

	cfg := &Config{}
	switch format {
	case "yaml", "yml", "":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	case "toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}
	return cfg, nil
}

// applyDefaults fills the zero fields of the config with the built-in
// defaults. A section given in the file replaces the default section
// entirely; a section left out keeps the defaults.
func (cfg *Config) applyDefaults() {
	def := defaultConfig()

	if cfg.Database == "" {
		cfg.Database = def.Database
	}
	if cfg.Output == "" {
		cfg.Output = def.Output
	}
	if cfg.Workers == 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Pacing == "" {
		cfg.Pacing = def.Pacing
	}
	if cfg.Timeout == "" {
		cfg.Timeout = def.Timeout
	}
	if len(cfg.Classes) == 0 {
		cfg.Classes = def.Classes
	}
	if len(cfg.Sources) == 0 {
		cfg.Sources = def.Sources
	}
	if len(cfg.Markets) == 0 {
		cfg.Markets = def.Markets
	}
	if len(cfg.Instruments) == 0 {
		cfg.Instruments = def.Instruments
	}
}

// mergeArgs updates the config values with the passed arguments.
func (cfg *Config) mergeArgs(args *appArgs) error {

	if args.database.Passed {
		cfg.Database = args.database.Value
	}
	if args.output.Passed {
		cfg.Output = args.output.Value
	}
	if args.proxy.Passed {
		cfg.Proxy = args.proxy.Value
	}
	if args.workers.Passed {
		if args.workers.Value <= 0 {
			return fmt.Errorf("workers must be greater than zero (found %d)", args.workers.Value)
		}
		cfg.Workers = args.workers.Value
	}

	// tickers: if passed, only the listed instruments are resolved,
	// even the ones disabled in the config file.
	if len(args.tickers) > 0 {
		byCode := map[string]*instrumentItem{}
		for _, inst := range cfg.Instruments {
			inst.Disabled = true
			byCode[inst.Code] = inst
		}
		for _, code := range args.tickers {
			inst, ok := byCode[code]
			if !ok {
				return fmt.Errorf("unknown ticker %q", code)
			}
			inst.Disabled = false
		}
	}

	return nil
}

// check validates the config and resolves the derived fields.
func (cfg *Config) check() error {

	var err error
	if cfg.pacing, err = time.ParseDuration(cfg.Pacing); err != nil {
		return fmt.Errorf("invalid pacing: %v", err)
	}
	if cfg.timeout, err = time.ParseDuration(cfg.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %v", err)
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("workers must be greater than zero (found %d)", cfg.Workers)
	}
	if cfg.Proxy != "" {
		if _, err := url.Parse(cfg.Proxy); err != nil {
			return fmt.Errorf("invalid proxy: %s", cfg.Proxy)
		}
	}

	cfg.ranges = map[string]chain.Range{}
	for name, c := range cfg.Classes {
		if c.Min < 0 || (c.Max != 0 && c.Max <= c.Min) {
			return fmt.Errorf("class %q: invalid range (%v, %v)", name, c.Min, c.Max)
		}
		cfg.ranges[name] = chain.Range{
			Min: decimal.NewFromFloat(c.Min),
			Max: decimal.NewFromFloat(c.Max),
		}
	}

	sources := map[string]*sourceItem{}
	for _, s := range cfg.Sources {
		if s.Source == "" {
			return fmt.Errorf("invalid sources: missing \"source\" key")
		}
		switch s.Kind {
		case kindStructuredAPI, kindBulkBatch, kindSelectorScrape:
		default:
			return fmt.Errorf("source %q: unknown kind %q", s.Source, s.Kind)
		}
		if s.Locale != "" {
			if s.locale, err = numfmt.ParseFormat(s.Locale); err != nil {
				return fmt.Errorf("source %q: %v", s.Source, err)
			}
		}
		sources[s.Source] = s
	}

	markets := map[string]*marketItem{}
	for _, m := range cfg.Markets {
		if m.Market == "" {
			return fmt.Errorf("invalid markets: missing \"market\" key")
		}
		if len(m.Chain) == 0 {
			return fmt.Errorf("market %q: empty chain", m.Market)
		}
		for _, s := range m.Chain {
			if _, ok := sources[s]; !ok {
				return fmt.Errorf("market %q: unknown source %q", m.Market, s)
			}
		}
		if m.locale, err = numfmt.ParseFormat(m.Locale); err != nil {
			return fmt.Errorf("market %q: %v", m.Market, err)
		}
		markets[m.Market] = m
	}

	for _, inst := range cfg.Instruments {
		if inst.Code == "" {
			return fmt.Errorf("invalid instruments: missing \"code\" key")
		}
		if _, ok := markets[inst.Market]; !ok {
			return fmt.Errorf("instrument %q: unknown market %q", inst.Code, inst.Market)
		}
		if inst.Class != "" {
			if _, ok := cfg.ranges[inst.Class]; !ok {
				return fmt.Errorf("instrument %q: unknown class %q", inst.Code, inst.Class)
			}
		}
	}

	return nil
}

// getConfig builds the validated configuration from the optional config
// file merged with the command line arguments.
func getConfig(args *appArgs) (*Config, error) {

	cfg := defaultConfig()

	if args.config.Passed {
		data, err := os.ReadFile(args.config.Value)
		if err != nil {
			return nil, err
		}
		cfg, err = unmarshalConfig(data, args.config.Value, args.configType.Value)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %v", err)
		}
		cfg.applyDefaults()
	}

	if err := cfg.mergeArgs(args); err != nil {
		return nil, err
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildStrategy creates the fetch strategy declared by a source item.
func buildStrategy(item *sourceItem, client *http.Client) (fetcher.Strategy, error) {
	switch item.Kind {
	case kindStructuredAPI:
		return chartapi.New(item.Source, item.URL, client), nil
	case kindBulkBatch:
		return fundbatch.New(item.Source,
			fundbatch.Config{PageURL: item.URL, DataURL: item.DataURL}, client), nil
	case kindSelectorScrape:
		return fundpage.New(item.Source, item.URL, item.Label, client), nil
	}
	return nil, fmt.Errorf("source %q: unknown kind %q", item.Source, item.Kind)
}

// buildStrategies creates one strategy per configured source, indexed
// by source name. Strategies are shared by all the chains referencing
// them.
func (cfg *Config) buildStrategies(client *http.Client) (map[string]fetcher.Strategy, error) {
	strategies := map[string]fetcher.Strategy{}
	for _, item := range cfg.Sources {
		s, err := buildStrategy(item, client)
		if err != nil {
			return nil, err
		}
		strategies[item.Source] = s
	}
	return strategies, nil
}

// enabledInstruments returns the instruments of the run, grouped by market.
func (cfg *Config) enabledInstruments() map[string][]fetcher.Instrument {
	byMarket := map[string][]fetcher.Instrument{}
	for _, item := range cfg.Instruments {
		if item.Disabled {
			continue
		}
		m := cfg.market(item.Market)
		byMarket[item.Market] = append(byMarket[item.Market], fetcher.Instrument{
			Code:     item.Code,
			Market:   item.Market,
			Currency: m.Currency,
			Class:    item.Class,
		})
	}
	return byMarket
}

func (cfg *Config) market(name string) *marketItem {
	for _, m := range cfg.Markets {
		if m.Market == name {
			return m
		}
	}
	return nil
}

func (cfg *Config) source(name string) *sourceItem {
	for _, s := range cfg.Sources {
		if s.Source == name {
			return s
		}
	}
	return nil
}

// classRange returns the plausible range of an instrument class.
// An empty class yields the zero range, which accepts any value.
func (cfg *Config) classRange(class string) chain.Range {
	return cfg.ranges[class]
}

// stepLocale returns the numeric format of the text a source emits.
// The api kinds return machine-formatted numbers whatever the market
// locale; a scraped page carries the locale of the market. An explicit
// source locale overrides both.
func stepLocale(item *sourceItem, m *marketItem) numfmt.Format {
	if item.Locale != "" {
		return item.locale
	}
	if item.Kind == kindSelectorScrape {
		return m.locale
	}
	return numfmt.DecimalDot
}
