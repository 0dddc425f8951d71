package cmd

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmbros/pricewatch/internal/numfmt"
)

var yamlConfig1 = `
database: test.sqlite3
workers: 3
pacing: 500ms
classes:
  fund:
    min: 0.1
    max: 100
sources:
  - source: fund-batch
    kind: bulk-batch
  - source: fund-page
    kind: selector-scrape
    url: https://example.org/fund?code=
    label: Last Price
markets:
  - market: tr-tefas
    currency: "₺"
    locale: decimal-comma
    chain: [fund-batch, fund-page]
instruments:
  - code: TI2
    market: tr-tefas
    class: fund
  - code: AFT
    market: tr-tefas
    class: fund
    disabled: true
`

var tomlConfig1 = `
database = "test.sqlite3"
pacing = "1s"

[classes.fund]
min = 0.1
max = 100

[[sources]]
source = "fund-batch"
kind = "bulk-batch"

[[markets]]
market = "tr-tefas"
currency = "₺"
locale = "decimal-comma"
chain = ["fund-batch"]

[[instruments]]
code = "TI2"
market = "tr-tefas"
class = "fund"
`

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.check())

	assert.Equal(t, 2*time.Second, cfg.pacing)
	assert.Equal(t, 10*time.Second, cfg.timeout)
	assert.Contains(t, cfg.ranges, "fund")
	assert.NotNil(t, cfg.market("tr-tefas"))
	assert.NotNil(t, cfg.source("fund-batch"))

	byMarket := cfg.enabledInstruments()
	assert.Len(t, byMarket["tr-tefas"], 7)
	assert.Equal(t, "₺", byMarket["tr-tefas"][0].Currency)
}

func TestUnmarshalConfigYAML(t *testing.T) {
	cfg, err := unmarshalConfig([]byte(yamlConfig1), "pricewatch.yaml", "")
	require.NoError(t, err)
	cfg.applyDefaults()
	require.NoError(t, cfg.check())

	assert.Equal(t, "test.sqlite3", cfg.Database)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 500*time.Millisecond, cfg.pacing)
	// defaults fill the fields the file leaves out
	assert.Equal(t, "data", cfg.Output)
	assert.Equal(t, 10*time.Second, cfg.timeout)

	m := cfg.market("tr-tefas")
	require.NotNil(t, m)
	assert.Equal(t, numfmt.DecimalComma, m.locale)
	assert.Equal(t, []string{"fund-batch", "fund-page"}, m.Chain)

	// disabled instruments are left out of the run
	byMarket := cfg.enabledInstruments()
	require.Len(t, byMarket["tr-tefas"], 1)
	assert.Equal(t, "TI2", byMarket["tr-tefas"][0].Code)
}

func TestUnmarshalConfigTOML(t *testing.T) {
	cfg, err := unmarshalConfig([]byte(tomlConfig1), "pricewatch.toml", "")
	require.NoError(t, err)
	cfg.applyDefaults()
	require.NoError(t, cfg.check())

	assert.Equal(t, "test.sqlite3", cfg.Database)
	assert.Equal(t, time.Second, cfg.pacing)
	require.NotNil(t, cfg.source("fund-batch"))
	assert.Equal(t, kindBulkBatch, cfg.source("fund-batch").Kind)
}

func TestUnmarshalConfigTypeFallback(t *testing.T) {
	_, err := unmarshalConfig([]byte(yamlConfig1), "config", "yaml")
	assert.NoError(t, err)

	_, err = unmarshalConfig([]byte(yamlConfig1), "config", "ini")
	assert.ErrorContains(t, err, "unsupported config format")
}

func TestConfigCheckErrors(t *testing.T) {
	testCases := []struct {
		title  string
		mutate func(*Config)
		errmsg string
	}{
		{
			title:  "invalid pacing",
			mutate: func(cfg *Config) { cfg.Pacing = "fast" },
			errmsg: "invalid pacing",
		},
		{
			title:  "invalid timeout",
			mutate: func(cfg *Config) { cfg.Timeout = "10" },
			errmsg: "invalid timeout",
		},
		{
			title:  "zero workers",
			mutate: func(cfg *Config) { cfg.Workers = -1 },
			errmsg: "workers must be greater than zero",
		},
		{
			title: "invalid class range",
			mutate: func(cfg *Config) {
				cfg.Classes["fund"] = &classItem{Min: 10, Max: 1}
			},
			errmsg: `class "fund": invalid range`,
		},
		{
			title: "unknown source kind",
			mutate: func(cfg *Config) {
				cfg.Sources[0].Kind = "soap"
			},
			errmsg: "unknown kind",
		},
		{
			title: "market with unknown source",
			mutate: func(cfg *Config) {
				cfg.Markets[0].Chain = []string{"nope"}
			},
			errmsg: `unknown source "nope"`,
		},
		{
			title: "market with empty chain",
			mutate: func(cfg *Config) {
				cfg.Markets[0].Chain = nil
			},
			errmsg: "empty chain",
		},
		{
			title: "market with unknown locale",
			mutate: func(cfg *Config) {
				cfg.Markets[0].Locale = "decimal-space"
			},
			errmsg: "unknown number format",
		},
		{
			title: "instrument with unknown market",
			mutate: func(cfg *Config) {
				cfg.Instruments[0].Market = "mars"
			},
			errmsg: `unknown market "mars"`,
		},
		{
			title: "instrument with unknown class",
			mutate: func(cfg *Config) {
				cfg.Instruments[0].Class = "crypto"
			},
			errmsg: `unknown class "crypto"`,
		},
	}

	for _, tc := range testCases {
		cfg := defaultConfig()
		tc.mutate(cfg)
		err := cfg.check()
		if assert.Error(t, err, tc.title) {
			assert.Contains(t, err.Error(), tc.errmsg, tc.title)
		}
	}
}

// A class with only a lower bound is valid and must behave as a
// half-open interval, not reject every value.
func TestMinOnlyClassRange(t *testing.T) {
	cfg := defaultConfig()
	cfg.Classes = map[string]*classItem{"fund": {Min: 0.1}}
	require.NoError(t, cfg.check())

	rng := cfg.classRange("fund")
	assert.True(t, rng.Contains(decimal.RequireFromString("12.5")))
	assert.True(t, rng.Contains(decimal.RequireFromString("15000")))
	assert.False(t, rng.Contains(decimal.RequireFromString("0.05")))
}

func TestMergeArgsTickers(t *testing.T) {
	cfg := defaultConfig()

	args := &appArgs{}
	args.tickers.Set("TI2,NLE")
	require.NoError(t, cfg.mergeArgs(args))
	require.NoError(t, cfg.check())

	byMarket := cfg.enabledInstruments()
	require.Len(t, byMarket["tr-tefas"], 2)

	// unknown ticker
	cfg = defaultConfig()
	args = &appArgs{}
	args.tickers.Set("XXX")
	err := cfg.mergeArgs(args)
	assert.ErrorContains(t, err, `unknown ticker "XXX"`)
}

func TestMergeArgsOverrides(t *testing.T) {
	cfg := defaultConfig()

	args := &appArgs{}
	args.database.Set("other.sqlite3")
	args.workers.Set("4")
	args.proxy.Set("socks5://127.0.0.1:9050")

	require.NoError(t, cfg.mergeArgs(args))
	assert.Equal(t, "other.sqlite3", cfg.Database)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "socks5://127.0.0.1:9050", cfg.Proxy)

	args = &appArgs{}
	args.workers.Set("0")
	assert.ErrorContains(t, cfg.mergeArgs(args), "workers must be greater than zero")
}

func TestStepLocale(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.check())

	m := cfg.market("tr-tefas")

	// api kinds emit machine numbers, scrapes follow the market
	assert.Equal(t, numfmt.DecimalDot, stepLocale(cfg.source("fund-batch"), m))
	assert.Equal(t, numfmt.DecimalComma, stepLocale(cfg.source("fund-page"), m))

	// explicit source locale wins
	src := cfg.source("fund-batch")
	src.Locale = "decimal-comma"
	src.locale = numfmt.DecimalComma
	assert.Equal(t, numfmt.DecimalComma, stepLocale(src, m))
}

func TestBuildStrategies(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.check())

	strategies, err := cfg.buildStrategies(nil)
	require.NoError(t, err)
	require.Len(t, strategies, 3)
	for name, s := range strategies {
		assert.Equal(t, name, s.Name())
	}
}
