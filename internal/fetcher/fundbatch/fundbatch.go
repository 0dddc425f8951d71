// Package fundbatch fetches a date-scoped batch of fund prices for a
// whole market in one request.
//
// The upstream requires a session handshake: a priming GET of the
// history page establishes the session cookies, then the data POST is
// issued with those cookies attached. Both requests must succeed or
// the whole attempt fails.
package fundbatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmbros/pricewatch/internal/fetcher"
)

const (
	defaultPageURL = "https://www.tefas.gov.tr/TarihselVeriler.aspx"
	defaultDataURL = "https://www.tefas.gov.tr/api/DB/BindHistoryInfo"

	// dateFormat is the date parameter format of the batch endpoint.
	dateFormat = "02.01.2006"
)

// Config holds the two endpoints of the batch source.
type Config struct {
	// PageURL is the session-establishing page (priming GET).
	PageURL string
	// DataURL is the batch data endpoint (form POST).
	DataURL string
}

// Getter gets fund prices from the batch endpoint of the market.
type Getter struct {
	name   string
	cfg    Config
	client *http.Client
	now    func() time.Time
}

// New creates a batch strategy. Empty config fields select the
// default endpoints.
func New(name string, cfg Config, client *http.Client) *Getter {
	if cfg.PageURL == "" {
		cfg.PageURL = defaultPageURL
	}
	if cfg.DataURL == "" {
		cfg.DataURL = defaultDataURL
	}
	if client == nil {
		client = fetcher.DefaultClient("")
	}
	return &Getter{name: name, cfg: cfg, client: client, now: time.Now}
}

// Name returns the name of the strategy.
func (g *Getter) Name() string {
	return g.name
}

// Record is one fund entry of a batch.
type Record struct {
	Code  string
	Name  string
	Price string // raw text, decimal-dot format
	Date  time.Time
}

// Fetch gets today's batch and extracts the instrument's entry.
// An instrument absent from a successful batch is a NotFound error,
// so the chain proceeds to the next strategy.
func (g *Getter) Fetch(ctx context.Context, inst fetcher.Instrument) (*fetcher.Raw, error) {
	batch, err := g.Batch(ctx, g.now())
	if err != nil {
		return nil, err
	}

	rec, ok := batch[inst.Code]
	if !ok {
		return nil, fetcher.NewError(fetcher.NotFound, g.name, inst.Code, g.cfg.DataURL, errFundNotInBatch)
	}

	return &fetcher.Raw{
		Text:   rec.Price,
		Source: g.name,
		URL:    g.cfg.DataURL,
	}, nil
}

// Batch fetches the batch of the given date and indexes it by fund code.
// An empty map is a valid result (weekend or holiday).
//
// Session state is scoped to this call: a fresh cookie jar is created
// every time, so cookies never leak across instruments or workers.
func (g *Getter) Batch(ctx context.Context, day time.Time) (map[string]Record, error) {

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fetcher.NewError(fetcher.Network, g.name, "", g.cfg.PageURL, err)
	}
	client := &http.Client{
		Transport:     g.client.Transport,
		CheckRedirect: g.client.CheckRedirect,
		Timeout:       g.client.Timeout,
		Jar:           jar,
	}

	// priming request
	req, err := fetcher.NewGetRequest(ctx, g.cfg.PageURL)
	if err != nil {
		return nil, fetcher.NewError(fetcher.Network, g.name, "", g.cfg.PageURL, err)
	}
	resp, err := fetcher.DoHTTPRequest(client, req)
	if err != nil {
		return nil, fetcher.WrapTransport(g.name, "", g.cfg.PageURL, err)
	}
	resp.Body.Close()

	// data request with the session attached
	form := url.Values{
		"fontip":   {"YAT"},
		"bastarih": {day.Format(dateFormat)},
		"bittarih": {day.Format(dateFormat)},
	}
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.DataURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fetcher.NewError(fetcher.Network, g.name, "", g.cfg.DataURL, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err = fetcher.DoHTTPRequest(client, req)
	if err != nil {
		return nil, fetcher.WrapTransport(g.name, "", g.cfg.DataURL, err)
	}
	defer resp.Body.Close()

	var body struct {
		Data []struct {
			Code  string          `json:"FONKODU"`
			Name  string          `json:"FONUNVAN"`
			Price json.Number     `json:"FIYAT"`
			Date  json.RawMessage `json:"TARIH"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fetcher.NewError(fetcher.Schema, g.name, "", g.cfg.DataURL, err)
	}

	batch := make(map[string]Record, len(body.Data))
	for _, item := range body.Data {
		batch[item.Code] = Record{
			Code:  item.Code,
			Name:  item.Name,
			Price: item.Price.String(),
			Date:  batchDate(item.Date, day),
		}
	}
	return batch, nil
}

// batchDate converts the entry timestamp (milliseconds since epoch,
// sent either as a number or a quoted string) to a date, falling back
// to the requested day.
func batchDate(raw json.RawMessage, fallback time.Time) time.Time {
	s := strings.Trim(string(raw), `"`)
	msec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallback
	}
	return time.UnixMilli(msec).UTC()
}
