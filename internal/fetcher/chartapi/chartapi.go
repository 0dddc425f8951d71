// Package chartapi fetches the latest price of a ticker from a
// chart-style JSON endpoint (one GET per instrument, one named field
// extracted from the body).
package chartapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mmbros/pricewatch/internal/fetcher"
)

const defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

// Getter gets the regular market price of a ticker from the chart endpoint.
type Getter struct {
	name    string
	baseURL string
	client  *http.Client
}

// New creates a chart API strategy.
// An empty baseURL selects the default endpoint.
func New(name, baseURL string, client *http.Client) *Getter {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Getter{name: name, baseURL: baseURL, client: client}
}

// Name returns the name of the strategy.
func (g *Getter) Name() string {
	return g.name
}

// chartBody is the part of the response body holding the price.
type chartBody struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice json.Number `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
	} `json:"chart"`
}

// Fetch gets the chart page of the instrument and extracts the
// regularMarketPrice field as raw text.
func (g *Getter) Fetch(ctx context.Context, inst fetcher.Instrument) (*fetcher.Raw, error) {
	url := g.baseURL + inst.Code

	req, err := fetcher.NewGetRequest(ctx, url)
	if err != nil {
		return nil, fetcher.NewError(fetcher.Network, g.name, inst.Code, url, err)
	}

	resp, err := fetcher.DoHTTPRequest(g.client, req)
	if err != nil {
		return nil, fetcher.WrapTransport(g.name, inst.Code, url, err)
	}
	defer resp.Body.Close()

	var body chartBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fetcher.NewError(fetcher.Schema, g.name, inst.Code, url, err)
	}

	if len(body.Chart.Result) == 0 {
		return nil, fetcher.NewError(fetcher.Schema, g.name, inst.Code, url, errNoResult)
	}
	price := body.Chart.Result[0].Meta.RegularMarketPrice
	if price.String() == "" {
		return nil, fetcher.NewError(fetcher.Schema, g.name, inst.Code, url, errNoPrice)
	}

	return &fetcher.Raw{
		Text:   price.String(),
		Source: g.name,
		URL:    url,
	}, nil
}
