// Package fundpage scrapes the latest price of a fund from its
// analysis page.
//
// The primary selector locates the price label and reads the sibling
// element. When the page layout changes, a heuristic scan over loose
// candidate selectors looks for a short numeric-looking text instead.
package fundpage

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mmbros/pricewatch/internal/fetcher"
)

const (
	defaultBaseURL = "https://www.tefas.gov.tr/FonAnaliz.aspx?FonKod="

	// defaultLabel precedes the price on the analysis page.
	defaultLabel = "Son Fiyat (TL)"

	// candidateSelector lists the elements scanned by the fallback heuristic.
	candidateSelector = "div.field-value, span.price-value, td.price-cell"
)

// challengeMarkers identify an anti-automation challenge page.
// On a match the strategy short-circuits to a Blocked error without
// attempting extraction.
var challengeMarkers = []string{
	"challenge-platform",
	"captcha",
	"Attention Required",
	"Just a moment",
}

// numericText matches a price-looking token: digits with at most
// separator punctuation.
var numericText = regexp.MustCompile(`^-?[0-9][0-9.,]*$`)

// Getter scrapes the price of a fund from its page.
type Getter struct {
	name    string
	baseURL string
	label   string
	client  *http.Client
}

// New creates a page-scraping strategy.
// Empty baseURL and label select the defaults.
func New(name, baseURL, label string, client *http.Client) *Getter {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if label == "" {
		label = defaultLabel
	}
	return &Getter{name: name, baseURL: baseURL, label: label, client: client}
}

// Name returns the name of the strategy.
func (g *Getter) Name() string {
	return g.name
}

// Fetch gets the fund page and extracts the price text.
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

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fetcher.NewError(fetcher.Schema, g.name, inst.Code, url, err)
	}

	if isChallenge(doc) {
		return nil, fetcher.NewError(fetcher.Blocked, g.name, inst.Code, url, errChallengePage)
	}

	text := g.findByLabel(doc)
	if text == "" {
		text = findByHeuristic(doc)
	}
	if text == "" {
		return nil, fetcher.NewError(fetcher.Schema, g.name, inst.Code, url, errPriceNotFound)
	}

	return &fetcher.Raw{
		Text:   text,
		Source: g.name,
		URL:    url,
	}, nil
}

// isChallenge reports whether the document is an anti-automation
// challenge page.
func isChallenge(doc *goquery.Document) bool {
	page := doc.Find("title").Text() + " " + doc.Find("body").Text()
	for _, marker := range challengeMarkers {
		if strings.Contains(page, marker) {
			return true
		}
	}
	return false
}

// findByLabel locates the leaf element holding the price label and
// returns the text of its next sibling.
func (g *Getter) findByLabel(doc *goquery.Document) string {
	var text string

	doc.Find("*").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 {
			return true
		}
		if !strings.Contains(s.Text(), g.label) {
			return true
		}
		text = strings.TrimSpace(s.Next().Text())
		return false
	})

	return text
}

// findByHeuristic scans the candidate elements for a short
// numeric-looking text. The scan filters on shape only; the magnitude
// of the value is checked by the caller against the instrument class
// range, so a chain without a range accepts whatever matches here.
func findByHeuristic(doc *goquery.Document) string {
	var text string

	doc.Find(candidateSelector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		t := strings.TrimSpace(s.Text())
		if len(t) == 0 || len(t) > 20 {
			return true
		}
		if !numericText.MatchString(t) {
			return true
		}
		text = t
		return false
	})

	return text
}
