package fundpage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mmbros/pricewatch/internal/fetcher"
)

const pageWithLabel = `<html><body>
<div class="fund-summary">
  <ul>
    <li><span>Son Fiyat (TL)</span><span>5.800,0980</span></li>
    <li><span>Günlük Getiri (%)</span><span>0,25</span></li>
  </ul>
</body></html>`

// pageRestyled misses the label structure: only the heuristic scan works.
const pageRestyled = `<html><body>
<div class="header">fund page</div>
<div class="field-value">not a number</div>
<span class="price-value">12,50</span>
</body></html>`

const pageChallenge = `<html><head><title>Just a moment...</title></head>
<body><div id="challenge-platform">checking your browser</div></body></html>`

const pageEmpty = `<html><body><p>nothing here</p></body></html>`

func newTestGetter(srv *httptest.Server) *Getter {
	return New("fund-page", srv.URL+"/FonAnaliz.aspx?FonKod=", "", srv.Client())
}

func newTestServer(pages map[string]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("FonKod")
		page, ok := pages[code]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, page)
	}))
}

func TestFetchPrimarySelector(t *testing.T) {
	srv := newTestServer(map[string]string{"TI2": pageWithLabel})
	defer srv.Close()

	raw, err := newTestGetter(srv).Fetch(context.Background(), fetcher.Instrument{Code: "TI2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw.Text != "5.800,0980" {
		t.Errorf("raw text: got %q, want \"5.800,0980\"", raw.Text)
	}
}

func TestFetchHeuristicFallback(t *testing.T) {
	srv := newTestServer(map[string]string{"TI2": pageRestyled})
	defer srv.Close()

	raw, err := newTestGetter(srv).Fetch(context.Background(), fetcher.Instrument{Code: "TI2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw.Text != "12,50" {
		t.Errorf("raw text: got %q, want \"12,50\"", raw.Text)
	}
}

func TestFetchChallengePage(t *testing.T) {
	srv := newTestServer(map[string]string{"TI2": pageChallenge})
	defer srv.Close()

	_, err := newTestGetter(srv).Fetch(context.Background(), fetcher.Instrument{Code: "TI2"})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := fetcher.KindOf(err); got != fetcher.Blocked {
		t.Errorf("kind: got %s, want blocked", got)
	}
}

func TestFetchPriceNotFound(t *testing.T) {
	srv := newTestServer(map[string]string{"TI2": pageEmpty})
	defer srv.Close()

	_, err := newTestGetter(srv).Fetch(context.Background(), fetcher.Instrument{Code: "TI2"})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := fetcher.KindOf(err); got != fetcher.Schema {
		t.Errorf("kind: got %s, want schema", got)
	}
}

func TestFetchNetworkError(t *testing.T) {
	srv := newTestServer(map[string]string{})
	defer srv.Close()

	_, err := newTestGetter(srv).Fetch(context.Background(), fetcher.Instrument{Code: "TI2"})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := fetcher.KindOf(err); got != fetcher.Network {
		t.Errorf("kind: got %s, want network", got)
	}
}
