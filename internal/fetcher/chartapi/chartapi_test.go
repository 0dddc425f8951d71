package chartapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmbros/pricewatch/internal/fetcher"
)

var instAAPL = fetcher.Instrument{Code: "AAPL", Market: "us", Currency: "$"}

func newTestServer() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/chart/AAPL", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[{"meta":{"regularMarketPrice":182.63}}]}}`)
	})
	mux.HandleFunc("/chart/EMPTY", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[]}}`)
	})
	mux.HandleFunc("/chart/NOPRICE", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[{"meta":{}}]}}`)
	})
	mux.HandleFunc("/chart/BADJSON", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>not json</html>`)
	})
	mux.HandleFunc("/chart/ERR500", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})
	mux.HandleFunc("/chart/SLOW", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, `{"chart":{"result":[{"meta":{"regularMarketPrice":1}}]}}`)
	})

	return httptest.NewServer(mux)
}

func TestFetch(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	g := New("chart-api", srv.URL+"/chart/", srv.Client())

	raw, err := g.Fetch(context.Background(), instAAPL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw.Text != "182.63" {
		t.Errorf("raw text: got %q, want \"182.63\"", raw.Text)
	}
	if raw.Source != "chart-api" {
		t.Errorf("raw source: got %q", raw.Source)
	}
}

func TestFetchErrors(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	g := New("chart-api", srv.URL+"/chart/", srv.Client())

	testCases := map[string]fetcher.Kind{
		"EMPTY":   fetcher.Schema,
		"NOPRICE": fetcher.Schema,
		"BADJSON": fetcher.Schema,
		"ERR500":  fetcher.Network,
	}

	for code, kind := range testCases {
		t.Run(code, func(t *testing.T) {
			_, err := g.Fetch(context.Background(), fetcher.Instrument{Code: code})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := fetcher.KindOf(err); got != kind {
				t.Errorf("kind: got %s, want %s", got, kind)
			}
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	g := New("chart-api", srv.URL+"/chart/", srv.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := g.Fetch(ctx, fetcher.Instrument{Code: "SLOW"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if got := fetcher.KindOf(err); got != fetcher.Timeout {
		t.Errorf("kind: got %s, want timeout", got)
	}
}
