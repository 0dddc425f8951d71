// Package snapshot produces the externally visible price pages:
// one directory per instrument holding a page per date plus the
// "latest" pointer files.
package snapshot

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/mmbros/pricewatch/internal/fetcher"
	"github.com/mmbros/pricewatch/internal/obstore"
)

// Renderer is the artifact writer used by the orchestrator.
type Renderer interface {
	// RenderFresh publishes a live observation.
	RenderFresh(obs *obstore.Observation) error

	// RenderDegraded publishes the degraded view of an instrument:
	// the last known observation (may be nil) with an explicit
	// fetch-failed marker. It must never present the stale value as
	// fresh.
	RenderDegraded(inst fetcher.Instrument, last *obstore.Observation, cause error) error
}

// SiteWriter renders the price pages under a base directory:
// <dir>/<market>/<code>/<date>.html, latest.html and the plain text
// counterparts consumed by API clients.
type SiteWriter struct {
	dir  string
	tmpl *template.Template
	now  func() time.Time
}

// NewSiteWriter creates a SiteWriter rooted at dir.
func NewSiteWriter(dir string) (*SiteWriter, error) {
	tmpl, err := template.New("price").Parse(pageTemplate)
	if err != nil {
		return nil, err
	}
	return &SiteWriter{dir: dir, tmpl: tmpl, now: time.Now}, nil
}

// pageData is the substitution context of the page template.
// Values are escaped by html/template.
type pageData struct {
	Ticker    string
	Market    string
	Currency  string
	Price     string
	Date      string
	Stale     bool
	StaleDate string
	Error     string
}

// RenderFresh writes the dated page and updates the latest pointers.
func (w *SiteWriter) RenderFresh(obs *obstore.Observation) error {
	dir, err := w.instrumentDir(obs.Market, obs.Code)
	if err != nil {
		return err
	}

	date := obs.DateString()
	data := &pageData{
		Ticker:   obs.Code,
		Market:   obs.Market,
		Currency: obs.Currency,
		Price:    obs.Value.String(),
		Date:     date,
	}

	page, err := w.renderPage(data)
	if err != nil {
		return err
	}

	files := map[string][]byte{
		date + ".html": page,
		"latest.html":  page,
		date + ".txt":  []byte(data.Price),
		"latest.txt":   []byte(data.Price),
	}
	return writeFiles(dir, files)
}

// RenderDegraded writes the dated page with the last known value and
// the fetch-failed warning. The latest pointers are left untouched:
// a degraded run must never publish a stale value as fresh.
func (w *SiteWriter) RenderDegraded(inst fetcher.Instrument, last *obstore.Observation, cause error) error {
	dir, err := w.instrumentDir(inst.Market, inst.Code)
	if err != nil {
		return err
	}

	date := w.now().Format(obstore.DateFormat)
	data := &pageData{
		Ticker:   inst.Code,
		Market:   inst.Market,
		Currency: inst.Currency,
		Date:     date,
		Stale:    true,
		Error:    cause.Error(),
	}
	if last != nil {
		data.Price = last.Value.String()
		data.StaleDate = last.DateString()
	}

	page, err := w.renderPage(data)
	if err != nil {
		return err
	}

	files := map[string][]byte{
		date + ".html": page,
		date + ".txt":  []byte("ERROR: " + cause.Error()),
	}
	return writeFiles(dir, files)
}

func (w *SiteWriter) instrumentDir(market, code string) (string, error) {
	dir := filepath.Join(w.dir, market, code)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

func (w *SiteWriter) renderPage(data *pageData) ([]byte, error) {
	var buf bytes.Buffer
	if err := w.tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFiles(dir string, files map[string][]byte) error {
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, content, 0644); err != nil {
			return fmt.Errorf("writing snapshot %q: %w", path, err)
		}
	}
	return nil
}
