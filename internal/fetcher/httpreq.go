package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// userAgent sent with every upstream request: some sources refuse the
// default Go client string.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// DefaultClient returns the http.Client used for the price requests.
func DefaultClient(proxy string) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()

	if len(proxy) > 0 {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			panic(fmt.Sprintf("Error parsing proxy URL: %q. %v", proxy, err))
		}
		tr.Proxy = http.ProxyURL(proxyURL)
	}

	return &http.Client{
		Transport: tr,
		Timeout:   10 * time.Second,
	}
}

// NewGetRequest creates a GET request with the standard headers.
func NewGetRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

// DoHTTPRequest executes the http request.
// A response status other than 200 is returned as an error.
func DoHTTPRequest(client *http.Client, req *http.Request) (*http.Response, error) {
	if client == nil {
		client = DefaultClient("")
	}
	resp, err := client.Do(req)
	if (err == nil) && (resp.StatusCode != http.StatusOK) {
		resp.Body.Close()
		err = fmt.Errorf("%s %q with response status = %v", req.Method, req.URL, resp.Status)
		resp = nil
	}
	return resp, err
}
