package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/rxdi/cache/resilience"
)

// HTTPError is returned by HTTPFetcher for non-2xx responses.
type HTTPError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// clientFault reports whether the request itself was rejected. Such errors
// say nothing about the remote's health and never trip the breaker.
// Timeouts and rate limiting still count.
func (e *HTTPError) clientFault() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// maxErrorBody caps how much of a failed response is kept on HTTPError.
const maxErrorBody = 512

// HTTPFetcher performs a GET on the identifier, treated as a URL, and
// decodes the JSON response body.
type HTTPFetcher struct {
	Client *http.Client
	// Breaker, when set, guards every request.
	Breaker *resilience.CircuitBreaker
	Header  http.Header
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher returns a fetcher using http.DefaultClient behind a
// circuit breaker with the default settings.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client:  http.DefaultClient,
		Breaker: resilience.NewCircuitBreaker(resilience.DefaultConfig()),
	}
}

func (h *HTTPFetcher) Fetch(ctx context.Context, url string) (any, error) {
	if h.Breaker == nil {
		return h.get(ctx, url)
	}
	var (
		out       any
		rejection *HTTPError
	)
	err := h.Breaker.Execute(ctx, func(ctx context.Context) error {
		v, err := h.get(ctx, url)
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.clientFault() {
			rejection = httpErr
			return nil
		}
		out = v
		return err
	})
	if err == nil && rejection != nil {
		return nil, rejection
	}
	return out, err
}

func (h *HTTPFetcher) get(ctx context.Context, url string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "cache: build request")
	}
	for k, vals := range h.Header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &HTTPError{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var v any
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, errors.Wrapf(err, "cache: decode response from %s", url)
	}
	return v, nil
}
