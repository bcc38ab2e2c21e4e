package watchlist

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/c360/spotstream/errors"
)

// Fetch bodies larger than this are cut off; callsign lists are tiny and
// anything bigger is a misconfigured resource.
const maxFetchBytes = 8 << 20

// Fetcher retrieves the raw text of a watchlist resource. Resource
// identifiers are opaque strings; the core only sees success or failure and
// the returned text.
type Fetcher interface {
	Fetch(ctx context.Context, resource string) (string, error)
}

// HTTPFetcher fetches watchlist resources over HTTP(S).
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates an HTTP fetcher with the given per-request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the resource body. Transport failures, non-2xx statuses,
// and unreadable bodies are all transient-class errors; the caller retries
// at the next scheduled interval.
func (f *HTTPFetcher) Fetch(ctx context.Context, resource string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resource, nil)
	if err != nil {
		return "", errors.WrapInvalid(err, "HTTPFetcher", "Fetch", "building request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", errors.WrapTransient(
			fmt.Errorf("%w: %w", errors.ErrFetchFailed, err),
			"HTTPFetcher", "Fetch", "request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.WrapTransient(
			fmt.Errorf("%w: %s", errors.ErrFetchStatus, resp.Status),
			"HTTPFetcher", "Fetch", "status check")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", errors.WrapTransient(
			fmt.Errorf("%w: %w", errors.ErrFetchFailed, err),
			"HTTPFetcher", "Fetch", "reading body")
	}

	return string(body), nil
}
