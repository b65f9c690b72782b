package delivery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMaxImageBytes matches the Bot API upload limit for photos.
const DefaultMaxImageBytes = 10 << 20

// Fetcher downloads the binary content behind an image URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher is a Fetcher doing plain unauthenticated GETs.
type HTTPFetcher struct {
	httpClient *http.Client
	maxBytes   int64
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   DefaultMaxImageBytes,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s for url: %s", resp.Status, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", f.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty response for url: %s", url)
	}
	return data, nil
}
