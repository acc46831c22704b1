package dom

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// FetchHTML downloads url and parses it. Scripts do not run, so fields a
// page renders client-side will be missing.
func FetchHTML(ctx context.Context, url string, timeout time.Duration) (*HTMLDocument, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return ParseHTML(resp.Body)
}
