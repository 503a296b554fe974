package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tessera/tessera/internal/model"
)

// DefaultUpstreamTimeout bounds a single publisher fetch.
const DefaultUpstreamTimeout = 15 * time.Second

// maxUpstreamBody caps how much of a publisher response is read.
const maxUpstreamBody = 4 << 20 // 4 MiB

// Upstream fetches raw content from publishers. FetchPublic issues an
// unauthenticated GET against the target URL itself; FetchPaid calls
// the publisher's API with the shared bearer credential.
type Upstream interface {
	FetchPublic(ctx context.Context, target *url.URL) ([]byte, error)
	FetchPaid(ctx context.Context, pub *model.Publisher, path string) ([]byte, error)
}

// UpstreamClient is the HTTP implementation of Upstream.
type UpstreamClient struct {
	bearer string
	http   *http.Client
}

// NewUpstreamClient creates an upstream client using the shared
// gateway-to-publisher bearer credential.
func NewUpstreamClient(bearer string, timeout time.Duration) *UpstreamClient {
	if timeout <= 0 {
		timeout = DefaultUpstreamTimeout
	}
	return &UpstreamClient{
		bearer: bearer,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *UpstreamClient) FetchPublic(ctx context.Context, target *url.URL) ([]byte, error) {
	return c.get(ctx, target.String(), "")
}

func (c *UpstreamClient) FetchPaid(ctx context.Context, pub *model.Publisher, path string) ([]byte, error) {
	base := strings.TrimRight(pub.Website, "/")
	return c.get(ctx, base+path, c.bearer)
}

func (c *UpstreamClient) get(ctx context.Context, rawURL, bearer string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Accept", "text/html, application/xhtml+xml, text/plain")
	req.Header.Set("User-Agent", "tessera-gateway/1.0")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UpstreamError{Status: http.StatusBadGateway}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return nil, &UpstreamError{Status: http.StatusBadGateway}
	}
	return body, nil
}
