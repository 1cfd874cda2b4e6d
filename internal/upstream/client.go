// Package upstream talks to the fraud-analytics backend and turns its
// responses into graph snapshots.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sentinelhealth/fraudmap/internal/util"
	"github.com/sentinelhealth/fraudmap/pkg/graph"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// StatusError reports a non-2xx answer from the analytics backend.
type StatusError struct {
	Status int
	Path   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analytics backend returned %d for %s", e.Status, e.Path)
}

// Client fetches provider networks, fraud rings and CDPAP networks.
// Concurrent fetches are bounded by a weighted semaphore and identical
// in-flight requests are coalesced, so a burst of sessions asking for
// the same network costs one backend call.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	reqLock    *semaphore.Weighted
	group      singleflight.Group
	maxRetries int
}

// NewClientParams contains configuration options for creating a new Client.
type NewClientParams struct {
	BaseURL string

	RequestTimeout        time.Duration
	MaxConcurrentRequests int64
	MaxRetries            int
}

// NewClient creates a client for the analytics backend at BaseURL.
func NewClient(params NewClientParams) (*Client, error) {
	u, err := url.Parse(params.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}

	timeout := params.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	concurrency := params.MaxConcurrentRequests
	if concurrency <= 0 {
		concurrency = 8
	}
	retries := params.MaxRetries
	if retries <= 0 {
		retries = 3
	}

	return &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: timeout},
		reqLock:    semaphore.NewWeighted(concurrency),
		maxRetries: retries,
	}, nil
}

// ProviderNetwork fetches the referral network around one provider.
func (c *Client) ProviderNetwork(ctx context.Context, providerID string, depth int) (graph.Snapshot, error) {
	return c.fetchSnapshot(ctx, "/providers/"+url.PathEscape(providerID)+"/network", url.Values{
		"depth": {strconv.Itoa(depth)},
	})
}

// FraudRings fetches detected fraud rings at or above the given score.
func (c *Client) FraudRings(ctx context.Context, minScore float64) (graph.Snapshot, error) {
	return c.fetchSnapshot(ctx, "/fraud-rings", url.Values{
		"min_score": {strconv.FormatFloat(minScore, 'f', -1, 64)},
	})
}

// CDPAPNetwork fetches the patient-caregiver network.
func (c *Client) CDPAPNetwork(ctx context.Context, limit int) (graph.Snapshot, error) {
	return c.fetchSnapshot(ctx, "/cdpap/network", url.Values{
		"limit": {strconv.Itoa(limit)},
	})
}

func (c *Client) fetchSnapshot(ctx context.Context, path string, query url.Values) (graph.Snapshot, error) {
	u := *c.baseURL
	u.Path = u.Path + path
	u.RawQuery = query.Encode()
	target := u.String()

	result, err, _ := c.group.Do(target, func() (any, error) {
		return util.RetryWithContext(ctx, c.maxRetries, func(ctx context.Context) ([]byte, error) {
			return c.fetch(ctx, target, path)
		})
	})
	if err != nil {
		return graph.Snapshot{}, err
	}

	return graph.Adapt(result.([]byte)), nil
}

func (c *Client) fetch(ctx context.Context, target, path string) ([]byte, error) {
	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch network: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		statusErr := &StatusError{Status: resp.StatusCode, Path: path}
		// Client errors will not heal on a retry, server errors might.
		if resp.StatusCode < 500 {
			return nil, util.Permanent(statusErr)
		}
		return nil, statusErr
	}

	return io.ReadAll(resp.Body)
}
