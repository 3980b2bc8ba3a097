// Package fetcher loads the declared GeoJSON datasets over HTTP.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	maperrors "github.com/Zachdehooge/hazard-map/internal/errors"
	"github.com/Zachdehooge/hazard-map/internal/geo"
	"github.com/Zachdehooge/hazard-map/internal/layer"
	"github.com/Zachdehooge/hazard-map/internal/logging"
)

// maxPages bounds how many pagination links a single dataset may follow
const maxPages = 20

// Options configures a Client. Zero values pick the defaults.
type Options struct {
	Timeout       time.Duration
	Retries       int
	Concurrency   int
	UserAgent     string
	RetryInterval time.Duration
	HTTPClient    *http.Client
}

// Client fetches datasets with per-load timeouts and retries
type Client struct {
	http          *http.Client
	timeout       time.Duration
	retries       int
	concurrency   int
	userAgent     string
	retryInterval time.Duration
}

// Result is the outcome of one dataset load
type Result struct {
	Name     string
	Features int
	Attempts int
	Duration time.Duration
	Err      error
}

// OK reports whether the load succeeded
func (r Result) OK() bool { return r.Err == nil }

// NewClient creates a Client
func NewClient(opts Options) *Client {
	c := &Client{
		http:          opts.HTTPClient,
		timeout:       opts.Timeout,
		retries:       opts.Retries,
		concurrency:   opts.Concurrency,
		userAgent:     opts.UserAgent,
		retryInterval: opts.RetryInterval,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = 20 * time.Second
	}
	if c.retries < 0 {
		c.retries = 0
	}
	if c.concurrency < 1 {
		c.concurrency = 4
	}
	if c.userAgent == "" {
		c.userAgent = "hazard-map/1.0"
	}
	if c.retryInterval <= 0 {
		c.retryInterval = 500 * time.Millisecond
	}
	return c
}

// Close releases idle connections
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// LoadAll launches every load concurrently and returns once all of them
// have settled. Failed loads are reported in the results and left out of
// the registry; they never cancel their siblings. Results are in the order
// of datasets regardless of completion order.
func (c *Client) LoadAll(ctx context.Context, datasets []layer.Dataset) (layer.Registry, []Result) {
	logger := logging.GetLogger("fetcher")

	results := make([]Result, len(datasets))
	layers := make([]*layer.Layer, len(datasets))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, ds := range datasets {
		g.Go(func() error {
			start := time.Now()
			l, attempts, err := c.Load(ctx, ds)
			results[i] = Result{Name: ds.Name, Attempts: attempts, Duration: time.Since(start), Err: err}
			if err != nil {
				logger.Warn().Err(err).Str("layer", ds.Name).Int("attempts", attempts).Msg("Dataset load failed")
				return nil
			}
			results[i].Features = l.Len()
			layers[i] = l
			logger.Info().
				Str("layer", ds.Name).
				Int("features", l.Len()).
				Dur("duration", results[i].Duration).
				Msg("Dataset loaded")
			return nil
		})
	}
	_ = g.Wait()

	registry := make(layer.Registry, len(datasets))
	for _, l := range layers {
		if l != nil {
			registry.Add(l)
		}
	}
	return registry, results
}

// Load fetches one dataset, retrying transient failures within the
// client's per-load timeout. It returns the number of attempts made.
func (c *Client) Load(ctx context.Context, ds layer.Dataset) (*layer.Layer, int, error) {
	loadCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var fc *geo.FeatureCollection
	attempts := 0
	op := func() error {
		attempts++
		var err error
		fc, err = c.fetchAll(loadCtx, ds.URL)
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryInterval
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.retries)), loadCtx)

	if err := backoff.Retry(op, policy); err != nil {
		if ctxErr := loadCtx.Err(); ctxErr != nil && ctx.Err() == nil {
			err = fmt.Errorf("timed out after %s: %w", c.timeout, err)
		}
		return nil, attempts, maperrors.Wrapf(err, maperrors.ErrLoadFailed, "failed to load %s", ds.Name).
			WithDetail("attempts", attempts)
	}

	return &layer.Layer{Dataset: ds, Features: fc, LoadedAt: time.Now()}, attempts, nil
}

// fetchAll follows pagination links, as the NWS API returns them
func (c *Client) fetchAll(ctx context.Context, start string) (*geo.FeatureCollection, error) {
	var all *geo.FeatureCollection
	url := start
	for page := 0; url != "" && page < maxPages; page++ {
		fc, next, err := c.fetchPage(ctx, url)
		if err != nil {
			return nil, err
		}
		if all == nil {
			all = fc
		} else {
			all.Features = append(all.Features, fc.Features...)
		}
		if len(fc.Features) == 0 {
			break
		}
		url = next
	}
	if all == nil {
		return nil, backoff.Permanent(fmt.Errorf("no GeoJSON fetched from %q", start))
	}
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, url string) (*geo.FeatureCollection, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("HTTP GET failed: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		snip := body
		if len(snip) > 200 {
			snip = snip[:200]
		}
		statusErr := fmt.Errorf("%s returned HTTP %d: %s", req.URL.Host, resp.StatusCode, string(snip))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, "", statusErr
		}
		return nil, "", backoff.Permanent(statusErr)
	}

	fc, err := geo.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, "", backoff.Permanent(err)
	}

	var paging struct {
		Pagination *struct {
			Next string `json:"next"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(body, &paging); err == nil && paging.Pagination != nil {
		return fc, paging.Pagination.Next, nil
	}
	return fc, "", nil
}
