// Package algolia keeps the product search index in step with the catalog.
package algolia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erp/catalogsync/internal/domain/productsync"
	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"github.com/erp/catalogsync/internal/infrastructure/telemetry"
)

const maxResponseSize = 1024 * 1024

// Client writes product records to one index.
type Client struct {
	config     Config
	indexURL   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l.Named("algolia") }
}

// NewClient creates an index client
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		config:     cfg,
		indexURL:   strings.TrimRight(cfg.BaseURL, "/") + "/1/indexes/" + url.PathEscape(cfg.IndexName),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit)),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SaveProducts upserts one record per product, keyed by catalog id.
// Existing attributes not carried by the record are kept.
func (c *Client) SaveProducts(ctx context.Context, products []productsync.CommittedProduct) (err error) {
	if len(products) == 0 {
		return nil
	}
	ctx, span := telemetry.StartClientSpan(ctx, "algolia batch")
	defer func() { telemetry.EndSpan(span, err) }()

	for start := 0; start < len(products); start += c.config.BatchSize {
		end := min(start+c.config.BatchSize, len(products))
		req := batchRequest{Requests: make([]batchOperation, 0, end-start)}
		for _, p := range products[start:end] {
			if p.ID == "" {
				return fmt.Errorf("%w: product %s has no catalog id", shared.ErrInvalidInput, p.ExternalID)
			}
			req.Requests = append(req.Requests, batchOperation{Action: "updateObject", Body: newProductRecord(p)})
		}

		var resp batchResponse
		if err := c.do(ctx, http.MethodPost, c.indexURL+"/batch", req, &resp); err != nil {
			return err
		}
		logger.L(ctx, c.logger).Debug("index batch accepted",
			zap.Int64("task_id", resp.TaskID),
			zap.Int("objects", len(resp.ObjectIDs)),
		)
	}
	return nil
}

// DeleteObject removes the record of a product. Removing an unknown object
// succeeds.
func (c *Client) DeleteObject(ctx context.Context, objectID string) error {
	if objectID == "" {
		return fmt.Errorf("%w: object id is required", shared.ErrInvalidInput)
	}
	return c.do(ctx, http.MethodDelete, c.indexURL+"/"+url.PathEscape(objectID), nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("algolia: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", shared.ErrUpstream, err)
	}
	req.Header.Set("X-Algolia-Application-Id", c.config.AppID)
	req.Header.Set("X-Algolia-API-Key", c.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: algolia %s %s: %v", shared.ErrUpstream, method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", shared.ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e errorResponse
		_ = json.Unmarshal(raw, &e)
		return fmt.Errorf("%w: algolia %s %s: HTTP %d: %s", shared.ErrUpstream, method, req.URL.Path, resp.StatusCode, e.Message)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: algolia decode response: %v", shared.ErrUpstream, err)
	}
	return nil
}
