// Package odoorest manages ERP product templates through the ERP's REST
// integration module (/odoo_connect and /send_request endpoints).
package odoorest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/erpadmin"
	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
)

const (
	maxResponseSize = 10 * 1024 * 1024
	templateModel   = "product.template"
)

var errUnauthorized = errors.New("odoorest: unauthorized")

// Client implements erpadmin.ProductGateway. The api key obtained from
// /odoo_connect is cached and dropped whenever the ERP answers 401.
type Client struct {
	config     Config
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	mu     sync.Mutex
	apiKey string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l.Named("odoorest") }
}

// NewClient creates a REST client
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		config:     cfg,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ erpadmin.ProductGateway = (*Client)(nil)

// ---------------------------------------------------------------------------
// ProductGateway
// ---------------------------------------------------------------------------

// ListProducts returns every product template.
func (c *Client) ListProducts(ctx context.Context) ([]erpadmin.Product, error) {
	env, err := c.send(ctx, http.MethodGet, 0, readRequest{Fields: productFields, Domain: []any{}})
	if err != nil {
		return nil, err
	}
	products := make([]erpadmin.Product, 0, len(env.Records))
	for _, r := range env.Records {
		products = append(products, r.toProduct())
	}
	return products, nil
}

// GetProduct returns one template or erpadmin.ErrProductNotFound.
func (c *Client) GetProduct(ctx context.Context, id int64) (*erpadmin.Product, error) {
	if id <= 0 {
		return nil, erpadmin.ErrInvalidProductID
	}
	env, err := c.send(ctx, http.MethodGet, id, readRequest{
		Fields: productFields,
		Domain: []any{[]any{"id", "=", id}},
	})
	if err != nil {
		return nil, err
	}
	if len(env.Records) == 0 {
		return nil, erpadmin.ErrProductNotFound
	}
	p := env.Records[0].toProduct()
	return &p, nil
}

// CreateProduct creates a template. Missing price and type fall back to 0
// and the default product type.
func (c *Client) CreateProduct(ctx context.Context, in erpadmin.CreateProduct) (*erpadmin.Product, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}

	values := map[string]any{"name": in.Name, "list_price": json.Number("0"), "type": erpadmin.DefaultProductType}
	fields := []string{"name"}
	if in.DefaultCode != "" {
		values["default_code"] = in.DefaultCode
		fields = append(fields, "default_code")
	}
	if in.ListPrice != nil {
		values["list_price"] = json.Number(in.ListPrice.String())
		fields = append(fields, "list_price")
	}
	if in.Type != "" {
		values["type"] = in.Type
		fields = append(fields, "type")
	}

	env, err := c.send(ctx, http.MethodPost, 0, writeRequest{Fields: fields, Values: values})
	if err != nil {
		return nil, err
	}
	return resultProduct(env, "create")
}

// UpdateProduct writes the fields carried by in.
func (c *Client) UpdateProduct(ctx context.Context, id int64, in erpadmin.UpdateProduct) (*erpadmin.Product, error) {
	if id <= 0 {
		return nil, erpadmin.ErrInvalidProductID
	}
	if err := in.Normalize(); err != nil {
		return nil, err
	}

	values := make(map[string]any, 4)
	if in.Name != "" {
		values["name"] = in.Name
	}
	if in.DefaultCode != "" {
		values["default_code"] = in.DefaultCode
	}
	if in.ListPrice != nil {
		values["list_price"] = json.Number(in.ListPrice.String())
	}
	if in.Type != "" {
		values["type"] = in.Type
	}

	env, err := c.send(ctx, http.MethodPut, id, writeRequest{Fields: in.Fields(), Values: values})
	if err != nil {
		return nil, err
	}
	return resultProduct(env, "update")
}

// DeleteProduct removes a template.
func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	if id <= 0 {
		return erpadmin.ErrInvalidProductID
	}
	env, err := c.send(ctx, http.MethodDelete, id, nil)
	if err != nil {
		return err
	}
	var res deleteResult
	if len(env.Result) == 0 || json.Unmarshal(env.Result, &res) != nil || !res.Success {
		return fmt.Errorf("%w: delete product %d: %s", shared.ErrUpstream, id, truncate(env.Result))
	}
	return nil
}

func resultProduct(env *envelope, op string) (*erpadmin.Product, error) {
	var rec productRecord
	if len(env.Result) == 0 || json.Unmarshal(env.Result, &rec) != nil || rec.ID == 0 {
		return nil, fmt.Errorf("%w: %s product: unexpected result %s", shared.ErrUpstream, op, truncate(env.Result))
	}
	p := rec.toProduct()
	return &p, nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// send issues a /send_request call for the template model. A 401 drops the
// cached key and retries with a fresh one, at most MaxAuthRetries times.
func (c *Client) send(ctx context.Context, method string, id int64, body any) (*envelope, error) {
	query := url.Values{"model": {templateModel}}
	if id > 0 {
		query.Set("Id", strconv.FormatInt(id, 10))
	}
	endpoint := c.baseURL + "/send_request?" + query.Encode()

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("odoorest: encode request: %w", err)
		}
	}

	log := logger.L(ctx, c.logger)
	for attempt := 0; ; attempt++ {
		key, err := c.key(ctx)
		if err != nil {
			return nil, err
		}

		env, err := c.do(ctx, method, endpoint, key, payload)
		if !errors.Is(err, errUnauthorized) {
			return env, err
		}

		c.resetKey(key)
		if attempt >= c.config.MaxAuthRetries {
			return nil, fmt.Errorf("%w: max authentication retries reached", erpadmin.ErrUpstreamAuth)
		}
		log.Info("401 from erp, re-authenticating",
			zap.String("method", method),
			zap.Int("attempt", attempt+1),
		)
	}
}

func (c *Client) do(ctx context.Context, method, endpoint, key string, payload []byte) (*envelope, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", shared.ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", key)
	req.Header.Set("login", c.config.Username)
	req.Header.Set("password", c.config.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", shared.ErrUpstream, method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", shared.ErrUpstream, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s %s: HTTP %d: %s", shared.ErrUpstream, method, req.URL.Path, resp.StatusCode, truncate(raw))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: invalid json from erp: %v", shared.ErrUpstream, err)
	}
	if env.failed() {
		return nil, fmt.Errorf("%w: erp error: %s", shared.ErrUpstream, truncate(env.Error))
	}
	return &env, nil
}

// key returns the cached api key, authenticating first if there is none.
func (c *Client) key(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.apiKey != "" {
		return c.apiKey, nil
	}
	key, err := c.authenticate(ctx)
	if err != nil {
		return "", err
	}
	c.apiKey = key
	return key, nil
}

// resetKey forgets key unless another request already replaced it.
func (c *Client) resetKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.apiKey == key {
		c.apiKey = ""
	}
}

func (c *Client) authenticate(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/odoo_connect", nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", erpadmin.ErrUpstreamAuth, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("login", c.config.Username)
	req.Header.Set("password", c.config.Password)
	req.Header.Set("db", c.config.DBName)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", erpadmin.ErrUpstreamAuth, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", erpadmin.ErrUpstreamAuth, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d: %s", erpadmin.ErrUpstreamAuth, resp.StatusCode, truncate(raw))
	}

	var out connectResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: invalid json: %v", erpadmin.ErrUpstreamAuth, err)
	}
	if e := bytes.TrimSpace(out.Error); len(e) > 0 && !bytes.Equal(e, []byte("null")) {
		return "", fmt.Errorf("%w: %s", erpadmin.ErrUpstreamAuth, truncate(e))
	}
	if out.APIKey == "" {
		return "", fmt.Errorf("%w: no api-key in /odoo_connect response", erpadmin.ErrUpstreamAuth)
	}

	c.logger.Debug("authenticated with erp rest module", zap.String("db", c.config.DBName))
	return out.APIKey, nil
}

// truncate shortens a response body for error messages.
func truncate(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
