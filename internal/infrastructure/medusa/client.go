// Package medusa implements the catalog ports against the Medusa Admin API.
package medusa

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

	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/productsync"
	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"github.com/erp/catalogsync/internal/infrastructure/telemetry"
)

const maxResponseSize = 10 * 1024 * 1024

// Field selections
const (
	existingProductFields  = "id,external_id,*variants"
	committedProductFields = "id,external_id,title,description,handle,status,thumbnail,*options,*options.values,*variants,*variants.options"
)

// errStatus is returned for non-2xx responses; callers wrap it with the
// sentinel of the port they implement.
type errStatus struct {
	Status  int
	Message string
}

func (e *errStatus) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

// Catalog implements productsync.Catalog over the Admin API.
type Catalog struct {
	config     Config
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Catalog
type Option func(*Catalog)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Catalog) { c.httpClient = hc }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Catalog) { c.logger = l.Named("medusa") }
}

// NewCatalog creates an Admin API catalog adapter
func NewCatalog(cfg Config, opts ...Option) (*Catalog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Catalog{
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

var _ productsync.Catalog = (*Catalog)(nil)

// ---------------------------------------------------------------------------
// CatalogQuery
// ---------------------------------------------------------------------------

// QueryProducts returns the catalog products carrying one of externalIDs.
func (c *Catalog) QueryProducts(ctx context.Context, externalIDs []string) ([]productsync.ExistingProduct, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	q := url.Values{}
	for _, id := range externalIDs {
		q.Add("external_id[]", id)
	}
	q.Set("fields", existingProductFields)
	q.Set("limit", strconv.Itoa(len(externalIDs)))

	var resp productListResponse
	if err := c.do(ctx, http.MethodGet, "/admin/products", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", productsync.ErrCatalogQuery, err)
	}

	out := make([]productsync.ExistingProduct, 0, len(resp.Products))
	for _, p := range resp.Products {
		out = append(out, p.toExisting())
	}
	return out, nil
}

// ProductByHandle returns the catalog product with handle, or shared.ErrNotFound.
func (c *Catalog) ProductByHandle(ctx context.Context, handle string) (*productsync.CommittedProduct, error) {
	q := url.Values{}
	q.Set("handle", handle)
	q.Set("fields", committedProductFields)
	q.Set("limit", "1")

	var resp productListResponse
	if err := c.do(ctx, http.MethodGet, "/admin/products", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", productsync.ErrCatalogQuery, err)
	}
	if len(resp.Products) == 0 {
		return nil, shared.ErrNotFound
	}
	p := resp.Products[0].toCommitted()
	return &p, nil
}

// ---------------------------------------------------------------------------
// StoreConfigQuery
// ---------------------------------------------------------------------------

// StoreRefs returns the default sales channel and the first shipping profile.
func (c *Catalog) StoreRefs(ctx context.Context) (productsync.StoreRefs, error) {
	var stores storeListResponse
	q := url.Values{"fields": {"id,default_sales_channel_id"}}
	if err := c.do(ctx, http.MethodGet, "/admin/stores", q, nil, &stores); err != nil {
		return productsync.StoreRefs{}, fmt.Errorf("%w: %w", productsync.ErrStoreConfig, err)
	}
	if len(stores.Stores) == 0 || deref(stores.Stores[0].DefaultSalesChannelID) == "" {
		return productsync.StoreRefs{}, fmt.Errorf("%w: store has no default sales channel", productsync.ErrStoreConfig)
	}

	var profiles shippingProfileListResponse
	q = url.Values{"fields": {"id"}, "limit": {"1"}}
	if err := c.do(ctx, http.MethodGet, "/admin/shipping-profiles", q, nil, &profiles); err != nil {
		return productsync.StoreRefs{}, fmt.Errorf("%w: %w", productsync.ErrStoreConfig, err)
	}
	if len(profiles.ShippingProfiles) == 0 {
		return productsync.StoreRefs{}, fmt.Errorf("%w: no shipping profile", productsync.ErrStoreConfig)
	}

	return productsync.StoreRefs{
		SalesChannelID:    deref(stores.Stores[0].DefaultSalesChannelID),
		ShippingProfileID: profiles.ShippingProfiles[0].ID,
	}, nil
}

// ---------------------------------------------------------------------------
// ProductIngestion
// ---------------------------------------------------------------------------

// CreateProducts creates products in one batch call.
func (c *Catalog) CreateProducts(ctx context.Context, products []productsync.DomainProduct) ([]productsync.CommittedProduct, error) {
	if len(products) == 0 {
		return nil, nil
	}
	req := batchRequest{Create: make([]productInput, 0, len(products))}
	for _, p := range products {
		req.Create = append(req.Create, toProductInput(p))
	}
	resp, err := c.batch(ctx, req)
	if err != nil {
		return nil, err
	}
	return committed(resp.Created), nil
}

// UpdateProducts patches products in one batch call.
func (c *Catalog) UpdateProducts(ctx context.Context, products []productsync.DomainProduct) ([]productsync.CommittedProduct, error) {
	if len(products) == 0 {
		return nil, nil
	}
	req := batchRequest{Update: make([]productInput, 0, len(products))}
	for _, p := range products {
		if !p.IsUpdate() {
			return nil, fmt.Errorf("%w: product %s has no catalog id", productsync.ErrDispatch, p.ExternalID)
		}
		req.Update = append(req.Update, toProductInput(p))
	}
	resp, err := c.batch(ctx, req)
	if err != nil {
		return nil, err
	}
	return committed(resp.Updated), nil
}

func (c *Catalog) batch(ctx context.Context, req batchRequest) (*batchResponse, error) {
	ctx, span := telemetry.StartClientSpan(ctx, "medusa products.batch")
	var resp batchResponse
	err := c.do(ctx, http.MethodPost, "/admin/products/batch", url.Values{"fields": {committedProductFields}}, req, &resp)
	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", productsync.ErrDispatch, err)
	}
	logger.L(ctx, c.logger).Debug("product batch committed",
		zap.Int("created", len(resp.Created)),
		zap.Int("updated", len(resp.Updated)),
	)
	return &resp, nil
}

func committed(dtos []productDTO) []productsync.CommittedProduct {
	out := make([]productsync.CommittedProduct, 0, len(dtos))
	for _, p := range dtos {
		out = append(out, p.toCommitted())
	}
	return out
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

func (c *Catalog) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.config.APIKey, "")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e errorResponse
		_ = json.Unmarshal(raw, &e)
		return fmt.Errorf("%s %s: %w", method, path, &errStatus{Status: resp.StatusCode, Message: e.Message})
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *errStatus
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
