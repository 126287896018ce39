// Package contentful publishes synced products to the Contentful CMS and
// reads their localized content back for the storefront.
package contentful

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
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erp/catalogsync/internal/application/storefront"
	"github.com/erp/catalogsync/internal/domain/productsync"
	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"github.com/erp/catalogsync/internal/infrastructure/telemetry"
)

const (
	maxResponseSize   = 10 * 1024 * 1024
	managementType    = "application/vnd.contentful.management.v1+json"
	maxRateLimitWaits = 3
)

// errStatus is a non-2xx answer from either API.
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

func statusOf(err error) int {
	var se *errStatus
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// Client talks to the management and delivery APIs of one environment.
type Client struct {
	config     Config
	management string
	delivery   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	sleep      func(context.Context, time.Duration) error
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l.Named("contentful") }
}

// NewClient creates a Contentful client
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	env := "/spaces/" + url.PathEscape(cfg.SpaceID) + "/environments/" + url.PathEscape(cfg.Environment)
	c := &Client{
		config:     cfg,
		management: strings.TrimRight(cfg.ManagementURL, "/") + env,
		delivery:   strings.TrimRight(cfg.DeliveryURL, "/") + env,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit)+1),
		logger:     zap.NewNop(),
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ storefront.ContentSource = (*Client)(nil)

// DefaultLocale is the locale product fields are written in.
func (c *Client) DefaultLocale() string {
	return c.config.DefaultLocale
}

// ---------------------------------------------------------------------------
// Product publishing
// ---------------------------------------------------------------------------

// CreateProduct publishes a committed product with its options, values and
// variants as linked entries. Entry ids are the catalog ids. It reports
// false without writing when the product entry already exists.
func (c *Client) CreateProduct(ctx context.Context, p productsync.CommittedProduct) (created bool, err error) {
	ctx, span := telemetry.StartClientSpan(ctx, "contentful create_product")
	defer func() { telemetry.EndSpan(span, err) }()

	if p.ID == "" {
		return false, fmt.Errorf("%w: product %s has no catalog id", shared.ErrInvalidInput, p.ExternalID)
	}
	if _, err := c.getEntry(ctx, p.ID); err == nil {
		return false, nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		return false, err
	}

	locale := c.config.DefaultLocale
	optionIDs := make([]string, 0, len(p.Options))
	for _, o := range p.Options {
		valueIDs := make([]string, 0, len(o.Values))
		for _, v := range o.Values {
			f := fields{}
			f.set(locale, "value", v.Value)
			f.set(locale, "medusaId", v.ID)
			if err := c.createEntry(ctx, typeProductOptionValue, v.ID, f); err != nil {
				return false, err
			}
			valueIDs = append(valueIDs, v.ID)
		}

		f := fields{}
		f.set(locale, "medusaId", o.ID)
		f.set(locale, "title", o.Title)
		f.set(locale, "product", entryLink(p.ID))
		f.set(locale, "values", entryLinks(valueIDs))
		if err := c.createEntry(ctx, typeProductOption, o.ID, f); err != nil {
			return false, err
		}
		optionIDs = append(optionIDs, o.ID)
	}

	variantIDs := make([]string, 0, len(p.Variants))
	for _, v := range p.Variants {
		f := fields{}
		f.set(locale, "medusaId", v.ID)
		f.set(locale, "title", v.Title)
		f.set(locale, "product", entryLink(p.ID))
		f.set(locale, "productOptionValues", entryLinks(v.OptionValueIDs))
		if v.SKU != "" {
			f.set(locale, "sku", v.SKU)
		}
		if err := c.createEntry(ctx, typeProductVariant, v.ID, f); err != nil {
			return false, err
		}
		variantIDs = append(variantIDs, v.ID)
	}

	f := c.productFields(p)
	e, err := c.putEntry(ctx, typeProduct, p.ID, 0, f)
	if err != nil {
		return false, err
	}
	f.set(locale, "productVariants", entryLinks(variantIDs))
	f.set(locale, "productOptions", entryLinks(optionIDs))
	if e, err = c.putEntry(ctx, typeProduct, p.ID, e.Sys.Version, f); err != nil {
		return false, err
	}
	if err := c.publish(ctx, e); err != nil {
		return false, err
	}

	logger.L(ctx, c.logger).Debug("product published to cms",
		zap.String("product_id", p.ID),
		zap.Int("options", len(optionIDs)),
		zap.Int("variants", len(variantIDs)),
	)
	return true, nil
}

func (c *Client) productFields(p productsync.CommittedProduct) fields {
	locale := c.config.DefaultLocale
	f := fields{}
	f.set(locale, "medusaId", p.ID)
	f.set(locale, "title", p.Title)
	if p.Description != "" {
		f.set(locale, "description", richTextDocument(p.Description))
	}
	if p.Handle != "" {
		f.set(locale, "handle", p.Handle)
	}
	if p.Thumbnail != "" {
		f.set(locale, "thumbnail", p.Thumbnail)
	}
	return f
}

// createEntry creates and publishes a child entry. An entry left behind by
// an interrupted earlier attempt is reused.
func (c *Client) createEntry(ctx context.Context, contentType, id string, f fields) error {
	e, err := c.putEntry(ctx, contentType, id, 0, f)
	if statusOf(err) == http.StatusConflict {
		return nil
	}
	if err != nil {
		return err
	}
	return c.publish(ctx, e)
}

// DeleteProduct unpublishes and deletes the product entry and every entry
// linked from it. A missing product is not an error.
func (c *Client) DeleteProduct(ctx context.Context, productID string) (err error) {
	ctx, span := telemetry.StartClientSpan(ctx, "contentful delete_product")
	defer func() { telemetry.EndSpan(span, err) }()

	product, err := c.removeEntry(ctx, productID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	locale := c.config.DefaultLocale
	for _, id := range product.links("productVariants", locale) {
		if _, err := c.removeEntry(ctx, id); err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
	}
	for _, id := range product.links("productOptions", locale) {
		option, err := c.removeEntry(ctx, id)
		if errors.Is(err, shared.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		for _, vid := range option.links("values", locale) {
			if _, err := c.removeEntry(ctx, vid); err != nil && !errors.Is(err, shared.ErrNotFound) {
				return err
			}
		}
	}
	return nil
}

// removeEntry unpublishes and deletes an entry and returns it as it was.
func (c *Client) removeEntry(ctx context.Context, id string) (*entry, error) {
	e, err := c.getEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	version := e.Sys.Version
	if e.Sys.PublishedVersion > 0 {
		var unpublished entry
		err := c.do(ctx, request{
			method:  http.MethodDelete,
			url:     c.management + "/entries/" + url.PathEscape(id) + "/published",
			token:   c.config.ManagementToken,
			version: version,
		}, &unpublished)
		if err != nil {
			return nil, err
		}
		version = unpublished.Sys.Version
	}
	err = c.do(ctx, request{
		method:  http.MethodDelete,
		url:     c.management + "/entries/" + url.PathEscape(id),
		token:   c.config.ManagementToken,
		version: version,
	}, nil)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ---------------------------------------------------------------------------
// Management entries
// ---------------------------------------------------------------------------

func (c *Client) getEntry(ctx context.Context, id string) (*entry, error) {
	var e entry
	err := c.do(ctx, request{
		method: http.MethodGet,
		url:    c.management + "/entries/" + url.PathEscape(id),
		token:  c.config.ManagementToken,
	}, &e)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// putEntry creates the entry when version is 0, otherwise updates it.
func (c *Client) putEntry(ctx context.Context, contentType, id string, version int, f fields) (*entry, error) {
	r := request{
		method:  http.MethodPut,
		url:     c.management + "/entries/" + url.PathEscape(id),
		token:   c.config.ManagementToken,
		version: version,
		body:    entryRequest{Fields: f},
	}
	if version == 0 {
		r.contentType = contentType
	}
	var e entry
	if err := c.do(ctx, r, &e); err != nil {
		return nil, fmt.Errorf("%s %s: %w", contentType, id, err)
	}
	return &e, nil
}

func (c *Client) publish(ctx context.Context, e *entry) error {
	return c.do(ctx, request{
		method:  http.MethodPut,
		url:     c.management + "/entries/" + url.PathEscape(e.Sys.ID) + "/published",
		token:   c.config.ManagementToken,
		version: e.Sys.Version,
	}, nil)
}

// Locales lists the locales of the environment.
func (c *Client) Locales(ctx context.Context) ([]storefront.Locale, error) {
	var list localeList
	err := c.do(ctx, request{
		method: http.MethodGet,
		url:    c.management + "/locales",
		token:  c.config.ManagementToken,
	}, &list)
	if err != nil {
		return nil, err
	}
	out := make([]storefront.Locale, 0, len(list.Items))
	for _, l := range list.Items {
		out = append(out, storefront.Locale{Code: l.Code, Name: l.Name, Default: l.Default})
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Delivery
// ---------------------------------------------------------------------------

// ProductContent reads the published product entry in locale. The rich text
// description is rendered as plain paragraphs.
func (c *Client) ProductContent(ctx context.Context, productID, locale string) (*storefront.ProductContent, error) {
	if c.config.DeliveryToken == "" {
		return nil, fmt.Errorf("%w: contentful delivery token is not configured", shared.ErrNotFound)
	}
	endpoint := c.delivery + "/entries/" + url.PathEscape(productID)
	if locale != "" {
		endpoint += "?" + url.Values{"locale": {locale}}.Encode()
	}

	var e deliveryEntry
	err := c.do(ctx, request{
		method:   http.MethodGet,
		url:      endpoint,
		token:    c.config.DeliveryToken,
		delivery: true,
	}, &e)
	if err != nil {
		return nil, err
	}
	return &storefront.ProductContent{
		ProductID:   productID,
		Locale:      locale,
		Title:       e.Fields.Title,
		Description: e.Fields.Description.PlainText(),
		Handle:      e.Fields.Handle,
	}, nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

type request struct {
	method      string
	url         string
	token       string
	contentType string
	version     int
	body        any
	delivery    bool
}

// do sends r. Management calls are rate limited, and a 429 is retried after
// the reset the API announces.
func (c *Client) do(ctx context.Context, r request, out any) error {
	var payload []byte
	if r.body != nil {
		var err error
		if payload, err = json.Marshal(r.body); err != nil {
			return fmt.Errorf("contentful: encode request: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		if !r.delivery {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		status, reset, err := c.send(ctx, r, payload, out)
		if status != http.StatusTooManyRequests || attempt >= maxRateLimitWaits {
			return err
		}
		logger.L(ctx, c.logger).Warn("contentful rate limit hit, waiting",
			zap.Duration("reset", reset),
			zap.Int("attempt", attempt+1),
		)
		if err := c.sleep(ctx, reset); err != nil {
			return err
		}
	}
}

func (c *Client) send(ctx context.Context, r request, payload []byte, out any) (int, time.Duration, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: create request: %v", shared.ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", managementType)
	}
	if r.contentType != "" {
		req.Header.Set("X-Contentful-Content-Type", r.contentType)
	}
	if r.version > 0 {
		req.Header.Set("X-Contentful-Version", strconv.Itoa(r.version))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: contentful %s %s: %v", shared.ErrUpstream, r.method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, 0, fmt.Errorf("%w: read response: %v", shared.ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e errorResponse
		_ = json.Unmarshal(raw, &e)
		se := &errStatus{Status: resp.StatusCode, Message: e.Message}
		sentinel := shared.ErrUpstream
		if resp.StatusCode == http.StatusNotFound {
			sentinel = shared.ErrNotFound
		}
		return resp.StatusCode, rateLimitReset(resp.Header),
			fmt.Errorf("%w: contentful %s %s: %w", sentinel, r.method, req.URL.Path, se)
	}

	if out == nil || len(raw) == 0 {
		return resp.StatusCode, 0, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, 0, fmt.Errorf("%w: contentful %s %s: decode response: %v", shared.ErrUpstream, r.method, req.URL.Path, err)
	}
	return resp.StatusCode, 0, nil
}

func rateLimitReset(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("X-Contentful-RateLimit-Reset"))
	if err != nil || secs <= 0 {
		return time.Second
	}
	return time.Duration(secs) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
