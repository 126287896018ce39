// Package odoo implements the ERP client over Odoo's JSON-RPC endpoint.
package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erp/catalogsync/internal/domain/productsync"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"github.com/erp/catalogsync/internal/infrastructure/telemetry"
)

// maxResponseSize bounds a single JSON-RPC response (image payloads are large).
const maxResponseSize = 64 * 1024 * 1024

const (
	modelTemplate = "product.template"
	modelVariant  = "product.product"
)

// errUnauthorized marks a call rejected for its credentials. It triggers the
// single re-authentication and is reported as ErrAuthentication if it persists.
var errUnauthorized = fmt.Errorf("%w: unauthorized", productsync.ErrAuthentication)

// CallObserver receives the outcome of every RPC call.
type CallObserver interface {
	RecordERPCall(ctx context.Context, method string, d time.Duration, err error)
}

// Client is the JSON-RPC ERP client. It holds no session state: sessions are
// returned by Authenticate and passed back into ListProducts.
type Client struct {
	config     Config
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	observer   CallObserver
	now        func() time.Time
	nextID     atomic.Uint64
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l.Named("odoo") }
}

// WithObserver records call latency and outcome, typically into sync metrics
func WithObserver(o CallObserver) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates an ERP client
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	c := &Client{
		config:     cfg,
		endpoint:   strings.TrimRight(cfg.URL, "/") + "/jsonrpc",
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, cfg.RateBurst),
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ productsync.ERPClient = (*Client)(nil)

// ---------------------------------------------------------------------------
// ERPClient
// ---------------------------------------------------------------------------

// Authenticate logs in with the API key and returns a new session. Every
// failure, including an unreachable host, is reported as ErrAuthentication.
func (c *Client) Authenticate(ctx context.Context) (productsync.Session, error) {
	var uid json.RawMessage
	err := c.call(ctx, "common", "authenticate",
		[]any{c.config.DBName, c.config.Username, c.config.APIKey, map[string]any{}}, &uid)
	if err != nil {
		if errors.Is(err, productsync.ErrAuthentication) {
			return productsync.Session{}, err
		}
		return productsync.Session{}, fmt.Errorf("%w: %w", productsync.ErrAuthentication, err)
	}

	var id int64
	if jerr := json.Unmarshal(uid, &id); jerr != nil || id <= 0 {
		// The ERP answers false for rejected credentials.
		return productsync.Session{}, fmt.Errorf("%w: credentials rejected for %q", productsync.ErrAuthentication, c.config.Username)
	}

	c.logger.Debug("authenticated", zap.Int64("uid", id))
	return productsync.Session{UID: id, AuthenticatedAt: c.now()}, nil
}

// ListProducts returns one page of product templates with their variants.
func (c *Client) ListProducts(ctx context.Context, session productsync.Session, filter productsync.Filter, page productsync.Pagination) ([]productsync.ExternalProduct, productsync.Session, error) {
	if session.IsZero() {
		s, err := c.Authenticate(ctx)
		if err != nil {
			return nil, session, err
		}
		session = s
	}

	var ids []int64
	err := c.executeKW(ctx, &session, modelTemplate, "search",
		[]any{c.domain(filter)},
		map[string]any{"offset": page.Offset, "limit": page.Limit, "order": "id asc"},
		&ids)
	if err != nil {
		return nil, session, err
	}
	if len(ids) == 0 {
		return nil, session, nil
	}

	var templates []templateRecord
	if err := c.read(ctx, &session, modelTemplate, ids, &templates); err != nil {
		return nil, session, err
	}
	templates = orderByIDs(templates, ids, func(r templateRecord) int64 { return r.ID })

	var variantIDs []int64
	for _, t := range templates {
		variantIDs = append(variantIDs, t.VariantIDs...)
	}

	variants := make(map[int64]variantRecord, len(variantIDs))
	if len(variantIDs) > 0 {
		var recs []variantRecord
		if err := c.read(ctx, &session, modelVariant, variantIDs, &recs); err != nil {
			return nil, session, err
		}
		for _, v := range recs {
			variants[v.ID] = v
		}
	}

	products := make([]productsync.ExternalProduct, 0, len(templates))
	for _, t := range templates {
		products = append(products, toProduct(t, variants))
	}

	logger.L(ctx, c.logger).Debug("listed products",
		zap.Int("offset", page.Offset),
		zap.Int("limit", page.Limit),
		zap.Int("templates", len(products)),
		zap.Int("variants", len(variantIDs)),
	)
	return products, session, nil
}

// domain renders the search domain; an empty filter selects all templates
// that are not variant-level records (and active ones if configured).
func (c *Client) domain(filter productsync.Filter) []any {
	if len(filter) == 0 {
		filter = productsync.Filter{{Field: "is_product_variant", Operator: "=", Value: false}}
		if c.config.ActiveOnly {
			filter = append(filter, productsync.Condition{Field: "active", Operator: "=", Value: true})
		}
	}
	out := make([]any, 0, len(filter))
	for _, cond := range filter {
		out = append(out, []any{cond.Field, cond.Operator, cond.Value})
	}
	return out
}

func (c *Client) read(ctx context.Context, session *productsync.Session, model string, ids []int64, out any) error {
	if c.config.ReadMethod == ReadMethodRead {
		fields := templateReadFields()
		if model == modelVariant {
			fields = variantReadFields()
		}
		return c.executeKW(ctx, session, model, ReadMethodRead, []any{ids}, map[string]any{"fields": fields}, out)
	}

	specification := templateSpecification()
	if model == modelVariant {
		specification = variantSpecification()
	}
	return c.executeKW(ctx, session, model, ReadMethodWebRead, []any{ids}, map[string]any{"specification": specification}, out)
}

// executeKW calls model.method as the session user. An authorization failure
// re-authenticates once, updates *session and replays the call once.
func (c *Client) executeKW(ctx context.Context, session *productsync.Session, model, method string, args []any, kwargs map[string]any, out any) error {
	err := c.call(ctx, "object", "execute_kw", c.kwArgs(session.UID, model, method, args, kwargs), out)
	if !errors.Is(err, errUnauthorized) {
		return err
	}

	logger.L(ctx, c.logger).Info("session rejected, re-authenticating",
		zap.String("model", model),
		zap.String("method", method),
	)
	fresh, aerr := c.Authenticate(ctx)
	if aerr != nil {
		return aerr
	}
	*session = fresh

	return c.call(ctx, "object", "execute_kw", c.kwArgs(session.UID, model, method, args, kwargs), out)
}

func (c *Client) kwArgs(uid int64, model, method string, args []any, kwargs map[string]any) []any {
	return []any{c.config.DBName, uid, c.config.APIKey, model, method, args, kwargs}
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// call performs one JSON-RPC request and decodes its result into out.
func (c *Client) call(ctx context.Context, service, method string, args []any, out any) (err error) {
	label := service + "." + method
	if service == "object" && len(args) > 4 {
		label = fmt.Sprintf("%v.%v", args[3], args[4])
	}

	ctx, span := telemetry.StartClientSpan(ctx, "odoo "+label,
		attribute.String("rpc.system", "jsonrpc"),
		attribute.String("rpc.service", service),
		attribute.String("rpc.method", label),
	)
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.RecordERPCall(ctx, label, time.Since(start), err)
		}
		telemetry.EndSpan(span, err)
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", productsync.ErrTransport, err)
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return fmt.Errorf("odoo: encode %s: %w", label, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: create request: %w", productsync.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", productsync.ErrTransport, label, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %w", productsync.ErrTransport, label, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s: HTTP 401", errUnauthorized, label)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: %s: HTTP %d", productsync.ErrTransport, label, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(payload, &rpcResp); err != nil {
		return fmt.Errorf("%w: %s: invalid json: %w", productsync.ErrRemoteProtocol, label, err)
	}
	if rpcResp.Error != nil {
		if rpcResp.Error.unauthorized() {
			return fmt.Errorf("%w: %s: %s", errUnauthorized, label, rpcResp.Error.Error())
		}
		return fmt.Errorf("%w: %s: %s", productsync.ErrRemoteProtocol, label, rpcResp.Error.Error())
	}
	if len(rpcResp.Result) == 0 {
		return fmt.Errorf("%w: %s: response has neither result nor error", productsync.ErrRemoteProtocol, label)
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("%w: %s: unexpected result shape: %w", productsync.ErrRemoteProtocol, label, err)
	}
	return nil
}

// orderByIDs returns recs in the order of ids; ids without a record are dropped.
func orderByIDs[T any](recs []T, ids []int64, id func(T) int64) []T {
	byID := make(map[int64]T, len(recs))
	for _, r := range recs {
		byID[id(r)] = r
	}
	out := make([]T, 0, len(ids))
	for _, i := range ids {
		if r, ok := byID[i]; ok {
			out = append(out, r)
		}
	}
	return out
}
