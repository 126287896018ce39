package contentful

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/erp/catalogsync/internal/domain/productsync"
	"github.com/erp/catalogsync/internal/domain/shared"
)

const envPath = "/spaces/space1/environments/master"

// fakeCMS keeps entries in memory and records every call.
type fakeCMS struct {
	t       *testing.T
	mu      sync.Mutex
	entries map[string]map[string]any
	types   map[string]string
	version map[string]int
	calls   []string
}

func newFakeCMS(t *testing.T) *fakeCMS {
	return &fakeCMS{
		t:       t,
		entries: map[string]map[string]any{},
		types:   map[string]string{},
		version: map[string]int{},
	}
}

func (f *fakeCMS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+strings.TrimPrefix(r.URL.Path, envPath))
	assert.Equal(f.t, "Bearer mgmt-token", r.Header.Get("Authorization"))

	path := strings.TrimPrefix(r.URL.Path, envPath)
	if path == "/locales" {
		_, _ = w.Write([]byte(`{"items":[{"code":"en-US","name":"English","default":true},{"code":"de-DE","name":"German","default":false}]}`))
		return
	}

	rest := strings.TrimPrefix(path, "/entries/")
	id, action, _ := strings.Cut(rest, "/")
	switch {
	case r.Method == http.MethodGet:
		if _, ok := f.entries[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"sys":{"id":"NotFound"},"message":"The resource could not be found."}`))
			return
		}
		f.writeEntry(w, id)
	case r.Method == http.MethodPut && action == "":
		var body struct {
			Fields map[string]any `json:"fields"`
		}
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		if _, ok := f.entries[id]; ok {
			if r.Header.Get("X-Contentful-Version") != itoa(f.version[id]) {
				w.WriteHeader(http.StatusConflict)
				return
			}
		} else {
			assert.NotEmpty(f.t, r.Header.Get("X-Contentful-Content-Type"))
			f.types[id] = r.Header.Get("X-Contentful-Content-Type")
		}
		assert.Equal(f.t, managementType, r.Header.Get("Content-Type"))
		f.entries[id] = body.Fields
		f.version[id]++
		f.writeEntry(w, id)
	case r.Method == http.MethodPut && action == "published":
		assert.Equal(f.t, itoa(f.version[id]), r.Header.Get("X-Contentful-Version"))
		f.version[id]++
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete && action == "published":
		f.version[id]++
		f.writeEntry(w, id)
	case r.Method == http.MethodDelete:
		delete(f.entries, id)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeCMS) writeEntry(w http.ResponseWriter, id string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"sys":    map[string]any{"id": id, "type": "Entry", "version": f.version[id], "publishedVersion": f.version[id] - 1},
		"fields": f.entries[id],
	})
}

func itoa(n int) string { return strconv.Itoa(n) }

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{
		SpaceID:         "space1",
		ManagementToken: "mgmt-token",
		DeliveryToken:   "cdn-token",
		ManagementURL:   srv.URL,
		DeliveryURL:     srv.URL,
		RateLimit:       1000,
	}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return c
}

func committedShirt() productsync.CommittedProduct {
	return productsync.CommittedProduct{
		ID:          "prod_1",
		ExternalID:  "11",
		Title:       "T-Shirt",
		Description: "Soft cotton.\n\nMachine washable.",
		Handle:      "t-shirt-11",
		Options: []productsync.CommittedOption{{
			ID:    "opt_1",
			Title: "Size",
			Values: []productsync.CommittedOptionValue{
				{ID: "optval_1", Value: "S"},
				{ID: "optval_2", Value: "M"},
			},
		}},
		Variants: []productsync.CommittedVariant{
			{ID: "variant_1", Title: "T-Shirt (S)", SKU: "TS-S", OptionValueIDs: []string{"optval_1"}},
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{SpaceID: "s", ManagementToken: "t"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "master", cfg.Environment)
	assert.Equal(t, "en-US", cfg.DefaultLocale)
	assert.Equal(t, defaultManagementURL, cfg.ManagementURL)
	assert.Equal(t, defaultDeliveryURL, cfg.DeliveryURL)
	assert.Equal(t, defaultTimeout, cfg.Timeout)
	assert.Equal(t, float64(defaultRateLimit), cfg.RateLimit)

	assert.ErrorIs(t, (&Config{ManagementToken: "t"}).Validate(), ErrConfigMissingSpace)
	assert.ErrorIs(t, (&Config{SpaceID: "s"}).Validate(), ErrConfigMissingToken)
	assert.ErrorIs(t, (&Config{SpaceID: "s", ManagementToken: "t", ManagementURL: "api"}).Validate(), ErrConfigInvalidURL)
}

func TestClient_CreateProduct(t *testing.T) {
	cms := newFakeCMS(t)
	c := newTestClient(t, cms)

	created, err := c.CreateProduct(context.Background(), committedShirt())
	require.NoError(t, err)
	assert.True(t, created)

	assert.Equal(t, "productOptionValue", cms.types["optval_1"])
	assert.Equal(t, "productOption", cms.types["opt_1"])
	assert.Equal(t, "productVariant", cms.types["variant_1"])
	assert.Equal(t, "product", cms.types["prod_1"])

	product := cms.entries["prod_1"]
	assert.Equal(t, map[string]any{"en-US": "T-Shirt"}, product["title"])
	assert.Equal(t, map[string]any{"en-US": "t-shirt-11"}, product["handle"])
	variants := product["productVariants"].(map[string]any)["en-US"].([]any)
	require.Len(t, variants, 1)
	assert.Equal(t, "variant_1", variants[0].(map[string]any)["sys"].(map[string]any)["id"])

	doc := product["description"].(map[string]any)["en-US"].(map[string]any)
	assert.Equal(t, "document", doc["nodeType"])
	assert.Len(t, doc["content"], 2)

	option := cms.entries["opt_1"]
	values := option["values"].(map[string]any)["en-US"].([]any)
	assert.Len(t, values, 2)

	// The product entry is written before its links and updated after.
	assert.Contains(t, cms.calls, "PUT /entries/prod_1/published")
	assert.Equal(t, 3, cms.version["prod_1"])
}

func TestClient_CreateProduct_SkipsExisting(t *testing.T) {
	cms := newFakeCMS(t)
	cms.entries["prod_1"] = map[string]any{}
	cms.version["prod_1"] = 1
	c := newTestClient(t, cms)

	created, err := c.CreateProduct(context.Background(), committedShirt())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, []string{"GET /entries/prod_1"}, cms.calls)
}

func TestClient_CreateProduct_ReusesLeftoverChildren(t *testing.T) {
	cms := newFakeCMS(t)
	cms.entries["optval_1"] = map[string]any{}
	cms.version["optval_1"] = 2
	c := newTestClient(t, cms)

	created, err := c.CreateProduct(context.Background(), committedShirt())
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotContains(t, cms.calls, "PUT /entries/optval_1/published")
}

func TestClient_CreateProduct_RequiresID(t *testing.T) {
	c := newTestClient(t, newFakeCMS(t))
	p := committedShirt()
	p.ID = ""
	_, err := c.CreateProduct(context.Background(), p)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestClient_DeleteProduct(t *testing.T) {
	cms := newFakeCMS(t)
	c := newTestClient(t, cms)

	_, err := c.CreateProduct(context.Background(), committedShirt())
	require.NoError(t, err)
	require.Len(t, cms.entries, 5)

	require.NoError(t, c.DeleteProduct(context.Background(), "prod_1"))
	assert.Empty(t, cms.entries)
	assert.Contains(t, cms.calls, "DELETE /entries/prod_1/published")

	require.NoError(t, c.DeleteProduct(context.Background(), "prod_1"), "missing product")
}

func TestClient_Locales(t *testing.T) {
	c := newTestClient(t, newFakeCMS(t))
	locales, err := c.Locales(context.Background())
	require.NoError(t, err)
	require.Len(t, locales, 2)
	assert.Equal(t, "en-US", locales[0].Code)
	assert.True(t, locales[0].Default)
	assert.Equal(t, "German", locales[1].Name)
}

func TestClient_ProductContent(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer cdn-token", r.Header.Get("Authorization"))
		assert.Equal(t, envPath+"/entries/prod_1", r.URL.Path)
		if r.URL.Query().Get("locale") != "de-DE" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"sys":{"id":"prod_1"},"fields":{"title":"T-Shirt DE","handle":"t-shirt-11",
			"description":{"nodeType":"document","data":{},"content":[
				{"nodeType":"paragraph","data":{},"content":[{"nodeType":"text","value":"Weich ","marks":[],"data":{}},{"nodeType":"text","value":"und bequem.","marks":[],"data":{}}]},
				{"nodeType":"paragraph","data":{},"content":[{"nodeType":"text","value":"Waschbar.","marks":[],"data":{}}]}]}}}`))
	}))

	content, err := c.ProductContent(context.Background(), "prod_1", "de-DE")
	require.NoError(t, err)
	assert.Equal(t, "T-Shirt DE", content.Title)
	assert.Equal(t, "Weich und bequem.\n\nWaschbar.", content.Description)
	assert.Equal(t, "de-DE", content.Locale)

	_, err = c.ProductContent(context.Background(), "prod_1", "fr-FR")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestClient_ProductContent_NoDeliveryToken(t *testing.T) {
	c, err := NewClient(Config{SpaceID: "s", ManagementToken: "t"})
	require.NoError(t, err)
	_, err = c.ProductContent(context.Background(), "prod_1", "en-US")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestClient_RetriesAfterRateLimit(t *testing.T) {
	var calls int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("X-Contentful-RateLimit-Reset", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	var waited []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		waited = append(waited, d)
		return nil
	}

	_, err := c.Locales(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{2 * time.Second}, waited)
}

func TestClient_UpstreamError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"boom"}`))
	}))
	_, err := c.Locales(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrUpstream)
	assert.Equal(t, http.StatusInternalServerError, statusOf(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestRichText_RoundTrip(t *testing.T) {
	doc := richTextDocument("First.\n\n\n\nSecond line.")
	assert.Len(t, doc.Content, 2)
	assert.Equal(t, "First.\n\nSecond line.", doc.PlainText())

	var empty *richNode
	assert.Equal(t, "", empty.PlainText())
}
