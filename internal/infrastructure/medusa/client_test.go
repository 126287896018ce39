package medusa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/erp/catalogsync/internal/domain/productsync"
	"github.com/erp/catalogsync/internal/domain/shared"
)

func newTestCatalog(t *testing.T, handler http.HandlerFunc) *Catalog {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "sk_test", user)
		assert.Empty(t, pass)
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := NewCatalog(Config{BaseURL: srv.URL, APIKey: "sk_test"}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return c
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{BaseURL: "https://shop.example.com", APIKey: "sk"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, defaultTimeout, cfg.Timeout)

	assert.ErrorIs(t, (&Config{BaseURL: "shop", APIKey: "sk"}).Validate(), ErrConfigInvalidURL)
	assert.ErrorIs(t, (&Config{BaseURL: "https://shop.example.com"}).Validate(), ErrConfigMissingKey)
}

func TestCatalog_QueryProducts(t *testing.T) {
	c := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/products", r.URL.Path)
		assert.Equal(t, []string{"10", "11"}, r.URL.Query()["external_id[]"])
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.Equal(t, existingProductFields, r.URL.Query().Get("fields"))
		_, _ = w.Write([]byte(`{"products":[{"id":"prod_1","external_id":"11","variants":[{"id":"variant_1","sku":"TS-S"},{"id":"variant_2","sku":null}]}],"count":1}`))
	})

	got, err := c.QueryProducts(context.Background(), []string{"10", "11"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "11", got[0].ExternalID)
	id, ok := got[0].VariantIDBySKU("TS-S")
	assert.True(t, ok)
	assert.Equal(t, "variant_1", id)
	assert.Equal(t, "", got[0].Variants[1].SKU)
}

func TestCatalog_QueryProducts_Failure(t *testing.T) {
	c := newTestCatalog(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"unauthorized","message":"Unauthorized"}`))
	})

	_, err := c.QueryProducts(context.Background(), []string{"1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, productsync.ErrCatalogQuery)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Contains(t, err.Error(), "Unauthorized")
}

func TestCatalog_StoreRefs(t *testing.T) {
	c := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin/stores":
			_, _ = w.Write([]byte(`{"stores":[{"id":"store_1","default_sales_channel_id":"sc_1"}]}`))
		case "/admin/shipping-profiles":
			assert.Equal(t, "1", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(`{"shipping_profiles":[{"id":"sp_1"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	refs, err := c.StoreRefs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, productsync.StoreRefs{SalesChannelID: "sc_1", ShippingProfileID: "sp_1"}, refs)
}

func TestCatalog_StoreRefs_Missing(t *testing.T) {
	tests := []struct {
		name     string
		stores   string
		profiles string
	}{
		{"no store", `{"stores":[]}`, `{"shipping_profiles":[{"id":"sp_1"}]}`},
		{"no sales channel", `{"stores":[{"id":"store_1","default_sales_channel_id":null}]}`, `{"shipping_profiles":[{"id":"sp_1"}]}`},
		{"no shipping profile", `{"stores":[{"id":"store_1","default_sales_channel_id":"sc_1"}]}`, `{"shipping_profiles":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/admin/stores" {
					_, _ = w.Write([]byte(tt.stores))
					return
				}
				_, _ = w.Write([]byte(tt.profiles))
			})
			_, err := c.StoreRefs(context.Background())
			assert.ErrorIs(t, err, productsync.ErrStoreConfig)
		})
	}
}

func sampleProduct() productsync.DomainProduct {
	return productsync.DomainProduct{
		ExternalID:  "11",
		Title:       "T-Shirt",
		Description: "Cotton tee",
		Status:      productsync.ProductStatusPublished,
		Handle:      "t-shirt-11",
		Options:     []productsync.ProductOption{{Title: "Size", Values: []string{"S", "M"}}},
		Variants: []productsync.DomainVariant{{
			Title:    "T-Shirt (S)",
			SKU:      "TS-S",
			Options:  map[string]string{"Size": "S"},
			Prices:   []productsync.Price{{Amount: decimal.RequireFromString("19.50"), CurrencyCode: "usd"}},
			Metadata: map[string]string{productsync.MetadataExternalID: "101"},
		}},
		ShippingProfileID: "sp_1",
		SalesChannelIDs:   []string{"sc_1"},
	}
}

func TestCatalog_CreateProducts(t *testing.T) {
	c := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/products/batch", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "update")
		create := body["create"].([]any)
		require.Len(t, create, 1)
		p := create[0].(map[string]any)
		assert.Equal(t, "11", p["external_id"])
		assert.Equal(t, "published", p["status"])
		assert.Equal(t, []any{map[string]any{"id": "sc_1"}}, p["sales_channels"])
		assert.NotContains(t, p, "id")
		v := p["variants"].([]any)[0].(map[string]any)
		assert.Equal(t, false, v["manage_inventory"])
		assert.Equal(t, []any{map[string]any{"amount": 19.5, "currency_code": "usd"}}, v["prices"])

		_, _ = w.Write([]byte(`{"created":[{"id":"prod_1","external_id":"11","title":"T-Shirt","description":"Cotton tee","handle":"t-shirt-11","status":"published",
			"options":[{"id":"opt_1","title":"Size","values":[{"id":"optval_1","value":"S"},{"id":"optval_2","value":"M"}]}],
			"variants":[{"id":"variant_1","title":"T-Shirt (S)","sku":"TS-S","options":[{"id":"optval_1","value":"S"}]}]}],"updated":[]}`))
	})

	got, err := c.CreateProducts(context.Background(), []productsync.DomainProduct{sampleProduct()})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "prod_1", got[0].ID)
	assert.Equal(t, productsync.ProductStatusPublished, got[0].Status)
	require.Len(t, got[0].Options, 1)
	assert.Len(t, got[0].Options[0].Values, 2)
	assert.Equal(t, []string{"optval_1"}, got[0].Variants[0].OptionValueIDs)
}

func TestCatalog_UpdateProducts(t *testing.T) {
	c := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		var body batchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Update, 1)
		assert.Equal(t, "prod_1", body.Update[0].ID)
		assert.Equal(t, "variant_1", body.Update[0].Variants[0].ID)
		_, _ = w.Write([]byte(`{"created":[],"updated":[{"id":"prod_1","external_id":"11","title":"T-Shirt","handle":"t-shirt-11","status":"published"}]}`))
	})

	p := sampleProduct()
	p.ID = "prod_1"
	p.Variants[0].ID = "variant_1"
	got, err := c.UpdateProducts(context.Background(), []productsync.DomainProduct{p})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "11", got[0].ExternalID)

	_, err = c.UpdateProducts(context.Background(), []productsync.DomainProduct{sampleProduct()})
	assert.ErrorIs(t, err, productsync.ErrDispatch)
}

func TestCatalog_Batch_Rejected(t *testing.T) {
	c := newTestCatalog(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"invalid_data","message":"Product with handle t-shirt-11 already exists"}`))
	})

	_, err := c.CreateProducts(context.Background(), []productsync.DomainProduct{sampleProduct()})
	require.Error(t, err)
	assert.ErrorIs(t, err, productsync.ErrDispatch)
	assert.Equal(t, "dispatch", productsync.ErrorKind(err))
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
}

func TestCatalog_EmptyBatchesSkipRequests(t *testing.T) {
	c := newTestCatalog(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	})
	created, err := c.CreateProducts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, created)
	existing, err := c.QueryProducts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, existing)
}

func TestCatalog_ProductByHandle(t *testing.T) {
	c := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("handle") == "t-shirt-11" {
			_, _ = w.Write([]byte(`{"products":[{"id":"prod_1","title":"T-Shirt","handle":"t-shirt-11","status":"published"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"products":[]}`))
	})

	p, err := c.ProductByHandle(context.Background(), "t-shirt-11")
	require.NoError(t, err)
	assert.Equal(t, "prod_1", p.ID)

	_, err = c.ProductByHandle(context.Background(), "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
