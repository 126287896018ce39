package odoorest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/erp/catalogsync/internal/domain/erpadmin"
	"github.com/erp/catalogsync/internal/domain/shared"
)

type restServer struct {
	t        *testing.T
	connects atomic.Int32
	keys     []string
	handler  func(w http.ResponseWriter, r *http.Request, body map[string]any)
}

func newRestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, body map[string]any)) (*restServer, *Client) {
	t.Helper()
	s := &restServer{t: t, handler: handler}
	srv := httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		BaseURL:  srv.URL,
		Username: "admin@example.com",
		Password: "secret",
		DBName:   "shop",
		Timeout:  5 * time.Second,
	}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return s, c
}

func (s *restServer) serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/odoo_connect":
		assert.Equal(s.t, "admin@example.com", r.Header.Get("login"))
		assert.Equal(s.t, "secret", r.Header.Get("password"))
		assert.Equal(s.t, "shop", r.Header.Get("db"))
		n := s.connects.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"api-key": "key-" + string(rune('0'+n))})
	case "/send_request":
		assert.Equal(s.t, "product.template", r.URL.Query().Get("model"))
		assert.Equal(s.t, "admin@example.com", r.Header.Get("login"))
		s.keys = append(s.keys, r.Header.Get("api-key"))
		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			require.NoError(s.t, json.Unmarshal(raw, &body))
		}
		s.handler(w, r, body)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{BaseURL: "http://localhost:8069", Username: "u", Password: "p", DBName: "db"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, defaultTimeout, cfg.Timeout)
	assert.Equal(t, defaultMaxAuthRetries, cfg.MaxAuthRetries)

	bad := cfg
	bad.BaseURL = "localhost"
	assert.ErrorIs(t, bad.Validate(), ErrConfigInvalidURL)

	bad = cfg
	bad.Password = ""
	assert.ErrorIs(t, bad.Validate(), ErrConfigMissingPassword)
}

func TestClient_ListProducts(t *testing.T) {
	s, c := newRestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Empty(t, r.URL.Query().Get("Id"))
		assert.Equal(t, []any{"id", "name", "default_code", "list_price", "type"}, body["fields"])
		writeJSON(w, map[string]any{"records": []any{
			map[string]any{"id": 1, "name": "Mug", "default_code": "MUG", "list_price": 8.5, "type": "consu"},
			map[string]any{"id": 2, "name": "Desk", "default_code": false, "list_price": false, "type": false},
		}})
	})

	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "MUG", products[0].DefaultCode)
	assert.True(t, products[0].ListPrice.Equal(decimal.RequireFromString("8.5")))
	assert.Empty(t, products[1].DefaultCode)
	assert.True(t, products[1].ListPrice.IsZero())
	assert.Equal(t, erpadmin.DefaultProductType, products[1].Type)

	assert.EqualValues(t, 1, s.connects.Load())
	assert.Equal(t, []string{"key-1"}, s.keys)
}

func TestClient_ListProducts_NoRecords(t *testing.T) {
	_, c := newRestServer(t, func(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
		writeJSON(w, map[string]any{"message": "ok"})
	})
	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestClient_GetProduct(t *testing.T) {
	_, c := newRestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		switch r.URL.Query().Get("Id") {
		case "7":
			assert.Equal(t, []any{[]any{"id", "=", float64(7)}}, body["domain"])
			writeJSON(w, map[string]any{"records": []any{map[string]any{"id": 7, "name": "Mug", "list_price": 3}}})
		default:
			writeJSON(w, map[string]any{"records": []any{}})
		}
	})

	p, err := c.GetProduct(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)

	_, err = c.GetProduct(context.Background(), 8)
	assert.ErrorIs(t, err, erpadmin.ErrProductNotFound)

	_, err = c.GetProduct(context.Background(), 0)
	assert.ErrorIs(t, err, erpadmin.ErrInvalidProductID)
}

func TestClient_CreateProduct(t *testing.T) {
	_, c := newRestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, []any{"name", "default_code"}, body["fields"])
		values := body["values"].(map[string]any)
		assert.Equal(t, "Mug", values["name"])
		assert.Equal(t, "MUG", values["default_code"])
		assert.Equal(t, float64(0), values["list_price"])
		assert.Equal(t, "product", values["type"])
		writeJSON(w, map[string]any{"result": map[string]any{"id": 12, "name": "Mug", "default_code": "MUG", "list_price": 0, "type": "product"}})
	})

	p, err := c.CreateProduct(context.Background(), erpadmin.CreateProduct{Name: " Mug ", DefaultCode: "MUG"})
	require.NoError(t, err)
	assert.Equal(t, int64(12), p.ID)

	_, err = c.CreateProduct(context.Background(), erpadmin.CreateProduct{})
	assert.ErrorIs(t, err, erpadmin.ErrNameRequired)
}

func TestClient_CreateProduct_NoResult(t *testing.T) {
	_, c := newRestServer(t, func(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
		writeJSON(w, map[string]any{"result": map[string]any{}})
	})
	_, err := c.CreateProduct(context.Background(), erpadmin.CreateProduct{Name: "Mug"})
	assert.ErrorIs(t, err, shared.ErrUpstream)
}

func TestClient_UpdateProduct(t *testing.T) {
	_, c := newRestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "5", r.URL.Query().Get("Id"))
		assert.Equal(t, []any{"list_price"}, body["fields"])
		assert.Equal(t, map[string]any{"list_price": 9.99}, body["values"])
		writeJSON(w, map[string]any{"result": map[string]any{"id": 5, "name": "Mug", "list_price": 9.99}})
	})

	price := decimal.RequireFromString("9.99")
	p, err := c.UpdateProduct(context.Background(), 5, erpadmin.UpdateProduct{ListPrice: &price})
	require.NoError(t, err)
	assert.True(t, p.ListPrice.Equal(price))

	_, err = c.UpdateProduct(context.Background(), 5, erpadmin.UpdateProduct{})
	assert.ErrorIs(t, err, erpadmin.ErrEmptyUpdate)
}

func TestClient_DeleteProduct(t *testing.T) {
	_, c := newRestServer(t, func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		assert.Equal(t, http.MethodDelete, r.Method)
		success := r.URL.Query().Get("Id") == "3"
		writeJSON(w, map[string]any{"result": map[string]any{"success": success}})
	})

	require.NoError(t, c.DeleteProduct(context.Background(), 3))
	assert.ErrorIs(t, c.DeleteProduct(context.Background(), 4), shared.ErrUpstream)
}

func TestClient_ReauthenticatesOn401(t *testing.T) {
	var calls atomic.Int32
	s, c := newRestServer(t, func(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]any{"records": []any{}})
	})

	_, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, s.connects.Load())
	assert.Equal(t, []string{"key-1", "key-2"}, s.keys)
}

func TestClient_AuthRetriesBounded(t *testing.T) {
	s, c := newRestServer(t, func(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.ListProducts(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, erpadmin.ErrUpstreamAuth)
	assert.EqualValues(t, 3, s.connects.Load(), "initial key plus two re-authentications")
	assert.Len(t, s.keys, 3)
}

func TestClient_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name    string
		respond func(w http.ResponseWriter)
	}{
		{"server error", func(w http.ResponseWriter) { w.WriteHeader(http.StatusInternalServerError) }},
		{"error field", func(w http.ResponseWriter) { writeJSON(w, map[string]any{"error": "Access Denied"}) }},
		{"invalid json", func(w http.ResponseWriter) { _, _ = w.Write([]byte("<html>")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newRestServer(t, func(w http.ResponseWriter, _ *http.Request, _ map[string]any) { tt.respond(w) })
			_, err := c.ListProducts(context.Background())
			assert.ErrorIs(t, err, shared.ErrUpstream)
		})
	}
}

func TestClient_ConnectWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"error": "invalid login"})
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, Username: "u", Password: "p", DBName: "db"})
	require.NoError(t, err)

	_, err = c.ListProducts(context.Background())
	assert.ErrorIs(t, err, erpadmin.ErrUpstreamAuth)
}
