package odoorest

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/erp/catalogsync/internal/domain/erpadmin"
)

var productFields = []string{"id", "name", "default_code", "list_price", "type"}

// field decodes a value the ERP reports as false when unset.
type field[T any] struct {
	Value T
}

func (f *field[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("false")) || bytes.Equal(b, []byte("null")) {
		var zero T
		f.Value = zero
		return nil
	}
	return json.Unmarshal(b, &f.Value)
}

type productRecord struct {
	ID          int64                  `json:"id"`
	Name        field[string]          `json:"name"`
	DefaultCode field[string]          `json:"default_code"`
	ListPrice   field[decimal.Decimal] `json:"list_price"`
	Type        field[string]          `json:"type"`
}

func (r productRecord) toProduct() erpadmin.Product {
	p := erpadmin.Product{
		ID:          r.ID,
		Name:        r.Name.Value,
		DefaultCode: r.DefaultCode.Value,
		ListPrice:   r.ListPrice.Value,
		Type:        r.Type.Value,
	}
	if p.Type == "" {
		p.Type = erpadmin.DefaultProductType
	}
	return p
}

// envelope is the common response shape of /send_request.
type envelope struct {
	Error   json.RawMessage `json:"error"`
	Records []productRecord `json:"records"`
	Result  json.RawMessage `json:"result"`
}

func (e envelope) failed() bool {
	b := bytes.TrimSpace(e.Error)
	return len(b) > 0 && !bytes.Equal(b, []byte("null")) && !bytes.Equal(b, []byte("false"))
}

type connectResponse struct {
	APIKey string          `json:"api-key"`
	Error  json.RawMessage `json:"error"`
}

type deleteResult struct {
	Success bool `json:"success"`
}

// writeRequest is the body of create and update calls.
type writeRequest struct {
	Fields []string       `json:"fields"`
	Values map[string]any `json:"values"`
}

type readRequest struct {
	Fields []string `json:"fields"`
	Domain []any    `json:"domain"`
}
