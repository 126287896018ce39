package odoo

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// JSON-RPC envelope
// ---------------------------------------------------------------------------

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      uint64    `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

func (e *rpcError) Error() string {
	if e.Data.Message != "" {
		return fmt.Sprintf("%s (%s): %s", e.Message, e.Data.Name, e.Data.Message)
	}
	return fmt.Sprintf("%d %s", e.Code, e.Message)
}

// unauthorized reports whether the server rejected the credentials or session.
func (e *rpcError) unauthorized() bool {
	switch e.Data.Name {
	case "odoo.exceptions.AccessDenied", "odoo.http.SessionExpiredException":
		return true
	}
	return e.Code == 100
}

// ---------------------------------------------------------------------------
// Field decoders
// ---------------------------------------------------------------------------

// text decodes an ERP char/text/binary field. Empty values arrive as false.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if isEmptyValue(b) {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = text(s)
	return nil
}

// number decodes an ERP float field, treating false as zero.
type number struct {
	decimal.Decimal
}

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if isEmptyValue(b) {
		n.Decimal = decimal.Zero
		return nil
	}
	return n.Decimal.UnmarshalJSON(b)
}

// many2one decodes a relational reference in both shapes the ERP produces:
// web_read returns {"id": 1, "display_name": "USD"}, read returns [1, "USD"].
type many2one struct {
	ID          int64
	DisplayName string
	Name        string
}

func (m *many2one) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*m = many2one{}
	switch {
	case isEmptyValue(b):
		return nil
	case b[0] == '[':
		var pair []json.RawMessage
		if err := json.Unmarshal(b, &pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("many2one: expected [id, name], got %d elements", len(pair))
		}
		var name text
		if err := json.Unmarshal(pair[0], &m.ID); err != nil {
			return err
		}
		if err := json.Unmarshal(pair[1], &name); err != nil {
			return err
		}
		m.DisplayName = string(name)
		m.Name = string(name)
		return nil
	case b[0] == '{':
		var obj struct {
			ID          int64 `json:"id"`
			DisplayName text  `json:"display_name"`
			Name        text  `json:"name"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		m.ID = obj.ID
		m.DisplayName = string(obj.DisplayName)
		m.Name = string(obj.Name)
		return nil
	default:
		return fmt.Errorf("many2one: unexpected value %s", b)
	}
}

// idList decodes an x2many field returned either as ids or as records with an id.
type idList []int64

func (l *idList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*l = nil
	if isEmptyValue(b) {
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	ids := make([]int64, 0, len(raw))
	for _, r := range raw {
		r = bytes.TrimSpace(r)
		if len(r) > 0 && r[0] == '{' {
			var rec struct {
				ID int64 `json:"id"`
			}
			if err := json.Unmarshal(r, &rec); err != nil {
				return err
			}
			ids = append(ids, rec.ID)
			continue
		}
		var id int64
		if err := json.Unmarshal(r, &id); err != nil {
			return err
		}
		ids = append(ids, id)
	}
	*l = ids
	return nil
}

// records decodes an x2many field expanded by web_read. Plain id lists
// (returned by read) decode to no records.
type records[T any] []T

func (r *records[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*r = nil
	if isEmptyValue(b) {
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make([]T, 0, len(raw))
	for _, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			continue
		}
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			return err
		}
		out = append(out, v)
	}
	*r = out
	return nil
}

func isEmptyValue(b []byte) bool {
	return len(b) == 0 || bytes.Equal(b, []byte("false")) || bytes.Equal(b, []byte("null"))
}

// ---------------------------------------------------------------------------
// Records
// ---------------------------------------------------------------------------

type attributeValueRecord struct {
	ID          int64 `json:"id"`
	DisplayName text  `json:"display_name"`
}

type attributeLineRecord struct {
	ID        int64                         `json:"id"`
	Attribute many2one                      `json:"attribute_id"`
	Values    records[attributeValueRecord] `json:"value_ids"`
}

type variantValueRecord struct {
	ID        int64    `json:"id"`
	Name      text     `json:"name"`
	Attribute many2one `json:"attribute_id"`
}

type templateRecord struct {
	ID              int64                        `json:"id"`
	DisplayName     text                         `json:"display_name"`
	Name            text                         `json:"name"`
	IsPublished     bool                         `json:"is_published"`
	WebsiteURL      text                         `json:"website_url"`
	ListPrice       number                       `json:"list_price"`
	Description     text                         `json:"description"`
	DescriptionSale text                         `json:"description_sale"`
	QtyAvailable    number                       `json:"qty_available"`
	TaxIDs          idList                       `json:"taxes_id"`
	HSCode          text                         `json:"hs_code"`
	Image1920       text                         `json:"image_1920"`
	Image1024       text                         `json:"image_1024"`
	Image512        text                         `json:"image_512"`
	Image256        text                         `json:"image_256"`
	Image128        text                         `json:"image_128"`
	Active          bool                         `json:"active"`
	Currency        many2one                     `json:"currency_id"`
	VariantIDs      idList                       `json:"product_variant_ids"`
	AttributeLines  records[attributeLineRecord] `json:"attribute_line_ids"`
}

type variantRecord struct {
	ID          int64                       `json:"id"`
	DisplayName text                        `json:"display_name"`
	Price       number                      `json:"lst_price"`
	DefaultCode text                        `json:"default_code"`
	Active      bool                        `json:"active"`
	Currency    many2one                    `json:"currency_id"`
	Template    many2one                    `json:"product_tmpl_id"`
	Values      records[variantValueRecord] `json:"product_template_variant_value_ids"`
}

// ---------------------------------------------------------------------------
// Field selections
// ---------------------------------------------------------------------------

var templateScalarFields = []string{
	"id", "display_name", "name", "is_published", "website_url", "list_price",
	"description", "description_sale", "qty_available", "taxes_id", "hs_code",
	"image_1920", "image_1024", "image_512", "image_256", "image_128", "active",
}

var variantScalarFields = []string{
	"id", "display_name", "lst_price", "default_code", "active",
}

type spec map[string]any

func scalarSpec(fields []string) spec {
	s := make(spec, len(fields))
	for _, f := range fields {
		s[f] = spec{}
	}
	return s
}

var currencySpec = spec{"fields": spec{"display_name": spec{}, "name": spec{}}}

// templateSpecification is the web_read specification of product.template.
func templateSpecification() spec {
	s := scalarSpec(templateScalarFields)
	s["currency_id"] = currencySpec
	s["product_variant_ids"] = spec{}
	s["attribute_line_ids"] = spec{
		"fields": spec{
			"attribute_id": spec{"fields": spec{"display_name": spec{}}},
			"value_ids": spec{
				"fields":  spec{"display_name": spec{}},
				"context": spec{"show_attribute": false},
			},
		},
	}
	return s
}

// variantSpecification is the web_read specification of product.product.
func variantSpecification() spec {
	s := scalarSpec(variantScalarFields)
	s["currency_id"] = currencySpec
	s["product_tmpl_id"] = spec{"fields": spec{"display_name": spec{}}}
	s["product_template_variant_value_ids"] = spec{
		"fields": spec{
			"name":         spec{},
			"attribute_id": spec{"fields": spec{"display_name": spec{}}},
		},
		"context": spec{"show_attribute": false},
	}
	return s
}

func templateReadFields() []string {
	return append(append([]string{}, templateScalarFields...), "currency_id", "product_variant_ids", "attribute_line_ids")
}

func variantReadFields() []string {
	return append(append([]string{}, variantScalarFields...), "currency_id", "product_tmpl_id", "product_template_variant_value_ids")
}
