package odoo

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMany2one_Shapes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want many2one
	}{
		{"pair", `[2, "USD"]`, many2one{ID: 2, DisplayName: "USD", Name: "USD"}},
		{"object", `{"id": 2, "display_name": "US Dollar", "name": "USD"}`, many2one{ID: 2, DisplayName: "US Dollar", Name: "USD"}},
		{"false", `false`, many2one{}},
		{"null", `null`, many2one{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m many2one
			require.NoError(t, json.Unmarshal([]byte(tt.in), &m))
			assert.Equal(t, tt.want, m)
		})
	}

	var m many2one
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &m))
	assert.Error(t, json.Unmarshal([]byte(`"USD"`), &m))
}

func TestScalarDecoders(t *testing.T) {
	var rec struct {
		Note  text   `json:"note"`
		Name  text   `json:"name"`
		Price number `json:"price"`
		Qty   number `json:"qty"`
		IDs   idList `json:"ids"`
		Nest  idList `json:"nest"`
		Empty idList `json:"empty"`
	}
	payload := `{"note": false, "name": "Mug", "price": 12.345, "qty": false,
		"ids": [1, 2], "nest": [{"id": 3}, {"id": 4}], "empty": false}`
	require.NoError(t, json.Unmarshal([]byte(payload), &rec))

	assert.Equal(t, text(""), rec.Note)
	assert.Equal(t, text("Mug"), rec.Name)
	assert.True(t, rec.Price.Equal(decimal.RequireFromString("12.345")))
	assert.True(t, rec.Qty.IsZero())
	assert.Equal(t, idList{1, 2}, rec.IDs)
	assert.Equal(t, idList{3, 4}, rec.Nest)
	assert.Nil(t, rec.Empty)
}

func TestRecords_SkipsPlainIDs(t *testing.T) {
	var lines records[attributeLineRecord]
	require.NoError(t, json.Unmarshal([]byte(`[4, 5]`), &lines))
	assert.Empty(t, lines)

	require.NoError(t, json.Unmarshal([]byte(`[{"id": 4, "attribute_id": [1, "Color"], "value_ids": [{"id": 9, "display_name": "Red"}]}]`), &lines))
	require.Len(t, lines, 1)
	assert.Equal(t, "Color", lines[0].Attribute.DisplayName)
	require.Len(t, lines[0].Values, 1)
	assert.Equal(t, text("Red"), lines[0].Values[0].DisplayName)
}

func TestSpecifications(t *testing.T) {
	tmpl := templateSpecification()
	assert.Contains(t, tmpl, "list_price")
	assert.Contains(t, tmpl, "attribute_line_ids")
	lines := tmpl["attribute_line_ids"].(spec)["fields"].(spec)
	assert.Equal(t, spec{"show_attribute": false}, lines["value_ids"].(spec)["context"])

	variant := variantSpecification()
	assert.Contains(t, variant, "lst_price")
	assert.Contains(t, variant, "product_template_variant_value_ids")

	fields := templateReadFields()
	assert.Contains(t, fields, "currency_id")
	assert.NotSame(t, &templateScalarFields[0], &fields[0])
}

func TestRPCError_Unauthorized(t *testing.T) {
	denied := &rpcError{Code: 200, Message: "Odoo Server Error"}
	denied.Data.Name = "odoo.exceptions.AccessDenied"
	assert.True(t, denied.unauthorized())

	expired := &rpcError{Code: 100, Message: "Odoo Session Expired"}
	assert.True(t, expired.unauthorized())

	validation := &rpcError{Code: 200, Message: "Odoo Server Error"}
	validation.Data.Name = "odoo.exceptions.ValidationError"
	validation.Data.Message = "bad domain"
	assert.False(t, validation.unauthorized())
	assert.Contains(t, validation.Error(), "bad domain")
}
