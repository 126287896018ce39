package productsync

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRefs = StoreRefs{SalesChannelID: "sc_01", ShippingProfileID: "sp_01"}

func usd() CurrencyRef {
	return CurrencyRef{ID: 2, Code: "USD", DisplayName: "USD"}
}

func shirtProduct() ExternalProduct {
	return ExternalProduct{
		ID:          42,
		DisplayName: "Shirt",
		IsPublished: true,
		WebsiteURL:  "/shop/shirt-42",
		Price:       decimal.RequireFromString("19.90"),
		Description: "Cotton shirt",
		HSCode:      "6205.20",
		Currency:    usd(),
		AttributeLines: []AttributeLine{
			{Name: "Color", Values: []string{"Blue", "Red"}},
			{Name: "Size", Values: []string{"M", "L"}},
		},
		Variants: []ExternalVariant{
			{
				ID:          101,
				DisplayName: "[SHIRT-BL-M] Shirt (Blue, M)",
				SKU:         "SHIRT-BL-M",
				Price:       decimal.RequireFromString("19.90"),
				Currency:    usd(),
				Assignments: []AttributeValue{{Attribute: "Color", Value: "Blue"}, {Attribute: "Size", Value: "M"}},
			},
			{
				ID:          102,
				DisplayName: "[SHIRT-RD-L] Shirt (Red, L)",
				SKU:         "SHIRT-RD-L",
				Price:       decimal.RequireFromString("21.50"),
				Currency:    usd(),
				Assignments: []AttributeValue{{Attribute: "Color", Value: "Red"}, {Attribute: "Size", Value: "L"}},
			},
		},
	}
}

// ---------------------------------------------------------------------------
// Product-level rules
// ---------------------------------------------------------------------------

func TestMapProduct_CreatePath(t *testing.T) {
	p, err := MapProduct(shirtProduct(), nil, testRefs)
	require.NoError(t, err)

	assert.Empty(t, p.ID)
	assert.False(t, p.IsUpdate())
	assert.Equal(t, "42", p.ExternalID)
	assert.Equal(t, "Shirt", p.Title)
	assert.Equal(t, "Cotton shirt", p.Description)
	assert.Equal(t, ProductStatusPublished, p.Status)
	assert.Equal(t, "shirt-42", p.Handle)
	assert.Equal(t, "6205.20", p.HSCode)
	assert.Equal(t, "sp_01", p.ShippingProfileID)
	assert.Equal(t, []string{"sc_01"}, p.SalesChannelIDs)
	assert.Equal(t, []ProductOption{
		{Title: "Color", Values: []string{"Blue", "Red"}},
		{Title: "Size", Values: []string{"M", "L"}},
	}, p.Options)
	require.Len(t, p.Variants, 2)
	for _, v := range p.Variants {
		assert.Empty(t, v.ID)
		assert.False(t, v.ManageInventory)
		assert.Len(t, v.Options, len(p.Options))
	}
}

func TestMapProduct_Status(t *testing.T) {
	ext := shirtProduct()
	ext.IsPublished = false

	p, err := MapProduct(ext, nil, testRefs)
	require.NoError(t, err)
	assert.Equal(t, ProductStatusDraft, p.Status)
}

func TestMapProduct_DescriptionFallback(t *testing.T) {
	tests := []struct {
		name        string
		description string
		sale        string
		expected    string
	}{
		{"primary wins", "Primary", "Sale", "Primary"},
		{"sale fallback", "", "Sale", "Sale"},
		{"empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := shirtProduct()
			ext.Description = tt.description
			ext.SaleDescription = tt.sale

			p, err := MapProduct(ext, nil, testRefs)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.Description)
		})
	}
}

func TestMapProduct_Handle(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"/shop/blue-shirt-7", "blue-shirt-7"},
		{"blue-shirt-7", "blue-shirt-7"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			ext := shirtProduct()
			ext.WebsiteURL = tt.url

			p, err := MapProduct(ext, nil, testRefs)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.Handle)
		})
	}
}

func TestMapProduct_ImagesFromUploadedURLs(t *testing.T) {
	ext := shirtProduct()
	ext.ImageURLs = []string{"https://cdn/p/42/1920.png", "https://cdn/p/42/512.png"}

	p, err := MapProduct(ext, nil, testRefs)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/p/42/1920.png", p.Thumbnail)
	assert.Equal(t, ext.ImageURLs, p.Images)
}

func TestMapProduct_InvalidID(t *testing.T) {
	ext := shirtProduct()
	ext.ID = 0

	_, err := MapProduct(ext, nil, testRefs)
	assert.ErrorIs(t, err, ErrMapping)
}

func TestMapProduct_AttributeLineWithoutValues(t *testing.T) {
	ext := shirtProduct()
	ext.AttributeLines = append(ext.AttributeLines, AttributeLine{Name: "Fit"})

	_, err := MapProduct(ext, nil, testRefs)
	assert.ErrorIs(t, err, ErrMapping)
}

// ---------------------------------------------------------------------------
// Variant rules
// ---------------------------------------------------------------------------

func TestMapProduct_TitleStripping(t *testing.T) {
	ext := shirtProduct()
	ext.AttributeLines = nil
	ext.Variants = []ExternalVariant{{
		ID:          7,
		DisplayName: "[SKU123] Blue Shirt",
		SKU:         "SKU123",
		Price:       decimal.NewFromInt(10),
		Currency:    usd(),
	}}

	p, err := MapProduct(ext, nil, testRefs)
	require.NoError(t, err)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, "Blue Shirt", p.Variants[0].Title)
	assert.Equal(t, "SKU123", p.Variants[0].SKU)
}

func TestMapProduct_TitleWithoutSKUUnchanged(t *testing.T) {
	ext := shirtProduct()
	ext.Variants[0].SKU = ""
	ext.Variants[0].DisplayName = "Shirt (Blue, M)"

	p, err := MapProduct(ext, nil, testRefs)
	require.NoError(t, err)
	assert.Equal(t, "Shirt (Blue, M)", p.Variants[0].Title)
}

func TestMapProduct_CurrencyNormalization(t *testing.T) {
	p, err := MapProduct(shirtProduct(), nil, testRefs)
	require.NoError(t, err)

	require.Len(t, p.Variants[0].Prices, 1)
	assert.Equal(t, "usd", p.Variants[0].Prices[0].CurrencyCode)
	assert.True(t, decimal.RequireFromString("19.90").Equal(p.Variants[0].Prices[0].Amount))
	assert.True(t, decimal.RequireFromString("21.50").Equal(p.Variants[1].Prices[0].Amount))
}

func TestMapProduct_VariantCurrencyFallsBackToProduct(t *testing.T) {
	ext := shirtProduct()
	ext.Variants[0].Currency = CurrencyRef{}
	ext.Currency = CurrencyRef{DisplayName: "EUR"}

	p, err := MapProduct(ext, nil, testRefs)
	require.NoError(t, err)
	assert.Equal(t, "eur", p.Variants[0].Prices[0].CurrencyCode)
}

func TestMapProduct_MissingCurrency(t *testing.T) {
	ext := shirtProduct()
	ext.Variants[0].Currency = CurrencyRef{}
	ext.Currency = CurrencyRef{}

	_, err := MapProduct(ext, nil, testRefs)
	assert.ErrorIs(t, err, ErrMapping)
}

func TestMapProduct_VariantMetadataAndSelection(t *testing.T) {
	p, err := MapProduct(shirtProduct(), nil, testRefs)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"external_id": "101"}, p.Variants[0].Metadata)
	assert.Equal(t, map[string]string{"Color": "Blue", "Size": "M"}, p.Variants[0].Options)
	assert.Equal(t, map[string]string{"Color": "Red", "Size": "L"}, p.Variants[1].Options)
}

func TestMapProduct_VariantWithoutAssignmentsUsesFirstValues(t *testing.T) {
	ext := shirtProduct()
	ext.Variants[1].Assignments = nil

	p, err := MapProduct(ext, nil, testRefs)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Color": "Blue", "Size": "M"}, p.Variants[1].Options)
}

func TestMapProduct_PartialAssignmentsFilledWithDefaults(t *testing.T) {
	ext := shirtProduct()
	ext.Variants[1].Assignments = []AttributeValue{{Attribute: "Size", Value: "L"}}

	p, err := MapProduct(ext, nil, testRefs)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Color": "Blue", "Size": "L"}, p.Variants[1].Options)
}

func TestMapProduct_UnknownAssignment(t *testing.T) {
	tests := []struct {
		name       string
		assignment AttributeValue
	}{
		{"unknown attribute", AttributeValue{Attribute: "Material", Value: "Wool"}},
		{"unknown value", AttributeValue{Attribute: "Color", Value: "Green"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := shirtProduct()
			ext.Variants[0].Assignments = []AttributeValue{tt.assignment}

			_, err := MapProduct(ext, nil, testRefs)
			assert.ErrorIs(t, err, ErrMapping)
		})
	}
}

// ---------------------------------------------------------------------------
// Default synthesis
// ---------------------------------------------------------------------------

func TestMapProduct_DefaultSynthesis(t *testing.T) {
	ext := ExternalProduct{
		ID:          5,
		DisplayName: "Gift Card",
		Price:       decimal.NewFromInt(25),
		Currency:    usd(),
		Variants: []ExternalVariant{{
			ID:          50,
			DisplayName: "Gift Card",
			Price:       decimal.NewFromInt(25),
			Currency:    usd(),
		}},
	}

	p, err := MapProduct(ext, nil, testRefs)
	require.NoError(t, err)

	assert.Equal(t, []ProductOption{{Title: "Default", Values: []string{"Default"}}}, p.Options)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, map[string]string{"Default": "Default"}, p.Variants[0].Options)
}

func TestMapProduct_NoVariantsSynthesizesDefaultVariant(t *testing.T) {
	ext := ExternalProduct{
		ID:          9,
		DisplayName: "Service",
		Price:       decimal.RequireFromString("99.00"),
		Currency:    CurrencyRef{DisplayName: "VND"},
	}

	p, err := MapProduct(ext, nil, testRefs)
	require.NoError(t, err)

	require.Len(t, p.Variants, 1)
	v := p.Variants[0]
	assert.Empty(t, v.ID)
	assert.Equal(t, "Default", v.Title)
	assert.Equal(t, map[string]string{"Default": "Default"}, v.Options)
	assert.Equal(t, "vnd", v.Prices[0].CurrencyCode)
	assert.True(t, decimal.RequireFromString("99").Equal(v.Prices[0].Amount))
	assert.Equal(t, map[string]string{"external_id": "9"}, v.Metadata)
	assert.False(t, v.ManageInventory)
}

func TestMapProduct_NoVariantsWithAttributeLines(t *testing.T) {
	ext := shirtProduct()
	ext.Variants = nil

	p, err := MapProduct(ext, nil, testRefs)
	require.NoError(t, err)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, map[string]string{"Color": "Blue", "Size": "M"}, p.Variants[0].Options)
}

// ---------------------------------------------------------------------------
// Update path
// ---------------------------------------------------------------------------

func TestMapProduct_UpdatePathCopiesIDs(t *testing.T) {
	match := &ExistingProduct{
		ID:         "prod_42",
		ExternalID: "42",
		Variants: []ExistingVariant{
			{ID: "variant_a", SKU: "SHIRT-BL-M"},
			{ID: "variant_z", SKU: "DISCONTINUED"},
		},
	}

	p, err := MapProduct(shirtProduct(), match, testRefs)
	require.NoError(t, err)

	assert.Equal(t, "prod_42", p.ID)
	assert.True(t, p.IsUpdate())
	assert.Equal(t, "variant_a", p.Variants[0].ID)
	assert.Empty(t, p.Variants[1].ID, "variant without SKU match is inserted as new")
}

func TestMapProduct_UpdatePathDefaultVariantTakesFirstExisting(t *testing.T) {
	ext := ExternalProduct{ID: 9, DisplayName: "Service", Currency: usd(), Price: decimal.NewFromInt(1)}
	match := &ExistingProduct{ID: "prod_9", ExternalID: "9", Variants: []ExistingVariant{{ID: "variant_9"}}}

	p, err := MapProduct(ext, match, testRefs)
	require.NoError(t, err)
	assert.Equal(t, "variant_9", p.Variants[0].ID)
}

func TestMapProduct_SharedSKUClaimsExistingVariantOnce(t *testing.T) {
	ext := shirtProduct()
	ext.Variants[1].SKU = "SHIRT-BL-M"
	match := &ExistingProduct{ID: "prod_42", Variants: []ExistingVariant{{ID: "variant_a", SKU: "SHIRT-BL-M"}}}

	p, err := MapProduct(ext, match, testRefs)
	require.NoError(t, err)
	require.Len(t, p.Variants, 2)
	assert.Equal(t, "variant_a", p.Variants[0].ID)
	assert.Empty(t, p.Variants[1].ID, "second variant with the same SKU is inserted as new")
}

func TestMapProduct_EmptySKUNeverMatches(t *testing.T) {
	ext := shirtProduct()
	ext.Variants[0].SKU = ""
	match := &ExistingProduct{ID: "prod_42", Variants: []ExistingVariant{{ID: "variant_blank", SKU: ""}}}

	p, err := MapProduct(ext, match, testRefs)
	require.NoError(t, err)
	assert.Empty(t, p.Variants[0].ID)
}

func TestMapProduct_NoSalesChannel(t *testing.T) {
	p, err := MapProduct(shirtProduct(), nil, StoreRefs{ShippingProfileID: "sp"})
	require.NoError(t, err)
	assert.Empty(t, p.SalesChannelIDs)
}
