package productsync

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// CurrencyRef is the ERP currency reference attached to products and variants.
// DisplayName is the ISO code for standard ERP currencies ("USD").
type CurrencyRef struct {
	ID          int64
	Code        string
	DisplayName string
}

// IsZero reports whether the reference carries no usable currency.
func (c CurrencyRef) IsZero() bool {
	return c.DisplayName == "" && c.Code == ""
}

// AttributeLine is a product-level attribute with its ordered permissible values.
type AttributeLine struct {
	Name   string
	Values []string
}

// AttributeValue is a variant's selected value for one attribute.
type AttributeValue struct {
	Attribute string
	Value     string
}

// ProductImages holds the base64 image payloads the ERP returns per resolution.
type ProductImages struct {
	Image1920 string
	Image1024 string
	Image512  string
	Image256  string
	Image128  string
}

// Largest returns the highest resolution payload available.
func (i ProductImages) Largest() string {
	for _, img := range []string{i.Image1920, i.Image1024, i.Image512, i.Image256, i.Image128} {
		if img != "" {
			return img
		}
	}
	return ""
}

// ExternalVariant is an ERP product variant.
type ExternalVariant struct {
	ID          int64
	DisplayName string
	Price       decimal.Decimal
	SKU         string
	Currency    CurrencyRef
	Assignments []AttributeValue
	Active      bool
}

// ExternalProduct is an ERP product template as fetched for one page.
type ExternalProduct struct {
	ID              int64
	DisplayName     string
	Name            string
	IsPublished     bool
	WebsiteURL      string
	Price           decimal.Decimal
	Description     string
	SaleDescription string
	QtyAvailable    decimal.Decimal
	TaxIDs          []int64
	HSCode          string
	Images          ProductImages
	Currency        CurrencyRef
	AttributeLines  []AttributeLine
	Variants        []ExternalVariant
	Active          bool

	// ImageURLs is filled by the media uploader before mapping, never by the ERP.
	ImageURLs []string
}

// ExternalID returns the correlation key of the product: the string form of its ERP id.
func (p ExternalProduct) ExternalID() string {
	return strconv.FormatInt(p.ID, 10)
}

// Condition is one ERP search domain term, e.g. {"active", "=", true}.
type Condition struct {
	Field    string
	Operator string
	Value    any
}

// Filter is a conjunction of search conditions. An empty filter lets the
// ERP client apply its default (all active non-variant templates).
type Filter []Condition

// Pagination is an offset/limit window over the ERP product listing.
type Pagination struct {
	Offset int
	Limit  int
}
