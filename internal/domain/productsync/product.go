package productsync

import (
	"github.com/shopspring/decimal"
)

// ProductStatus is the catalog publication status.
type ProductStatus string

const (
	ProductStatusPublished ProductStatus = "published"
	ProductStatusDraft     ProductStatus = "draft"
)

// IsValid returns true if the status is valid
func (s ProductStatus) IsValid() bool {
	switch s {
	case ProductStatusPublished, ProductStatusDraft:
		return true
	default:
		return false
	}
}

// String returns the string representation of ProductStatus
func (s ProductStatus) String() string {
	return string(s)
}

const (
	// DefaultOptionTitle and DefaultOptionValue form the synthetic option
	// used when the ERP product declares no attributes.
	DefaultOptionTitle = "Default"
	DefaultOptionValue = "Default"
	// DefaultVariantTitle is the title of the variant synthesized for products without variants.
	DefaultVariantTitle = "Default"

	// MetadataExternalID is the variant metadata key carrying the ERP id.
	MetadataExternalID = "external_id"
)

// ProductOption is an option definition with its ordered allowed values.
type ProductOption struct {
	Title  string
	Values []string
}

// Price is one entry of a variant price list.
type Price struct {
	Amount       decimal.Decimal
	CurrencyCode string
}

// DomainVariant is a catalog variant create/update payload.
// ID is only set when an existing variant with the same SKU was found.
type DomainVariant struct {
	ID              string
	Title           string
	SKU             string
	Options         map[string]string
	Prices          []Price
	ManageInventory bool
	Metadata        map[string]string
}

// DomainProduct is a catalog product create/update payload.
// ID is only set on the update path.
type DomainProduct struct {
	ID                string
	ExternalID        string
	Title             string
	Description       string
	Status            ProductStatus
	Handle            string
	HSCode            string
	Options           []ProductOption
	Variants          []DomainVariant
	ShippingProfileID string
	SalesChannelIDs   []string
	Thumbnail         string
	Images            []string
}

// IsUpdate reports whether the product patches an existing catalog product.
func (p DomainProduct) IsUpdate() bool {
	return p.ID != ""
}

// ExistingVariant is the id/SKU pair of a variant already in the catalog.
type ExistingVariant struct {
	ID  string
	SKU string
}

// ExistingProduct is a catalog product previously imported from the ERP.
type ExistingProduct struct {
	ID         string
	ExternalID string
	Variants   []ExistingVariant
}

// VariantIDBySKU returns the id of the variant with the given SKU.
// An empty SKU never matches.
func (p ExistingProduct) VariantIDBySKU(sku string) (string, bool) {
	if sku == "" {
		return "", false
	}
	for _, v := range p.Variants {
		if v.SKU == sku {
			return v.ID, true
		}
	}
	return "", false
}

// StoreRefs are the store-level references attached to every product.
type StoreRefs struct {
	SalesChannelID    string
	ShippingProfileID string
}

// CommittedOptionValue is an option value as stored by the catalog.
type CommittedOptionValue struct {
	ID    string
	Value string
}

// CommittedOption is an option as stored by the catalog.
type CommittedOption struct {
	ID     string
	Title  string
	Values []CommittedOptionValue
}

// CommittedVariant is a variant as stored by the catalog.
type CommittedVariant struct {
	ID             string
	Title          string
	SKU            string
	OptionValueIDs []string
}

// CommittedProduct is a product as returned by the ingestion collaborator
// after a create or update.
type CommittedProduct struct {
	ID          string
	ExternalID  string
	Title       string
	Description string
	Handle      string
	Status      ProductStatus
	Thumbnail   string
	Options     []CommittedOption
	Variants    []CommittedVariant
}
