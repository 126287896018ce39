package productsync

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ShopPathPrefix is the path prefix of ERP website URLs that is removed to form the handle.
const ShopPathPrefix = "/shop/"

// MapProduct transforms an ERP product into a catalog create (match == nil)
// or update (match != nil) payload. It performs no I/O.
func MapProduct(ext ExternalProduct, match *ExistingProduct, refs StoreRefs) (DomainProduct, error) {
	if ext.ID <= 0 {
		return DomainProduct{}, fmt.Errorf("%w: invalid product id %d", ErrMapping, ext.ID)
	}

	options, err := mapOptions(ext)
	if err != nil {
		return DomainProduct{}, err
	}

	product := DomainProduct{
		ExternalID:        ext.ExternalID(),
		Title:             ext.DisplayName,
		Description:       firstNonEmpty(ext.Description, ext.SaleDescription),
		Status:            mapStatus(ext.IsPublished),
		Handle:            mapHandle(ext.WebsiteURL),
		HSCode:            ext.HSCode,
		Options:           options,
		ShippingProfileID: refs.ShippingProfileID,
	}
	if refs.SalesChannelID != "" {
		product.SalesChannelIDs = []string{refs.SalesChannelID}
	}
	if len(ext.ImageURLs) > 0 {
		product.Thumbnail = ext.ImageURLs[0]
		product.Images = slices.Clone(ext.ImageURLs)
	}
	if match != nil {
		product.ID = match.ID
	}

	if len(ext.Variants) == 0 {
		variant, err := defaultVariant(ext, options, match)
		if err != nil {
			return DomainProduct{}, err
		}
		product.Variants = []DomainVariant{variant}
		return product, nil
	}

	product.Variants = make([]DomainVariant, 0, len(ext.Variants))
	claimed := make(map[string]bool, len(ext.Variants))
	for _, ev := range ext.Variants {
		variant, err := mapVariant(ext, ev, options, match)
		if err != nil {
			return DomainProduct{}, err
		}
		// an existing variant is updated once; later variants sharing its
		// SKU are inserted as new
		switch {
		case variant.ID == "":
		case claimed[variant.ID]:
			variant.ID = ""
		default:
			claimed[variant.ID] = true
		}
		product.Variants = append(product.Variants, variant)
	}
	return product, nil
}

func mapStatus(published bool) ProductStatus {
	if published {
		return ProductStatusPublished
	}
	return ProductStatusDraft
}

func mapHandle(websiteURL string) string {
	return strings.TrimPrefix(strings.TrimSpace(websiteURL), ShopPathPrefix)
}

func mapOptions(ext ExternalProduct) ([]ProductOption, error) {
	if len(ext.AttributeLines) == 0 {
		return []ProductOption{{
			Title:  DefaultOptionTitle,
			Values: []string{DefaultOptionValue},
		}}, nil
	}

	options := make([]ProductOption, 0, len(ext.AttributeLines))
	for _, line := range ext.AttributeLines {
		if line.Name == "" {
			return nil, fmt.Errorf("%w: product %d: attribute line without name", ErrMapping, ext.ID)
		}
		if len(line.Values) == 0 {
			return nil, fmt.Errorf("%w: product %d: attribute %q has no values", ErrMapping, ext.ID, line.Name)
		}
		options = append(options, ProductOption{
			Title:  line.Name,
			Values: slices.Clone(line.Values),
		})
	}
	return options, nil
}

// mapVariant builds a variant whose selection holds exactly one value per option:
// assigned values first, the option's first value for anything left unassigned.
func mapVariant(ext ExternalProduct, ev ExternalVariant, options []ProductOption, match *ExistingProduct) (DomainVariant, error) {
	selection := make(map[string]string, len(options))
	for _, a := range ev.Assignments {
		idx := slices.IndexFunc(options, func(o ProductOption) bool { return o.Title == a.Attribute })
		if idx < 0 {
			return DomainVariant{}, fmt.Errorf("%w: product %d variant %d: attribute %q is not a product option",
				ErrMapping, ext.ID, ev.ID, a.Attribute)
		}
		if !slices.Contains(options[idx].Values, a.Value) {
			return DomainVariant{}, fmt.Errorf("%w: product %d variant %d: value %q not allowed for %q",
				ErrMapping, ext.ID, ev.ID, a.Value, a.Attribute)
		}
		selection[a.Attribute] = a.Value
	}
	for _, o := range options {
		if _, ok := selection[o.Title]; !ok {
			selection[o.Title] = o.Values[0]
		}
	}

	currency := ev.Currency
	if currency.IsZero() {
		currency = ext.Currency
	}
	code, err := currencyCode(currency)
	if err != nil {
		return DomainVariant{}, fmt.Errorf("%w: product %d variant %d: %v", ErrMapping, ext.ID, ev.ID, err)
	}

	variant := DomainVariant{
		Title:    stripSKUPrefix(ev.DisplayName, ev.SKU),
		SKU:      ev.SKU,
		Options:  selection,
		Prices:   []Price{{Amount: ev.Price, CurrencyCode: code}},
		Metadata: map[string]string{MetadataExternalID: strconv.FormatInt(ev.ID, 10)},
	}
	if match != nil {
		if id, ok := match.VariantIDBySKU(ev.SKU); ok {
			variant.ID = id
		}
	}
	return variant, nil
}

// defaultVariant synthesizes the single variant of a product without ERP
// variants. With the synthetic option this is {Default: Default}; declared
// attribute lines contribute their first value instead.
func defaultVariant(ext ExternalProduct, options []ProductOption, match *ExistingProduct) (DomainVariant, error) {
	code, err := currencyCode(ext.Currency)
	if err != nil {
		return DomainVariant{}, fmt.Errorf("%w: product %d: %v", ErrMapping, ext.ID, err)
	}

	selection := make(map[string]string, len(options))
	for _, o := range options {
		selection[o.Title] = o.Values[0]
	}

	variant := DomainVariant{
		Title:    DefaultVariantTitle,
		Options:  selection,
		Prices:   []Price{{Amount: ext.Price, CurrencyCode: code}},
		Metadata: map[string]string{MetadataExternalID: ext.ExternalID()},
	}
	if match != nil && len(match.Variants) > 0 {
		variant.ID = match.Variants[0].ID
	}
	return variant, nil
}

// stripSKUPrefix removes the "[SKU] " token the ERP embeds in variant display names.
func stripSKUPrefix(displayName, sku string) string {
	if sku == "" {
		return displayName
	}
	return strings.Replace(displayName, "["+sku+"] ", "", 1)
}

func currencyCode(c CurrencyRef) (string, error) {
	name := firstNonEmpty(c.DisplayName, c.Code)
	if name == "" {
		return "", errors.New("missing currency")
	}
	return strings.ToLower(name), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
