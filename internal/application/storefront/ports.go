// Package storefront serves localized product views to the storefront.
package storefront

import (
	"context"

	"github.com/erp/catalogsync/internal/domain/productsync"
)

// Locale is a content locale.
type Locale struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Default bool   `json:"default"`
}

// ProductContent is the editorial content of a product in one locale.
type ProductContent struct {
	ProductID   string
	Locale      string
	Title       string
	Description string
	Handle      string
}

// ContentSource reads localized product content from the CMS.
type ContentSource interface {
	// ProductContent returns shared.ErrNotFound when the product has no entry.
	ProductContent(ctx context.Context, productID, locale string) (*ProductContent, error)
	Locales(ctx context.Context) ([]Locale, error)
}

// ProductLookup finds catalog products by handle.
type ProductLookup interface {
	// ProductByHandle returns shared.ErrNotFound when no product has handle.
	ProductByHandle(ctx context.Context, handle string) (*productsync.CommittedProduct, error)
}
