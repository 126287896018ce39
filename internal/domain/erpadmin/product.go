// Package erpadmin describes product templates managed directly in the ERP
// through its REST integration module.
package erpadmin

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/erp/catalogsync/internal/domain/shared"
)

// DefaultProductType is the ERP product type used when none is given.
const DefaultProductType = "product"

var (
	// ErrProductNotFound is returned when the ERP has no template with the id
	ErrProductNotFound = shared.NewDomainError("NOT_FOUND", "ERP product not found")

	// ErrNameRequired is returned when a product is created without a name
	ErrNameRequired = shared.NewDomainError("INVALID_INPUT", "product 'name' is required")

	// ErrEmptyUpdate is returned when an update carries no field
	ErrEmptyUpdate = shared.NewDomainError("INVALID_INPUT", "at least one field (name, default_code, list_price, type) is required")

	// ErrInvalidProductID is returned for non-positive ids
	ErrInvalidProductID = shared.NewDomainError("INVALID_INPUT", "invalid product ID")

	// ErrUpstreamAuth is returned when the ERP keeps rejecting the credentials
	ErrUpstreamAuth = errors.New("erpadmin: erp rejected credentials")
)

// Product is an ERP product template as exposed by the REST module.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	DefaultCode string          `json:"default_code,omitempty"`
	ListPrice   decimal.Decimal `json:"list_price"`
	Type        string          `json:"type"`
}

// CreateProduct holds the values of a new template.
type CreateProduct struct {
	Name        string
	DefaultCode string
	ListPrice   *decimal.Decimal
	Type        string
}

// Normalize trims the text fields and checks the name.
func (c *CreateProduct) Normalize() error {
	c.Name = strings.TrimSpace(c.Name)
	c.DefaultCode = strings.TrimSpace(c.DefaultCode)
	c.Type = strings.TrimSpace(c.Type)
	if c.Name == "" {
		return ErrNameRequired
	}
	return nil
}

// UpdateProduct holds a partial update; nil and empty fields are left untouched.
type UpdateProduct struct {
	Name        string
	DefaultCode string
	ListPrice   *decimal.Decimal
	Type        string
}

// Normalize trims the text fields and rejects an update without fields.
func (u *UpdateProduct) Normalize() error {
	u.Name = strings.TrimSpace(u.Name)
	u.DefaultCode = strings.TrimSpace(u.DefaultCode)
	u.Type = strings.TrimSpace(u.Type)
	if u.Name == "" && u.DefaultCode == "" && u.ListPrice == nil && u.Type == "" {
		return ErrEmptyUpdate
	}
	return nil
}

// Fields returns the names of the fields carried by the update.
func (u UpdateProduct) Fields() []string {
	var fields []string
	if u.Name != "" {
		fields = append(fields, "name")
	}
	if u.DefaultCode != "" {
		fields = append(fields, "default_code")
	}
	if u.ListPrice != nil {
		fields = append(fields, "list_price")
	}
	if u.Type != "" {
		fields = append(fields, "type")
	}
	return fields
}

// ProductGateway manages ERP product templates.
type ProductGateway interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	CreateProduct(ctx context.Context, in CreateProduct) (*Product, error)
	UpdateProduct(ctx context.Context, id int64, in UpdateProduct) (*Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}
