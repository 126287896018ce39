package erpadmin

import (
	"github.com/shopspring/decimal"

	"github.com/erp/catalogsync/internal/domain/erpadmin"
)

// ============================================================================
// Request DTOs
// ============================================================================

// CreateProductRequest represents a request to create an ERP product template
type CreateProductRequest struct {
	Name        string           `json:"name" binding:"required,max=255"`
	DefaultCode string           `json:"default_code" binding:"omitempty,max=64"`
	ListPrice   *decimal.Decimal `json:"list_price"`
	Type        string           `json:"type" binding:"omitempty,oneof=product consu service combo"`
}

// UpdateProductRequest represents a partial update of an ERP product template
type UpdateProductRequest struct {
	Name        string           `json:"name" binding:"omitempty,max=255"`
	DefaultCode string           `json:"default_code" binding:"omitempty,max=64"`
	ListPrice   *decimal.Decimal `json:"list_price"`
	Type        string           `json:"type" binding:"omitempty,oneof=product consu service combo"`
}

// ============================================================================
// Response DTOs
// ============================================================================

// ProductResponse represents an ERP product template
type ProductResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	DefaultCode string          `json:"default_code,omitempty"`
	ListPrice   decimal.Decimal `json:"list_price"`
	Type        string          `json:"type"`
}

// ProductListResponse represents the list of ERP product templates
type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
}

// ToProductResponse converts a domain product to a response DTO
func ToProductResponse(p *erpadmin.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		DefaultCode: p.DefaultCode,
		ListPrice:   p.ListPrice,
		Type:        p.Type,
	}
}
