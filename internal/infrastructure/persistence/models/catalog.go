package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CatalogProductModel is a product of the local catalog.
type CatalogProductModel struct {
	ID                uuid.UUID                   `gorm:"type:uuid;primary_key"`
	ExternalID        string                      `gorm:"type:varchar(64);not null;uniqueIndex:idx_catalog_products_external_id"`
	Title             string                      `gorm:"type:varchar(255);not null"`
	Description       string                      `gorm:"type:text"`
	Status            string                      `gorm:"type:varchar(20);not null"`
	Handle            string                      `gorm:"type:varchar(255);not null;index:idx_catalog_products_handle"`
	HSCode            string                      `gorm:"type:varchar(50)"`
	ShippingProfileID string                      `gorm:"type:varchar(64)"`
	SalesChannelIDs   datatypes.JSONSlice[string] `gorm:"column:sales_channel_ids"`
	Thumbnail         string                      `gorm:"type:text"`
	Images            datatypes.JSONSlice[string]
	Options           []CatalogProductOptionModel  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Variants          []CatalogProductVariantModel `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time                    `gorm:"not null"`
	UpdatedAt         time.Time                    `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CatalogProductModel) TableName() string {
	return "catalog_products"
}

// CatalogProductOptionModel is a product option and its ordered values.
type CatalogProductOptionModel struct {
	ID        uuid.UUID                        `gorm:"type:uuid;primary_key"`
	ProductID uuid.UUID                        `gorm:"type:uuid;not null;index:idx_catalog_product_options_product"`
	Title     string                           `gorm:"type:varchar(255);not null"`
	Position  int                              `gorm:"not null"`
	Values    []CatalogProductOptionValueModel `gorm:"foreignKey:OptionID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (CatalogProductOptionModel) TableName() string {
	return "catalog_product_options"
}

// CatalogProductOptionValueModel is one allowed value of an option.
type CatalogProductOptionValueModel struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key"`
	OptionID uuid.UUID `gorm:"type:uuid;not null;index:idx_catalog_product_option_values_option"`
	Value    string    `gorm:"type:varchar(255);not null"`
	Position int       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CatalogProductOptionValueModel) TableName() string {
	return "catalog_product_option_values"
}

// VariantPrice is the JSON form of one variant price.
type VariantPrice struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currency_code"`
}

// CatalogProductVariantModel is a sellable variant. Options maps option
// title to the selected value.
type CatalogProductVariantModel struct {
	ID              uuid.UUID                         `gorm:"type:uuid;primary_key"`
	ProductID       uuid.UUID                         `gorm:"type:uuid;not null;index:idx_catalog_product_variants_product"`
	Title           string                            `gorm:"type:varchar(255);not null"`
	SKU             string                            `gorm:"type:varchar(100);index:idx_catalog_product_variants_sku"`
	Options         datatypes.JSONMap                 `gorm:"not null"`
	Prices          datatypes.JSONSlice[VariantPrice] `gorm:"not null"`
	ManageInventory bool                              `gorm:"not null"`
	Metadata        datatypes.JSONMap
	Position        int       `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CatalogProductVariantModel) TableName() string {
	return "catalog_product_variants"
}

// CatalogStoreSettingsModel holds the store-level references of the local
// catalog. The table has a single row.
type CatalogStoreSettingsModel struct {
	ID                int    `gorm:"primaryKey"`
	SalesChannelID    string `gorm:"type:varchar(64);not null"`
	ShippingProfileID string `gorm:"type:varchar(64);not null"`
	UpdatedAt         time.Time
}

// TableName returns the table name for GORM
func (CatalogStoreSettingsModel) TableName() string {
	return "catalog_store_settings"
}
