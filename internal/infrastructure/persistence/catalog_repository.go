package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/catalogsync/internal/domain/productsync"
	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/infrastructure/persistence/models"
)

// storeSettingsID is the primary key of the single store settings row.
const storeSettingsID = 1

// GormCatalogRepository is the local relational catalog. It implements the
// catalog query, store configuration and product ingestion ports.
type GormCatalogRepository struct {
	db *gorm.DB
}

// NewGormCatalogRepository creates a new GormCatalogRepository
func NewGormCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

var _ productsync.Catalog = (*GormCatalogRepository)(nil)

func preloadProduct(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Options", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Preload("Options.Values", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Preload("Variants", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") })
}

// ---------------------------------------------------------------------------
// CatalogQuery
// ---------------------------------------------------------------------------

// QueryProducts returns the products carrying one of externalIDs.
func (r *GormCatalogRepository) QueryProducts(ctx context.Context, externalIDs []string) ([]productsync.ExistingProduct, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	var rows []models.CatalogProductModel
	err := r.db.WithContext(ctx).
		Preload("Variants", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Where("external_id IN ?", externalIDs).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %w", productsync.ErrCatalogQuery, err)
	}

	out := make([]productsync.ExistingProduct, 0, len(rows))
	for _, row := range rows {
		p := productsync.ExistingProduct{ID: row.ID.String(), ExternalID: row.ExternalID}
		for _, v := range row.Variants {
			p.Variants = append(p.Variants, productsync.ExistingVariant{ID: v.ID.String(), SKU: v.SKU})
		}
		out = append(out, p)
	}
	return out, nil
}

// ProductByHandle returns the product with handle, or shared.ErrNotFound.
func (r *GormCatalogRepository) ProductByHandle(ctx context.Context, handle string) (*productsync.CommittedProduct, error) {
	var row models.CatalogProductModel
	err := preloadProduct(r.db.WithContext(ctx)).Where("handle = ?", handle).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", productsync.ErrCatalogQuery, err)
	}
	p := toCommitted(&row)
	return &p, nil
}

// ---------------------------------------------------------------------------
// StoreConfigQuery
// ---------------------------------------------------------------------------

// StoreRefs returns the stored sales channel and shipping profile. A catalog
// without a settings row has no channels or profiles, so products are
// written without them.
func (r *GormCatalogRepository) StoreRefs(ctx context.Context) (productsync.StoreRefs, error) {
	var row models.CatalogStoreSettingsModel
	err := r.db.WithContext(ctx).Where("id = ?", storeSettingsID).Limit(1).Find(&row).Error
	if err != nil {
		return productsync.StoreRefs{}, fmt.Errorf("%w: %w", productsync.ErrStoreConfig, err)
	}
	return productsync.StoreRefs{
		SalesChannelID:    row.SalesChannelID,
		ShippingProfileID: row.ShippingProfileID,
	}, nil
}

// SaveStoreRefs stores the store-level references.
func (r *GormCatalogRepository) SaveStoreRefs(ctx context.Context, refs productsync.StoreRefs) error {
	row := models.CatalogStoreSettingsModel{
		ID:                storeSettingsID,
		SalesChannelID:    refs.SalesChannelID,
		ShippingProfileID: refs.ShippingProfileID,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

// ---------------------------------------------------------------------------
// ProductIngestion
// ---------------------------------------------------------------------------

// CreateProducts inserts the batch in one transaction.
func (r *GormCatalogRepository) CreateProducts(ctx context.Context, products []productsync.DomainProduct) ([]productsync.CommittedProduct, error) {
	if len(products) == 0 {
		return nil, nil
	}
	out := make([]productsync.CommittedProduct, 0, len(products))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range products {
			row := newProductModel(p)
			if err := tx.Create(row).Error; err != nil {
				return fmt.Errorf("create product %s: %w", p.ExternalID, err)
			}
			out = append(out, toCommitted(row))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", productsync.ErrDispatch, err)
	}
	return out, nil
}

// UpdateProducts replaces the products of the batch in one transaction.
// Options are rebuilt; variants are matched by id, and variants no longer
// present are removed.
func (r *GormCatalogRepository) UpdateProducts(ctx context.Context, products []productsync.DomainProduct) ([]productsync.CommittedProduct, error) {
	if len(products) == 0 {
		return nil, nil
	}
	out := make([]productsync.CommittedProduct, 0, len(products))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range products {
			committed, err := updateProduct(tx, p)
			if err != nil {
				return err
			}
			out = append(out, committed)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", productsync.ErrDispatch, err)
	}
	return out, nil
}

func updateProduct(tx *gorm.DB, p productsync.DomainProduct) (productsync.CommittedProduct, error) {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return productsync.CommittedProduct{}, fmt.Errorf("product %s: invalid catalog id %q", p.ExternalID, p.ID)
	}

	var existing models.CatalogProductModel
	if err := tx.Preload("Variants").First(&existing, "id = ?", id).Error; err != nil {
		return productsync.CommittedProduct{}, fmt.Errorf("product %s: load %s: %w", p.ExternalID, id, err)
	}

	row := newProductModel(p)
	row.ID = id
	row.CreatedAt = existing.CreatedAt

	known := make(map[uuid.UUID]bool, len(existing.Variants))
	for _, v := range existing.Variants {
		known[v.ID] = true
	}
	keep := make([]uuid.UUID, 0, len(row.Variants))
	for i := range row.Variants {
		row.Variants[i].ProductID = id
		// each existing row is reused once; repeats keep their fresh id
		if vid, err := uuid.Parse(p.Variants[i].ID); err == nil && known[vid] {
			row.Variants[i].ID = vid
			keep = append(keep, vid)
			delete(known, vid)
		}
	}

	optionIDs := tx.Model(&models.CatalogProductOptionModel{}).Select("id").Where("product_id = ?", id)
	if err := tx.Where("option_id IN (?)", optionIDs).Delete(&models.CatalogProductOptionValueModel{}).Error; err != nil {
		return productsync.CommittedProduct{}, err
	}
	if err := tx.Where("product_id = ?", id).Delete(&models.CatalogProductOptionModel{}).Error; err != nil {
		return productsync.CommittedProduct{}, err
	}
	stale := tx.Where("product_id = ?", id)
	if len(keep) > 0 {
		stale = stale.Where("id NOT IN ?", keep)
	}
	if err := stale.Delete(&models.CatalogProductVariantModel{}).Error; err != nil {
		return productsync.CommittedProduct{}, err
	}

	for i := range row.Options {
		row.Options[i].ProductID = id
	}
	err = tx.Session(&gorm.Session{FullSaveAssociations: true}).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(row).Error
	if err != nil {
		return productsync.CommittedProduct{}, fmt.Errorf("product %s: save: %w", p.ExternalID, err)
	}
	return toCommitted(row), nil
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

func newProductModel(p productsync.DomainProduct) *models.CatalogProductModel {
	row := &models.CatalogProductModel{
		ID:                uuid.New(),
		ExternalID:        p.ExternalID,
		Title:             p.Title,
		Description:       p.Description,
		Status:            p.Status.String(),
		Handle:            p.Handle,
		HSCode:            p.HSCode,
		ShippingProfileID: p.ShippingProfileID,
		SalesChannelIDs:   datatypes.NewJSONSlice(p.SalesChannelIDs),
		Thumbnail:         p.Thumbnail,
		Images:            datatypes.NewJSONSlice(p.Images),
	}

	for i, o := range p.Options {
		opt := models.CatalogProductOptionModel{ID: uuid.New(), ProductID: row.ID, Title: o.Title, Position: i}
		for j, v := range o.Values {
			opt.Values = append(opt.Values, models.CatalogProductOptionValueModel{
				ID: uuid.New(), OptionID: opt.ID, Value: v, Position: j,
			})
		}
		row.Options = append(row.Options, opt)
	}

	for i, v := range p.Variants {
		options := make(datatypes.JSONMap, len(v.Options))
		for k, val := range v.Options {
			options[k] = val
		}
		var metadata datatypes.JSONMap
		if len(v.Metadata) > 0 {
			metadata = make(datatypes.JSONMap, len(v.Metadata))
			for k, val := range v.Metadata {
				metadata[k] = val
			}
		}
		prices := make([]models.VariantPrice, 0, len(v.Prices))
		for _, pr := range v.Prices {
			prices = append(prices, models.VariantPrice{Amount: pr.Amount.String(), CurrencyCode: pr.CurrencyCode})
		}
		row.Variants = append(row.Variants, models.CatalogProductVariantModel{
			ID:              uuid.New(),
			ProductID:       row.ID,
			Title:           v.Title,
			SKU:             v.SKU,
			Options:         options,
			Prices:          datatypes.NewJSONSlice(prices),
			ManageInventory: v.ManageInventory,
			Metadata:        metadata,
			Position:        i,
		})
	}
	return row
}

func toCommitted(row *models.CatalogProductModel) productsync.CommittedProduct {
	out := productsync.CommittedProduct{
		ID:          row.ID.String(),
		ExternalID:  row.ExternalID,
		Title:       row.Title,
		Description: row.Description,
		Handle:      row.Handle,
		Status:      productsync.ProductStatus(row.Status),
		Thumbnail:   row.Thumbnail,
	}

	valueIDs := make(map[string]map[string]string, len(row.Options))
	for _, o := range row.Options {
		opt := productsync.CommittedOption{ID: o.ID.String(), Title: o.Title}
		valueIDs[o.Title] = make(map[string]string, len(o.Values))
		for _, v := range o.Values {
			opt.Values = append(opt.Values, productsync.CommittedOptionValue{ID: v.ID.String(), Value: v.Value})
			valueIDs[o.Title][v.Value] = v.ID.String()
		}
		out.Options = append(out.Options, opt)
	}

	for _, v := range row.Variants {
		cv := productsync.CommittedVariant{ID: v.ID.String(), Title: v.Title, SKU: v.SKU}
		for _, o := range row.Options {
			selected, _ := v.Options[o.Title].(string)
			if id, ok := valueIDs[o.Title][selected]; ok {
				cv.OptionValueIDs = append(cv.OptionValueIDs, id)
			}
		}
		out.Variants = append(out.Variants, cv)
	}
	return out
}
