// Package erpadmin exposes CRUD over ERP product templates to the admin API.
package erpadmin

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/erpadmin"
	"github.com/erp/catalogsync/internal/domain/productsync"
	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
)

// ErrNegativePrice is returned when a list price below zero is given
var ErrNegativePrice = shared.NewDomainError("INVALID_INPUT", "list_price must not be negative")

// ProductService manages ERP product templates
type ProductService struct {
	gateway   erpadmin.ProductGateway
	catalog   productsync.CatalogQuery
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// ServiceOption configures a ProductService
type ServiceOption func(*ProductService)

// WithRemovalEvents publishes a ProductRemovedEvent for the catalog copies
// of every deleted ERP product.
func WithRemovalEvents(catalog productsync.CatalogQuery, publisher shared.EventPublisher) ServiceOption {
	return func(s *ProductService) {
		s.catalog = catalog
		s.publisher = publisher
	}
}

// NewProductService creates a new ProductService
func NewProductService(gateway erpadmin.ProductGateway, log *zap.Logger, opts ...ServiceOption) *ProductService {
	s := &ProductService{gateway: gateway, logger: log.Named("erpadmin")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every product template
func (s *ProductService) List(ctx context.Context) (*ProductListResponse, error) {
	products, err := s.gateway.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	out := &ProductListResponse{Products: make([]ProductResponse, 0, len(products)), Total: len(products)}
	for i := range products {
		out.Products = append(out.Products, ToProductResponse(&products[i]))
	}
	return out, nil
}

// Get returns one product template
func (s *ProductService) Get(ctx context.Context, id int64) (*ProductResponse, error) {
	p, err := s.gateway.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToProductResponse(p)
	return &resp, nil
}

// Create creates a product template
func (s *ProductService) Create(ctx context.Context, req CreateProductRequest) (*ProductResponse, error) {
	if req.ListPrice != nil && req.ListPrice.IsNegative() {
		return nil, ErrNegativePrice
	}
	p, err := s.gateway.CreateProduct(ctx, erpadmin.CreateProduct{
		Name:        req.Name,
		DefaultCode: req.DefaultCode,
		ListPrice:   req.ListPrice,
		Type:        req.Type,
	})
	if err != nil {
		return nil, err
	}

	logger.L(ctx, s.logger).Info("erp product created",
		zap.Int64("product_id", p.ID),
		zap.String("default_code", p.DefaultCode),
	)
	resp := ToProductResponse(p)
	return &resp, nil
}

// Update writes the fields carried by req
func (s *ProductService) Update(ctx context.Context, id int64, req UpdateProductRequest) (*ProductResponse, error) {
	if req.ListPrice != nil && req.ListPrice.IsNegative() {
		return nil, ErrNegativePrice
	}
	in := erpadmin.UpdateProduct{
		Name:        req.Name,
		DefaultCode: req.DefaultCode,
		ListPrice:   req.ListPrice,
		Type:        req.Type,
	}
	p, err := s.gateway.UpdateProduct(ctx, id, in)
	if err != nil {
		return nil, err
	}

	logger.L(ctx, s.logger).Info("erp product updated",
		zap.Int64("product_id", id),
		zap.Strings("fields", in.Fields()),
	)
	resp := ToProductResponse(p)
	return &resp, nil
}

// Delete removes a product template
func (s *ProductService) Delete(ctx context.Context, id int64) error {
	if err := s.gateway.DeleteProduct(ctx, id); err != nil {
		return err
	}
	logger.L(ctx, s.logger).Info("erp product deleted", zap.Int64("product_id", id))
	s.publishRemoval(ctx, id)
	return nil
}

// publishRemoval announces the catalog products synced from the deleted ERP
// product. The ERP delete already succeeded, so failures are only logged.
func (s *ProductService) publishRemoval(ctx context.Context, id int64) {
	if s.catalog == nil || s.publisher == nil {
		return
	}
	log := logger.L(ctx, s.logger).With(zap.Int64("product_id", id))
	externalID := strconv.FormatInt(id, 10)

	existing, err := s.catalog.QueryProducts(ctx, []string{externalID})
	if err != nil {
		log.Warn("cannot look up catalog products of deleted erp product", zap.Error(err))
		return
	}
	if len(existing) == 0 {
		return
	}
	ids := make([]string, 0, len(existing))
	for _, p := range existing {
		ids = append(ids, p.ID)
	}
	if err := s.publisher.Publish(ctx, productsync.NewProductRemovedEvent(externalID, ids)); err != nil {
		log.Warn("failed to publish product removed event", zap.Error(err))
	}
}
