package algolia

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/productsync"
	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
)

// ProductIndexer upserts and removes product records.
type ProductIndexer interface {
	SaveProducts(ctx context.Context, products []productsync.CommittedProduct) error
	DeleteObject(ctx context.Context, objectID string) error
}

// Subscriber indexes the products of every synced page and drops the
// records of removed products.
type Subscriber struct {
	indexer ProductIndexer
	logger  *zap.Logger
}

// NewSubscriber creates a Subscriber
func NewSubscriber(indexer ProductIndexer, log *zap.Logger) *Subscriber {
	if log == nil {
		log = zap.NewNop()
	}
	return &Subscriber{indexer: indexer, logger: log.Named("algolia")}
}

var _ shared.EventHandler = (*Subscriber)(nil)

// Name identifies the subscriber in idempotency keys and metrics.
func (s *Subscriber) Name() string { return "algolia" }

// EventTypes implements shared.EventHandler
func (s *Subscriber) EventTypes() []string {
	return []string{productsync.EventTypeProductsSynced, productsync.EventTypeProductRemoved}
}

// Handle implements shared.EventHandler
func (s *Subscriber) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *productsync.ProductsSyncedEvent:
		return s.indexPage(ctx, e)
	case *productsync.ProductRemovedEvent:
		for _, id := range e.ProductIDs {
			if err := s.indexer.DeleteObject(ctx, id); err != nil {
				return fmt.Errorf("remove product %s: %w", id, err)
			}
		}
		logger.L(ctx, s.logger).Info("products removed from index",
			zap.String("external_id", e.ExternalID),
			zap.Int("count", len(e.ProductIDs)),
		)
		return nil
	default:
		return fmt.Errorf("algolia: unexpected event %T", event)
	}
}

func (s *Subscriber) indexPage(ctx context.Context, e *productsync.ProductsSyncedEvent) error {
	products := e.Products()
	if err := s.indexer.SaveProducts(ctx, products); err != nil {
		return fmt.Errorf("index page %d of run %s: %w", e.Page, e.RunID, err)
	}
	logger.L(ctx, s.logger).Info("products indexed",
		zap.String("run_id", e.RunID.String()),
		zap.Int("page", e.Page),
		zap.Int("count", len(products)),
	)
	return nil
}
