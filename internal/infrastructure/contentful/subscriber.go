package contentful

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/productsync"
	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
)

// ProductPublisher creates and removes the CMS entries of catalog products.
type ProductPublisher interface {
	CreateProduct(ctx context.Context, p productsync.CommittedProduct) (bool, error)
	DeleteProduct(ctx context.Context, productID string) error
}

// Subscriber publishes the products of every synced page to the CMS and
// drops the entries of removed products.
type Subscriber struct {
	publisher ProductPublisher
	logger    *zap.Logger
}

// NewSubscriber creates a Subscriber
func NewSubscriber(publisher ProductPublisher, log *zap.Logger) *Subscriber {
	if log == nil {
		log = zap.NewNop()
	}
	return &Subscriber{publisher: publisher, logger: log.Named("contentful")}
}

var _ shared.EventHandler = (*Subscriber)(nil)

// Name identifies the subscriber in idempotency keys and metrics.
func (s *Subscriber) Name() string { return "contentful" }

// EventTypes implements shared.EventHandler
func (s *Subscriber) EventTypes() []string {
	return []string{productsync.EventTypeProductsSynced, productsync.EventTypeProductRemoved}
}

// Handle implements shared.EventHandler
func (s *Subscriber) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *productsync.ProductsSyncedEvent:
		return s.publishPage(ctx, e)
	case *productsync.ProductRemovedEvent:
		return s.removeProduct(ctx, e)
	default:
		return fmt.Errorf("contentful: unexpected event %T", event)
	}
}

// publishPage publishes each product of the page. A failing product does not
// stop the others; all failures are returned together.
func (s *Subscriber) publishPage(ctx context.Context, e *productsync.ProductsSyncedEvent) error {
	var errs []error
	created, skipped := 0, 0
	for _, p := range e.Products() {
		ok, err := s.publisher.CreateProduct(ctx, p)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("product %s: %w", p.ID, err))
		case ok:
			created++
		default:
			skipped++
		}
	}

	logger.L(ctx, s.logger).Info("cms entries published",
		zap.String("run_id", e.RunID.String()),
		zap.Int("page", e.Page),
		zap.Int("created", created),
		zap.Int("skipped", skipped),
		zap.Int("failed", len(errs)),
	)
	return errors.Join(errs...)
}

func (s *Subscriber) removeProduct(ctx context.Context, e *productsync.ProductRemovedEvent) error {
	var errs []error
	for _, id := range e.ProductIDs {
		if err := s.publisher.DeleteProduct(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("product %s: %w", id, err))
		}
	}
	logger.L(ctx, s.logger).Info("cms entries removed",
		zap.String("external_id", e.ExternalID),
		zap.Int("products", len(e.ProductIDs)),
		zap.Int("failed", len(errs)),
	)
	return errors.Join(errs...)
}
