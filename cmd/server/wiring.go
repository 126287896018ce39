package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	storefrontapp "github.com/erp/catalogsync/internal/application/storefront"
	"github.com/erp/catalogsync/internal/domain/productsync"
	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/infrastructure/algolia"
	"github.com/erp/catalogsync/internal/infrastructure/cache"
	"github.com/erp/catalogsync/internal/infrastructure/config"
	"github.com/erp/catalogsync/internal/infrastructure/contentful"
	"github.com/erp/catalogsync/internal/infrastructure/event"
	"github.com/erp/catalogsync/internal/infrastructure/medusa"
	"github.com/erp/catalogsync/internal/infrastructure/persistence"
	"github.com/erp/catalogsync/internal/infrastructure/storage"
	"github.com/erp/catalogsync/internal/infrastructure/telemetry"
)

// catalogStore is a catalog that also serves storefront lookups.
type catalogStore interface {
	productsync.Catalog
	storefrontapp.ProductLookup
}

func newCatalog(ctx context.Context, cfg *config.Config, db *persistence.Database, log *zap.Logger) (catalogStore, error) {
	switch cfg.Catalog.Driver {
	case "medusa":
		c, err := medusa.NewCatalog(medusa.Config{
			BaseURL: cfg.Catalog.MedusaURL,
			APIKey:  cfg.Catalog.MedusaAPIKey,
			Timeout: cfg.Catalog.Timeout,
		}, medusa.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("create medusa catalog: %w", err)
		}
		return c, nil
	case "", "local":
		repo := persistence.NewGormCatalogRepository(db.DB)
		if cfg.Catalog.SalesChannelID != "" || cfg.Catalog.ShippingProfileID != "" {
			refs := productsync.StoreRefs{
				SalesChannelID:    cfg.Catalog.SalesChannelID,
				ShippingProfileID: cfg.Catalog.ShippingProfileID,
			}
			if err := repo.SaveStoreRefs(ctx, refs); err != nil {
				return nil, fmt.Errorf("save store references: %w", err)
			}
			log.Info("Local catalog store references saved",
				zap.String("sales_channel_id", refs.SalesChannelID),
				zap.String("shipping_profile_id", refs.ShippingProfileID),
			)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown catalog driver %q", cfg.Catalog.Driver)
	}
}

// newContentClient returns nil when the CMS is disabled.
func newContentClient(cfg *config.Config, log *zap.Logger) (*contentful.Client, error) {
	if !cfg.Contentful.Enabled {
		return nil, nil
	}
	c, err := contentful.NewClient(contentful.Config{
		SpaceID:         cfg.Contentful.SpaceID,
		Environment:     cfg.Contentful.Environment,
		ManagementToken: cfg.Contentful.ManagementToken,
		DeliveryToken:   cfg.Contentful.DeliveryToken,
		DefaultLocale:   cfg.Contentful.DefaultLocale,
		ManagementURL:   cfg.Contentful.ManagementURL,
		DeliveryURL:     cfg.Contentful.DeliveryURL,
		Timeout:         cfg.Contentful.Timeout,
	}, contentful.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("create contentful client: %w", err)
	}
	return c, nil
}

// newEventBus starts the asynchronous bus and subscribes the enabled
// downstream publishers, each behind the idempotency guard.
func newEventBus(
	ctx context.Context,
	cfg *config.Config,
	cms *contentful.Client,
	stores *cache.Stores,
	metrics *telemetry.SyncMetrics,
	log *zap.Logger,
) (*event.InMemoryEventBus, error) {
	bus := event.NewInMemoryEventBus(log,
		event.WithAsync(eventBufferSize),
		event.WithHandlerObserver(metrics.RecordSubscriber),
	)

	var subscribers []shared.EventHandler
	if cms != nil {
		subscribers = append(subscribers, contentful.NewSubscriber(cms, log))
	}
	if cfg.Algolia.Enabled {
		index, err := algolia.NewClient(algolia.Config{
			AppID:     cfg.Algolia.AppID,
			APIKey:    cfg.Algolia.APIKey,
			IndexName: cfg.Algolia.IndexName,
			BaseURL:   cfg.Algolia.BaseURL,
			Timeout:   cfg.Algolia.Timeout,
		}, algolia.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("create algolia client: %w", err)
		}
		subscribers = append(subscribers, algolia.NewSubscriber(index, log))
	}

	idempotency := shared.IdempotencyConfig{Enabled: cfg.Idempotency.Enabled, TTL: cfg.Idempotency.TTL}
	for _, s := range subscribers {
		bus.Subscribe(event.NewIdempotentHandler(s, stores.Idempotency, log, event.WithIdempotencyConfig(idempotency)))
	}
	if len(subscribers) == 0 {
		log.Info("No downstream publishers enabled")
	}

	if err := bus.Start(ctx); err != nil {
		return nil, fmt.Errorf("start event bus: %w", err)
	}
	return bus, nil
}

// newMediaUploader returns nil when object storage is disabled; ERP images
// are then skipped.
func newMediaUploader(ctx context.Context, cfg *config.Config, log *zap.Logger) (productsync.MediaUploader, error) {
	if !cfg.Storage.Enabled {
		return nil, nil
	}
	store, err := storage.NewS3ObjectStorage(&cfg.Storage, storage.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("create object storage: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", store.GetBucket(), err)
	}
	return storage.NewProductImageUploader(store, cfg.Storage.KeyPrefix, log), nil
}

func newStorefront(catalog storefrontapp.ProductLookup, cms *contentful.Client, log *zap.Logger) *storefrontapp.Service {
	if cms == nil {
		return storefrontapp.NewService(catalog, nil, log)
	}
	return storefrontapp.NewService(catalog, cms, log)
}
