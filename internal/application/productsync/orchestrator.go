// Package productsync runs ERP to catalog synchronization passes and
// exposes their history.
package productsync

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/productsync"
	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"github.com/erp/catalogsync/internal/infrastructure/telemetry"
)

// RunCache holds the most recent run for cheap status reads.
type RunCache interface {
	Get(ctx context.Context) (*productsync.Run, error)
	Set(ctx context.Context, run *productsync.Run) error
}

// Orchestrator drives one sync run at a time through the page loop:
// list, upload media, load store refs, resolve, dispatch and publish.
type Orchestrator struct {
	erp      productsync.ERPClient
	catalog  productsync.Catalog
	resolver *productsync.Resolver
	runs     productsync.RunWriter
	logger   *zap.Logger

	media     productsync.MediaUploader
	publisher shared.EventPublisher
	cache     RunCache
	metrics   *telemetry.SyncMetrics
	filter    productsync.Filter
	pageSize  int
	now       func() time.Time
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithMediaUploader uploads ERP images before mapping
func WithMediaUploader(m productsync.MediaUploader) Option {
	return func(o *Orchestrator) { o.media = m }
}

// WithEventPublisher publishes a ProductsSynced event per dispatched page
func WithEventPublisher(p shared.EventPublisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithRunCache keeps the latest run in cache
func WithRunCache(c RunCache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithMetrics records run and page metrics
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithFilter restricts the ERP listing; empty uses the ERP client default
func WithFilter(f productsync.Filter) Option {
	return func(o *Orchestrator) { o.filter = f }
}

// WithPageSize sets the ERP page size
func WithPageSize(n int) Option {
	return func(o *Orchestrator) { o.pageSize = n }
}

// NewOrchestrator creates an Orchestrator
func NewOrchestrator(
	erp productsync.ERPClient,
	catalog productsync.Catalog,
	runs productsync.RunWriter,
	log *zap.Logger,
	opts ...Option,
) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{
		erp:      erp,
		catalog:  catalog,
		resolver: productsync.NewResolver(catalog),
		runs:     runs,
		logger:   log.Named("productsync"),
		pageSize: productsync.DefaultPageSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run performs one full pass over the ERP catalog. The returned run is never
// nil; on failure it carries the counters reached before the error, and the
// error is returned as well. Pages already dispatched are not rolled back.
func (o *Orchestrator) Run(ctx context.Context, trigger productsync.Trigger) (run *productsync.Run, err error) {
	run = productsync.NewRun(trigger, o.pageSize)
	ctx = logger.WithRunID(ctx, run.ID.String())
	ctx, span := telemetry.StartSpan(ctx, "productsync.run",
		attribute.String("sync.run_id", run.ID.String()),
		attribute.String("sync.trigger", string(run.Trigger)),
		attribute.Int("sync.page_size", run.PageSize),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	log := logger.L(ctx, o.logger)
	if err := run.Start(o.now()); err != nil {
		return run, err
	}
	log.Info("sync run started",
		zap.String("trigger", string(run.Trigger)),
		zap.Int("page_size", run.PageSize),
	)
	o.persist(ctx, run)

	session := productsync.Session{}
	for {
		if err := ctx.Err(); err != nil {
			return o.fail(ctx, run, err)
		}
		page := run.Pagination()
		var products []productsync.ExternalProduct
		products, session, err = o.erp.ListProducts(ctx, session, o.filter, page)
		if err != nil {
			return o.fail(ctx, run, fmt.Errorf("list products at offset %d: %w", page.Offset, err))
		}
		if len(products) == 0 {
			break
		}

		created, updated, err := o.syncPage(ctx, run, products)
		if err != nil {
			return o.fail(ctx, run, err)
		}
		if err := run.RecordPage(len(products), created, updated); err != nil {
			return o.fail(ctx, run, err)
		}
		o.persist(ctx, run)
	}

	if err := run.Drain(); err != nil {
		return o.fail(ctx, run, err)
	}
	if err := run.Complete(o.now()); err != nil {
		return o.fail(ctx, run, err)
	}
	o.finish(ctx, run)
	log.Info("sync run completed",
		zap.Int("pages", run.Pages),
		zap.Int("fetched", run.Fetched),
		zap.Int("created", run.Created),
		zap.Int("updated", run.Updated),
		zap.Duration("duration", run.Duration()),
	)
	return run, nil
}

// syncPage maps and dispatches one non-empty page and returns the number of
// created and updated products.
func (o *Orchestrator) syncPage(ctx context.Context, run *productsync.Run, products []productsync.ExternalProduct) (created, updated int, err error) {
	pageNo := run.Pages + 1
	ctx, span := telemetry.StartSpan(ctx, "productsync.page",
		attribute.Int("sync.page", pageNo),
		attribute.Int("sync.offset", run.Offset),
		attribute.Int("sync.fetched", len(products)),
	)
	defer func() { telemetry.EndSpan(span, err) }()
	start := o.now()

	if o.media != nil {
		for i := range products {
			urls, err := o.media.UploadProductImages(ctx, products[i])
			if err != nil {
				return 0, 0, fmt.Errorf("product %s: %w", products[i].ExternalID(), err)
			}
			products[i].ImageURLs = urls
		}
	}

	refs, err := o.catalog.StoreRefs(ctx)
	if err != nil {
		return 0, 0, err
	}
	res, err := o.resolver.Resolve(ctx, products, refs)
	if err != nil {
		return 0, 0, err
	}

	committedCreates, err := o.catalog.CreateProducts(ctx, res.ToCreate)
	if err != nil {
		return 0, 0, fmt.Errorf("create %d products: %w", len(res.ToCreate), err)
	}
	committedUpdates, err := o.catalog.UpdateProducts(ctx, res.ToUpdate)
	if err != nil {
		err = fmt.Errorf("update %d products: %w", len(res.ToUpdate), err)
		if len(committedCreates) > 0 {
			o.recordPartial(ctx, run, pageNo, len(products), committedCreates, o.now().Sub(start))
		}
		return 0, 0, err
	}

	if o.metrics != nil {
		o.metrics.RecordPage(ctx, len(committedCreates), len(committedUpdates), o.now().Sub(start))
	}
	logger.L(ctx, o.logger).Debug("page dispatched",
		zap.Int("page", pageNo),
		zap.Int("offset", run.Offset),
		zap.Int("fetched", len(products)),
		zap.Int("created", len(committedCreates)),
		zap.Int("updated", len(committedUpdates)),
	)

	o.publish(ctx, productsync.NewProductsSyncedEvent(run.ID, pageNo, committedCreates, committedUpdates))
	return len(committedCreates), len(committedUpdates), nil
}

// recordPartial keeps the creates of a page whose updates failed on the
// run, in metrics and downstream, since they stay in the catalog.
func (o *Orchestrator) recordPartial(ctx context.Context, run *productsync.Run, pageNo, fetched int, created []productsync.CommittedProduct, d time.Duration) {
	logger.L(ctx, o.logger).Warn("page failed after its creates were committed",
		zap.Int("page", pageNo),
		zap.Int("created", len(created)),
	)
	if err := run.RecordPartialPage(fetched, len(created), 0); err != nil {
		logger.L(ctx, o.logger).Error("cannot record partial page", zap.Error(err))
	}
	if o.metrics != nil {
		o.metrics.RecordPage(ctx, len(created), 0, d)
	}
	o.publish(ctx, productsync.NewProductsSyncedEvent(run.ID, pageNo, created, nil))
}

// publish hands the page event to subscribers. Their failures never fail
// the run.
func (o *Orchestrator) publish(ctx context.Context, event *productsync.ProductsSyncedEvent) {
	if o.publisher == nil || len(event.Created)+len(event.Updated) == 0 {
		return
	}
	if err := o.publisher.Publish(ctx, event); err != nil {
		logger.L(ctx, o.logger).Warn("failed to publish products synced event",
			zap.String("event_id", event.EventID().String()),
			zap.Int("page", event.Page),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) fail(ctx context.Context, run *productsync.Run, cause error) (*productsync.Run, error) {
	if err := run.Fail(cause, o.now()); err != nil {
		logger.L(ctx, o.logger).Error("cannot mark run failed", zap.Error(err))
	}
	o.finish(ctx, run)
	logger.L(ctx, o.logger).Error("sync run failed",
		zap.String("error_kind", run.ErrorKind),
		zap.Int("pages", run.Pages),
		zap.Int("fetched", run.Fetched),
		zap.Int("created", run.Created),
		zap.Int("updated", run.Updated),
		zap.Error(cause),
	)
	return run, cause
}

// finish records a terminal run everywhere it is reported.
func (o *Orchestrator) finish(ctx context.Context, run *productsync.Run) {
	o.persist(ctx, run)
	if o.cache != nil {
		if err := o.cache.Set(ctx, run); err != nil {
			logger.L(ctx, o.logger).Warn("failed to cache latest run", zap.Error(err))
		}
	}
	if o.metrics != nil {
		finishedAt := o.now()
		if run.FinishedAt != nil {
			finishedAt = *run.FinishedAt
		}
		o.metrics.RecordRun(ctx, string(run.Trigger), run.State.String(), run.ErrorKind, run.Duration(), finishedAt)
	}
}

// persist saves run progress. A storage failure is logged and does not stop
// the sync.
func (o *Orchestrator) persist(ctx context.Context, run *productsync.Run) {
	if err := o.runs.Save(context.WithoutCancel(ctx), run); err != nil {
		logger.L(ctx, o.logger).Warn("failed to save sync run",
			zap.String("state", run.State.String()),
			zap.Error(err),
		)
	}
}
