package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys of sync metrics.
const (
	AttrTrigger    = attribute.Key("sync.trigger")
	AttrOutcome    = attribute.Key("sync.outcome")
	AttrErrorKind  = attribute.Key("sync.error_kind")
	AttrAction     = attribute.Key("sync.action")
	AttrERPMethod  = attribute.Key("erp.method")
	AttrSubscriber = attribute.Key("sync.subscriber")
)

// durationBuckets covers sub-second remote calls up to multi-minute runs.
var durationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800}

// SyncMetrics holds the instruments of the product sync pipeline.
type SyncMetrics struct {
	runs          *Counter
	runDuration   *Histogram
	pages         *Counter
	products      *Counter
	dispatch      *Histogram
	erpCalls      *Histogram
	subscriber    *Counter
	lastSuccessAt *Gauge
}

// NewSyncMetrics creates the sync instruments on meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	var (
		m   SyncMetrics
		err error
	)
	if m.runs, err = NewCounter(meter, "catalogsync.sync.runs", "Finished sync runs", "{run}"); err != nil {
		return nil, err
	}
	if m.runDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "catalogsync.sync.run.duration",
		Description: "Wall time of a sync run",
		Unit:        "s",
		Boundaries:  durationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.pages, err = NewCounter(meter, "catalogsync.sync.pages", "Pages dispatched to the catalog", "{page}"); err != nil {
		return nil, err
	}
	if m.products, err = NewCounter(meter, "catalogsync.sync.products", "Products created or updated in the catalog", "{product}"); err != nil {
		return nil, err
	}
	if m.dispatch, err = NewHistogram(meter, HistogramOpts{
		Name:        "catalogsync.catalog.dispatch.duration",
		Description: "Time spent resolving, mapping and writing one page",
		Unit:        "s",
		Boundaries:  durationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.erpCalls, err = NewHistogram(meter, HistogramOpts{
		Name:        "catalogsync.erp.request.duration",
		Description: "Latency of ERP RPC calls",
		Unit:        "s",
		Boundaries:  durationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.subscriber, err = NewCounter(meter, "catalogsync.subscriber.events", "ProductsSynced events handled by subscribers", "{event}"); err != nil {
		return nil, err
	}
	if m.lastSuccessAt, err = NewGauge(meter, "catalogsync.sync.last_success", "Unix time of the last successful run", "s"); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordRun records a finished run. state is the terminal run state.
func (m *SyncMetrics) RecordRun(ctx context.Context, trigger, state, errorKind string, d time.Duration, finishedAt time.Time) {
	attrs := []attribute.KeyValue{AttrTrigger.String(trigger), AttrOutcome.String(state)}
	if errorKind != "" {
		attrs = append(attrs, AttrErrorKind.String(errorKind))
	}
	m.runs.Inc(ctx, attrs...)
	m.runDuration.RecordDuration(ctx, d, attrs...)
	if errorKind == "" {
		m.lastSuccessAt.Record(ctx, finishedAt.Unix())
	}
}

// RecordPage records one dispatched page.
func (m *SyncMetrics) RecordPage(ctx context.Context, created, updated int, d time.Duration) {
	m.pages.Inc(ctx)
	m.products.Add(ctx, int64(created), AttrAction.String("create"))
	m.products.Add(ctx, int64(updated), AttrAction.String("update"))
	m.dispatch.RecordDuration(ctx, d)
}

// RecordERPCall records one ERP RPC call.
func (m *SyncMetrics) RecordERPCall(ctx context.Context, method string, d time.Duration, err error) {
	m.erpCalls.RecordDuration(ctx, d, AttrERPMethod.String(method), outcome(err))
}

// RecordSubscriber records how a subscriber handled a ProductsSynced event.
func (m *SyncMetrics) RecordSubscriber(ctx context.Context, subscriber string, err error) {
	m.subscriber.Inc(ctx, AttrSubscriber.String(subscriber), outcome(err))
}

func outcome(err error) attribute.KeyValue {
	if err != nil {
		return AttrOutcome.String("error")
	}
	return AttrOutcome.String("ok")
}
