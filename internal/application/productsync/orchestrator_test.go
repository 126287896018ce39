package productsync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/erp/catalogsync/internal/domain/productsync"
	"github.com/erp/catalogsync/internal/infrastructure/telemetry"
)

type harness struct {
	erp       *fakeERP
	catalog   *memoryCatalog
	runs      *memoryRuns
	cache     *memoryCache
	publisher *recordingPublisher
}

func newHarness(n int) *harness {
	return &harness{
		erp:       &fakeERP{products: erpProducts(n)},
		catalog:   newMemoryCatalog(),
		runs:      newMemoryRuns(),
		cache:     &memoryCache{},
		publisher: &recordingPublisher{},
	}
}

func (h *harness) orchestrator(t *testing.T, opts ...Option) *Orchestrator {
	opts = append([]Option{
		WithPageSize(10),
		WithRunCache(h.cache),
		WithEventPublisher(h.publisher),
	}, opts...)
	return NewOrchestrator(h.erp, h.catalog, h.runs, zaptest.NewLogger(t), opts...)
}

func TestOrchestrator_PaginationExhaustive(t *testing.T) {
	h := newHarness(25)
	run, err := h.orchestrator(t).Run(context.Background(), productsync.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, productsync.RunStateDone, run.State)
	assert.Equal(t, 3, run.Pages)
	assert.Equal(t, 25, run.Fetched)
	assert.Equal(t, 25, run.Created)
	assert.Zero(t, run.Updated)
	require.NotNil(t, run.FinishedAt)

	// ceil(25/10) non-empty pages plus the empty page that ends the run.
	require.Len(t, h.erp.pages, 4)
	for i, p := range h.erp.pages {
		assert.Equal(t, productsync.Pagination{Offset: i * 10, Limit: 10}, p)
	}
}

func TestOrchestrator_ExactMultipleOfPageSize(t *testing.T) {
	h := newHarness(20)
	run, err := h.orchestrator(t).Run(context.Background(), productsync.TriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Pages)
	assert.Len(t, h.erp.pages, 3)
	assert.Equal(t, productsync.TriggerScheduled, run.Trigger)
}

func TestOrchestrator_EmptyCatalog(t *testing.T) {
	h := newHarness(0)
	run, err := h.orchestrator(t).Run(context.Background(), productsync.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, productsync.RunStateDone, run.State)
	assert.Zero(t, run.Pages)
	assert.Len(t, h.erp.pages, 1)
	assert.Empty(t, h.publisher.events)
}

func TestOrchestrator_Idempotence(t *testing.T) {
	h := newHarness(15)
	o := h.orchestrator(t)

	first, err := o.Run(context.Background(), productsync.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 15, first.Created)

	second, err := o.Run(context.Background(), productsync.TriggerManual)
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, 15, second.Updated)
	assert.Len(t, h.catalog.products, 15, "no duplicates after a rerun")
	assert.NotEqual(t, first.ID, second.ID)
}

func TestOrchestrator_ThreadsSession(t *testing.T) {
	h := newHarness(5)
	_, err := h.orchestrator(t).Run(context.Background(), productsync.TriggerManual)
	require.NoError(t, err)
	require.Len(t, h.erp.sessions, 2)
	assert.True(t, h.erp.sessions[0].IsZero())
	assert.Equal(t, int64(2), h.erp.sessions[1].UID)
}

func TestOrchestrator_FailureKeepsPartialCounts(t *testing.T) {
	h := newHarness(40)
	h.erp.failAt = 3
	h.erp.err = productsync.ErrTransport

	run, err := h.orchestrator(t).Run(context.Background(), productsync.TriggerManual)
	require.Error(t, err)
	assert.ErrorIs(t, err, productsync.ErrTransport)

	assert.Equal(t, productsync.RunStateFailed, run.State)
	assert.Equal(t, "transport", run.ErrorKind)
	assert.Contains(t, run.Error, "offset 20")
	assert.Equal(t, 2, run.Pages)
	assert.Equal(t, 20, run.Fetched)
	assert.Equal(t, 20, run.Created)
	assert.Len(t, h.erp.pages, 3, "no fetch after the failure")
	assert.Len(t, h.catalog.products, 20, "dispatched pages are not rolled back")

	assert.Equal(t, productsync.RunStateFailed, h.runs.last.State)
	require.NotNil(t, h.cache.run)
	assert.Equal(t, run.ID, h.cache.run.ID)
}

func TestOrchestrator_UpdateFailureKeepsCommittedCreates(t *testing.T) {
	h := newHarness(5)
	o := h.orchestrator(t)
	_, err := o.Run(context.Background(), productsync.TriggerManual)
	require.NoError(t, err)

	// page 1 now mixes the 5 known products with 5 new ones
	h.erp.products = erpProducts(10)
	h.catalog.updateErr = fmt.Errorf("%w: boom", productsync.ErrDispatch)
	h.publisher.events = nil

	run, err := o.Run(context.Background(), productsync.TriggerManual)
	require.Error(t, err)
	assert.ErrorIs(t, err, productsync.ErrDispatch)

	assert.Equal(t, productsync.RunStateFailed, run.State)
	assert.Equal(t, "dispatch", run.ErrorKind)
	assert.Len(t, h.catalog.products, 10)
	assert.Equal(t, 5, run.Created, "committed creates stay counted")
	assert.Equal(t, 10, run.Fetched)
	assert.Zero(t, run.Updated)
	assert.Zero(t, run.Pages)

	require.NotNil(t, h.runs.last)
	assert.Equal(t, 5, h.runs.last.Created)
	require.Len(t, h.publisher.events, 1)
	assert.Len(t, h.publisher.events[0].Created, 5)
	assert.Empty(t, h.publisher.events[0].Updated)
}

func TestOrchestrator_ErrorKinds(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness) []Option
		kind  string
	}{
		{"store config", func(h *harness) []Option {
			h.catalog.refsErr = productsync.ErrStoreConfig
			return nil
		}, "store_config"},
		{"dispatch", func(h *harness) []Option {
			h.catalog.createErr = productsync.ErrDispatch
			return nil
		}, "dispatch"},
		{"mapping", func(h *harness) []Option {
			h.erp.products[3].Currency = productsync.CurrencyRef{}
			return nil
		}, "mapping"},
		{"media", func(h *harness) []Option {
			return []Option{WithMediaUploader(stubMedia{err: productsync.ErrMedia})}
		}, "media"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(5)
			opts := tt.setup(h)
			run, err := h.orchestrator(t, opts...).Run(context.Background(), productsync.TriggerManual)
			require.Error(t, err)
			assert.Equal(t, tt.kind, run.ErrorKind)
			assert.Equal(t, tt.kind, productsync.ErrorKind(err))
			assert.Zero(t, run.Pages)
		})
	}
}

func TestOrchestrator_CanceledContext(t *testing.T) {
	h := newHarness(5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := h.orchestrator(t).Run(ctx, productsync.TriggerManual)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "timeout", run.ErrorKind)
	assert.Empty(t, h.erp.pages)
}

func TestOrchestrator_PublishesOneEventPerPage(t *testing.T) {
	h := newHarness(15)
	o := h.orchestrator(t)
	run, err := o.Run(context.Background(), productsync.TriggerManual)
	require.NoError(t, err)

	require.Len(t, h.publisher.events, 2)
	assert.Equal(t, 1, h.publisher.events[0].Page)
	assert.Len(t, h.publisher.events[0].Created, 10)
	assert.Equal(t, 2, h.publisher.events[1].Page)
	assert.Len(t, h.publisher.events[1].Created, 5)
	assert.Equal(t, run.ID, h.publisher.events[0].RunID)
	assert.Equal(t, run.ID, h.publisher.events[0].AggregateID())

	_, err = o.Run(context.Background(), productsync.TriggerManual)
	require.NoError(t, err)
	require.Len(t, h.publisher.events, 4)
	assert.Len(t, h.publisher.events[2].Updated, 10)
}

func TestOrchestrator_PublishFailureDoesNotFailRun(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	h := newHarness(3)
	h.publisher.err = errors.New("bus stopped")

	o := NewOrchestrator(h.erp, h.catalog, h.runs, zap.New(core), WithEventPublisher(h.publisher))
	run, err := o.Run(context.Background(), productsync.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, productsync.RunStateDone, run.State)
	assert.Equal(t, 1, logs.FilterMessage("failed to publish products synced event").Len())
}

func TestOrchestrator_RunStorageFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	h := newHarness(3)
	h.runs.err = errors.New("db down")

	o := NewOrchestrator(h.erp, h.catalog, h.runs, zap.New(core))
	run, err := o.Run(context.Background(), productsync.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, productsync.RunStateDone, run.State)
	assert.GreaterOrEqual(t, logs.FilterMessage("failed to save sync run").Len(), 1)
}

func TestOrchestrator_PersistsProgress(t *testing.T) {
	h := newHarness(15)
	_, err := h.orchestrator(t).Run(context.Background(), productsync.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, []productsync.RunState{
		productsync.RunStatePaging,
		productsync.RunStatePaging,
		productsync.RunStatePaging,
		productsync.RunStateDone,
	}, h.runs.states)
	assert.Equal(t, 1, h.cache.sets)
}

func TestOrchestrator_MediaURLsReachCatalog(t *testing.T) {
	h := newHarness(2)
	_, err := h.orchestrator(t, WithMediaUploader(stubMedia{})).Run(context.Background(), productsync.TriggerManual)
	require.NoError(t, err)
	p := h.catalog.products["2"]
	assert.Equal(t, "https://cdn.example.com/products/2.png", p.Thumbnail)
	assert.Equal(t, []string{"sc_1"}, p.SalesChannelIDs)
	assert.Equal(t, "sp_1", p.ShippingProfileID)
}

func TestOrchestrator_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	metrics, err := telemetry.NewSyncMetrics(provider.Meter("test"))
	require.NoError(t, err)

	h := newHarness(12)
	_, err = h.orchestrator(t, WithMetrics(metrics)).Run(context.Background(), productsync.TriggerManual)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if s, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range s.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(1), sums["catalogsync.sync.runs"])
	assert.Equal(t, int64(2), sums["catalogsync.sync.pages"])
	assert.Equal(t, int64(12), sums["catalogsync.sync.products"])
}
