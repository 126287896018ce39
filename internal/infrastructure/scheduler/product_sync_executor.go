package scheduler

import (
	"context"

	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/productsync"
)

// ---------------------------------------------------------------------------
// ProductSyncExecutor Interface
// ---------------------------------------------------------------------------

// ProductSyncExecutor executes product sync jobs
type ProductSyncExecutor interface {
	// Execute runs one catalog sync and records its outcome on job
	Execute(ctx context.Context, job *ProductSyncJob) error
}

// SyncRunner runs one catalog sync pass
type SyncRunner interface {
	Run(ctx context.Context, trigger productsync.Trigger) (*productsync.Run, error)
}

// ---------------------------------------------------------------------------
// ProductSyncExecutorImpl
// ---------------------------------------------------------------------------

// ProductSyncExecutorImpl implements ProductSyncExecutor over a SyncRunner
type ProductSyncExecutorImpl struct {
	runner SyncRunner
	logger *zap.Logger

	// Optional callback invoked after every run, successful or not
	onRunFinished func(ctx context.Context, job *ProductSyncJob, run *productsync.Run)
}

// NewProductSyncExecutor creates a new product sync executor
func NewProductSyncExecutor(runner SyncRunner, logger *zap.Logger) *ProductSyncExecutorImpl {
	return &ProductSyncExecutorImpl{
		runner: runner,
		logger: logger,
	}
}

// SetOnRunFinishedCallback sets the callback for when a run ends
func (e *ProductSyncExecutorImpl) SetOnRunFinishedCallback(cb func(ctx context.Context, job *ProductSyncJob, run *productsync.Run)) {
	e.onRunFinished = cb
}

// Execute runs the catalog sync for job
func (e *ProductSyncExecutorImpl) Execute(ctx context.Context, job *ProductSyncJob) error {
	if e.runner == nil {
		return ErrNoSyncRunner
	}

	e.logger.Debug("Starting product sync execution",
		zap.String("job_id", job.ID.String()),
		zap.String("trigger", string(job.Trigger)),
	)

	run, err := e.runner.Run(ctx, job.Trigger)
	job.RecordRun(run)

	if run != nil {
		e.logger.Debug("Product sync run finished",
			zap.String("job_id", job.ID.String()),
			zap.String("run_id", run.ID.String()),
			zap.String("state", run.State.String()),
		)
	}
	if e.onRunFinished != nil {
		e.onRunFinished(ctx, job, run)
	}
	return err
}
