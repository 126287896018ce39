package scheduler

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/productsync"
)

// maxRetryDelay caps the exponential retry backoff.
const maxRetryDelay = 30 * time.Minute

// ---------------------------------------------------------------------------
// Product Sync Job Types
// ---------------------------------------------------------------------------

// ProductSyncJobStatus represents the status of a product sync job
type ProductSyncJobStatus string

const (
	ProductSyncJobStatusPending   ProductSyncJobStatus = "PENDING"
	ProductSyncJobStatusRunning   ProductSyncJobStatus = "RUNNING"
	ProductSyncJobStatusSuccess   ProductSyncJobStatus = "SUCCESS"
	ProductSyncJobStatusFailed    ProductSyncJobStatus = "FAILED"
	ProductSyncJobStatusCancelled ProductSyncJobStatus = "CANCELLED"
)

// IsTerminal returns true if no further transition is expected
func (s ProductSyncJobStatus) IsTerminal() bool {
	return s == ProductSyncJobStatusSuccess || s == ProductSyncJobStatusFailed || s == ProductSyncJobStatusCancelled
}

// ProductSyncJob is one queued request to run a catalog sync. A job may
// produce several runs when it is retried; RunID points at the last one.
type ProductSyncJob struct {
	ID          uuid.UUID
	Trigger     productsync.Trigger
	Status      ProductSyncJobStatus
	Error       string
	ErrorKind   string
	SubmittedAt time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time

	// Results of the last run
	RunID   *uuid.UUID
	Pages   int
	Fetched int
	Created int
	Updated int
}

// NewProductSyncJob creates a new pending job
func NewProductSyncJob(trigger productsync.Trigger, maxRetries int) *ProductSyncJob {
	return &ProductSyncJob{
		ID:          uuid.New(),
		Trigger:     trigger,
		Status:      ProductSyncJobStatusPending,
		SubmittedAt: time.Now(),
		MaxRetries:  maxRetries,
	}
}

// Start marks the job as running
func (j *ProductSyncJob) Start() {
	now := time.Now()
	j.Status = ProductSyncJobStatusRunning
	j.StartedAt = &now
	j.CompletedAt = nil
	j.NextRetryAt = nil
	j.Error = ""
	j.ErrorKind = ""
}

// RecordRun copies the counters of run onto the job
func (j *ProductSyncJob) RecordRun(run *productsync.Run) {
	if run == nil {
		return
	}
	id := run.ID
	j.RunID = &id
	j.Pages = run.Pages
	j.Fetched = run.Fetched
	j.Created = run.Created
	j.Updated = run.Updated
}

// Complete marks the job as successful
func (j *ProductSyncJob) Complete() {
	now := time.Now()
	j.Status = ProductSyncJobStatusSuccess
	j.CompletedAt = &now
}

// Fail marks the job as failed
func (j *ProductSyncJob) Fail(err error) {
	now := time.Now()
	j.Status = ProductSyncJobStatusFailed
	j.CompletedAt = &now
	j.Error = err.Error()
	j.ErrorKind = productsync.ErrorKind(err)
}

// Cancel marks the job as cancelled
func (j *ProductSyncJob) Cancel(reason string) {
	now := time.Now()
	j.Status = ProductSyncJobStatusCancelled
	j.CompletedAt = &now
	j.Error = reason
}

// ShouldRetry returns true if the job should be retried
func (j *ProductSyncJob) ShouldRetry() bool {
	return j.Status == ProductSyncJobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry puts the job back to pending and returns the backoff delay
// (baseDelay * 2^(retryCount-1), capped at 30 minutes).
func (j *ProductSyncJob) ScheduleRetry(baseDelay time.Duration) time.Duration {
	j.RetryCount++
	j.Status = ProductSyncJobStatusPending
	delay := baseDelay * time.Duration(1<<(j.RetryCount-1))
	if delay > maxRetryDelay || delay <= 0 {
		delay = maxRetryDelay
	}
	next := time.Now().Add(delay)
	j.NextRetryAt = &next
	return delay
}

// ---------------------------------------------------------------------------
// ProductSyncSchedulerConfig
// ---------------------------------------------------------------------------

// ProductSyncSchedulerConfig holds configuration for the product sync scheduler
type ProductSyncSchedulerConfig struct {
	// MaxConcurrentJobs is the number of workers. One worker keeps runs
	// of this process strictly sequential.
	MaxConcurrentJobs int
	// JobTimeout is the maximum time a job can run
	JobTimeout time.Duration
	// RetryAttempts is the number of retry attempts for failed jobs
	RetryAttempts int
	// RetryDelay is the base delay between retries (with exponential backoff)
	RetryDelay time.Duration
	// QueueSize is the capacity of the job queue
	QueueSize int
	// HistorySize is the number of finished jobs kept in memory
	HistorySize int
}

// DefaultProductSyncSchedulerConfig returns default configuration
func DefaultProductSyncSchedulerConfig() ProductSyncSchedulerConfig {
	return ProductSyncSchedulerConfig{
		MaxConcurrentJobs: 1,
		JobTimeout:        30 * time.Minute,
		RetryAttempts:     0,
		RetryDelay:        time.Minute,
		QueueSize:         100,
		HistorySize:       100,
	}
}

// Validate validates the configuration
func (c *ProductSyncSchedulerConfig) Validate() error {
	if c.MaxConcurrentJobs <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.RetryAttempts < 0 {
		return ErrInvalidConfig
	}
	if c.RetryAttempts > 0 && c.RetryDelay <= 0 {
		return ErrInvalidConfig
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 100
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 100
	}
	return nil
}

// ---------------------------------------------------------------------------
// ProductSyncScheduler
// ---------------------------------------------------------------------------

// ProductSyncStats is a point-in-time view of the scheduler
type ProductSyncStats struct {
	Running      bool
	Workers      int
	QueuedJobs   int
	ActiveJobs   int
	FinishedJobs int
}

// ProductSyncScheduler queues product sync jobs and runs them on a worker pool
type ProductSyncScheduler struct {
	config   ProductSyncSchedulerConfig
	executor ProductSyncExecutor
	logger   *zap.Logger

	jobs      chan *ProductSyncJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// Snapshots of queued/running jobs and of finished jobs (newest first)
	historyMu sync.RWMutex
	active    map[uuid.UUID]ProductSyncJob
	history   []ProductSyncJob
}

// NewProductSyncScheduler creates a new product sync scheduler
func NewProductSyncScheduler(config ProductSyncSchedulerConfig, executor ProductSyncExecutor, logger *zap.Logger) (*ProductSyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &ProductSyncScheduler{
		config:   config,
		executor: executor,
		logger:   logger.Named("product_sync_scheduler"),
		jobs:     make(chan *ProductSyncJob, config.QueueSize),
		active:   make(map[uuid.UUID]ProductSyncJob),
		history:  make([]ProductSyncJob, 0, config.HistorySize),
	}, nil
}

// Start starts the worker pool
func (s *ProductSyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Product sync scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
		zap.Int("retry_attempts", s.config.RetryAttempts),
	)

	return nil
}

// Stop cancels running jobs and waits for the workers to exit. Queued jobs
// are dropped.
func (s *ProductSyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	close(s.jobs)
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Product sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Product sync scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the worker pool is started
func (s *ProductSyncScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// ScheduleSync creates a job for trigger and submits it. The returned job
// is a snapshot taken at submission.
func (s *ProductSyncScheduler) ScheduleSync(trigger productsync.Trigger) (ProductSyncJob, error) {
	job := NewProductSyncJob(trigger, s.config.RetryAttempts)
	if err := s.SubmitJob(job); err != nil {
		return ProductSyncJob{}, err
	}
	return *job, nil
}

// SubmitJob submits a job for execution
func (s *ProductSyncScheduler) SubmitJob(job *ProductSyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	s.track(job)
	select {
	case s.jobs <- job:
		s.logger.Debug("Product sync job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("trigger", string(job.Trigger)),
			zap.Int("retry_count", job.RetryCount),
		)
		return nil
	default:
		s.untrack(job.ID)
		return ErrJobQueueFull
	}
}

// worker processes jobs from the queue
func (s *ProductSyncScheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-s.jobs:
			if !ok {
				return
			}
			s.processJob(ctx, job, workerID)
		}
	}
}

// processJob executes a single job
func (s *ProductSyncScheduler) processJob(ctx context.Context, job *ProductSyncJob, workerID int) {
	if ctx.Err() != nil {
		job.Cancel("scheduler stopped")
		s.finish(job)
		return
	}

	job.Start()
	s.track(job)
	s.logger.Info("Processing product sync job",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("trigger", string(job.Trigger)),
		zap.Int("retry_count", job.RetryCount),
	)

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	err := s.executor.Execute(jobCtx, job)
	if err == nil {
		job.Complete()
		s.logger.Info("Product sync job completed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.Int("pages", job.Pages),
			zap.Int("fetched", job.Fetched),
			zap.Int("created", job.Created),
			zap.Int("updated", job.Updated),
		)
		s.finish(job)
		return
	}

	if ctx.Err() != nil {
		job.Cancel("scheduler stopped")
		s.logger.Warn("Product sync job cancelled",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		s.finish(job)
		return
	}

	job.Fail(err)
	s.logger.Error("Product sync job failed",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("error_kind", job.ErrorKind),
		zap.Error(err),
	)

	if !job.ShouldRetry() {
		s.finish(job)
		return
	}

	delay := job.ScheduleRetry(s.config.RetryDelay)
	s.track(job)
	s.logger.Info("Product sync job scheduled for retry",
		zap.String("job_id", job.ID.String()),
		zap.Int("retry_count", job.RetryCount),
		zap.Int("max_retries", job.MaxRetries),
		zap.Time("next_retry_at", *job.NextRetryAt),
	)

	s.wg.Add(1)
	go s.retryAfter(ctx, job, delay)
}

// retryAfter resubmits job once delay has elapsed
func (s *ProductSyncScheduler) retryAfter(ctx context.Context, job *ProductSyncJob, delay time.Duration) {
	defer s.wg.Done()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		job.Cancel("scheduler stopped before retry")
		s.finish(job)
	case <-timer.C:
		if err := s.SubmitJob(job); err != nil {
			job.Fail(errors.Join(ErrRetryNotQueued, err))
			s.logger.Warn("Failed to re-queue product sync job for retry",
				zap.String("job_id", job.ID.String()),
				zap.Error(err),
			)
			s.finish(job)
		}
	}
}

// ---------------------------------------------------------------------------
// Job tracking
// ---------------------------------------------------------------------------

func (s *ProductSyncScheduler) track(job *ProductSyncJob) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	s.active[job.ID] = *job
}

func (s *ProductSyncScheduler) untrack(id uuid.UUID) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	delete(s.active, id)
}

// finish moves a job from the active set to the history
func (s *ProductSyncScheduler) finish(job *ProductSyncJob) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	delete(s.active, job.ID)
	s.history = append([]ProductSyncJob{*job}, s.history...)
	if len(s.history) > s.config.HistorySize {
		s.history = s.history[:s.config.HistorySize]
	}
}

// GetJob returns a snapshot of a queued, running or finished job
func (s *ProductSyncScheduler) GetJob(id uuid.UUID) (ProductSyncJob, error) {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if job, ok := s.active[id]; ok {
		return job, nil
	}
	for _, job := range s.history {
		if job.ID == id {
			return job, nil
		}
	}
	return ProductSyncJob{}, ErrJobNotFound
}

// GetActiveJobs returns the queued and running jobs, oldest submission first
func (s *ProductSyncScheduler) GetActiveJobs() []ProductSyncJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	out := make([]ProductSyncJob, 0, len(s.active))
	for _, job := range s.active {
		out = append(out, job)
	}
	slices.SortFunc(out, func(a, b ProductSyncJob) int {
		return a.SubmittedAt.Compare(b.SubmittedAt)
	})
	return out
}

// GetJobHistory returns up to limit finished jobs, newest first
func (s *ProductSyncScheduler) GetJobHistory(limit int) []ProductSyncJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]ProductSyncJob, limit)
	copy(out, s.history[:limit])
	return out
}

// GetStats returns current scheduler statistics
func (s *ProductSyncScheduler) GetStats() ProductSyncStats {
	s.historyMu.RLock()
	active, finished := len(s.active), len(s.history)
	s.historyMu.RUnlock()

	return ProductSyncStats{
		Running:      s.IsRunning(),
		Workers:      s.config.MaxConcurrentJobs,
		QueuedJobs:   len(s.jobs),
		ActiveJobs:   active,
		FinishedJobs: finished,
	}
}
