package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/productsync"
)

// DefaultCronSchedule runs the sync daily at midnight.
const DefaultCronSchedule = "0 0 * * *"

// ProductSyncCronConfig holds configuration for the product sync cron trigger
type ProductSyncCronConfig struct {
	// CronSchedule is a standard five-field cron expression
	CronSchedule string
	// CheckInterval is how often to check whether a slot is due
	CheckInterval time.Duration
	// RunOnStartup submits one scheduled job as soon as the trigger starts
	RunOnStartup bool
}

// DefaultProductSyncCronConfig returns default cron trigger configuration
func DefaultProductSyncCronConfig() ProductSyncCronConfig {
	return ProductSyncCronConfig{
		CronSchedule:  DefaultCronSchedule,
		CheckInterval: 15 * time.Second,
	}
}

// ProductSyncCronTrigger submits scheduled product sync jobs. It polls on
// CheckInterval and fires at most once per due cron slot, however many
// ticks fall inside it.
type ProductSyncCronTrigger struct {
	config    ProductSyncCronConfig
	schedule  cron.Schedule
	scheduler *ProductSyncScheduler
	logger    *zap.Logger
	now       func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	nextRun   time.Time
	lastRun   time.Time
}

// NewProductSyncCronTrigger creates a new cron trigger
func NewProductSyncCronTrigger(
	config ProductSyncCronConfig,
	scheduler *ProductSyncScheduler,
	logger *zap.Logger,
) (*ProductSyncCronTrigger, error) {
	if config.CronSchedule == "" {
		config.CronSchedule = DefaultCronSchedule
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = 15 * time.Second
	}
	schedule, err := cron.ParseStandard(config.CronSchedule)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidCronSchedule, config.CronSchedule, err)
	}

	return &ProductSyncCronTrigger{
		config:    config,
		schedule:  schedule,
		scheduler: scheduler,
		logger:    logger.Named("product_sync_cron"),
		now:       time.Now,
	}, nil
}

// Start starts the trigger loop
func (c *ProductSyncCronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.nextRun = c.schedule.Next(c.now())
	next := c.nextRun
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	if c.config.RunOnStartup {
		c.submit(productsync.TriggerScheduled)
	}

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Product sync cron trigger started",
		zap.String("schedule", c.config.CronSchedule),
		zap.Duration("check_interval", c.config.CheckInterval),
		zap.Time("next_run", next),
	)

	return nil
}

// Stop stops the trigger loop
func (c *ProductSyncCronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Product sync cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop checks periodically whether a cron slot is due
func (c *ProductSyncCronTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndTrigger()
		}
	}
}

// checkAndTrigger submits a scheduled job if the next slot has passed. Slots
// missed while the process was busy collapse into one job.
func (c *ProductSyncCronTrigger) checkAndTrigger() bool {
	now := c.now()

	c.mu.Lock()
	if now.Before(c.nextRun) {
		c.mu.Unlock()
		return false
	}
	c.lastRun = now
	c.nextRun = c.schedule.Next(now)
	c.mu.Unlock()

	c.logger.Info("Triggering scheduled product sync")
	return c.submit(productsync.TriggerScheduled)
}

func (c *ProductSyncCronTrigger) submit(trigger productsync.Trigger) bool {
	job, err := c.scheduler.ScheduleSync(trigger)
	if err != nil {
		c.logger.Error("Failed to schedule product sync", zap.String("trigger", string(trigger)), zap.Error(err))
		return false
	}
	c.logger.Debug("Product sync job queued", zap.String("job_id", job.ID.String()))
	return true
}

// TriggerManualSync queues a manual sync outside the cron schedule
func (c *ProductSyncCronTrigger) TriggerManualSync() (ProductSyncJob, error) {
	return c.scheduler.ScheduleSync(productsync.TriggerManual)
}

// ProductSyncTriggerStats describes the trigger and its scheduler
type ProductSyncTriggerStats struct {
	Running   bool
	Schedule  string
	NextRun   time.Time
	LastRun   *time.Time
	Scheduler ProductSyncStats
}

// GetSchedulerStats returns trigger and scheduler statistics
func (c *ProductSyncCronTrigger) GetSchedulerStats() ProductSyncTriggerStats {
	c.mu.Lock()
	stats := ProductSyncTriggerStats{
		Running:  c.isRunning,
		Schedule: c.config.CronSchedule,
		NextRun:  c.nextRun,
	}
	if !c.lastRun.IsZero() {
		last := c.lastRun
		stats.LastRun = &last
	}
	c.mu.Unlock()

	stats.Scheduler = c.scheduler.GetStats()
	return stats
}
