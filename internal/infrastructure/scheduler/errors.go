package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrJobNotFound is returned when a job is not found
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ---------------------------------------------------------------------------
	// Product Sync Errors
	// ---------------------------------------------------------------------------

	// ErrInvalidCronSchedule is returned when the cron expression cannot be parsed
	ErrInvalidCronSchedule = errors.New("invalid cron schedule")

	// ErrRetryNotQueued is recorded on a job whose retry could not be submitted
	ErrRetryNotQueued = errors.New("product sync retry could not be queued")

	// ErrNoSyncRunner is returned when the executor has nothing to run
	ErrNoSyncRunner = errors.New("no product sync runner configured")
)
