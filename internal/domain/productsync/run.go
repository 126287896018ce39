package productsync

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultPageSize is the number of ERP products fetched per page.
const DefaultPageSize = 10

// ---------------------------------------------------------------------------
// RunState
// ---------------------------------------------------------------------------

// RunState is the state of a sync run
type RunState string

const (
	RunStateIdle     RunState = "idle"
	RunStatePaging   RunState = "paging"
	RunStateDraining RunState = "draining"
	RunStateDone     RunState = "done"
	RunStateFailed   RunState = "failed"
)

// IsValid returns true if the state is valid
func (s RunState) IsValid() bool {
	switch s {
	case RunStateIdle, RunStatePaging, RunStateDraining, RunStateDone, RunStateFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for done and failed
func (s RunState) IsTerminal() bool {
	return s == RunStateDone || s == RunStateFailed
}

// String returns the string representation of RunState
func (s RunState) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// Trigger
// ---------------------------------------------------------------------------

// Trigger records what started a run
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// IsValid returns true if the trigger is valid
func (t Trigger) IsValid() bool {
	return t == TriggerScheduled || t == TriggerManual
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

// Run is one pass over the ERP catalog. Counters are kept current after
// every page, so a failed run still reports how far it got.
type Run struct {
	ID         uuid.UUID
	Trigger    Trigger
	State      RunState
	PageSize   int
	Offset     int
	Pages      int
	Fetched    int
	Created    int
	Updated    int
	StartedAt  time.Time
	FinishedAt *time.Time
	Error      string
	ErrorKind  string
}

// NewRun creates an idle run. A non-positive page size falls back to DefaultPageSize.
func NewRun(trigger Trigger, pageSize int) *Run {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if !trigger.IsValid() {
		trigger = TriggerManual
	}
	return &Run{
		ID:       uuid.New(),
		Trigger:  trigger,
		State:    RunStateIdle,
		PageSize: pageSize,
	}
}

// Start moves the run from idle to paging at offset 0.
func (r *Run) Start(now time.Time) error {
	if r.State != RunStateIdle {
		return r.invalid(RunStatePaging)
	}
	r.State = RunStatePaging
	r.StartedAt = now
	r.Offset = 0
	return nil
}

// Pagination returns the window of the next page to fetch.
func (r *Run) Pagination() Pagination {
	return Pagination{Offset: r.Offset, Limit: r.PageSize}
}

// RecordPage accounts a dispatched, non-empty page and advances the offset.
func (r *Run) RecordPage(fetched, created, updated int) error {
	if r.State != RunStatePaging {
		return r.invalid(RunStatePaging)
	}
	r.Pages++
	r.Fetched += fetched
	r.Created += created
	r.Updated += updated
	r.Offset += r.PageSize
	return nil
}

// RecordPartialPage accounts a page whose dispatch failed after part of it
// was committed. The page is not counted and the offset does not move.
func (r *Run) RecordPartialPage(fetched, created, updated int) error {
	if r.State != RunStatePaging {
		return r.invalid(RunStatePaging)
	}
	r.Fetched += fetched
	r.Created += created
	r.Updated += updated
	return nil
}

// Drain is called when the ERP returned an empty page.
func (r *Run) Drain() error {
	if r.State != RunStatePaging {
		return r.invalid(RunStateDraining)
	}
	r.State = RunStateDraining
	return nil
}

// Complete finishes a drained run.
func (r *Run) Complete(now time.Time) error {
	if r.State != RunStateDraining {
		return r.invalid(RunStateDone)
	}
	r.State = RunStateDone
	r.FinishedAt = &now
	return nil
}

// Fail aborts a run from any non-terminal state. Counters are left as they are.
func (r *Run) Fail(err error, now time.Time) error {
	if r.State.IsTerminal() {
		return r.invalid(RunStateFailed)
	}
	r.State = RunStateFailed
	r.FinishedAt = &now
	if err != nil {
		r.Error = err.Error()
	}
	r.ErrorKind = ErrorKind(err)
	return nil
}

// Duration returns the run time so far, or the total once finished.
func (r *Run) Duration() time.Duration {
	if r.StartedAt.IsZero() {
		return 0
	}
	if r.FinishedAt != nil {
		return r.FinishedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}

func (r *Run) invalid(to RunState) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.State, to)
}
