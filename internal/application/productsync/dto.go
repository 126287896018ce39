package productsync

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/catalogsync/internal/domain/productsync"
)

// RunResponse is the report of a sync run.
type RunResponse struct {
	ID         uuid.UUID  `json:"id"`
	Trigger    string     `json:"trigger"`
	State      string     `json:"state"`
	PageSize   int        `json:"page_size"`
	Pages      int        `json:"pages"`
	Fetched    int        `json:"fetched"`
	Created    int        `json:"created"`
	Updated    int        `json:"updated"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DurationMs int64      `json:"duration_ms"`
	Error      string     `json:"error,omitempty"`
	ErrorKind  string     `json:"error_kind,omitempty"`
}

// RunListResponse is one page of runs.
type RunListResponse struct {
	Runs     []RunResponse `json:"runs"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// ToRunResponse converts a domain run
func ToRunResponse(r *productsync.Run) *RunResponse {
	return &RunResponse{
		ID:         r.ID,
		Trigger:    string(r.Trigger),
		State:      r.State.String(),
		PageSize:   r.PageSize,
		Pages:      r.Pages,
		Fetched:    r.Fetched,
		Created:    r.Created,
		Updated:    r.Updated,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DurationMs: r.Duration().Milliseconds(),
		Error:      r.Error,
		ErrorKind:  r.ErrorKind,
	}
}
