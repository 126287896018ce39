package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/catalogsync/internal/infrastructure/scheduler"
)

// JobResponse represents a queued or finished sync job
type JobResponse struct {
	ID          uuid.UUID  `json:"id"`
	Trigger     string     `json:"trigger"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	ErrorKind   string     `json:"error_kind,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	RunID       *uuid.UUID `json:"run_id,omitempty"`
	Pages       int        `json:"pages"`
	Fetched     int        `json:"fetched"`
	Created     int        `json:"created"`
	Updated     int        `json:"updated"`
}

// JobListResponse groups the jobs in flight and the recent finished ones
type JobListResponse struct {
	Active  []JobResponse `json:"active"`
	History []JobResponse `json:"history"`
}

// SyncStatusResponse describes the cron trigger and its worker pool
type SyncStatusResponse struct {
	Running      bool       `json:"running"`
	Schedule     string     `json:"schedule"`
	NextRun      *time.Time `json:"next_run,omitempty"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	Workers      int        `json:"workers"`
	QueuedJobs   int        `json:"queued_jobs"`
	ActiveJobs   int        `json:"active_jobs"`
	FinishedJobs int        `json:"finished_jobs"`
}

// JobHistoryRequest limits the job history returned
type JobHistoryRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

func toJobResponse(j scheduler.ProductSyncJob) JobResponse {
	return JobResponse{
		ID:          j.ID,
		Trigger:     string(j.Trigger),
		Status:      string(j.Status),
		Error:       j.Error,
		ErrorKind:   j.ErrorKind,
		SubmittedAt: j.SubmittedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		RetryCount:  j.RetryCount,
		MaxRetries:  j.MaxRetries,
		NextRetryAt: j.NextRetryAt,
		RunID:       j.RunID,
		Pages:       j.Pages,
		Fetched:     j.Fetched,
		Created:     j.Created,
		Updated:     j.Updated,
	}
}

func toJobResponses(jobs []scheduler.ProductSyncJob) []JobResponse {
	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}
	return out
}

func toSyncStatusResponse(s scheduler.ProductSyncTriggerStats) SyncStatusResponse {
	resp := SyncStatusResponse{
		Running:      s.Running,
		Schedule:     s.Schedule,
		LastRun:      s.LastRun,
		Workers:      s.Scheduler.Workers,
		QueuedJobs:   s.Scheduler.QueuedJobs,
		ActiveJobs:   s.Scheduler.ActiveJobs,
		FinishedJobs: s.Scheduler.FinishedJobs,
	}
	if !s.NextRun.IsZero() {
		next := s.NextRun
		resp.NextRun = &next
	}
	return resp
}
