package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/catalogsync/internal/domain/productsync"
)

// SyncRunModel is the persistence model of a productsync.Run.
type SyncRunModel struct {
	ID         uuid.UUID            `gorm:"type:uuid;primary_key"`
	Trigger    productsync.Trigger  `gorm:"type:varchar(20);not null"`
	State      productsync.RunState `gorm:"type:varchar(20);not null;index:idx_sync_runs_state"`
	PageSize   int                  `gorm:"not null"`
	NextOffset int                  `gorm:"not null"`
	Pages      int                  `gorm:"not null"`
	Fetched    int                  `gorm:"not null"`
	Created    int                  `gorm:"not null"`
	Updated    int                  `gorm:"not null"`
	StartedAt  *time.Time
	FinishedAt *time.Time
	Error      string    `gorm:"type:text"`
	ErrorKind  string    `gorm:"type:varchar(32)"`
	CreatedAt  time.Time `gorm:"not null;index:idx_sync_runs_created_at"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncRunModel) TableName() string {
	return "sync_runs"
}

// ToDomain converts the persistence model to a domain Run
func (m *SyncRunModel) ToDomain() *productsync.Run {
	run := &productsync.Run{
		ID:         m.ID,
		Trigger:    m.Trigger,
		State:      m.State,
		PageSize:   m.PageSize,
		Offset:     m.NextOffset,
		Pages:      m.Pages,
		Fetched:    m.Fetched,
		Created:    m.Created,
		Updated:    m.Updated,
		FinishedAt: m.FinishedAt,
		Error:      m.Error,
		ErrorKind:  m.ErrorKind,
	}
	if m.StartedAt != nil {
		run.StartedAt = *m.StartedAt
	}
	return run
}

// FromDomain populates the persistence model from a domain Run
func (m *SyncRunModel) FromDomain(r *productsync.Run) {
	m.ID = r.ID
	m.Trigger = r.Trigger
	m.State = r.State
	m.PageSize = r.PageSize
	m.NextOffset = r.Offset
	m.Pages = r.Pages
	m.Fetched = r.Fetched
	m.Created = r.Created
	m.Updated = r.Updated
	m.StartedAt = nil
	if !r.StartedAt.IsZero() {
		started := r.StartedAt
		m.StartedAt = &started
	}
	m.FinishedAt = r.FinishedAt
	m.Error = r.Error
	m.ErrorKind = r.ErrorKind
}
