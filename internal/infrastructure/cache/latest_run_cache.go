package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erp/catalogsync/internal/domain/productsync"
)

// LatestRunKey is the key of the latest run snapshot.
const LatestRunKey = KeyPrefix + "run:latest"

// runSnapshot is the cached JSON form of a productsync.Run.
type runSnapshot struct {
	ID         uuid.UUID  `json:"id"`
	Trigger    string     `json:"trigger"`
	State      string     `json:"state"`
	PageSize   int        `json:"page_size"`
	Offset     int        `json:"offset"`
	Pages      int        `json:"pages"`
	Fetched    int        `json:"fetched"`
	Created    int        `json:"created"`
	Updated    int        `json:"updated"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
	ErrorKind  string     `json:"error_kind,omitempty"`
}

// LatestRunCache keeps the snapshot of the most recent sync run so status
// reads do not hit the database.
type LatestRunCache struct {
	store BlobStore
}

// NewLatestRunCache creates a cache on store
func NewLatestRunCache(store BlobStore) *LatestRunCache {
	return &LatestRunCache{store: store}
}

// Get returns the cached run or ErrCacheMiss.
func (c *LatestRunCache) Get(ctx context.Context) (*productsync.Run, error) {
	raw, err := c.store.Get(ctx, LatestRunKey)
	if err != nil {
		return nil, err
	}
	var s runSnapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode latest run: %w", err)
	}
	return &productsync.Run{
		ID:         s.ID,
		Trigger:    productsync.Trigger(s.Trigger),
		State:      productsync.RunState(s.State),
		PageSize:   s.PageSize,
		Offset:     s.Offset,
		Pages:      s.Pages,
		Fetched:    s.Fetched,
		Created:    s.Created,
		Updated:    s.Updated,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Error:      s.Error,
		ErrorKind:  s.ErrorKind,
	}, nil
}

// Set replaces the cached run.
func (c *LatestRunCache) Set(ctx context.Context, run *productsync.Run) error {
	raw, err := json.Marshal(runSnapshot{
		ID:         run.ID,
		Trigger:    string(run.Trigger),
		State:      run.State.String(),
		PageSize:   run.PageSize,
		Offset:     run.Offset,
		Pages:      run.Pages,
		Fetched:    run.Fetched,
		Created:    run.Created,
		Updated:    run.Updated,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Error:      run.Error,
		ErrorKind:  run.ErrorKind,
	})
	if err != nil {
		return fmt.Errorf("encode latest run: %w", err)
	}
	return c.store.Set(ctx, LatestRunKey, raw, 0)
}
