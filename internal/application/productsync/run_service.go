package productsync

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/productsync"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
)

// Paging bounds of run listings
const (
	DefaultRunPageSize = 20
	MaxRunPageSize     = 100
)

// RunService reads sync run history.
type RunService struct {
	runs   productsync.RunReader
	cache  RunCache
	logger *zap.Logger
}

// NewRunService creates a RunService. cache may be nil.
func NewRunService(runs productsync.RunReader, cache RunCache, log *zap.Logger) *RunService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RunService{runs: runs, cache: cache, logger: log.Named("sync_runs")}
}

// Get returns one run
func (s *RunService) Get(ctx context.Context, id uuid.UUID) (*RunResponse, error) {
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToRunResponse(run), nil
}

// Latest returns the most recent run, from cache when possible. The cache
// is refilled from storage on a miss.
func (s *RunService) Latest(ctx context.Context) (*RunResponse, error) {
	if s.cache != nil {
		if run, err := s.cache.Get(ctx); err == nil {
			return ToRunResponse(run), nil
		}
	}

	run, err := s.runs.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, run); err != nil {
			logger.L(ctx, s.logger).Warn("failed to cache latest run", zap.Error(err))
		}
	}
	return ToRunResponse(run), nil
}

// List returns one page of runs, newest first.
func (s *RunService) List(ctx context.Context, page, pageSize int) (*RunListResponse, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultRunPageSize
	}
	if pageSize > MaxRunPageSize {
		pageSize = MaxRunPageSize
	}

	runs, total, err := s.runs.List(ctx, page, pageSize)
	if err != nil {
		return nil, err
	}
	out := &RunListResponse{
		Runs:     make([]RunResponse, 0, len(runs)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for _, r := range runs {
		out.Runs = append(out.Runs, *ToRunResponse(r))
	}
	return out, nil
}
