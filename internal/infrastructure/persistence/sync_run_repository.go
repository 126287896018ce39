package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/catalogsync/internal/domain/productsync"
	"github.com/erp/catalogsync/internal/infrastructure/persistence/models"
)

// GormSyncRunRepository implements productsync.RunRepository using GORM
type GormSyncRunRepository struct {
	db *gorm.DB
}

// NewGormSyncRunRepository creates a new GormSyncRunRepository
func NewGormSyncRunRepository(db *gorm.DB) *GormSyncRunRepository {
	return &GormSyncRunRepository{db: db}
}

var _ productsync.RunRepository = (*GormSyncRunRepository)(nil)

// ---------------------------------------------------------------------------
// RunReader implementation
// ---------------------------------------------------------------------------

// FindByID finds a run by its ID
func (r *GormSyncRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*productsync.Run, error) {
	var model models.SyncRunModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, productsync.ErrRunNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Latest returns the most recently created run
func (r *GormSyncRunRepository) Latest(ctx context.Context) (*productsync.Run, error) {
	var model models.SyncRunModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, productsync.ErrRunNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// List returns one page of runs, newest first, and the total count
func (r *GormSyncRunRepository) List(ctx context.Context, page, pageSize int) ([]*productsync.Run, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.SyncRunModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.SyncRunModel
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	runs := make([]*productsync.Run, len(rows))
	for i := range rows {
		runs[i] = rows[i].ToDomain()
	}
	return runs, total, nil
}

// ---------------------------------------------------------------------------
// RunWriter implementation
// ---------------------------------------------------------------------------

// syncRunMutableColumns are overwritten when a run is saved again; created_at
// keeps the first snapshot's value.
var syncRunMutableColumns = []string{
	"state", "next_offset", "pages", "fetched", "created", "updated",
	"started_at", "finished_at", "error", "error_kind", "updated_at",
}

// Save inserts the run or overwrites its previous snapshot
func (r *GormSyncRunRepository) Save(ctx context.Context, run *productsync.Run) error {
	var model models.SyncRunModel
	model.FromDomain(run)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(syncRunMutableColumns),
	}).Create(&model).Error
}
