package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aisleworks/shelfsync/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncGroupRepositoryImpl implements SyncGroupRepository interface
type SyncGroupRepositoryImpl struct {
	*BaseRepository[models.SyncGroup, models.SyncGroupFilter]
}

// NewSyncGroupRepository creates a new sync group repository
func NewSyncGroupRepository(db *gorm.DB) SyncGroupRepository {
	return &SyncGroupRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SyncGroup, models.SyncGroupFilter](db),
	}
}

// ByUUID retrieves a sync group by its UUID
func (r *SyncGroupRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.SyncGroup, error) {
	db := r.getDB(ctx)
	var row models.SyncGroup
	if err := db.Where("uuid = ?", id).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Update persists all fields of an existing sync group
func (r *SyncGroupRepositoryImpl) Update(ctx context.Context, group *models.SyncGroup) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Save(group).Error
	if err != nil {
		return fmt.Errorf("failed to update sync group: %w", err)
	}

	return nil
}

// applyFilter applies filter criteria to a GORM query
func (r *SyncGroupRepositoryImpl) applyFilter(query *gorm.DB, filter models.SyncGroupFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	return query
}

// ByFilter retrieves sync groups based on filter criteria
func (r *SyncGroupRepositoryImpl) ByFilter(ctx context.Context, filter models.SyncGroupFilter, orderBy string, limit, offset int) ([]*models.SyncGroup, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.SyncGroup{})

	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.SyncGroup
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of sync groups matching the filter
func (r *SyncGroupRepositoryImpl) Count(ctx context.Context, filter models.SyncGroupFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.SyncGroup{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any sync group matching the filter exists
func (r *SyncGroupRepositoryImpl) Exists(ctx context.Context, filter models.SyncGroupFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
