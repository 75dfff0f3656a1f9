package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aisleworks/shelfsync/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PipelineTaskRepositoryImpl implements PipelineTaskRepository interface
type PipelineTaskRepositoryImpl struct {
	*BaseRepository[models.PipelineTask, models.PipelineTaskFilter]
}

// NewPipelineTaskRepository creates a new pipeline task repository
func NewPipelineTaskRepository(db *gorm.DB) PipelineTaskRepository {
	return &PipelineTaskRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PipelineTask, models.PipelineTaskFilter](db),
	}
}

// ByUUID retrieves a pipeline task by its UUID
func (r *PipelineTaskRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.PipelineTask, error) {
	db := r.getDB(ctx)
	var row models.PipelineTask
	if err := db.Where("uuid = ?", id).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Update persists all fields of an existing pipeline task
func (r *PipelineTaskRepositoryImpl) Update(ctx context.Context, task *models.PipelineTask) error {
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

	err = db.Save(task).Error
	if err != nil {
		return fmt.Errorf("failed to update pipeline task: %w", err)
	}

	return nil
}

// MarkStarted transitions a pending task to STARTED
func (r *PipelineTaskRepositoryImpl) MarkStarted(ctx context.Context, id uuid.UUID, at time.Time) error {
	db := r.getDB(ctx)
	err := db.Model(&models.PipelineTask{}).
		Where("uuid = ?", id).
		Updates(map[string]any{
			"status":     models.PipelineTaskStatusStarted,
			"started_at": at,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark pipeline task %s started: %w", id, err)
	}
	return nil
}

// MarkEnded transitions a task to a terminal status with an optional error text
func (r *PipelineTaskRepositoryImpl) MarkEnded(ctx context.Context, id uuid.UUID, status models.PipelineTaskStatus, errText *string, at time.Time) error {
	db := r.getDB(ctx)
	err := db.Model(&models.PipelineTask{}).
		Where("uuid = ?", id).
		Updates(map[string]any{
			"status":     status,
			"error":      errText,
			"ended_at":   at,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark pipeline task %s ended: %w", id, err)
	}
	return nil
}

// ListByGroup retrieves all tasks submitted for a bulk group
func (r *PipelineTaskRepositoryImpl) ListByGroup(ctx context.Context, groupUUID uuid.UUID) ([]*models.PipelineTask, error) {
	db := r.getDB(ctx)
	var rows []*models.PipelineTask
	err := db.Model(&models.PipelineTask{}).
		Where("group_uuid = ?", groupUUID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountByGroupAndStatus aggregates per-status task counts for a bulk group
func (r *PipelineTaskRepositoryImpl) CountByGroupAndStatus(ctx context.Context, groupUUID uuid.UUID) (map[models.PipelineTaskStatus]int64, error) {
	db := r.getDB(ctx)

	type statusCount struct {
		Status models.PipelineTaskStatus
		Count  int64
	}
	var rows []statusCount
	err := db.Model(&models.PipelineTask{}).
		Select("status, COUNT(*) AS count").
		Where("group_uuid = ?", groupUUID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[models.PipelineTaskStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *PipelineTaskRepositoryImpl) applyFilter(query *gorm.DB, filter models.PipelineTaskFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.TagID != nil {
		query = query.Where("tag_id = ?", *filter.TagID)
	}
	if filter.Stage != nil {
		query = query.Where("stage = ?", *filter.Stage)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.GroupUUID != nil {
		query = query.Where("group_uuid = ?", *filter.GroupUUID)
	}
	return query
}

// ByFilter retrieves pipeline tasks based on filter criteria
func (r *PipelineTaskRepositoryImpl) ByFilter(ctx context.Context, filter models.PipelineTaskFilter, orderBy string, limit, offset int) ([]*models.PipelineTask, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.PipelineTask{})

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

	var rows []*models.PipelineTask
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of pipeline tasks matching the filter
func (r *PipelineTaskRepositoryImpl) Count(ctx context.Context, filter models.PipelineTaskFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.PipelineTask{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any pipeline task matching the filter exists
func (r *PipelineTaskRepositoryImpl) Exists(ctx context.Context, filter models.PipelineTaskFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
