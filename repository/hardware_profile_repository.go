package repository

import (
	"context"

	"github.com/aisleworks/shelfsync/models"
	"gorm.io/gorm"
)

// HardwareProfileRepositoryImpl implements HardwareProfileRepository interface
type HardwareProfileRepositoryImpl struct {
	*BaseRepository[models.HardwareProfile, models.HardwareProfileFilter]
}

// NewHardwareProfileRepository creates a new hardware profile repository
func NewHardwareProfileRepository(db *gorm.DB) HardwareProfileRepository {
	return &HardwareProfileRepositoryImpl{
		BaseRepository: NewBaseRepository[models.HardwareProfile, models.HardwareProfileFilter](db),
	}
}

// ByModelNumber retrieves a hardware profile by its model number
func (r *HardwareProfileRepositoryImpl) ByModelNumber(ctx context.Context, modelNumber string) (*models.HardwareProfile, error) {
	filter := models.HardwareProfileFilter{ModelNumber: &modelNumber}
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// applyFilter applies filter criteria to a GORM query
func (r *HardwareProfileRepositoryImpl) applyFilter(query *gorm.DB, filter models.HardwareProfileFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.ModelNumber != nil {
		query = query.Where("model_number = ?", *filter.ModelNumber)
	}
	if filter.ColorScheme != nil {
		query = query.Where("color_scheme = ?", *filter.ColorScheme)
	}
	return query
}

// ByFilter retrieves hardware profiles based on filter criteria
func (r *HardwareProfileRepositoryImpl) ByFilter(ctx context.Context, filter models.HardwareProfileFilter, orderBy string, limit, offset int) ([]*models.HardwareProfile, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.HardwareProfile{})

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

	var rows []*models.HardwareProfile
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of hardware profiles matching the filter
func (r *HardwareProfileRepositoryImpl) Count(ctx context.Context, filter models.HardwareProfileFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.HardwareProfile{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any hardware profile matching the filter exists
func (r *HardwareProfileRepositoryImpl) Exists(ctx context.Context, filter models.HardwareProfileFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
