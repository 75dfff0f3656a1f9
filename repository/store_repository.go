package repository

import (
	"context"

	"github.com/aisleworks/shelfsync/models"
	"gorm.io/gorm"
)

// StoreRepositoryImpl implements StoreRepository interface
type StoreRepositoryImpl struct {
	*BaseRepository[models.Store, models.StoreFilter]
}

// NewStoreRepository creates a new store repository
func NewStoreRepository(db *gorm.DB) StoreRepository {
	return &StoreRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Store, models.StoreFilter](db),
	}
}

// applyFilter applies filter criteria to a GORM query
func (r *StoreRepositoryImpl) applyFilter(query *gorm.DB, filter models.StoreFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.CompanyID != nil {
		query = query.Where("company_id = ?", *filter.CompanyID)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}

// ByFilter retrieves stores based on filter criteria
func (r *StoreRepositoryImpl) ByFilter(ctx context.Context, filter models.StoreFilter, orderBy string, limit, offset int) ([]*models.Store, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Store{})

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

	var rows []*models.Store
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of stores matching the filter
func (r *StoreRepositoryImpl) Count(ctx context.Context, filter models.StoreFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Store{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any store matching the filter exists
func (r *StoreRepositoryImpl) Exists(ctx context.Context, filter models.StoreFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
