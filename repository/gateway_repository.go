package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aisleworks/shelfsync/models"
	"github.com/aisleworks/shelfsync/utils"
	"gorm.io/gorm"
)

// GatewayRepositoryImpl implements GatewayRepository interface
type GatewayRepositoryImpl struct {
	*BaseRepository[models.Gateway, models.GatewayFilter]
}

// NewGatewayRepository creates a new gateway repository
func NewGatewayRepository(db *gorm.DB) GatewayRepository {
	return &GatewayRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Gateway, models.GatewayFilter](db),
	}
}

// ByMAC retrieves a gateway by its MAC address
func (r *GatewayRepositoryImpl) ByMAC(ctx context.Context, mac string) (*models.Gateway, error) {
	filter := models.GatewayFilter{GatewayMAC: &mac}
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// MarkSeen flips the gateway online and stamps last_seen from a heartbeat
func (r *GatewayRepositoryImpl) MarkSeen(ctx context.Context, mac string, at time.Time) error {
	db := r.getDB(ctx)
	err := db.Model(&models.Gateway{}).
		Where("gateway_mac = ?", mac).
		Updates(map[string]any{
			"is_online":  utils.ToPtr(true),
			"last_seen":  at,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark gateway %s seen: %w", mac, err)
	}
	return nil
}

// applyFilter applies filter criteria to a GORM query
func (r *GatewayRepositoryImpl) applyFilter(query *gorm.DB, filter models.GatewayFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.GatewayMAC != nil {
		query = query.Where("gateway_mac = ?", *filter.GatewayMAC)
	}
	if filter.StoreID != nil {
		query = query.Where("store_id = ?", *filter.StoreID)
	}
	if filter.IsOnline != nil {
		query = query.Where("is_online = ?", *filter.IsOnline)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}

// ByFilter retrieves gateways based on filter criteria
func (r *GatewayRepositoryImpl) ByFilter(ctx context.Context, filter models.GatewayFilter, orderBy string, limit, offset int) ([]*models.Gateway, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Gateway{})

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

	var rows []*models.Gateway
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of gateways matching the filter
func (r *GatewayRepositoryImpl) Count(ctx context.Context, filter models.GatewayFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Gateway{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any gateway matching the filter exists
func (r *GatewayRepositoryImpl) Exists(ctx context.Context, filter models.GatewayFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
