package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aisleworks/shelfsync/models"
	"gorm.io/gorm"
)

// TagRepositoryImpl implements TagRepository interface
type TagRepositoryImpl struct {
	*BaseRepository[models.Tag, models.TagFilter]
}

// NewTagRepository creates a new tag repository
func NewTagRepository(db *gorm.DB) TagRepository {
	return &TagRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Tag, models.TagFilter](db),
	}
}

// BySerial retrieves a tag by its normalized serial
func (r *TagRepositoryImpl) BySerial(ctx context.Context, serial string) (*models.Tag, error) {
	filter := models.TagFilter{Serial: &serial}
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ByIDWithRelations retrieves a tag with its gateway, paired product and
// hardware profile preloaded
func (r *TagRepositoryImpl) ByIDWithRelations(ctx context.Context, id uint) (*models.Tag, error) {
	db := r.getDB(ctx)
	var row models.Tag
	err := db.
		Preload("Gateway").
		Preload("PairedProduct").
		Preload("HardwareProfile").
		Last(&row, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListSyncableIDs narrows a candidate id list to tags that have both a paired
// product and a hardware profile
func (r *TagRepositoryImpl) ListSyncableIDs(ctx context.Context, ids []uint) ([]uint, error) {
	db := r.getDB(ctx)
	if len(ids) == 0 {
		return []uint{}, nil
	}
	var out []uint
	err := db.Model(&models.Tag{}).
		Where("id IN ? AND paired_product_id IS NOT NULL AND hardware_profile_id IS NOT NULL", ids).
		Order("id ASC").
		Pluck("id", &out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListIDsByStore retrieves the ids of all tags whose gateway belongs to a store
func (r *TagRepositoryImpl) ListIDsByStore(ctx context.Context, storeID uint) ([]uint, error) {
	db := r.getDB(ctx)
	var out []uint
	err := db.Model(&models.Tag{}).
		Joins("JOIN gateways ON tags.gateway_id = gateways.id").
		Where("gateways.store_id = ?", storeID).
		Order("tags.id ASC").
		Pluck("tags.id", &out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListIDsByProduct retrieves the ids of all tags paired with a product
func (r *TagRepositoryImpl) ListIDsByProduct(ctx context.Context, productID uint) ([]uint, error) {
	db := r.getDB(ctx)
	var out []uint
	err := db.Model(&models.Tag{}).
		Where("paired_product_id = ?", productID).
		Order("id ASC").
		Pluck("id", &out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update persists all fields of an existing tag
func (r *TagRepositoryImpl) Update(ctx context.Context, tag *models.Tag) error {
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

	err = db.Save(tag).Error
	if err != nil {
		return fmt.Errorf("failed to update tag: %w", err)
	}

	return nil
}

// UpdateSyncState writes only the sync_state column
func (r *TagRepositoryImpl) UpdateSyncState(ctx context.Context, tagID uint, state models.SyncState) error {
	db := r.getDB(ctx)
	err := db.Model(&models.Tag{}).
		Where("id = ?", tagID).
		Updates(map[string]any{
			"sync_state": state,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update sync state for tag %d: %w", tagID, err)
	}
	return nil
}

// UpdateDispatch records the state transition together with the live dispatch
// token and task id in one write
func (r *TagRepositoryImpl) UpdateDispatch(ctx context.Context, tagID uint, state models.SyncState, taskID string, token int) error {
	db := r.getDB(ctx)
	err := db.Model(&models.Tag{}).
		Where("id = ?", tagID).
		Updates(map[string]any{
			"sync_state":         state,
			"last_image_task_id": taskID,
			"last_image_token":   token,
			"updated_at":         time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update dispatch fields for tag %d: %w", tagID, err)
	}
	return nil
}

// UpdateImage persists the rendered blob and stamps the generation time
func (r *TagRepositoryImpl) UpdateImage(ctx context.Context, tagID uint, image []byte, format string, generatedAt time.Time) error {
	db := r.getDB(ctx)
	err := db.Model(&models.Tag{}).
		Where("id = ?", tagID).
		Updates(map[string]any{
			"image":                  image,
			"image_format":           format,
			"last_image_gen_success": generatedAt,
			"updated_at":             time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update image for tag %d: %w", tagID, err)
	}
	return nil
}

// UpdateTelemetry writes battery_level and last_seen only. Confirmations with
// a stale token still carry fresh telemetry, so this path must stay disjoint
// from the sync columns.
func (r *TagRepositoryImpl) UpdateTelemetry(ctx context.Context, serial string, batteryLevel int, seenAt time.Time) error {
	db := r.getDB(ctx)
	err := db.Model(&models.Tag{}).
		Where("serial = ?", serial).
		Updates(map[string]any{
			"battery_level": batteryLevel,
			"last_seen":     seenAt,
			"updated_at":    time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update telemetry for tag %s: %w", serial, err)
	}
	return nil
}

// applyFilter applies filter criteria to a GORM query
func (r *TagRepositoryImpl) applyFilter(query *gorm.DB, filter models.TagFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("tags.id = ?", *filter.ID)
	}
	if filter.Serial != nil {
		query = query.Where("tags.serial = ?", *filter.Serial)
	}
	if filter.GatewayID != nil {
		query = query.Where("tags.gateway_id = ?", *filter.GatewayID)
	}
	if filter.StoreID != nil {
		query = query.Joins("JOIN gateways ON tags.gateway_id = gateways.id").
			Where("gateways.store_id = ?", *filter.StoreID)
	}
	if filter.PairedProductID != nil {
		query = query.Where("tags.paired_product_id = ?", *filter.PairedProductID)
	}
	if filter.HardwareProfileID != nil {
		query = query.Where("tags.hardware_profile_id = ?", *filter.HardwareProfileID)
	}
	if filter.SyncState != nil {
		query = query.Where("tags.sync_state = ?", *filter.SyncState)
	}
	if filter.Syncable != nil {
		if *filter.Syncable {
			query = query.Where("tags.paired_product_id IS NOT NULL AND tags.hardware_profile_id IS NOT NULL")
		} else {
			query = query.Where("tags.paired_product_id IS NULL OR tags.hardware_profile_id IS NULL")
		}
	}
	if filter.CreatedAfter != nil {
		query = query.Where("tags.created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("tags.created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves tags based on filter criteria
func (r *TagRepositoryImpl) ByFilter(ctx context.Context, filter models.TagFilter, orderBy string, limit, offset int) ([]*models.Tag, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Tag{})

	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "tags.id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Tag
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of tags matching the filter
func (r *TagRepositoryImpl) Count(ctx context.Context, filter models.TagFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Tag{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any tag matching the filter exists
func (r *TagRepositoryImpl) Exists(ctx context.Context, filter models.TagFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
