// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/aisleworks/shelfsync/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CompanyRepository defines operations for companies
type CompanyRepository interface {
	Repository[models.Company, models.CompanyFilter]
}

// StoreRepository defines operations for stores
type StoreRepository interface {
	Repository[models.Store, models.StoreFilter]
}

// ProductRepository defines operations for products
type ProductRepository interface {
	Repository[models.Product, models.ProductFilter]
	BySKU(ctx context.Context, storeID uint, sku string) (*models.Product, error)
	Update(ctx context.Context, product *models.Product) error
}

// HardwareProfileRepository defines operations for hardware profiles
type HardwareProfileRepository interface {
	Repository[models.HardwareProfile, models.HardwareProfileFilter]
	ByModelNumber(ctx context.Context, modelNumber string) (*models.HardwareProfile, error)
}

// GatewayRepository defines operations for gateways
type GatewayRepository interface {
	Repository[models.Gateway, models.GatewayFilter]
	ByMAC(ctx context.Context, mac string) (*models.Gateway, error)
	// MarkSeen flips the gateway online and stamps last_seen without touching
	// any other column
	MarkSeen(ctx context.Context, mac string, at time.Time) error
}

// TagRepository defines operations for tags
type TagRepository interface {
	Repository[models.Tag, models.TagFilter]
	BySerial(ctx context.Context, serial string) (*models.Tag, error)
	// ByIDWithRelations loads a tag with gateway, product and hardware
	// profile in one round trip
	ByIDWithRelations(ctx context.Context, id uint) (*models.Tag, error)
	ListSyncableIDs(ctx context.Context, ids []uint) ([]uint, error)
	ListIDsByStore(ctx context.Context, storeID uint) ([]uint, error)
	ListIDsByProduct(ctx context.Context, productID uint) ([]uint, error)
	Update(ctx context.Context, tag *models.Tag) error
	// UpdateSyncState narrows the write to the sync_state column
	UpdateSyncState(ctx context.Context, tagID uint, state models.SyncState) error
	// UpdateDispatch records the live token and task id alongside the state
	UpdateDispatch(ctx context.Context, tagID uint, state models.SyncState, taskID string, token int) error
	// UpdateImage persists the rendered blob and stamps last_image_gen_success
	UpdateImage(ctx context.Context, tagID uint, image []byte, format string, generatedAt time.Time) error
	// UpdateTelemetry writes battery and last_seen only; it must never clobber
	// sync fields written concurrently by a pipeline attempt
	UpdateTelemetry(ctx context.Context, serial string, batteryLevel int, seenAt time.Time) error
}

// PipelineTaskRepository defines operations for pipeline task records
type PipelineTaskRepository interface {
	Repository[models.PipelineTask, models.PipelineTaskFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.PipelineTask, error)
	Update(ctx context.Context, task *models.PipelineTask) error
	// MarkStarted and MarkEnded narrow writes to status transitions
	MarkStarted(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkEnded(ctx context.Context, id uuid.UUID, status models.PipelineTaskStatus, errText *string, at time.Time) error
	ListByGroup(ctx context.Context, groupUUID uuid.UUID) ([]*models.PipelineTask, error)
	CountByGroupAndStatus(ctx context.Context, groupUUID uuid.UUID) (map[models.PipelineTaskStatus]int64, error)
}

// SyncGroupRepository defines operations for bulk sync groups
type SyncGroupRepository interface {
	Repository[models.SyncGroup, models.SyncGroupFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.SyncGroup, error)
	Update(ctx context.Context, group *models.SyncGroup) error
}
