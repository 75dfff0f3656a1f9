package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// SyncGroup is the handle of one bulk-sync batch: the ordered list of render
// task UUIDs submitted for it plus a cached progress summary. The pipeline
// never mutates a group after creation except through the arrival of
// individual task results.
type SyncGroup struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_sync_groups_uuid" json:"uuid"`
	TaskUUIDs pq.StringArray  `gorm:"type:text[];not null" json:"task_uuids"`
	Total     int             `gorm:"not null" json:"total"`
	Progress  json.RawMessage `gorm:"type:jsonb" json:"progress,omitempty"`
	CreatedAt time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"created_at"`
	UpdatedAt time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"updated_at"`
}

func (SyncGroup) TableName() string { return "sync_groups" }

// SyncGroupFilter represents filter criteria for sync group queries
type SyncGroupFilter struct {
	ID   *uint
	UUID *uuid.UUID
}
