package models

import (
	"time"

	"github.com/google/uuid"
)

// PipelineStage identifies which half of the two-stage chain a task runs
type PipelineStage string

const (
	// PipelineStageRender renders the label image and persists it
	PipelineStageRender PipelineStage = "render"
	// PipelineStageDispatch publishes the stored image to the gateway
	PipelineStageDispatch PipelineStage = "dispatch"
)

// PipelineTaskStatus enumerates the terminal and transient states of one
// unit of pipeline work
type PipelineTaskStatus string

const (
	PipelineTaskStatusPending PipelineTaskStatus = "PENDING"
	PipelineTaskStatusStarted PipelineTaskStatus = "STARTED"
	PipelineTaskStatusSuccess PipelineTaskStatus = "SUCCESS"
	PipelineTaskStatusFailure PipelineTaskStatus = "FAILURE"
	// PipelineTaskStatusSkipped marks validation skips and guard conflicts;
	// neither is an error
	PipelineTaskStatusSkipped PipelineTaskStatus = "SKIPPED"
)

// Terminal reports whether the status will not change again for this attempt
func (s PipelineTaskStatus) Terminal() bool {
	switch s {
	case PipelineTaskStatusSuccess, PipelineTaskStatusFailure, PipelineTaskStatusSkipped:
		return true
	default:
		return false
	}
}

// PipelineTask is the durable record of one queued unit of pipeline work.
// Workers update it as they run so bulk progress can be recomputed on demand
// and operational tooling can see failures without a hidden retry queue.
type PipelineTask struct {
	ID        uint               `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:uk_pipeline_tasks_uuid" json:"uuid"`
	TagID     uint               `gorm:"not null;index:idx_pipeline_tasks_tag_id" json:"tag_id"`
	Stage     PipelineStage      `gorm:"size:10;not null" json:"stage"`
	Status    PipelineTaskStatus `gorm:"size:10;not null;default:'PENDING';index:idx_pipeline_tasks_status" json:"status"`
	GroupUUID *uuid.UUID         `gorm:"type:uuid;index:idx_pipeline_tasks_group_uuid" json:"group_uuid,omitempty"`
	Error     *string            `gorm:"type:text" json:"error,omitempty"`
	StartedAt *time.Time         `json:"started_at,omitempty"`
	EndedAt   *time.Time         `json:"ended_at,omitempty"`
	CreatedAt time.Time          `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"created_at"`
	UpdatedAt time.Time          `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"updated_at"`
}

func (PipelineTask) TableName() string { return "pipeline_tasks" }

// PipelineTaskFilter represents filter criteria for pipeline task queries
type PipelineTaskFilter struct {
	ID        *uint
	UUID      *uuid.UUID
	TagID     *uint
	Stage     *PipelineStage
	Status    *PipelineTaskStatus
	GroupUUID *uuid.UUID
}
