// Package dto contains Data Transfer Objects for API request and response structures
package dto

// SyncTagRequest represents the optional payload when requesting a single tag sync
type SyncTagRequest struct {
	TemplateID *int `json:"template_id,omitempty" validate:"omitempty,min=1,max=3"`
}

// SyncSubmissionDTO describes one queued pipeline task
type SyncSubmissionDTO struct {
	TaskUUID  string  `json:"task_uuid"`
	TagID     uint    `json:"tag_id"`
	Serial    string  `json:"serial"`
	Stage     string  `json:"stage"`
	Status    string  `json:"status"`
	GroupUUID *string `json:"group_uuid,omitempty"`
}

// SyncTagResponse wraps the submission handle for a single tag sync
type SyncTagResponse struct {
	Message string            `json:"message"`
	Task    SyncSubmissionDTO `json:"task"`
}

// BulkSyncRequest selects the tags of one bulk sync. Exactly one of the
// targets is expected; when several are present the narrowest wins
// (tag ids, then product, then store).
type BulkSyncRequest struct {
	StoreID   *uint  `json:"store_id,omitempty" validate:"omitempty,min=1"`
	ProductID *uint  `json:"product_id,omitempty" validate:"omitempty,min=1"`
	TagIDs    []uint `json:"tag_ids,omitempty" validate:"omitempty,min=1,dive,min=1"`
}

// BulkSyncResponse reports what a bulk sync actually submitted
type BulkSyncResponse struct {
	Message       string   `json:"message"`
	GroupUUID     string   `json:"group_uuid"`
	Total         int      `json:"total"`
	TaskUUIDs     []string `json:"task_uuids"`
	SkippedTagIDs []uint   `json:"skipped_tag_ids,omitempty"`
}

// TagSyncStateDTO is the read model of a tag's sync lifecycle
type TagSyncStateDTO struct {
	TagID               uint    `json:"tag_id"`
	Serial              string  `json:"serial"`
	SyncState           string  `json:"sync_state"`
	LastImageTaskID     *string `json:"last_image_task_id,omitempty"`
	LastImageToken      *int    `json:"last_image_token,omitempty"`
	LastImageGenSuccess *string `json:"last_image_gen_success,omitempty"`
	ImageFormat         string  `json:"image_format,omitempty"`
	BatteryLevel        int     `json:"battery_level"`
	LastSeen            *string `json:"last_seen,omitempty"`
}

// TagSyncStateResponse wraps the sync state read model
type TagSyncStateResponse struct {
	Message string          `json:"message"`
	Tag     TagSyncStateDTO `json:"tag"`
}

// FailedTaskDTO identifies one failed pipeline task inside a bulk group
type FailedTaskDTO struct {
	TaskUUID string `json:"task_uuid"`
	TagID    uint   `json:"tag_id"`
	Error    string `json:"error,omitempty"`
}

// GroupProgressDTO summarizes a bulk group by terminal task counts
type GroupProgressDTO struct {
	GroupUUID   string          `json:"group_uuid"`
	Total       int             `json:"total"`
	Succeeded   int64           `json:"succeeded"`
	Failed      int64           `json:"failed"`
	Skipped     int64           `json:"skipped"`
	Pending     int64           `json:"pending"`
	Progress    float64         `json:"progress"`
	Complete    bool            `json:"complete"`
	FailedTasks []FailedTaskDTO `json:"failed_tasks,omitempty"`
}

// SyncGroupResponse wraps the bulk group progress report
type SyncGroupResponse struct {
	Message string           `json:"message"`
	Group   GroupProgressDTO `json:"group"`
}
