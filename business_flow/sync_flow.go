// Package businessflow contains use cases for triggering and observing tag synchronization
package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aisleworks/shelfsync/app/dto"
	"github.com/aisleworks/shelfsync/models"
	"github.com/aisleworks/shelfsync/repository"
	"github.com/aisleworks/shelfsync/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// TaskEnqueuer submits render work to the pipeline queue. Implemented by the
// scheduler package so the flow never touches the broker directly.
type TaskEnqueuer interface {
	EnqueueRender(ctx context.Context, taskUUID uuid.UUID, tagID uint, groupUUID *uuid.UUID) error
}

// SyncFlow defines operations for triggering and observing tag synchronization
type SyncFlow interface {
	RequestSync(ctx context.Context, tagID uint, req *dto.SyncTagRequest, metadata *ClientMetadata) (*dto.SyncTagResponse, error)
	RequestBulkSync(ctx context.Context, req *dto.BulkSyncRequest, metadata *ClientMetadata) (*dto.BulkSyncResponse, error)
	TagSyncState(ctx context.Context, tagID uint) (*dto.TagSyncStateResponse, error)
	TagImage(ctx context.Context, tagID uint) ([]byte, string, error)
	GroupProgress(ctx context.Context, groupUUID uuid.UUID) (*dto.SyncGroupResponse, error)
}

type SyncFlowImpl struct {
	db        *gorm.DB
	tagRepo   repository.TagRepository
	taskRepo  repository.PipelineTaskRepository
	groupRepo repository.SyncGroupRepository
	enqueuer  TaskEnqueuer
}

func NewSyncFlow(
	db *gorm.DB,
	tagRepo repository.TagRepository,
	taskRepo repository.PipelineTaskRepository,
	groupRepo repository.SyncGroupRepository,
	enqueuer TaskEnqueuer,
) SyncFlow {
	return &SyncFlowImpl{
		db:        db,
		tagRepo:   tagRepo,
		taskRepo:  taskRepo,
		groupRepo: groupRepo,
		enqueuer:  enqueuer,
	}
}

// RequestSync submits one render task for a tag. The tag's state is not
// touched here: the worker moves it to PROCESSING once the guard is held, so
// a queue backlog never masks the current state of the display.
func (f *SyncFlowImpl) RequestSync(ctx context.Context, tagID uint, req *dto.SyncTagRequest, metadata *ClientMetadata) (*dto.SyncTagResponse, error) {
	var err error
	defer func() {
		if err != nil {
			err = NewBusinessError("REQUEST_SYNC_FAILED", "Failed to request tag sync", err)
		}
	}()

	tag, err := f.tagRepo.ByID(ctx, tagID)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		err = ErrTagNotFound
		return nil, err
	}
	if !tag.Syncable() {
		err = ErrTagNotSyncable
		return nil, err
	}

	if req != nil && req.TemplateID != nil && *req.TemplateID != tag.TemplateID {
		tag.TemplateID = *req.TemplateID
		if err = f.tagRepo.Update(ctx, tag); err != nil {
			return nil, err
		}
	}

	task := &models.PipelineTask{
		UUID:   uuid.New(),
		TagID:  tag.ID,
		Stage:  models.PipelineStageRender,
		Status: models.PipelineTaskStatusPending,
	}
	if err = f.taskRepo.Save(ctx, task); err != nil {
		return nil, err
	}

	if err = f.enqueuer.EnqueueRender(ctx, task.UUID, tag.ID, nil); err != nil {
		return nil, err
	}

	return &dto.SyncTagResponse{
		Message: "Sync task submitted successfully",
		Task: dto.SyncSubmissionDTO{
			TaskUUID: task.UUID.String(),
			TagID:    tag.ID,
			Serial:   tag.Serial,
			Stage:    string(task.Stage),
			Status:   string(task.Status),
		},
	}, nil
}

// RequestBulkSync fans one render task out per syncable tag of the target.
// Task rows and the group are created in one transaction; queue submission
// happens after commit so a worker can never pick up a task row that a
// rollback would erase.
func (f *SyncFlowImpl) RequestBulkSync(ctx context.Context, req *dto.BulkSyncRequest, metadata *ClientMetadata) (*dto.BulkSyncResponse, error) {
	var err error
	defer func() {
		if err != nil {
			err = NewBusinessError("REQUEST_BULK_SYNC_FAILED", "Failed to request bulk sync", err)
		}
	}()

	candidateIDs, err := f.resolveBulkTarget(ctx, req)
	if err != nil {
		return nil, err
	}

	syncableIDs, err := f.tagRepo.ListSyncableIDs(ctx, candidateIDs)
	if err != nil {
		return nil, err
	}
	if len(syncableIDs) == 0 {
		err = ErrBulkNoSyncableTags
		return nil, err
	}

	syncable := make(map[uint]bool, len(syncableIDs))
	for _, id := range syncableIDs {
		syncable[id] = true
	}
	var skipped []uint
	for _, id := range candidateIDs {
		if !syncable[id] {
			skipped = append(skipped, id)
		}
	}

	groupUUID := uuid.New()
	tasks := make([]*models.PipelineTask, 0, len(syncableIDs))
	taskUUIDs := make([]string, 0, len(syncableIDs))
	for _, tagID := range syncableIDs {
		task := &models.PipelineTask{
			UUID:      uuid.New(),
			TagID:     tagID,
			Stage:     models.PipelineStageRender,
			Status:    models.PipelineTaskStatusPending,
			GroupUUID: utils.ToPtr(groupUUID),
		}
		tasks = append(tasks, task)
		taskUUIDs = append(taskUUIDs, task.UUID.String())
	}

	group := &models.SyncGroup{
		UUID:      groupUUID,
		TaskUUIDs: pq.StringArray(taskUUIDs),
		Total:     len(tasks),
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.taskRepo.SaveBatch(txCtx, tasks); err != nil {
			return err
		}
		return f.groupRepo.Save(txCtx, group)
	})
	if err != nil {
		return nil, err
	}

	// Throttled fan-out: a short pause every few submissions keeps a large
	// batch from landing on the broker as one burst.
	for i, task := range tasks {
		if err = f.enqueuer.EnqueueRender(ctx, task.UUID, task.TagID, utils.ToPtr(groupUUID)); err != nil {
			return nil, fmt.Errorf("failed to enqueue task %s: %w", task.UUID, err)
		}
		if (i+1)%utils.ThrottleEvery == 0 {
			time.Sleep(utils.ThrottlePause)
		}
	}

	return &dto.BulkSyncResponse{
		Message:       "Bulk sync submitted successfully",
		GroupUUID:     groupUUID.String(),
		Total:         len(tasks),
		TaskUUIDs:     taskUUIDs,
		SkippedTagIDs: skipped,
	}, nil
}

// resolveBulkTarget maps the request to a candidate tag id list. Narrowest
// target wins: explicit ids, then product, then store.
func (f *SyncFlowImpl) resolveBulkTarget(ctx context.Context, req *dto.BulkSyncRequest) ([]uint, error) {
	switch {
	case req != nil && len(req.TagIDs) > 0:
		return req.TagIDs, nil
	case req != nil && req.ProductID != nil:
		return f.tagRepo.ListIDsByProduct(ctx, *req.ProductID)
	case req != nil && req.StoreID != nil:
		return f.tagRepo.ListIDsByStore(ctx, *req.StoreID)
	default:
		return nil, ErrBulkTargetRequired
	}
}

// TagSyncState returns the read model of a tag's sync lifecycle
func (f *SyncFlowImpl) TagSyncState(ctx context.Context, tagID uint) (*dto.TagSyncStateResponse, error) {
	var err error
	defer func() {
		if err != nil {
			err = NewBusinessError("TAG_SYNC_STATE_FAILED", "Failed to read tag sync state", err)
		}
	}()

	tag, err := f.tagRepo.ByID(ctx, tagID)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		err = ErrTagNotFound
		return nil, err
	}

	item := dto.TagSyncStateDTO{
		TagID:           tag.ID,
		Serial:          tag.Serial,
		SyncState:       tag.SyncState.String(),
		LastImageTaskID: tag.LastImageTaskID,
		LastImageToken:  tag.LastImageToken,
		ImageFormat:     tag.ImageFormat,
		BatteryLevel:    tag.BatteryLevel,
	}
	if tag.LastImageGenSuccess != nil {
		item.LastImageGenSuccess = utils.ToPtr(tag.LastImageGenSuccess.Format(time.RFC3339))
	}
	if tag.LastSeen != nil {
		item.LastSeen = utils.ToPtr(tag.LastSeen.Format(time.RFC3339))
	}

	return &dto.TagSyncStateResponse{
		Message: "Tag sync state retrieved successfully",
		Tag:     item,
	}, nil
}

// TagImage returns the last rendered label for a tag
func (f *SyncFlowImpl) TagImage(ctx context.Context, tagID uint) ([]byte, string, error) {
	tag, err := f.tagRepo.ByID(ctx, tagID)
	if err != nil {
		return nil, "", NewBusinessError("TAG_IMAGE_FAILED", "Failed to read tag image", err)
	}
	if tag == nil {
		return nil, "", NewBusinessError("TAG_IMAGE_FAILED", "Failed to read tag image", ErrTagNotFound)
	}
	if len(tag.Image) == 0 {
		return nil, "", NewBusinessError("TAG_IMAGE_FAILED", "Failed to read tag image", ErrNoImageToDispatch)
	}
	return tag.Image, tag.ImageFormat, nil
}

// GroupProgress recomputes the terminal task counts of a bulk group on
// demand. Progress counts succeeded and failed attempts; skips are reported
// separately because a guard conflict is neither outcome.
func (f *SyncFlowImpl) GroupProgress(ctx context.Context, groupUUID uuid.UUID) (*dto.SyncGroupResponse, error) {
	var err error
	defer func() {
		if err != nil {
			err = NewBusinessError("GROUP_PROGRESS_FAILED", "Failed to read sync group progress", err)
		}
	}()

	group, err := f.groupRepo.ByUUID(ctx, groupUUID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		err = ErrSyncGroupNotFound
		return nil, err
	}

	counts, err := f.taskRepo.CountByGroupAndStatus(ctx, groupUUID)
	if err != nil {
		return nil, err
	}

	succeeded := counts[models.PipelineTaskStatusSuccess]
	failed := counts[models.PipelineTaskStatusFailure]
	skipped := counts[models.PipelineTaskStatusSkipped]
	pending := int64(group.Total) - succeeded - failed - skipped
	if pending < 0 {
		pending = 0
	}

	var progress float64
	if group.Total > 0 {
		progress = float64(succeeded+failed) / float64(group.Total)
	}

	var failedTasks []dto.FailedTaskDTO
	if failed > 0 {
		var tasks []*models.PipelineTask
		tasks, err = f.taskRepo.ListByGroup(ctx, groupUUID)
		if err != nil {
			return nil, err
		}
		for _, task := range tasks {
			if task.Status != models.PipelineTaskStatusFailure {
				continue
			}
			failedTask := dto.FailedTaskDTO{TaskUUID: task.UUID.String(), TagID: task.TagID}
			if task.Error != nil {
				failedTask.Error = *task.Error
			}
			failedTasks = append(failedTasks, failedTask)
		}
	}

	summary := dto.GroupProgressDTO{
		GroupUUID:   group.UUID.String(),
		Total:       group.Total,
		Succeeded:   succeeded,
		Failed:      failed,
		Skipped:     skipped,
		Pending:     pending,
		Progress:    progress,
		Complete:    succeeded+failed+skipped >= int64(group.Total),
		FailedTasks: failedTasks,
	}

	// Cache the recomputed summary on the group row
	var raw []byte
	raw, err = json.Marshal(summary)
	if err != nil {
		return nil, err
	}
	group.Progress = raw
	if err = f.groupRepo.Update(ctx, group); err != nil {
		return nil, err
	}

	return &dto.SyncGroupResponse{
		Message: "Sync group progress retrieved successfully",
		Group:   summary,
	}, nil
}
