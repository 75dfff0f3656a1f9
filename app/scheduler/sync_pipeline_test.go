package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aisleworks/shelfsync/app/render"
	"github.com/aisleworks/shelfsync/models"
	"github.com/aisleworks/shelfsync/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSyncableTag(id uint) *models.Tag {
	product := &models.Product{
		ID:          10,
		SKU:         "123456789012",
		Name:        "Organic Whole Milk 2L",
		Price:       12.99,
		IsOnSpecial: utils.ToPtr(false),
	}
	profile := &models.HardwareProfile{
		ID:          20,
		ModelNumber: "EPD-296x128-BWR",
		WidthPx:     296,
		HeightPx:    128,
		ColorScheme: models.ColorSchemeBWR,
	}
	gateway := &models.Gateway{
		ID:         30,
		GatewayMAC: "AA:BB:CC:00:11:22",
		IsOnline:   utils.ToPtr(true),
	}
	return &models.Tag{
		ID:                id,
		Serial:            fmt.Sprintf("TAG%08d", id),
		GatewayID:         gateway.ID,
		Gateway:           gateway,
		PairedProductID:   &product.ID,
		PairedProduct:     product,
		HardwareProfileID: &profile.ID,
		HardwareProfile:   profile,
		SyncState:         models.SyncStateIdle,
		TemplateID:        1,
		BatteryLevel:      100,
	}
}

func newTestPipeline(t *testing.T, tagRepo *fakeTagRepo, taskRepo *fakeTaskRepo, pub *fakePublisher) (*SyncPipeline, SyncGuard, *MemoryTaskQueue) {
	t.Helper()
	engine, err := render.NewEngine()
	require.NoError(t, err)

	guard := NewMemorySyncGuard()
	queue := NewMemoryTaskQueue()
	p := NewSyncPipeline(tagRepo, taskRepo, engine, guard, queue, pub, 1, 0, "")
	return p, guard, queue
}

func TestRenderStageProducesImageAndKeepsGuard(t *testing.T) {
	ctx := context.Background()
	tag := newSyncableTag(1)
	tagRepo := newFakeTagRepo(tag)

	task := &models.PipelineTask{UUID: uuid.New(), TagID: tag.ID, Stage: models.PipelineStageRender, Status: models.PipelineTaskStatusPending}
	taskRepo := newFakeTaskRepo(task)

	p, guard, queue := newTestPipeline(t, tagRepo, taskRepo, &fakePublisher{})

	p.runRenderStage(ctx, &TaskEnvelope{TaskUUID: task.UUID.String(), TagID: tag.ID})

	assert.Equal(t, models.SyncStateImageReady, tag.SyncState)
	assert.NotEmpty(t, tag.Image)
	assert.Equal(t, render.ImageFormat, tag.ImageFormat)
	assert.NotNil(t, tag.LastImageGenSuccess)
	assert.Equal(t, []models.SyncState{models.SyncStateProcessing, models.SyncStateImageReady}, tagRepo.history(tag.ID))

	// Render task is terminal SUCCESS and a dispatch envelope is queued
	assert.Equal(t, models.PipelineTaskStatusSuccess, task.Status)
	env, err := queue.DequeueDispatch(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, tag.ID, env.TagID)

	// Dispatch task row exists and is PENDING
	dispatchID, err := env.taskID()
	require.NoError(t, err)
	dispatchTask, err := taskRepo.ByUUID(ctx, dispatchID)
	require.NoError(t, err)
	require.NotNil(t, dispatchTask)
	assert.Equal(t, models.PipelineStageDispatch, dispatchTask.Stage)

	// Guard stays held across the stage boundary
	acquired, err := guard.Acquire(ctx, tag.ID, "other", time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)
}

func TestRenderStageGuardConflictSkips(t *testing.T) {
	ctx := context.Background()
	tag := newSyncableTag(2)
	tagRepo := newFakeTagRepo(tag)

	task := &models.PipelineTask{UUID: uuid.New(), TagID: tag.ID, Stage: models.PipelineStageRender, Status: models.PipelineTaskStatusPending}
	taskRepo := newFakeTaskRepo(task)

	p, guard, queue := newTestPipeline(t, tagRepo, taskRepo, &fakePublisher{})

	// Another attempt already holds the tag
	acquired, err := guard.Acquire(ctx, tag.ID, "prior-attempt", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	p.runRenderStage(ctx, &TaskEnvelope{TaskUUID: task.UUID.String(), TagID: tag.ID})

	assert.Equal(t, models.PipelineTaskStatusSkipped, task.Status)
	assert.Equal(t, models.SyncStateIdle, tag.SyncState)
	assert.Empty(t, tagRepo.history(tag.ID))

	// Conflict must NOT release the prior holder's guard
	acquired, err = guard.Acquire(ctx, tag.ID, "another", time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)

	// No dispatch work was queued
	env, err := queue.DequeueDispatch(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, env)
}

func TestRenderStageUnpairedTagResolvesToIdle(t *testing.T) {
	ctx := context.Background()
	tag := newSyncableTag(3)
	tag.PairedProductID = nil
	tag.PairedProduct = nil
	tag.SyncState = models.SyncStateSuccess
	tagRepo := newFakeTagRepo(tag)

	task := &models.PipelineTask{UUID: uuid.New(), TagID: tag.ID, Stage: models.PipelineStageRender, Status: models.PipelineTaskStatusPending}
	taskRepo := newFakeTaskRepo(task)

	p, guard, _ := newTestPipeline(t, tagRepo, taskRepo, &fakePublisher{})

	p.runRenderStage(ctx, &TaskEnvelope{TaskUUID: task.UUID.String(), TagID: tag.ID})

	assert.Equal(t, models.SyncStateIdle, tag.SyncState)
	assert.Equal(t, models.PipelineTaskStatusSkipped, task.Status)

	// Validation skip is a terminal point: the guard is released
	acquired, err := guard.Acquire(ctx, tag.ID, "next", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestRenderStageFailureReleasesGuard(t *testing.T) {
	ctx := context.Background()
	tag := newSyncableTag(4)
	// Zero-width profile makes the engine refuse the render
	tag.HardwareProfile.WidthPx = 0
	tagRepo := newFakeTagRepo(tag)

	task := &models.PipelineTask{UUID: uuid.New(), TagID: tag.ID, Stage: models.PipelineStageRender, Status: models.PipelineTaskStatusPending}
	taskRepo := newFakeTaskRepo(task)

	p, guard, _ := newTestPipeline(t, tagRepo, taskRepo, &fakePublisher{})

	p.runRenderStage(ctx, &TaskEnvelope{TaskUUID: task.UUID.String(), TagID: tag.ID})

	assert.Equal(t, models.SyncStateGenFailed, tag.SyncState)
	assert.Equal(t, models.PipelineTaskStatusFailure, task.Status)
	require.NotNil(t, task.Error)

	acquired, err := guard.Acquire(ctx, tag.ID, "next", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestDispatchStagePublishesAndMintsToken(t *testing.T) {
	ctx := context.Background()
	tag := newSyncableTag(5)
	tag.Image = []byte{0x42, 0x4D, 0x01}
	tag.ImageFormat = "bmp"
	previous := 77
	tag.LastImageToken = &previous
	tagRepo := newFakeTagRepo(tag)

	task := &models.PipelineTask{UUID: uuid.New(), TagID: tag.ID, Stage: models.PipelineStageDispatch, Status: models.PipelineTaskStatusPending}
	taskRepo := newFakeTaskRepo(task)

	pub := &fakePublisher{}
	p, guard, _ := newTestPipeline(t, tagRepo, taskRepo, pub)

	// Dispatch runs with the guard still held from the render stage
	acquired, err := guard.Acquire(ctx, tag.ID, task.UUID.String(), time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	p.runDispatchStage(ctx, &TaskEnvelope{TaskUUID: task.UUID.String(), TagID: tag.ID})

	assert.Equal(t, models.SyncStatePushed, tag.SyncState)
	assert.Equal(t, models.PipelineTaskStatusSuccess, task.Status)

	published := pub.last()
	require.NotNil(t, published)
	assert.Equal(t, "AA:BB:CC:00:11:22", published.gatewayMAC)
	assert.Equal(t, tag.Serial, published.cmd.TagSerial)
	assert.Equal(t, tag.Image, published.cmd.Image)
	assert.Equal(t, 1, published.cmd.AccentFlags) // BWR panel: red bit only

	// Token recorded, in range, and distinct from the previous one
	require.NotNil(t, tag.LastImageToken)
	assert.GreaterOrEqual(t, *tag.LastImageToken, 1)
	assert.LessOrEqual(t, *tag.LastImageToken, utils.MaxDispatchToken)
	assert.NotEqual(t, previous, *tag.LastImageToken)
	assert.Equal(t, published.cmd.Token, *tag.LastImageToken)

	// Dispatch terminal point releases the guard
	acquired, err = guard.Acquire(ctx, tag.ID, "next", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestDispatchStagePublishFailure(t *testing.T) {
	ctx := context.Background()
	tag := newSyncableTag(6)
	tag.Image = []byte{0x42, 0x4D}
	tagRepo := newFakeTagRepo(tag)

	task := &models.PipelineTask{UUID: uuid.New(), TagID: tag.ID, Stage: models.PipelineStageDispatch, Status: models.PipelineTaskStatusPending}
	taskRepo := newFakeTaskRepo(task)

	pub := &fakePublisher{err: fmt.Errorf("broker not connected")}
	p, guard, _ := newTestPipeline(t, tagRepo, taskRepo, pub)

	acquired, err := guard.Acquire(ctx, tag.ID, task.UUID.String(), time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	p.runDispatchStage(ctx, &TaskEnvelope{TaskUUID: task.UUID.String(), TagID: tag.ID})

	assert.Equal(t, models.SyncStatePushFailed, tag.SyncState)
	assert.Equal(t, models.PipelineTaskStatusFailure, task.Status)
	assert.Nil(t, tag.LastImageToken)

	// Failure is still a terminal point: guard is released
	acquired, err = guard.Acquire(ctx, tag.ID, "next", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestDispatchStageMissingImage(t *testing.T) {
	ctx := context.Background()
	tag := newSyncableTag(7)
	tagRepo := newFakeTagRepo(tag)

	task := &models.PipelineTask{UUID: uuid.New(), TagID: tag.ID, Stage: models.PipelineStageDispatch, Status: models.PipelineTaskStatusPending}
	taskRepo := newFakeTaskRepo(task)

	pub := &fakePublisher{}
	p, _, _ := newTestPipeline(t, tagRepo, taskRepo, pub)

	p.runDispatchStage(ctx, &TaskEnvelope{TaskUUID: task.UUID.String(), TagID: tag.ID})

	assert.Equal(t, models.SyncStatePushFailed, tag.SyncState)
	assert.Equal(t, models.PipelineTaskStatusFailure, task.Status)
	assert.Nil(t, pub.last())
}

func TestMintTokenNeverRepeatsPrevious(t *testing.T) {
	p := &SyncPipeline{}
	previous := 128
	for i := 0; i < 500; i++ {
		token := p.mintToken(&previous)
		assert.GreaterOrEqual(t, token, 1)
		assert.LessOrEqual(t, token, utils.MaxDispatchToken)
		assert.NotEqual(t, previous, token)
	}
	// First dispatch has no previous token
	token := p.mintToken(nil)
	assert.GreaterOrEqual(t, token, 1)
	assert.LessOrEqual(t, token, utils.MaxDispatchToken)
}

func TestAccentFlags(t *testing.T) {
	assert.Equal(t, 0, accentFlags(models.ColorSchemeBW))
	assert.Equal(t, 1, accentFlags(models.ColorSchemeBWR))
	assert.Equal(t, 3, accentFlags(models.ColorSchemeBWRY))
}

func TestPipelineStartStop(t *testing.T) {
	tag := newSyncableTag(8)
	tagRepo := newFakeTagRepo(tag)

	task := &models.PipelineTask{UUID: uuid.New(), TagID: tag.ID, Stage: models.PipelineStageRender, Status: models.PipelineTaskStatusPending}
	taskRepo := newFakeTaskRepo(task)

	pub := &fakePublisher{}
	p, _, queue := newTestPipeline(t, tagRepo, taskRepo, pub)

	stop := p.Start(context.Background())

	require.NoError(t, queue.EnqueueRender(context.Background(), task.UUID, tag.ID, nil))

	// The workers chain render into dispatch and publish the result
	require.Eventually(t, func() bool {
		return pub.last() != nil
	}, 5*time.Second, 20*time.Millisecond)

	stop()

	assert.Equal(t, models.SyncStatePushed, tag.SyncState)
	assert.Equal(t, models.PipelineTaskStatusSuccess, task.Status)
}
