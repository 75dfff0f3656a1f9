package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/aisleworks/shelfsync/app/render"
	"github.com/aisleworks/shelfsync/app/transport"
	"github.com/aisleworks/shelfsync/models"
	"github.com/aisleworks/shelfsync/repository"
	"github.com/aisleworks/shelfsync/utils"
	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

// accentFlags packs the panel's accent channels into the wire command's flag
// field: bit 0 red, bit 1 yellow
func accentFlags(scheme models.ColorScheme) int {
	flags := 0
	if scheme.HasRed() {
		flags |= 1
	}
	if scheme.HasYellow() {
		flags |= 2
	}
	return flags
}

// SyncPipeline owns the two-stage chain: render+persist, then dispatch. One
// guard acquisition covers both stages of an attempt; it is released only
// when the attempt reaches a terminal point.
type SyncPipeline struct {
	tagRepo  repository.TagRepository
	taskRepo repository.PipelineTaskRepository
	engine   *render.Engine
	guard    SyncGuard
	queue    TaskQueue
	pub      transport.Publisher
	logger   *log.Logger

	workers   int
	guardTTL  time.Duration
	maxJitter time.Duration
}

func NewSyncPipeline(
	tagRepo repository.TagRepository,
	taskRepo repository.PipelineTaskRepository,
	engine *render.Engine,
	guard SyncGuard,
	queue TaskQueue,
	pub transport.Publisher,
	workers int,
	maxJitter time.Duration,
	logDir string,
) *SyncPipeline {
	if workers <= 0 {
		workers = 4
	}

	var w io.Writer = os.Stdout
	if logDir != "" {
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   logDir + "/pipeline.log",
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}

	return &SyncPipeline{
		tagRepo:   tagRepo,
		taskRepo:  taskRepo,
		engine:    engine,
		guard:     guard,
		queue:     queue,
		pub:       pub,
		logger:    log.New(w, "pipeline ", log.LstdFlags|log.Lmicroseconds|log.LUTC),
		workers:   workers,
		guardTTL:  utils.SyncGuardTTL,
		maxJitter: maxJitter,
	}
}

// Start launches the worker pool and returns a stop function that blocks
// until all workers drain
func (p *SyncPipeline) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.renderWorker(ctx, id)
		}(i)

		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.dispatchWorker(ctx, id)
		}(i)
	}

	p.logger.Printf("pipeline: started %d render and %d dispatch workers", p.workers, p.workers)

	return func() {
		cancel()
		wg.Wait()
	}
}

func (p *SyncPipeline) renderWorker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		env, err := p.queue.DequeueRender(ctx, 2*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Printf("pipeline: render worker %d dequeue failed: %v", id, err)
			time.Sleep(time.Second)
			continue
		}
		if env == nil {
			continue
		}

		start := time.Now()
		p.runRenderStage(ctx, env)
		stageDuration.WithLabelValues("render").Observe(time.Since(start).Seconds())
	}
}

func (p *SyncPipeline) dispatchWorker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		env, err := p.queue.DequeueDispatch(ctx, 2*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Printf("pipeline: dispatch worker %d dequeue failed: %v", id, err)
			time.Sleep(time.Second)
			continue
		}
		if env == nil {
			continue
		}

		start := time.Now()
		p.runDispatchStage(ctx, env)
		stageDuration.WithLabelValues("dispatch").Observe(time.Since(start).Seconds())
	}
}

// runRenderStage is stage 1 of an attempt: jitter, guard, validate, render,
// persist, then enqueue stage 2. The guard is NOT released on success; it
// covers the attempt until dispatch reaches a terminal point.
func (p *SyncPipeline) runRenderStage(ctx context.Context, env *TaskEnvelope) {
	taskID, err := env.taskID()
	if err != nil {
		p.logger.Printf("pipeline: dropping envelope with bad task uuid %q: %v", env.TaskUUID, err)
		return
	}

	// Small random delay to de-synchronize bursts: a product save fans out
	// to many tags at once.
	if p.maxJitter > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(p.maxJitter))))
	}

	if err := p.taskRepo.MarkStarted(ctx, taskID, utils.UTCNow()); err != nil {
		p.logger.Printf("pipeline: mark started failed for task %s: %v", taskID, err)
	}

	acquired, err := p.guard.Acquire(ctx, env.TagID, taskID.String(), p.guardTTL)
	if err != nil {
		p.failRender(ctx, taskID, env.TagID, false, fmt.Errorf("guard acquire: %w", err))
		return
	}
	if !acquired {
		// Expected duplicate suppression, not an error.
		guardConflictsTotal.Inc()
		renderStageTotal.WithLabelValues(string(models.PipelineTaskStatusSkipped)).Inc()
		p.endTask(ctx, taskID, models.PipelineTaskStatusSkipped, utils.ToPtr("sync already in progress"))
		p.logger.Printf("pipeline: tag %d already guarded, skipping task %s", env.TagID, taskID)
		return
	}

	tag, err := p.tagRepo.ByIDWithRelations(ctx, env.TagID)
	if err != nil {
		p.failRender(ctx, taskID, env.TagID, true, err)
		return
	}
	if tag == nil {
		p.failRender(ctx, taskID, env.TagID, true, fmt.Errorf("tag %d not found", env.TagID))
		return
	}

	if !tag.Syncable() {
		// Validation skip: an unpaired or unprofiled tag resolves to IDLE,
		// not to an error.
		if err := p.tagRepo.UpdateSyncState(ctx, tag.ID, models.SyncStateIdle); err != nil {
			p.logger.Printf("pipeline: reset to IDLE failed for tag %d: %v", tag.ID, err)
		}
		renderStageTotal.WithLabelValues(string(models.PipelineTaskStatusSkipped)).Inc()
		p.endTask(ctx, taskID, models.PipelineTaskStatusSkipped, utils.ToPtr("tag has no paired product or hardware profile"))
		p.releaseGuard(ctx, tag.ID)
		return
	}

	if err := p.tagRepo.UpdateSyncState(ctx, tag.ID, models.SyncStateProcessing); err != nil {
		p.failRender(ctx, taskID, tag.ID, true, err)
		return
	}

	image, err := p.engine.Render(tag.PairedProduct, tag.HardwareProfile, tag.TemplateID)
	if err != nil {
		if stateErr := p.tagRepo.UpdateSyncState(ctx, tag.ID, models.SyncStateGenFailed); stateErr != nil {
			p.logger.Printf("pipeline: GEN_FAILED write failed for tag %d: %v", tag.ID, stateErr)
		}
		renderStageTotal.WithLabelValues(string(models.PipelineTaskStatusFailure)).Inc()
		p.endTask(ctx, taskID, models.PipelineTaskStatusFailure, utils.ToPtr(err.Error()))
		p.releaseGuard(ctx, tag.ID)
		p.logger.Printf("pipeline: render failed for tag %s: %v", tag.Serial, err)
		return
	}

	if err := p.tagRepo.UpdateImage(ctx, tag.ID, image, render.ImageFormat, utils.UTCNow()); err != nil {
		p.failRender(ctx, taskID, tag.ID, true, err)
		return
	}
	if err := p.tagRepo.UpdateSyncState(ctx, tag.ID, models.SyncStateImageReady); err != nil {
		p.failRender(ctx, taskID, tag.ID, true, err)
		return
	}

	dispatchTask := &models.PipelineTask{
		UUID:   uuid.New(),
		TagID:  tag.ID,
		Stage:  models.PipelineStageDispatch,
		Status: models.PipelineTaskStatusPending,
	}
	if err := p.taskRepo.Save(ctx, dispatchTask); err != nil {
		p.failRender(ctx, taskID, tag.ID, true, err)
		return
	}
	if err := p.queue.EnqueueDispatch(ctx, dispatchTask.UUID, tag.ID); err != nil {
		if stateErr := p.tagRepo.UpdateSyncState(ctx, tag.ID, models.SyncStatePushFailed); stateErr != nil {
			p.logger.Printf("pipeline: PUSH_FAILED write failed for tag %d: %v", tag.ID, stateErr)
		}
		renderStageTotal.WithLabelValues(string(models.PipelineTaskStatusFailure)).Inc()
		p.endTask(ctx, taskID, models.PipelineTaskStatusFailure, utils.ToPtr(err.Error()))
		p.releaseGuard(ctx, tag.ID)
		return
	}

	renderStageTotal.WithLabelValues(string(models.PipelineTaskStatusSuccess)).Inc()
	p.endTask(ctx, taskID, models.PipelineTaskStatusSuccess, nil)
	p.logger.Printf("pipeline: rendered %d bytes for tag %s, dispatch task %s enqueued", len(image), tag.Serial, dispatchTask.UUID)
}

// failRender records an infrastructure failure of stage 1 and optionally
// releases the guard
func (p *SyncPipeline) failRender(ctx context.Context, taskID uuid.UUID, tagID uint, releaseGuard bool, err error) {
	renderStageTotal.WithLabelValues(string(models.PipelineTaskStatusFailure)).Inc()
	p.endTask(ctx, taskID, models.PipelineTaskStatusFailure, utils.ToPtr(err.Error()))
	if releaseGuard {
		p.releaseGuard(ctx, tagID)
	}
	p.logger.Printf("pipeline: render stage failed for tag %d: %v", tagID, err)
}

// runDispatchStage is stage 2: mint a token, publish the stored image, and
// record PUSHED. The guard is released here regardless of outcome — this is
// the terminal point of the attempt on the worker side.
func (p *SyncPipeline) runDispatchStage(ctx context.Context, env *TaskEnvelope) {
	taskID, err := env.taskID()
	if err != nil {
		p.logger.Printf("pipeline: dropping envelope with bad task uuid %q: %v", env.TaskUUID, err)
		return
	}

	defer p.releaseGuard(ctx, env.TagID)

	if err := p.taskRepo.MarkStarted(ctx, taskID, utils.UTCNow()); err != nil {
		p.logger.Printf("pipeline: mark started failed for task %s: %v", taskID, err)
	}

	tag, err := p.tagRepo.ByIDWithRelations(ctx, env.TagID)
	if err != nil {
		p.failDispatch(ctx, taskID, env.TagID, err)
		return
	}
	if tag == nil {
		p.failDispatch(ctx, taskID, env.TagID, fmt.Errorf("tag %d not found", env.TagID))
		return
	}

	if tag.Gateway == nil || tag.Gateway.GatewayMAC == "" {
		p.failDispatch(ctx, taskID, tag.ID, fmt.Errorf("tag %s has no addressable gateway", tag.Serial))
		return
	}
	if len(tag.Image) == 0 {
		p.failDispatch(ctx, taskID, tag.ID, fmt.Errorf("tag %s has no stored image to dispatch", tag.Serial))
		return
	}

	token := p.mintToken(tag.LastImageToken)

	scheme := models.ColorSchemeBW
	if tag.HardwareProfile != nil {
		scheme = tag.HardwareProfile.ColorScheme
	}
	cmd := transport.UpdateCommand{
		TagSerial:   tag.Serial,
		Pattern:     0,
		PageIndex:   0,
		AccentFlags: accentFlags(scheme),
		RepeatCount: 1,
		Token:       token,
		Image:       tag.Image,
	}

	if err := p.pub.PublishUpdate(ctx, tag.Gateway.GatewayMAC, cmd); err != nil {
		p.failDispatch(ctx, taskID, tag.ID, err)
		return
	}

	// Recording the fresh token implicitly orphans any confirmation still in
	// flight for the previous one.
	if err := p.tagRepo.UpdateDispatch(ctx, tag.ID, models.SyncStatePushed, taskID.String(), token); err != nil {
		p.failDispatch(ctx, taskID, tag.ID, err)
		return
	}

	dispatchStageTotal.WithLabelValues(string(models.PipelineTaskStatusSuccess)).Inc()
	p.endTask(ctx, taskID, models.PipelineTaskStatusSuccess, nil)
	p.logger.Printf("pipeline: pushed tag %s to gateway %s with token %d", tag.Serial, tag.Gateway.GatewayMAC, token)
}

func (p *SyncPipeline) failDispatch(ctx context.Context, taskID uuid.UUID, tagID uint, err error) {
	if stateErr := p.tagRepo.UpdateSyncState(ctx, tagID, models.SyncStatePushFailed); stateErr != nil {
		p.logger.Printf("pipeline: PUSH_FAILED write failed for tag %d: %v", tagID, stateErr)
	}
	dispatchStageTotal.WithLabelValues(string(models.PipelineTaskStatusFailure)).Inc()
	p.endTask(ctx, taskID, models.PipelineTaskStatusFailure, utils.ToPtr(err.Error()))
	p.logger.Printf("pipeline: dispatch failed for tag %d: %v", tagID, err)
}

// mintToken picks a token in 1-255 distinct from the previous live token so
// a late confirmation for the old dispatch can never match the new one
func (p *SyncPipeline) mintToken(previous *int) int {
	for {
		token := rand.Intn(utils.MaxDispatchToken) + 1
		if previous == nil || token != *previous {
			return token
		}
	}
}

func (p *SyncPipeline) endTask(ctx context.Context, taskID uuid.UUID, status models.PipelineTaskStatus, errText *string) {
	if err := p.taskRepo.MarkEnded(ctx, taskID, status, errText, utils.UTCNow()); err != nil {
		p.logger.Printf("pipeline: mark ended failed for task %s: %v", taskID, err)
	}
}

func (p *SyncPipeline) releaseGuard(ctx context.Context, tagID uint) {
	if err := p.guard.Release(ctx, tagID); err != nil {
		p.logger.Printf("pipeline: guard release failed for tag %d: %v", tagID, err)
	}
}
