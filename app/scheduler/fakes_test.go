package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/aisleworks/shelfsync/app/transport"
	"github.com/aisleworks/shelfsync/models"
	"github.com/google/uuid"
)

// fakeTagRepo is an in-memory TagRepository for worker tests. Relations are
// held directly on the stored Tag so ByIDWithRelations is a plain lookup.
type fakeTagRepo struct {
	mu   sync.Mutex
	tags map[uint]*models.Tag

	// stateHistory records every sync_state transition per tag, in order
	stateHistory map[uint][]models.SyncState
}

func newFakeTagRepo(tags ...*models.Tag) *fakeTagRepo {
	r := &fakeTagRepo{
		tags:         make(map[uint]*models.Tag),
		stateHistory: make(map[uint][]models.SyncState),
	}
	for _, tag := range tags {
		r.tags[tag.ID] = tag
	}
	return r
}

func (r *fakeTagRepo) ByID(_ context.Context, id uint) (*models.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tags[id], nil
}

func (r *fakeTagRepo) ByFilter(_ context.Context, _ models.TagFilter, _ string, _, _ int) ([]*models.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Tag
	for _, tag := range r.tags {
		out = append(out, tag)
	}
	return out, nil
}

func (r *fakeTagRepo) Save(_ context.Context, tag *models.Tag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags[tag.ID] = tag
	return nil
}

func (r *fakeTagRepo) SaveBatch(ctx context.Context, tags []*models.Tag) error {
	for _, tag := range tags {
		if err := r.Save(ctx, tag); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeTagRepo) Count(_ context.Context, _ models.TagFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.tags)), nil
}

func (r *fakeTagRepo) Exists(ctx context.Context, filter models.TagFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *fakeTagRepo) BySerial(_ context.Context, serial string) (*models.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tag := range r.tags {
		if tag.Serial == serial {
			return tag, nil
		}
	}
	return nil, nil
}

func (r *fakeTagRepo) ByIDWithRelations(ctx context.Context, id uint) (*models.Tag, error) {
	return r.ByID(ctx, id)
}

func (r *fakeTagRepo) ListSyncableIDs(_ context.Context, ids []uint) ([]uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uint
	for _, id := range ids {
		if tag, ok := r.tags[id]; ok && tag.Syncable() {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *fakeTagRepo) ListIDsByStore(_ context.Context, _ uint) ([]uint, error)   { return nil, nil }
func (r *fakeTagRepo) ListIDsByProduct(_ context.Context, _ uint) ([]uint, error) { return nil, nil }

func (r *fakeTagRepo) Update(ctx context.Context, tag *models.Tag) error {
	return r.Save(ctx, tag)
}

func (r *fakeTagRepo) UpdateSyncState(_ context.Context, tagID uint, state models.SyncState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tag, ok := r.tags[tagID]; ok {
		tag.SyncState = state
	}
	r.stateHistory[tagID] = append(r.stateHistory[tagID], state)
	return nil
}

func (r *fakeTagRepo) UpdateDispatch(_ context.Context, tagID uint, state models.SyncState, taskID string, token int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tag, ok := r.tags[tagID]; ok {
		tag.SyncState = state
		tag.LastImageTaskID = &taskID
		tag.LastImageToken = &token
	}
	r.stateHistory[tagID] = append(r.stateHistory[tagID], state)
	return nil
}

func (r *fakeTagRepo) UpdateImage(_ context.Context, tagID uint, image []byte, format string, generatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tag, ok := r.tags[tagID]; ok {
		tag.Image = image
		tag.ImageFormat = format
		tag.LastImageGenSuccess = &generatedAt
	}
	return nil
}

func (r *fakeTagRepo) UpdateTelemetry(_ context.Context, serial string, batteryLevel int, seenAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tag := range r.tags {
		if tag.Serial == serial {
			tag.BatteryLevel = batteryLevel
			tag.LastSeen = &seenAt
		}
	}
	return nil
}

func (r *fakeTagRepo) history(tagID uint) []models.SyncState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.SyncState, len(r.stateHistory[tagID]))
	copy(out, r.stateHistory[tagID])
	return out
}

// fakeTaskRepo is an in-memory PipelineTaskRepository
type fakeTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*models.PipelineTask
}

func newFakeTaskRepo(tasks ...*models.PipelineTask) *fakeTaskRepo {
	r := &fakeTaskRepo{tasks: make(map[uuid.UUID]*models.PipelineTask)}
	for _, task := range tasks {
		r.tasks[task.UUID] = task
	}
	return r
}

func (r *fakeTaskRepo) ByID(_ context.Context, id uint) (*models.PipelineTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, task := range r.tasks {
		if task.ID == id {
			return task, nil
		}
	}
	return nil, nil
}

func (r *fakeTaskRepo) ByFilter(_ context.Context, _ models.PipelineTaskFilter, _ string, _, _ int) ([]*models.PipelineTask, error) {
	return nil, nil
}

func (r *fakeTaskRepo) Save(_ context.Context, task *models.PipelineTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.UUID] = task
	return nil
}

func (r *fakeTaskRepo) SaveBatch(ctx context.Context, tasks []*models.PipelineTask) error {
	for _, task := range tasks {
		if err := r.Save(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeTaskRepo) Count(_ context.Context, _ models.PipelineTaskFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.tasks)), nil
}

func (r *fakeTaskRepo) Exists(ctx context.Context, filter models.PipelineTaskFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *fakeTaskRepo) ByUUID(_ context.Context, id uuid.UUID) (*models.PipelineTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasks[id], nil
}

func (r *fakeTaskRepo) Update(ctx context.Context, task *models.PipelineTask) error {
	return r.Save(ctx, task)
}

func (r *fakeTaskRepo) MarkStarted(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task, ok := r.tasks[id]; ok {
		task.Status = models.PipelineTaskStatusStarted
		task.StartedAt = &at
	}
	return nil
}

func (r *fakeTaskRepo) MarkEnded(_ context.Context, id uuid.UUID, status models.PipelineTaskStatus, errText *string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task, ok := r.tasks[id]; ok {
		task.Status = status
		task.Error = errText
		task.EndedAt = &at
	}
	return nil
}

func (r *fakeTaskRepo) ListByGroup(_ context.Context, groupUUID uuid.UUID) ([]*models.PipelineTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PipelineTask
	for _, task := range r.tasks {
		if task.GroupUUID != nil && *task.GroupUUID == groupUUID {
			out = append(out, task)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) CountByGroupAndStatus(ctx context.Context, groupUUID uuid.UUID) (map[models.PipelineTaskStatus]int64, error) {
	tasks, err := r.ListByGroup(ctx, groupUUID)
	if err != nil {
		return nil, err
	}
	counts := make(map[models.PipelineTaskStatus]int64)
	for _, task := range tasks {
		counts[task.Status]++
	}
	return counts, nil
}

// fakeGatewayRepo records MarkSeen calls
type fakeGatewayRepo struct {
	mu       sync.Mutex
	gateways map[string]*models.Gateway
	seenMACs []string
}

func newFakeGatewayRepo(gateways ...*models.Gateway) *fakeGatewayRepo {
	r := &fakeGatewayRepo{gateways: make(map[string]*models.Gateway)}
	for _, gw := range gateways {
		r.gateways[gw.GatewayMAC] = gw
	}
	return r
}

func (r *fakeGatewayRepo) ByID(_ context.Context, id uint) (*models.Gateway, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, gw := range r.gateways {
		if gw.ID == id {
			return gw, nil
		}
	}
	return nil, nil
}

func (r *fakeGatewayRepo) ByFilter(_ context.Context, _ models.GatewayFilter, _ string, _, _ int) ([]*models.Gateway, error) {
	return nil, nil
}

func (r *fakeGatewayRepo) Save(_ context.Context, gw *models.Gateway) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[gw.GatewayMAC] = gw
	return nil
}

func (r *fakeGatewayRepo) SaveBatch(ctx context.Context, gws []*models.Gateway) error {
	for _, gw := range gws {
		if err := r.Save(ctx, gw); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeGatewayRepo) Count(_ context.Context, _ models.GatewayFilter) (int64, error) {
	return int64(len(r.gateways)), nil
}

func (r *fakeGatewayRepo) Exists(ctx context.Context, filter models.GatewayFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *fakeGatewayRepo) ByMAC(_ context.Context, mac string) (*models.Gateway, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gateways[mac], nil
}

func (r *fakeGatewayRepo) MarkSeen(_ context.Context, mac string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seenMACs = append(r.seenMACs, mac)
	if gw, ok := r.gateways[mac]; ok {
		gw.LastSeen = &at
	}
	return nil
}

// fakePublisher captures published commands and can be told to fail
type fakePublisher struct {
	mu        sync.Mutex
	published []publishedUpdate
	err       error
}

type publishedUpdate struct {
	gatewayMAC string
	cmd        transport.UpdateCommand
}

func (p *fakePublisher) PublishUpdate(_ context.Context, gatewayMAC string, cmd transport.UpdateCommand) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, publishedUpdate{gatewayMAC: gatewayMAC, cmd: cmd})
	return nil
}

func (p *fakePublisher) last() *publishedUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.published) == 0 {
		return nil
	}
	return &p.published[len(p.published)-1]
}
