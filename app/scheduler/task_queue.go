package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	renderQueueKey   = "shelfsync:queue:render"
	dispatchQueueKey = "shelfsync:queue:dispatch"
)

// TaskEnvelope is the unit of work passed between pipeline stages over the
// shared queue. Workers share no memory; everything a stage needs beyond
// these identifiers is reloaded from the store.
type TaskEnvelope struct {
	_msgpack struct{} `msgpack:",as_array"`

	TaskUUID  string
	TagID     uint
	GroupUUID string
}

func (e *TaskEnvelope) taskID() (uuid.UUID, error) {
	return uuid.Parse(e.TaskUUID)
}

func (e *TaskEnvelope) groupID() *uuid.UUID {
	if e.GroupUUID == "" {
		return nil
	}
	id, err := uuid.Parse(e.GroupUUID)
	if err != nil {
		return nil
	}
	return &id
}

// TaskQueue carries envelopes between the trigger surface and the worker
// pool. Dequeue returns nil without error on timeout.
type TaskQueue interface {
	EnqueueRender(ctx context.Context, taskUUID uuid.UUID, tagID uint, groupUUID *uuid.UUID) error
	EnqueueDispatch(ctx context.Context, taskUUID uuid.UUID, tagID uint) error
	DequeueRender(ctx context.Context, timeout time.Duration) (*TaskEnvelope, error)
	DequeueDispatch(ctx context.Context, timeout time.Duration) (*TaskEnvelope, error)
}

// RedisTaskQueue implements TaskQueue on redis lists so any worker process
// can pull work
type RedisTaskQueue struct {
	client *redis.Client
}

func NewRedisTaskQueue(client *redis.Client) *RedisTaskQueue {
	return &RedisTaskQueue{client: client}
}

func (q *RedisTaskQueue) push(ctx context.Context, key string, env TaskEnvelope) error {
	payload, err := msgpack.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode task envelope: %w", err)
	}
	if err := q.client.LPush(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue on %s: %w", key, err)
	}
	return nil
}

func (q *RedisTaskQueue) pop(ctx context.Context, key string, timeout time.Duration) (*TaskEnvelope, error) {
	vals, err := q.client.BRPop(ctx, timeout, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue from %s: %w", key, err)
	}
	// BRPOP returns [key, value]
	if len(vals) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply length %d from %s", len(vals), key)
	}
	var env TaskEnvelope
	if err := msgpack.Unmarshal([]byte(vals[1]), &env); err != nil {
		return nil, fmt.Errorf("failed to decode task envelope: %w", err)
	}
	return &env, nil
}

func (q *RedisTaskQueue) EnqueueRender(ctx context.Context, taskUUID uuid.UUID, tagID uint, groupUUID *uuid.UUID) error {
	env := TaskEnvelope{TaskUUID: taskUUID.String(), TagID: tagID}
	if groupUUID != nil {
		env.GroupUUID = groupUUID.String()
	}
	return q.push(ctx, renderQueueKey, env)
}

func (q *RedisTaskQueue) EnqueueDispatch(ctx context.Context, taskUUID uuid.UUID, tagID uint) error {
	return q.push(ctx, dispatchQueueKey, TaskEnvelope{TaskUUID: taskUUID.String(), TagID: tagID})
}

func (q *RedisTaskQueue) DequeueRender(ctx context.Context, timeout time.Duration) (*TaskEnvelope, error) {
	return q.pop(ctx, renderQueueKey, timeout)
}

func (q *RedisTaskQueue) DequeueDispatch(ctx context.Context, timeout time.Duration) (*TaskEnvelope, error) {
	return q.pop(ctx, dispatchQueueKey, timeout)
}

// MemoryTaskQueue is an in-process TaskQueue for tests
type MemoryTaskQueue struct {
	render   chan TaskEnvelope
	dispatch chan TaskEnvelope
}

func NewMemoryTaskQueue() *MemoryTaskQueue {
	return &MemoryTaskQueue{
		render:   make(chan TaskEnvelope, 1024),
		dispatch: make(chan TaskEnvelope, 1024),
	}
}

func (q *MemoryTaskQueue) EnqueueRender(_ context.Context, taskUUID uuid.UUID, tagID uint, groupUUID *uuid.UUID) error {
	env := TaskEnvelope{TaskUUID: taskUUID.String(), TagID: tagID}
	if groupUUID != nil {
		env.GroupUUID = groupUUID.String()
	}
	select {
	case q.render <- env:
		return nil
	default:
		return fmt.Errorf("render queue full")
	}
}

func (q *MemoryTaskQueue) EnqueueDispatch(_ context.Context, taskUUID uuid.UUID, tagID uint) error {
	select {
	case q.dispatch <- TaskEnvelope{TaskUUID: taskUUID.String(), TagID: tagID}:
		return nil
	default:
		return fmt.Errorf("dispatch queue full")
	}
}

func (q *MemoryTaskQueue) DequeueRender(ctx context.Context, timeout time.Duration) (*TaskEnvelope, error) {
	return popChan(ctx, q.render, timeout)
}

func (q *MemoryTaskQueue) DequeueDispatch(ctx context.Context, timeout time.Duration) (*TaskEnvelope, error) {
	return popChan(ctx, q.dispatch, timeout)
}

func popChan(ctx context.Context, ch chan TaskEnvelope, timeout time.Duration) (*TaskEnvelope, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case env := <-ch:
		return &env, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
