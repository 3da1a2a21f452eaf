package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskmaster/kanban/internal/domain/entities"
	"github.com/taskmaster/kanban/internal/infrastructure/logger"
	"github.com/taskmaster/kanban/internal/ports"
)

// TaskRepositoryImpl implements ports.TaskRepository as two JSON arrays in a BlobStore
type TaskRepositoryImpl struct {
	store      ports.BlobStore
	activeKey  string
	archiveKey string
	logger     *logger.Logger
}

// NewTaskRepository creates a task repository over store
func NewTaskRepository(store ports.BlobStore, activeKey, archiveKey string, log *logger.Logger) ports.TaskRepository {
	return &TaskRepositoryImpl{
		store:      store,
		activeKey:  activeKey,
		archiveKey: archiveKey,
		logger:     log.WithComponent("task_repository"),
	}
}

func (r *TaskRepositoryImpl) LoadActive(ctx context.Context) ([]entities.Task, error) {
	return r.load(ctx, r.activeKey)
}

func (r *TaskRepositoryImpl) SaveActive(ctx context.Context, tasks []entities.Task) error {
	return r.save(ctx, r.activeKey, tasks)
}

func (r *TaskRepositoryImpl) LoadArchive(ctx context.Context) ([]entities.Task, error) {
	return r.load(ctx, r.archiveKey)
}

func (r *TaskRepositoryImpl) SaveArchive(ctx context.Context, tasks []entities.Task) error {
	return r.save(ctx, r.archiveKey, tasks)
}

// load treats a missing key and an unparsable blob alike as an empty collection.
func (r *TaskRepositoryImpl) load(ctx context.Context, key string) ([]entities.Task, error) {
	start := time.Now()
	b, ok, err := r.store.Get(ctx, key)
	r.logger.LogStorageOp("get", key, len(b), msSince(start), err)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok || len(b) == 0 {
		return []entities.Task{}, nil
	}

	var tasks []entities.Task
	if err := json.Unmarshal(b, &tasks); err != nil {
		r.logger.WithError(err).Warnw("Stored tasks are corrupt, starting empty", "key", key)
		return []entities.Task{}, nil
	}
	if tasks == nil {
		tasks = []entities.Task{}
	}
	for i := range tasks {
		if tasks[i].Files == nil {
			tasks[i].Files = []entities.Attachment{}
		}
	}
	return tasks, nil
}

func (r *TaskRepositoryImpl) save(ctx context.Context, key string, tasks []entities.Task) error {
	if tasks == nil {
		tasks = []entities.Task{}
	}
	b, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	start := time.Now()
	err = r.store.Set(ctx, key, b)
	r.logger.LogStorageOp("set", key, len(b), msSince(start), err)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Nanoseconds()) / 1000000
}
