package ports

import (
	"context"

	"github.com/taskmaster/kanban/internal/domain/entities"
)

// BlobStore is a synchronous key-value store of named serialized blobs.
// Get reports ok=false when the key is absent.
type BlobStore interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// TaskRepository reads and rewrites the two task collections in full.
type TaskRepository interface {
	LoadActive(ctx context.Context) ([]entities.Task, error)
	SaveActive(ctx context.Context, tasks []entities.Task) error
	LoadArchive(ctx context.Context) ([]entities.Task, error)
	SaveArchive(ctx context.Context, tasks []entities.Task) error
}
