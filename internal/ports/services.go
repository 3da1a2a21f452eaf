package ports

import (
	"context"
	"time"

	"github.com/taskmaster/kanban/internal/domain/entities"
)

// TaskService interface for task board operations
type TaskService interface {
	CreateTask(ctx context.Context, req CreateTaskRequest) (*entities.Task, error)
	GetTask(ctx context.Context, id string) (*entities.Task, error)
	UpdateTask(ctx context.Context, id string, req UpdateTaskRequest) (*entities.Task, error)
	UpdateTaskStatus(ctx context.Context, id string, status entities.TaskStatus) (*entities.Task, error)
	RemoveAttachment(ctx context.Context, id string, index int) (*entities.Task, error)
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context) []entities.Task
	Board(ctx context.Context, q TaskQuery) BoardView
	FilterOptions(ctx context.Context) FilterOptions
	Reload(ctx context.Context) error
}

// ArchiveService interface for archival and history views
type ArchiveService interface {
	ArchiveOldTasks(ctx context.Context) (*ArchiveResult, error)
	ListArchived(ctx context.Context) ([]entities.Task, error)
	ArchiveView(ctx context.Context, q TaskQuery) (*HistoryView, error)
	AuthorView(ctx context.Context, author string) (*HistoryView, error)
}

// Request/Response Types

type CreateTaskRequest struct {
	Title       string                `json:"title" validate:"required"`
	Description string                `json:"description"`
	Author      string                `json:"author" validate:"required"`
	Priority    entities.Priority     `json:"priority" validate:"required,oneof=low medium high"`
	Files       []entities.Attachment `json:"files" validate:"dive"`
}

type UpdateTaskRequest struct {
	Title       *string               `json:"title"`
	Description *string               `json:"description"`
	Author      *string               `json:"author"`
	Priority    *entities.Priority    `json:"priority" validate:"omitempty,oneof=low medium high"`
	Files       []entities.Attachment `json:"files" validate:"dive"`
}

// TaskQuery holds the three board filters. Empty fields match everything.
type TaskQuery struct {
	Search string `json:"search" query:"search"`
	Month  string `json:"month" query:"month"`
	Author string `json:"author" query:"author"`
}

// Column is one workflow status bucket of the board.
type Column struct {
	Status entities.TaskStatus  `json:"status"`
	Title  string               `json:"title"`
	Icon   string               `json:"icon"`
	Count  int                  `json:"count"`
	Tasks  []entities.Task      `json:"tasks"`
	Empty  *entities.EmptyState `json:"empty,omitempty"`
}

type BoardView struct {
	Query   TaskQuery `json:"query"`
	Columns []Column  `json:"columns"`
}

// Counts returns the per-status task counts of the board.
func (b BoardView) Counts() map[entities.TaskStatus]int {
	out := make(map[entities.TaskStatus]int, len(b.Columns))
	for _, c := range b.Columns {
		out[c.Status] = c.Count
	}
	return out
}

// MonthGroup is a set of tasks created in the same calendar month.
type MonthGroup struct {
	Key   string          `json:"key"`
	Label string          `json:"label"`
	Tasks []entities.Task `json:"tasks"`
}

type FilterOptions struct {
	Authors []string `json:"authors"`
	Months  []string `json:"months"`
}

type HistoryView struct {
	Query   TaskQuery     `json:"query"`
	Options FilterOptions `json:"options"`
	Groups  []MonthGroup  `json:"groups"`
	Total   int           `json:"total"`
}

type ArchiveResult struct {
	Cutoff   time.Time `json:"cutoff"`
	Archived []string  `json:"archived"`
}

type ErrorResponse struct {
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
