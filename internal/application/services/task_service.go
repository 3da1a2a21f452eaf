package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/taskmaster/kanban/internal/domain/entities"
	"github.com/taskmaster/kanban/internal/infrastructure/logger"
	"github.com/taskmaster/kanban/internal/ports"
)

// TaskService owns the active collection and persists it through the repository
// after every mutation. A failed write leaves the in-memory collection unchanged.
type TaskService struct {
	mu       sync.RWMutex
	tasks    []entities.Task
	taskRepo ports.TaskRepository
	validate *validator.Validate
	clock    Clock
	logger   *logger.Logger
}

var _ ports.TaskService = (*TaskService)(nil)

// NewTaskService creates a new task service and loads the active collection
func NewTaskService(ctx context.Context, taskRepo ports.TaskRepository, clock Clock, logger *logger.Logger) (*TaskService, error) {
	if clock == nil {
		clock = RealClock{}
	}
	s := &TaskService{
		taskRepo: taskRepo,
		validate: NewValidator(),
		clock:    clock,
		logger:   logger.WithComponent("task_service"),
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewValidator returns a validator that reports fields by their json names
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("filename", validateFileName)
	_ = v.RegisterValidation("dataurl", validateDataURL)
	return v
}

// validateFileName accepts a bare file name with no directory part.
func validateFileName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return false
	}
	return filepath.Base(name) == name
}

// validateDataURL accepts only self-contained base64 data URLs.
func validateDataURL(fl validator.FieldLevel) bool {
	_, _, err := DecodeDataURL(fl.Field().String())
	return err == nil
}

// Reload replaces the in-memory collection with the stored one
func (s *TaskService) Reload(ctx context.Context) error {
	tasks, err := s.taskRepo.LoadActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}

	s.mu.Lock()
	s.tasks = tasks
	s.mu.Unlock()
	return nil
}

// CreateTask creates a new task in the "new" column
func (s *TaskService) CreateTask(ctx context.Context, req ports.CreateTaskRequest) (*entities.Task, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Author = strings.TrimSpace(req.Author)

	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	files := make([]entities.Attachment, len(req.Files))
	copy(files, req.Files)

	s.mu.Lock()
	defer s.mu.Unlock()

	task := entities.Task{
		ID:          s.newIDLocked(),
		Title:       req.Title,
		Description: req.Description,
		Author:      req.Author,
		Priority:    req.Priority,
		Status:      entities.TaskStatusNew,
		CreatedAt:   s.clock.Now(),
		Files:       files,
	}

	next := cloneTasks(s.tasks)
	next = append(next, task)
	if err := s.taskRepo.SaveActive(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	s.tasks = next

	s.logger.LogTaskEvent("created", task)

	out := task.Clone()
	return &out, nil
}

// GetTask retrieves an active task by ID
func (s *TaskService) GetTask(ctx context.Context, id string) (*entities.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", entities.ErrTaskNotFound, id)
	}
	out := s.tasks[i].Clone()
	return &out, nil
}

// UpdateTask applies a partial edit and appends any new attachments
func (s *TaskService) UpdateTask(ctx context.Context, id string, req ports.UpdateTaskRequest) (*entities.Task, error) {
	if err := s.normalizeUpdate(&req); err != nil {
		return nil, err
	}

	return s.mutate(ctx, id, "updated", func(t *entities.Task) error {
		if req.Title != nil {
			t.Title = *req.Title
		}
		if req.Description != nil {
			t.Description = *req.Description
		}
		if req.Author != nil {
			t.Author = *req.Author
		}
		if req.Priority != nil {
			t.Priority = *req.Priority
		}
		t.AddFiles(req.Files...)
		return nil
	})
}

// UpdateTaskStatus moves a task to another workflow column
func (s *TaskService) UpdateTaskStatus(ctx context.Context, id string, status entities.TaskStatus) (*entities.Task, error) {
	if !status.IsValid() {
		return nil, &entities.ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("unknown status %q", status),
			Err:    entities.ErrInvalidStatus,
		}
	}

	return s.mutate(ctx, id, "moved", func(t *entities.Task) error {
		t.Status = status
		return nil
	})
}

// RemoveAttachment drops the attachment at index from the task's files
func (s *TaskService) RemoveAttachment(ctx context.Context, id string, index int) (*entities.Task, error) {
	return s.mutate(ctx, id, "attachment removed", func(t *entities.Task) error {
		_, err := t.RemoveFile(index)
		return err
	})
}

// DeleteTask removes a task; deleting an absent task is not an error
func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil
	}

	next := make([]entities.Task, 0, len(s.tasks)-1)
	next = append(next, s.tasks[:i]...)
	next = append(next, s.tasks[i+1:]...)
	if err := s.taskRepo.SaveActive(ctx, next); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	removed := s.tasks[i]
	s.tasks = next

	s.logger.LogTaskEvent("deleted", removed)
	return nil
}

// ListTasks returns the active collection in insertion order
func (s *TaskService) ListTasks(ctx context.Context) []entities.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTasks(s.tasks)
}

// Board filters the active collection and groups it into status columns
func (s *TaskService) Board(ctx context.Context, q ports.TaskQuery) ports.BoardView {
	tasks := s.ListTasks(ctx)
	return ports.BoardView{
		Query:   q,
		Columns: GroupByStatus(FilterTasks(tasks, q)),
	}
}

// FilterOptions lists the authors and months present on the board
func (s *TaskService) FilterOptions(ctx context.Context) ports.FilterOptions {
	return Options(s.ListTasks(ctx))
}

// Detach removes every active task matching pred. beforeSave receives the
// removed tasks and runs before the active collection is written; if it or
// the write fails nothing is removed. With no matches nothing is written.
func (s *TaskService) Detach(ctx context.Context, pred func(*entities.Task) bool, beforeSave func([]entities.Task) error) ([]entities.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var detached []entities.Task
	kept := make([]entities.Task, 0, len(s.tasks))
	for i := range s.tasks {
		if pred(&s.tasks[i]) {
			detached = append(detached, s.tasks[i].Clone())
		} else {
			kept = append(kept, s.tasks[i].Clone())
		}
	}
	if len(detached) == 0 {
		return nil, nil
	}

	if beforeSave != nil {
		if err := beforeSave(cloneTasks(detached)); err != nil {
			return nil, err
		}
	}
	if err := s.taskRepo.SaveActive(ctx, kept); err != nil {
		return nil, fmt.Errorf("failed to save active tasks: %w", err)
	}
	s.tasks = kept
	return detached, nil
}

// mutate applies fn to a copy of the task and persists the collection.
func (s *TaskService) mutate(ctx context.Context, id, action string, fn func(*entities.Task) error) (*entities.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", entities.ErrTaskNotFound, id)
	}

	task := s.tasks[i].Clone()
	if err := fn(&task); err != nil {
		return nil, err
	}

	next := cloneTasks(s.tasks)
	next[i] = task
	if err := s.taskRepo.SaveActive(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	s.tasks = next

	s.logger.LogTaskEvent(action, task)

	out := task.Clone()
	return &out, nil
}

func (s *TaskService) normalizeUpdate(req *ports.UpdateTaskRequest) error {
	if req.Title != nil {
		v := strings.TrimSpace(*req.Title)
		if v == "" {
			return &entities.ValidationError{Field: "title", Reason: "must not be empty"}
		}
		req.Title = &v
	}
	if req.Author != nil {
		v := strings.TrimSpace(*req.Author)
		if v == "" {
			return &entities.ValidationError{Field: "author", Reason: "must not be empty"}
		}
		req.Author = &v
	}
	if req.Description != nil {
		v := strings.TrimSpace(*req.Description)
		req.Description = &v
	}
	return s.validateStruct(*req)
}

func (s *TaskService) validateStruct(req interface{}) error {
	return ValidateStruct(s.validate, req)
}

// ValidateStruct runs v over req and turns the first failure into a
// *entities.ValidationError.
func ValidateStruct(v *validator.Validate, req interface{}) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &entities.ValidationError{Field: "request", Reason: err.Error()}
	}

	fe := verrs[0]
	verr := &entities.ValidationError{Field: fieldPath(fe)}
	switch fe.Tag() {
	case "required":
		verr.Reason = "must not be empty"
	case "oneof":
		verr.Reason = fmt.Sprintf("must be one of [%s]", fe.Param())
	case "min":
		verr.Reason = fmt.Sprintf("must be at least %s", fe.Param())
	case "filename":
		verr.Reason = "must be a file name without a directory"
	case "dataurl":
		verr.Reason = "must be a base64 data URL"
	default:
		verr.Reason = fmt.Sprintf("failed %q check", fe.Tag())
	}
	if verr.Field == "priority" {
		verr.Err = entities.ErrInvalidPriority
	}
	return verr
}

// fieldPath drops the struct name from the namespace, e.g. "files[0].name".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func (s *TaskService) indexLocked(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// newIDLocked returns a time-ordered random id not used by any active task.
func (s *TaskService) newIDLocked() string {
	for {
		id, err := uuid.NewV7()
		if err != nil {
			id = uuid.New()
		}
		if s.indexLocked(id.String()) < 0 {
			return id.String()
		}
	}
}

func cloneTasks(tasks []entities.Task) []entities.Task {
	out := make([]entities.Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Clone()
	}
	return out
}
