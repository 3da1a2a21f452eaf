package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors
var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrValidation      = errors.New("validation failed")
	ErrAttachmentIndex = errors.New("attachment index out of range")
	ErrDecodeFailed    = errors.New("attachment decode failed")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match both ErrValidation and the more specific cause.
func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

// IndexError reports an attachment index outside [0, Len).
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("attachment index %d out of range [0, %d)", e.Index, e.Len)
}

func (e *IndexError) Unwrap() error {
	return ErrAttachmentIndex
}

// Enums and types
type TaskStatus string

const (
	TaskStatusNew      TaskStatus = "new"
	TaskStatusOngoing  TaskStatus = "ongoing"
	TaskStatusPaused   TaskStatus = "paused"
	TaskStatusFinished TaskStatus = "finished"
)

// Statuses lists the workflow columns in board order.
var Statuses = []TaskStatus{
	TaskStatusNew,
	TaskStatusOngoing,
	TaskStatusPaused,
	TaskStatusFinished,
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Attachment is a file bound to a task. Data is a self-contained data URL.
type Attachment struct {
	Name     string `json:"name" validate:"required,filename"`
	Size     int64  `json:"size" validate:"min=0"`
	MimeType string `json:"type"`
	Data     string `json:"data" validate:"required,dataurl"`
}

// Task represents a card on the board
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Author      string       `json:"author"`
	Priority    Priority     `json:"priority"`
	Status      TaskStatus   `json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
	Files       []Attachment `json:"files"`
}

// Clone returns a copy that shares no slice memory with t.
func (t Task) Clone() Task {
	out := t
	if t.Files != nil {
		out.Files = make([]Attachment, len(t.Files))
		copy(out.Files, t.Files)
	}
	return out
}

// MatchesText reports whether term (already lower-cased) occurs in the title,
// description or author. An empty term always matches.
func (t *Task) MatchesText(term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Title), term) ||
		strings.Contains(strings.ToLower(t.Description), term) ||
		strings.Contains(strings.ToLower(t.Author), term)
}

// AddFiles appends attachments, preserving their order.
func (t *Task) AddFiles(files ...Attachment) {
	if len(files) == 0 {
		return
	}
	t.Files = append(t.Files, files...)
}

// RemoveFile drops the attachment at index.
func (t *Task) RemoveFile(index int) (Attachment, error) {
	if index < 0 || index >= len(t.Files) {
		return Attachment{}, &IndexError{Index: index, Len: len(t.Files)}
	}
	removed := t.Files[index]
	files := make([]Attachment, 0, len(t.Files)-1)
	files = append(files, t.Files[:index]...)
	files = append(files, t.Files[index+1:]...)
	t.Files = files
	return removed, nil
}

// CreatedBefore reports whether the task was created strictly before cutoff.
func (t *Task) CreatedBefore(cutoff time.Time) bool {
	return t.CreatedAt.Before(cutoff)
}

// Utility methods
func (ts TaskStatus) IsValid() bool {
	switch ts {
	case TaskStatusNew, TaskStatusOngoing, TaskStatusPaused, TaskStatusFinished:
		return true
	default:
		return false
	}
}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// ParseStatus converts boundary input into a TaskStatus.
func ParseStatus(s string) (TaskStatus, error) {
	status := TaskStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s), Err: ErrInvalidStatus}
	}
	return status, nil
}

// ParsePriority converts boundary input into a Priority.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", s), Err: ErrInvalidPriority}
	}
	return p, nil
}
