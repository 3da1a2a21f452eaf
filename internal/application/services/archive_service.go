package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/taskmaster/kanban/internal/domain/entities"
	"github.com/taskmaster/kanban/internal/infrastructure/logger"
	"github.com/taskmaster/kanban/internal/ports"
)

// DefaultArchiveMonths is how many calendar months an active task survives.
const DefaultArchiveMonths = 3

// ArchiveService moves aged tasks off the board and serves the history views
type ArchiveService struct {
	mu         sync.Mutex
	tasks      *TaskService
	taskRepo   ports.TaskRepository
	clock      Clock
	monthsBack int
	logger     *logger.Logger
}

var _ ports.ArchiveService = (*ArchiveService)(nil)

// NewArchiveService creates a new archive service
func NewArchiveService(tasks *TaskService, taskRepo ports.TaskRepository, clock Clock, monthsBack int, logger *logger.Logger) *ArchiveService {
	if clock == nil {
		clock = RealClock{}
	}
	if monthsBack < 0 {
		monthsBack = DefaultArchiveMonths
	}
	return &ArchiveService{
		tasks:      tasks,
		taskRepo:   taskRepo,
		clock:      clock,
		monthsBack: monthsBack,
		logger:     logger.WithComponent("archive_service"),
	}
}

// ArchiveCutoff returns the first instant of the month monthsBack calendar
// months before now's month, with months taken in Location().
func ArchiveCutoff(now time.Time, monthsBack int) time.Time {
	now = now.In(Location())
	return time.Date(now.Year(), now.Month()-time.Month(monthsBack), 1, 0, 0, 0, 0, now.Location())
}

// Cutoff returns the archival cutoff for the current clock time
func (s *ArchiveService) Cutoff() time.Time {
	return ArchiveCutoff(s.clock.Now(), s.monthsBack)
}

// ArchiveOldTasks appends every active task created before the cutoff to the
// archive and removes it from the board. Running it with nothing to move
// writes nothing.
func (s *ArchiveService) ArchiveOldTasks(ctx context.Context) (*ports.ArchiveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.Cutoff()
	result := &ports.ArchiveResult{Cutoff: cutoff, Archived: []string{}}

	moved, err := s.tasks.Detach(ctx,
		func(t *entities.Task) bool { return t.CreatedBefore(cutoff) },
		func(detached []entities.Task) error {
			archived, err := s.taskRepo.LoadArchive(ctx)
			if err != nil {
				return fmt.Errorf("failed to load archive: %w", err)
			}
			archived = append(archived, detached...)
			if err := s.taskRepo.SaveArchive(ctx, archived); err != nil {
				return fmt.Errorf("failed to save archive: %w", err)
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to archive tasks: %w", err)
	}

	for _, t := range moved {
		result.Archived = append(result.Archived, t.ID)
	}
	if len(moved) > 0 {
		s.logger.Infow("Archived old tasks", "count", len(moved), "cutoff", cutoff.Format(time.RFC3339))
	} else {
		s.logger.Debugw("No tasks to archive", "cutoff", cutoff.Format(time.RFC3339))
	}
	return result, nil
}

// ListArchived returns the archive in the order tasks were archived
func (s *ArchiveService) ListArchived(ctx context.Context) ([]entities.Task, error) {
	archived, err := s.taskRepo.LoadArchive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load archive: %w", err)
	}
	return archived, nil
}

// ArchiveView filters active and archived tasks together and groups them by month
func (s *ArchiveService) ArchiveView(ctx context.Context, q ports.TaskQuery) (*ports.HistoryView, error) {
	all, err := s.allTasks(ctx)
	if err != nil {
		return nil, err
	}

	filtered := FilterTasks(all, q)
	return &ports.HistoryView{
		Query:   q,
		Options: Options(all),
		Groups:  GroupByMonth(filtered),
		Total:   len(filtered),
	}, nil
}

// AuthorView lists every task of one author, active or archived, by month
func (s *ArchiveService) AuthorView(ctx context.Context, author string) (*ports.HistoryView, error) {
	all, err := s.allTasks(ctx)
	if err != nil {
		return nil, err
	}

	q := ports.TaskQuery{Author: author}
	var filtered []entities.Task
	if author != "" {
		filtered = FilterTasks(all, q)
	}
	return &ports.HistoryView{
		Query:   q,
		Options: ports.FilterOptions{Authors: DistinctAuthors(all), Months: []string{}},
		Groups:  GroupByMonth(filtered),
		Total:   len(filtered),
	}, nil
}

func (s *ArchiveService) allTasks(ctx context.Context) ([]entities.Task, error) {
	archived, err := s.ListArchived(ctx)
	if err != nil {
		return nil, err
	}
	return append(s.tasks.ListTasks(ctx), archived...), nil
}
