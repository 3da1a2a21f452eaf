package services

import (
	"context"
	"sync"
	"time"

	"github.com/taskmaster/kanban/internal/infrastructure/logger"
)

// ArchiveScheduler runs the archival sweep on a fixed interval while the
// server is up.
type ArchiveScheduler struct {
	archive    *ArchiveService
	interval   time.Duration
	runOnStart bool
	logger     *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewArchiveScheduler creates a scheduler. A zero interval disables the
// periodic sweep; runOnStart still sweeps once when started.
func NewArchiveScheduler(archive *ArchiveService, interval time.Duration, runOnStart bool, logger *logger.Logger) *ArchiveScheduler {
	return &ArchiveScheduler{
		archive:    archive,
		interval:   interval,
		runOnStart: runOnStart,
		logger:     logger.WithComponent("archive_scheduler"),
	}
}

// Start launches the sweep loop. Calling Start twice is a no-op.
func (s *ArchiveScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.running = true
	go s.loop(ctx, s.done)

	s.logger.Infow("Archive scheduler started", "interval", s.interval.String(), "run_on_start", s.runOnStart)
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (s *ArchiveScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("Archive scheduler stopped")
}

func (s *ArchiveScheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if s.runOnStart {
		s.sweep(ctx)
	}
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *ArchiveScheduler) sweep(ctx context.Context) {
	start := time.Now()
	result, err := s.archive.ArchiveOldTasks(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Archive sweep failed")
		return
	}
	s.logger.Debugw("Archive sweep completed",
		"archived", len(result.Archived),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
