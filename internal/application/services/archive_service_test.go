package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/kanban/internal/domain/entities"
	"github.com/taskmaster/kanban/internal/ports"
)

func TestArchiveCutoff(t *testing.T) {
	cases := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC), time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, time.March, 31, 23, 59, 0, 0, time.UTC), time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		assert.True(t, tc.want.Equal(ArchiveCutoff(tc.now, 3)), "now=%s", tc.now)
	}
}

func TestArchiveService_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, "Fix bug", "Alice")
	_, err := f.tasks.UpdateTaskStatus(ctx, a.ID, entities.TaskStatusOngoing)
	require.NoError(t, err)

	f.clock.Set(time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC))
	b := f.create(t, "Old task", "Bob")
	f.clock.Set(time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC))

	res, err := f.archive.ArchiveOldTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, res.Archived)

	active := f.tasks.ListTasks(ctx)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)

	archived, err := f.archive.ListArchived(ctx)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, b.ID, archived[0].ID)

	counts := f.tasks.Board(ctx, ports.TaskQuery{}).Counts()
	assert.Equal(t, 0, counts[entities.TaskStatusNew])
	assert.Equal(t, 1, counts[entities.TaskStatusOngoing])
}

func TestArchiveService_BoundaryAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.clock.Set(time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC))
	first := f.create(t, "first", "Alice")
	f.clock.Set(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))
	onCutoff := f.create(t, "on cutoff", "Alice")
	f.clock.Set(time.Date(2026, time.February, 28, 23, 59, 59, 0, time.UTC))
	second := f.create(t, "second", "Alice")
	f.clock.Set(time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC))

	res, err := f.archive.ArchiveOldTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, second.ID}, res.Archived)

	active := f.tasks.ListTasks(ctx)
	require.Len(t, active, 1)
	assert.Equal(t, onCutoff.ID, active[0].ID)
}

func TestArchiveService_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.clock.Set(time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC))
	f.create(t, "old", "Alice")
	f.clock.Set(time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC))
	f.create(t, "new", "Alice")

	_, err := f.archive.ArchiveOldTasks(ctx)
	require.NoError(t, err)

	activeWrites := f.store.Writes(activeKey)
	archiveWrites := f.store.Writes(archiveKey)

	res, err := f.archive.ArchiveOldTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Archived)
	assert.Equal(t, activeWrites, f.store.Writes(activeKey))
	assert.Equal(t, archiveWrites, f.store.Writes(archiveKey))

	archived, err := f.archive.ListArchived(ctx)
	require.NoError(t, err)
	assert.Len(t, archived, 1)
}

func TestArchiveService_AppendsToExistingArchive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.SaveArchive(ctx, []entities.Task{{ID: "earlier", Author: "Zed", CreatedAt: day(2024, time.May, 1)}}))

	f.clock.Set(time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC))
	old := f.create(t, "old", "Alice")
	f.clock.Set(time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC))

	_, err := f.archive.ArchiveOldTasks(ctx)
	require.NoError(t, err)

	archived, err := f.archive.ListArchived(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"earlier", old.ID}, ids(archived))
}

func TestArchiveService_FailedArchiveWriteKeepsBoard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.clock.Set(time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC))
	f.create(t, "old", "Alice")
	f.clock.Set(time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC))

	f.store.FailWrites(errors.New("disk full"))
	_, err := f.archive.ArchiveOldTasks(ctx)
	require.Error(t, err)

	assert.Len(t, f.tasks.ListTasks(ctx), 1)
}

func TestArchiveService_Views(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.clock.Set(time.Date(2025, time.November, 3, 0, 0, 0, 0, time.UTC))
	f.create(t, "Old bug", "Alice")
	f.clock.Set(time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC))
	f.create(t, "New bug", "Alice")
	f.create(t, "Docs", "Bob")

	_, err := f.archive.ArchiveOldTasks(ctx)
	require.NoError(t, err)

	view, err := f.archive.ArchiveView(ctx, ports.TaskQuery{Search: "bug"})
	require.NoError(t, err)
	assert.Equal(t, 2, view.Total)
	require.Len(t, view.Groups, 2)
	assert.Equal(t, "June 2026", view.Groups[0].Label)
	assert.Equal(t, "November 2025", view.Groups[1].Label)
	assert.Equal(t, []string{"Alice", "Bob"}, view.Options.Authors)
	assert.Equal(t, []string{"November 2025", "June 2026"}, view.Options.Months)

	authorView, err := f.archive.AuthorView(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, 2, authorView.Total)
	assert.Len(t, authorView.Groups, 2)

	none, err := f.archive.AuthorView(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, none.Total)
	assert.Empty(t, none.Groups)
	assert.Equal(t, []string{"Alice", "Bob"}, none.Options.Authors)
}
