package entities

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, s := range Statuses {
		got, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	got, err := ParseStatus("  Ongoing ")
	require.NoError(t, err)
	assert.Equal(t, TaskStatusOngoing, got)

	_, err = ParseStatus("blocked")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "status", verr.Field)
}

func TestParsePriority(t *testing.T) {
	got, err := ParsePriority("HIGH")
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, got)

	_, err = ParsePriority("critical")
	assert.ErrorIs(t, err, ErrInvalidPriority)
}

func TestTask_RemoveFile(t *testing.T) {
	task := Task{Files: []Attachment{{Name: "a.txt"}, {Name: "b.txt"}}}

	removed, err := task.RemoveFile(0)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", removed.Name)
	require.Len(t, task.Files, 1)
	assert.Equal(t, "b.txt", task.Files[0].Name)

	_, err = task.RemoveFile(1)
	var ierr *IndexError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, 1, ierr.Index)
	assert.Equal(t, 1, ierr.Len)
	assert.ErrorIs(t, err, ErrAttachmentIndex)

	_, err = task.RemoveFile(-1)
	assert.ErrorIs(t, err, ErrAttachmentIndex)
}

func TestTask_CloneDoesNotShareFiles(t *testing.T) {
	orig := Task{ID: "x", Files: []Attachment{{Name: "a"}}}
	c := orig.Clone()
	c.Files[0].Name = "changed"
	assert.Equal(t, "a", orig.Files[0].Name)
}

func TestTask_MatchesText(t *testing.T) {
	task := Task{Title: "Fix bug", Description: "in the parser", Author: "Alice"}

	assert.True(t, task.MatchesText(""))
	assert.True(t, task.MatchesText("fix"))
	assert.True(t, task.MatchesText("parser"))
	assert.True(t, task.MatchesText("alice"))
	assert.False(t, task.MatchesText("bob"))
}

func TestTask_CreatedBefore(t *testing.T) {
	cutoff := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	task := Task{CreatedAt: cutoff}
	assert.False(t, task.CreatedBefore(cutoff))
	task.CreatedAt = cutoff.Add(-time.Second)
	assert.True(t, task.CreatedBefore(cutoff))
}

func TestStatusDisplay(t *testing.T) {
	assert.Equal(t, "Ongoing", TaskStatusOngoing.Title())
	assert.Equal(t, "fas fa-pause", TaskStatusPaused.Icon())
	assert.Equal(t, "fas fa-circle", TaskStatus("weird").Icon())
	assert.Equal(t, "No finished tasks", TaskStatusFinished.EmptyState().Title)
}

func TestAttachmentIcon(t *testing.T) {
	cases := map[string]string{
		"":                   "fas fa-file",
		"image/png":          "fas fa-file-image",
		"video/mp4":          "fas fa-file-video",
		"audio/mpeg":         "fas fa-file-audio",
		"application/pdf":    "fas fa-file-pdf",
		"application/msword": "fas fa-file-word",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": "fas fa-file-excel",
		"application/vnd.ms-powerpoint":                                     "fas fa-file-powerpoint",
		"application/zip":                                                   "fas fa-file-archive",
		"text/plain":                                                        "fas fa-file-alt",
		"application/octet-stream":                                          "fas fa-file",
	}
	for mt, want := range cases {
		assert.Equal(t, want, Attachment{MimeType: mt}.Icon(), mt)
	}
	assert.True(t, Attachment{MimeType: "image/jpeg"}.IsImage())
	assert.False(t, Attachment{MimeType: "text/plain"}.IsImage())
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "0 Bytes", FormatFileSize(0))
	assert.Equal(t, "512 Bytes", FormatFileSize(512))
	assert.Equal(t, "1 KB", FormatFileSize(1024))
	assert.Equal(t, "1.5 KB", FormatFileSize(1536))
	assert.Equal(t, "2 MB", FormatFileSize(2*1024*1024))
}
