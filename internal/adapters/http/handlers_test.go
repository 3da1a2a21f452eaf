package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/taskmaster/kanban/internal/adapters/repository"
	"github.com/taskmaster/kanban/internal/application/services"
	"github.com/taskmaster/kanban/internal/domain/entities"
	"github.com/taskmaster/kanban/internal/infrastructure/logger"
	"github.com/taskmaster/kanban/internal/ports"
)

type testValidator struct {
	v *validator.Validate
}

func (tv testValidator) Validate(i interface{}) error {
	return services.ValidateStruct(tv.v, i)
}

type testServer struct {
	e     *echo.Echo
	tasks *services.TaskService
	clock *services.FakeClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := logger.NewNop()
	repo := repository.NewTaskRepository(repository.NewMemoryStore(), "active", "archive", log)
	clock := services.NewFakeClock(time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC))

	tasks, err := services.NewTaskService(context.Background(), repo, clock, log)
	require.NoError(t, err)
	archive := services.NewArchiveService(tasks, repo, clock, services.DefaultArchiveMonths, log)

	e := echo.New()
	e.Validator = testValidator{v: services.NewValidator()}
	g := e.Group("/api/v1")
	NewTaskHandler(tasks, log).Register(g)
	NewArchiveHandler(archive, log).Register(g)

	return &testServer{e: e, tasks: tasks, clock: clock}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createTask(t *testing.T, title, author string) entities.Task {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/tasks", map[string]string{
		"title": title, "author": author, "priority": "high",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var task entities.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	return task
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestCreateTask_JSON(t *testing.T) {
	s := newTestServer(t)

	task := s.createTask(t, "Fix bug", "Alice")
	assert.Equal(t, entities.TaskStatusNew, task.Status)
	assert.Equal(t, entities.PriorityHigh, task.Priority)

	rec := s.do(t, http.MethodGet, "/api/v1/board", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decode[ports.BoardView](t, rec)
	require.Len(t, board.Columns, 4)
	assert.Equal(t, 1, board.Columns[0].Count)
}

func TestCreateTask_Invalid(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/tasks", map[string]string{"title": "", "author": "Alice", "priority": "low"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[ports.ErrorResponse](t, rec)
	assert.Equal(t, "validation failed", resp.Message)
	assert.Equal(t, "title", resp.Details["field"])
}

func TestUpdateTaskStatus(t *testing.T) {
	s := newTestServer(t)
	task := s.createTask(t, "Fix bug", "Alice")

	rec := s.do(t, http.MethodPatch, "/api/v1/tasks/"+task.ID+"/status", StatusRequest{Status: "ongoing"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entities.TaskStatusOngoing, decode[entities.Task](t, rec).Status)

	rec = s.do(t, http.MethodPatch, "/api/v1/tasks/"+task.ID+"/status", StatusRequest{Status: "blocked"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/v1/tasks/"+task.ID+"/status", StatusRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/v1/tasks/missing/status", StatusRequest{Status: "paused"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateTask_JSON(t *testing.T) {
	s := newTestServer(t)
	task := s.createTask(t, "Fix bug", "Alice")

	rec := s.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID, map[string]interface{}{"description": "steps to reproduce"})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[entities.Task](t, rec)
	assert.Equal(t, "Fix bug", updated.Title)
	assert.Equal(t, "steps to reproduce", updated.Description)

	rec = s.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID, map[string]interface{}{"priority": "urgent"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte, order []string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, name := range order {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestCreateTask_MultipartWithAttachments(t *testing.T) {
	s := newTestServer(t)

	files := map[string][]byte{"notes.txt": []byte("hello"), "image.png": []byte("\x89PNG\r\n\x1a\n")}
	body, contentType := multipartBody(t,
		map[string]string{"title": "Upload", "author": "Bob", "priority": "Medium"},
		files, []string{"notes.txt", "image.png", "notes.txt"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	task := decode[entities.Task](t, rec)
	assert.Equal(t, entities.PriorityMedium, task.Priority)
	require.Len(t, task.Files, 2, "the repeated notes.txt is skipped")
	assert.Equal(t, "notes.txt", task.Files[0].Name)
	assert.Equal(t, "text/plain", task.Files[0].MimeType)
	assert.Equal(t, "image/png", task.Files[1].MimeType)

	rec = s.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID+"/files/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), `filename=notes.txt`)

	rec = s.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID+"/files/7", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveAttachment(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/tasks", map[string]interface{}{
		"title": "A", "author": "Alice", "priority": "low",
		"files": []entities.Attachment{
			{Name: "a", Size: 1, MimeType: "text/plain", Data: "data:text/plain;base64,YQ=="},
			{Name: "b", Size: 1, MimeType: "text/plain", Data: "data:text/plain;base64,Yg=="},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	task := decode[entities.Task](t, rec)

	rec = s.do(t, http.MethodDelete, "/api/v1/tasks/"+task.ID+"/files/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[entities.Task](t, rec)
	require.Len(t, updated.Files, 1)
	assert.Equal(t, "b", updated.Files[0].Name)

	rec = s.do(t, http.MethodDelete, "/api/v1/tasks/"+task.ID+"/files/3", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/tasks/"+task.ID+"/files/x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteTask(t *testing.T) {
	s := newTestServer(t)
	task := s.createTask(t, "A", "Alice")

	rec := s.do(t, http.MethodDelete, "/api/v1/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBoardFilters(t *testing.T) {
	s := newTestServer(t)
	s.createTask(t, "Fix bug", "Alice")
	s.createTask(t, "Docs", "Bob")

	rec := s.do(t, http.MethodGet, "/api/v1/tasks?author=Alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tasks := decode[[]entities.Task](t, rec)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Alice", tasks[0].Author)

	rec = s.do(t, http.MethodGet, "/api/v1/board?month=2026-06&search=DOC", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decode[ports.BoardView](t, rec)
	assert.Equal(t, "June 2026", board.Query.Month)
	assert.Equal(t, 1, board.Counts()[entities.TaskStatusNew])

	rec = s.do(t, http.MethodGet, "/api/v1/filters", nil)
	opts := decode[ports.FilterOptions](t, rec)
	assert.Equal(t, []string{"Alice", "Bob"}, opts.Authors)
}

func TestArchiveAndAuthorViews(t *testing.T) {
	s := newTestServer(t)

	s.clock.Set(time.Date(2025, time.December, 10, 0, 0, 0, 0, time.UTC))
	old := s.createTask(t, "Old", "Ana Maria")
	s.clock.Set(time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC))
	s.createTask(t, "New", "Ana Maria")

	rec := s.do(t, http.MethodPost, "/api/v1/archive/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[ports.ArchiveResult](t, rec)
	assert.Equal(t, []string{old.ID}, result.Archived)

	rec = s.do(t, http.MethodGet, "/api/v1/archive/tasks", nil)
	assert.Len(t, decode[[]entities.Task](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/api/v1/archive?search=old", nil)
	view := decode[ports.HistoryView](t, rec)
	assert.Equal(t, 1, view.Total)
	assert.Equal(t, []string{"December 2025", "June 2026"}, view.Options.Months)

	rec = s.do(t, http.MethodGet, "/api/v1/authors/"+strings.ReplaceAll("Ana Maria", " ", "%20"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	authorView := decode[ports.HistoryView](t, rec)
	assert.Equal(t, 2, authorView.Total)
	require.Len(t, authorView.Groups, 2)
	assert.Equal(t, "2026-06", authorView.Groups[0].Key)

	rec = s.do(t, http.MethodGet, "/api/v1/authors", nil)
	assert.Equal(t, []string{"Ana Maria"}, decode[[]string](t, rec))
}

func TestArchiveHandler_FailLogLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := NewArchiveHandler(nil, &logger.Logger{SugaredLogger: zap.New(core).Sugar()})
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/api/archive", nil), httptest.NewRecorder())

	err := h.fail(c, "Failed to list archive", fmt.Errorf("lookup: %w", entities.ErrTaskNotFound))
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusNotFound, he.Code)

	err = h.fail(c, "Failed to archive", errors.New("disk full"))
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusInternalServerError, he.Code)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "archive_handler", entries[0].ContextMap()["component"])
	assert.Equal(t, "/api/archive", entries[1].ContextMap()["path"])
}
