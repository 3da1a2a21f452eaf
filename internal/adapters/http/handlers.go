package http

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/kanban/internal/application/services"
	"github.com/taskmaster/kanban/internal/domain/entities"
	"github.com/taskmaster/kanban/internal/infrastructure/logger"
	"github.com/taskmaster/kanban/internal/ports"
)

// TaskHandler serves the board, task CRUD and attachment endpoints
type TaskHandler struct {
	taskService *services.TaskService
	logger      *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService *services.TaskService, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger.WithComponent("task_handler"),
	}
}

// StatusRequest moves a task to another column
type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// Register mounts the task routes on g
func (h *TaskHandler) Register(g *echo.Group) {
	g.GET("/board", h.GetBoard)
	g.GET("/filters", h.GetFilterOptions)

	tasks := g.Group("/tasks")
	tasks.GET("", h.ListTasks)
	tasks.POST("", h.CreateTask)
	tasks.GET("/:id", h.GetTask)
	tasks.PUT("/:id", h.UpdateTask)
	tasks.PATCH("/:id/status", h.UpdateTaskStatus)
	tasks.DELETE("/:id", h.DeleteTask)
	tasks.GET("/:id/files/:index", h.DownloadAttachment)
	tasks.DELETE("/:id/files/:index", h.RemoveAttachment)
}

// GetBoard returns the filtered board grouped into status columns
func (h *TaskHandler) GetBoard(c echo.Context) error {
	q, err := bindQuery(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.taskService.Board(c.Request().Context(), q))
}

// GetFilterOptions returns the author and month values present on the board
func (h *TaskHandler) GetFilterOptions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.taskService.FilterOptions(c.Request().Context()))
}

// ListTasks returns the active tasks matching the query, in insertion order
func (h *TaskHandler) ListTasks(c echo.Context) error {
	q, err := bindQuery(c)
	if err != nil {
		return err
	}
	tasks := services.FilterTasks(h.taskService.ListTasks(c.Request().Context()), q)
	return c.JSON(http.StatusOK, tasks)
}

// CreateTask accepts JSON or a multipart form with "files" uploads
func (h *TaskHandler) CreateTask(c echo.Context) error {
	var req ports.CreateTaskRequest

	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid multipart form")
		}
		req.Title = formValue(form, "title")
		req.Description = formValue(form, "description")
		req.Author = formValue(form, "author")
		req.Priority = entities.Priority(strings.ToLower(strings.TrimSpace(formValue(form, "priority"))))

		files, err := h.stageUploads(c, form.File["files"])
		if err != nil {
			return err
		}
		req.Files = files
	} else if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	task, err := h.taskService.CreateTask(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, "Create task failed", err)
	}
	return c.JSON(http.StatusCreated, task)
}

// GetTask returns one active task
func (h *TaskHandler) GetTask(c echo.Context) error {
	task, err := h.taskService.GetTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "Get task failed", err)
	}
	return c.JSON(http.StatusOK, task)
}

// UpdateTask edits a task; uploaded files are appended to its attachments
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	var req ports.UpdateTaskRequest

	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid multipart form")
		}
		req.Title = optionalFormValue(form, "title")
		req.Description = optionalFormValue(form, "description")
		req.Author = optionalFormValue(form, "author")
		if p := optionalFormValue(form, "priority"); p != nil {
			priority, err := entities.ParsePriority(*p)
			if err != nil {
				return h.fail(c, "Update task failed", err)
			}
			req.Priority = &priority
		}

		files, err := h.stageUploads(c, form.File["files"])
		if err != nil {
			return err
		}
		req.Files = files
	} else if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	task, err := h.taskService.UpdateTask(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return h.fail(c, "Update task failed", err)
	}
	return c.JSON(http.StatusOK, task)
}

// UpdateTaskStatus moves a task between columns
func (h *TaskHandler) UpdateTaskStatus(c echo.Context) error {
	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return h.fail(c, "Update status failed", err)
	}

	status, err := entities.ParseStatus(req.Status)
	if err != nil {
		return h.fail(c, "Update status failed", err)
	}

	task, err := h.taskService.UpdateTaskStatus(c.Request().Context(), c.Param("id"), status)
	if err != nil {
		return h.fail(c, "Update status failed", err)
	}
	return c.JSON(http.StatusOK, task)
}

// DeleteTask removes a task; deleting an unknown id succeeds
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	if err := h.taskService.DeleteTask(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, "Delete task failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RemoveAttachment drops one attachment by position
func (h *TaskHandler) RemoveAttachment(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid attachment index")
	}

	task, err := h.taskService.RemoveAttachment(c.Request().Context(), c.Param("id"), index)
	if err != nil {
		return h.fail(c, "Remove attachment failed", err)
	}
	return c.JSON(http.StatusOK, task)
}

// DownloadAttachment streams the decoded bytes of one attachment
func (h *TaskHandler) DownloadAttachment(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid attachment index")
	}

	task, err := h.taskService.GetTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "Download attachment failed", err)
	}
	if index < 0 || index >= len(task.Files) {
		return h.fail(c, "Download attachment failed", &entities.IndexError{Index: index, Len: len(task.Files)})
	}

	att := task.Files[index]
	mt, content, err := services.DecodeDataURL(att.Data)
	if err != nil {
		return h.fail(c, "Download attachment failed", err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": att.Name}))
	return c.Blob(http.StatusOK, mt, content)
}

// stageUploads decodes uploaded files as one batch, skipping repeats.
func (h *TaskHandler) stageUploads(c echo.Context, headers []*multipart.FileHeader) ([]entities.Attachment, error) {
	ctx := c.Request().Context()
	batch := services.NewBatch(ctx)
	for _, fh := range headers {
		fh := fh
		if !batch.Add(services.FileSource{
			Name:     fh.Filename,
			Size:     fh.Size,
			MimeType: fh.Header.Get(echo.HeaderContentType),
			Open:     func() (io.ReadCloser, error) {
				f, err := fh.Open()
				if err != nil {
					return nil, err
				}
				return f, nil
			},
		}) {
			h.logger.Debugw("Skipped duplicate upload", "name", fh.Filename, "size", fh.Size)
		}
	}

	files, err := batch.Wait(ctx)
	if err != nil {
		return nil, h.fail(c, "Attachment upload failed", err)
	}
	return files, nil
}

// fail logs err and converts it into an HTTP error with the matching status.
func (h *TaskHandler) fail(c echo.Context, msg string, err error) error {
	return failWith(h.logger, c, msg, err)
}

// failWith logs a failed request, at Error for server faults and Debug for
// client mistakes, and converts err into the JSON error response.
func failWith(log *logger.Logger, c echo.Context, msg string, err error) error {
	code := StatusFor(err)
	if code >= http.StatusInternalServerError {
		log.Errorw(msg, "error", err, "path", c.Request().URL.Path)
	} else {
		log.Debugw(msg, "error", err, "path", c.Request().URL.Path)
	}
	return newHTTPError(code, err)
}

// StatusFor maps domain errors onto HTTP status codes
func StatusFor(err error) int {
	switch {
	case errors.Is(err, entities.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrValidation),
		errors.Is(err, entities.ErrAttachmentIndex),
		errors.Is(err, entities.ErrDecodeFailed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func newHTTPError(code int, err error) *echo.HTTPError {
	resp := ports.ErrorResponse{Message: err.Error()}
	if code >= http.StatusInternalServerError {
		resp.Message = http.StatusText(code)
	}

	var verr *entities.ValidationError
	if errors.As(err, &verr) {
		resp.Message = "validation failed"
		resp.Details = map[string]interface{}{"field": verr.Field, "reason": verr.Reason}
	}
	var ierr *entities.IndexError
	if errors.As(err, &ierr) {
		resp.Details = map[string]interface{}{"index": ierr.Index, "len": ierr.Len}
	}

	return echo.NewHTTPError(code, resp).SetInternal(err)
}

// bindQuery reads search, month and author. month may be a label
// ("June 2026") or a key ("2026-06").
func bindQuery(c echo.Context) (ports.TaskQuery, error) {
	var q ports.TaskQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return q, echo.NewHTTPError(http.StatusBadRequest, "Invalid query parameters")
	}
	if label, ok := services.MonthLabelForKey(q.Month); ok {
		q.Month = label
	}
	return q, nil
}

func pathParam(c echo.Context, name string) string {
	v := c.Param(name)
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}

func isMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func optionalFormValue(form *multipart.Form, key string) *string {
	v, ok := form.Value[key]
	if !ok || len(v) == 0 {
		return nil
	}
	return &v[0]
}
