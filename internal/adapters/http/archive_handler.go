package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/kanban/internal/application/services"
	"github.com/taskmaster/kanban/internal/infrastructure/logger"
)

// ArchiveHandler serves archival and the history views
type ArchiveHandler struct {
	archiveService *services.ArchiveService
	logger         *logger.Logger
}

// NewArchiveHandler creates a new archive handler
func NewArchiveHandler(archiveService *services.ArchiveService, logger *logger.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		archiveService: archiveService,
		logger:         logger.WithComponent("archive_handler"),
	}
}

// Register mounts the archive and author routes on g
func (h *ArchiveHandler) Register(g *echo.Group) {
	archive := g.Group("/archive")
	archive.GET("", h.GetArchiveView)
	archive.POST("/run", h.RunArchive)
	archive.GET("/tasks", h.ListArchived)

	authors := g.Group("/authors")
	authors.GET("", h.ListAuthors)
	authors.GET("/:author", h.GetAuthorView)
}

// RunArchive moves tasks older than the cutoff into the archive
func (h *ArchiveHandler) RunArchive(c echo.Context) error {
	result, err := h.archiveService.ArchiveOldTasks(c.Request().Context())
	if err != nil {
		return h.fail(c, "Archive run failed", err)
	}
	return c.JSON(http.StatusOK, result)
}

// ListArchived returns the raw archive
func (h *ArchiveHandler) ListArchived(c echo.Context) error {
	tasks, err := h.archiveService.ListArchived(c.Request().Context())
	if err != nil {
		return h.fail(c, "List archive failed", err)
	}
	return c.JSON(http.StatusOK, tasks)
}

// GetArchiveView filters active and archived tasks and groups them by month
func (h *ArchiveHandler) GetArchiveView(c echo.Context) error {
	q, err := bindQuery(c)
	if err != nil {
		return err
	}

	view, err := h.archiveService.ArchiveView(c.Request().Context(), q)
	if err != nil {
		return h.fail(c, "Archive view failed", err)
	}
	return c.JSON(http.StatusOK, view)
}

// ListAuthors returns every author, active or archived
func (h *ArchiveHandler) ListAuthors(c echo.Context) error {
	view, err := h.archiveService.AuthorView(c.Request().Context(), "")
	if err != nil {
		return h.fail(c, "List authors failed", err)
	}
	return c.JSON(http.StatusOK, view.Options.Authors)
}

// GetAuthorView lists one author's tasks grouped by month
func (h *ArchiveHandler) GetAuthorView(c echo.Context) error {
	view, err := h.archiveService.AuthorView(c.Request().Context(), pathParam(c, "author"))
	if err != nil {
		return h.fail(c, "Author view failed", err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *ArchiveHandler) fail(c echo.Context, msg string, err error) error {
	return failWith(h.logger, c, msg, err)
}
