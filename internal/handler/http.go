package handler

import (
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/idaholeg/mediaportal/internal/catalog"
	"github.com/idaholeg/mediaportal/internal/domain"
	log "github.com/sirupsen/logrus"
)

// HTTPHandler is the thin boundary over the catalog service. It only parses,
// dispatches and translates errors; every invariant lives below it.
type HTTPHandler struct {
	catalog *catalog.Service
	legacy  *catalog.LegacyService
	debug   bool
}

func NewHTTPHandler(svc *catalog.Service, legacy *catalog.LegacyService, debug bool) *HTTPHandler {
	return &HTTPHandler{catalog: svc, legacy: legacy, debug: debug}
}

// RegisterRoutes attaches the catalog API to the fiber app.
func (h *HTTPHandler) RegisterRoutes(app *fiber.App) {
	app.Use(h.requestID)

	app.Get("/health", h.handleHealth)

	api := app.Group("/api")
	api.Get("/media", h.handleListMedia)
	api.Post("/media", h.handleUpsertMedia)
	api.Patch("/media/status", h.handleUpdateStatus)
	api.Get("/media/stats", h.handleStatistics)
	api.Get("/media/options", h.handleFilterOptions)
	api.Get("/media/unprocessed", h.handleUnprocessed)
	api.Get("/media/pending-upload", h.handlePendingUpload)
	api.Get("/media/by-path", h.handleFindByPath)

	// Document-shaped listing for callers still on the older API.
	api.Get("/legacy/media", h.handleLegacyList)
}

func (h *HTTPHandler) requestID(c *fiber.Ctx) error {
	id := uuid.NewString()
	c.Locals("request_id", id)
	c.Set("X-Request-ID", id)
	return c.Next()
}

func (h *HTTPHandler) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *HTTPHandler) handleListMedia(c *fiber.Ctx) error {
	filters := domain.Filters{
		Year:       c.Query("year"),
		Category:   c.Query("category"),
		SearchTerm: c.Query("search"),
		MediaType:  domain.MediaType(c.Query("media_type")),
	}
	items := h.catalog.ListAll(c.UserContext(), filters)
	return c.JSON(fiber.Map{"items": items, "count": len(items)})
}

func (h *HTTPHandler) handleUpsertMedia(c *fiber.Ctx) error {
	var params domain.UpsertParams
	if err := c.BodyParser(&params); err != nil {
		return h.writeError(c, domain.NewAPIError("invalid request body", http.StatusBadRequest))
	}

	item, err := h.catalog.Upsert(c.UserContext(), params)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(item)
}

type statusRequest struct {
	FilePath string `json:"file_path"`
	domain.StatusUpdate
}

func (h *HTTPHandler) handleUpdateStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return h.writeError(c, domain.NewAPIError("invalid request body", http.StatusBadRequest))
	}
	if req.FilePath == "" {
		return h.writeError(c, domain.NewAPIError("file_path is required", http.StatusBadRequest))
	}

	item, err := h.catalog.UpdateStatus(c.UserContext(), req.FilePath, req.StatusUpdate)
	if err != nil {
		return h.writeError(c, err)
	}
	if item == nil {
		return h.writeError(c, domain.NewAPIError("media item not found", http.StatusNotFound))
	}
	return c.JSON(item)
}

func (h *HTTPHandler) handleFindByPath(c *fiber.Ctx) error {
	filePath := c.Query("file_path")
	if filePath == "" {
		return h.writeError(c, domain.NewAPIError("file_path is required", http.StatusBadRequest))
	}

	item, err := h.catalog.FindByPath(c.UserContext(), filePath)
	if err != nil {
		return h.writeError(c, err)
	}
	if item == nil {
		return h.writeError(c, domain.NewAPIError("media item not found", http.StatusNotFound))
	}
	return c.JSON(item)
}

func (h *HTTPHandler) handleStatistics(c *fiber.Ctx) error {
	return c.JSON(h.catalog.Statistics(c.UserContext()))
}

func (h *HTTPHandler) handleFilterOptions(c *fiber.Ctx) error {
	return c.JSON(h.catalog.FilterOptions(c.UserContext()))
}

func (h *HTTPHandler) handleUnprocessed(c *fiber.Ctx) error {
	items := h.catalog.ListUnprocessed(c.UserContext())
	return c.JSON(fiber.Map{"items": items, "count": len(items)})
}

func (h *HTTPHandler) handlePendingUpload(c *fiber.Ctx) error {
	items := h.catalog.ListProcessedNotUploaded(c.UserContext())
	return c.JSON(fiber.Map{"items": items, "count": len(items)})
}

func (h *HTTPHandler) handleLegacyList(c *fiber.Ctx) error {
	items := h.legacy.GetAllItems(c.UserContext())
	return c.JSON(fiber.Map{"items": items, "count": len(items)})
}

// writeError renders an error per the boundary translation contract:
// {error, message, details, status_code?}, with a stack trace only in debug.
func (h *HTTPHandler) writeError(c *fiber.Ctx, err error) error {
	status := http.StatusInternalServerError
	body := fiber.Map{
		"error":   "InternalError",
		"message": err.Error(),
	}

	var portalErr *domain.Error
	if errors.As(err, &portalErr) {
		body["error"] = string(portalErr.Kind)
		body["message"] = portalErr.Message
		if len(portalErr.Details) > 0 {
			body["details"] = portalErr.Details
		}
		if portalErr.Kind == domain.KindAPI && portalErr.StatusCode != 0 {
			status = portalErr.StatusCode
			body["status_code"] = portalErr.StatusCode
		}
	}

	if h.debug {
		body["traceback"] = string(debug.Stack())
	}

	log.WithFields(log.Fields{
		"request_id": c.Locals("request_id"),
		"method":     c.Method(),
		"path":       c.Path(),
		"status":     status,
		"error":      err,
	}).Error("request failed")

	return c.Status(status).JSON(body)
}

// NewFiberApp builds the fiber application with the portal's read/write
// timeouts.
func NewFiberApp() *fiber.App {
	return fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
}
