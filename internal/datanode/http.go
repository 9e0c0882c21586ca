package datanode

import (
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/soltixdb/chunkfs/internal/chunkstore"
	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/metrics"
	"github.com/soltixdb/chunkfs/internal/middleware"
	"github.com/soltixdb/chunkfs/internal/models"
	"github.com/soltixdb/chunkfs/internal/workerclient"
)

// HTTPConfig configures the worker HTTP app
type HTTPConfig struct {
	BodyLimit int
	Version   string
}

// NewHTTPApp builds the fiber app exposing the worker API
func NewHTTPApp(svc *Service, logger *logging.Logger, m *metrics.DataNodeMetrics, cfg HTTPConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "chunkfs datanode",
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	h := &httpHandler{svc: svc, version: cfg.Version}

	app.Use(recover.New())
	app.Use(logging.FiberMiddlewareWithConfig(logger, logging.DefaultMiddlewareConfig()))

	app.Get("/is_active", h.isActive)
	app.Get("/health", h.health)
	if m != nil {
		app.Get("/metrics", metrics.FiberHandler(m.Registry))
	}

	app.Post("/write_file/:data_id/:chunk_id", h.writeChunk)
	app.Get("/read_file/:data_id/:chunk_id", h.readChunk)
	app.Post("/delete_chunks/:data_id", h.deleteChunks)
	app.Post("/admin/status", h.setStatus)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{Code: "NOT_FOUND", Message: "Route not found", Path: c.Path()},
		})
	})
	return app
}

type httpHandler struct {
	svc     *Service
	version string
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{Code: "INVALID_REQUEST", Message: msg, Path: c.Path()},
	})
}

func (h *httpHandler) isActive(c *fiber.Ctx) error {
	if !h.svc.IsActive() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(workerclient.StatusResponse{
			UUID:   h.svc.NodeID(),
			Status: "inactive",
		})
	}
	return c.JSON(workerclient.StatusResponse{UUID: h.svc.NodeID(), Status: "active"})
}

func (h *httpHandler) health(c *fiber.Ctx) error {
	chunks, size, err := h.svc.Stats()
	status := "healthy"
	if err != nil {
		status = "degraded"
	}
	return c.JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   h.version,
		"node_id":   h.svc.NodeID(),
		"active":    h.svc.IsActive(),
		"chunks":    chunks,
		"bytes":     size,
	})
}

func chunkParams(c *fiber.Ctx) (string, int, bool) {
	fileID := c.Params("data_id")
	idx, err := strconv.Atoi(c.Params("chunk_id"))
	if fileID == "" || err != nil || idx < 1 {
		return "", 0, false
	}
	return fileID, idx, true
}

// writeChunk accepts a raw body or a multipart "file" field
func (h *httpHandler) writeChunk(c *fiber.Ctx) error {
	fileID, idx, ok := chunkParams(c)
	if !ok {
		return badRequest(c, "data_id and a positive chunk_id are required")
	}

	data := c.Body()
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return badRequest(c, "cannot open uploaded chunk")
		}
		defer func() { _ = f.Close() }()
		if data, err = io.ReadAll(f); err != nil {
			return badRequest(c, "cannot read uploaded chunk")
		}
	}

	if err := h.svc.PutChunk(fileID, idx, data); err != nil {
		if errors.Is(err, chunkstore.ErrInvalidKey) {
			return badRequest(c, err.Error())
		}
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(models.MessageResponse{Message: "File written successfully"})
}

func (h *httpHandler) readChunk(c *fiber.Ctx) error {
	fileID, idx, ok := chunkParams(c)
	if !ok {
		return badRequest(c, "data_id and a positive chunk_id are required")
	}
	data, err := h.svc.GetChunk(fileID, idx)
	switch {
	case errors.Is(err, chunkstore.ErrChunkNotFound):
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{Code: "NOT_FOUND", Message: "File not found", Path: c.Path()},
		})
	case errors.Is(err, chunkstore.ErrInvalidKey):
		return badRequest(c, err.Error())
	case err != nil:
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	return c.Send(data)
}

func (h *httpHandler) deleteChunks(c *fiber.Ctx) error {
	n, err := h.svc.DeleteChunks(c.Params("data_id"))
	if err != nil {
		if errors.Is(err, chunkstore.ErrInvalidKey) {
			return badRequest(c, err.Error())
		}
		return err
	}
	return c.JSON(fiber.Map{"message": "Chunks deleted successfully", "deleted": n})
}

func (h *httpHandler) setStatus(c *fiber.Ctx) error {
	var req struct {
		Active *bool `json:"active"`
	}
	if err := c.BodyParser(&req); err != nil || req.Active == nil {
		return badRequest(c, "body must be {\"active\": bool}")
	}
	h.svc.SetActive(*req.Active)
	return c.JSON(fiber.Map{"active": h.svc.IsActive()})
}
