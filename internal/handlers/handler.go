package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/models"
	"github.com/soltixdb/chunkfs/internal/services"
)

// Handler contains all HTTP handlers of the namenode
type Handler struct {
	logger    *logging.Logger
	files     *services.FileService
	namespace *services.NamespaceService
	version   string
}

// New creates a new handler instance
func New(logger *logging.Logger, files *services.FileService, namespace *services.NamespaceService, version string) *Handler {
	return &Handler{
		logger:    logger,
		files:     files,
		namespace: namespace,
		version:   version,
	}
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    services.CodeInvalidRequest,
			Message: message,
			Path:    c.Path(),
		},
	})
}

// fail writes a classified service error. Anything else goes to the app error handler.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	var svcErr *services.ServiceError
	if !errors.As(err, &svcErr) {
		return err
	}

	details := map[string]interface{}{"classification": string(svcErr.Kind)}
	for k, v := range svcErr.Details {
		details[k] = v
	}
	status := svcErr.HTTPStatus()
	if status >= fiber.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.Path(), "code", svcErr.Code, "error", errors.Unwrap(svcErr))
	}
	return c.Status(status).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    svcErr.Code,
			Message: svcErr.Message,
			Path:    c.Path(),
			Details: details,
		},
	})
}

// form returns a form value, falling back to the query string
func form(c *fiber.Ctx, key string) string {
	if v := c.FormValue(key); v != "" {
		return v
	}
	return c.Query(key)
}
