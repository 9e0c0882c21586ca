package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/models"
)

// StatusError is implemented by errors that carry their own HTTP mapping
type StatusError interface {
	error
	HTTPStatus() int
	ErrorCode() string
}

// ErrorHandler returns a custom error handler middleware
func ErrorHandler(logger *logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		errCode := "INTERNAL"
		message := "Internal Server Error"

		var fe *fiber.Error
		var se StatusError
		switch {
		case errors.As(err, &fe):
			code = fe.Code
			errCode = "ERROR"
			message = fe.Message
		case errors.As(err, &se):
			code = se.HTTPStatus()
			errCode = se.ErrorCode()
			message = se.Error()
		}

		fields := []interface{}{
			"path", c.Path(),
			"method", c.Method(),
			"status", code,
			"error", err,
		}
		if code >= fiber.StatusInternalServerError {
			logger.Error("Request error", fields...)
		} else {
			logger.Warn("Request error", fields...)
		}

		return c.Status(code).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    errCode,
				Message: message,
				Path:    c.Path(),
			},
		})
	}
}
