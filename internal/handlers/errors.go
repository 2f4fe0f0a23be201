package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"fontbox/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Errors     []string `json:"errors"`
}

func respondError(c *fiber.Ctx, status int, messages ...string) error {
	if len(messages) == 0 {
		messages = []string{"Internal server error"}
	}
	return c.Status(status).JSON(ErrorResponse{
		StatusCode: status,
		Message:    messages[0],
		Errors:     messages,
	})
}

// handleServiceError maps a service error to its HTTP status. Unclassified
// errors become a bare 500 so internals never leak.
func handleServiceError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		logger.Error("Unhandled error", zap.String("path", c.Path()), zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError)
	}

	var status int
	switch svcErr.Kind {
	case services.KindValidation:
		status = fiber.StatusBadRequest
	case services.KindNotFound:
		status = fiber.StatusNotFound
	case services.KindConflict:
		status = fiber.StatusConflict
	case services.KindTransient:
		status = fiber.StatusServiceUnavailable
		logger.Warn("Transient failure", zap.String("path", c.Path()), zap.Error(err))
	default:
		status = fiber.StatusInternalServerError
	}
	return respondError(c, status, svcErr.Messages...)
}

// ErrorHandler renders errors returned by fiber itself (unknown routes,
// oversized bodies, panics caught by recover) in the same shape. An upload
// cut off by the body limit gets the same validation error as any other
// oversized file.
func ErrorHandler(logger *zap.Logger, maxFileSize int64) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			if fiberErr.Code == fiber.StatusRequestEntityTooLarge && c.Path() == uploadPath {
				return handleServiceError(c, logger, services.FileTooLargeError(maxFileSize))
			}
			return respondError(c, fiberErr.Code, fiberErr.Message)
		}
		logger.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError)
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

func validationMessages(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{err.Error()}
	}
	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag()))
	}
	return messages
}

// validID rejects path ids that are not UUIDs before they reach the store.
func validID(c *fiber.Ctx, v *validator.Validate) (string, bool) {
	id := c.Params("id")
	if err := v.Var(id, "required,uuid4"); err != nil {
		return id, false
	}
	return id, true
}
