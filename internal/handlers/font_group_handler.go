package handlers

import (
	"fmt"

	"fontbox/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CreateFontGroupRequest is the body of POST /font-groups.
type CreateFontGroupRequest struct {
	Title string   `json:"title" validate:"required"`
	Fonts []string `json:"fonts" validate:"required,dive,uuid4"`
}

// UpdateFontGroupRequest is the body of PATCH /font-groups/:id. Absent
// fields are left unchanged; an explicit empty fonts list is rejected by
// the service.
type UpdateFontGroupRequest struct {
	Title *string  `json:"title"`
	Fonts []string `json:"fonts" validate:"omitempty,dive,uuid4"`
}

// FontGroupHandler handles HTTP requests for font groups.
type FontGroupHandler struct {
	service  *services.FontGroupService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewFontGroupHandler creates a new FontGroupHandler.
func NewFontGroupHandler(service *services.FontGroupService, logger *zap.Logger) *FontGroupHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FontGroupHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger,
	}
}

// RegisterRoutes registers the font group routes with the Fiber app.
func (h *FontGroupHandler) RegisterRoutes(router fiber.Router) {
	groupRoutes := router.Group("/font-groups")
	groupRoutes.Post("/", h.HandleCreateFontGroup)
	groupRoutes.Get("/", h.HandleGetFontGroups)
	groupRoutes.Get("/:id", h.HandleGetFontGroupByID)
	groupRoutes.Patch("/:id", h.HandleUpdateFontGroup)
	groupRoutes.Delete("/:id", h.HandleDeleteFontGroup)
}

// HandleCreateFontGroup creates a group from a title and at least two font ids.
func (h *FontGroupHandler) HandleCreateFontGroup(c *fiber.Ctx) error {
	var req CreateFontGroupRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("Error parsing create font group body", zap.Error(err))
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return respondError(c, fiber.StatusBadRequest, validationMessages(err)...)
	}

	group, err := h.service.CreateGroup(c.UserContext(), req.Title, req.Fonts)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(group)
}

// HandleGetFontGroups lists all groups with their fonts.
func (h *FontGroupHandler) HandleGetFontGroups(c *fiber.Ctx) error {
	groups, err := h.service.ListGroups(c.UserContext())
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}
	return c.JSON(groups)
}

// HandleGetFontGroupByID retrieves a single group.
func (h *FontGroupHandler) HandleGetFontGroupByID(c *fiber.Ctx) error {
	id, ok := validID(c, h.validate)
	if !ok {
		return respondError(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid font group ID '%s'", id))
	}

	group, err := h.service.GetGroup(c.UserContext(), id)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}
	return c.JSON(group)
}

// HandleUpdateFontGroup renames a group and/or replaces its fonts.
func (h *FontGroupHandler) HandleUpdateFontGroup(c *fiber.Ctx) error {
	id, ok := validID(c, h.validate)
	if !ok {
		return respondError(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid font group ID '%s'", id))
	}

	var req UpdateFontGroupRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("Error parsing update font group body", zap.Error(err))
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return respondError(c, fiber.StatusBadRequest, validationMessages(err)...)
	}

	group, err := h.service.UpdateGroup(c.UserContext(), id, services.UpdateGroupInput{
		Title:   req.Title,
		FontIDs: req.Fonts,
	})
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}
	return c.JSON(group)
}

// HandleDeleteFontGroup deletes a group and returns its last-known data.
func (h *FontGroupHandler) HandleDeleteFontGroup(c *fiber.Ctx) error {
	id, ok := validID(c, h.validate)
	if !ok {
		return respondError(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid font group ID '%s'", id))
	}

	group, err := h.service.DeleteGroup(c.UserContext(), id)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}
	return c.JSON(group)
}
