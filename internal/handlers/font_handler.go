package handlers

import (
	"fmt"
	"path/filepath"

	"fontbox/internal/models"
	"fontbox/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const uploadPath = "/fonts/upload"

// FontHandler handles HTTP requests for fonts.
type FontHandler struct {
	service  *services.FontService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewFontHandler creates a new FontHandler.
func NewFontHandler(service *services.FontService, logger *zap.Logger) *FontHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FontHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger,
	}
}

// RegisterRoutes registers the font routes with the Fiber app.
func (h *FontHandler) RegisterRoutes(router fiber.Router) {
	router.Post(uploadPath, h.HandleUploadFont)

	fontRoutes := router.Group("/fonts")
	fontRoutes.Get("/", h.HandleGetFonts)
	fontRoutes.Get("/:id/file", h.HandleGetFontFile)
	fontRoutes.Delete("/:id", h.HandleDeleteFont)

	// Public font URLs point here whatever the storage driver.
	router.Get("/uploads/:filename", h.HandleGetUpload)
}

// UploadResponse is the stored font plus whether it replaced an older one.
type UploadResponse struct {
	*models.Font
	WasReplaced bool `json:"wasReplaced"`
}

// HandleUploadFont stores the multipart "file" field. It answers 201 for a
// new font and 200 when an existing font with the same name was replaced.
func (h *FontHandler) HandleUploadFont(c *fiber.Ctx) error {
	var upload *services.FontUpload

	header, err := c.FormFile("file")
	if err == nil {
		file, err := header.Open()
		if err != nil {
			h.logger.Error("Error opening uploaded file", zap.String("filename", header.Filename), zap.Error(err))
			return respondError(c, fiber.StatusBadRequest, "Could not read uploaded file")
		}
		defer file.Close()
		upload = &services.FontUpload{
			OriginalName: header.Filename,
			Content:      file,
			Size:         header.Size,
		}
	}

	result, err := h.service.UploadFont(c.UserContext(), upload)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	status := fiber.StatusCreated
	if result.Replaced {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(UploadResponse{Font: result.Font, WasReplaced: result.Replaced})
}

// HandleGetFonts lists all fonts, newest first.
func (h *FontHandler) HandleGetFonts(c *fiber.Ctx) error {
	fonts, err := h.service.ListFonts(c.UserContext())
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}
	return c.JSON(fonts)
}

// HandleGetFontFile streams the stored font file.
func (h *FontHandler) HandleGetFontFile(c *fiber.Ctx) error {
	id, ok := validID(c, h.validate)
	if !ok {
		return respondError(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid font ID '%s'", id))
	}

	font, content, err := h.service.OpenFontFile(c.UserContext(), id)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	c.Set(fiber.HeaderContentType, font.Mimetype)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="%s"`, font.Filename))
	// fiber closes content once the body is written.
	return c.SendStream(content, int(font.Size))
}

// HandleDeleteFont deletes a font and returns its last-known record.
func (h *FontHandler) HandleDeleteFont(c *fiber.Ctx) error {
	id, ok := validID(c, h.validate)
	if !ok {
		return respondError(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid font ID '%s'", id))
	}

	font, err := h.service.DeleteFont(c.UserContext(), id)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}
	return c.JSON(font)
}

// HandleGetUpload serves a stored font file by the filename in its public URL.
func (h *FontHandler) HandleGetUpload(c *fiber.Ctx) error {
	filename := c.Params("filename")
	content, err := h.service.OpenStoredFile(c.UserContext(), filename)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	c.Set(fiber.HeaderContentType, models.MimetypeForExtension(filepath.Ext(filename)))
	c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	return c.SendStream(content)
}
