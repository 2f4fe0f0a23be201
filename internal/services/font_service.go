package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"fontbox/internal/models"
	"fontbox/internal/repositories"
	"fontbox/internal/storage"

	"go.uber.org/zap"
)

const (
	DefaultMaxFileSize      int64 = 5 * 1024 * 1024 // 5 MiB
	DefaultOperationTimeout       = 10 * time.Second
	DefaultBaseURL                = "http://localhost:8080"
)

// Options configures the font and font group services.
type Options struct {
	BaseURL          string        // Public base URL used to build font URLs
	MaxFileSize      int64         // Upload size limit in bytes
	OperationTimeout time.Duration // Deadline applied to each store and storage call
}

func (o Options) withDefaults(logger *zap.Logger) Options {
	if o.BaseURL == "" {
		logger.Warn("BASE_URL is not configured, using fallback", zap.String("base_url", DefaultBaseURL))
		o.BaseURL = DefaultBaseURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.OperationTimeout <= 0 {
		o.OperationTimeout = DefaultOperationTimeout
	}
	return o
}

func (o Options) fontURL(filename string) string {
	return o.BaseURL + storage.PublicPath(filename)
}

// withDeadline runs fn under a context bounded by timeout.
func withDeadline(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

// FontUpload is an uploaded font file.
type FontUpload struct {
	OriginalName string
	Content      io.Reader
	Size         int64
}

// UploadResult reports the stored font and whether it replaced an existing
// font with the same name.
type UploadResult struct {
	Font     *models.Font
	Replaced bool
	Previous *models.Font // Set when Replaced
}

// FontService handles business logic related to fonts.
type FontService struct {
	repo    repositories.FontRepository
	storage storage.Backend
	events  EventPublisher
	logger  *zap.Logger
	opts    Options
}

// NewFontService creates a new FontService. events may be nil.
func NewFontService(repo repositories.FontRepository, backend storage.Backend, events EventPublisher, logger *zap.Logger, opts Options) *FontService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FontService{
		repo:    repo,
		storage: backend,
		events:  events,
		logger:  logger,
		opts:    opts.withDefaults(logger),
	}
}

// UploadFont validates and stores a font file. A font whose derived name
// already exists is replaced: the old file and record are removed before the
// new ones are written.
func (s *FontService) UploadFont(ctx context.Context, file *FontUpload) (*UploadResult, error) {
	if file == nil || file.Content == nil || file.Size <= 0 {
		return nil, validationError("No file uploaded or file is empty")
	}
	if file.Size > s.opts.MaxFileSize {
		return nil, FileTooLargeError(s.opts.MaxFileSize)
	}
	ext := strings.ToLower(filepath.Ext(file.OriginalName))
	if !models.IsAllowedFontExtension(ext) {
		return nil, validationError("Only .ttf and .otf files are allowed")
	}
	name := models.FontNameFromFilename(file.OriginalName)
	if strings.TrimSpace(name) == "" {
		return nil, validationError("Font name must not be empty")
	}

	var existing *models.Font
	err := withDeadline(ctx, s.opts.OperationTimeout, func(ctx context.Context) error {
		var err error
		existing, err = s.repo.GetByName(ctx, name)
		return err
	})
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, storeError(err, "Failed to look up existing font")
	}

	if existing != nil {
		s.logger.Info("Found existing font with the same name, replacing it",
			zap.String("name", name), zap.String("font_id", existing.ID))
		if err := s.retire(ctx, existing); err != nil {
			return nil, err
		}
	}

	var saved storage.SavedFile
	err = withDeadline(ctx, s.opts.OperationTimeout, func(ctx context.Context) error {
		var err error
		saved, err = s.storage.SaveFile(ctx, file.Content, file.Size, file.OriginalName)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to save font file", zap.String("name", name), zap.Error(err))
		return nil, storeError(err, "Failed to save font file")
	}

	font := &models.Font{
		Name:     name,
		Filename: saved.Filename,
		Path:     saved.Path,
		Size:     file.Size,
		Mimetype: models.MimetypeForExtension(ext),
	}
	err = withDeadline(ctx, s.opts.OperationTimeout, func(ctx context.Context) error {
		return s.repo.Create(ctx, font)
	})
	if err != nil {
		s.logger.Error("Failed to create font record", zap.String("name", name), zap.Error(err))
		s.discardFile(ctx, saved.Filename)
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, conflictError(err, fmt.Sprintf("A font named '%s' already exists", name))
		}
		return nil, storeError(err, "Failed to upload font")
	}

	font.URL = s.opts.fontURL(font.Filename)
	result := &UploadResult{Font: font}
	event := FontEvent{FontID: font.ID, Name: font.Name, Filename: font.Filename, OccurredAt: font.CreatedAt}
	routingKey := EventFontUploaded
	if existing != nil {
		result.Replaced = true
		result.Previous = existing
		event.PreviousFontID = existing.ID
		routingKey = EventFontReplaced
	}
	publishEvent(s.events, s.logger, routingKey, event)

	s.logger.Info("Font stored",
		zap.String("font_id", font.ID),
		zap.String("name", font.Name),
		zap.Bool("replaced", result.Replaced))
	return result, nil
}

// retire removes an existing font's file and then its record. Either failure
// aborts the replacement before the new font is written.
func (s *FontService) retire(ctx context.Context, existing *models.Font) error {
	replaceFailed := fmt.Sprintf("Failed to replace existing font with name '%s'", existing.Name)

	err := withDeadline(ctx, s.opts.OperationTimeout, func(ctx context.Context) error {
		return s.storage.DeleteFile(ctx, existing.Filename)
	})
	if err != nil {
		s.logger.Error("Failed to delete existing font file", zap.String("filename", existing.Filename), zap.Error(err))
		return conflictError(err, replaceFailed)
	}

	err = withDeadline(ctx, s.opts.OperationTimeout, func(ctx context.Context) error {
		return s.repo.Delete(ctx, existing.ID)
	})
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		s.logger.Error("Failed to delete existing font record", zap.String("font_id", existing.ID), zap.Error(err))
		return conflictError(err, replaceFailed)
	}
	return nil
}

// discardFile is the compensating delete for a file whose record was never
// written. It runs even if ctx was cancelled.
func (s *FontService) discardFile(ctx context.Context, filename string) {
	err := withDeadline(context.WithoutCancel(ctx), s.opts.OperationTimeout, func(ctx context.Context) error {
		return s.storage.DeleteFile(ctx, filename)
	})
	if err != nil {
		s.logger.Error("Failed to clean up orphaned font file", zap.String("filename", filename), zap.Error(err))
	}
}

// ListFonts returns all fonts, newest first, with their public URLs.
func (s *FontService) ListFonts(ctx context.Context) ([]models.Font, error) {
	var fonts []models.Font
	err := withDeadline(ctx, s.opts.OperationTimeout, func(ctx context.Context) error {
		var err error
		fonts, err = s.repo.GetAll(ctx)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to fetch fonts", zap.Error(err))
		return nil, storeError(err, "Failed to fetch fonts")
	}
	for i := range fonts {
		fonts[i].URL = s.opts.fontURL(fonts[i].Filename)
	}
	return fonts, nil
}

// GetFont returns a single font with its public URL.
func (s *FontService) GetFont(ctx context.Context, id string) (*models.Font, error) {
	var font *models.Font
	err := withDeadline(ctx, s.opts.OperationTimeout, func(ctx context.Context) error {
		var err error
		font, err = s.repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFoundError(err, "Font not found")
		}
		return nil, storeError(err, "Failed to fetch font")
	}
	font.URL = s.opts.fontURL(font.Filename)
	return font, nil
}

// DeleteFont removes a font. Its group memberships and record go first, in
// one transaction; the file is removed afterwards. A file that fails to
// delete is logged and left for the orphan sweeper.
//
// Groups that drop below two fonts are not re-validated.
func (s *FontService) DeleteFont(ctx context.Context, id string) (*models.Font, error) {
	font, err := s.GetFont(ctx, id)
	if err != nil {
		return nil, err
	}

	err = withDeadline(ctx, s.opts.OperationTimeout, func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFoundError(err, "Font not found")
		}
		s.logger.Error("Failed to delete font record", zap.String("font_id", id), zap.Error(err))
		return nil, storeError(err, "Failed to delete font")
	}

	err = withDeadline(context.WithoutCancel(ctx), s.opts.OperationTimeout, func(ctx context.Context) error {
		return s.storage.DeleteFile(ctx, font.Filename)
	})
	if err != nil {
		s.logger.Error("Failed to delete font file, leaving it for the orphan sweeper",
			zap.String("font_id", id), zap.String("filename", font.Filename), zap.Error(err))
	}

	publishEvent(s.events, s.logger, EventFontDeleted, FontEvent{
		FontID:     font.ID,
		Name:       font.Name,
		Filename:   font.Filename,
		OccurredAt: time.Now(),
	})
	s.logger.Info("Font deleted", zap.String("font_id", id), zap.String("name", font.Name))
	return font, nil
}

// OpenFontFile returns the font and a reader over its stored bytes. The
// caller must close the reader.
func (s *FontService) OpenFontFile(ctx context.Context, id string) (*models.Font, io.ReadCloser, error) {
	font, err := s.GetFont(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.storage.Open(ctx, font.Filename)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return nil, nil, notFoundError(err, "Font file not found in storage")
		}
		return nil, nil, storeError(err, "Failed to open font file")
	}
	return font, rc, nil
}

// OpenStoredFile opens a stored file by its storage filename, as found in a
// font's public URL. It reads through the backend, so it works for every
// storage driver.
func (s *FontService) OpenStoredFile(ctx context.Context, filename string) (io.ReadCloser, error) {
	if !storage.IsGeneratedFilename(filename) {
		return nil, notFoundError(nil, "File not found")
	}
	rc, err := s.storage.Open(ctx, filename)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return nil, notFoundError(err, "File not found")
		}
		return nil, storeError(err, "Failed to open file")
	}
	return rc, nil
}

// MaxFileSize is the largest accepted upload in bytes.
func (s *FontService) MaxFileSize() int64 {
	return s.opts.MaxFileSize
}

// FileTooLargeError is the validation error for an upload over max bytes.
func FileTooLargeError(max int64) error {
	return validationError(fmt.Sprintf("File size exceeds the maximum of %d bytes", max))
}
