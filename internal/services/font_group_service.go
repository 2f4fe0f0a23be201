package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fontbox/internal/models"
	"fontbox/internal/repositories"

	"go.uber.org/zap"
)

const minGroupFonts = 2

// UpdateGroupInput is a partial group update. Nil fields are left unchanged;
// a non-nil FontIDs replaces the whole membership set.
type UpdateGroupInput struct {
	Title   *string
	FontIDs []string
}

// FontGroupService handles business logic related to font groups.
type FontGroupService struct {
	groupRepo repositories.FontGroupRepository
	fontRepo  repositories.FontRepository
	events    EventPublisher
	logger    *zap.Logger
	opts      Options
}

// NewFontGroupService creates a new FontGroupService. events may be nil.
func NewFontGroupService(groupRepo repositories.FontGroupRepository, fontRepo repositories.FontRepository, events EventPublisher, logger *zap.Logger, opts Options) *FontGroupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FontGroupService{
		groupRepo: groupRepo,
		fontRepo:  fontRepo,
		events:    events,
		logger:    logger,
		opts:      opts.withDefaults(logger),
	}
}

// CreateGroup creates a group with at least two distinct, existing fonts.
func (s *FontGroupService) CreateGroup(ctx context.Context, title string, fontIDs []string) (*models.FontGroup, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, validationError("Title must not be empty")
	}
	if err := checkFontIDs(fontIDs); err != nil {
		return nil, err
	}
	if err := s.checkTitleFree(ctx, title, ""); err != nil {
		return nil, err
	}
	if err := s.checkFontsExist(ctx, fontIDs); err != nil {
		return nil, err
	}

	group := &models.FontGroup{Title: title}
	err := withDeadline(ctx, s.opts.OperationTimeout, func(ctx context.Context) error {
		return s.groupRepo.Create(ctx, group, fontIDs)
	})
	if err != nil {
		return nil, s.writeError(err, title, "Failed to create font group")
	}

	s.decorate(group)
	publishEvent(s.events, s.logger, EventFontGroupCreated, groupEvent(group, group.CreatedAt))
	s.logger.Info("Font group created",
		zap.String("group_id", group.ID),
		zap.String("title", group.Title),
		zap.Int("fonts", len(group.Fonts)))
	return group, nil
}

// ListGroups returns all groups, newest first, with their member fonts.
func (s *FontGroupService) ListGroups(ctx context.Context) ([]models.FontGroup, error) {
	var groups []models.FontGroup
	err := withDeadline(ctx, s.opts.OperationTimeout, func(ctx context.Context) error {
		var err error
		groups, err = s.groupRepo.GetAll(ctx)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to fetch font groups", zap.Error(err))
		return nil, storeError(err, "Failed to fetch font groups")
	}
	for i := range groups {
		s.decorate(&groups[i])
	}
	return groups, nil
}

// GetGroup returns one group with its member fonts.
func (s *FontGroupService) GetGroup(ctx context.Context, id string) (*models.FontGroup, error) {
	var group *models.FontGroup
	err := withDeadline(ctx, s.opts.OperationTimeout, func(ctx context.Context) error {
		var err error
		group, err = s.groupRepo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFoundError(err, "Font group not found")
		}
		return nil, storeError(err, "Failed to fetch font group")
	}
	s.decorate(group)
	return group, nil
}

// UpdateGroup changes a group's title and/or replaces its fonts. A new title
// is always checked against the other groups.
func (s *FontGroupService) UpdateGroup(ctx context.Context, id string, input UpdateGroupInput) (*models.FontGroup, error) {
	current, err := s.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}

	var changes repositories.FontGroupUpdate
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, validationError("Title must not be empty")
		}
		if err := s.checkTitleFree(ctx, title, id); err != nil {
			return nil, err
		}
		changes.Title = &title
	}
	if input.FontIDs != nil {
		if err := checkFontIDs(input.FontIDs); err != nil {
			return nil, err
		}
		if err := s.checkFontsExist(ctx, input.FontIDs); err != nil {
			return nil, err
		}
		changes.FontIDs = input.FontIDs
	}
	if changes.Title == nil && changes.FontIDs == nil {
		return current, nil
	}

	subject := current.Title
	if changes.Title != nil {
		subject = *changes.Title
	}
	err = withDeadline(ctx, s.opts.OperationTimeout, func(ctx context.Context) error {
		return s.groupRepo.Update(ctx, id, changes)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFoundError(err, "Font group not found")
		}
		return nil, s.writeError(err, subject, "Failed to update font group")
	}

	updated, err := s.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	publishEvent(s.events, s.logger, EventFontGroupUpdated, groupEvent(updated, updated.UpdatedAt))
	s.logger.Info("Font group updated", zap.String("group_id", id), zap.String("title", updated.Title))
	return updated, nil
}

// DeleteGroup removes a group and its memberships. The fonts are untouched.
func (s *FontGroupService) DeleteGroup(ctx context.Context, id string) (*models.FontGroup, error) {
	group, err := s.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	err = withDeadline(ctx, s.opts.OperationTimeout, func(ctx context.Context) error {
		return s.groupRepo.Delete(ctx, id)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFoundError(err, "Font group not found")
		}
		s.logger.Error("Failed to delete font group", zap.String("group_id", id), zap.Error(err))
		return nil, storeError(err, "Failed to delete font group")
	}

	publishEvent(s.events, s.logger, EventFontGroupDeleted, groupEvent(group, time.Now()))
	s.logger.Info("Font group deleted", zap.String("group_id", id), zap.String("title", group.Title))
	return group, nil
}

// checkFontIDs enforces the minimum size and rejects repeated ids.
func checkFontIDs(fontIDs []string) error {
	if len(fontIDs) < minGroupFonts {
		return validationError("A font group requires at least 2 fonts")
	}
	seen := make(map[string]struct{}, len(fontIDs))
	for _, id := range fontIDs {
		seen[id] = struct{}{}
	}
	if len(seen) != len(fontIDs) {
		return validationError("Font ids must be unique")
	}
	return nil
}

func (s *FontGroupService) checkTitleFree(ctx context.Context, title, exceptID string) error {
	var existing *models.FontGroup
	err := withDeadline(ctx, s.opts.OperationTimeout, func(ctx context.Context) error {
		var err error
		existing, err = s.groupRepo.GetByTitle(ctx, title)
		return err
	})
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return nil
	case err != nil:
		return storeError(err, "Failed to check font group title")
	case existing.ID == exceptID:
		return nil
	default:
		return titleTaken(nil, title)
	}
}

func (s *FontGroupService) checkFontsExist(ctx context.Context, fontIDs []string) error {
	var count int64
	err := withDeadline(ctx, s.opts.OperationTimeout, func(ctx context.Context) error {
		var err error
		count, err = s.fontRepo.CountByIDs(ctx, fontIDs)
		return err
	})
	if err != nil {
		return storeError(err, "Failed to check fonts")
	}
	if count != int64(len(fontIDs)) {
		return validationError("One or more fonts do not exist")
	}
	return nil
}

// writeError classifies a failed group write. The store's unique index on
// the title key catches creations that raced past checkTitleFree, and its
// foreign key catches fonts deleted after checkFontsExist.
func (s *FontGroupService) writeError(err error, title, message string) error {
	switch {
	case errors.Is(err, repositories.ErrDuplicate):
		return titleTaken(err, title)
	case errors.Is(err, repositories.ErrInvalidReference):
		return &Error{Kind: KindValidation, Messages: []string{"One or more fonts do not exist"}, Err: err}
	default:
		s.logger.Error(message, zap.String("title", title), zap.Error(err))
		return storeError(err, message)
	}
}

func titleTaken(cause error, title string) error {
	return conflictError(cause, fmt.Sprintf("A font group titled '%s' already exists", title))
}

func (s *FontGroupService) decorate(group *models.FontGroup) {
	for i := range group.Fonts {
		group.Fonts[i].URL = s.opts.fontURL(group.Fonts[i].Filename)
	}
}

func groupEvent(group *models.FontGroup, at time.Time) FontGroupEvent {
	return FontGroupEvent{
		GroupID:    group.ID,
		Title:      group.Title,
		FontIDs:    group.FontIDs(),
		OccurredAt: at,
	}
}
