package repositories

import (
	"context"
	"errors"

	"fontbox/internal/models"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound         = errors.New("record not found")
	// ErrDuplicate is returned when a write violates a unique constraint.
	ErrDuplicate        = errors.New("duplicate record")
	// ErrInvalidReference is returned when a write references a record that does not exist.
	ErrInvalidReference = errors.New("reference to missing record")
)

// FontRepository defines the interface for font data access.
type FontRepository interface {
	// GetAll returns every font, newest first.
	GetAll(ctx context.Context) ([]models.Font, error)
	GetByID(ctx context.Context, id string) (*models.Font, error)
	GetByName(ctx context.Context, name string) (*models.Font, error)
	// CountByIDs counts how many of the given ids resolve to existing fonts.
	CountByIDs(ctx context.Context, ids []string) (int64, error)
	Create(ctx context.Context, font *models.Font) error
	// Delete removes the font's group memberships and then the font itself.
	Delete(ctx context.Context, id string) error
}

// FontGroupUpdate describes a partial group update. A nil field is left unchanged.
type FontGroupUpdate struct {
	Title   *string
	FontIDs []string
}

// FontGroupRepository defines the interface for font group data access.
// Returned groups always carry their resolved member fonts.
type FontGroupRepository interface {
	// GetAll returns every group, newest first.
	GetAll(ctx context.Context) ([]models.FontGroup, error)
	GetByID(ctx context.Context, id string) (*models.FontGroup, error)
	// GetByTitle looks a group up by title, ignoring case and surrounding spaces.
	GetByTitle(ctx context.Context, title string) (*models.FontGroup, error)
	// Create inserts the group and one membership per font id atomically.
	Create(ctx context.Context, group *models.FontGroup, fontIDs []string) error
	// Update applies the changes atomically; a non-nil FontIDs replaces the membership set.
	Update(ctx context.Context, id string, changes FontGroupUpdate) error
	// Delete removes the group's memberships and then the group.
	Delete(ctx context.Context, id string) error
}
