package repositories

import (
	"context"
	"errors"
	"fmt"

	"fontbox/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMFontRepository is a GORM implementation of FontRepository.
type GORMFontRepository struct {
	db *gorm.DB
}

// NewGORMFontRepository creates a new instance of GORMFontRepository.
func NewGORMFontRepository(db *gorm.DB) *GORMFontRepository {
	return &GORMFontRepository{
		db: db,
	}
}

// GetAll retrieves all fonts from the database, newest first.
func (r *GORMFontRepository) GetAll(ctx context.Context) ([]models.Font, error) {
	var fonts []models.Font
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&fonts).Error; err != nil {
		return nil, fmt.Errorf("failed to get all fonts: %w", err)
	}
	return fonts, nil
}

// GetByID retrieves a single font by its ID from the database.
func (r *GORMFontRepository) GetByID(ctx context.Context, id string) (*models.Font, error) {
	var font models.Font
	if err := r.db.WithContext(ctx).First(&font, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("font with ID %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get font by ID %s: %w", id, err)
	}
	return &font, nil
}

// GetByName retrieves a single font by its unique name.
func (r *GORMFontRepository) GetByName(ctx context.Context, name string) (*models.Font, error) {
	var font models.Font
	if err := r.db.WithContext(ctx).First(&font, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("font with name %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get font by name %s: %w", name, err)
	}
	return &font, nil
}

// CountByIDs counts the fonts whose ID is in ids.
func (r *GORMFontRepository) CountByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Font{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count fonts: %w", err)
	}
	return count, nil
}

// Create creates a new font in the database.
func (r *GORMFontRepository) Create(ctx context.Context, font *models.Font) error {
	if font.ID == "" {
		font.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(font).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("font %s: %w", font.Name, ErrDuplicate)
		}
		return fmt.Errorf("failed to create font: %w", err)
	}
	return nil
}

// Delete removes every membership referencing the font, then the font, in one transaction.
func (r *GORMFontRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("font_id = ?", id).Delete(&models.FontGroupMembership{}).Error; err != nil {
			return fmt.Errorf("failed to delete memberships of font %s: %w", id, err)
		}
		res := tx.Delete(&models.Font{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete font: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("font with ID %s: %w", id, ErrNotFound)
		}
		return nil
	})
}
