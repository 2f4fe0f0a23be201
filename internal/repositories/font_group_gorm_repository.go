package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fontbox/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMFontGroupRepository is a GORM implementation of FontGroupRepository.
type GORMFontGroupRepository struct {
	db *gorm.DB
}

// NewGORMFontGroupRepository creates a new instance of GORMFontGroupRepository.
func NewGORMFontGroupRepository(db *gorm.DB) *GORMFontGroupRepository {
	return &GORMFontGroupRepository{
		db: db,
	}
}

func (r *GORMFontGroupRepository) withMembers(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Memberships", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Memberships.Font")
}

// GetAll retrieves all groups with their fonts, newest first.
func (r *GORMFontGroupRepository) GetAll(ctx context.Context) ([]models.FontGroup, error) {
	var groups []models.FontGroup
	if err := r.withMembers(ctx).Order("created_at DESC").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("failed to get all font groups: %w", err)
	}
	for i := range groups {
		groups[i].ResolveFonts()
	}
	return groups, nil
}

// GetByID retrieves a single group with its fonts.
func (r *GORMFontGroupRepository) GetByID(ctx context.Context, id string) (*models.FontGroup, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByTitle retrieves a group by its normalized title.
func (r *GORMFontGroupRepository) GetByTitle(ctx context.Context, title string) (*models.FontGroup, error) {
	return r.first(ctx, "title_key = ?", models.TitleKey(title))
}

func (r *GORMFontGroupRepository) first(ctx context.Context, query string, arg string) (*models.FontGroup, error) {
	var group models.FontGroup
	if err := r.withMembers(ctx).First(&group, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("font group %s: %w", arg, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get font group %s: %w", arg, err)
	}
	group.ResolveFonts()
	return &group, nil
}

// Create inserts the group and its memberships in one transaction, then
// reloads the group so Fonts is populated.
func (r *GORMFontGroupRepository) Create(ctx context.Context, group *models.FontGroup, fontIDs []string) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	group.Title = strings.TrimSpace(group.Title)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(group).Error; err != nil {
			return translateWriteError(err, "font group "+group.Title)
		}
		return insertMemberships(tx, group.ID, fontIDs)
	})
	if err != nil {
		return err
	}

	created, err := r.GetByID(ctx, group.ID)
	if err != nil {
		return err
	}
	*group = *created
	return nil
}

// Update applies title and membership changes in one transaction.
func (r *GORMFontGroupRepository) Update(ctx context.Context, id string, changes FontGroupUpdate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		values := map[string]interface{}{"updated_at": time.Now()}
		if changes.Title != nil {
			title := strings.TrimSpace(*changes.Title)
			values["title"] = title
			values["title_key"] = models.TitleKey(title)
		}

		res := tx.Model(&models.FontGroup{}).Where("id = ?", id).Updates(values)
		if res.Error != nil {
			return translateWriteError(res.Error, "font group "+id)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("font group %s: %w", id, ErrNotFound)
		}

		if changes.FontIDs == nil {
			return nil
		}
		if err := tx.Where("group_id = ?", id).Delete(&models.FontGroupMembership{}).Error; err != nil {
			return fmt.Errorf("failed to clear memberships of font group %s: %w", id, err)
		}
		return insertMemberships(tx, id, changes.FontIDs)
	})
}

// Delete removes the group's memberships and then the group in one transaction.
func (r *GORMFontGroupRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", id).Delete(&models.FontGroupMembership{}).Error; err != nil {
			return fmt.Errorf("failed to delete memberships of font group %s: %w", id, err)
		}
		res := tx.Delete(&models.FontGroup{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete font group: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("font group %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

func insertMemberships(tx *gorm.DB, groupID string, fontIDs []string) error {
	if len(fontIDs) == 0 {
		return nil
	}
	memberships := make([]models.FontGroupMembership, 0, len(fontIDs))
	for i, fontID := range fontIDs {
		memberships = append(memberships, models.FontGroupMembership{
			GroupID:  groupID,
			FontID:   fontID,
			Position: i,
		})
	}
	if err := tx.Omit(clause.Associations).Create(&memberships).Error; err != nil {
		return translateWriteError(err, "memberships of font group "+groupID)
	}
	return nil
}

func translateWriteError(err error, subject string) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", subject, ErrDuplicate)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%s references a missing font: %w", subject, ErrInvalidReference)
	default:
		return fmt.Errorf("failed to write %s: %w", subject, err)
	}
}
