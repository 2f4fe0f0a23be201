package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// FontGroup is a named set of fonts.
type FontGroup struct {
	ID          string                `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Title       string                `json:"title" gorm:"type:varchar(255);not null"`
	TitleKey    string                `json:"-" gorm:"uniqueIndex;type:varchar(255);not null"` // Normalized title, unique ignoring case
	Fonts       []Font                `json:"fonts" gorm:"-"`
	Memberships []FontGroupMembership `json:"-" gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// FontGroupMembership links a font to a group. A font appears at most once per group.
type FontGroupMembership struct {
	GroupID   string `gorm:"primaryKey;type:varchar(36)"`
	FontID    string `gorm:"primaryKey;type:varchar(36);index"`
	Position  int    // Order in which the font was listed for the group
	Font      Font   `gorm:"foreignKey:FontID;references:ID"`
	CreatedAt time.Time
}

// TitleKey normalizes a group title for case-insensitive uniqueness.
func TitleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// BeforeSave keeps TitleKey in sync with Title.
func (g *FontGroup) BeforeSave(tx *gorm.DB) error {
	g.TitleKey = TitleKey(g.Title)
	return nil
}

// ResolveFonts fills Fonts from the preloaded memberships, ordered by position.
func (g *FontGroup) ResolveFonts() {
	fonts := make([]Font, 0, len(g.Memberships))
	for _, m := range g.Memberships {
		fonts = append(fonts, m.Font)
	}
	g.Fonts = fonts
}

// FontIDs returns the ids of the resolved member fonts.
func (g *FontGroup) FontIDs() []string {
	ids := make([]string, 0, len(g.Fonts))
	for _, f := range g.Fonts {
		ids = append(ids, f.ID)
	}
	return ids
}
