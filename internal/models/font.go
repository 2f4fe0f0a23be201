package models

import (
	"path/filepath"
	"strings"
	"time"
)

// Font represents an uploaded font file and its metadata.
type Font struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name      string    `json:"name" gorm:"uniqueIndex;type:varchar(100);not null"`
	Filename  string    `json:"filename" gorm:"uniqueIndex;type:varchar(255);not null"`
	Path      string    `json:"path" gorm:"type:varchar(500);not null"`
	Size      int64     `json:"size"`
	Mimetype  string    `json:"mimetype" gorm:"type:varchar(50)"`
	URL       string    `json:"url,omitempty" gorm:"-"` // Computed from BASE_URL, never stored
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Allowed font extensions, lowercase with the leading dot.
const (
	ExtTTF = ".ttf"
	ExtOTF = ".otf"
)

// IsAllowedFontExtension reports whether ext (any case) is an accepted font extension.
func IsAllowedFontExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ExtTTF, ExtOTF:
		return true
	}
	return false
}

// MimetypeForExtension maps a font extension to its MIME type.
func MimetypeForExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ExtTTF:
		return "font/ttf"
	case ExtOTF:
		return "font/otf"
	default:
		return "application/octet-stream"
	}
}

// FontNameFromFilename strips any directory part and the extension from an
// uploaded filename, e.g. "Roboto.ttf" -> "Roboto".
func FontNameFromFilename(originalName string) string {
	base := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
