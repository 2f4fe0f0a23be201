// Package storage persists raw font files. It knows nothing about font
// metadata; callers keep the returned filename to find the file again.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrFileNotFound is returned by Open when the file does not exist.
var ErrFileNotFound = errors.New("file not found")

// SavedFile is what a backend reports after persisting a file.
type SavedFile struct {
	Filename string // Backend-unique key
	Path     string // Location hint, e.g. "/uploads/<filename>"
}

// FileInfo describes a stored file.
type FileInfo struct {
	Filename string
	Size     int64
	ModTime  time.Time
}

// Backend stores font files by name.
type Backend interface {
	// SaveFile persists content under a new collision-resistant filename.
	SaveFile(ctx context.Context, content io.Reader, size int64, originalName string) (SavedFile, error)
	// DeleteFile removes a file. Deleting a missing file is not an error.
	DeleteFile(ctx context.Context, filename string) error
	// Open returns the file's content, or ErrFileNotFound.
	Open(ctx context.Context, filename string) (io.ReadCloser, error)
	// List returns every stored file.
	List(ctx context.Context) ([]FileInfo, error)
	// UploadPath is the root location files are stored under.
	UploadPath() string
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^\w.-]`)
	generatedFilename   = regexp.MustCompile(`^[\w.-]+-\d+-[0-9a-f]{8}\.(ttf|otf)$`)
)

// GenerateFilename builds a storage filename from the uploaded name:
// "My Font.ttf" -> "My_Font-1700000000000-1a2b3c4d.ttf".
func GenerateFilename(originalName string, now time.Time) string {
	base := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	ext := filepath.Ext(base)
	stem := unsafeFilenameChars.ReplaceAllString(strings.TrimSuffix(base, ext), "_")
	if stem == "" {
		stem = "font"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%s%s", stem, now.UnixMilli(), suffix, strings.ToLower(ext))
}

// IsGeneratedFilename reports whether name has the shape GenerateFilename
// gives font files. Anything else in a shared bucket or directory is not ours.
func IsGeneratedFilename(name string) bool {
	return generatedFilename.MatchString(name)
}

// PublicPath is the path under which stored files are served.
func PublicPath(filename string) string {
	return "/uploads/" + filename
}
