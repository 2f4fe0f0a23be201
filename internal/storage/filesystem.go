package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// LocalBackend stores files in a directory of an afero filesystem.
type LocalBackend struct {
	fs  afero.Fs
	dir string
}

// NewLocalBackend creates a LocalBackend rooted at dir on the OS filesystem.
func NewLocalBackend(dir string) (*LocalBackend, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload directory: %w", err)
	}
	return NewLocalBackendWithFs(afero.NewOsFs(), abs)
}

// NewLocalBackendWithFs creates a LocalBackend on fs, useful with afero.NewMemMapFs in tests.
func NewLocalBackendWithFs(fs afero.Fs, dir string) (*LocalBackend, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalBackend{fs: fs, dir: dir}, nil
}

// UploadPath returns the directory files are written to.
func (b *LocalBackend) UploadPath() string {
	return b.dir
}

// SaveFile writes content to a freshly generated filename.
func (b *LocalBackend) SaveFile(ctx context.Context, content io.Reader, size int64, originalName string) (SavedFile, error) {
	if err := ctx.Err(); err != nil {
		return SavedFile{}, err
	}

	filename := GenerateFilename(originalName, time.Now())
	path := filepath.Join(b.dir, filename)

	dst, err := b.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return SavedFile{}, fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(dst, content); err != nil {
		dst.Close()
		b.fs.Remove(path)
		return SavedFile{}, fmt.Errorf("failed to save file: %w", err)
	}
	if err := dst.Close(); err != nil {
		b.fs.Remove(path)
		return SavedFile{}, fmt.Errorf("failed to save file: %w", err)
	}

	return SavedFile{Filename: filename, Path: PublicPath(filename)}, nil
}

// DeleteFile removes filename; a missing file is ignored.
func (b *LocalBackend) DeleteFile(ctx context.Context, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := b.resolve(filename)
	if err != nil {
		return err
	}
	if err := b.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Open opens filename for reading.
func (b *LocalBackend) Open(ctx context.Context, filename string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := b.resolve(filename)
	if err != nil {
		return nil, err
	}
	f, err := b.fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", filename, ErrFileNotFound)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// List returns the regular files in the upload directory.
func (b *LocalBackend) List(ctx context.Context) ([]FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := afero.ReadDir(b.fs, b.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list upload directory: %w", err)
	}
	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, FileInfo{Filename: e.Name(), Size: e.Size(), ModTime: e.ModTime()})
	}
	return files, nil
}

// resolve rejects names that would escape the upload directory.
func (b *LocalBackend) resolve(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	return filepath.Join(b.dir, filename), nil
}
