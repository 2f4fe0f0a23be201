package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"fontbox/internal/database"
	"fontbox/internal/handlers"
	"fontbox/internal/models"
	"fontbox/internal/repositories"
	"fontbox/internal/services"
	"fontbox/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const maxUpload = 5 * 1024 * 1024

// setupApp builds the full app on a fresh SQLite file and an in-memory upload directory.
func setupApp(t *testing.T) *fiber.App {
	t.Helper()
	backend, err := storage.NewLocalBackendWithFs(afero.NewMemMapFs(), "/uploads")
	require.NoError(t, err)
	return setupAppWithBackend(t, backend)
}

func setupAppWithBackend(t *testing.T, backend storage.Backend) *fiber.App {
	t.Helper()

	db, err := database.Open("sqlite", filepath.Join(t.TempDir(), "fonts.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	fontRepo := repositories.NewGORMFontRepository(db)
	groupRepo := repositories.NewGORMFontGroupRepository(db)

	opts := services.Options{BaseURL: "http://fonts.test", MaxFileSize: maxUpload}
	fontService := services.NewFontService(fontRepo, backend, nil, nil, opts)
	groupService := services.NewFontGroupService(groupRepo, fontRepo, nil, nil, opts)

	return handlers.NewApp(
		handlers.NewFontHandler(fontService, nil),
		handlers.NewFontGroupHandler(groupService, nil),
		handlers.AppOptions{BodyLimit: maxUpload + 1024*1024},
	)
}

// objectBackend keeps files in a map, like an object store with no local directory.
type objectBackend struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newObjectBackend() *objectBackend {
	return &objectBackend{files: make(map[string][]byte)}
}

func (b *objectBackend) SaveFile(ctx context.Context, content io.Reader, size int64, originalName string) (storage.SavedFile, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return storage.SavedFile{}, err
	}
	name := storage.GenerateFilename(originalName, time.Now())
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[name] = data
	return storage.SavedFile{Filename: name, Path: "fonts/" + name}, nil
}

func (b *objectBackend) DeleteFile(ctx context.Context, filename string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.files, filename)
	return nil
}

func (b *objectBackend) Open(ctx context.Context, filename string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.files[filename]
	if !ok {
		return nil, fmt.Errorf("%s: %w", filename, storage.ErrFileNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *objectBackend) List(ctx context.Context) ([]storage.FileInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	files := make([]storage.FileInfo, 0, len(b.files))
	for name, data := range b.files {
		files = append(files, storage.FileInfo{Filename: name, Size: int64(len(data)), ModTime: time.Now()})
	}
	return files, nil
}

func (b *objectBackend) UploadPath() string {
	return "fonts"
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/fonts/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, target string, payload interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func do(t *testing.T, app *fiber.App, req *http.Request, out interface{}) int {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type uploadResponse struct {
	models.Font
	WasReplaced bool `json:"wasReplaced"`
}

func uploadFont(t *testing.T, app *fiber.App, filename string) uploadResponse {
	t.Helper()
	var res uploadResponse
	status := do(t, app, uploadRequest(t, filename, []byte("glyphs:"+filename)), &res)
	require.Equal(t, http.StatusCreated, status)
	return res
}

func TestFontUploadAndReplace(t *testing.T) {
	app := setupApp(t)

	var first uploadResponse
	status := do(t, app, uploadRequest(t, "Roboto.ttf", bytes.Repeat([]byte{0x01}, 3*1024)), &first)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Roboto", first.Name)
	assert.Equal(t, "font/ttf", first.Mimetype)
	assert.Equal(t, int64(3*1024), first.Size)
	assert.False(t, first.WasReplaced)
	assert.Equal(t, "http://fonts.test/uploads/"+first.Filename, first.URL)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/uploads/"+first.Filename, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var second uploadResponse
	status = do(t, app, uploadRequest(t, "Roboto.ttf", []byte("new glyphs")), &second)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, second.WasReplaced)
	assert.Equal(t, "Roboto", second.Name)
	assert.NotEqual(t, first.Filename, second.Filename)
	assert.NotEqual(t, first.ID, second.ID)

	// The old file is gone.
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/uploads/"+first.Filename, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	var fonts []models.Font
	require.Equal(t, http.StatusOK, do(t, app, httptest.NewRequest(http.MethodGet, "/fonts", nil), &fonts))
	require.Len(t, fonts, 1)
	assert.Equal(t, second.ID, fonts[0].ID)
}

func TestFontUploadValidation(t *testing.T) {
	app := setupApp(t)

	tests := []struct {
		name     string
		req      *http.Request
		expected string
	}{
		{"png file", uploadRequest(t, "bad.png", []byte("png")), "Only .ttf and .otf files are allowed"},
		{"empty file", uploadRequest(t, "Empty.ttf", nil), "No file uploaded or file is empty"},
		{"too large", uploadRequest(t, "Huge.otf", make([]byte, maxUpload+1)), "File size exceeds the maximum of 5242880 bytes"},
		{"no file field", httptest.NewRequest(http.MethodPost, "/fonts/upload", nil), "No file uploaded or file is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errResp handlers.ErrorResponse
			status := do(t, app, tt.req, &errResp)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, http.StatusBadRequest, errResp.StatusCode)
			assert.Equal(t, tt.expected, errResp.Message)
			assert.Equal(t, []string{tt.expected}, errResp.Errors)
		})
	}

	var fonts []models.Font
	require.Equal(t, http.StatusOK, do(t, app, httptest.NewRequest(http.MethodGet, "/fonts", nil), &fonts))
	assert.Empty(t, fonts)
}

func TestUploadsServedFromObjectBackend(t *testing.T) {
	app := setupAppWithBackend(t, newObjectBackend())

	font := uploadFont(t, app, "Lora.otf")
	require.True(t, strings.HasPrefix(font.URL, "http://fonts.test/uploads/"))
	publicPath := strings.TrimPrefix(font.URL, "http://fonts.test")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, publicPath, nil), -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "font/otf", resp.Header.Get("Content-Type"))
	assert.Equal(t, "glyphs:Lora.otf", string(data))

	var errResp handlers.ErrorResponse
	assert.Equal(t, http.StatusNotFound, do(t, app, httptest.NewRequest(http.MethodGet, "/uploads/notes.txt", nil), &errResp))
	assert.Equal(t, "File not found", errResp.Message)

	require.Equal(t, http.StatusOK, do(t, app, httptest.NewRequest(http.MethodDelete, "/fonts/"+font.ID, nil), nil))
	assert.Equal(t, http.StatusNotFound, do(t, app, httptest.NewRequest(http.MethodGet, publicPath, nil), nil))
}

func TestFontUploadOverBodyLimit(t *testing.T) {
	app := setupApp(t)

	var errResp handlers.ErrorResponse
	status := do(t, app, uploadRequest(t, "Giant.ttf", make([]byte, maxUpload+2*1024*1024)), &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "File size exceeds the maximum of 5242880 bytes", errResp.Message)
}

func TestFontDownloadAndDelete(t *testing.T) {
	app := setupApp(t)
	font := uploadFont(t, app, "Inter.otf")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/fonts/"+font.ID+"/file", nil), -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "font/otf", resp.Header.Get("Content-Type"))
	assert.Equal(t, "glyphs:Inter.otf", string(data))

	var deleted models.Font
	require.Equal(t, http.StatusOK, do(t, app, httptest.NewRequest(http.MethodDelete, "/fonts/"+font.ID, nil), &deleted))
	assert.Equal(t, font.ID, deleted.ID)

	var errResp handlers.ErrorResponse
	assert.Equal(t, http.StatusNotFound, do(t, app, httptest.NewRequest(http.MethodDelete, "/fonts/"+font.ID, nil), &errResp))
	assert.Equal(t, "Font not found", errResp.Message)

	assert.Equal(t, http.StatusNotFound, do(t, app, httptest.NewRequest(http.MethodGet, "/fonts/"+font.ID+"/file", nil), nil))
	assert.Equal(t, http.StatusBadRequest, do(t, app, httptest.NewRequest(http.MethodDelete, "/fonts/not-a-uuid", nil), nil))
}

func TestFontGroupLifecycle(t *testing.T) {
	app := setupApp(t)
	fontA := uploadFont(t, app, "FontA.ttf")
	fontB := uploadFont(t, app, "FontB.ttf")
	fontC := uploadFont(t, app, "FontC.otf")

	var group models.FontGroup
	status := do(t, app, jsonRequest(t, http.MethodPost, "/font-groups", map[string]interface{}{
		"title": "Sans",
		"fonts": []string{fontA.ID, fontB.ID},
	}), &group)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Sans", group.Title)
	require.Len(t, group.Fonts, 2)
	assert.Equal(t, fontA.ID, group.Fonts[0].ID)
	assert.Equal(t, "http://fonts.test/uploads/"+fontA.Filename, group.Fonts[0].URL)

	// Titles clash regardless of case.
	var errResp handlers.ErrorResponse
	status = do(t, app, jsonRequest(t, http.MethodPost, "/font-groups", map[string]interface{}{
		"title": "sans",
		"fonts": []string{fontA.ID, fontB.ID},
	}), &errResp)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "A font group titled 'sans' already exists", errResp.Message)

	var fetched models.FontGroup
	require.Equal(t, http.StatusOK, do(t, app, httptest.NewRequest(http.MethodGet, "/font-groups/"+group.ID, nil), &fetched))
	assert.Equal(t, group.ID, fetched.ID)

	var updated models.FontGroup
	status = do(t, app, jsonRequest(t, http.MethodPatch, "/font-groups/"+group.ID, map[string]interface{}{
		"fonts": []string{fontC.ID, fontB.ID},
	}), &updated)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Sans", updated.Title)
	assert.Equal(t, []string{fontC.ID, fontB.ID}, updated.FontIDs())

	status = do(t, app, jsonRequest(t, http.MethodPatch, "/font-groups/"+group.ID, map[string]interface{}{
		"title": "Sans Serif",
	}), &updated)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Sans Serif", updated.Title)
	assert.Len(t, updated.Fonts, 2)

	var groups []models.FontGroup
	require.Equal(t, http.StatusOK, do(t, app, httptest.NewRequest(http.MethodGet, "/font-groups", nil), &groups))
	require.Len(t, groups, 1)

	var deleted models.FontGroup
	require.Equal(t, http.StatusOK, do(t, app, httptest.NewRequest(http.MethodDelete, "/font-groups/"+group.ID, nil), &deleted))
	assert.Equal(t, "Sans Serif", deleted.Title)
	assert.Equal(t, http.StatusNotFound, do(t, app, httptest.NewRequest(http.MethodGet, "/font-groups/"+group.ID, nil), nil))
}

func TestFontGroupValidation(t *testing.T) {
	app := setupApp(t)
	fontA := uploadFont(t, app, "FontA.ttf")
	fontB := uploadFont(t, app, "FontB.ttf")

	tests := []struct {
		name     string
		payload  map[string]interface{}
		expected string
	}{
		{"one font", map[string]interface{}{"title": "X", "fonts": []string{fontA.ID}}, "A font group requires at least 2 fonts"},
		{"unknown font", map[string]interface{}{"title": "Y", "fonts": []string{fontA.ID, uuid.NewString()}}, "One or more fonts do not exist"},
		{"repeated font", map[string]interface{}{"title": "Z", "fonts": []string{fontA.ID, fontA.ID}}, "Font ids must be unique"},
		{"blank title", map[string]interface{}{"title": "  ", "fonts": []string{fontA.ID, fontB.ID}}, "Title must not be empty"},
		{"missing title", map[string]interface{}{"fonts": []string{fontA.ID, fontB.ID}}, "Field 'title' failed on the 'required' tag"},
		{"non-uuid font", map[string]interface{}{"title": "W", "fonts": []string{fontA.ID, "abc"}}, "Field 'fonts[1]' failed on the 'uuid4' tag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errResp handlers.ErrorResponse
			status := do(t, app, jsonRequest(t, http.MethodPost, "/font-groups", tt.payload), &errResp)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tt.expected, errResp.Message)
		})
	}

	var errResp handlers.ErrorResponse
	req := httptest.NewRequest(http.MethodPost, "/font-groups", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, do(t, app, req, &errResp))
	assert.Equal(t, "Invalid request body", errResp.Message)

	// An explicit empty list on update is a size violation, not "no change".
	var group models.FontGroup
	require.Equal(t, http.StatusCreated, do(t, app, jsonRequest(t, http.MethodPost, "/font-groups", map[string]interface{}{
		"title": "Pair",
		"fonts": []string{fontA.ID, fontB.ID},
	}), &group))
	status := do(t, app, jsonRequest(t, http.MethodPatch, "/font-groups/"+group.ID, map[string]interface{}{"fonts": []string{}}), &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "A font group requires at least 2 fonts", errResp.Message)

	assert.Equal(t, http.StatusNotFound, do(t, app, jsonRequest(t, http.MethodPatch, "/font-groups/"+uuid.NewString(), map[string]interface{}{"title": "Q"}), nil))
}

func TestDeleteFontShrinksGroup(t *testing.T) {
	app := setupApp(t)
	fontA := uploadFont(t, app, "FontA.ttf")
	fontB := uploadFont(t, app, "FontB.ttf")

	var group models.FontGroup
	require.Equal(t, http.StatusCreated, do(t, app, jsonRequest(t, http.MethodPost, "/font-groups", map[string]interface{}{
		"title": "G",
		"fonts": []string{fontA.ID, fontB.ID},
	}), &group))

	require.Equal(t, http.StatusOK, do(t, app, httptest.NewRequest(http.MethodDelete, "/fonts/"+fontA.ID, nil), nil))

	var fetched models.FontGroup
	require.Equal(t, http.StatusOK, do(t, app, httptest.NewRequest(http.MethodGet, "/font-groups/"+group.ID, nil), &fetched))
	assert.Equal(t, []string{fontB.ID}, fetched.FontIDs())
}

func TestHealthAndUnknownRoute(t *testing.T) {
	app := setupApp(t)

	var health map[string]interface{}
	require.Equal(t, http.StatusOK, do(t, app, httptest.NewRequest(http.MethodGet, "/health", nil), &health))
	assert.Equal(t, "healthy", health["status"])

	var errResp handlers.ErrorResponse
	assert.Equal(t, http.StatusNotFound, do(t, app, httptest.NewRequest(http.MethodGet, "/nope", nil), &errResp))
	assert.Equal(t, http.StatusNotFound, errResp.StatusCode)
}
