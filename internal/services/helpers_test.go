package services_test

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"fontbox/internal/models"
	"fontbox/internal/repositories"
	"fontbox/internal/services"
	"fontbox/internal/storage"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const uploadDir = "/srv/uploads"

var testOptions = services.Options{BaseURL: "http://fonts.test"}

// MockFontRepository is a mock implementation of repositories.FontRepository
type MockFontRepository struct {
	mock.Mock
}

func (m *MockFontRepository) GetAll(ctx context.Context) ([]models.Font, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Font), args.Error(1)
}

func (m *MockFontRepository) GetByID(ctx context.Context, id string) (*models.Font, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Font), args.Error(1)
}

func (m *MockFontRepository) GetByName(ctx context.Context, name string) (*models.Font, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Font), args.Error(1)
}

func (m *MockFontRepository) CountByIDs(ctx context.Context, ids []string) (int64, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFontRepository) Create(ctx context.Context, font *models.Font) error {
	args := m.Called(ctx, font)
	return args.Error(0)
}

func (m *MockFontRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockBackend is a mock implementation of storage.Backend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) SaveFile(ctx context.Context, content io.Reader, size int64, originalName string) (storage.SavedFile, error) {
	args := m.Called(ctx, content, size, originalName)
	return args.Get(0).(storage.SavedFile), args.Error(1)
}

func (m *MockBackend) DeleteFile(ctx context.Context, filename string) error {
	args := m.Called(ctx, filename)
	return args.Error(0)
}

func (m *MockBackend) Open(ctx context.Context, filename string) (io.ReadCloser, error) {
	args := m.Called(ctx, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockBackend) List(ctx context.Context) ([]storage.FileInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.FileInfo), args.Error(1)
}

func (m *MockBackend) UploadPath() string {
	return m.Called().String(0)
}

// recordingPublisher collects published routing keys.
type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(exchange, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *recordingPublisher) RoutingKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

// fixture wires both services to in-memory repositories and an in-memory filesystem.
type fixture struct {
	fs        afero.Fs
	fontRepo  *repositories.MockFontRepository
	groupRepo *repositories.MockFontGroupRepository
	fonts     *services.FontService
	groups    *services.FontGroupService
	events    *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	backend, err := storage.NewLocalBackendWithFs(fs, uploadDir)
	require.NoError(t, err)

	store := repositories.NewMemoryStore()
	fontRepo := repositories.NewMockFontRepository(store)
	groupRepo := repositories.NewMockFontGroupRepository(store)
	events := &recordingPublisher{}

	return &fixture{
		fs:        fs,
		fontRepo:  fontRepo,
		groupRepo: groupRepo,
		fonts:     services.NewFontService(fontRepo, backend, events, nil, testOptions),
		groups:    services.NewFontGroupService(groupRepo, fontRepo, events, nil, testOptions),
		events:    events,
	}
}

func upload(name, content string) *services.FontUpload {
	return &services.FontUpload{
		OriginalName: name,
		Content:      strings.NewReader(content),
		Size:         int64(len(content)),
	}
}

func (f *fixture) mustUpload(t *testing.T, name string) *models.Font {
	t.Helper()
	res, err := f.fonts.UploadFont(context.Background(), upload(name, "glyphs of "+name))
	require.NoError(t, err)
	return res.Font
}

func (f *fixture) storedFiles(t *testing.T) []string {
	t.Helper()
	entries, err := afero.ReadDir(f.fs, uploadDir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
