package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"fontbox/internal/models"

	"github.com/google/uuid"
)

// MemoryStore holds fonts, groups and memberships in memory. The font and
// group mock repositories share one store so cascading deletes stay consistent.
type MemoryStore struct {
	mu          sync.RWMutex
	fonts       map[string]models.Font
	groups      map[string]models.FontGroup
	memberships map[string][]string // group ID -> ordered font IDs
	seq         int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		fonts:       make(map[string]models.Font),
		groups:      make(map[string]models.FontGroup),
		memberships: make(map[string][]string),
	}
}

// stamp returns a strictly increasing timestamp so newest-first ordering is
// stable even when two writes land within the clock's resolution.
func (s *MemoryStore) stamp() time.Time {
	s.seq++
	return time.Now().Add(time.Duration(s.seq))
}

// MockFontRepository is an in-memory implementation of FontRepository.
type MockFontRepository struct {
	store *MemoryStore
}

// NewMockFontRepository creates a new instance of MockFontRepository.
func NewMockFontRepository(store *MemoryStore) *MockFontRepository {
	return &MockFontRepository{store: store}
}

// GetAll returns all fonts, newest first.
func (r *MockFontRepository) GetAll(ctx context.Context) ([]models.Font, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	fontList := make([]models.Font, 0, len(r.store.fonts))
	for _, f := range r.store.fonts {
		fontList = append(fontList, f)
	}
	sort.Slice(fontList, func(i, j int) bool {
		return fontList[i].CreatedAt.After(fontList[j].CreatedAt)
	})
	return fontList, nil
}

// GetByID returns a font by its ID.
func (r *MockFontRepository) GetByID(ctx context.Context, id string) (*models.Font, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	font, ok := r.store.fonts[id]
	if !ok {
		return nil, fmt.Errorf("font with ID %s: %w", id, ErrNotFound)
	}
	return &font, nil
}

// GetByName returns a font by its exact name.
func (r *MockFontRepository) GetByName(ctx context.Context, name string) (*models.Font, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, f := range r.store.fonts {
		if f.Name == name {
			font := f
			return &font, nil
		}
	}
	return nil, fmt.Errorf("font with name %s: %w", name, ErrNotFound)
}

// CountByIDs counts how many of ids are known fonts.
func (r *MockFontRepository) CountByIDs(ctx context.Context, ids []string) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	seen := make(map[string]bool, len(ids))
	var count int64
	for _, id := range ids {
		if _, ok := r.store.fonts[id]; ok && !seen[id] {
			seen[id] = true
			count++
		}
	}
	return count, nil
}

// Create adds a new font, enforcing unique name and filename.
func (r *MockFontRepository) Create(ctx context.Context, font *models.Font) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, f := range r.store.fonts {
		if f.Name == font.Name || f.Filename == font.Filename {
			return fmt.Errorf("font %s: %w", font.Name, ErrDuplicate)
		}
	}
	if font.ID == "" {
		font.ID = uuid.New().String()
	}
	now := r.store.stamp()
	font.CreatedAt = now
	font.UpdatedAt = now
	stored := *font
	stored.URL = ""
	r.store.fonts[font.ID] = stored
	return nil
}

// Delete removes a font and every membership referencing it.
func (r *MockFontRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.fonts[id]; !ok {
		return fmt.Errorf("font with ID %s: %w", id, ErrNotFound)
	}
	for groupID, fontIDs := range r.store.memberships {
		r.store.memberships[groupID] = without(fontIDs, id)
	}
	delete(r.store.fonts, id)
	return nil
}

// MockFontGroupRepository is an in-memory implementation of FontGroupRepository.
type MockFontGroupRepository struct {
	store *MemoryStore
}

// NewMockFontGroupRepository creates a new instance of MockFontGroupRepository.
func NewMockFontGroupRepository(store *MemoryStore) *MockFontGroupRepository {
	return &MockFontGroupRepository{store: store}
}

// GetAll returns all groups, newest first.
func (r *MockFontGroupRepository) GetAll(ctx context.Context) ([]models.FontGroup, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	groupList := make([]models.FontGroup, 0, len(r.store.groups))
	for id := range r.store.groups {
		groupList = append(groupList, r.resolve(id))
	}
	sort.Slice(groupList, func(i, j int) bool {
		return groupList[i].CreatedAt.After(groupList[j].CreatedAt)
	})
	return groupList, nil
}

// GetByID returns a group by its ID.
func (r *MockFontGroupRepository) GetByID(ctx context.Context, id string) (*models.FontGroup, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if _, ok := r.store.groups[id]; !ok {
		return nil, fmt.Errorf("font group %s: %w", id, ErrNotFound)
	}
	group := r.resolve(id)
	return &group, nil
}

// GetByTitle returns a group by title, ignoring case.
func (r *MockFontGroupRepository) GetByTitle(ctx context.Context, title string) (*models.FontGroup, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	key := models.TitleKey(title)
	for id, g := range r.store.groups {
		if g.TitleKey == key {
			group := r.resolve(id)
			return &group, nil
		}
	}
	return nil, fmt.Errorf("font group %s: %w", key, ErrNotFound)
}

// Create adds a group with its memberships.
func (r *MockFontGroupRepository) Create(ctx context.Context, group *models.FontGroup, fontIDs []string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := models.TitleKey(group.Title)
	if r.titleTaken(key, "") {
		return fmt.Errorf("font group %s: %w", group.Title, ErrDuplicate)
	}
	if err := r.checkMembers(fontIDs); err != nil {
		return err
	}
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	now := r.store.stamp()
	r.store.groups[group.ID] = models.FontGroup{
		ID:        group.ID,
		Title:     strings.TrimSpace(group.Title),
		TitleKey:  key,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.store.memberships[group.ID] = append([]string(nil), fontIDs...)
	*group = r.resolve(group.ID)
	return nil
}

// Update applies title and membership changes.
func (r *MockFontGroupRepository) Update(ctx context.Context, id string, changes FontGroupUpdate) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	group, ok := r.store.groups[id]
	if !ok {
		return fmt.Errorf("font group %s: %w", id, ErrNotFound)
	}
	if changes.Title != nil {
		key := models.TitleKey(*changes.Title)
		if r.titleTaken(key, id) {
			return fmt.Errorf("font group %s: %w", *changes.Title, ErrDuplicate)
		}
		group.Title = strings.TrimSpace(*changes.Title)
		group.TitleKey = key
	}
	if changes.FontIDs != nil {
		if err := r.checkMembers(changes.FontIDs); err != nil {
			return err
		}
		r.store.memberships[id] = append([]string(nil), changes.FontIDs...)
	}
	group.UpdatedAt = r.store.stamp()
	r.store.groups[id] = group
	return nil
}

// Delete removes a group and its memberships.
func (r *MockFontGroupRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.groups[id]; !ok {
		return fmt.Errorf("font group %s: %w", id, ErrNotFound)
	}
	delete(r.store.memberships, id)
	delete(r.store.groups, id)
	return nil
}

// resolve must be called with the store lock held.
func (r *MockFontGroupRepository) resolve(id string) models.FontGroup {
	group := r.store.groups[id]
	group.Fonts = make([]models.Font, 0, len(r.store.memberships[id]))
	for _, fontID := range r.store.memberships[id] {
		if f, ok := r.store.fonts[fontID]; ok {
			group.Fonts = append(group.Fonts, f)
		}
	}
	return group
}

func (r *MockFontGroupRepository) titleTaken(key, exceptID string) bool {
	for id, g := range r.store.groups {
		if g.TitleKey == key && id != exceptID {
			return true
		}
	}
	return false
}

func (r *MockFontGroupRepository) checkMembers(fontIDs []string) error {
	seen := make(map[string]bool, len(fontIDs))
	for _, fontID := range fontIDs {
		if seen[fontID] {
			return fmt.Errorf("font %s listed twice: %w", fontID, ErrDuplicate)
		}
		seen[fontID] = true
		if _, ok := r.store.fonts[fontID]; !ok {
			return fmt.Errorf("font %s: %w", fontID, ErrInvalidReference)
		}
	}
	return nil
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
