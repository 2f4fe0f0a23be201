package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"fontbox/internal/models"
	"fontbox/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messagesOf(t *testing.T, err error) []string {
	t.Helper()
	var svcErr *services.Error
	require.True(t, errors.As(err, &svcErr), "expected *services.Error, got %v", err)
	return svcErr.Messages
}

func (f *fixture) uploadPair(t *testing.T) (*models.Font, *models.Font) {
	t.Helper()
	return f.mustUpload(t, "FontA.ttf"), f.mustUpload(t, "FontB.otf")
}

func TestFontGroupService_CreateGroup(t *testing.T) {
	f := newFixture(t)
	a, b := f.uploadPair(t)

	group, err := f.groups.CreateGroup(context.Background(), "  Sans  ", []string{a.ID, b.ID})
	require.NoError(t, err)

	assert.NotEmpty(t, group.ID)
	assert.Equal(t, "Sans", group.Title)
	require.Len(t, group.Fonts, 2)
	assert.Equal(t, []string{a.ID, b.ID}, group.FontIDs())
	assert.Equal(t, "http://fonts.test/uploads/"+a.Filename, group.Fonts[0].URL)
	assert.Contains(t, f.events.RoutingKeys(), services.EventFontGroupCreated)
}

func TestFontGroupService_CreateGroup_TitleClashIgnoresCase(t *testing.T) {
	f := newFixture(t)
	a, b := f.uploadPair(t)
	ctx := context.Background()

	_, err := f.groups.CreateGroup(ctx, "Sans", []string{a.ID, b.ID})
	require.NoError(t, err)

	_, err = f.groups.CreateGroup(ctx, "sans", []string{a.ID, b.ID})
	assert.ErrorIs(t, err, services.ErrConflict)
	assert.Equal(t, []string{"A font group titled 'sans' already exists"}, messagesOf(t, err))
}

func TestFontGroupService_CreateGroup_Validation(t *testing.T) {
	f := newFixture(t)
	a, b := f.uploadPair(t)

	tests := []struct {
		name    string
		title   string
		fontIDs []string
		message string
	}{
		{"empty title", "   ", []string{a.ID, b.ID}, "Title must not be empty"},
		{"one font", "X", []string{a.ID}, "A font group requires at least 2 fonts"},
		{"no fonts", "X", nil, "A font group requires at least 2 fonts"},
		{"repeated font", "X", []string{a.ID, a.ID}, "Font ids must be unique"},
		{"unknown font", "Y", []string{a.ID, "unknown"}, "One or more fonts do not exist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.groups.CreateGroup(context.Background(), tt.title, tt.fontIDs)
			assert.ErrorIs(t, err, services.ErrValidation)
			assert.Equal(t, []string{tt.message}, messagesOf(t, err))
		})
	}

	groups, err := f.groups.ListGroups(context.Background())
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestFontGroupService_ListGroups_NewestFirst(t *testing.T) {
	f := newFixture(t)
	a, b := f.uploadPair(t)
	ctx := context.Background()

	first, err := f.groups.CreateGroup(ctx, "First", []string{a.ID, b.ID})
	require.NoError(t, err)
	second, err := f.groups.CreateGroup(ctx, "Second", []string{b.ID, a.ID})
	require.NoError(t, err)

	groups, err := f.groups.ListGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, second.ID, groups[0].ID)
	assert.Equal(t, first.ID, groups[1].ID)
	assert.Equal(t, []string{b.ID, a.ID}, groups[0].FontIDs())
}

func TestFontGroupService_GetGroup_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.groups.GetGroup(context.Background(), "missing")
	assert.ErrorIs(t, err, services.ErrNotFound)
	assert.Equal(t, []string{"Font group not found"}, messagesOf(t, err))
}

func TestFontGroupService_UpdateGroup(t *testing.T) {
	f := newFixture(t)
	a, b := f.uploadPair(t)
	c := f.mustUpload(t, "FontC.ttf")
	ctx := context.Background()

	group, err := f.groups.CreateGroup(ctx, "Sans", []string{a.ID, b.ID})
	require.NoError(t, err)

	title := "Sans Serif"
	updated, err := f.groups.UpdateGroup(ctx, group.ID, services.UpdateGroupInput{
		Title:   &title,
		FontIDs: []string{c.ID, a.ID},
	})
	require.NoError(t, err)

	assert.Equal(t, "Sans Serif", updated.Title)
	assert.Equal(t, []string{c.ID, a.ID}, updated.FontIDs())
	assert.True(t, !updated.UpdatedAt.Before(group.UpdatedAt))
	assert.Contains(t, f.events.RoutingKeys(), services.EventFontGroupUpdated)
}

func TestFontGroupService_UpdateGroup_TitleOnlyKeepsFonts(t *testing.T) {
	f := newFixture(t)
	a, b := f.uploadPair(t)
	ctx := context.Background()

	group, err := f.groups.CreateGroup(ctx, "Sans", []string{a.ID, b.ID})
	require.NoError(t, err)

	// Changing only the letter case of its own title is allowed.
	title := "SANS"
	updated, err := f.groups.UpdateGroup(ctx, group.ID, services.UpdateGroupInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "SANS", updated.Title)
	assert.Equal(t, []string{a.ID, b.ID}, updated.FontIDs())
}

func TestFontGroupService_UpdateGroup_Rejections(t *testing.T) {
	f := newFixture(t)
	a, b := f.uploadPair(t)
	ctx := context.Background()

	group, err := f.groups.CreateGroup(ctx, "Sans", []string{a.ID, b.ID})
	require.NoError(t, err)
	_, err = f.groups.CreateGroup(ctx, "Serif", []string{b.ID, a.ID})
	require.NoError(t, err)

	taken := "serif"
	_, err = f.groups.UpdateGroup(ctx, group.ID, services.UpdateGroupInput{Title: &taken})
	assert.ErrorIs(t, err, services.ErrConflict)

	blank := " "
	_, err = f.groups.UpdateGroup(ctx, group.ID, services.UpdateGroupInput{Title: &blank})
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = f.groups.UpdateGroup(ctx, group.ID, services.UpdateGroupInput{FontIDs: []string{}})
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = f.groups.UpdateGroup(ctx, group.ID, services.UpdateGroupInput{FontIDs: []string{a.ID, "ghost"}})
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = f.groups.UpdateGroup(ctx, "missing", services.UpdateGroupInput{FontIDs: []string{a.ID, b.ID}})
	assert.ErrorIs(t, err, services.ErrNotFound)

	// Nothing changed.
	got, err := f.groups.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sans", got.Title)
	assert.Equal(t, []string{a.ID, b.ID}, got.FontIDs())
}

func TestFontGroupService_DeleteGroup(t *testing.T) {
	f := newFixture(t)
	a, b := f.uploadPair(t)
	ctx := context.Background()

	group, err := f.groups.CreateGroup(ctx, "Sans", []string{a.ID, b.ID})
	require.NoError(t, err)

	deleted, err := f.groups.DeleteGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, group.ID, deleted.ID)
	assert.Len(t, deleted.Fonts, 2)

	_, err = f.groups.GetGroup(ctx, group.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)

	// Fonts are untouched.
	fonts, err := f.fonts.ListFonts(ctx)
	require.NoError(t, err)
	assert.Len(t, fonts, 2)

	// The title is free again.
	_, err = f.groups.CreateGroup(ctx, strings.ToUpper("sans"), []string{a.ID, b.ID})
	assert.NoError(t, err)

	_, err = f.groups.DeleteGroup(ctx, group.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)
}
