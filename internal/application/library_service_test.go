package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptash/promptash/internal/domain/entity"
	"github.com/promptash/promptash/internal/domain/repository"
	"github.com/promptash/promptash/internal/infrastructure/postgres"
)

func newLibraryService(limit int) (*LibraryService, *memUsers, *captureMail) {
	users := newMemUsers()
	mail := &captureMail{}
	tier := basicTier()
	tier.ItemLimit = limit
	svc := &LibraryService{
		Prompts:    newMemPrompts(),
		Categories: newMemCategories(),
		Items:      newMemItemsForTest(),
		Shares:     newMemShares(),
		Users:      users,
		Tiers:      newMemTiers(tier),
		Tokens:     newMemTokenStore(),
		Mail:       mail,
		Cfg:        testConfig(),
	}
	return svc, users, mail
}

func libUser(t *testing.T, users *memUsers, username string) *entity.User {
	t.Helper()
	u := &entity.User{Username: username, Email: username + "@example.com", Plan: "basic", Role: entity.RoleUser}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func TestCreatePromptValidation(t *testing.T) {
	svc, users, _ := newLibraryService(100)
	u := libUser(t, users, "ada")

	_, err := svc.CreatePrompt(context.Background(), u.ID, PromptInput{Title: " ", Content: ""})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Violations, "title")
	assert.Contains(t, verr.Violations, "content")
}

func TestPromptOwnershipEnforced(t *testing.T) {
	svc, users, _ := newLibraryService(100)
	owner := libUser(t, users, "ada")
	other := libUser(t, users, "bob")

	p, err := svc.CreatePrompt(context.Background(), owner.ID, PromptInput{Title: "T", Content: "C"})
	require.NoError(t, err)

	_, err = svc.GetPrompt(context.Background(), other.ID, p.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.UpdatePrompt(context.Background(), other.ID, p.ID, PromptInput{Title: "X", Content: "Y"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCategoryFromAnotherUserRejected(t *testing.T) {
	svc, users, _ := newLibraryService(100)
	owner := libUser(t, users, "ada")
	other := libUser(t, users, "bob")

	c, err := svc.CreateCategory(context.Background(), other.ID, CategoryInput{Name: "theirs"})
	require.NoError(t, err)

	_, err = svc.CreatePrompt(context.Background(), owner.ID, PromptInput{Title: "T", Content: "C", CategoryID: &c.ID})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestQuotaBlocksCreates(t *testing.T) {
	svc, users, _ := newLibraryService(2)
	u := libUser(t, users, "ada")
	ctx := context.Background()

	_, err := svc.CreatePrompt(ctx, u.ID, PromptInput{Title: "P1", Content: "C"})
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, u.ID, entity.KindNote, ItemInput{Title: "N1", Content: "C"})
	require.NoError(t, err)

	// Prompts and items count against the same limit.
	_, err = svc.CreatePrompt(ctx, u.ID, PromptInput{Title: "P2", Content: "C"})
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	_, err = svc.CreateItem(ctx, u.ID, entity.KindBookmark, ItemInput{Title: "B1", URL: "https://x"})
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestUsageAlertSentOnceAtThreshold(t *testing.T) {
	svc, users, mail := newLibraryService(5)
	u := libUser(t, users, "ada")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.CreateItem(ctx, u.ID, entity.KindNote, ItemInput{Title: "N", Content: "C"})
		require.NoError(t, err)
	}
	assert.Equal(t, 0, mail.count(), "below 80% no alert")

	_, err := svc.CreateItem(ctx, u.ID, entity.KindNote, ItemInput{Title: "N", Content: "C"})
	require.NoError(t, err)
	assert.Equal(t, 1, mail.count(), "crossing 80% sends the alert")

	_, err = svc.CreateItem(ctx, u.ID, entity.KindNote, ItemInput{Title: "N", Content: "C"})
	require.NoError(t, err)
	assert.Equal(t, 1, mail.count(), "alert is rate limited")
}

func TestGetItemEnforcesKind(t *testing.T) {
	svc, users, _ := newLibraryService(100)
	u := libUser(t, users, "ada")
	ctx := context.Background()

	it, err := svc.CreateItem(ctx, u.ID, entity.KindNote, ItemInput{Title: "N1", Content: "C"})
	require.NoError(t, err)

	got, err := svc.GetItem(ctx, u.ID, entity.KindNote, it.ID)
	require.NoError(t, err)
	assert.Equal(t, it.ID, got.ID)

	// The same row is not addressable under another kind.
	_, err = svc.GetItem(ctx, u.ID, entity.KindBookmark, it.ID)
	assert.ErrorIs(t, err, postgres.ErrNotFound)
}

func TestShareWithUserAndEveryone(t *testing.T) {
	svc, users, _ := newLibraryService(100)
	owner := libUser(t, users, "ada")
	friend := libUser(t, users, "bob")
	stranger := libUser(t, users, "carol")
	ctx := context.Background()

	p, err := svc.CreatePrompt(ctx, owner.ID, PromptInput{Title: "T", Content: "C"})
	require.NoError(t, err)

	// Share with one user.
	_, err = svc.ShareItem(ctx, owner.ID, entity.KindPrompt, p.ID, "bob")
	require.NoError(t, err)

	_, err = svc.GetPrompt(ctx, friend.ID, p.ID)
	assert.NoError(t, err)
	_, err = svc.GetPrompt(ctx, stranger.ID, p.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	shared, err := svc.SharedPrompts(ctx, friend.ID)
	require.NoError(t, err)
	assert.Len(t, shared, 1)

	// Share with everyone.
	_, err = svc.ShareItem(ctx, owner.ID, entity.KindPrompt, p.ID, "")
	require.NoError(t, err)
	_, err = svc.GetPrompt(ctx, stranger.ID, p.ID)
	assert.NoError(t, err)

	// The owner's own list of shared items never includes their prompts.
	mine, err := svc.SharedPrompts(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestUnshareKeepsItem(t *testing.T) {
	svc, users, _ := newLibraryService(100)
	owner := libUser(t, users, "ada")
	friend := libUser(t, users, "bob")
	ctx := context.Background()

	p, err := svc.CreatePrompt(ctx, owner.ID, PromptInput{Title: "T", Content: "C"})
	require.NoError(t, err)
	_, err = svc.ShareItem(ctx, owner.ID, entity.KindPrompt, p.ID, "bob")
	require.NoError(t, err)

	require.NoError(t, svc.UnshareItem(ctx, owner.ID, entity.KindPrompt, p.ID, "bob"))

	_, err = svc.GetPrompt(ctx, friend.ID, p.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// The item itself is untouched.
	got, err := svc.GetPrompt(ctx, owner.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "T", got.Title)
}

func TestShareRequiresOwnership(t *testing.T) {
	svc, users, _ := newLibraryService(100)
	owner := libUser(t, users, "ada")
	other := libUser(t, users, "bob")
	ctx := context.Background()

	p, err := svc.CreatePrompt(ctx, owner.ID, PromptInput{Title: "T", Content: "C"})
	require.NoError(t, err)

	_, err = svc.ShareItem(ctx, other.ID, entity.KindPrompt, p.ID, "ada")
	assert.ErrorIs(t, err, ErrForbidden)

	// Sharing with yourself is rejected.
	_, err = svc.ShareItem(ctx, owner.ID, entity.KindPrompt, p.ID, "ada")
	assert.ErrorIs(t, err, ErrForbidden)

	// Sharing with an unknown user is an error.
	_, err = svc.ShareItem(ctx, owner.ID, entity.KindPrompt, p.ID, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSearchFallsBackToDatabase(t *testing.T) {
	svc, users, _ := newLibraryService(100)
	u := libUser(t, users, "ada")
	ctx := context.Background()

	_, err := svc.CreatePrompt(ctx, u.ID, PromptInput{Title: "Summarize article", Content: "Summarize the following"})
	require.NoError(t, err)
	_, err = svc.CreatePrompt(ctx, u.ID, PromptInput{Title: "Translate", Content: "Translate to French"})
	require.NoError(t, err)

	// No ES client configured: the database path serves the query.
	got, err := svc.SearchPrompts(ctx, u.ID, "summarize", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Summarize article", got[0].Title)
}

func TestListItemsRejectsUnknownKind(t *testing.T) {
	svc, users, _ := newLibraryService(100)
	u := libUser(t, users, "ada")

	_, err := svc.ListItems(context.Background(), u.ID, "playlist", repository.ListFilter{})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}
