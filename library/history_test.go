package library_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-client/library"
)

// seedLoanHistory drives one checkout/return and one open checkout through
// the API so the backend has both kinds of entries.
func seedLoanHistory(t *testing.T, e *env, userID, closedBook, openBook int64) {
	t.Helper()
	ctx := context.Background()
	books, err := e.catalog.Books(ctx)
	require.NoError(t, err)
	_, err = e.catalog.ToggleLoan(ctx, findByID(t, books, closedBook), userID)
	require.NoError(t, err)
	_, err = e.catalog.ToggleLoan(ctx, findByID(t, e.catalog.CachedBooks(), closedBook), userID)
	require.NoError(t, err)
	_, err = e.catalog.ToggleLoan(ctx, findByID(t, e.catalog.CachedBooks(), openBook), userID)
	require.NoError(t, err)
}

func TestUserHistoryCarriesTitles(t *testing.T) {
	e := newTestEnv(t)
	userID := e.backend.SeedUser("Max Member", "max@example.com", "secret12", library.RoleMember, true)
	closed := e.backend.SeedBook("Animal Farm", "George Orwell")
	open := e.backend.SeedBook("1984", "George Orwell")
	e.login(t, "max@example.com", "secret12")
	seedLoanHistory(t, e, userID, closed, open)

	items, err := e.history.UserHistory(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	for _, l := range items {
		assert.NotEmpty(t, l.Title)
		assert.Equal(t, userID, l.UserID)
	}
}

func TestCachedUserHistoryScopedToUser(t *testing.T) {
	e := newTestEnv(t)
	userID := e.backend.SeedUser("Max Member", "max@example.com", "secret12", library.RoleMember, true)
	e.login(t, "max@example.com", "secret12")

	_, ok := e.history.CachedUserHistory(userID)
	assert.False(t, ok, "nothing cached before the first fetch")

	_, err := e.history.UserHistory(context.Background(), userID)
	require.NoError(t, err)

	_, ok = e.history.CachedUserHistory(userID)
	assert.True(t, ok)
	_, ok = e.history.CachedUserHistory(userID + 1)
	assert.False(t, ok, "cache must not serve another user's view")
}

func TestBookHistoryAndLedgerViews(t *testing.T) {
	backend, ts := newBackend(t)
	member := newEnv(t, backend, ts)
	admin := newEnv(t, backend, ts)

	memberID := backend.SeedUser("Max Member", "max@example.com", "secret12", library.RoleMember, true)
	backend.SeedUser("Ada Admin", "ada@example.com", "secret12", library.RoleAdmin, true)
	closed := backend.SeedBook("Animal Farm", "George Orwell")
	open := backend.SeedBook("1984", "George Orwell")

	member.login(t, "max@example.com", "secret12")
	admin.login(t, "ada@example.com", "secret12")
	seedLoanHistory(t, member, memberID, closed, open)

	ctx := context.Background()

	bookItems, err := member.history.BookHistory(ctx, closed)
	require.NoError(t, err)
	require.Len(t, bookItems, 1)
	assert.Equal(t, "Animal Farm", bookItems[0].BookTitle)
	assert.Equal(t, "Max Member", bookItems[0].UserName)
	assert.False(t, bookItems[0].Open())

	ledger, err := admin.history.Ledger(ctx)
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	for _, l := range ledger {
		assert.NotEmpty(t, l.BookTitle)
		assert.Equal(t, "max@example.com", l.Email)
	}
}

func TestViewsAreIndependent(t *testing.T) {
	e := newTestEnv(t)
	userID := e.backend.SeedUser("Max Member", "max@example.com", "secret12", library.RoleMember, true)
	closed := e.backend.SeedBook("Animal Farm", "George Orwell")
	open := e.backend.SeedBook("1984", "George Orwell")
	e.login(t, "max@example.com", "secret12")
	seedLoanHistory(t, e, userID, closed, open)

	ctx := context.Background()
	_, err := e.history.UserHistory(ctx, userID)
	require.NoError(t, err)

	// Loading the book view must not clear the user view.
	_, err = e.history.BookHistory(ctx, closed)
	require.NoError(t, err)

	items, ok := e.history.CachedUserHistory(userID)
	assert.True(t, ok)
	assert.Len(t, items, 2)
}

func TestOpenEntryFor(t *testing.T) {
	e := newTestEnv(t)
	userID := e.backend.SeedUser("Max Member", "max@example.com", "secret12", library.RoleMember, true)
	closed := e.backend.SeedBook("Animal Farm", "George Orwell")
	open := e.backend.SeedBook("1984", "George Orwell")
	e.login(t, "max@example.com", "secret12")
	seedLoanHistory(t, e, userID, closed, open)

	_, err := e.history.UserHistory(context.Background(), userID)
	require.NoError(t, err)

	entry, found := e.history.OpenEntryFor(userID, open)
	assert.True(t, found)
	assert.Equal(t, open, entry.BookID)
	assert.True(t, entry.Open())

	_, found = e.history.OpenEntryFor(userID, closed)
	assert.False(t, found, "closed entries never match")

	_, found = e.history.OpenEntryFor(userID+1, open)
	assert.False(t, found, "another user's view is never consulted")
}

func TestLedgerRequiresAdmin(t *testing.T) {
	e := newTestEnv(t)
	e.backend.SeedUser("Max Member", "max@example.com", "secret12", library.RoleMember, true)
	e.login(t, "max@example.com", "secret12")

	_, err := e.history.Ledger(context.Background())
	require.Error(t, err)
	assert.True(t, library.IsKind(err, library.KindAuthRejected))
	assert.Equal(t, "Forbidden", err.Error())
}

func TestUserHistoryForbiddenForOthers(t *testing.T) {
	e := newTestEnv(t)
	e.backend.SeedUser("Max Member", "max@example.com", "secret12", library.RoleMember, true)
	otherID := e.backend.SeedUser("Nia Neighbor", "nia@example.com", "secret12", library.RoleMember, true)
	e.login(t, "max@example.com", "secret12")

	_, err := e.history.UserHistory(context.Background(), otherID)
	require.Error(t, err)
	assert.True(t, library.IsKind(err, library.KindAuthRejected))
}

func TestInvalidateDropsAllViews(t *testing.T) {
	e := newTestEnv(t)
	userID := e.backend.SeedUser("Max Member", "max@example.com", "secret12", library.RoleMember, true)
	e.login(t, "max@example.com", "secret12")

	_, err := e.history.UserHistory(context.Background(), userID)
	require.NoError(t, err)

	e.history.Invalidate()
	_, ok := e.history.CachedUserHistory(userID)
	assert.False(t, ok)
}
