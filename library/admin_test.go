package library_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-client/library"
)

func newAdminEnv(t *testing.T) *env {
	t.Helper()
	backend, ts := newBackend(t)
	e := newEnv(t, backend, ts)
	backend.SeedUser("Ada Admin", "ada@example.com", "secret12", library.RoleAdmin, true)
	e.login(t, "ada@example.com", "secret12")
	return e
}

func TestAdminListsUsers(t *testing.T) {
	e := newAdminEnv(t)
	e.backend.SeedUser("Max Member", "max@example.com", "secret12", library.RoleMember, true)

	users, err := e.admin.Users(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "ada@example.com", users[0].Email)
	assert.Equal(t, "max@example.com", users[1].Email)
}

func TestAdminCreateUserDefaultsToMember(t *testing.T) {
	e := newAdminEnv(t)
	ctx := context.Background()

	require.NoError(t, e.admin.CreateUser(ctx, "New Person", "new@example.com", "secret12", ""))

	users, err := e.admin.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, library.RoleMember, users[1].Role)
	assert.True(t, bool(users[1].IsActive))
}

func TestAdminSetRoleAndStatus(t *testing.T) {
	backend, ts := newBackend(t)
	admin := newEnv(t, backend, ts)
	backend.SeedUser("Ada Admin", "ada@example.com", "secret12", library.RoleAdmin, true)
	targetID := backend.SeedUser("Max Member", "max@example.com", "secret12", library.RoleMember, true)
	admin.login(t, "ada@example.com", "secret12")

	ctx := context.Background()
	require.NoError(t, admin.admin.SetUserRole(ctx, targetID, library.RoleLibrarian))

	users, err := admin.admin.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, library.RoleLibrarian, users[1].Role)

	// Deactivation locks the account out at login.
	require.NoError(t, admin.admin.SetUserActive(ctx, targetID, false))

	locked := newEnv(t, backend, ts)
	_, err = locked.auth.Login(ctx, "max@example.com", "secret12")
	require.Error(t, err)
	assert.Equal(t, "Account is deactivated. Contact admin.", err.Error())

	// Reactivation restores access.
	require.NoError(t, admin.admin.SetUserActive(ctx, targetID, true))
	locked.login(t, "max@example.com", "secret12")
}

func TestAdminResetPassword(t *testing.T) {
	backend, ts := newBackend(t)
	admin := newEnv(t, backend, ts)
	backend.SeedUser("Ada Admin", "ada@example.com", "secret12", library.RoleAdmin, true)
	targetID := backend.SeedUser("Max Member", "max@example.com", "oldpass1", library.RoleMember, true)
	admin.login(t, "ada@example.com", "secret12")

	ctx := context.Background()
	assert.True(t, library.IsKind(
		admin.admin.ResetUserPassword(ctx, targetID, "abc"),
		library.KindInvalidInput))
	require.NoError(t, admin.admin.ResetUserPassword(ctx, targetID, "newpass1"))

	member := newEnv(t, backend, ts)
	_, err := member.auth.Login(ctx, "max@example.com", "oldpass1")
	require.Error(t, err)
	member.login(t, "max@example.com", "newpass1")
}

func TestAdminDashboardTotals(t *testing.T) {
	backend, ts := newBackend(t)
	admin := newEnv(t, backend, ts)
	member := newEnv(t, backend, ts)

	backend.SeedUser("Ada Admin", "ada@example.com", "secret12", library.RoleAdmin, true)
	memberID := backend.SeedUser("Max Member", "max@example.com", "secret12", library.RoleMember, true)
	bookID := backend.SeedBook("1984", "George Orwell")
	backend.SeedBook("Animal Farm", "George Orwell")

	admin.login(t, "ada@example.com", "secret12")
	member.login(t, "max@example.com", "secret12")

	ctx := context.Background()
	books, err := member.catalog.Books(ctx)
	require.NoError(t, err)
	_, err = member.catalog.ToggleLoan(ctx, findByID(t, books, bookID), memberID)
	require.NoError(t, err)

	stats, err := admin.admin.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Totals.TotalBooks)
	assert.Equal(t, 2, stats.Totals.TotalUsers)
	assert.Equal(t, 1, stats.Totals.ActiveLoans)
}

func TestAdminSurfaceRejectsNonAdmins(t *testing.T) {
	e := newTestEnv(t)
	e.backend.SeedUser("Liz Librarian", "liz@example.com", "secret12", library.RoleLibrarian, true)
	e.login(t, "liz@example.com", "secret12")

	ctx := context.Background()
	_, err := e.admin.Users(ctx)
	assert.True(t, library.IsKind(err, library.KindAuthRejected))

	err = e.admin.SetUserRole(ctx, 1, library.RoleMember)
	assert.True(t, library.IsKind(err, library.KindAuthRejected))

	_, err = e.admin.Dashboard(ctx)
	assert.True(t, library.IsKind(err, library.KindAuthRejected))
}

func TestAdminInputValidation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	assert.True(t, library.IsKind(
		e.admin.CreateUser(ctx, "", "a@b.com", "pw", library.RoleMember),
		library.KindInvalidInput))
	assert.True(t, library.IsKind(
		e.admin.CreateUser(ctx, "Name", "a@b.com", "pw", "wizard"),
		library.KindInvalidInput))
	assert.True(t, library.IsKind(
		e.admin.SetUserRole(ctx, 1, "wizard"),
		library.KindInvalidInput))
	assert.Empty(t, e.backend.Requests())
}
