package library

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T, dir string) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	return store
}

func testUser() User {
	return User{ID: 42, Name: "Kay Reader", Email: "kay@example.com", Role: RoleMember, IsActive: true}
}

func TestSessionSurvivesReload(t *testing.T) {
	dir := t.TempDir()

	store := tempStore(t, dir)
	ss := NewSessionStore(store)
	require.NoError(t, ss.Hydrate())
	require.NoError(t, ss.Set(testUser(), RoleMember))
	require.NoError(t, store.Close())

	// A second process over the same file sees the snapshot.
	store2 := tempStore(t, dir)
	defer store2.Close()
	ss2 := NewSessionStore(store2)
	require.NoError(t, ss2.Hydrate())

	snap := ss2.Snapshot()
	assert.True(t, snap.Authenticated)
	require.NotNil(t, snap.User)
	assert.Equal(t, int64(42), snap.User.ID)
	assert.Equal(t, "kay@example.com", snap.User.Email)
	assert.Equal(t, RoleMember, snap.Role)
}

func TestClearDeletesSnapshot(t *testing.T) {
	dir := t.TempDir()

	store := tempStore(t, dir)
	ss := NewSessionStore(store)
	require.NoError(t, ss.Set(testUser(), RoleMember))
	require.NoError(t, ss.Clear())

	snap := ss.Snapshot()
	assert.False(t, snap.Authenticated)
	assert.Nil(t, snap.User)

	_, ok, err := store.Get(sessionKey)
	require.NoError(t, err)
	assert.False(t, ok, "snapshot should be gone from storage")
	require.NoError(t, store.Close())

	store2 := tempStore(t, dir)
	defer store2.Close()
	ss2 := NewSessionStore(store2)
	require.NoError(t, ss2.Hydrate())
	assert.False(t, ss2.Snapshot().Authenticated)
}

func TestPatchUserRePersists(t *testing.T) {
	dir := t.TempDir()

	store := tempStore(t, dir)
	ss := NewSessionStore(store)
	require.NoError(t, ss.Set(testUser(), RoleMember))

	name := "Kay Q. Reader"
	role := RoleLibrarian
	require.NoError(t, ss.PatchUser(UserPatch{Name: &name, Role: &role}))

	snap := ss.Snapshot()
	assert.Equal(t, "Kay Q. Reader", snap.User.Name)
	assert.Equal(t, RoleLibrarian, snap.Role)
	assert.Equal(t, RoleLibrarian, snap.User.Role)
	require.NoError(t, store.Close())

	store2 := tempStore(t, dir)
	defer store2.Close()
	ss2 := NewSessionStore(store2)
	require.NoError(t, ss2.Hydrate())
	assert.Equal(t, "Kay Q. Reader", ss2.Snapshot().User.Name)
	assert.Equal(t, RoleLibrarian, ss2.Snapshot().Role)
}

func TestPatchUserNoopWhenAnonymous(t *testing.T) {
	ss := NewSessionStore(NewMemKV())
	name := "Ghost"
	require.NoError(t, ss.PatchUser(UserPatch{Name: &name}))
	assert.Nil(t, ss.Snapshot().User)
}

func TestSnapshotIsolation(t *testing.T) {
	ss := NewSessionStore(NewMemKV())
	require.NoError(t, ss.Set(testUser(), RoleMember))

	snap := ss.Snapshot()
	snap.User.Name = "Mallory"

	assert.Equal(t, "Kay Reader", ss.Snapshot().User.Name)
}

func TestHydrateDropsCorruptSnapshot(t *testing.T) {
	kv := NewMemKV()
	require.NoError(t, kv.Set(sessionKey, "{not json"))

	ss := NewSessionStore(kv)
	require.NoError(t, ss.Hydrate())
	assert.False(t, ss.Snapshot().Authenticated)

	_, ok, err := kv.Get(sessionKey)
	require.NoError(t, err)
	assert.False(t, ok, "corrupt snapshot should be deleted")
}

func TestPersistedBlobHoldsIdentityOnly(t *testing.T) {
	kv := NewMemKV()
	ss := NewSessionStore(kv)
	require.NoError(t, ss.Set(testUser(), RoleMember))

	raw, ok, err := kv.Get(sessionKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, "kay@example.com")
	assert.NotContains(t, raw, "password")
	assert.NotContains(t, raw, "token")
}
