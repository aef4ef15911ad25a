package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func authedSession(role Role) Session {
	return Session{
		User:          &User{ID: 7, Name: "Test User", Role: role, IsActive: true},
		Role:          role,
		Authenticated: true,
	}
}

func TestDecideLoadingDominates(t *testing.T) {
	s := authedSession(RoleAdmin)
	s.Loading = true

	// Loading wins even when every other check would pass or fail.
	assert.Equal(t, ShowLoading, Decide(s, "/admin/users", RoleAdmin).Decision)
	assert.Equal(t, ShowLoading, Decide(Session{Loading: true}, "/books").Decision)
	assert.Equal(t, ShowLoading, DecidePublic(s).Decision)
}

func TestDecideUnauthenticated(t *testing.T) {
	anon := Session{}

	// Anonymous users get the login redirect no matter which roles the
	// page wants; they must never see a role-mismatch redirect.
	for _, required := range [][]Role{
		nil,
		{RoleAdmin},
		{RoleLibrarian},
		{RoleMember},
		{RoleAdmin, RoleLibrarian},
	} {
		res := Decide(anon, "/whatever", required...)
		assert.Equal(t, RedirectLogin, res.Decision)
	}
}

func TestDecideRoleMismatch(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		required []Role
		want     Decision
	}{
		{"admin on librarian page", RoleAdmin, []Role{RoleLibrarian}, RedirectAdminHome},
		{"admin on member page", RoleAdmin, []Role{RoleMember}, RedirectAdminHome},
		{"librarian on admin page", RoleLibrarian, []Role{RoleAdmin}, RedirectLibrarianHome},
		{"member on admin page", RoleMember, []Role{RoleAdmin}, RedirectUnauthorized},
		{"member on librarian page", RoleMember, []Role{RoleLibrarian}, RedirectUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Decide(authedSession(tt.role), "/attempted", tt.required...)
			assert.Equal(t, tt.want, res.Decision)
			if tt.want == RedirectUnauthorized {
				assert.Equal(t, "/attempted", res.From)
			} else {
				assert.Empty(t, res.From)
			}
		})
	}
}

func TestDecideAllow(t *testing.T) {
	assert.Equal(t, Allow, Decide(authedSession(RoleAdmin), "/admin/users", RoleAdmin).Decision)
	assert.Equal(t, Allow, Decide(authedSession(RoleMember), "/books").Decision)
	assert.Equal(t, Allow,
		Decide(authedSession(RoleLibrarian), "/desk", RoleAdmin, RoleLibrarian).Decision)
}

func TestDecideEffectiveRoleFallback(t *testing.T) {
	// A session hydrated without an explicit role still authorizes via the
	// embedded user's role.
	s := Session{
		User:          &User{ID: 3, Role: RoleLibrarian},
		Authenticated: true,
	}
	assert.Equal(t, Allow, Decide(s, "/desk", RoleLibrarian).Decision)
	assert.Equal(t, RedirectLibrarianHome, Decide(s, "/admin/users", RoleAdmin).Decision)
}

func TestDecidePublic(t *testing.T) {
	assert.Equal(t, Allow, DecidePublic(Session{}).Decision)
	assert.Equal(t, RedirectAdminHome, DecidePublic(authedSession(RoleAdmin)).Decision)
	assert.Equal(t, RedirectLibrarianHome, DecidePublic(authedSession(RoleLibrarian)).Decision)
	assert.Equal(t, RedirectMemberHome, DecidePublic(authedSession(RoleMember)).Decision)
}
