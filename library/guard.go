package library

// Decision is the outcome of a route-guard evaluation.
type Decision int

const (
	Allow Decision = iota
	ShowLoading
	RedirectLogin
	RedirectAdminHome
	RedirectLibrarianHome
	RedirectMemberHome
	RedirectUnauthorized
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case ShowLoading:
		return "loading"
	case RedirectLogin:
		return "redirect-login"
	case RedirectAdminHome:
		return "redirect-admin-home"
	case RedirectLibrarianHome:
		return "redirect-librarian-home"
	case RedirectMemberHome:
		return "redirect-member-home"
	case RedirectUnauthorized:
		return "redirect-unauthorized"
	}
	return "unknown"
}

// GuardResult pairs the decision with the location the user was trying to
// reach, so an unauthorized redirect can offer a way back after auth.
type GuardResult struct {
	Decision Decision
	From     string
}

// Decide evaluates the guard for a protected page. required may be empty,
// meaning any authenticated role. Checks run strictly in order: loading
// dominates everything, authentication is checked before role membership,
// so an anonymous user always sees the login redirect and never a
// role-mismatch one.
func Decide(s Session, attempted string, required ...Role) GuardResult {
	if s.Loading {
		return GuardResult{Decision: ShowLoading}
	}
	if !s.Authenticated {
		return GuardResult{Decision: RedirectLogin}
	}

	role := s.EffectiveRole()
	if len(required) > 0 && !containsRole(required, role) {
		switch role {
		case RoleAdmin:
			return GuardResult{Decision: RedirectAdminHome}
		case RoleLibrarian:
			return GuardResult{Decision: RedirectLibrarianHome}
		default:
			return GuardResult{Decision: RedirectUnauthorized, From: attempted}
		}
	}
	return GuardResult{Decision: Allow}
}

// DecidePublic is the symmetric guard for public-only pages (login,
// landing): an already-authenticated user is sent to their role's home.
func DecidePublic(s Session) GuardResult {
	if s.Loading {
		return GuardResult{Decision: ShowLoading}
	}
	if s.Authenticated {
		switch s.EffectiveRole() {
		case RoleAdmin:
			return GuardResult{Decision: RedirectAdminHome}
		case RoleLibrarian:
			return GuardResult{Decision: RedirectLibrarianHome}
		default:
			return GuardResult{Decision: RedirectMemberHome}
		}
	}
	return GuardResult{Decision: Allow}
}

func containsRole(roles []Role, r Role) bool {
	for _, candidate := range roles {
		if candidate == r {
			return true
		}
	}
	return false
}
