package library

import (
	"context"
	"strings"
)

// AuthController mediates every identity transition. It is the only
// component that mutates the session store.
type AuthController struct {
	api      *Client
	sessions *SessionStore
}

func NewAuthController(api *Client, sessions *SessionStore) *AuthController {
	return &AuthController{api: api, sessions: sessions}
}

type loginResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}

// Login authenticates against POST /login and populates the session store.
// The resolved role is returned so navigation can branch on it.
//
// The login endpoint is allowed to be minimal: when the response carries no
// identity, a follow-up GET /me supplies one. On failure the store keeps
// its prior anonymous state and the server's message is passed through
// verbatim.
func (a *AuthController) Login(ctx context.Context, email, password string) (Role, error) {
	if !strings.Contains(email, "@") {
		return "", invalidInput("email address looks invalid")
	}
	if password == "" {
		return "", invalidInput("password cannot be empty")
	}

	a.sessions.SetLoading(true)
	defer a.sessions.SetLoading(false)

	var res loginResponse
	if err := a.api.post(ctx, "/login", map[string]string{
		"email":    email,
		"password": password,
	}, &res); err != nil {
		if IsKind(err, KindNetwork) {
			a.sessions.RecordError(err.Error())
			return "", err
		}
		// Rejections (401/403 on this endpoint) mean bad credentials, not
		// an expired session.
		rej := authRejected(err.Error(), err)
		a.sessions.RecordError(rej.Message)
		return "", rej
	}

	if res.User != nil {
		if err := a.sessions.Set(*res.User, res.User.Role); err != nil {
			return "", err
		}
		return res.User.Role, nil
	}

	// Minimal login response: resolve the identity ourselves.
	if err := a.ResyncIdentity(ctx); err != nil {
		return "", err
	}
	return a.sessions.Snapshot().EffectiveRole(), nil
}

// ResyncIdentity re-derives the session from GET /me. A 401 is the one
// failure that actively logs the user out; anything else (likely a
// transient fault) leaves the prior session untouched.
func (a *AuthController) ResyncIdentity(ctx context.Context) error {
	var u User
	if err := a.api.get(ctx, "/me", &u); err != nil {
		if IsKind(err, KindNotAuthenticated) {
			if cerr := a.sessions.Clear(); cerr != nil {
				return cerr
			}
			return err
		}
		a.sessions.RecordError(err.Error())
		return err
	}
	return a.sessions.Set(u, u.Role)
}

// Logout invalidates the server-side session. The local session is cleared
// only on server acknowledgment; clearing without confirmation could
// desync from a session that is still valid elsewhere.
func (a *AuthController) Logout(ctx context.Context) error {
	if err := a.api.post(ctx, "/logout", nil, nil); err != nil {
		a.sessions.RecordError(err.Error())
		return err
	}
	return a.sessions.Clear()
}

// Register creates an account. It never touches the session store; the
// caller logs in explicitly afterwards.
func (a *AuthController) Register(ctx context.Context, name, email, password string, role Role) error {
	if strings.TrimSpace(name) == "" {
		return invalidInput("name cannot be empty")
	}
	if !strings.Contains(email, "@") {
		return invalidInput("email address looks invalid")
	}
	if password == "" {
		return invalidInput("password cannot be empty")
	}
	if _, err := ParseRole(string(role)); err != nil {
		return invalidInput(err.Error())
	}

	return a.api.post(ctx, "/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
		"role":     string(role),
	}, nil)
}

type profileResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}

// UpdateProfile edits the current user's name and email via PUT /me and
// merges the server's view back into the session without a full resync.
func (a *AuthController) UpdateProfile(ctx context.Context, name, email string) error {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" {
		return invalidInput("name and email are required")
	}

	var res profileResponse
	if err := a.api.put(ctx, "/me", map[string]string{
		"name":  name,
		"email": email,
	}, &res); err != nil {
		return err
	}

	if res.User != nil {
		return a.sessions.PatchUser(UserPatch{
			Name:  &res.User.Name,
			Email: &res.User.Email,
		})
	}
	return a.sessions.PatchUser(UserPatch{Name: &name, Email: &email})
}

// ChangePassword rotates the current user's password. The session is
// unaffected; the server keeps the cookie valid.
func (a *AuthController) ChangePassword(ctx context.Context, current, next string) error {
	if len(next) < 4 {
		return invalidInput("new password too short")
	}
	return a.api.put(ctx, "/me/password", map[string]string{
		"current_password": current,
		"new_password":     next,
	}, nil)
}
