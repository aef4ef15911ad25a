package library_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"library-client/apitest"
	"library-client/library"
)

// env is one client process: its own cookie jar, session store, and
// controllers, pointed at a shared backend. Tests that need two users
// acting at once build two envs over the same backend.
type env struct {
	backend  *apitest.Server
	sessions *library.SessionStore
	auth     *library.AuthController
	history  *library.HistoryController
	catalog  *library.CatalogController
	admin    *library.AdminController
}

func newBackend(t *testing.T) (*apitest.Server, *httptest.Server) {
	t.Helper()
	backend := apitest.New()
	ts := httptest.NewServer(backend)
	t.Cleanup(ts.Close)
	return backend, ts
}

func newEnv(t *testing.T, backend *apitest.Server, ts *httptest.Server) *env {
	t.Helper()

	api, err := library.NewClient(library.Config{
		APIURL:      ts.URL,
		HTTPTimeout: 5 * time.Second,
	}, nil)
	require.NoError(t, err)

	e := &env{
		backend:  backend,
		sessions: library.NewSessionStore(library.NewMemKV()),
	}
	e.auth = library.NewAuthController(api, e.sessions)
	e.history = library.NewHistoryController(api)
	e.catalog = library.NewCatalogController(api, e.history)
	e.admin = library.NewAdminController(api)
	return e
}

// newTestEnv is the common single-client setup.
func newTestEnv(t *testing.T) *env {
	t.Helper()
	backend, ts := newBackend(t)
	return newEnv(t, backend, ts)
}

func (e *env) login(t *testing.T, email, password string) library.Role {
	t.Helper()
	role, err := e.auth.Login(context.Background(), email, password)
	require.NoError(t, err)
	return role
}
