package library

import (
	"encoding/json"
	"fmt"
	"sync"
)

// sessionKey is the single storage key holding the durable session
// snapshot.
const sessionKey = "auth-library"

// SessionStore is the process-wide source of truth for "who is logged in
// and with what role". Every mutation writes through to the KV store before
// it returns, so a crash-then-reload never observes memory ahead of disk.
//
// Only the auth controller (and the profile-update path via PatchUser)
// mutates it; everything else reads snapshots.
type SessionStore struct {
	mu sync.Mutex
	kv KV
	s  Session
}

// NewSessionStore wraps the given KV. Call Hydrate before first use.
func NewSessionStore(kv KV) *SessionStore {
	return &SessionStore{kv: kv}
}

// Hydrate seeds the store from a persisted snapshot, if one exists. The
// snapshot is trusted optimistically; a follow-up identity resync corrects
// it if the server-side session has expired.
func (ss *SessionStore) Hydrate() error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	raw, ok, err := ss.kv.Get(sessionKey)
	if err != nil {
		return fmt.Errorf("read session snapshot: %w", err)
	}
	if !ok {
		return nil
	}

	var blob sessionBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		// A corrupt snapshot is not worth failing startup over; drop it.
		_ = ss.kv.Delete(sessionKey)
		return nil
	}
	if blob.User == nil {
		return nil
	}

	ss.s.User = blob.User
	ss.s.Role = blob.Role
	ss.s.Authenticated = true
	return nil
}

// Set marks the session authenticated and persists {user, role}. Credentials
// are never written.
func (ss *SessionStore) Set(user User, role Role) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	u := user
	if err := ss.persist(&u, role); err != nil {
		return err
	}
	ss.s.User = &u
	ss.s.Role = role
	ss.s.Authenticated = true
	ss.s.LastError = ""
	return nil
}

// Clear resets to the anonymous state and deletes the persisted snapshot.
func (ss *SessionStore) Clear() error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if err := ss.kv.Delete(sessionKey); err != nil {
		return fmt.Errorf("delete session snapshot: %w", err)
	}
	ss.s = Session{}
	return nil
}

// UserPatch carries the fields a profile edit may change. Nil means
// "leave as is".
type UserPatch struct {
	Name  *string
	Email *string
	Role  *Role
}

// PatchUser merges fields into the current user without forcing a full
// resync, then re-persists. It is a no-op on an anonymous session.
func (ss *SessionStore) PatchUser(p UserPatch) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.s.User == nil {
		return nil
	}
	u := *ss.s.User
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	role := ss.s.Role
	if p.Role != nil {
		u.Role = *p.Role
		role = *p.Role
	}

	if err := ss.persist(&u, role); err != nil {
		return err
	}
	ss.s.User = &u
	ss.s.Role = role
	return nil
}

// SetLoading flips the in-flight marker. Loading state is transient and is
// never persisted.
func (ss *SessionStore) SetLoading(v bool) {
	ss.mu.Lock()
	ss.s.Loading = v
	ss.mu.Unlock()
}

// RecordError stores the last auth failure message for display.
func (ss *SessionStore) RecordError(msg string) {
	ss.mu.Lock()
	ss.s.LastError = msg
	ss.mu.Unlock()
}

// Snapshot returns a copy of the current session. The embedded user is
// copied too, so callers cannot mutate shared state through it.
func (ss *SessionStore) Snapshot() Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	snap := ss.s
	if ss.s.User != nil {
		u := *ss.s.User
		snap.User = &u
	}
	return snap
}

// persist writes the durable snapshot. Caller holds the lock.
func (ss *SessionStore) persist(user *User, role Role) error {
	raw, err := sessionBlob{User: user, Role: role}.encode()
	if err != nil {
		return fmt.Errorf("encode session snapshot: %w", err)
	}
	if err := ss.kv.Set(sessionKey, raw); err != nil {
		return fmt.Errorf("write session snapshot: %w", err)
	}
	return nil
}
