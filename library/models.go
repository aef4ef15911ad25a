package library

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Role governs which routes and actions a user may reach.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleLibrarian Role = "librarian"
	RoleMember    Role = "member"
)

// ParseRole validates a role string coming from user input or the server.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleLibrarian, RoleMember:
		return Role(s), nil
	}
	return "", fmt.Errorf("invalid role %q", s)
}

// BoolBit is a boolean the server represents as 0/1. It also tolerates
// plain JSON booleans and "0"/"1" strings, which the backend has been
// observed to emit inconsistently.
type BoolBit bool

func (b *BoolBit) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "0", `"0"`, "false", "null":
		*b = false
	case "1", `"1"`, "true":
		*b = true
	default:
		return fmt.Errorf("cannot decode %s as 0/1 boolean", data)
	}
	return nil
}

func (b BoolBit) MarshalJSON() ([]byte, error) {
	if b {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// User is the authenticated principal as reported by the server.
type User struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Role     Role    `json:"role"`
	IsActive BoolBit `json:"is_active"`
}

// Book is one catalog entry. Availability is derived server-side from the
// existence of an open loan; the client never flips it locally.
type Book struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Author    string  `json:"author"`
	Year      *int    `json:"year"`
	Language  *string `json:"language"`
	Available BoolBit `json:"available"`
}

// Loan is one checkout-to-return lifecycle record. User-history rows carry
// the book title as "title"; book-history and ledger rows carry "book_title"
// plus the borrower's name and email.
type Loan struct {
	ID           int64   `json:"id"`
	UserID       int64   `json:"user_id"`
	BookID       int64   `json:"book_id"`
	Title        string  `json:"title,omitempty"`
	BookTitle    string  `json:"book_title,omitempty"`
	UserName     string  `json:"user_name,omitempty"`
	Email        string  `json:"email,omitempty"`
	CheckoutDate string  `json:"checkout_date"`
	ReturnDate   *string `json:"return_date"`
}

// Open reports whether the loan has no recorded return. A missing field,
// JSON null, and an empty string must all count as open.
func (l Loan) Open() bool {
	return l.ReturnDate == nil || *l.ReturnDate == ""
}

// Session is a point-in-time snapshot of the authentication state. Copies
// are handed out by the session store; mutating one has no effect on the
// store.
type Session struct {
	User          *User
	Role          Role
	Authenticated bool
	Loading       bool
	LastError     string
}

// EffectiveRole resolves the role used for authorization decisions: the
// explicit role wins, the embedded user's role is the fallback.
func (s Session) EffectiveRole() Role {
	if s.Role != "" {
		return s.Role
	}
	if s.User != nil {
		return s.User.Role
	}
	return ""
}

// sessionBlob is the durable snapshot written to storage: user and role
// only, never credentials.
type sessionBlob struct {
	User *User `json:"user"`
	Role Role  `json:"role"`
}

func (b sessionBlob) encode() (string, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
