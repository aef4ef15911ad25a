// Package apitest is an in-memory stand-in for the library REST API. The
// test suite runs the client against it via httptest, and cmd/fakeapi
// serves it for manual runs. It mirrors the real backend's routes, response
// envelopes, and error messages; it is a test double, not a server
// implementation.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"library-client/library"
)

const sessionCookie = "session"

type account struct {
	library.User
	hash []byte
}

// Server holds the whole backend state behind one mutex. Knobs like
// MinimalLogin exist so tests can drive client paths a well-behaved
// backend rarely takes.
type Server struct {
	mu       sync.Mutex
	users    map[int64]*account
	books    map[int64]*library.Book
	loans    []*library.Loan
	sessions map[string]int64 // cookie value -> user id

	nextUserID  int64
	nextBookID  int64
	nextLoanID  int64
	nextSession int64

	requests []string

	// MinimalLogin makes POST /login acknowledge without an identity, so
	// the client must follow up with GET /me.
	MinimalLogin bool
	// FailLogout makes POST /logout report a server fault.
	FailLogout bool

	router chi.Router
}

func New() *Server {
	s := &Server{
		users:    make(map[int64]*account),
		books:    make(map[int64]*library.Book),
		sessions: make(map[string]int64),
	}

	r := chi.NewRouter()
	r.Post("/login", s.handleLogin)
	r.Get("/me", s.handleMe)
	r.Put("/me", s.handleUpdateMe)
	r.Put("/me/password", s.handleChangePassword)
	r.Post("/logout", s.handleLogout)
	r.Post("/register", s.handleRegister)

	r.Get("/books", s.handleListBooks)
	r.Get("/books/{bookID}", s.handleGetBook)
	r.Post("/books/add", s.handleAddBook)
	r.Put("/books/update/{bookID}", s.handleUpdateBook)
	r.Delete("/books/delete/{bookID}", s.handleDeleteBook)
	r.Post("/books/checkout/{bookID}", s.handleCheckout)
	r.Post("/books/return/{entryID}/{bookID}", s.handleReturnByEntry)
	r.Post("/books/return/{bookID}", s.handleReturnByBook)
	r.Get("/books/history/{bookID}", s.handleBookHistory)

	r.Get("/users/history/{userID}", s.handleUserHistory)

	r.Get("/admin/history", s.handleLedger)
	r.Get("/admin/users", s.handleListUsers)
	r.Post("/admin/users", s.handleCreateUser)
	r.Put("/admin/users/{userID}/role", s.handleSetRole)
	r.Put("/admin/users/{userID}/status", s.handleSetStatus)
	r.Put("/admin/users/{userID}/password", s.handleSetPassword)
	r.Get("/admin/dashboard", s.handleDashboard)

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	s.mu.Unlock()
	s.router.ServeHTTP(w, r)
}

// Requests returns every "METHOD /path" seen so far, in order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

// ResetRequests clears the request log without touching state.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	s.requests = nil
	s.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Seeding
// ---------------------------------------------------------------------------

// SeedUser creates an account directly. MinCost hashing keeps test setup
// cheap.
func (s *Server) SeedUser(name, email, password string, role library.Role, active bool) int64 {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	s.users[s.nextUserID] = &account{
		User: library.User{
			ID:       s.nextUserID,
			Name:     name,
			Email:    email,
			Role:     role,
			IsActive: library.BoolBit(active),
		},
		hash: hash,
	}
	return s.nextUserID
}

// SeedBook creates an available catalog entry directly.
func (s *Server) SeedBook(title, author string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextBookID++
	s.books[s.nextBookID] = &library.Book{
		ID:        s.nextBookID,
		Title:     title,
		Author:    author,
		Available: true,
	}
	return s.nextBookID
}

// OpenLoans counts loans with no return date, for assertions.
func (s *Server) OpenLoans() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.loans {
		if l.Open() {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var acct *account
	for _, a := range s.users {
		if a.Email == body.Email {
			acct = a
			break
		}
	}
	if acct == nil || bcrypt.CompareHashAndPassword(acct.hash, []byte(body.Password)) != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if !acct.IsActive {
		writeMessage(w, http.StatusForbidden, "Account is deactivated. Contact admin.")
		return
	}

	s.nextSession++
	sid := fmt.Sprintf("sid-%d", s.nextSession)
	s.sessions[sid] = acct.ID
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: sid, Path: "/"})

	if s.MinimalLogin {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Login successful"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    acct.User,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.currentUser(r)
	if acct == nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, acct.User)
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.currentUser(r)
	if acct == nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if body.Name == "" || body.Email == "" {
		writeMessage(w, http.StatusBadRequest, "Name and email are required")
		return
	}
	for _, other := range s.users {
		if other.ID != acct.ID && other.Email == body.Email {
			writeMessage(w, http.StatusBadRequest, "Email already in use")
			return
		}
	}
	acct.Name = body.Name
	acct.Email = body.Email
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated",
		"user":    acct.User,
	})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Current string `json:"current_password"`
		New     string `json:"new_password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.currentUser(r)
	if acct == nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if len(body.New) < 4 {
		writeMessage(w, http.StatusBadRequest, "New password too short")
		return
	}
	if bcrypt.CompareHashAndPassword(acct.hash, []byte(body.Current)) != nil {
		writeMessage(w, http.StatusBadRequest, "Current password is incorrect")
		return
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte(body.New), bcrypt.MinCost)
	acct.hash = hash
	writeMessage(w, http.StatusOK, "Password updated")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentUser(r) == nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if s.FailLogout {
		writeMessage(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		delete(s.sessions, c.Value)
	}
	writeMessage(w, http.StatusOK, "Logged out")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.users {
		if a.Email == body.Email {
			writeMessage(w, http.StatusBadRequest, "Email already registered")
			return
		}
	}
	role, err := library.ParseRole(body.Role)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid role")
		return
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.MinCost)
	s.nextUserID++
	s.users[s.nextUserID] = &account{
		User: library.User{
			ID:       s.nextUserID,
			Name:     body.Name,
			Email:    body.Email,
			Role:     role,
			IsActive: true,
		},
		hash: hash,
	}
	writeMessage(w, http.StatusCreated, "User registered")
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentUser(r) == nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	books := make([]*library.Book, 0, len(s.books))
	for id := int64(1); id <= s.nextBookID; id++ {
		if b, ok := s.books[id]; ok {
			books = append(books, b)
		}
	}
	writeJSON(w, http.StatusOK, books)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := param(r, "bookID")
	b, ok := s.books[id]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Book not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Book retrieved", "data": b})
}

func (s *Server) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var body library.BookInput
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.requireRole(w, r, library.RoleAdmin) {
		return
	}
	if body.Title == "" || body.Author == "" {
		writeMessage(w, http.StatusBadRequest, "Missing field")
		return
	}
	s.nextBookID++
	s.books[s.nextBookID] = &library.Book{
		ID:        s.nextBookID,
		Title:     body.Title,
		Author:    body.Author,
		Year:      body.Year,
		Language:  body.Language,
		Available: true,
	}
	writeMessage(w, http.StatusCreated, "Book added")
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	var body library.BookInput
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.requireRole(w, r, library.RoleAdmin) {
		return
	}
	b, ok := s.books[param(r, "bookID")]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Book not found")
		return
	}
	b.Title = body.Title
	b.Author = body.Author
	b.Year = body.Year
	b.Language = body.Language
	writeMessage(w, http.StatusOK, "Book updated")
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.requireRole(w, r, library.RoleAdmin) {
		return
	}
	id := param(r, "bookID")
	if _, ok := s.books[id]; !ok {
		writeMessage(w, http.StatusNotFound, "Book not found")
		return
	}
	delete(s.books, id)
	writeMessage(w, http.StatusOK, "Book deleted successfully")
}

// ---------------------------------------------------------------------------
// Circulation
// ---------------------------------------------------------------------------

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.currentUser(r)
	if acct == nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	b, ok := s.books[param(r, "bookID")]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Book not found")
		return
	}
	if !b.Available {
		writeMessage(w, http.StatusBadRequest, "Book is not available")
		return
	}

	s.nextLoanID++
	s.loans = append(s.loans, &library.Loan{
		ID:           s.nextLoanID,
		UserID:       acct.ID,
		BookID:       b.ID,
		CheckoutDate: time.Now().Format(time.RFC3339),
	})
	b.Available = false
	writeMessage(w, http.StatusOK, "Book checked out")
}

func (s *Server) handleReturnByEntry(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentUser(r) == nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	entryID, bookID := param(r, "entryID"), param(r, "bookID")

	for _, l := range s.loans {
		if l.ID == entryID && l.BookID == bookID && l.Open() {
			now := time.Now().Format(time.RFC3339)
			l.ReturnDate = &now
			if b, ok := s.books[bookID]; ok {
				b.Available = true
			}
			writeMessage(w, http.StatusOK, "Book returned")
			return
		}
	}
	writeMessage(w, http.StatusBadRequest, "No open checkout entry for this book")
}

func (s *Server) handleReturnByBook(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentUser(r) == nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	bookID := param(r, "bookID")

	// Close the most recent open loan on the book, regardless of borrower.
	for i := len(s.loans) - 1; i >= 0; i-- {
		l := s.loans[i]
		if l.BookID == bookID && l.Open() {
			now := time.Now().Format(time.RFC3339)
			l.ReturnDate = &now
			if b, ok := s.books[bookID]; ok {
				b.Available = true
			}
			writeMessage(w, http.StatusOK, "Book returned")
			return
		}
	}
	writeMessage(w, http.StatusBadRequest, "Book is not checked out")
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

func (s *Server) handleUserHistory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.currentUser(r)
	if acct == nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	userID := param(r, "userID")
	if acct.Role != library.RoleAdmin && acct.ID != userID {
		writeMessage(w, http.StatusForbidden, "Forbidden")
		return
	}

	rows := make([]library.Loan, 0)
	for _, l := range s.loans {
		if l.UserID != userID {
			continue
		}
		row := *l
		if b, ok := s.books[l.BookID]; ok {
			row.Title = b.Title
		}
		rows = append(rows, row)
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleBookHistory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentUser(r) == nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	bookID := param(r, "bookID")

	rows := make([]library.Loan, 0)
	for _, l := range s.loans {
		if l.BookID != bookID {
			continue
		}
		rows = append(rows, s.ledgerRow(l))
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.requireRole(w, r, library.RoleAdmin) {
		return
	}
	rows := make([]library.Loan, 0, len(s.loans))
	for _, l := range s.loans {
		rows = append(rows, s.ledgerRow(l))
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) ledgerRow(l *library.Loan) library.Loan {
	row := *l
	if b, ok := s.books[l.BookID]; ok {
		row.BookTitle = b.Title
	}
	if u, ok := s.users[l.UserID]; ok {
		row.UserName = u.Name
		row.Email = u.Email
	}
	return row
}

// ---------------------------------------------------------------------------
// Admin users
// ---------------------------------------------------------------------------

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.requireRole(w, r, library.RoleAdmin) {
		return
	}
	users := make([]library.User, 0, len(s.users))
	for id := int64(1); id <= s.nextUserID; id++ {
		if a, ok := s.users[id]; ok {
			users = append(users, a.User)
		}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.requireRole(w, r, library.RoleAdmin) {
		return
	}
	if body.Name == "" || body.Email == "" || body.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	for _, a := range s.users {
		if a.Email == body.Email {
			writeMessage(w, http.StatusBadRequest, "Email already registered")
			return
		}
	}
	if body.Role == "" {
		body.Role = string(library.RoleMember)
	}
	role, err := library.ParseRole(body.Role)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid role")
		return
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.MinCost)
	s.nextUserID++
	s.users[s.nextUserID] = &account{
		User: library.User{
			ID: s.nextUserID, Name: body.Name, Email: body.Email,
			Role: role, IsActive: true,
		},
		hash: hash,
	}
	writeMessage(w, http.StatusCreated, "User created")
}

func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role string `json:"role"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.requireRole(w, r, library.RoleAdmin) {
		return
	}
	role, err := library.ParseRole(body.Role)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid role")
		return
	}
	a, ok := s.users[param(r, "userID")]
	if !ok {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	a.Role = role
	writeMessage(w, http.StatusOK, "Role updated")
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IsActive bool `json:"is_active"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.requireRole(w, r, library.RoleAdmin) {
		return
	}
	a, ok := s.users[param(r, "userID")]
	if !ok {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	a.IsActive = library.BoolBit(body.IsActive)
	writeMessage(w, http.StatusOK, "Status updated")
}

func (s *Server) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.requireRole(w, r, library.RoleAdmin) {
		return
	}
	if len(body.Password) < 4 {
		writeMessage(w, http.StatusBadRequest, "Password too short")
		return
	}
	a, ok := s.users[param(r, "userID")]
	if !ok {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.MinCost)
	a.hash = hash
	writeMessage(w, http.StatusOK, "Password reset")
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.requireRole(w, r, library.RoleAdmin) {
		return
	}
	active := 0
	for _, l := range s.loans {
		if l.Open() {
			active++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"totals": map[string]int{
			"total_books":  len(s.books),
			"total_users":  len(s.users),
			"active_loans": active,
		},
		"trend_7d":        []any{},
		"top_books":       []any{},
		"top_users":       []any{},
		"avg_borrow_days": 0,
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// currentUser resolves the session cookie. Caller holds the lock.
func (s *Server) currentUser(r *http.Request) *account {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil
	}
	id, ok := s.sessions[c.Value]
	if !ok {
		return nil
	}
	return s.users[id]
}

// requireRole writes a 401/403 and returns false unless the request's user
// has the role. Caller holds the lock.
func (s *Server) requireRole(w http.ResponseWriter, r *http.Request, role library.Role) bool {
	acct := s.currentUser(r)
	if acct == nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return false
	}
	if acct.Role != role {
		writeMessage(w, http.StatusForbidden, "Forbidden")
		return false
	}
	return true
}

func param(r *http.Request, name string) int64 {
	v, _ := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}
