package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-client/library"
)

const stateFile = "client.db"

// app bundles the wired-up controllers behind the prompt loop.
type app struct {
	sessions *library.SessionStore
	auth     *library.AuthController
	catalog  *library.CatalogController
	history  *library.HistoryController
	admin    *library.AdminController
}

func main() {
	var (
		apiURL  string
		dataDir string
		debug   bool
	)

	root := &cobra.Command{
		Use:   "library-client",
		Short: "Terminal client for the library management API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := library.LoadConfig()
			if err != nil {
				return err
			}
			if apiURL != "" {
				cfg.APIURL = apiURL
			}
			if dataDir != "" {
				cfg.DataDir = dataDir
			}
			if debug {
				cfg.Debug = true
			}
			return run(cfg)
		},
	}
	root.Flags().StringVar(&apiURL, "api", "", "base URL of the library API (overrides LIBRARY_API_URL)")
	root.Flags().StringVar(&dataDir, "data-dir", "", "directory for client state (overrides LIBRARY_DATA_DIR)")
	root.Flags().BoolVar(&debug, "debug", false, "log every API request")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg library.Config) error {
	store, err := library.OpenStore(filepath.Join(cfg.DataDir, stateFile))
	if err != nil {
		return fmt.Errorf("open client state: %w", err)
	}
	defer store.Close()

	api, err := library.NewClient(cfg, slog.Default())
	if err != nil {
		return err
	}

	sessions := library.NewSessionStore(store)
	if err := sessions.Hydrate(); err != nil {
		return err
	}

	a := &app{
		sessions: sessions,
		auth:     library.NewAuthController(api, sessions),
		history:  library.NewHistoryController(api),
		admin:    library.NewAdminController(api),
	}
	a.catalog = library.NewCatalogController(api, a.history)

	ctx := context.Background()

	// Trust-but-verify: a hydrated snapshot is checked against the server.
	// Only a definite 401 logs us out; a dead network keeps the local view.
	if sessions.Snapshot().Authenticated {
		if err := a.auth.ResyncIdentity(ctx); err != nil {
			if library.IsKind(err, library.KindNotAuthenticated) {
				fmt.Println("Stored session has expired; please login again.")
			} else {
				fmt.Printf("Warning: could not verify stored session: %v\n", err)
			}
		}
	}

	a.shell(ctx)
	return nil
}

func (a *app) shell(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("Library client. Available commands:")
	fmt.Println("  Session: login, logout, whoami, register, profile, password")
	fmt.Println("  Books: books, book, search, toggle, add book, update book, delete book")
	fmt.Println("  History: my history, book history, ledger")
	fmt.Println("  Librarian: desk toggle")
	fmt.Println("  Admin: users, create user, set role, set status, reset password, dashboard")
	fmt.Println("  System: exit")

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		cmd := strings.TrimSpace(scanner.Text())

		switch cmd {
		case "login":
			a.handleLogin(ctx, scanner)
		case "logout":
			a.handleLogout(ctx)
		case "whoami":
			a.handleWhoami()
		case "register":
			a.handleRegister(ctx, scanner)
		case "profile":
			a.handleProfile(ctx, scanner)
		case "password":
			a.handlePassword(ctx, scanner)
		case "books":
			a.handleListBooks(ctx)
		case "book":
			a.handleShowBook(ctx, scanner)
		case "search":
			a.handleSearch(ctx, scanner)
		case "toggle":
			a.handleToggle(ctx, scanner)
		case "desk toggle":
			a.handleDeskToggle(ctx, scanner)
		case "add book":
			a.handleAddBook(ctx, scanner)
		case "update book":
			a.handleUpdateBook(ctx, scanner)
		case "delete book":
			a.handleDeleteBook(ctx, scanner)
		case "my history":
			a.handleMyHistory(ctx)
		case "book history":
			a.handleBookHistory(ctx, scanner)
		case "ledger":
			a.handleLedger(ctx)
		case "users":
			a.handleListUsers(ctx)
		case "create user":
			a.handleCreateUser(ctx, scanner)
		case "set role":
			a.handleSetRole(ctx, scanner)
		case "set status":
			a.handleSetStatus(ctx, scanner)
		case "reset password":
			a.handleResetPassword(ctx, scanner)
		case "dashboard":
			a.handleDashboard(ctx)
		case "exit":
			fmt.Println("Goodbye!")
			return
		case "":
			continue
		default:
			fmt.Println("Unknown command. Type one of the available commands listed above.")
		}
	}
}

// guard evaluates the route guard for a page and prints the redirect a
// browser would follow. Returns true when the page may render.
func (a *app) guard(page string, roles ...library.Role) bool {
	res := library.Decide(a.sessions.Snapshot(), page, roles...)
	switch res.Decision {
	case library.Allow:
		return true
	case library.ShowLoading:
		fmt.Println("Loading...")
	case library.RedirectLogin:
		fmt.Println("Please login first.")
	case library.RedirectAdminHome:
		fmt.Println("Redirected to the admin dashboard (page not for admins).")
	case library.RedirectLibrarianHome:
		fmt.Println("Redirected to the librarian dashboard (page not for librarians).")
	default:
		fmt.Printf("Unauthorized (attempted %s).\n", res.From)
	}
	return false
}

// readPassword securely reads a password with masking
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println()
	return strings.TrimSpace(string(bytePassword)), nil
}

func prompt(sc *bufio.Scanner, label string) (string, bool) {
	fmt.Print(label)
	if !sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(sc.Text()), true
}

func promptInt64(sc *bufio.Scanner, label string) (int64, bool) {
	raw, ok := prompt(sc, label)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		fmt.Printf("Invalid number: %s\n", raw)
		return 0, false
	}
	return id, true
}

// ---------------------------------------------------------------------------
// Session commands
// ---------------------------------------------------------------------------

func (a *app) handleLogin(ctx context.Context, sc *bufio.Scanner) {
	if res := library.DecidePublic(a.sessions.Snapshot()); res.Decision != library.Allow {
		fmt.Println("Already logged in; logout first.")
		return
	}

	email, ok := prompt(sc, "Email: ")
	if !ok {
		return
	}
	password, err := readPassword("Password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}

	role, err := a.auth.Login(ctx, email, password)
	if err != nil {
		fmt.Printf("Login failed: %v\n", err)
		return
	}

	// Navigation branches on the resolved role, like the SPA does.
	switch role {
	case library.RoleAdmin:
		fmt.Println("Logged in. Welcome to the admin dashboard.")
	case library.RoleLibrarian:
		fmt.Println("Logged in. Welcome to the librarian dashboard.")
	default:
		fmt.Println("Logged in.")
	}
}

func (a *app) handleLogout(ctx context.Context) {
	if err := a.auth.Logout(ctx); err != nil {
		fmt.Printf("Logout failed: %v (still logged in)\n", err)
		return
	}
	a.history.Invalidate()
	fmt.Println("Logged out.")
}

func (a *app) handleWhoami() {
	s := a.sessions.Snapshot()
	if !s.Authenticated {
		fmt.Println("Not logged in.")
		return
	}
	fmt.Printf("%s <%s> (ID %d, role %s)\n", s.User.Name, s.User.Email, s.User.ID, s.EffectiveRole())
}

func (a *app) handleRegister(ctx context.Context, sc *bufio.Scanner) {
	name, ok := prompt(sc, "Name: ")
	if !ok {
		return
	}
	email, ok := prompt(sc, "Email: ")
	if !ok {
		return
	}
	password, err := readPassword("Password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}
	roleStr, ok := prompt(sc, "Role (admin/librarian/member): ")
	if !ok {
		return
	}

	if err := a.auth.Register(ctx, name, email, password, library.Role(roleStr)); err != nil {
		fmt.Printf("Registration failed: %v\n", err)
		return
	}
	fmt.Println("Registered. Login to continue.")
}

func (a *app) handleProfile(ctx context.Context, sc *bufio.Scanner) {
	if !a.guard("/profile") {
		return
	}
	name, ok := prompt(sc, "New name: ")
	if !ok {
		return
	}
	email, ok := prompt(sc, "New email: ")
	if !ok {
		return
	}
	if err := a.auth.UpdateProfile(ctx, name, email); err != nil {
		fmt.Printf("Error updating profile: %v\n", err)
		return
	}
	fmt.Println("Profile updated.")
}

func (a *app) handlePassword(ctx context.Context, sc *bufio.Scanner) {
	if !a.guard("/profile") {
		return
	}
	current, err := readPassword("Current password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}
	next, err := readPassword("New password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}
	if err := a.auth.ChangePassword(ctx, current, next); err != nil {
		fmt.Printf("Error changing password: %v\n", err)
		return
	}
	fmt.Println("Password updated.")
}

// ---------------------------------------------------------------------------
// Catalog commands
// ---------------------------------------------------------------------------

func (a *app) handleListBooks(ctx context.Context) {
	if !a.guard("/books") {
		return
	}
	books, err := a.catalog.Books(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	printBooks(books)
}

func (a *app) handleShowBook(ctx context.Context, sc *bufio.Scanner) {
	if !a.guard("/books") {
		return
	}
	bookID, ok := promptInt64(sc, "Book ID: ")
	if !ok {
		return
	}
	book, err := a.catalog.Book(ctx, bookID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if book == nil {
		fmt.Printf("Book %d not found.\n", bookID)
		return
	}
	printBooks([]library.Book{*book})
}

func (a *app) handleSearch(ctx context.Context, sc *bufio.Scanner) {
	if !a.guard("/books") {
		return
	}
	query, ok := prompt(sc, "Query: ")
	if !ok {
		return
	}
	books, err := a.catalog.Search(ctx, query)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(books) == 0 {
		fmt.Printf("No books found matching '%s'.\n", query)
		return
	}
	printBooks(books)
}

func (a *app) handleToggle(ctx context.Context, sc *bufio.Scanner) {
	if !a.guard("/books") {
		return
	}
	bookID, ok := promptInt64(sc, "Book ID: ")
	if !ok {
		return
	}

	book, found := a.findBook(ctx, bookID)
	if !found {
		fmt.Printf("Book %d not found.\n", bookID)
		return
	}

	s := a.sessions.Snapshot()
	res, err := a.catalog.ToggleLoan(ctx, book, s.User.ID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if res.Action == "checkout" {
		fmt.Printf("Checked out '%s'.\n", book.Title)
	} else {
		fmt.Printf("Returned '%s' (entry %d).\n", book.Title, res.EntryID)
	}
}

func (a *app) handleDeskToggle(ctx context.Context, sc *bufio.Scanner) {
	if !a.guard("/librarian/desk", library.RoleLibrarian) {
		return
	}
	bookID, ok := promptInt64(sc, "Book ID: ")
	if !ok {
		return
	}

	book, found := a.findBook(ctx, bookID)
	if !found {
		fmt.Printf("Book %d not found.\n", bookID)
		return
	}

	res, err := a.catalog.ToggleLoanByBook(ctx, book)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if res.Action == "checkout" {
		fmt.Printf("Checked out '%s'.\n", book.Title)
	} else {
		fmt.Printf("Returned '%s'.\n", book.Title)
	}
}

func (a *app) handleAddBook(ctx context.Context, sc *bufio.Scanner) {
	if !a.guard("/admin/books", library.RoleAdmin) {
		return
	}
	in, ok := promptBookInput(sc)
	if !ok {
		return
	}
	if err := a.catalog.Add(ctx, in); err != nil {
		fmt.Printf("Error adding book: %v\n", err)
		return
	}
	fmt.Println("Book added.")
}

func (a *app) handleUpdateBook(ctx context.Context, sc *bufio.Scanner) {
	if !a.guard("/admin/books", library.RoleAdmin) {
		return
	}
	bookID, ok := promptInt64(sc, "Book ID: ")
	if !ok {
		return
	}
	in, ok := promptBookInput(sc)
	if !ok {
		return
	}
	if err := a.catalog.Update(ctx, bookID, in); err != nil {
		fmt.Printf("Error updating book: %v\n", err)
		return
	}
	fmt.Println("Book updated.")
}

func (a *app) handleDeleteBook(ctx context.Context, sc *bufio.Scanner) {
	if !a.guard("/admin/books", library.RoleAdmin) {
		return
	}
	bookID, ok := promptInt64(sc, "Book ID: ")
	if !ok {
		return
	}
	if err := a.catalog.Delete(ctx, bookID); err != nil {
		fmt.Printf("Error deleting book: %v\n", err)
		return
	}
	fmt.Println("Book deleted.")
}

// ---------------------------------------------------------------------------
// History commands
// ---------------------------------------------------------------------------

func (a *app) handleMyHistory(ctx context.Context) {
	if !a.guard("/history") {
		return
	}
	s := a.sessions.Snapshot()
	items, err := a.history.UserHistory(ctx, s.User.ID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	printLoans(items)
}

func (a *app) handleBookHistory(ctx context.Context, sc *bufio.Scanner) {
	if !a.guard("/history") {
		return
	}
	bookID, ok := promptInt64(sc, "Book ID: ")
	if !ok {
		return
	}
	items, err := a.history.BookHistory(ctx, bookID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	printLoans(items)
}

func (a *app) handleLedger(ctx context.Context) {
	if !a.guard("/admin/history", library.RoleAdmin) {
		return
	}
	items, err := a.history.Ledger(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	printLoans(items)
}

// ---------------------------------------------------------------------------
// Admin commands
// ---------------------------------------------------------------------------

func (a *app) handleListUsers(ctx context.Context) {
	if !a.guard("/admin/users", library.RoleAdmin) {
		return
	}
	users, err := a.admin.Users(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("%-5s %-25s %-30s %-10s %-8s\n", "ID", "Name", "Email", "Role", "Active")
	fmt.Println(strings.Repeat("-", 82))
	for _, u := range users {
		active := "yes"
		if !u.IsActive {
			active = "no"
		}
		fmt.Printf("%-5d %-25s %-30s %-10s %-8s\n",
			u.ID, truncateString(u.Name, 25), truncateString(u.Email, 30), u.Role, active)
	}
}

func (a *app) handleCreateUser(ctx context.Context, sc *bufio.Scanner) {
	if !a.guard("/admin/users", library.RoleAdmin) {
		return
	}
	name, ok := prompt(sc, "Name: ")
	if !ok {
		return
	}
	email, ok := prompt(sc, "Email: ")
	if !ok {
		return
	}
	password, err := readPassword(fmt.Sprintf("Password for %s: ", name))
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}
	roleStr, ok := prompt(sc, "Role (admin/librarian/member, empty for member): ")
	if !ok {
		return
	}
	if err := a.admin.CreateUser(ctx, name, email, password, library.Role(roleStr)); err != nil {
		fmt.Printf("Error creating user: %v\n", err)
		return
	}
	fmt.Println("User created.")
}

func (a *app) handleSetRole(ctx context.Context, sc *bufio.Scanner) {
	if !a.guard("/admin/users", library.RoleAdmin) {
		return
	}
	userID, ok := promptInt64(sc, "User ID: ")
	if !ok {
		return
	}
	roleStr, ok := prompt(sc, "New role: ")
	if !ok {
		return
	}
	if err := a.admin.SetUserRole(ctx, userID, library.Role(roleStr)); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Role updated.")
}

func (a *app) handleSetStatus(ctx context.Context, sc *bufio.Scanner) {
	if !a.guard("/admin/users", library.RoleAdmin) {
		return
	}
	userID, ok := promptInt64(sc, "User ID: ")
	if !ok {
		return
	}
	answer, ok := prompt(sc, "Active? (y/n): ")
	if !ok {
		return
	}
	active := strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes")
	if err := a.admin.SetUserActive(ctx, userID, active); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Status updated.")
}

func (a *app) handleResetPassword(ctx context.Context, sc *bufio.Scanner) {
	if !a.guard("/admin/users", library.RoleAdmin) {
		return
	}
	userID, ok := promptInt64(sc, "User ID: ")
	if !ok {
		return
	}
	password, err := readPassword("New password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}
	if err := a.admin.ResetUserPassword(ctx, userID, password); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Password reset.")
}

func (a *app) handleDashboard(ctx context.Context) {
	if !a.guard("/admin/dashboard", library.RoleAdmin) {
		return
	}
	stats, err := a.admin.Dashboard(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Books: %d | Users: %d | Active loans: %d\n",
		stats.Totals.TotalBooks, stats.Totals.TotalUsers, stats.Totals.ActiveLoans)
}

// ---------------------------------------------------------------------------
// Output helpers
// ---------------------------------------------------------------------------

func (a *app) findBook(ctx context.Context, bookID int64) (library.Book, bool) {
	books := a.catalog.CachedBooks()
	if books == nil {
		fetched, err := a.catalog.Books(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return library.Book{}, false
		}
		books = fetched
	}
	for _, b := range books {
		if b.ID == bookID {
			return b, true
		}
	}
	return library.Book{}, false
}

func promptBookInput(sc *bufio.Scanner) (library.BookInput, bool) {
	title, ok := prompt(sc, "Title: ")
	if !ok {
		return library.BookInput{}, false
	}
	author, ok := prompt(sc, "Author: ")
	if !ok {
		return library.BookInput{}, false
	}
	yearStr, ok := prompt(sc, "Year (optional): ")
	if !ok {
		return library.BookInput{}, false
	}
	language, ok := prompt(sc, "Language (optional): ")
	if !ok {
		return library.BookInput{}, false
	}

	in := library.BookInput{Title: title, Author: author}
	if yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			fmt.Printf("Invalid year: %s\n", yearStr)
			return library.BookInput{}, false
		}
		in.Year = &year
	}
	if language != "" {
		in.Language = &language
	}
	return in, true
}

func printBooks(books []library.Book) {
	if len(books) == 0 {
		fmt.Println("No books in the catalog.")
		return
	}
	fmt.Printf("%-5s %-35s %-25s %-6s %-10s %s\n", "ID", "Title", "Author", "Year", "Language", "Available")
	fmt.Println(strings.Repeat("-", 95))
	for _, b := range books {
		year, language := "", ""
		if b.Year != nil {
			year = strconv.Itoa(*b.Year)
		}
		if b.Language != nil {
			language = *b.Language
		}
		avail := "Yes"
		if !b.Available {
			avail = "No"
		}
		fmt.Printf("%-5d %-35s %-25s %-6s %-10s %s\n",
			b.ID, truncateString(b.Title, 35), truncateString(b.Author, 25), year, language, avail)
	}
}

func printLoans(items []library.Loan) {
	if len(items) == 0 {
		fmt.Println("No history entries.")
		return
	}
	fmt.Printf("%-6s %-8s %-30s %-22s %-22s %s\n", "Entry", "Book", "Title", "Checked out", "Returned", "Borrower")
	fmt.Println(strings.Repeat("-", 115))
	for _, l := range items {
		title := l.Title
		if title == "" {
			title = l.BookTitle
		}
		returned := "open"
		if !l.Open() {
			returned = *l.ReturnDate
		}
		borrower := l.UserName
		if borrower == "" && l.UserID != 0 {
			borrower = fmt.Sprintf("ID %d", l.UserID)
		}
		fmt.Printf("%-6d %-8d %-30s %-22s %-22s %s\n",
			l.ID, l.BookID, truncateString(title, 30),
			truncateString(l.CheckoutDate, 22), truncateString(returned, 22), borrower)
	}
}

func truncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	return s[:maxLength-3] + "..."
}
