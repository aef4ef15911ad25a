package library

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// CatalogController owns the book list and the checkout/return toggle. The
// server is the source of truth: every mutation refetches the catalog
// instead of reconciling locally.
type CatalogController struct {
	api     *Client
	history *HistoryController

	mu    sync.Mutex
	items []Book
}

func NewCatalogController(api *Client, history *HistoryController) *CatalogController {
	return &CatalogController{api: api, history: history}
}

// Books fetches and caches the catalog.
func (c *CatalogController) Books(ctx context.Context) ([]Book, error) {
	var items []Book
	if err := c.api.get(ctx, "/books", &items); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
	return items, nil
}

// CachedBooks returns the last fetched catalog without a network call.
func (c *CatalogController) CachedBooks() []Book {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items
}

// Book fetches a single catalog entry.
func (c *CatalogController) Book(ctx context.Context, id int64) (*Book, error) {
	var res struct {
		Message string `json:"message"`
		Data    *Book  `json:"data"`
	}
	if err := c.api.get(ctx, fmt.Sprintf("/books/%d", id), &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// Search filters the cached catalog by title or author, fetching it first
// if this session never has.
func (c *CatalogController) Search(ctx context.Context, query string) ([]Book, error) {
	c.mu.Lock()
	items := c.items
	c.mu.Unlock()

	if items == nil {
		fetched, err := c.Books(ctx)
		if err != nil {
			return nil, err
		}
		items = fetched
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items, nil
	}
	var matched []Book
	for _, b := range items {
		if strings.Contains(strings.ToLower(b.Title), q) ||
			strings.Contains(strings.ToLower(b.Author), q) {
			matched = append(matched, b)
		}
	}
	return matched, nil
}

// BookInput carries the editable fields of a catalog entry.
type BookInput struct {
	Title    string  `json:"title"`
	Author   string  `json:"author"`
	Year     *int    `json:"year"`
	Language *string `json:"language"`
}

// Add creates a book (admin) and republishes the catalog.
func (c *CatalogController) Add(ctx context.Context, in BookInput) error {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Author) == "" {
		return invalidInput("title and author are required")
	}
	if err := c.api.post(ctx, "/books/add", in, nil); err != nil {
		return err
	}
	_, _ = c.Books(ctx)
	return nil
}

// Update edits a book (admin) and republishes the catalog.
func (c *CatalogController) Update(ctx context.Context, id int64, in BookInput) error {
	if id == 0 {
		return invalidInput("invalid book")
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Author) == "" {
		return invalidInput("title and author are required")
	}
	if err := c.api.put(ctx, fmt.Sprintf("/books/update/%d", id), in, nil); err != nil {
		return err
	}
	_, _ = c.Books(ctx)
	return nil
}

// Delete removes a book (admin) and republishes the catalog.
func (c *CatalogController) Delete(ctx context.Context, id int64) error {
	if id == 0 {
		return invalidInput("invalid book")
	}
	if err := c.api.delete(ctx, fmt.Sprintf("/books/delete/%d", id), nil); err != nil {
		return err
	}
	_, _ = c.Books(ctx)
	return nil
}

// ToggleResult reports which branch a toggle took.
type ToggleResult struct {
	Action  string // "checkout" or "return"
	BookID  int64
	EntryID int64 // set on returns only
}

// ToggleLoan is the single user action on a book row: check out an
// available book, or return an unavailable one by resolving which open
// loan of the acting user it closes.
//
// The history lookup always completes before the return mutation is
// issued. The two calls are not atomic: if the loan closes concurrently in
// between, the server rejects the return and that rejection is surfaced
// like any other failure. The catalog refetch is issued before this method
// returns so every view observes the flipped availability.
func (c *CatalogController) ToggleLoan(ctx context.Context, book Book, actingUserID int64) (ToggleResult, error) {
	if book.ID == 0 {
		return ToggleResult{}, invalidInput("invalid book")
	}
	if actingUserID == 0 {
		return ToggleResult{}, notAuthenticated("not authenticated")
	}

	if book.Available {
		if err := c.api.post(ctx, fmt.Sprintf("/books/checkout/%d", book.ID), nil, nil); err != nil {
			return ToggleResult{}, err
		}
		_, _ = c.Books(ctx)
		return ToggleResult{Action: "checkout", BookID: book.ID}, nil
	}

	// Return: find the open entry for THIS user and THIS book. If history
	// was never loaded this session, fetch it first.
	items, ok := c.history.CachedUserHistory(actingUserID)
	if !ok || len(items) == 0 {
		fetched, err := c.history.UserHistory(ctx, actingUserID)
		if err != nil {
			return ToggleResult{}, err
		}
		items = fetched
	}

	entry, found := findOpenEntry(items, book.ID)
	if !found {
		return ToggleResult{}, noOpenLoan("could not find the checkout entry to return this book")
	}

	if err := c.api.post(ctx, fmt.Sprintf("/books/return/%d/%d", entry.ID, book.ID), nil, nil); err != nil {
		return ToggleResult{}, err
	}

	_, _ = c.Books(ctx)
	// Keep the user's history fresh; failure here is not the toggle's
	// problem.
	_, _ = c.history.UserHistory(ctx, actingUserID)

	return ToggleResult{Action: "return", BookID: book.ID, EntryID: entry.ID}, nil
}

// ToggleLoanByBook is the simplified variant used on the librarian's own
// browsing page: the return is keyed by book id alone, with no entry
// resolution. The two toggles assume different server capabilities and are
// deliberately not unified.
func (c *CatalogController) ToggleLoanByBook(ctx context.Context, book Book) (ToggleResult, error) {
	if book.ID == 0 {
		return ToggleResult{}, invalidInput("invalid book")
	}

	if book.Available {
		if err := c.api.post(ctx, fmt.Sprintf("/books/checkout/%d", book.ID), nil, nil); err != nil {
			return ToggleResult{}, err
		}
		_, _ = c.Books(ctx)
		return ToggleResult{Action: "checkout", BookID: book.ID}, nil
	}

	if err := c.api.post(ctx, fmt.Sprintf("/books/return/%d", book.ID), nil, nil); err != nil {
		return ToggleResult{}, err
	}
	_, _ = c.Books(ctx)
	return ToggleResult{Action: "return", BookID: book.ID}, nil
}
