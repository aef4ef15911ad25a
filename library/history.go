package library

import (
	"context"
	"fmt"
	"sync"
)

// HistoryController fetches and caches the three loan views: one user's
// history, one book's history, and the global ledger. The views are
// independent; refreshing one never clears another. The catalog controller
// uses the user view to resolve which open loan a return applies to.
type HistoryController struct {
	api *Client

	mu            sync.Mutex
	userItems     []Loan
	viewingUserID int64
	userLoaded    bool

	bookItems     []Loan
	viewingBookID int64

	ledgerItems []Loan
}

func NewHistoryController(api *Client) *HistoryController {
	return &HistoryController{api: api}
}

// UserHistory fetches one user's loans and caches them as the current user
// view.
func (h *HistoryController) UserHistory(ctx context.Context, userID int64) ([]Loan, error) {
	var items []Loan
	if err := h.api.get(ctx, fmt.Sprintf("/users/history/%d", userID), &items); err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.userItems = items
	h.viewingUserID = userID
	h.userLoaded = true
	h.mu.Unlock()
	return items, nil
}

// CachedUserHistory returns the cached user view without touching the
// network. ok is false when the view was never loaded this session or
// belongs to a different user.
func (h *HistoryController) CachedUserHistory(userID int64) ([]Loan, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.userLoaded || h.viewingUserID != userID {
		return nil, false
	}
	return h.userItems, true
}

// BookHistory fetches the loan trail of one book.
func (h *HistoryController) BookHistory(ctx context.Context, bookID int64) ([]Loan, error) {
	var items []Loan
	if err := h.api.get(ctx, fmt.Sprintf("/books/history/%d", bookID), &items); err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.bookItems = items
	h.viewingBookID = bookID
	h.mu.Unlock()
	return items, nil
}

// Ledger fetches the global checkout ledger. The server restricts it to
// admins; the client just surfaces the refusal.
func (h *HistoryController) Ledger(ctx context.Context) ([]Loan, error) {
	var items []Loan
	if err := h.api.get(ctx, "/admin/history", &items); err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.ledgerItems = items
	h.mu.Unlock()
	return items, nil
}

// OpenEntryFor searches the cached user view for the open loan on bookID.
func (h *HistoryController) OpenEntryFor(userID, bookID int64) (Loan, bool) {
	items, ok := h.CachedUserHistory(userID)
	if !ok {
		return Loan{}, false
	}
	return findOpenEntry(items, bookID)
}

// Invalidate drops all cached views. Called on logout so the next login
// cannot resolve returns against a stale user's history.
func (h *HistoryController) Invalidate() {
	h.mu.Lock()
	h.userItems = nil
	h.viewingUserID = 0
	h.userLoaded = false
	h.bookItems = nil
	h.viewingBookID = 0
	h.ledgerItems = nil
	h.mu.Unlock()
}

func findOpenEntry(items []Loan, bookID int64) (Loan, bool) {
	for _, entry := range items {
		if entry.BookID == bookID && entry.Open() {
			return entry, true
		}
	}
	return Loan{}, false
}
