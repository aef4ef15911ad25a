package library

import (
	"context"
	"fmt"
)

// AdminController wraps the /admin user-management surface. Authorization
// is the server's call; the client just relays its refusals.
type AdminController struct {
	api *Client
}

func NewAdminController(api *Client) *AdminController {
	return &AdminController{api: api}
}

// Users lists all accounts.
func (a *AdminController) Users(ctx context.Context) ([]User, error) {
	var users []User
	if err := a.api.get(ctx, "/admin/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser provisions an account with an explicit role. An empty role
// defaults to member, matching the server.
func (a *AdminController) CreateUser(ctx context.Context, name, email, password string, role Role) error {
	if name == "" || email == "" || password == "" {
		return invalidInput("name, email and password are required")
	}
	if role == "" {
		role = RoleMember
	}
	if _, err := ParseRole(string(role)); err != nil {
		return invalidInput(err.Error())
	}
	return a.api.post(ctx, "/admin/users", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
		"role":     string(role),
	}, nil)
}

// SetUserRole changes an account's role.
func (a *AdminController) SetUserRole(ctx context.Context, userID int64, role Role) error {
	if _, err := ParseRole(string(role)); err != nil {
		return invalidInput(err.Error())
	}
	return a.api.put(ctx, fmt.Sprintf("/admin/users/%d/role", userID), map[string]string{
		"role": string(role),
	}, nil)
}

// SetUserActive activates or deactivates an account. Deactivated accounts
// are refused at login by the server.
func (a *AdminController) SetUserActive(ctx context.Context, userID int64, active bool) error {
	return a.api.put(ctx, fmt.Sprintf("/admin/users/%d/status", userID), map[string]bool{
		"is_active": active,
	}, nil)
}

// ResetUserPassword sets a new password on an account.
func (a *AdminController) ResetUserPassword(ctx context.Context, userID int64, password string) error {
	if len(password) < 4 {
		return invalidInput("password too short")
	}
	return a.api.put(ctx, fmt.Sprintf("/admin/users/%d/password", userID), map[string]string{
		"password": password,
	}, nil)
}

// DashboardStats is the aggregate payload behind the admin landing page.
type DashboardStats struct {
	Totals struct {
		TotalBooks  int `json:"total_books"`
		TotalUsers  int `json:"total_users"`
		ActiveLoans int `json:"active_loans"`
	} `json:"totals"`
	Trend7d []struct {
		Day   string `json:"day"`
		Count int    `json:"count"`
	} `json:"trend_7d"`
	TopBooks []struct {
		BookID int64  `json:"book_id"`
		Title  string `json:"title"`
		Count  int    `json:"count"`
	} `json:"top_books"`
	TopUsers []struct {
		UserID int64  `json:"user_id"`
		Name   string `json:"name"`
		Count  int    `json:"count"`
	} `json:"top_users"`
	AvgBorrowDays float64 `json:"avg_borrow_days"`
}

// Dashboard fetches the admin statistics.
func (a *AdminController) Dashboard(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	if err := a.api.get(ctx, "/admin/dashboard", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
