package api

import "time"

// Validation tags are enforced by the server before a request reaches the
// account workflow. The "password" rule is registered by the server.

type RegisterRequest struct {
	Email                string `json:"email" validate:"required,email"`
	Password             string `json:"password" validate:"required,password"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

type RegisterResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	IsVerified bool   `json:"is_verified"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Token string `json:"token"`
}

type MeRequest struct{}

type Subscription struct {
	Type      string     `json:"type"`
	Status    string     `json:"status"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// Account is the public view of an account. It never carries the password
// digest.
type Account struct {
	ID            string         `json:"id"`
	Username      string         `json:"username"`
	Email         string         `json:"email"`
	WalletAddress string         `json:"wallet_address"`
	Roles         []string       `json:"roles"`
	Features      []string       `json:"features"`
	Capabilities  []string       `json:"capabilities"`
	Subscriptions []Subscription `json:"subscriptions"`
	IsVerified    bool           `json:"is_verified"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type MeResponse struct {
	Account Account `json:"account"`
}

type UpdateProfileRequest struct {
	Username      string `json:"username" validate:"required,alphanum,min=3,max=16"`
	Email         string `json:"email" validate:"required,email"`
	WalletAddress string `json:"wallet_address" validate:"max=128"`
}

type UpdateProfileResponse struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	WalletAddress string `json:"wallet_address"`
}

type ChangePasswordRequest struct {
	OldPassword             string `json:"old_password" validate:"required"`
	NewPassword             string `json:"new_password" validate:"required,password"`
	NewPasswordConfirmation string `json:"new_password_confirmation" validate:"required,eqfield=NewPassword"`
}

type ChangePasswordResponse struct {
	ID string `json:"id"`
}

type AssignRolesRequest struct {
	ID    string   `json:"id" validate:"required"`
	Roles []string `json:"roles" validate:"required,min=1,unique,dive,oneof=admin tester airdrop_free"`
}

type AssignRolesResponse struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles"`
}

// ListAccountsRequest keeps every parameter as text; the server normalizes
// unknown or malformed values to defaults.
type ListAccountsRequest struct {
	Keyword string `json:"keyword"`
	SortBy  string `json:"sort_by"`
	Sort    string `json:"sort"`
	Page    string `json:"page"`
	PerPage string `json:"per_page"`
}

type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

type ListAccountsResponse struct {
	Accounts   []Account  `json:"accounts"`
	Pagination Pagination `json:"pagination"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}
