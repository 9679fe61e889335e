// Package models holds the persisted shapes of the account service.
package models

import (
	"slices"
	"time"
)

// Role is an account role tag. The set of roles is closed; see Roles.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleTester      Role = "tester"
	RoleAirdropFree Role = "airdrop_free"
)

// Roles is the fixed role enumeration.
var Roles = []Role{RoleAdmin, RoleTester, RoleAirdropFree}

// Valid reports whether r belongs to the role enumeration.
func (r Role) Valid() bool {
	return slices.Contains(Roles, r)
}

// Account is the identity record. Password holds the digest produced by the
// credential codec and is empty whenever a read excluded it.
type Account struct {
	ID            string
	Username      string
	Email         string
	Password      string
	WalletAddress string
	Roles         []Role
	Features      []string
	Capabilities  []string
	Subscriptions []Subscription
	IsVerified    bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// HasRole reports whether the account holds role.
func (a *Account) HasRole(role Role) bool {
	return slices.Contains(a.Roles, role)
}

// RoleNames returns the roles as plain strings.
func (a *Account) RoleNames() []string {
	out := make([]string, 0, len(a.Roles))
	for _, r := range a.Roles {
		out = append(out, string(r))
	}
	return out
}

// WithoutPassword returns a copy with the digest cleared.
func (a *Account) WithoutPassword() *Account {
	c := *a
	c.Password = ""
	return &c
}

// Subscription is a plan attached to an account.
type Subscription struct {
	Type      string     `json:"type"`
	Status    string     `json:"status"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// AccountUpdate is a partial change. Nil fields are left as stored.
type AccountUpdate struct {
	Username      *string
	Email         *string
	Password      *string
	WalletAddress *string
	Roles         []Role
	IsVerified    *bool
}

// Empty reports whether the update changes nothing.
func (u AccountUpdate) Empty() bool {
	return u.Username == nil && u.Email == nil && u.Password == nil &&
		u.WalletAddress == nil && u.Roles == nil && u.IsVerified == nil
}
