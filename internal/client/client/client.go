package client

import (
	"context"

	"github.com/dmitrijs2005/accounts/internal/api"
)

// Client is the surface the CLI needs from the account service.
type Client interface {
	Close() error
	Ping(ctx context.Context) error
	Register(ctx context.Context, email, password, confirmation string) (*api.RegisterResponse, error)
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	Logout()
	LoggedIn() bool
	Me(ctx context.Context) (*api.Account, error)
	UpdateProfile(ctx context.Context, req *api.UpdateProfileRequest) (*api.UpdateProfileResponse, error)
	ChangePassword(ctx context.Context, req *api.ChangePasswordRequest) error
	AssignRoles(ctx context.Context, id string, roles []string) (*api.AssignRolesResponse, error)
	ListAccounts(ctx context.Context, req *api.ListAccountsRequest) (*api.ListAccountsResponse, error)
}

var _ Client = (*GRPCClient)(nil)
