package grpc

import (
	"context"

	"github.com/dmitrijs2005/accounts/internal/api"
	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/server/listquery"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/services"
)

var errNoClaims = common.NewError(common.ErrorUnauthorized, "unauthorized")

func toAPIAccount(a *models.Account) api.Account {
	subs := make([]api.Subscription, 0, len(a.Subscriptions))
	for _, s := range a.Subscriptions {
		subs = append(subs, api.Subscription{Type: s.Type, Status: s.Status, StartDate: s.StartDate, EndDate: s.EndDate})
	}
	return api.Account{
		ID:            a.ID,
		Username:      a.Username,
		Email:         a.Email,
		WalletAddress: a.WalletAddress,
		Roles:         a.RoleNames(),
		Features:      append([]string{}, a.Features...),
		Capabilities:  append([]string{}, a.Capabilities...),
		Subscriptions: subs,
		IsVerified:    a.IsVerified,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func (s *GRPCServer) Register(ctx context.Context, req *api.RegisterRequest) (*api.RegisterResponse, error) {
	a, err := s.accounts.Register(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "Registered", "account_id", a.ID)
	return &api.RegisterResponse{ID: a.ID, Email: a.Email, IsVerified: a.IsVerified}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *api.LoginRequest) (*api.LoginResponse, error) {
	res, err := s.accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	return &api.LoginResponse{ID: res.Account.ID, Email: res.Account.Email, Token: res.Token}, nil
}

func (s *GRPCServer) Me(ctx context.Context, _ *api.MeRequest) (*api.MeResponse, error) {
	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, errNoClaims
	}
	a, err := s.accounts.Me(ctx, claims.AccountID)
	if err != nil {
		return nil, err
	}
	return &api.MeResponse{Account: toAPIAccount(a)}, nil
}

func (s *GRPCServer) UpdateProfile(ctx context.Context, req *api.UpdateProfileRequest) (*api.UpdateProfileResponse, error) {
	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, errNoClaims
	}
	a, err := s.accounts.UpdateProfile(ctx, claims.AccountID, services.ProfileUpdate{
		Username:      req.Username,
		Email:         req.Email,
		WalletAddress: req.WalletAddress,
	})
	if err != nil {
		return nil, err
	}
	return &api.UpdateProfileResponse{ID: a.ID, Username: a.Username, Email: a.Email, WalletAddress: a.WalletAddress}, nil
}

func (s *GRPCServer) ChangePassword(ctx context.Context, req *api.ChangePasswordRequest) (*api.ChangePasswordResponse, error) {
	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, errNoClaims
	}
	a, err := s.accounts.ChangePassword(ctx, claims.AccountID, req.OldPassword, req.NewPassword)
	if err != nil {
		return nil, err
	}
	return &api.ChangePasswordResponse{ID: a.ID}, nil
}

func (s *GRPCServer) AssignRoles(ctx context.Context, req *api.AssignRolesRequest) (*api.AssignRolesResponse, error) {
	roles := make([]models.Role, 0, len(req.Roles))
	for _, r := range req.Roles {
		roles = append(roles, models.Role(r))
	}
	a, err := s.accounts.AssignRoles(ctx, req.ID, roles)
	if err != nil {
		return nil, err
	}
	return &api.AssignRolesResponse{ID: a.ID, Roles: a.RoleNames()}, nil
}

func (s *GRPCServer) ListAccounts(ctx context.Context, req *api.ListAccountsRequest) (*api.ListAccountsResponse, error) {
	items, page, err := s.accounts.List(ctx, listquery.Params{
		Keyword: req.Keyword,
		SortBy:  req.SortBy,
		Sort:    req.Sort,
		Page:    req.Page,
		PerPage: req.PerPage,
	})
	if err != nil {
		return nil, err
	}

	out := make([]api.Account, 0, len(items))
	for _, a := range items {
		out = append(out, toAPIAccount(a))
	}
	return &api.ListAccountsResponse{
		Accounts: out,
		Pagination: api.Pagination{
			Page:       page.Page,
			PerPage:    page.PerPage,
			TotalCount: page.TotalCount,
			TotalPages: page.TotalPages,
		},
	}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, _ *api.PingRequest) (*api.PingResponse, error) {
	return &api.PingResponse{Status: "OK"}, nil
}
