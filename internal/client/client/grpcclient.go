package client

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/accounts/internal/api"
	"github.com/dmitrijs2005/accounts/internal/common"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      api.AccountServiceClient

	mu          sync.RWMutex
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AuthorizationHeaderName)
	md.Set(common.AuthorizationHeaderName, "Bearer "+token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *GRPCClient) setToken(token string) {
	s.mu.Lock()
	s.accessToken = token
	s.mu.Unlock()
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if token := s.token(); token != "" {
		ctx = withAccessToken(ctx, token)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewAccountClient dials endpointURL lazily; the first RPC establishes the
// connection.
func NewAccountClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}

	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}

	conn, err := grpc.NewClient(endpointURL, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = api.NewAccountServiceClient(conn)
	return c, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) LoggedIn() bool {
	return s.token() != ""
}

// Logout forgets the token. Tokens are stateless, so nothing is sent to the
// server.
func (s *GRPCClient) Logout() {
	s.setToken("")
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &api.PingRequest{})
	if err != nil {
		return s.mapError(err)
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) Register(ctx context.Context, email, password, confirmation string) (*api.RegisterResponse, error) {
	req := &api.RegisterRequest{Email: email, Password: password, PasswordConfirmation: confirmation}

	resp, err := s.client.Register(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) Login(ctx context.Context, email, password string) (*api.LoginResponse, error) {
	req := &api.LoginRequest{Email: email, Password: password}

	resp, err := s.client.Login(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}

	s.setToken(resp.Token)
	return resp, nil
}

func (s *GRPCClient) Me(ctx context.Context) (*api.Account, error) {
	if !s.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	resp, err := s.client.Me(ctx, &api.MeRequest{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return &resp.Account, nil
}

func (s *GRPCClient) UpdateProfile(ctx context.Context, req *api.UpdateProfileRequest) (*api.UpdateProfileResponse, error) {
	if !s.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	resp, err := s.client.UpdateProfile(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) ChangePassword(ctx context.Context, req *api.ChangePasswordRequest) error {
	if !s.LoggedIn() {
		return ErrNotLoggedIn
	}
	if _, err := s.client.ChangePassword(ctx, req); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCClient) AssignRoles(ctx context.Context, id string, roles []string) (*api.AssignRolesResponse, error) {
	if !s.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	resp, err := s.client.AssignRoles(ctx, &api.AssignRolesRequest{ID: id, Roles: roles})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) ListAccounts(ctx context.Context, req *api.ListAccountsRequest) (*api.ListAccountsResponse, error) {
	if !s.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	resp, err := s.client.ListAccounts(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

// mapError keeps the server's public message next to the sentinel so the
// CLI can show it.
func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("rpc error: %w", err)
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.InvalidArgument, codes.NotFound, codes.AlreadyExists, codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", ErrRejected, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
