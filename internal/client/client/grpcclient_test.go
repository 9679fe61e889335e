package client

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/dmitrijs2005/accounts/internal/api"
	"github.com/dmitrijs2005/accounts/internal/common"
)

type fakeServer struct {
	api.UnimplementedAccountServiceServer

	lastAuth   []string
	lastList   *api.ListAccountsRequest
	lastRoles  *api.AssignRolesRequest
	loginErr   error
	meErr      error
	pingStatus string
}

func (f *fakeServer) capture(ctx context.Context) {
	md, _ := metadata.FromIncomingContext(ctx)
	f.lastAuth = md.Get(common.AuthorizationHeaderName)
}

func (f *fakeServer) Register(ctx context.Context, in *api.RegisterRequest) (*api.RegisterResponse, error) {
	f.capture(ctx)
	if in.Email == "taken@example.com" {
		return nil, status.Error(codes.AlreadyExists, "email already registered")
	}
	return &api.RegisterResponse{ID: "id-1", Email: in.Email}, nil
}

func (f *fakeServer) Login(ctx context.Context, in *api.LoginRequest) (*api.LoginResponse, error) {
	f.capture(ctx)
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &api.LoginResponse{ID: "id-1", Email: in.Email, Token: "tok-1"}, nil
}

func (f *fakeServer) Me(ctx context.Context, _ *api.MeRequest) (*api.MeResponse, error) {
	f.capture(ctx)
	if f.meErr != nil {
		return nil, f.meErr
	}
	return &api.MeResponse{Account: api.Account{ID: "id-1", Email: "a@example.com"}}, nil
}

func (f *fakeServer) AssignRoles(ctx context.Context, in *api.AssignRolesRequest) (*api.AssignRolesResponse, error) {
	f.capture(ctx)
	f.lastRoles = in
	return &api.AssignRolesResponse{ID: in.ID, Roles: in.Roles}, nil
}

func (f *fakeServer) ListAccounts(ctx context.Context, in *api.ListAccountsRequest) (*api.ListAccountsResponse, error) {
	f.capture(ctx)
	f.lastList = in
	return &api.ListAccountsResponse{Pagination: api.Pagination{Page: 1, PerPage: 10}}, nil
}

func (f *fakeServer) Ping(ctx context.Context, _ *api.PingRequest) (*api.PingResponse, error) {
	return &api.PingResponse{Status: f.pingStatus}, nil
}

func newBufClient(t *testing.T, f *fakeServer) *GRPCClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ForceServerCodec(api.Codec{}))
	api.RegisterAccountServiceServer(srv, f)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := NewAccountClient("passthrough:///bufconn",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLogin_StoresTokenAndAttachesBearer(t *testing.T) {
	f := &fakeServer{}
	c := newBufClient(t, f)
	ctx := context.Background()

	assert.False(t, c.LoggedIn())

	resp, err := c.Login(ctx, "a@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", resp.Token)
	assert.True(t, c.LoggedIn())
	assert.Empty(t, f.lastAuth, "login itself must go out without a token")

	acc, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "id-1", acc.ID)
	assert.Equal(t, []string{"Bearer tok-1"}, f.lastAuth)
}

func TestLogout_DropsToken(t *testing.T) {
	f := &fakeServer{}
	c := newBufClient(t, f)
	ctx := context.Background()

	_, err := c.Login(ctx, "a@example.com", "pw")
	require.NoError(t, err)

	c.Logout()
	assert.False(t, c.LoggedIn())

	_, err = c.Me(ctx)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestRegister_ConflictIsRejected(t *testing.T) {
	c := newBufClient(t, &fakeServer{})

	_, err := c.Register(context.Background(), "taken@example.com", "Passw0rd!", "Passw0rd!")
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "email already registered")
}

func TestLogin_WrongCredentials(t *testing.T) {
	f := &fakeServer{loginErr: status.Error(codes.NotFound, "wrong email or password")}
	c := newBufClient(t, f)

	_, err := c.Login(context.Background(), "a@example.com", "bad")
	require.ErrorIs(t, err, ErrRejected)
	assert.False(t, c.LoggedIn())
}

func TestMe_ExpiredToken(t *testing.T) {
	f := &fakeServer{meErr: status.Error(codes.Unauthenticated, "token expired")}
	c := newBufClient(t, f)
	c.setToken("old")

	_, err := c.Me(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "token expired")
}

func TestAdminCalls_PassArguments(t *testing.T) {
	f := &fakeServer{}
	c := newBufClient(t, f)
	c.setToken("admin-token")
	ctx := context.Background()

	roles, err := c.AssignRoles(ctx, "id-9", []string{"admin", "tester"})
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "tester"}, roles.Roles)
	assert.Equal(t, "id-9", f.lastRoles.ID)

	_, err = c.ListAccounts(ctx, &api.ListAccountsRequest{Keyword: "email:a@example.com", Page: "2"})
	require.NoError(t, err)
	assert.Equal(t, "email:a@example.com", f.lastList.Keyword)
	assert.Equal(t, "2", f.lastList.Page)
	assert.Equal(t, []string{"Bearer admin-token"}, f.lastAuth)
}

func TestPing(t *testing.T) {
	f := &fakeServer{pingStatus: "OK"}
	c := newBufClient(t, f)
	require.NoError(t, c.Ping(context.Background()))

	f.pingStatus = "DEGRADED"
	require.ErrorIs(t, c.Ping(context.Background()), ErrUnavailable)
}

func TestMapError(t *testing.T) {
	c := &GRPCClient{}

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"unauthenticated", status.Error(codes.Unauthenticated, "x"), ErrUnauthorized},
		{"permission denied", status.Error(codes.PermissionDenied, "x"), ErrUnauthorized},
		{"unavailable", status.Error(codes.Unavailable, "x"), ErrUnavailable},
		{"deadline", status.Error(codes.DeadlineExceeded, "x"), ErrUnavailable},
		{"invalid argument", status.Error(codes.InvalidArgument, "x"), ErrRejected},
		{"failed precondition", status.Error(codes.FailedPrecondition, "x"), ErrRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, c.mapError(tt.in), tt.want)
		})
	}

	assert.NoError(t, c.mapError(nil))

	internal := c.mapError(status.Error(codes.Internal, "internal error"))
	for _, s := range []error{ErrUnauthorized, ErrUnavailable, ErrRejected} {
		assert.False(t, errors.Is(internal, s))
	}
}

func TestWithAccessToken_ReplacesExisting(t *testing.T) {
	ctx := metadata.NewOutgoingContext(context.Background(), metadata.Pairs(common.AuthorizationHeaderName, "Bearer stale", "x-other", "1"))

	ctx = withAccessToken(ctx, "fresh")

	md, _ := metadata.FromOutgoingContext(ctx)
	assert.Equal(t, []string{"Bearer fresh"}, md.Get(common.AuthorizationHeaderName))
	assert.Equal(t, []string{"1"}, md.Get("x-other"))
}
