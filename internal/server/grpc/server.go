// Package grpc exposes the account workflow over gRPC. Requests pass a
// request-id stamp, a logging decorator that also maps failures to status
// codes, bearer authentication and input validation before a handler runs.
package grpc

import (
	"context"
	"net"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/dmitrijs2005/accounts/internal/api"
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/auth"
	"github.com/dmitrijs2005/accounts/internal/server/listquery"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/services"
)

// AccountService is the workflow the handlers delegate to.
type AccountService interface {
	Register(ctx context.Context, email, password string) (*models.Account, error)
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	Me(ctx context.Context, id string) (*models.Account, error)
	UpdateProfile(ctx context.Context, id string, p services.ProfileUpdate) (*models.Account, error)
	ChangePassword(ctx context.Context, id, oldPassword, newPassword string) (*models.Account, error)
	AssignRoles(ctx context.Context, id string, roles []models.Role) (*models.Account, error)
	List(ctx context.Context, p listquery.Params) ([]*models.Account, models.Pagination, error)
}

// SystemLogRecorder stores failure records. Record must not fail the call.
type SystemLogRecorder interface {
	Record(ctx context.Context, entry *models.SystemLog)
}

type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type GRPCServer struct {
	api.UnimplementedAccountServiceServer
	address   string
	accounts  AccountService
	systemLog SystemLogRecorder
	tokens    TokenVerifier
	validate  *validator.Validate
	logger    logging.Logger
}

func NewGRPCServer(address string, l logging.Logger, accounts AccountService, systemLog SystemLogRecorder, tokens TokenVerifier) (*GRPCServer, error) {
	v, err := newValidator()
	if err != nil {
		return nil, err
	}
	return &GRPCServer{
		address:   address,
		logger:    l.With("module", "grpc_server"),
		accounts:  accounts,
		systemLog: systemLog,
		tokens:    tokens,
		validate:  v,
	}, nil
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ForceServerCodec(api.Codec{}),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			s.requestIDInterceptor,
			s.loggingInterceptor,
			s.authInterceptor,
			s.validationInterceptor,
		),
	)
	api.RegisterAccountServiceServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
