package grpc

import (
	"context"
	"errors"
	"path"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/accounts/internal/api"
	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/server/auth"
	"github.com/dmitrijs2005/accounts/internal/server/models"
)

type ctxKey string

const (
	claimsKey    ctxKey = "claims"
	requestIDKey ctxKey = "requestID"
)

const systemLogClassName = "AccountService"

// authenticated lists methods that need a bearer token; the value tells
// whether the admin role is required too.
var authenticated = map[string]bool{
	api.MeMethod:             false,
	api.UpdateProfileMethod:  false,
	api.ChangePasswordMethod: false,
	api.AssignRolesMethod:    true,
	api.ListAccountsMethod:   true,
}

func claimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok && c != nil
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

// requestIDInterceptor keeps the caller's x-request-id or mints one, and
// echoes it in the response header.
func (s *GRPCServer) requestIDInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	id := firstMetadata(ctx, common.RequestIDHeaderName)
	if id == "" {
		id = uuid.NewString()
	}
	ctx = context.WithValue(ctx, requestIDKey, id)
	_ = grpc.SetHeader(ctx, metadata.Pairs(common.RequestIDHeaderName, id))
	return handler(ctx, req)
}

// loggingInterceptor logs every call, converts failures into status errors
// and writes a system log record for each failure. Internal causes are
// logged here and never sent to the caller.
func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	method := path.Base(info.FullMethod)
	log := s.logger.With("method", method, "request_id", requestIDFromContext(ctx))

	resp, err := handler(ctx, req)
	if err == nil {
		log.Info(ctx, "request handled", "code", codes.OK.String(), "duration", time.Since(start))
		return resp, nil
	}

	st := toStatus(err)
	code := status.Code(st)
	if code == codes.Internal {
		log.Error(ctx, "request failed", "code", code.String(), "duration", time.Since(start), "error", err.Error())
	} else {
		log.Warn(ctx, "request failed", "code", code.String(), "duration", time.Since(start), "error", status.Convert(st).Message())
	}

	if s.systemLog != nil {
		s.systemLog.Record(ctx, &models.SystemLog{
			ClassName:    systemLogClassName,
			FunctionName: method,
			Slug:         slug(method),
			Status:       models.SystemLogFailed,
			Data: map[string]any{
				"code":       code.String(),
				"message":    status.Convert(st).Message(),
				"request_id": requestIDFromContext(ctx),
			},
		})
	}
	return nil, st
}

// authInterceptor verifies the bearer token of protected methods and puts
// its claims into the context.
func (s *GRPCServer) authInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	adminOnly, protected := authenticated[info.FullMethod]
	if !protected {
		return handler(ctx, req)
	}

	header := firstMetadata(ctx, common.AuthorizationHeaderName)
	if len(header) < len(common.BearerPrefix) || !strings.EqualFold(header[:len(common.BearerPrefix)], common.BearerPrefix) {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	token := strings.TrimSpace(header[len(common.BearerPrefix):])
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, "token expired")
		}
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	if adminOnly {
		if !claims.HasRole(string(models.RoleAdmin)) {
			return nil, errAdminRequired
		}
		if err := s.checkStoredAdmin(ctx, claims); err != nil {
			return nil, err
		}
	}

	return handler(context.WithValue(ctx, claimsKey, claims), req)
}

var errAdminRequired = status.Error(codes.PermissionDenied, "admin role required")

// checkStoredAdmin re-reads the roles of the caller, so a token issued
// before the admin role was revoked stops working for admin methods.
func (s *GRPCServer) checkStoredAdmin(ctx context.Context, claims *auth.Claims) error {
	if s.accounts == nil {
		return nil
	}
	acc, err := s.accounts.Me(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return errAdminRequired
		}
		return err
	}
	if !acc.HasRole(models.RoleAdmin) {
		return errAdminRequired
	}
	claims.Roles = acc.RoleNames()
	return nil
}

// validationInterceptor checks the validate tags of struct requests.
func (s *GRPCServer) validationInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if req != nil {
		v := reflect.ValueOf(req)
		if v.Kind() == reflect.Pointer && !v.IsNil() && v.Elem().Kind() == reflect.Struct {
			if err := s.validate.Struct(req); err != nil {
				return nil, validationStatus(err)
			}
		}
	}
	return handler(ctx, req)
}

// slug turns "UpdateProfile" into "update_profile".
func slug(method string) string {
	var b strings.Builder
	for i, r := range method {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
