package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/accounts/internal/common"
)

// codeOf maps an error of the common taxonomy to a gRPC code.
func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, common.ErrorInternal):
		return codes.Internal
	case errors.Is(err, common.ErrorConflict):
		return codes.AlreadyExists
	case errors.Is(err, common.ErrorNotFound):
		return codes.NotFound
	case errors.Is(err, common.ErrorBadRequest):
		return codes.InvalidArgument
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return codes.Unauthenticated
	case errors.Is(err, common.ErrorForbidden):
		return codes.PermissionDenied
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// toStatus converts err into a status error carrying only the public
// message. Errors that already are statuses pass through.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codeOf(err), common.PublicMessage(err))
}
