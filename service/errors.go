package service

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/najoast/snakepit/core"
	"github.com/najoast/snakepit/game"
)

// statusError converts directory and validation errors to gRPC status errors.
func statusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(Code(err), err.Error())
}

// Code returns the gRPC code reported for err.
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, core.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, core.ErrNotJoined):
		return codes.PermissionDenied
	case errors.Is(err, core.ErrInvalidConfig), errors.Is(err, game.ErrInvalidDirection):
		return codes.InvalidArgument
	case errors.Is(err, core.ErrClosed):
		return codes.Unavailable
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}

func invalidArgument(format string, args ...any) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}
