package grpcx

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Errorf returns a new gRPC status error.
func Errorf(code codes.Code, f string, v ...interface{}) error {
	return status.Newf(code, f, v...).Err()
}

// FromError converts an error returned by a server-side implementation into
// a gRPC status error.
//
// Errors that already carry a status are returned unchanged. Context errors are
// mapped to their equivalent codes and anything else becomes codes.Unknown.
func FromError(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Unknown, err.Error())
	}
}

// IsUnavailable returns true if err indicates that the server could not be
// reached.
func IsUnavailable(err error) bool {
	return status.Code(err) == codes.Unavailable
}

// IsUnauthenticated returns true if err indicates that the server rejected
// the client's credentials.
func IsUnauthenticated(err error) bool {
	return status.Code(err) == codes.Unauthenticated
}
