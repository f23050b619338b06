package grpcutil

import (
	"errors"
	"os"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AsStatus normalizes an arbitrary error into a gRPC status error, leaving
// errors that already carry a status code untouched. fallback is used when
// err carries none of the recognized sentinel errors.
//
// Grounded on the teacher's GRPCError helper: every boundary (tunnel
// dispatcher, callback handler, control client) should report one
// consistent error vocabulary instead of leaking raw Go errors across the
// sub-RPC/status-frame boundary.
func AsStatus(err error, fallback codes.Code) error {
	if err == nil {
		return nil
	}
	if status.Code(err) != codes.Unknown {
		return err
	}

	code := fallback
	switch {
	case errors.Is(err, os.ErrNotExist):
		code = codes.NotFound
	case errors.Is(err, os.ErrPermission):
		code = codes.PermissionDenied
	}

	return status.Error(code, err.Error())
}
