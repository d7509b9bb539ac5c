package grpcarchive

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tonkeeper/2fa-extension/journal"
)

// toStatus maps archive errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, journal.ErrNotFound):
		return status.Error(codes.NotFound, journal.ErrNotFound.Error())
	case errors.Is(err, journal.ErrInvalidCID):
		return status.Error(codes.InvalidArgument, journal.ErrInvalidCID.Error())
	case errors.Is(err, journal.ErrCIDMismatch):
		return status.Error(codes.DataLoss, journal.ErrCIDMismatch.Error())
	case errors.Is(err, journal.ErrImmutable):
		return status.Error(codes.AlreadyExists, journal.ErrImmutable.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// fromStatus maps a gRPC error back to the archive sentinels.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return journal.ErrNotFound
	case codes.InvalidArgument:
		return journal.ErrInvalidCID
	case codes.DataLoss:
		return journal.ErrCIDMismatch
	case codes.AlreadyExists:
		return journal.ErrImmutable
	default:
		return err
	}
}
