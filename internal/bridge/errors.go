package bridge

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/almacen/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps domain errors to gRPC status errors on the server side.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrMalformedBundle):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrQuotaExceeded):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, common.ErrUnsupported):
		return status.Error(codes.Unimplemented, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// fromStatus maps a gRPC error back to the sentinel errors callers match on.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %v", common.ErrStorage, err)
	}

	msg := st.Message()
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", common.ErrNotFound, msg)
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", common.ErrValidation, msg)
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", common.ErrQuotaExceeded, msg)
	case codes.Unauthenticated:
		if msg == common.ErrTokenExpired.Error() {
			return common.ErrTokenExpired
		}
		return fmt.Errorf("%w: %s", common.ErrUnauthorized, msg)
	case codes.Unimplemented:
		return fmt.Errorf("%w: %s", common.ErrUnsupported, msg)
	default:
		return fmt.Errorf("%w: bridge: %s", common.ErrStorage, msg)
	}
}
