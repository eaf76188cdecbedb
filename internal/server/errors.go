package server

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/taix/internal/common"
	"github.com/joseph-ayodele/taix/internal/gateway"
	"github.com/joseph-ayodele/taix/internal/store"
)

var errUnknownTool = errors.New("unknown tool")

func invalidInput(err error) bool {
	var qerr *gateway.QueryError
	if errors.As(err, &qerr) {
		return qerr.InvalidInput()
	}
	return errors.Is(err, store.ErrInvalidFilter) || errors.Is(err, common.ErrValidation)
}

// toStatus maps gateway errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errUnknownTool):
		return common.NotFoundError(err.Error())
	case invalidInput(err):
		return common.InvalidArgumentError(err.Error())
	default:
		if _, ok := status.FromError(err); ok {
			return err
		}
		return status.Error(codes.Internal, err.Error())
	}
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, errUnknownTool):
		return http.StatusNotFound
	case invalidInput(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
