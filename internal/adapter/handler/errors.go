package handler

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/beer-stock/internal/core/service"
	"github.com/rl1809/beer-stock/internal/platform/observability"
	"github.com/rl1809/beer-stock/internal/port"
)

func httpStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, service.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrAlreadyExists):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrStockExceeded), errors.Is(err, service.ErrNegativeStock):
		return http.StatusUnprocessableEntity
	case port.IsTransient(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func grpcCode(err error) codes.Code {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, service.ErrInvalidQuantity):
		return codes.InvalidArgument
	case errors.Is(err, service.ErrAlreadyExists):
		return codes.AlreadyExists
	case errors.Is(err, service.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, service.ErrStockExceeded), errors.Is(err, service.ErrNegativeStock):
		return codes.FailedPrecondition
	case port.IsTransient(err):
		return codes.Aborted
	default:
		return codes.Internal
	}
}

// publicMessage hides store internals behind a generic message.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest), service.IsDomainError(err):
		return err.Error()
	case port.IsTransient(err):
		return "concurrent update, retry the request"
	default:
		return "internal error"
	}
}

func toStatus(err error) error {
	return status.Error(grpcCode(err), publicMessage(err))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeOK
	case errors.Is(err, ErrInvalidRequest), service.IsDomainError(err):
		return observability.OutcomeRejected
	case port.IsTransient(err):
		return observability.OutcomeConflict
	default:
		return observability.OutcomeError
	}
}
