package api

import (
	"errors"
	"net/http"

	"github.com/xraph/cadence"
)

// mapError converts cadence sentinel errors to an HTTP status and message.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, cadence.ErrUnknownJob):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, cadence.ErrTaskNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, cadence.ErrTopicNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, cadence.ErrTopicDeprecated):
		return http.StatusConflict, err.Error()
	case errors.Is(err, cadence.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, cadence.ErrPayloadValidationFailed):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, cadence.ErrMalformedEnvelope):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, cadence.ErrInvalidRecurrence):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, cadence.ErrRateLimited):
		return http.StatusTooManyRequests, err.Error()
	case errors.Is(err, cadence.ErrCircuitOpen):
		return http.StatusServiceUnavailable, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
