package api

import (
	"errors"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/cadence"
)

// mapForgeError converts cadence sentinel errors to Forge HTTP errors.
func mapForgeError(err error) error {
	switch {
	case errors.Is(err, cadence.ErrUnknownJob):
		return forge.NotFound(err.Error())
	case errors.Is(err, cadence.ErrTaskNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, cadence.ErrTopicNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, cadence.ErrTopicDeprecated):
		return forge.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, cadence.ErrConflict):
		return forge.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, cadence.ErrPayloadValidationFailed):
		return forge.BadRequest(err.Error())
	case errors.Is(err, cadence.ErrMalformedEnvelope):
		return forge.BadRequest(err.Error())
	case errors.Is(err, cadence.ErrInvalidRecurrence):
		return forge.BadRequest(err.Error())
	case errors.Is(err, cadence.ErrRateLimited):
		return forge.NewHTTPError(http.StatusTooManyRequests, err.Error())
	case errors.Is(err, cadence.ErrCircuitOpen):
		return forge.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, cadence.ErrNoStateStore):
		return forge.InternalError(err)
	case errors.Is(err, cadence.ErrStoreClosed):
		return forge.InternalError(err)
	default:
		return forge.InternalError(err)
	}
}
