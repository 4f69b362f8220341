package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/engine"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// errorBody is the JSON envelope used by every non-2xx response.
// Details carries extra context for codes that have it, such as the
// seat IDs that could not be locked.
type errorBody struct {
	ErrorCode string         `json:"error_code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

// writeError translates an error from the engine, the payment
// coordinator or a repository into the HTTP error envelope. Engine
// sentinels map onto stable error codes; anything unrecognized is a
// 500 with a generic message so internals never leak to clients.
func writeError(c echo.Context, err error) error {
	status, body := classify(err)
	return c.JSON(status, body)
}

func classify(err error) (int, errorBody) {
	var unavailable *engine.SeatUnavailableError
	switch {
	case errors.As(err, &unavailable):
		return http.StatusConflict, errorBody{
			ErrorCode: "SEAT_UNAVAILABLE",
			Message:   unavailable.Error(),
			Details:   map[string]any{"failed_seat_ids": unavailable.FailedSeatIDs},
		}
	case errors.Is(err, engine.ErrValidation):
		return http.StatusBadRequest, errorBody{ErrorCode: "VALIDATION", Message: err.Error()}
	case errors.Is(err, engine.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, errorBody{ErrorCode: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, engine.ErrUnauthorized), errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden, errorBody{ErrorCode: "FORBIDDEN", Message: err.Error()}
	case errors.Is(err, engine.ErrAlreadyConfirmed):
		return http.StatusConflict, errorBody{ErrorCode: "ALREADY_CONFIRMED", Message: err.Error()}
	case errors.Is(err, engine.ErrTerminal):
		return http.StatusConflict, errorBody{ErrorCode: "TERMINAL", Message: err.Error()}
	case errors.Is(err, engine.ErrNotCancellable):
		return http.StatusConflict, errorBody{ErrorCode: "NOT_CANCELLABLE", Message: err.Error()}
	case errors.Is(err, engine.ErrConflict), errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, errorBody{ErrorCode: "CONFLICT", Message: err.Error()}
	case errors.Is(err, engine.ErrExpired):
		return http.StatusGone, errorBody{ErrorCode: "EXPIRED", Message: err.Error()}
	case errors.Is(err, engine.ErrTimeout):
		return http.StatusGatewayTimeout, errorBody{ErrorCode: "TIMEOUT", Message: err.Error()}
	case errors.Is(err, engine.ErrInvariantViolated):
		// The engine already logged the torn state with full context.
		return http.StatusInternalServerError, errorBody{ErrorCode: "INVARIANT_VIOLATED", Message: "internal error"}
	default:
		return http.StatusInternalServerError, errorBody{ErrorCode: "INTERNAL", Message: "internal error"}
	}
}

// badRequest renders a request-shape failure the engine never saw,
// such as an unparsable body or path parameter.
func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorBody{ErrorCode: "VALIDATION", Message: msg})
}

func notFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, errorBody{ErrorCode: "NOT_FOUND", Message: msg})
}

func forbidden(c echo.Context, msg string) error {
	return c.JSON(http.StatusForbidden, errorBody{ErrorCode: "FORBIDDEN", Message: msg})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorBody{ErrorCode: "UNAUTHORIZED", Message: "unauthorized"})
}

func internalError(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError, errorBody{ErrorCode: "INTERNAL", Message: "internal error"})
}
