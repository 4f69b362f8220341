package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/movie-ticket-booking/internal/engine"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

func TestClassify_SentinelMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", engine.ErrValidation, http.StatusBadRequest, "VALIDATION"},
		{"engine not found", engine.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"repo not found", repository.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"not owner", engine.ErrUnauthorized, http.StatusForbidden, "FORBIDDEN"},
		{"repo forbidden", repository.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"already confirmed", engine.ErrAlreadyConfirmed, http.StatusConflict, "ALREADY_CONFIRMED"},
		{"terminal", engine.ErrTerminal, http.StatusConflict, "TERMINAL"},
		{"not cancellable", engine.ErrNotCancellable, http.StatusConflict, "NOT_CANCELLABLE"},
		{"engine conflict", engine.ErrConflict, http.StatusConflict, "CONFLICT"},
		{"repo conflict", repository.ErrConflict, http.StatusConflict, "CONFLICT"},
		{"expired", engine.ErrExpired, http.StatusGone, "EXPIRED"},
		{"timeout", engine.ErrTimeout, http.StatusGatewayTimeout, "TIMEOUT"},
		{"invariant violated", engine.ErrInvariantViolated, http.StatusInternalServerError, "INVARIANT_VIOLATED"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Engine errors arrive wrapped with call-site context, so
			// classification must survive a fmt.Errorf layer.
			status, body := classify(fmt.Errorf("confirm booking 42: %w", tc.err))
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, body.ErrorCode)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestClassify_SeatUnavailableCarriesFailedIDs(t *testing.T) {
	err := fmt.Errorf("initiate: %w", &engine.SeatUnavailableError{FailedSeatIDs: []uint64{3, 9}})
	status, body := classify(err)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "SEAT_UNAVAILABLE", body.ErrorCode)
	assert.Equal(t, []uint64{3, 9}, body.Details["failed_seat_ids"])
}

func TestClassify_InternalErrorsHideDetail(t *testing.T) {
	for _, err := range []error{
		errors.New("dial tcp 10.0.0.5:3306: connection refused"),
		fmt.Errorf("confirm: %w", engine.ErrInvariantViolated),
	} {
		_, body := classify(err)
		assert.Equal(t, "internal error", body.Message, "store and invariant failures must not leak internals")
	}
}
