package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{ErrNotFound, ErrInvalidInput, ErrUnauthorized, ErrConflict, ErrServiceUnavail, ErrInternal}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
			}
		}
	}
}

func TestAppError_ErrorString(t *testing.T) {
	withWrapped := &AppError{Code: "X", Message: "boom", Err: errors.New("cause")}
	assert.Equal(t, "X: boom: cause", withWrapped.Error())

	bare := &AppError{Code: "X", Message: "boom"}
	assert.Equal(t, "X: boom", bare.Error())
}

func TestNotFound(t *testing.T) {
	err := NotFound("wishlist item", "p1")
	assert.Equal(t, http.StatusNotFound, err.Status)
	assert.Equal(t, "wishlist item with id p1 not found", err.Message)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInvalidInput(t *testing.T) {
	err := InvalidInput("product id is required")
	assert.Equal(t, "INVALID_INPUT", err.Code)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestConflict(t *testing.T) {
	err := Conflict("stale")
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUnavailable_WrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Unavailable("wishlist service unreachable", cause)

	assert.Equal(t, http.StatusServiceUnavailable, err.Status)
	assert.ErrorIs(t, err, ErrServiceUnavail)
	assert.ErrorIs(t, err, cause)
}

func TestUnavailable_NilCause(t *testing.T) {
	err := Unavailable("down", nil)
	assert.ErrorIs(t, err, ErrServiceUnavail)
}

func TestInternal(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal(cause)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.ErrorIs(t, err, cause)
}

func TestWrap(t *testing.T) {
	err := Wrap(ErrNotFound, "load cart")
	require.Error(t, err)
	assert.Equal(t, "load cart: resource not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error", Unauthorized("no token"), http.StatusUnauthorized},
		{"not found sentinel", ErrNotFound, http.StatusNotFound},
		{"wrapped conflict", fmt.Errorf("save: %w", ErrConflict), http.StatusConflict},
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"unavailable", ErrServiceUnavail, http.StatusServiceUnavailable},
		{"unknown", errors.New("mystery"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
