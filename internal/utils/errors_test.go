package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMessageIncludesOrigin(t *testing.T) {
	err := NewAppError(ErrDatabase, "failed to save post", errors.New("connection reset"))
	assert.Equal(t, "failed to save post: connection reset", err.Error())

	bare := NewAppError(ErrInvalidInput, "content is required", nil)
	assert.Equal(t, "content is required", bare.Error())
}

func TestIsErrorCodeSeesWrappedErrors(t *testing.T) {
	err := fmt.Errorf("loading view: %w", NewLoadFailedError(7, errors.New("timeout")))
	assert.True(t, IsErrorCode(err, ErrLoadFailed))
	assert.False(t, IsErrorCode(err, ErrNotFound))
	assert.False(t, IsErrorCode(errors.New("plain"), ErrNotFound))
}

func TestAsAppErrorWrapsUnknownErrors(t *testing.T) {
	appErr := AsAppError(errors.New("boom"))
	assert.Equal(t, ErrDatabase, appErr.Code)

	forbidden := NewAppError(ErrForbidden, "admins only", nil)
	assert.Same(t, forbidden, AsAppError(forbidden))
	assert.True(t, IsAuthError(forbidden))
}

func TestAppErrorToHTTPStatus(t *testing.T) {
	cases := map[string]int{
		ErrNotFound:          http.StatusNotFound,
		ErrCommunityNotFound: http.StatusNotFound,
		ErrParentNotFound:    http.StatusBadRequest,
		ErrInvalidInput:      http.StatusBadRequest,
		ErrInvalidToken:      http.StatusUnauthorized,
		ErrForbidden:         http.StatusForbidden,
		ErrLoadFailed:        http.StatusServiceUnavailable,
		ErrDatabase:          http.StatusInternalServerError,
		"SOMETHING_ELSE":     http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, AppErrorToHTTPStatus(code), code)
	}
}
