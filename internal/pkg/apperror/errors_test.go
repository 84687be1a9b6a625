package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_MapsHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrCodeNotFound:           http.StatusNotFound,
		ErrCodeForbidden:          http.StatusForbidden,
		ErrCodeValidation:         http.StatusBadRequest,
		ErrCodeConflict:           http.StatusConflict,
		ErrCodeInvalidTransition:  http.StatusConflict,
		ErrCodeInsufficientFunds:  http.StatusUnprocessableEntity,
		ErrCodeGateway:            http.StatusBadGateway,
		ErrCodeInvariantViolation: http.StatusInternalServerError,
		ErrCodeDatabaseError:      http.StatusInternalServerError,
	}

	for code, status := range cases {
		assert.Equal(t, status, New(code, "x").HTTPStatus, string(code))
	}
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, ErrCodeGateway, "платёжный шлюз недоступен")

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsGateway(err))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestIsHelpers_SeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("accept: %w", InvalidTransition("предложение уже отозвано"))

	assert.True(t, IsInvalidTransition(err))
	assert.False(t, IsConflict(err))
	assert.Equal(t, ErrCodeInvalidTransition, CodeOf(err))
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("plain")))
}
