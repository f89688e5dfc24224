package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMapsStatusAndSuggestion(t *testing.T) {
	err := New(ErrAuthFailed, "missing admin key", nil)
	assert.Equal(t, http.StatusUnauthorized, err.HTTPStatus)
	assert.NotEmpty(t, err.Suggestion)
	assert.Equal(t, "missing admin key", err.Error())

	assert.Equal(t, http.StatusNotFound, NewNotFound("x").HTTPStatus)
	assert.Equal(t, http.StatusBadRequest, NewInvalidRequest("x").HTTPStatus)
	assert.Equal(t, http.StatusServiceUnavailable, New(ErrPersistence, "x", nil).HTTPStatus)
}

func TestWrapKeepsAppErrors(t *testing.T) {
	inner := NewNotFound("call not found")
	wrapped := fmt.Errorf("handler: %w", inner)
	assert.Same(t, inner, Wrap(wrapped))

	plain := errors.New("boom")
	got := Wrap(plain)
	assert.Equal(t, ErrInternal, got.Type)
	assert.ErrorIs(t, got, plain)
	assert.Nil(t, Wrap(nil))
}
