package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/geocoder89/identityhub/internal/apperr"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{name: "unauthorized", err: apperr.Unauthorized("no token"), want: apperr.KindUnauthorized},
		{name: "wrapped_forbidden", err: fmt.Errorf("delete: %w", apperr.Forbidden("admin only")), want: apperr.KindForbidden},
		{name: "plain_error_is_internal", err: errors.New("boom"), want: apperr.KindInternal},
		{name: "invalid_credentials", err: apperr.InvalidCredentials(), want: apperr.KindInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperr.KindOf(tt.err))
		})
	}
}

func TestIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", apperr.Conflict("User already exists"))

	assert.True(t, errors.Is(err, apperr.Conflict("")))
	assert.False(t, errors.Is(err, apperr.NotFound("")))
}

func TestAsWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("db down")
	got := apperr.As(cause)

	assert.Equal(t, apperr.KindInternal, got.Kind)
	assert.ErrorIs(t, got, cause)
	assert.NotContains(t, got.Message, "db down")
}
