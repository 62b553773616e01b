package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	detailed := ErrMissingTags.WithDetails("brand", "m-1")

	assert.ErrorIs(t, detailed, ErrMissingTags)
	assert.NotErrorIs(t, detailed, ErrBadHost)
	assert.Equal(t, []string{"brand", "m-1"}, detailed.Details)
	assert.Empty(t, ErrMissingTags.Details)
	assert.Contains(t, detailed.Error(), "brand, m-1")
}

func TestFrom(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected *Error
	}{
		{name: "nil", err: nil, expected: nil},
		{name: "direct", err: ErrTooFar, expected: ErrTooFar},
		{name: "wrapped", err: fmt.Errorf("verify: %w", ErrStaleLocation), expected: ErrStaleLocation},
		{name: "foreign", err: errors.New("boom"), expected: ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, From(tt.err))
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConflict, KindOf(ErrVersionConflict))
	assert.Equal(t, KindVerificationFailed, KindOf(ErrBadSignature))
	assert.Equal(t, KindInternal, KindOf(errors.New("db down")))
	assert.Equal(t, "rate_limited", KindRateLimited.String())
}

func TestKind_HTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{ErrValidation, 400},
		{ErrUnauthenticated, 401},
		{ErrForbidden, 403},
		{ErrNotFound, 404},
		{ErrInvalidState, 409},
		{ErrRateLimited, 429},
		{ErrTooFar, 422},
		{ErrInternal, 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Kind.HTTPStatus(), tt.err.Code)
	}
}

func TestError_Body(t *testing.T) {
	body := ErrMissingTags.WithDetails("missionrun").Body()
	assert.Equal(t, "missing_tags", body.Error.Code)
	assert.Equal(t, []string{"missionrun"}, body.Error.Details)
}
