// Package apperr defines the error taxonomy surfaced to callers. Every error carries
// a stable machine-readable code that is independent of the underlying cause.
package apperr

import (
	"errors"
	"strings"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindPermission
	KindNotFound
	KindConflict
	KindRateLimited
	KindVerificationFailed
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindPermission:
		return "permission"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindVerificationFailed:
		return "verification_failed"
	default:
		return "internal"
	}
}

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details []string
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return e.Code + ": " + e.Message
	}
	return e.Code + ": " + e.Message + " (" + strings.Join(e.Details, ", ") + ")"
}

// Is matches on code, so copies produced by WithDetails still match their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *Error) WithDetails(details ...string) *Error {
	cp := *e
	cp.Details = append([]string(nil), details...)
	return &cp
}

func (e *Error) WithMessage(message string) *Error {
	cp := *e
	cp.Message = message
	return &cp
}

// From returns the *Error in err's chain, or ErrInternal when there is none.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal
}

// KindOf reports the kind of a non-nil error.
func KindOf(err error) Kind {
	return From(err).Kind
}

var (
	ErrInternal        = New(KindInternal, "internal_error", "unexpected error")
	ErrValidation      = New(KindValidation, "validation_error", "invalid input")
	ErrUnauthenticated = New(KindAuthentication, "unauthenticated", "authentication required")
	ErrForbidden       = New(KindPermission, "forbidden", "permission denied")
	ErrNotFound        = New(KindNotFound, "not_found", "resource not found")
	ErrRateLimited     = New(KindRateLimited, "rate_limited", "too many attempts, retry later")

	ErrInvalidState            = New(KindConflict, "invalid_state", "run is not in the required state")
	ErrActiveRunExists         = New(KindConflict, "active_run_exists", "an active run already exists for this mission")
	ErrMissionAlreadyCompleted = New(KindConflict, "mission_already_completed", "mission already completed")
	ErrVersionConflict         = New(KindConflict, "version_conflict", "concurrent update, retry later")
	ErrIdempotencyKeyReused    = New(KindConflict, "idempotency_key_reused", "idempotency key already used for another run")
	ErrRunExpired              = New(KindConflict, "run_expired", "run has expired")

	ErrAccuracyTooLow = New(KindVerificationFailed, "accuracy_too_low", "location accuracy too low")
	ErrStaleLocation  = New(KindVerificationFailed, "stale_location", "location reading is stale")
	ErrTooFar         = New(KindVerificationFailed, "too_far", "location is too far from the mission place")
	ErrMockLocation   = New(KindVerificationFailed, "mock_location", "location comes from a mock provider")

	ErrMalformedToken = New(KindVerificationFailed, "malformed_token", "proof token is malformed")
	ErrBadSignature   = New(KindVerificationFailed, "bad_signature", "proof token signature is invalid")
	ErrTokenMismatch  = New(KindVerificationFailed, "token_mismatch", "proof token belongs to another mission or place")
	ErrTokenNotFound  = New(KindVerificationFailed, "token_not_found", "proof token is unknown")
	ErrTokenExpired   = New(KindVerificationFailed, "token_expired", "proof token has expired")
	ErrTokenConsumed  = New(KindVerificationFailed, "token_consumed", "proof token was already used")

	ErrMalformedURL        = New(KindVerificationFailed, "malformed_url", "post url is malformed")
	ErrUnsupportedPlatform = New(KindVerificationFailed, "unsupported_platform", "social platform is not supported")
	ErrBadHost             = New(KindVerificationFailed, "bad_host", "post url does not match the platform")
	ErrMissingTags         = New(KindVerificationFailed, "missing_tags", "required tags are missing")
)
