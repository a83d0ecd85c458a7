package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrRoomNotFound = errors.New("room not found")
	ErrNotAMember   = errors.New("user not in room")
	ErrNotInAnyRoom = errors.New("not in any room")
	ErrForbidden    = errors.New("only the room owner can moderate this room")
	ErrRateLimited  = errors.New("rate limit exceeded, please slow down")
	ErrNoMatch      = errors.New("no open rooms available")

	ErrRoomAlreadyExists = errors.New("room already exists")

	ErrAccessDenied            = errors.New("access denied")
	ErrBanned                  = fmt.Errorf("%w: you are banned from this room", ErrAccessDenied)
	ErrLockedPasswordRequired  = fmt.Errorf("%w: room is locked, password required", ErrAccessDenied)
	ErrLockedIncorrectPassword = fmt.Errorf("%w: incorrect password", ErrAccessDenied)
	ErrTemporarilyKicked       = fmt.Errorf("%w: you are temporarily kicked from this room", ErrAccessDenied)
)

// Wire codes reported to clients alongside the human readable error.
const (
	CodeValidation              = "VALIDATION_ERROR"
	CodeRoomNotFound            = "ROOM_NOT_FOUND"
	CodeNotAMember              = "NOT_A_MEMBER"
	CodeNotInAnyRoom            = "NOT_IN_ANY_ROOM"
	CodeForbidden               = "FORBIDDEN"
	CodeBanned                  = "BANNED"
	CodeLockedPasswordRequired  = "LOCKED_PASSWORD_REQUIRED"
	CodeLockedIncorrectPassword = "LOCKED_INCORRECT_PASSWORD"
	CodeTemporarilyKicked       = "TEMPORARILY_KICKED"
	CodeRateLimited             = "RATE_LIMITED"
	CodeNoMatch                 = "NO_MATCH"
	CodeInternal                = "INTERNAL"
)

var errorCodes = []struct {
	err  error
	code string
}{
	// access denial variants first, they also match ErrAccessDenied
	{ErrBanned, CodeBanned},
	{ErrLockedPasswordRequired, CodeLockedPasswordRequired},
	{ErrLockedIncorrectPassword, CodeLockedIncorrectPassword},
	{ErrTemporarilyKicked, CodeTemporarilyKicked},
	{ErrValidation, CodeValidation},
	{ErrRoomNotFound, CodeRoomNotFound},
	{ErrNotAMember, CodeNotAMember},
	{ErrNotInAnyRoom, CodeNotInAnyRoom},
	{ErrForbidden, CodeForbidden},
	{ErrRateLimited, CodeRateLimited},
	{ErrNoMatch, CodeNoMatch},
}

// ErrorCode maps an engine error onto its wire code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// RateLimitedError reports a throttled event and when the window reopens.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s (retry in %s)", ErrRateLimited, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitedError) Unwrap() error {
	return ErrRateLimited
}
