// Package roomid generates room identifiers and validates the join form.
package roomid

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MinUsernameLen = 3
	MinRoomIDLen   = 5
)

var (
	ErrUsernameRequired = errors.New("Enter your username")
	ErrRoomIDRequired   = errors.New("Enter a room id")
	ErrRoomIDTooShort   = errors.New("ROOM Id must be at least 5 characters long")
	ErrUsernameTooShort = errors.New("Username must be at least 3 characters long")
)

// ValidationError reports which join form field failed and why. Err is one of
// the Err* sentinels and is also the user-facing message.
type ValidationError struct {
	Field string // "username" or "roomId"
	Err   error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// Generate returns a random v4 UUID.
func Generate() string {
	return uuid.NewString()
}

// Validate checks the join form. Checks run in a fixed order and the first
// failure wins, so every bad input maps to exactly one message.
func Validate(username, roomID string) error {
	user := utf8.RuneCountInString(strings.TrimSpace(username))
	room := utf8.RuneCountInString(strings.TrimSpace(roomID))

	switch {
	case user == 0:
		return &ValidationError{Field: "username", Err: ErrUsernameRequired}
	case room == 0:
		return &ValidationError{Field: "roomId", Err: ErrRoomIDRequired}
	case room < MinRoomIDLen:
		return &ValidationError{Field: "roomId", Err: ErrRoomIDTooShort}
	case user < MinUsernameLen:
		return &ValidationError{Field: "username", Err: ErrUsernameTooShort}
	}
	return nil
}
