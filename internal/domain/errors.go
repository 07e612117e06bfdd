package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound covers a missing or expired session, quiz, step or user.
	ErrNotFound = errors.New("not found")
	// ErrInvalidStep is returned when a step does not belong to the referenced sequence.
	ErrInvalidStep = errors.New("step does not belong to the specified quiz")
	// ErrDuplicateAnswer is returned when a step was already answered in a durable session.
	ErrDuplicateAnswer = errors.New("an answer for this step was already submitted")
	// ErrSessionAlreadyActive is returned when an origin already holds an anonymous session.
	ErrSessionAlreadyActive = errors.New("an anonymous quiz session is already active")
	// ErrAlreadyStarted is returned when a durable session exists for (user, quiz).
	ErrAlreadyStarted = errors.New("quiz already started")
	// ErrModeMismatch is returned when the claimed mode differs from the stored one.
	ErrModeMismatch = errors.New("step mode mismatch")
	// ErrUnsupportedMode signals a step stored with an unknown mode.
	ErrUnsupportedMode = errors.New("unsupported step mode")
	// ErrStorageUnavailable wraps collaborator I/O failures.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrConcurrentUpdate is returned when a durable session changed under a write.
	ErrConcurrentUpdate = errors.New("session was modified concurrently")
	// ErrInvalidQuiz is returned for empty step sequences or repeated step ids.
	ErrInvalidQuiz = errors.New("invalid quiz definition")
	// ErrUnauthenticated is returned when an operation requires a user.
	ErrUnauthenticated = errors.New("authentication required")
)

// SessionActiveError reports how long the caller has to wait before a new
// anonymous session can be created.
type SessionActiveError struct {
	Remaining time.Duration
}

func (e *SessionActiveError) Error() string {
	return fmt.Sprintf("%s: please wait %d seconds for it to expire", ErrSessionAlreadyActive, e.Seconds())
}

// Seconds returns the remaining TTL rounded down to whole seconds, never negative.
func (e *SessionActiveError) Seconds() int {
	if e.Remaining <= 0 {
		return 0
	}
	return int(e.Remaining / time.Second)
}

func (e *SessionActiveError) Is(target error) bool {
	return target == ErrSessionAlreadyActive
}

// ModeMismatchError carries the stored and claimed modes.
type ModeMismatchError struct {
	Expected Mode
	Got      Mode
}

func (e *ModeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", ErrModeMismatch, e.Expected, e.Got)
}

func (e *ModeMismatchError) Is(target error) bool {
	return target == ErrModeMismatch
}

// IsDomainError reports whether err belongs to the domain taxonomy above.
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrNotFound, ErrInvalidStep, ErrDuplicateAnswer, ErrSessionAlreadyActive,
		ErrAlreadyStarted, ErrModeMismatch, ErrUnsupportedMode, ErrStorageUnavailable,
		ErrConcurrentUpdate, ErrInvalidQuiz, ErrUnauthenticated,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
