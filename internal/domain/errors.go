package domain

import "errors"

var (
	// ErrInvalidCode is returned when no session matches a join code.
	ErrInvalidCode = errors.New("invalid join code")
	// ErrSessionUnavailable is returned when the session is no longer accepting players.
	ErrSessionUnavailable = errors.New("session is not accepting players")
	// ErrSessionFull is returned when the session already has the maximum number of players.
	ErrSessionFull = errors.New("session is full")
	// ErrCodeExhausted is returned when join-code generation keeps colliding.
	ErrCodeExhausted = errors.New("join code generation exhausted")
	// ErrSessionNotFound is returned when a challenge session does not exist.
	ErrSessionNotFound = errors.New("challenge session not found")
	// ErrParticipantNotFound is returned when a user tries to act before joining.
	ErrParticipantNotFound = errors.New("participant not found in session")
	// ErrQuestionNotFound indicates a question index is out of range for the session.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrDeckNotFound indicates the deck backing a session could not be loaded.
	ErrDeckNotFound = errors.New("deck not found")
	// ErrDuplicate signals a unique-key conflict. Callers that rely on
	// idempotent inserts swallow it and treat the write as a success.
	ErrDuplicate = errors.New("duplicate row")
)
