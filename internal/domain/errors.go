package domain

import "errors"

var (
	// ErrInsufficientContent is returned when fewer eligible questions exist
	// than a mode requires. Recoverable: callers surface a "come back later"
	// message instead of padding the set.
	ErrInsufficientContent = errors.New("not enough questions available")

	// ErrNoQuestions is returned when a session is started with an empty set.
	ErrNoQuestions = errors.New("session requires at least one question")

	// ErrInvalidState is returned when a session operation is invoked outside
	// the state that allows it. Indicates a caller bug, never a user condition.
	ErrInvalidState = errors.New("operation not valid in current session state")

	// ErrAlreadyFinished is returned by a second Finish on the same session.
	ErrAlreadyFinished = errors.New("session already finished")

	// ErrInvalidAnswerIndex is returned when a submitted answer index is
	// outside the question's option range.
	ErrInvalidAnswerIndex = errors.New("answer index out of range")

	// ErrMalformedQuestion indicates content that violates the four-options /
	// one-correct invariant.
	ErrMalformedQuestion = errors.New("malformed question")

	// ErrNotFound is the generic missing-document error from the store.
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned by conditional creates when the document already
	// exists. Races on daily records and badge awards resolve it as success.
	ErrConflict = errors.New("document already exists")

	// ErrSessionNotFound is returned when a play or challenge session id is
	// unknown (expired, finished, or never created).
	ErrSessionNotFound = errors.New("session not found")

	// ErrParticipantNotFound is returned when a user acts in a challenge room
	// before joining it.
	ErrParticipantNotFound = errors.New("participant not found in challenge")
)
