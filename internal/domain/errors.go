package domain

import "errors"

var (
	// ErrUnauthenticated is returned when no current identity is present.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrMissionNotFound indicates the referenced mission does not exist.
	ErrMissionNotFound = errors.New("mission not found")
	// ErrAttemptNotFound indicates the attempt does not exist, belongs to
	// another user, or was already finished.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrEdgeNotFound indicates no friendship edge matches the given direction.
	ErrEdgeNotFound = errors.New("friendship edge not found")
	// ErrProfileNotFound indicates the learner has no profile row.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrLevelLocked is returned when a mission above the unlocked level is accessed.
	ErrLevelLocked = errors.New("level locked")
	// ErrDuplicateRequest indicates an edge already exists between the pair.
	ErrDuplicateRequest = errors.New("friend request already exists")
	// ErrPathComplete signals that no further mission exists. It is a terminal
	// outcome, not a failure.
	ErrPathComplete = errors.New("path complete")
	// ErrChoiceNotFound indicates a submitted choice ID is invalid.
	ErrChoiceNotFound = errors.New("choice not found")
)
