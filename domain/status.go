package domain

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusStarted   Status = "started"
	StatusInReview  Status = "in_review"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// ErrInvalidStatus is returned when a status string is not a known task state.
var ErrInvalidStatus = errors.New("invalid task status")

var nextStatus = map[Status]Status{
	StatusPending:   StatusStarted,
	StatusStarted:   StatusInReview,
	StatusInReview:  StatusCompleted,
	StatusCompleted: StatusArchived,
	StatusArchived:  StatusArchived,
}

// Next returns the single advance transition of s. Archived has no successor
// and returns itself.
func (s Status) Next() Status {
	if n, ok := nextStatus[s]; ok {
		return n
	}
	return s
}

// Valid reports whether s is one of the known task states.
func (s Status) Valid() bool {
	_, ok := nextStatus[s]
	return ok
}

// ParseStatus converts s into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}
