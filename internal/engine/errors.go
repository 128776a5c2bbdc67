package engine

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyActive   = errors.New("questionnaire session already active")
	ErrNoActiveSession = errors.New("no active questionnaire session")
	ErrNotComplete     = errors.New("questionnaire is not complete")
	ErrNotInProgress   = errors.New("questionnaire session is not in progress")
)

// StorageError reports a failed read or write against the session store or
// the durable record store. The session is left as it was before the call.
type StorageError struct {
	Op        string
	Cause     error
	Retryable bool
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Cause)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}
