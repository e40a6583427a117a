package services

import (
	"errors"
	"fmt"
)

var (
	ErrProposalNotFound = errors.New("proposal not found")
	ErrAlreadyDecided   = errors.New("proposal already decided")
	ErrSeedNotFound     = errors.New("seed not found")
	ErrSeedFinal        = errors.New("seed is final")
	ErrInvalidInput     = errors.New("invalid input")
)

// UpstreamError aborts a whole stage call because an external dependency failed.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s unavailable: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
