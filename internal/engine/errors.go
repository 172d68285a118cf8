package engine

import (
	"context"
	"errors"
	"net"
)

// ErrorCategory partitions failures by how callers should react. Transport
// failures propagate on playback paths and degrade to empty results on
// discovery paths; schema mismatches never surface as errors at all.
type ErrorCategory int

const (
	CategoryUnknown ErrorCategory = iota
	CategoryNetwork
	CategoryUnsupported
	CategoryRestricted
	CategoryInvalidID
	CategoryFilesystem
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryNetwork:
		return "network"
	case CategoryUnsupported:
		return "unsupported"
	case CategoryRestricted:
		return "restricted"
	case CategoryInvalidID:
		return "invalid-id"
	case CategoryFilesystem:
		return "filesystem"
	default:
		return "unknown"
	}
}

// CategorizedError tags an error with its category.
type CategorizedError struct {
	Category ErrorCategory
	Err      error
}

func (e CategorizedError) Error() string {
	return e.Err.Error()
}

func (e CategorizedError) Unwrap() error {
	return e.Err
}

func wrapCategory(category ErrorCategory, err error) error {
	if err == nil {
		return nil
	}
	return CategorizedError{Category: category, Err: err}
}

// errorCategory returns the innermost explicit category, falling back to a
// transport guess for unwrapped network failures.
func errorCategory(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.Category
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return CategoryNetwork
	}
	return CategoryUnknown
}

// ExitCode maps an error to a stable process exit code for the CLI.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch errorCategory(err) {
	case CategoryInvalidID:
		return 2
	case CategoryNetwork:
		return 3
	case CategoryUnsupported:
		return 4
	case CategoryRestricted:
		return 5
	case CategoryFilesystem:
		return 6
	default:
		return 1
	}
}
