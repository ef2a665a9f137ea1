// Package errors provides error categorization and bounded retry for storage
// operations.
//
// The package implements a layered error handling approach:
//   - Categorization: Classify errors as transient, permanent or configuration
//   - Retry: Re-run transient failures with exponential backoff under a deadline
//   - Timeouts: Surface exhausted deadlines as a TimeoutError naming the operation
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/api/googleapi"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: rate limits, timeouts, objects not yet visible.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: missing files, permission failures, corrupt payloads.
	CategoryPermanent

	// CategoryConfiguration indicates the caller set things up wrong.
	// Examples: unmatched path prefix, saveable without save/load, unknown key.
	CategoryConfiguration
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Retries is the number of attempts that have been made.
	Retries int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Retries)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Retries)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, context string) *CategorizedError {
	return &CategorizedError{
		Err:      err,
		Category: category,
		Context:  context,
	}
}

// Transient creates a transient error.
func Transient(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryTransient, context)
}

// Permanent creates a permanent error.
func Permanent(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryPermanent, context)
}

// Configuration creates a configuration error.
func Configuration(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryConfiguration, context)
}

// TimeoutError indicates an operation did not finish within its deadline.
type TimeoutError struct {
	Operation string
	Duration  string
	Err       error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("timeout after %s: %s: %v", e.Duration, e.Operation, e.Err)
	}
	return fmt.Sprintf("timeout after %s: %s", e.Duration, e.Operation)
}

// Unwrap returns the last error seen before the deadline, if any.
func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// Categorize determines how an error should be handled.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent // shouldn't happen, fail safe
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return CategoryTransient
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 408 || apiErr.Code == 429:
			return CategoryTransient
		case apiErr.Code >= 500:
			return CategoryTransient
		default:
			return CategoryPermanent
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTransient
	}

	// Unknown errors are permanent (fail safe)
	return CategoryPermanent
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}

// IsConfiguration reports whether the error stems from caller setup.
func IsConfiguration(err error) bool {
	return Categorize(err) == CategoryConfiguration
}
