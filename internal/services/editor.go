package services

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/log"
	"fintrack/internal/store"
)

// ValidationError marks input problems detected before any store call.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err came from input validation.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Reloaded carries the list refetched after a successful mutation. A failed
// reload does not undo the mutation; ReloadErr reports it separately.
type Reloaded[T any] struct {
	Items     T
	ReloadErr error
}

// MutateAndReload runs mutate and, only when it succeeds, reload. The
// mutation error is returned as is so the caller can keep its form open.
func MutateAndReload[T any](ctx context.Context, logger *log.Logger, op string,
	mutate func(context.Context) error, reload func(context.Context) (T, error)) (Reloaded[T], error) {
	var out Reloaded[T]
	events := log.NewStructuredLogger(logger)
	if err := mutate(ctx); err != nil {
		if !IsValidation(err) {
			events.LogError(ctx, "Mutation failed", err, op, nil)
		}
		return out, err
	}
	items, err := reload(ctx)
	if err != nil {
		events.LogError(ctx, "Reload after mutation failed", err, log.OpReload, log.LogFields{"after": op})
		out.ReloadErr = err
		return out, nil
	}
	out.Items = items
	return out, nil
}

// IsNotFound reports whether err means the row is gone or not the caller's.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
