package article

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrInvalidState    = errors.New("invalid state")
	ErrConflict        = errors.New("conflict")
	ErrProvider        = errors.New("provider error")
	ErrTimeout         = errors.New("timeout")
	ErrNotFound        = errors.New("not found")
	ErrNoOp            = errors.New("no-op")
	ErrUnavailable     = errors.New("provider unavailable")
	ErrFeatureDisabled = errors.New("feature disabled")
)

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

func InvalidStatef(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidState}, args...)...)
}

func Providerf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrProvider}, args...)...)
}

func Unavailablef(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUnavailable}, args...)...)
}

// FailureCause is the typed reason a worker reports back to the orchestrator.
type FailureCause string

const (
	CauseTimeout       FailureCause = "timeout"
	CauseProviderError FailureCause = "provider_error"
	CauseInvalidInput  FailureCause = "invalid_input"
)

// ClassifyFailure maps a worker error onto its failure cause and target state.
func ClassifyFailure(err error) (FailureCause, Status) {
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CauseTimeout, StatusTimeout
	case errors.Is(err, ErrValidation):
		return CauseInvalidInput, StatusFailed
	default:
		return CauseProviderError, StatusFailed
	}
}
