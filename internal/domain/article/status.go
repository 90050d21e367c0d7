package article

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusGenerating  Status = "generating"
	StatusTranslating Status = "translating"
	StatusReview      Status = "review"
	StatusPublished   Status = "published"
	StatusRejected    Status = "rejected"
	StatusFailed      Status = "failed"
	StatusTimeout     Status = "timeout"
	StatusPaused      Status = "paused"
	StatusCancelled   Status = "cancelled"
)

// Statuses is the fixed reporting order used by stats and the queue console.
var Statuses = []Status{
	StatusGenerating,
	StatusTranslating,
	StatusReview,
	StatusPublished,
	StatusRejected,
	StatusFailed,
	StatusTimeout,
	StatusPaused,
	StatusCancelled,
}

var allowedTransitions = map[Status]map[Status]struct{}{
	StatusGenerating: {
		StatusTranslating: {},
		StatusReview:      {},
		StatusFailed:      {},
		StatusTimeout:     {},
		StatusPaused:      {},
		StatusCancelled:   {},
	},
	StatusTranslating: {
		StatusReview:  {},
		StatusFailed:  {},
		StatusTimeout: {},
	},
	StatusReview: {
		StatusPublished:  {},
		StatusRejected:   {},
		StatusGenerating: {},
	},
	StatusPaused: {
		StatusGenerating: {},
		StatusCancelled:  {},
	},
	StatusFailed: {
		StatusGenerating: {},
	},
	StatusTimeout: {
		StatusGenerating: {},
	},
	StatusCancelled: {
		StatusGenerating: {},
	},
	StatusPublished: {},
	StatusRejected:  {},
}

func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	if err := ValidateStatus(status); err != nil {
		return "", err
	}
	return status, nil
}

func ValidateStatus(status Status) error {
	if _, ok := allowedTransitions[status]; !ok {
		return Validationf("invalid article status: %q", status)
	}
	return nil
}

// ValidateTransition rejects any edge that is not part of the lifecycle table.
func ValidateTransition(from, to Status) error {
	if err := ValidateStatus(from); err != nil {
		return err
	}
	if err := ValidateStatus(to); err != nil {
		return err
	}
	if _, ok := allowedTransitions[from][to]; !ok {
		return fmt.Errorf("%w: invalid article transition: %s -> %s", ErrInvalidState, from, to)
	}
	return nil
}

func CanTransition(from, to Status) bool {
	_, ok := allowedTransitions[from][to]
	return ok
}

func (s Status) IsTerminal() bool {
	return s == StatusPublished || s == StatusRejected
}

// IsFailure reports the states that stay queryable with their cause until a retry.
func (s Status) IsFailure() bool {
	return s == StatusFailed || s == StatusTimeout || s == StatusCancelled
}

// IsActive reports states where pipeline work may still be in flight.
func (s Status) IsActive() bool {
	return s == StatusGenerating || s == StatusTranslating || s == StatusReview || s == StatusPaused
}

func (s Status) String() string {
	return string(s)
}
