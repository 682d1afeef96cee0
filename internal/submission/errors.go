package submission

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/leadform/internal/validation"
)

// ErrInvalid is matched by every InvalidError.
var ErrInvalid = errors.New("form is invalid")

// InvalidError aborts a submission whose pre-submit validation failed. The
// failures are already annotated on the form.
type InvalidError struct {
	Failures []validation.Outcome
}

func (e *InvalidError) Error() string {
	fields := make([]string, 0, len(e.Failures))
	for _, o := range e.Failures {
		fields = append(fields, fmt.Sprintf("%s (%s)", o.Field, o.Reason))
	}
	return fmt.Sprintf("form is invalid: %s", strings.Join(fields, ", "))
}

func (e *InvalidError) Is(target error) bool {
	return target == ErrInvalid
}

// Error represents a submission failure other than validation.
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("submission error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("submission error: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
