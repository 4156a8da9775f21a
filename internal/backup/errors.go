package backup

import (
	"errors"
	"fmt"

	"github.com/temirov/gitbackup/internal/execshell"
)

const (
	toolUnavailableMessageConstant           = "required tool unavailable"
	invalidRepositoryMessageConstant         = "not a git work tree"
	operationFailedMessageConstant           = "capture step failed"
	captureErrorTemplateConstant             = "%s (%s): %s: %v"
	captureErrorWithoutCauseTemplateConstant = "%s (%s): %s"
)

var (
	// ErrToolUnavailable indicates git or tar could not be found.
	ErrToolUnavailable = errors.New(toolUnavailableMessageConstant)
	// ErrInvalidRepository indicates the capture source is not a git work tree.
	ErrInvalidRepository = errors.New(invalidRepositoryMessageConstant)
	// ErrOperationFailed indicates a capture step failed.
	ErrOperationFailed = errors.New(operationFailedMessageConstant)
)

// CaptureError reports the step at which a capture aborted. errors.Is matches both Category and Cause.
type CaptureError struct {
	Step           string
	RepositoryPath string
	Category       error
	Cause          error
}

// Error describes the failure.
func (captureError CaptureError) Error() string {
	if captureError.Cause == nil {
		return fmt.Sprintf(captureErrorWithoutCauseTemplateConstant, captureError.Category, captureError.RepositoryPath, captureError.Step)
	}
	return fmt.Sprintf(captureErrorTemplateConstant, captureError.Category, captureError.RepositoryPath, captureError.Step, captureError.Cause)
}

// Unwrap exposes the category and the cause.
func (captureError CaptureError) Unwrap() []error {
	unwrapped := []error{captureError.Category}
	if captureError.Cause != nil {
		unwrapped = append(unwrapped, captureError.Cause)
	}
	return unwrapped
}

func newCaptureError(step string, repositoryPath string, cause error) CaptureError {
	return CaptureError{Step: step, RepositoryPath: repositoryPath, Category: categorize(cause), Cause: cause}
}

func categorize(cause error) error {
	var existing CaptureError
	if errors.As(cause, &existing) {
		return existing.Category
	}
	var executionError execshell.CommandExecutionError
	if errors.As(cause, &executionError) && executionError.ExecutableMissing() {
		return ErrToolUnavailable
	}
	return ErrOperationFailed
}
