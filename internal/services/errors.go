package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks precondition failures surfaced before any job is
	// enqueued (missing project, too few recordings).
	ErrValidation = errors.New("validation error")
	// ErrTransient marks media engine failures; retry is an explicit caller
	// action, never automatic.
	ErrTransient = errors.New("transient external error")
	// ErrFatalRender marks stitching render failures; no partial output may
	// be persisted as final.
	ErrFatalRender = errors.New("fatal render error")
	// ErrNotFound marks lookups for jobs or projects that do not exist.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Message extracts the human-readable portion of a wrapped error, stripping
// the marker prefix so job records and progress events stay tidy.
func Message(err error) string {
	if err == nil {
		return ""
	}
	text := strings.TrimSpace(err.Error())
	for _, marker := range []error{ErrValidation, ErrTransient, ErrFatalRender, ErrNotFound} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(text, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(text, prefix))
		}
	}
	return text
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
