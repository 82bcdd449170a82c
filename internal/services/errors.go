package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDeserialization = errors.New("deserialization error")
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrStateConflict   = errors.New("state conflict")
	ErrDirectory       = errors.New("directory error")
	ErrProcessing      = errors.New("processing error")
	ErrProvenanceWrite = errors.New("provenance write error")
	ErrTimeout         = errors.New("timeout")
	ErrConfiguration   = errors.New("configuration error")
)

// StageError carries the marker, the stage context, and the operator-facing
// message for a per-item failure. The message is what lands in the error
// record pushed to the error queue.
type StageError struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Err       error
}

func (e *StageError) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Marker, detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Marker, detail)
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Err}
}

// Wrap builds a StageError tagged with the provided marker for later
// classification. The marker should be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrProcessing
	}
	return &StageError{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Err:       err,
	}
}

// ErrorDetails is the flattened view of a classified error.
type ErrorDetails struct {
	Kind      string
	Stage     string
	Operation string
	Message   string
	Cause     error
}

// Details extracts the classification and message of err. Errors that were
// never wrapped report kind "processing" and their own text as the message.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return ErrorDetails{
			Kind:      Kind(err),
			Stage:     stageErr.Stage,
			Operation: stageErr.Operation,
			Message:   stageErr.Message,
			Cause:     stageErr.Err,
		}
	}
	return ErrorDetails{Kind: Kind(err), Message: strings.TrimSpace(err.Error()), Cause: err}
}

// Reason returns the text recorded in an error record for err.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	details := Details(err)
	message := details.Message
	if message == "" {
		message = strings.TrimSpace(err.Error())
	}
	if details.Kind == "deserialization" && details.Cause != nil {
		return fmt.Sprintf("%s: %v", message, details.Cause)
	}
	return message
}

// Kind maps err onto the taxonomy used in logs and provenance entries.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDeserialization):
		return "deserialization"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStateConflict):
		return "state_conflict"
	case errors.Is(err, ErrDirectory):
		return "directory"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrProvenanceWrite):
		return "provenance_write"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "processing"
	}
}

// IsRejection reports whether err was raised before the processor ran.
func IsRejection(err error) bool {
	switch Kind(err) {
	case "deserialization", "validation", "not_found", "state_conflict", "directory":
		return true
	}
	return false
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
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
