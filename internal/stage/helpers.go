package stage

import (
	"errors"

	"folio/internal/services"
)

// Reject builds a validation-time error for stage with the given marker.
// reason is written verbatim into the error record.
func Reject(stageName string, marker error, reason string) error {
	return services.Wrap(marker, stageName, "validate", reason, nil)
}

// Failed wraps a processor error so the error record carries err's text.
// Errors already classified by services.Wrap are returned unchanged.
func Failed(stageName string, err error) error {
	if err == nil {
		return nil
	}
	var classified *services.StageError
	if errors.As(err, &classified) {
		return err
	}
	return services.Wrap(services.ErrProcessing, stageName, "process", err.Error(), err)
}

// Health is the outcome of a stage's startup check.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy reports a stage that cannot take work; detail becomes the text of
// the worker's fatal status entry.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}

// Err is nil for a ready stage and otherwise an ErrConfiguration error
// carrying Detail.
func (h Health) Err() error {
	if h.Ready {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, h.Name, "preflight", h.Detail, nil)
}
