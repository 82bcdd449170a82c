package stage

import (
	"context"

	"folio/internal/workitem"
)

// Job is a work item that passed validation. Raw is the exact payload claimed
// from the read queue.
type Job struct {
	Raw     string
	Input   string
	Case    workitem.Case
	HasCase bool
	Payload any
}

// Validator turns a raw payload into a Job or rejects it. Rejections carry
// one of the services rejection markers and an operator-facing reason.
type Validator interface {
	Prepare(context.Context, string) (*Job, error)
}

// Processor performs the stage's work for an accepted Job. It must honour
// context cancellation.
type Processor interface {
	Execute(context.Context, *Job) (Outcome, error)
}

// Handler describes the contract the claim engine needs from each stage.
type Handler interface {
	Validator
	Processor
	Name() string
	HealthCheck(context.Context) Health
}

// ArtifactKind distinguishes artifacts recorded in provenance.
type ArtifactKind string

const (
	ArtifactImage ArtifactKind = "image"
	ArtifactOCR   ArtifactKind = "ocr"
)

// Artifact is an output file produced by a Processor.
type Artifact struct {
	Kind     ArtifactKind
	Type     string
	Language string
	Path     string
}

// Outcome is the result of a successful Execute.
type Outcome struct {
	Artifacts []Artifact
	Message   string
}
