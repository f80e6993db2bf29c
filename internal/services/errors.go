package services

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrGenerationInFlight  = errors.New("a generation is already in flight")
	ErrAlreadyPublished    = errors.New("project is already published")
	ErrNoSnapshot          = errors.New("nothing to publish yet")
	ErrInvalidTransition   = errors.New("invalid job status transition")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidKind         = errors.New("invalid kind")
	ErrInvalidInput        = errors.New("invalid input")
)

// GenerationFailedError is a generation that ended without a complete frame:
// a refused request, a remote error frame, a broken stream or a truncated one.
type GenerationFailedError struct {
	SubjectID string
	Cause     error
}

func (e *GenerationFailedError) Error() string {
	if e == nil {
		return ""
	}
	if e.SubjectID != "" {
		return fmt.Sprintf("generation failed (%s): %v", e.SubjectID, e.Cause)
	}
	return fmt.Sprintf("generation failed: %v", e.Cause)
}

func (e *GenerationFailedError) Unwrap() error { return e.Cause }

// PersistFailedError means the snapshot checkpoint did not reach the store.
// The unsaved flag stays set.
type PersistFailedError struct {
	ProjectID string
	Cause     error
}

func (e *PersistFailedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("persist project %s: %v", e.ProjectID, e.Cause)
}

func (e *PersistFailedError) Unwrap() error { return e.Cause }

// InteractionFailedError means a like/save mutation was not applied.
type InteractionFailedError struct {
	Kind  string
	Cause error
}

func (e *InteractionFailedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s interaction failed: %v", e.Kind, e.Cause)
}

func (e *InteractionFailedError) Unwrap() error { return e.Cause }
