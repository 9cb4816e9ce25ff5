package workflow

import "errors"

var (
	// ErrValidation is returned when a required field is missing or empty
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrDuplicateApprover is returned when the first approver attempts the
	// second approval on the same report
	ErrDuplicateApprover = errors.New("same user cannot give both approvals")

	// ErrUnauthorized is returned when the acting user lacks the role or
	// identity required for the operation
	ErrUnauthorized = errors.New("not authorized for this operation")

	// ErrNotFound is returned when the report does not exist
	ErrNotFound = errors.New("report not found")

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrArtifactGeneration marks a failed document/export generation.
	// Never fatal to a transition; surfaced only as a warning.
	ErrArtifactGeneration = errors.New("artifact generation failed")

	// ErrNotificationDispatch marks a failed outbound notification.
	// Never fatal to a transition; surfaced only as a warning.
	ErrNotificationDispatch = errors.New("notification dispatch failed")
)
