package types

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error codes returned to API callers.
const (
	CodeValidation            = "validation_error"
	CodeStageFailed           = "stage_failed"
	CodeClarificationTimeout  = "clarification_timeout"
	CodeDuplicateVerification = "duplicate_verification"
	CodeDuplicateClaim        = "duplicate_claim"
	CodeRunActive             = "run_active"
	CodeAlreadyResolved       = "already_resolved"
	CodeNotFound              = "not_found"
	CodeInvalidTransition     = "invalid_transition"
	CodeInfrastructure        = "infrastructure_error"
	CodeInternal              = "internal_error"
)

// Coded is implemented by every domain error.
type Coded interface {
	error
	Code() string
}

// ValidationError is returned when input is rejected at the boundary.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// Code implements Coded.
func (e *ValidationError) Code() string { return CodeValidation }

// StageExecutionError wraps a failure raised inside a stage.
// It is recorded on the stage and never returned to callers.
type StageExecutionError struct {
	Stage string
	Cause error
}

func (e *StageExecutionError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Cause)
}

func (e *StageExecutionError) Unwrap() error { return e.Cause }

// Code implements Coded.
func (e *StageExecutionError) Code() string { return CodeStageFailed }

// ClarificationTimeoutError describes a clarification that expired unanswered.
type ClarificationTimeoutError struct {
	RequestID uuid.UUID
}

func (e *ClarificationTimeoutError) Error() string {
	return fmt.Sprintf("clarification %s expired without a response", e.RequestID)
}

// Code implements Coded.
func (e *ClarificationTimeoutError) Code() string { return CodeClarificationTimeout }

// DuplicateVerificationError is returned when a verifier judges the same claim twice.
type DuplicateVerificationError struct {
	ClaimID    uuid.UUID
	VerifierID string
	ExistingID uuid.UUID
}

func (e *DuplicateVerificationError) Error() string {
	return fmt.Sprintf("verifier %s already submitted a verification for claim %s", e.VerifierID, e.ClaimID)
}

// Code implements Coded.
func (e *DuplicateVerificationError) Code() string { return CodeDuplicateVerification }

// DuplicateClaimError is returned when the same claim text is submitted again.
type DuplicateClaimError struct {
	ExistingID uuid.UUID
}

func (e *DuplicateClaimError) Error() string {
	return fmt.Sprintf("claim already submitted: %s", e.ExistingID)
}

// Code implements Coded.
func (e *DuplicateClaimError) Code() string { return CodeDuplicateClaim }

// ActiveRunError is returned when a claim already has a run in progress.
type ActiveRunError struct {
	ClaimID    uuid.UUID
	ExistingID uuid.UUID
}

func (e *ActiveRunError) Error() string {
	return fmt.Sprintf("claim %s already has an active run: %s", e.ClaimID, e.ExistingID)
}

// Code implements Coded.
func (e *ActiveRunError) Code() string { return CodeRunActive }

// AlreadyResolvedError is returned when acting on a clarification that is no longer pending.
type AlreadyResolvedError struct {
	RequestID uuid.UUID
	Status    string
}

func (e *AlreadyResolvedError) Error() string {
	return fmt.Sprintf("clarification %s is already %s", e.RequestID, e.Status)
}

// Code implements Coded.
func (e *AlreadyResolvedError) Code() string { return CodeAlreadyResolved }

// NotFoundError indicates a missing entity.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// Code implements Coded.
func (e *NotFoundError) Code() string { return CodeNotFound }

// InvalidTransitionError is returned for a run state change the state machine does not allow.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid run transition: %s -> %s", e.From, e.To)
}

// Code implements Coded.
func (e *InvalidTransitionError) Code() string { return CodeInvalidTransition }

// InfrastructureError means a store or collaborator was unavailable.
type InfrastructureError struct {
	Op    string
	Cause error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("infrastructure failure during %s: %v", e.Op, e.Cause)
}

func (e *InfrastructureError) Unwrap() error { return e.Cause }

// Code implements Coded.
func (e *InfrastructureError) Code() string { return CodeInfrastructure }

// Infra wraps err as an InfrastructureError unless it is already a domain error.
func Infra(op string, err error) error {
	if err == nil {
		return nil
	}
	var coded Coded
	if errors.As(err, &coded) {
		return err
	}
	return &InfrastructureError{Op: op, Cause: err}
}

// ErrorCode returns the machine-readable code for err.
func ErrorCode(err error) string {
	var coded Coded
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return CodeInternal
}
