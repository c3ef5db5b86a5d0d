/*
errors.go - Centralized error taxonomy for the approval engine

PURPOSE:
  All engine errors fall into four kinds. Callers classify with errors.Is
  against the sentinels; structured types carry detail and Unwrap to the
  matching sentinel.

ERROR KINDS:
  1. Validation    - malformed or out-of-range input (non-positive amount,
                     approved amount exceeding the requested amount)
  2. Authorization - actor lacks the role or relationship the operation needs
  3. NotFound      - referenced user/expense/step does not exist
  4. Conflict      - decision attempted on an already-resolved step

  None of these are transient: retrying with the same input reproduces the
  same error. Conflict is the one a caller may legitimately retry against a
  fresh step if the workflow re-routes.

USAGE:
  if workflow.IsConflict(err) {
      // another decision won the race
  }

SEE ALSO:
  - engine.go: Where these are raised
  - api/handlers.go: HTTP status mapping (400/403/404/409)
*/
package workflow

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all input validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrAuthorization is returned when the principal may not perform the
	// operation. No state changes on this path, ever.
	ErrAuthorization = errors.New("not authorized")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a decision targets a step that is no
	// longer pending. This is the engine's concurrency guard: of two racing
	// decisions, exactly one observes PENDING and wins.
	ErrConflict = errors.New("step already resolved")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes which field failed and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// AuthorizationError describes the failed permission check.
type AuthorizationError struct {
	ActorID   string
	Operation string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %s not authorized for %s", e.ActorID, e.Operation)
}

func (e *AuthorizationError) Unwrap() error { return ErrAuthorization }

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "user", "expense", "step", "company"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError records the status that beat the caller to the step.
type ConflictError struct {
	StepID string
	Status Status
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("step %s already resolved as %s", e.StepID, e.Status)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

func IsValidation(err error) bool    { return errors.Is(err, ErrValidation) }
func IsAuthorization(err error) bool { return errors.Is(err, ErrAuthorization) }
func IsNotFound(err error) bool      { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool      { return errors.Is(err, ErrConflict) }
