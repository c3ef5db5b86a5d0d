/*
Package workflow provides the core expense approval engine.

PURPOSE:
  This package contains the domain types and algorithms for routing employee
  expenses through an approval chain. An expense is submitted, acquires an
  ordered chain of approval steps, and is resolved when its current step is
  approved (in full or in part) or rejected by an authorized approver.

KEY CONCEPTS IN THIS FILE (types.go):
  - Principal: The authenticated actor {id, role, companyId} behind every call
  - User/Company: The org hierarchy (single-level reports-to relation)
  - Expense: A ledger record with a lifecycle status and monetary amounts
  - ApprovalStep: A single decision point bound to one designated approver
  - Chain: The ordered sequence of steps belonging to one expense

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for all monetary values
  2. Explicit actors: Every mutating operation takes a Principal; there is no
     ambient "current user"
  3. Snapshot routing: A step's approver is fixed at submission time and never
     rewritten by later org-chart changes
  4. Lock-step status: A step and its expense transition together, atomically

SEE ALSO:
  - engine.go: Submission and decision logic
  - org.go: Approver resolution and manager assignment
  - reporter.go: Role-scoped dashboard aggregates
  - store.go: Persistence interfaces
  - errors.go: Error taxonomy
*/
package workflow

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROLES & PRINCIPAL
// =============================================================================

type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleManager  Role = "MANAGER"
	RoleAdmin    Role = "ADMIN"
)

// ValidRole reports whether r is one of the three known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleEmployee, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// CanApprove reports whether a user holding this role may be designated as an
// approver. Employees cannot approve anyone's expenses.
func (r Role) CanApprove() bool {
	return r == RoleManager || r == RoleAdmin
}

// Principal is the authenticated actor context supplied by the identity layer.
// The engine never looks up "the current user" itself; callers pass this in.
type Principal struct {
	UserID    string
	Role      Role
	CompanyID string
}

// IsAdmin reports whether the principal holds the organization-wide override.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// =============================================================================
// ORG HIERARCHY - Companies and users
// =============================================================================

type Company struct {
	ID        string
	Name      string
	Currency  string // default currency for new expenses, ISO 4217
	CreatedAt time.Time
}

// User is a member of a company. ManagerID is a weak reference to another user
// in the same company holding MANAGER or ADMIN; nil means unassigned.
type User struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	ManagerID *string
	CompanyID string
	CreatedAt time.Time
}

// =============================================================================
// EXPENSE - Ledger record
// =============================================================================

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Resolved reports whether the status is terminal.
func (s Status) Resolved() bool { return s != StatusPending }

// Expense is a submitted expense and its lifecycle state.
// ApprovedAmount is nil unless Status is APPROVED, in which case
// 0 < ApprovedAmount <= Amount. It is set exactly once, when the deciding
// step transitions to APPROVED, and is immutable afterward.
type Expense struct {
	ID             string
	SubmitterID    string
	CompanyID      string
	Description    string
	Amount         decimal.Decimal
	Currency       string
	Category       string
	Date           time.Time
	Status         Status
	ApprovedAmount *decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Steps is the expense's approval chain, ordered by step number.
	// Empty when the submitter had no manager at submission time.
	Steps []ApprovalStep
}

// PartiallyApproved reports whether the expense was approved for less than
// the requested amount.
func (e *Expense) PartiallyApproved() bool {
	return e.Status == StatusApproved &&
		e.ApprovedAmount != nil &&
		e.ApprovedAmount.LessThan(e.Amount)
}

// =============================================================================
// APPROVAL STEP - One decision point in the chain
// =============================================================================

// ApprovalStep binds one designated approver to one expense at a fixed
// position in the chain. ApproverID is a submission-time snapshot: later
// manager reassignments never rewrite it.
type ApprovalStep struct {
	ID         string
	ExpenseID  string
	ApproverID string
	Step       int // 1-based position in the chain
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Decision is an approver's verdict on a step.
type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// ValidDecision reports whether d is a known decision value.
func ValidDecision(d Decision) bool {
	return d == DecisionApproved || d == DecisionRejected
}

// =============================================================================
// CHAIN - Ordered steps with a current pointer
// =============================================================================

// Chain is the ordered sequence of approval steps for one expense. The data
// model supports multi-step routing even though the default policy only ever
// creates step 1; Current exposes the pointer a multi-step policy would
// advance.
type Chain struct {
	Steps []ApprovalStep
}

// Current returns the first pending step, or nil if the chain is empty or
// fully resolved.
func (c Chain) Current() *ApprovalStep {
	for i := range c.Steps {
		if c.Steps[i].Status == StatusPending {
			return &c.Steps[i]
		}
	}
	return nil
}

// Terminal reports whether step s is the last step of the chain, i.e. whether
// its approval resolves the whole expense.
func (c Chain) Terminal(s *ApprovalStep) bool {
	return len(c.Steps) > 0 && c.Steps[len(c.Steps)-1].ID == s.ID
}

// Len returns the number of steps in the chain.
func (c Chain) Len() int { return len(c.Steps) }

// =============================================================================
// SUBMISSION INPUT
// =============================================================================

// ExpenseInput carries the structured fields of a submission. Amount and Date
// arrive as strings from the transport layer; the engine parses and validates
// them defensively even though the caller-facing layer validates first.
type ExpenseInput struct {
	Description string
	Amount      string
	Currency    string
	Category    string
	Date        string // YYYY-MM-DD
}

// DateLayout is the wire format for expense dates.
const DateLayout = "2006-01-02"
