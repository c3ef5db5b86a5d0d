/*
store.go - Persistence interfaces for the approval engine

PURPOSE:
  Defines the boundary between domain logic and the database. The engine is
  written against these interfaces; store/sqlite provides the production
  implementation and workflow/store an in-memory one for tests.

KEY INTERFACES:
  OrgStore:    Companies, users, and the reports-to relation
  LedgerStore: Expenses and their approval steps
  StatsStore:  Role-scoped dashboard aggregates
  TxStore:     Transactional closure over all of the above

ATOMICITY CONTRACT:
  Every mutating engine operation runs inside WithTx: either all of its
  writes are visible (expense + step, or step + expense) or none are. An
  external reader must never observe a step APPROVED while its expense is
  still PENDING.

CONFLICT GUARD:
  ResolveStep only succeeds against a PENDING step. Implementations enforce
  this at the store level (conditional UPDATE), so of two racing decisions
  exactly one wins and the other surfaces ErrConflict.

AGGREGATE CONSISTENCY:
  Each StatsStore method computes its number from a single consistent query.
  The reporter may compose aggregates from slightly different snapshots, but
  no individual aggregate is assembled from uncoordinated partial reads.

SEE ALSO:
  - engine.go: The code driving these interfaces
  - store/sqlite/sqlite.go: Production implementation
  - workflow/store/memory.go: In-memory implementation for tests
*/
package workflow

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ORG STORE - Companies, users, reports-to
// =============================================================================

type OrgStore interface {
	CreateCompany(ctx context.Context, c Company) error
	GetCompany(ctx context.Context, id string) (*Company, error)

	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context, companyID string) ([]User, error)

	// UpdateUserManager sets or clears the reports-to relation. It never
	// touches existing approval steps: approver assignment is a snapshot
	// taken at submission time.
	UpdateUserManager(ctx context.Context, userID string, managerID *string) error
	UpdateUserRole(ctx context.Context, userID string, role Role) error

	CountUsers(ctx context.Context, companyID string) (int, error)
	CountReports(ctx context.Context, managerID string) (int, error)
}

// =============================================================================
// LEDGER STORE - Expenses and approval steps
// =============================================================================

// ApprovalItem is a step joined with its expense and the submitter's name,
// as listed on approval queues and history views.
type ApprovalItem struct {
	Step          ApprovalStep
	Expense       Expense
	SubmitterName string
}

// ApprovalFilter scopes approval listings. Exactly one of ApproverID or
// CompanyID is set: managers see their own queue, admins the whole company.
type ApprovalFilter struct {
	ApproverID string
	CompanyID  string
}

type LedgerStore interface {
	CreateExpense(ctx context.Context, e Expense) error
	GetExpense(ctx context.Context, id string) (*Expense, error)
	ListExpensesBySubmitter(ctx context.Context, submitterID string) ([]Expense, error)

	// ResolveExpense finalizes the expense's status and, for approvals, its
	// approved amount. Only valid on a PENDING expense.
	ResolveExpense(ctx context.Context, expenseID string, status Status, approvedAmount *decimal.Decimal, at time.Time) error

	CreateStep(ctx context.Context, s ApprovalStep) error
	GetStep(ctx context.Context, id string) (*ApprovalStep, error)
	ListStepsByExpense(ctx context.Context, expenseID string) ([]ApprovalStep, error)

	// ResolveStep transitions a step out of PENDING. Returns ErrConflict
	// (wrapped in a ConflictError) if the step is already resolved.
	ResolveStep(ctx context.Context, stepID string, status Status, at time.Time) error

	ListPendingSteps(ctx context.Context, f ApprovalFilter) ([]ApprovalItem, error)
	ListResolvedSteps(ctx context.Context, f ApprovalFilter) ([]ApprovalItem, error)
}

// =============================================================================
// STATS STORE - Dashboard aggregates (read-only)
// =============================================================================

type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
}

// SubmitterTotals are the employee-view aggregates over one submitter's
// own expenses.
type SubmitterTotals struct {
	Submitted    decimal.Decimal // sum of Amount over all own expenses
	Approved     decimal.Decimal // sum of ApprovedAmount over approved ones
	PendingCount int
}

type StatsStore interface {
	// Company-wide (admin view).
	CompanyPendingAmount(ctx context.Context, companyID string) (decimal.Decimal, error)
	CompanyApprovedSince(ctx context.Context, companyID string, since time.Time) (decimal.Decimal, error)

	// Team-scoped (manager view): expenses whose submitter currently
	// reports to managerID.
	TeamPendingAmount(ctx context.Context, managerID string) (decimal.Decimal, error)
	TeamApprovedSince(ctx context.Context, managerID string, since time.Time) (decimal.Decimal, error)
	TeamCategoryTotals(ctx context.Context, managerID string) ([]CategoryTotal, error)

	// Self-scoped (employee view).
	SubmitterTotals(ctx context.Context, submitterID string) (*SubmitterTotals, error)
}

// =============================================================================
// COMBINED STORE
// =============================================================================

type Store interface {
	OrgStore
	LedgerStore
	StatsStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
