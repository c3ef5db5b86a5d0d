/*
engine.go - The expense approval workflow engine

PURPOSE:
  Orchestrates the two state-changing moments of an expense's life:

  SUBMISSION:
    Resolve the submitter's approver via the org hierarchy, then create the
    expense and its first approval step in one atomic unit. A submitter with
    no assigned manager gets an expense with an empty chain: submission
    succeeds but nothing can ever act on it under the single-step policy.

  DECISION:
    Validate the actor (designated approver or ADMIN override) and the
    amount, then transition step and expense together. Approvals may be for
    the full requested amount or a smaller one (partial approval); the engine
    does not care how the number was derived.

TRANSACTIONAL GUARANTEES:
  Both operations run inside Store.WithTx. A reader never observes a step
  APPROVED while its expense is still PENDING, or vice versa. The store's
  conditional step update gives effectively-once decisions: of two racing
  calls, exactly one observes PENDING and wins; the loser gets ErrConflict.

SEE ALSO:
  - chain.go: Routing policy (who approves, how many steps)
  - org.go: Manager assignment and approver resolution
  - errors.go: The four error kinds raised here
*/
package workflow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Engine coordinates expense submission and approval decisions.
type Engine struct {
	store   TxStore
	routing RoutingPolicy
	logger  *slog.Logger
	now     func() time.Time
}

// NewEngine creates an engine with the default single-step routing policy.
func NewEngine(store TxStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   store,
		routing: SingleStepRouting{},
		logger:  logger,
		now:     time.Now,
	}
}

// WithRouting overrides the routing policy. Used when a multi-step chain
// policy is configured.
func (eng *Engine) WithRouting(p RoutingPolicy) *Engine {
	eng.routing = p
	return eng
}

// WithClock overrides the time source. Tests use this to pin timestamps.
func (eng *Engine) WithClock(now func() time.Time) *Engine {
	eng.now = now
	return eng
}

// =============================================================================
// SUBMIT EXPENSE
// =============================================================================

// SubmitExpense validates the input, plans the approval chain for the
// submitter, and creates the expense plus its steps atomically.
func (eng *Engine) SubmitExpense(ctx context.Context, submitterID string, in ExpenseInput) (*Expense, error) {
	submitter, err := eng.store.GetUser(ctx, submitterID)
	if err != nil {
		return nil, err
	}
	if submitter == nil {
		return nil, &NotFoundError{Kind: "user", ID: submitterID}
	}

	amount, date, err := parseExpenseInput(in)
	if err != nil {
		return nil, err
	}

	now := eng.now().UTC()
	expense := Expense{
		ID:          uuid.NewString(),
		SubmitterID: submitter.ID,
		CompanyID:   submitter.CompanyID,
		Description: strings.TrimSpace(in.Description),
		Amount:      amount,
		Currency:    strings.ToUpper(strings.TrimSpace(in.Currency)),
		Category:    strings.TrimSpace(in.Category),
		Date:        date,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	approvers := eng.routing.PlanChain(submitter)
	steps := make([]ApprovalStep, len(approvers))
	for i, approverID := range approvers {
		steps[i] = ApprovalStep{
			ID:         uuid.NewString(),
			ExpenseID:  expense.ID,
			ApproverID: approverID, // snapshot: later org changes never rewrite this
			Step:       i + 1,
			Status:     StatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}

	err = eng.store.WithTx(ctx, func(tx Store) error {
		if err := tx.CreateExpense(ctx, expense); err != nil {
			return err
		}
		for _, s := range steps {
			if err := tx.CreateStep(ctx, s); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(steps) == 0 {
		// Known gap: with no manager assigned there is no one to act on
		// this expense and it stays PENDING indefinitely.
		eng.logger.Warn("expense submitted with no approval chain",
			"expense_id", expense.ID, "submitter_id", submitter.ID)
	}

	expense.Steps = steps
	return &expense, nil
}

func parseExpenseInput(in ExpenseInput) (decimal.Decimal, time.Time, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(in.Amount))
	if err != nil {
		return decimal.Zero, time.Time{}, &ValidationError{Field: "amount", Reason: "not a number"}
	}
	if !amount.IsPositive() {
		return decimal.Zero, time.Time{}, &ValidationError{Field: "amount", Reason: "must be positive"}
	}

	date, err := time.Parse(DateLayout, strings.TrimSpace(in.Date))
	if err != nil {
		return decimal.Zero, time.Time{}, &ValidationError{Field: "date", Reason: "must be a valid YYYY-MM-DD date"}
	}

	if strings.TrimSpace(in.Description) == "" {
		return decimal.Zero, time.Time{}, &ValidationError{Field: "description", Reason: "required"}
	}
	if strings.TrimSpace(in.Currency) == "" {
		return decimal.Zero, time.Time{}, &ValidationError{Field: "currency", Reason: "required"}
	}
	if strings.TrimSpace(in.Category) == "" {
		return decimal.Zero, time.Time{}, &ValidationError{Field: "category", Reason: "required"}
	}

	return amount, date, nil
}

// =============================================================================
// DECIDE - The critical transactional operation
// =============================================================================

// Decide records an approver's verdict on a step and transitions the step
// and its expense together.
//
// Authorization: the actor must be the step's designated approver, or hold
// ADMIN in the expense's company. Amount: nil means full approval; a supplied
// amount must satisfy 0 < amount <= expense.Amount and is checked before any
// mutation. A step that is no longer PENDING yields ErrConflict.
func (eng *Engine) Decide(ctx context.Context, stepID string, actor Principal, decision Decision, approvedAmount *decimal.Decimal) (*Expense, error) {
	if !ValidDecision(decision) {
		return nil, &ValidationError{Field: "status", Reason: "must be APPROVED or REJECTED"}
	}

	step, err := eng.store.GetStep(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if step == nil {
		return nil, &NotFoundError{Kind: "step", ID: stepID}
	}

	expense, err := eng.store.GetExpense(ctx, step.ExpenseID)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, &NotFoundError{Kind: "expense", ID: step.ExpenseID}
	}

	if actor.UserID != step.ApproverID {
		if !actor.IsAdmin() || actor.CompanyID != expense.CompanyID {
			return nil, &AuthorizationError{ActorID: actor.UserID, Operation: "decide"}
		}
	}

	if step.Status.Resolved() {
		return nil, &ConflictError{StepID: step.ID, Status: step.Status}
	}

	// Resolve the amount before touching any state.
	var finalAmount decimal.Decimal
	if decision == DecisionApproved {
		finalAmount = expense.Amount // full approval by default
		if approvedAmount != nil {
			if !approvedAmount.IsPositive() {
				return nil, &ValidationError{Field: "approvedAmount", Reason: "must be positive"}
			}
			if approvedAmount.GreaterThan(expense.Amount) {
				return nil, &ValidationError{Field: "approvedAmount", Reason: "exceeds requested amount"}
			}
			finalAmount = *approvedAmount
		}
	}

	now := eng.now().UTC()
	err = eng.store.WithTx(ctx, func(tx Store) error {
		// Conditional update: fails with ErrConflict if a racing decision
		// already resolved this step.
		if err := tx.ResolveStep(ctx, step.ID, Status(decision), now); err != nil {
			return err
		}

		steps, err := tx.ListStepsByExpense(ctx, expense.ID)
		if err != nil {
			return err
		}
		chain := Chain{Steps: steps}

		switch decision {
		case DecisionRejected:
			// Rejection at any step resolves the whole expense.
			return tx.ResolveExpense(ctx, expense.ID, StatusRejected, nil, now)
		case DecisionApproved:
			if chain.Terminal(step) {
				return tx.ResolveExpense(ctx, expense.ID, StatusApproved, &finalAmount, now)
			}
			// Non-terminal approval: the chain's current pointer moves to
			// the next pending step; the expense stays PENDING.
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return eng.GetExpense(ctx, expense.ID)
}

// =============================================================================
// READS
// =============================================================================

// GetExpense returns an expense with its approval chain attached.
func (eng *Engine) GetExpense(ctx context.Context, id string) (*Expense, error) {
	expense, err := eng.store.GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, &NotFoundError{Kind: "expense", ID: id}
	}
	steps, err := eng.store.ListStepsByExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	expense.Steps = steps
	return expense, nil
}

// ListMyExpenses returns the principal's own expenses, chains attached,
// newest first.
func (eng *Engine) ListMyExpenses(ctx context.Context, actor Principal) ([]Expense, error) {
	expenses, err := eng.store.ListExpensesBySubmitter(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	for i := range expenses {
		steps, err := eng.store.ListStepsByExpense(ctx, expenses[i].ID)
		if err != nil {
			return nil, err
		}
		expenses[i].Steps = steps
	}
	return expenses, nil
}

// ListPendingApprovals returns the principal's approval queue: managers see
// steps designated to them, admins the whole company's pending steps.
func (eng *Engine) ListPendingApprovals(ctx context.Context, actor Principal) ([]ApprovalItem, error) {
	f, err := approvalScope(actor)
	if err != nil {
		return nil, err
	}
	return eng.store.ListPendingSteps(ctx, f)
}

// ListApprovalHistory returns resolved steps under the same scoping rules
// as ListPendingApprovals.
func (eng *Engine) ListApprovalHistory(ctx context.Context, actor Principal) ([]ApprovalItem, error) {
	f, err := approvalScope(actor)
	if err != nil {
		return nil, err
	}
	return eng.store.ListResolvedSteps(ctx, f)
}

func approvalScope(actor Principal) (ApprovalFilter, error) {
	switch actor.Role {
	case RoleAdmin:
		return ApprovalFilter{CompanyID: actor.CompanyID}, nil
	case RoleManager:
		return ApprovalFilter{ApproverID: actor.UserID}, nil
	default:
		return ApprovalFilter{}, &AuthorizationError{ActorID: actor.UserID, Operation: "list approvals"}
	}
}
