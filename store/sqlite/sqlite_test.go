package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbit/expense-engine/store/sqlite"
	"github.com/orbit/expense-engine/workflow"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var testTime = time.Date(2026, time.August, 20, 12, 0, 0, 0, time.UTC)

// seedCompany inserts a company, a manager, and an employee reporting to the
// manager, and returns the employee's ID.
func seedCompany(t *testing.T, s *sqlite.Store) string {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.CreateCompany(ctx, workflow.Company{
		ID: "co-1", Name: "Acme", Currency: "INR", CreatedAt: testTime,
	}))
	require.NoError(t, s.CreateUser(ctx, workflow.User{
		ID: "mgr-1", Name: "Mia Manager", Email: "mia@acme.test",
		Role: workflow.RoleManager, CompanyID: "co-1", CreatedAt: testTime,
	}))
	mgr := "mgr-1"
	require.NoError(t, s.CreateUser(ctx, workflow.User{
		ID: "emp-1", Name: "Evan Employee", Email: "evan@acme.test",
		Role: workflow.RoleEmployee, ManagerID: &mgr, CompanyID: "co-1", CreatedAt: testTime,
	}))
	return "emp-1"
}

func seedExpense(t *testing.T, s *sqlite.Store, id string, amount string) workflow.Expense {
	t.Helper()
	e := workflow.Expense{
		ID:          id,
		SubmitterID: "emp-1",
		CompanyID:   "co-1",
		Description: "Team Lunch",
		Amount:      decimal.RequireFromString(amount),
		Currency:    "INR",
		Category:    "Meals",
		Date:        time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC),
		Status:      workflow.StatusPending,
		CreatedAt:   testTime,
		UpdatedAt:   testTime,
	}
	require.NoError(t, s.CreateExpense(context.Background(), e))
	return e
}

func seedStep(t *testing.T, s *sqlite.Store, id, expenseID string, n int) workflow.ApprovalStep {
	t.Helper()
	step := workflow.ApprovalStep{
		ID:         id,
		ExpenseID:  expenseID,
		ApproverID: "mgr-1",
		Step:       n,
		Status:     workflow.StatusPending,
		CreatedAt:  testTime,
		UpdatedAt:  testTime,
	}
	require.NoError(t, s.CreateStep(context.Background(), step))
	return step
}

// =============================================================================
// ORG STORE
// =============================================================================

func TestSQLite_UserRoundTrip(t *testing.T) {
	s := newTestStore(t)
	seedCompany(t, s)
	ctx := context.Background()

	u, err := s.GetUser(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "Evan Employee", u.Name)
	require.NotNil(t, u.ManagerID)
	assert.Equal(t, "mgr-1", *u.ManagerID)

	missing, err := s.GetUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLite_EmailLookupIsCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	seedCompany(t, s)
	ctx := context.Background()

	u, err := s.GetUserByEmail(ctx, "EVAN@ACME.TEST")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "emp-1", u.ID)

	// The unique index catches duplicates differing only in case.
	err = s.CreateUser(ctx, workflow.User{
		ID: "emp-dup", Name: "Dup", Email: "Evan@Acme.Test",
		Role: workflow.RoleEmployee, CompanyID: "co-1", CreatedAt: testTime,
	})
	assert.True(t, workflow.IsValidation(err), "expected validation error, got %v", err)
}

func TestSQLite_UpdateManagerAndRole(t *testing.T) {
	s := newTestStore(t)
	seedCompany(t, s)
	ctx := context.Background()

	require.NoError(t, s.UpdateUserManager(ctx, "emp-1", nil))
	u, err := s.GetUser(ctx, "emp-1")
	require.NoError(t, err)
	assert.Nil(t, u.ManagerID)

	require.NoError(t, s.UpdateUserRole(ctx, "emp-1", workflow.RoleManager))
	u, err = s.GetUser(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.RoleManager, u.Role)

	err = s.UpdateUserRole(ctx, "nobody", workflow.RoleManager)
	assert.True(t, workflow.IsNotFound(err), "expected not-found, got %v", err)
}

func TestSQLite_Counts(t *testing.T) {
	s := newTestStore(t)
	seedCompany(t, s)
	ctx := context.Background()

	users, err := s.CountUsers(ctx, "co-1")
	require.NoError(t, err)
	assert.Equal(t, 2, users)

	reports, err := s.CountReports(ctx, "mgr-1")
	require.NoError(t, err)
	assert.Equal(t, 1, reports)
}

// =============================================================================
// LEDGER STORE - Conditional resolution
// =============================================================================

func TestSQLite_ExpenseRoundTripPreservesDecimal(t *testing.T) {
	s := newTestStore(t)
	seedCompany(t, s)
	seedExpense(t, s, "exp-1", "1500.55")

	e, err := s.GetExpense(context.Background(), "exp-1")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.True(t, e.Amount.Equal(decimal.RequireFromString("1500.55")))
	assert.Nil(t, e.ApprovedAmount)
	assert.Equal(t, "2026-08-15", e.Date.Format(workflow.DateLayout))
}

func TestSQLite_ResolveStep_SecondAttemptConflicts(t *testing.T) {
	// GIVEN: A pending step
	// WHEN: It is resolved twice
	// THEN: The first update wins; the second gets ConflictError

	s := newTestStore(t)
	seedCompany(t, s)
	seedExpense(t, s, "exp-1", "1500")
	seedStep(t, s, "step-1", "exp-1", 1)
	ctx := context.Background()

	require.NoError(t, s.ResolveStep(ctx, "step-1", workflow.StatusApproved, testTime))

	err := s.ResolveStep(ctx, "step-1", workflow.StatusRejected, testTime)
	var conflict *workflow.ConflictError
	require.True(t, errors.As(err, &conflict), "expected conflict, got %v", err)
	assert.Equal(t, workflow.StatusApproved, conflict.Status)
}

func TestSQLite_ResolveStep_UnknownStepIsNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.ResolveStep(context.Background(), "no-such-step", workflow.StatusApproved, testTime)
	assert.True(t, workflow.IsNotFound(err), "expected not-found, got %v", err)
}

func TestSQLite_ResolveExpense_RecordsApprovedAmount(t *testing.T) {
	s := newTestStore(t)
	seedCompany(t, s)
	seedExpense(t, s, "exp-1", "1500")
	ctx := context.Background()

	partial := decimal.RequireFromString("900")
	require.NoError(t, s.ResolveExpense(ctx, "exp-1", workflow.StatusApproved, &partial, testTime))

	e, err := s.GetExpense(ctx, "exp-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApproved, e.Status)
	require.NotNil(t, e.ApprovedAmount)
	assert.True(t, e.ApprovedAmount.Equal(partial))

	// Already resolved: conditional update misses.
	err = s.ResolveExpense(ctx, "exp-1", workflow.StatusRejected, nil, testTime)
	assert.True(t, workflow.IsConflict(err), "expected conflict, got %v", err)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestSQLite_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction creating an expense and a step
	// WHEN: The callback fails after the first write
	// THEN: Neither row is visible afterwards

	s := newTestStore(t)
	seedCompany(t, s)
	ctx := context.Background()

	sentinel := errors.New("boom")
	err := s.WithTx(ctx, func(tx workflow.Store) error {
		e := workflow.Expense{
			ID: "exp-tx", SubmitterID: "emp-1", CompanyID: "co-1",
			Description: "Team Lunch", Amount: decimal.RequireFromString("1500"),
			Currency: "INR", Category: "Meals",
			Date:      time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC),
			Status:    workflow.StatusPending,
			CreatedAt: testTime, UpdatedAt: testTime,
		}
		if err := tx.CreateExpense(ctx, e); err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	e, err := s.GetExpense(ctx, "exp-tx")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestSQLite_WithTx_CommitsOnSuccess(t *testing.T) {
	s := newTestStore(t)
	seedCompany(t, s)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx workflow.Store) error {
		return tx.CreateExpense(ctx, workflow.Expense{
			ID: "exp-tx", SubmitterID: "emp-1", CompanyID: "co-1",
			Description: "Team Lunch", Amount: decimal.RequireFromString("1500"),
			Currency: "INR", Category: "Meals",
			Date:      time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC),
			Status:    workflow.StatusPending,
			CreatedAt: testTime, UpdatedAt: testTime,
		})
	})
	require.NoError(t, err)

	e, err := s.GetExpense(ctx, "exp-tx")
	require.NoError(t, err)
	require.NotNil(t, e)
}

// =============================================================================
// APPROVAL LISTINGS
// =============================================================================

func TestSQLite_ListPendingSteps_JoinsSubmitterName(t *testing.T) {
	s := newTestStore(t)
	seedCompany(t, s)
	seedExpense(t, s, "exp-1", "1500")
	seedStep(t, s, "step-1", "exp-1", 1)
	ctx := context.Background()

	items, err := s.ListPendingSteps(ctx, workflow.ApprovalFilter{ApproverID: "mgr-1"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "step-1", items[0].Step.ID)
	assert.Equal(t, "Evan Employee", items[0].SubmitterName)
	assert.True(t, items[0].Expense.Amount.Equal(decimal.RequireFromString("1500")))

	// Resolved listing is empty until the step resolves.
	resolved, err := s.ListResolvedSteps(ctx, workflow.ApprovalFilter{ApproverID: "mgr-1"})
	require.NoError(t, err)
	assert.Empty(t, resolved)

	require.NoError(t, s.ResolveStep(ctx, "step-1", workflow.StatusApproved, testTime))

	resolved, err = s.ListResolvedSteps(ctx, workflow.ApprovalFilter{ApproverID: "mgr-1"})
	require.NoError(t, err)
	assert.Len(t, resolved, 1)
}

func TestSQLite_ListPendingSteps_CompanyFilter(t *testing.T) {
	s := newTestStore(t)
	seedCompany(t, s)
	seedExpense(t, s, "exp-1", "1500")
	seedStep(t, s, "step-1", "exp-1", 1)
	ctx := context.Background()

	items, err := s.ListPendingSteps(ctx, workflow.ApprovalFilter{CompanyID: "co-1"})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, err = s.ListPendingSteps(ctx, workflow.ApprovalFilter{CompanyID: "co-other"})
	require.NoError(t, err)
	assert.Empty(t, items)
}

// =============================================================================
// STATS STORE
// =============================================================================

func TestSQLite_Stats_SumInGoWithDecimal(t *testing.T) {
	// GIVEN: Two pending expenses with fractional amounts and one approved
	// WHEN: The aggregates run
	// THEN: Sums are exact and approved sums use approved (not requested) amounts

	s := newTestStore(t)
	seedCompany(t, s)
	ctx := context.Background()

	seedExpense(t, s, "exp-1", "0.1")
	seedExpense(t, s, "exp-2", "0.2")
	seedExpense(t, s, "exp-3", "1500")
	partial := decimal.RequireFromString("900")
	require.NoError(t, s.ResolveExpense(ctx, "exp-3", workflow.StatusApproved, &partial, testTime))

	pending, err := s.CompanyPendingAmount(ctx, "co-1")
	require.NoError(t, err)
	assert.True(t, pending.Equal(decimal.RequireFromString("0.3")), "pending = %s", pending)

	approved, err := s.CompanyApprovedSince(ctx, "co-1", testTime.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.True(t, approved.Equal(partial))

	// The month boundary excludes older approvals.
	approved, err = s.CompanyApprovedSince(ctx, "co-1", testTime.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.True(t, approved.IsZero())
}

func TestSQLite_TeamStatsAndCategories(t *testing.T) {
	s := newTestStore(t)
	seedCompany(t, s)
	ctx := context.Background()

	seedExpense(t, s, "exp-1", "1500")
	seedExpense(t, s, "exp-2", "500")
	full := decimal.RequireFromString("500")
	require.NoError(t, s.ResolveExpense(ctx, "exp-2", workflow.StatusApproved, &full, testTime))

	pending, err := s.TeamPendingAmount(ctx, "mgr-1")
	require.NoError(t, err)
	assert.True(t, pending.Equal(decimal.RequireFromString("1500")))

	approved, err := s.TeamApprovedSince(ctx, "mgr-1", testTime.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.True(t, approved.Equal(full))

	totals, err := s.TeamCategoryTotals(ctx, "mgr-1")
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, "Meals", totals[0].Category)
	assert.True(t, totals[0].Total.Equal(decimal.RequireFromString("2000")))
}

func TestSQLite_SubmitterTotals(t *testing.T) {
	s := newTestStore(t)
	seedCompany(t, s)
	ctx := context.Background()

	seedExpense(t, s, "exp-1", "1500")
	seedExpense(t, s, "exp-2", "500")
	partial := decimal.RequireFromString("300")
	require.NoError(t, s.ResolveExpense(ctx, "exp-2", workflow.StatusApproved, &partial, testTime))

	totals, err := s.SubmitterTotals(ctx, "emp-1")
	require.NoError(t, err)
	assert.True(t, totals.Submitted.Equal(decimal.RequireFromString("2000")))
	assert.True(t, totals.Approved.Equal(decimal.RequireFromString("300")))
	assert.Equal(t, 1, totals.PendingCount)
}

// =============================================================================
// CREDENTIALS
// =============================================================================

func TestSQLite_Credentials_UpsertAndLookup(t *testing.T) {
	s := newTestStore(t)
	seedCompany(t, s)
	ctx := context.Background()

	require.NoError(t, s.SavePasswordHash(ctx, "emp-1", "hash-1"))
	hash, err := s.GetPasswordHash(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", hash)

	// Second save replaces the hash.
	require.NoError(t, s.SavePasswordHash(ctx, "emp-1", "hash-2"))
	hash, err = s.GetPasswordHash(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "hash-2", hash)

	_, err = s.GetPasswordHash(ctx, "nobody")
	assert.True(t, workflow.IsNotFound(err), "expected not-found, got %v", err)
}
