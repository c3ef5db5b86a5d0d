package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbit/expense-engine/workflow"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// seedLedger builds a ledger with fixed timestamps around the August 2026
// month boundary:
//
//	1500 Meals   approved for 900 on Aug 20   (this month)
//	 500 Travel  approved in full on Jul 10   (last month)
//	 300 Travel  still pending
//
// All three are submitted by emp-1, who reports to mgr-1.
func seedLedger(t *testing.T, org *testOrg) {
	t.Helper()
	ctx := context.Background()

	august := time.Date(2026, time.August, 20, 12, 0, 0, 0, time.UTC)
	july := time.Date(2026, time.July, 10, 12, 0, 0, 0, time.UTC)

	submit := func(at time.Time, amount, category string) *workflow.Expense {
		org.engine.WithClock(func() time.Time { return at })
		in := teamLunch()
		in.Amount = amount
		in.Category = category
		e, err := org.engine.SubmitExpense(ctx, org.employee.UserID, in)
		require.NoError(t, err)
		return e
	}

	meals := submit(august, "1500", "Meals")
	travel := submit(july, "500", "Travel")
	submit(august, "300", "Travel")

	org.engine.WithClock(func() time.Time { return august })
	partial := dec("900")
	_, err := org.engine.Decide(ctx, meals.Steps[0].ID, org.manager, workflow.DecisionApproved, &partial)
	require.NoError(t, err)

	org.engine.WithClock(func() time.Time { return july })
	_, err = org.engine.Decide(ctx, travel.Steps[0].ID, org.manager, workflow.DecisionApproved, nil)
	require.NoError(t, err)
}

func newTestReporter(org *testOrg) *workflow.Reporter {
	return workflow.NewReporter(org.store).WithClock(func() time.Time {
		return time.Date(2026, time.August, 25, 9, 0, 0, 0, time.UTC)
	})
}

// =============================================================================
// ADMIN DASHBOARD
// =============================================================================

func TestDashboard_Admin(t *testing.T) {
	// GIVEN: The seeded ledger (900 approved in Aug, 500 in Jul, 300 pending)
	// WHEN: An admin requests the dashboard on Aug 25
	// THEN: Pending sums requested amounts; "this month" counts Aug only and
	//       sums approved (not requested) amounts

	org := newTestOrg(t)
	seedLedger(t, org)

	dash, err := newTestReporter(org).Dashboard(context.Background(), org.admin)
	require.NoError(t, err)
	require.Equal(t, workflow.RoleAdmin, dash.Role)
	require.NotNil(t, dash.Admin)

	assert.Equal(t, 4, dash.Admin.TotalUsers)
	assert.True(t, dash.Admin.PendingAmount.Equal(dec("300")),
		"pending = %s", dash.Admin.PendingAmount)
	assert.True(t, dash.Admin.ApprovedThisMonth.Equal(dec("900")),
		"approved this month = %s", dash.Admin.ApprovedThisMonth)
}

// =============================================================================
// MANAGER DASHBOARD
// =============================================================================

func TestDashboard_Manager(t *testing.T) {
	// GIVEN: The seeded ledger, all of it submitted by mgr-1's one report
	// WHEN: The manager requests the dashboard
	// THEN: Team sums mirror the admin view restricted to direct reports, and
	//       the category breakdown covers all team spend by requested amount

	org := newTestOrg(t)
	seedLedger(t, org)

	dash, err := newTestReporter(org).Dashboard(context.Background(), org.manager)
	require.NoError(t, err)
	require.Equal(t, workflow.RoleManager, dash.Role)
	require.NotNil(t, dash.Manager)

	assert.Equal(t, 1, dash.Manager.TeamSize)
	assert.True(t, dash.Manager.PendingTeamAmount.Equal(dec("300")))
	assert.True(t, dash.Manager.ApprovedTeamThisMonth.Equal(dec("900")))

	require.Len(t, dash.Manager.ExpensesByCategory, 2)
	assert.Equal(t, "Meals", dash.Manager.ExpensesByCategory[0].Category)
	assert.True(t, dash.Manager.ExpensesByCategory[0].Total.Equal(dec("1500")))
	assert.Equal(t, "Travel", dash.Manager.ExpensesByCategory[1].Category)
	assert.True(t, dash.Manager.ExpensesByCategory[1].Total.Equal(dec("800")))
}

func TestDashboard_Manager_ExcludesOtherTeams(t *testing.T) {
	// GIVEN: A second manager with no reports
	// WHEN: They request the dashboard
	// THEN: Everything is zero

	org := newTestOrg(t)
	seedLedger(t, org)
	ctx := context.Background()

	require.NoError(t, org.store.CreateUser(ctx, workflow.User{
		ID: "mgr-2", Name: "Noor New", Email: "noor@acme.test", Role: workflow.RoleManager, CompanyID: "co-1",
	}))

	other := workflow.Principal{UserID: "mgr-2", Role: workflow.RoleManager, CompanyID: "co-1"}
	dash, err := newTestReporter(org).Dashboard(ctx, other)
	require.NoError(t, err)

	assert.Equal(t, 0, dash.Manager.TeamSize)
	assert.True(t, dash.Manager.PendingTeamAmount.IsZero())
	assert.True(t, dash.Manager.ApprovedTeamThisMonth.IsZero())
	assert.Empty(t, dash.Manager.ExpensesByCategory)
}

// =============================================================================
// EMPLOYEE DASHBOARD
// =============================================================================

func TestDashboard_Employee(t *testing.T) {
	// GIVEN: The seeded ledger
	// WHEN: The submitter requests the dashboard
	// THEN: Submitted sums requested amounts (2300); approved sums approved
	//       amounts across all time (1400); one expense is still pending

	org := newTestOrg(t)
	seedLedger(t, org)

	dash, err := newTestReporter(org).Dashboard(context.Background(), org.employee)
	require.NoError(t, err)
	require.Equal(t, workflow.RoleEmployee, dash.Role)
	require.NotNil(t, dash.Employee)

	assert.True(t, dash.Employee.TotalSubmitted.Equal(dec("2300")))
	assert.True(t, dash.Employee.TotalApproved.Equal(dec("1400")))
	assert.Equal(t, 1, dash.Employee.PendingCount)
}

func TestDashboard_EmployeeWithNoExpenses_AllZero(t *testing.T) {
	org := newTestOrg(t)

	dash, err := newTestReporter(org).Dashboard(context.Background(), org.orphan)
	require.NoError(t, err)

	assert.True(t, dash.Employee.TotalSubmitted.IsZero())
	assert.True(t, dash.Employee.TotalApproved.IsZero())
	assert.Equal(t, 0, dash.Employee.PendingCount)
}

func TestDashboard_UnknownRole_Denied(t *testing.T) {
	org := newTestOrg(t)
	stranger := workflow.Principal{UserID: "x", Role: workflow.Role("CONTRACTOR"), CompanyID: "co-1"}
	_, err := newTestReporter(org).Dashboard(context.Background(), stranger)
	assert.True(t, workflow.IsAuthorization(err), "expected authorization error, got %v", err)
}
