/*
reporter.go - Role-scoped dashboard aggregates

PURPOSE:
  Read-only projections over the expense ledger and approval chain. Each
  role sees a different slice:

  ADMIN:    company user count, sum of pending amounts, sum approved this
            calendar month
  MANAGER:  the same sums restricted to direct reports, plus team size and
            a category breakdown of all team spend (not time-filtered)
  EMPLOYEE: own submitted/approved totals and own pending count

CONSISTENCY:
  Each individual aggregate comes from a single consistent store query.
  The aggregates composing one dashboard may reflect slightly different
  snapshots; dashboard numbers tolerate that.
*/
package workflow

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Reporter computes dashboard statistics. It never mutates anything.
type Reporter struct {
	store Store
	now   func() time.Time
}

func NewReporter(store Store) *Reporter {
	return &Reporter{store: store, now: time.Now}
}

// WithClock overrides the time source used for "this month" boundaries.
func (r *Reporter) WithClock(now func() time.Time) *Reporter {
	r.now = now
	return r
}

// =============================================================================
// PER-ROLE STATS
// =============================================================================

type AdminStats struct {
	TotalUsers        int
	PendingAmount     decimal.Decimal
	ApprovedThisMonth decimal.Decimal
}

type ManagerStats struct {
	TeamSize              int
	PendingTeamAmount     decimal.Decimal
	ApprovedTeamThisMonth decimal.Decimal
	ExpensesByCategory    []CategoryTotal
}

type EmployeeStats struct {
	TotalSubmitted decimal.Decimal
	TotalApproved  decimal.Decimal
	PendingCount   int
}

// Dashboard carries the stats for exactly one role; the field matching the
// requesting principal's role is set, the others are nil.
type Dashboard struct {
	Role     Role
	Admin    *AdminStats
	Manager  *ManagerStats
	Employee *EmployeeStats
}

// =============================================================================
// DASHBOARD
// =============================================================================

// Dashboard computes the stats view for the requesting principal.
func (r *Reporter) Dashboard(ctx context.Context, actor Principal) (*Dashboard, error) {
	switch actor.Role {
	case RoleAdmin:
		s, err := r.adminStats(ctx, actor.CompanyID)
		if err != nil {
			return nil, err
		}
		return &Dashboard{Role: RoleAdmin, Admin: s}, nil
	case RoleManager:
		s, err := r.managerStats(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		return &Dashboard{Role: RoleManager, Manager: s}, nil
	case RoleEmployee:
		s, err := r.employeeStats(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		return &Dashboard{Role: RoleEmployee, Employee: s}, nil
	}
	return nil, &AuthorizationError{ActorID: actor.UserID, Operation: "dashboard stats"}
}

func (r *Reporter) adminStats(ctx context.Context, companyID string) (*AdminStats, error) {
	users, err := r.store.CountUsers(ctx, companyID)
	if err != nil {
		return nil, err
	}
	pending, err := r.store.CompanyPendingAmount(ctx, companyID)
	if err != nil {
		return nil, err
	}
	approved, err := r.store.CompanyApprovedSince(ctx, companyID, r.startOfMonth())
	if err != nil {
		return nil, err
	}
	return &AdminStats{
		TotalUsers:        users,
		PendingAmount:     pending,
		ApprovedThisMonth: approved,
	}, nil
}

func (r *Reporter) managerStats(ctx context.Context, managerID string) (*ManagerStats, error) {
	teamSize, err := r.store.CountReports(ctx, managerID)
	if err != nil {
		return nil, err
	}
	pending, err := r.store.TeamPendingAmount(ctx, managerID)
	if err != nil {
		return nil, err
	}
	approved, err := r.store.TeamApprovedSince(ctx, managerID, r.startOfMonth())
	if err != nil {
		return nil, err
	}
	byCategory, err := r.store.TeamCategoryTotals(ctx, managerID)
	if err != nil {
		return nil, err
	}
	return &ManagerStats{
		TeamSize:              teamSize,
		PendingTeamAmount:     pending,
		ApprovedTeamThisMonth: approved,
		ExpensesByCategory:    byCategory,
	}, nil
}

func (r *Reporter) employeeStats(ctx context.Context, submitterID string) (*EmployeeStats, error) {
	totals, err := r.store.SubmitterTotals(ctx, submitterID)
	if err != nil {
		return nil, err
	}
	return &EmployeeStats{
		TotalSubmitted: totals.Submitted,
		TotalApproved:  totals.Approved,
		PendingCount:   totals.PendingCount,
	}, nil
}

// startOfMonth returns midnight UTC on the first of the current month.
// "Approved this month" means the resolving update happened at or after
// this point.
func (r *Reporter) startOfMonth() time.Time {
	now := r.now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
