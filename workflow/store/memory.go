// Package store provides an in-memory workflow.TxStore for tests and dev.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/orbit/expense-engine/workflow"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory is an in-memory implementation of workflow.TxStore. WithTx is
// simulated with a snapshot + rollback on error, matching the all-or-nothing
// contract of the SQLite store.
type Memory struct {
	mu sync.RWMutex
	d  *memData
}

func NewMemory() *Memory {
	return &Memory{d: newMemData()}
}

// memData holds the actual state and implements workflow.Store without
// locking. Memory wraps it with a mutex; WithTx hands it to fn directly
// while the write lock is held.
type memData struct {
	companies   map[string]workflow.Company
	users       map[string]workflow.User
	expenses    map[string]workflow.Expense
	steps       map[string]workflow.ApprovalStep
	credentials map[string]string // userID -> password hash
}

func newMemData() *memData {
	return &memData{
		companies:   make(map[string]workflow.Company),
		users:       make(map[string]workflow.User),
		expenses:    make(map[string]workflow.Expense),
		steps:       make(map[string]workflow.ApprovalStep),
		credentials: make(map[string]string),
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.companies {
		c.companies[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.expenses {
		c.expenses[k] = v
	}
	for k, v := range d.steps {
		c.steps[k] = v
	}
	for k, v := range d.credentials {
		c.credentials[k] = v
	}
	return c
}

// WithTx executes fn against the live data under the write lock. On error
// the pre-transaction snapshot is restored.
func (m *Memory) WithTx(ctx context.Context, fn func(workflow.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.d.clone()
	if err := fn(m.d); err != nil {
		m.d = snapshot
		return err
	}
	return nil
}

// =============================================================================
// ORG STORE
// =============================================================================

func (d *memData) CreateCompany(_ context.Context, c workflow.Company) error {
	d.companies[c.ID] = c
	return nil
}

func (d *memData) GetCompany(_ context.Context, id string) (*workflow.Company, error) {
	if c, ok := d.companies[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (d *memData) CreateUser(_ context.Context, u workflow.User) error {
	d.users[u.ID] = u
	return nil
}

func (d *memData) GetUser(_ context.Context, id string) (*workflow.User, error) {
	if u, ok := d.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (d *memData) GetUserByEmail(_ context.Context, email string) (*workflow.User, error) {
	for _, u := range d.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (d *memData) ListUsers(_ context.Context, companyID string) ([]workflow.User, error) {
	var users []workflow.User
	for _, u := range d.users {
		if u.CompanyID == companyID {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (d *memData) UpdateUserManager(_ context.Context, userID string, managerID *string) error {
	u, ok := d.users[userID]
	if !ok {
		return &workflow.NotFoundError{Kind: "user", ID: userID}
	}
	u.ManagerID = managerID
	d.users[userID] = u
	return nil
}

func (d *memData) UpdateUserRole(_ context.Context, userID string, role workflow.Role) error {
	u, ok := d.users[userID]
	if !ok {
		return &workflow.NotFoundError{Kind: "user", ID: userID}
	}
	u.Role = role
	d.users[userID] = u
	return nil
}

func (d *memData) CountUsers(_ context.Context, companyID string) (int, error) {
	n := 0
	for _, u := range d.users {
		if u.CompanyID == companyID {
			n++
		}
	}
	return n, nil
}

func (d *memData) CountReports(_ context.Context, managerID string) (int, error) {
	n := 0
	for _, u := range d.users {
		if u.ManagerID != nil && *u.ManagerID == managerID {
			n++
		}
	}
	return n, nil
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func (d *memData) CreateExpense(_ context.Context, e workflow.Expense) error {
	e.Steps = nil // chains are stored separately
	d.expenses[e.ID] = e
	return nil
}

func (d *memData) GetExpense(_ context.Context, id string) (*workflow.Expense, error) {
	if e, ok := d.expenses[id]; ok {
		return &e, nil
	}
	return nil, nil
}

func (d *memData) ListExpensesBySubmitter(_ context.Context, submitterID string) ([]workflow.Expense, error) {
	var expenses []workflow.Expense
	for _, e := range d.expenses {
		if e.SubmitterID == submitterID {
			expenses = append(expenses, e)
		}
	}
	sort.Slice(expenses, func(i, j int) bool {
		return expenses[i].CreatedAt.After(expenses[j].CreatedAt)
	})
	return expenses, nil
}

func (d *memData) ResolveExpense(_ context.Context, expenseID string, status workflow.Status, approvedAmount *decimal.Decimal, at time.Time) error {
	e, ok := d.expenses[expenseID]
	if !ok {
		return &workflow.NotFoundError{Kind: "expense", ID: expenseID}
	}
	if e.Status.Resolved() {
		return &workflow.ConflictError{StepID: expenseID, Status: e.Status}
	}
	e.Status = status
	e.UpdatedAt = at
	if status == workflow.StatusApproved && approvedAmount != nil {
		amt := *approvedAmount
		e.ApprovedAmount = &amt
	}
	d.expenses[expenseID] = e
	return nil
}

func (d *memData) CreateStep(_ context.Context, s workflow.ApprovalStep) error {
	d.steps[s.ID] = s
	return nil
}

func (d *memData) GetStep(_ context.Context, id string) (*workflow.ApprovalStep, error) {
	if s, ok := d.steps[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (d *memData) ListStepsByExpense(_ context.Context, expenseID string) ([]workflow.ApprovalStep, error) {
	var steps []workflow.ApprovalStep
	for _, s := range d.steps {
		if s.ExpenseID == expenseID {
			steps = append(steps, s)
		}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Step < steps[j].Step })
	return steps, nil
}

func (d *memData) ResolveStep(_ context.Context, stepID string, status workflow.Status, at time.Time) error {
	s, ok := d.steps[stepID]
	if !ok {
		return &workflow.NotFoundError{Kind: "step", ID: stepID}
	}
	// Conditional transition: this is the effectively-once guard.
	if s.Status.Resolved() {
		return &workflow.ConflictError{StepID: stepID, Status: s.Status}
	}
	s.Status = status
	s.UpdatedAt = at
	d.steps[stepID] = s
	return nil
}

func (d *memData) ListPendingSteps(_ context.Context, f workflow.ApprovalFilter) ([]workflow.ApprovalItem, error) {
	return d.listSteps(f, true)
}

func (d *memData) ListResolvedSteps(_ context.Context, f workflow.ApprovalFilter) ([]workflow.ApprovalItem, error) {
	return d.listSteps(f, false)
}

func (d *memData) listSteps(f workflow.ApprovalFilter, pending bool) ([]workflow.ApprovalItem, error) {
	var items []workflow.ApprovalItem
	for _, s := range d.steps {
		if pending != (s.Status == workflow.StatusPending) {
			continue
		}
		e, ok := d.expenses[s.ExpenseID]
		if !ok {
			continue
		}
		if f.ApproverID != "" && s.ApproverID != f.ApproverID {
			continue
		}
		if f.CompanyID != "" && e.CompanyID != f.CompanyID {
			continue
		}
		name := ""
		if u, ok := d.users[e.SubmitterID]; ok {
			name = u.Name
		}
		items = append(items, workflow.ApprovalItem{Step: s, Expense: e, SubmitterName: name})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Step.UpdatedAt.After(items[j].Step.UpdatedAt)
	})
	return items, nil
}

// =============================================================================
// STATS STORE
// =============================================================================

func (d *memData) CompanyPendingAmount(_ context.Context, companyID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range d.expenses {
		if e.CompanyID == companyID && e.Status == workflow.StatusPending {
			sum = sum.Add(e.Amount)
		}
	}
	return sum, nil
}

func (d *memData) CompanyApprovedSince(_ context.Context, companyID string, since time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range d.expenses {
		if e.CompanyID == companyID && e.Status == workflow.StatusApproved &&
			e.ApprovedAmount != nil && !e.UpdatedAt.Before(since) {
			sum = sum.Add(*e.ApprovedAmount)
		}
	}
	return sum, nil
}

func (d *memData) TeamPendingAmount(_ context.Context, managerID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range d.expenses {
		if d.reportsTo(e.SubmitterID, managerID) && e.Status == workflow.StatusPending {
			sum = sum.Add(e.Amount)
		}
	}
	return sum, nil
}

func (d *memData) TeamApprovedSince(_ context.Context, managerID string, since time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range d.expenses {
		if d.reportsTo(e.SubmitterID, managerID) && e.Status == workflow.StatusApproved &&
			e.ApprovedAmount != nil && !e.UpdatedAt.Before(since) {
			sum = sum.Add(*e.ApprovedAmount)
		}
	}
	return sum, nil
}

func (d *memData) TeamCategoryTotals(_ context.Context, managerID string) ([]workflow.CategoryTotal, error) {
	totals := make(map[string]decimal.Decimal)
	for _, e := range d.expenses {
		if d.reportsTo(e.SubmitterID, managerID) {
			totals[e.Category] = totals[e.Category].Add(e.Amount)
		}
	}
	categories := make([]string, 0, len(totals))
	for c := range totals {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	result := make([]workflow.CategoryTotal, len(categories))
	for i, c := range categories {
		result[i] = workflow.CategoryTotal{Category: c, Total: totals[c]}
	}
	return result, nil
}

func (d *memData) SubmitterTotals(_ context.Context, submitterID string) (*workflow.SubmitterTotals, error) {
	t := &workflow.SubmitterTotals{Submitted: decimal.Zero, Approved: decimal.Zero}
	for _, e := range d.expenses {
		if e.SubmitterID != submitterID {
			continue
		}
		t.Submitted = t.Submitted.Add(e.Amount)
		switch e.Status {
		case workflow.StatusApproved:
			if e.ApprovedAmount != nil {
				t.Approved = t.Approved.Add(*e.ApprovedAmount)
			}
		case workflow.StatusPending:
			t.PendingCount++
		}
	}
	return t, nil
}

func (d *memData) reportsTo(userID, managerID string) bool {
	u, ok := d.users[userID]
	return ok && u.ManagerID != nil && *u.ManagerID == managerID
}

// =============================================================================
// CREDENTIALS (auth.CredentialStore interface)
// =============================================================================

func (d *memData) SavePasswordHash(_ context.Context, userID, hash string) error {
	d.credentials[userID] = hash
	return nil
}

func (d *memData) GetPasswordHash(_ context.Context, userID string) (string, error) {
	hash, ok := d.credentials[userID]
	if !ok {
		return "", &workflow.NotFoundError{Kind: "user", ID: userID}
	}
	return hash, nil
}

// =============================================================================
// LOCKED WRAPPERS - Memory delegates to memData under the mutex
// =============================================================================

func (m *Memory) CreateCompany(ctx context.Context, c workflow.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.CreateCompany(ctx, c)
}

func (m *Memory) GetCompany(ctx context.Context, id string) (*workflow.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.GetCompany(ctx, id)
}

func (m *Memory) CreateUser(ctx context.Context, u workflow.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.CreateUser(ctx, u)
}

func (m *Memory) GetUser(ctx context.Context, id string) (*workflow.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.GetUser(ctx, id)
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*workflow.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.GetUserByEmail(ctx, email)
}

func (m *Memory) ListUsers(ctx context.Context, companyID string) ([]workflow.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ListUsers(ctx, companyID)
}

func (m *Memory) UpdateUserManager(ctx context.Context, userID string, managerID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.UpdateUserManager(ctx, userID, managerID)
}

func (m *Memory) UpdateUserRole(ctx context.Context, userID string, role workflow.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.UpdateUserRole(ctx, userID, role)
}

func (m *Memory) CountUsers(ctx context.Context, companyID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.CountUsers(ctx, companyID)
}

func (m *Memory) CountReports(ctx context.Context, managerID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.CountReports(ctx, managerID)
}

func (m *Memory) CreateExpense(ctx context.Context, e workflow.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.CreateExpense(ctx, e)
}

func (m *Memory) GetExpense(ctx context.Context, id string) (*workflow.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.GetExpense(ctx, id)
}

func (m *Memory) ListExpensesBySubmitter(ctx context.Context, submitterID string) ([]workflow.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ListExpensesBySubmitter(ctx, submitterID)
}

func (m *Memory) ResolveExpense(ctx context.Context, expenseID string, status workflow.Status, approvedAmount *decimal.Decimal, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.ResolveExpense(ctx, expenseID, status, approvedAmount, at)
}

func (m *Memory) CreateStep(ctx context.Context, s workflow.ApprovalStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.CreateStep(ctx, s)
}

func (m *Memory) GetStep(ctx context.Context, id string) (*workflow.ApprovalStep, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.GetStep(ctx, id)
}

func (m *Memory) ListStepsByExpense(ctx context.Context, expenseID string) ([]workflow.ApprovalStep, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ListStepsByExpense(ctx, expenseID)
}

func (m *Memory) ResolveStep(ctx context.Context, stepID string, status workflow.Status, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.ResolveStep(ctx, stepID, status, at)
}

func (m *Memory) ListPendingSteps(ctx context.Context, f workflow.ApprovalFilter) ([]workflow.ApprovalItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ListPendingSteps(ctx, f)
}

func (m *Memory) ListResolvedSteps(ctx context.Context, f workflow.ApprovalFilter) ([]workflow.ApprovalItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ListResolvedSteps(ctx, f)
}

func (m *Memory) CompanyPendingAmount(ctx context.Context, companyID string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.CompanyPendingAmount(ctx, companyID)
}

func (m *Memory) CompanyApprovedSince(ctx context.Context, companyID string, since time.Time) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.CompanyApprovedSince(ctx, companyID, since)
}

func (m *Memory) TeamPendingAmount(ctx context.Context, managerID string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.TeamPendingAmount(ctx, managerID)
}

func (m *Memory) TeamApprovedSince(ctx context.Context, managerID string, since time.Time) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.TeamApprovedSince(ctx, managerID, since)
}

func (m *Memory) TeamCategoryTotals(ctx context.Context, managerID string) ([]workflow.CategoryTotal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.TeamCategoryTotals(ctx, managerID)
}

func (m *Memory) SubmitterTotals(ctx context.Context, submitterID string) (*workflow.SubmitterTotals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.SubmitterTotals(ctx, submitterID)
}

func (m *Memory) SavePasswordHash(ctx context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.SavePasswordHash(ctx, userID, hash)
}

func (m *Memory) GetPasswordHash(ctx context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.GetPasswordHash(ctx, userID)
}
