/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements workflow.TxStore and auth.CredentialStore on SQLite. The same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  companies:      Tenant records with a default currency
  users:          Org members and the single-level reports-to relation
  credentials:    Password hashes, kept out of the users row on purpose
  expenses:       The expense ledger
  approval_steps: The per-expense approval chain

LOCK-STEP TRANSITIONS:
  A step and its expense resolve inside one database transaction (WithTx).
  ResolveStep is a conditional UPDATE restricted to PENDING rows; a racing
  decision that loses sees zero rows affected and gets workflow.ErrConflict.

MONETARY PRECISION:
  Amounts are stored as decimal strings and summed in Go with
  shopspring/decimal. Aggregates read their rows in a single query; no SQL
  float arithmetic touches money.

WAL MODE:
  The database is opened with WAL and foreign keys on. A single connection
  serializes writers, which is all SQLite allows anyway.

USAGE:
  store, err := sqlite.New("./data/expenses.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - workflow/store.go: Interface definitions
  - workflow/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/orbit/expense-engine/workflow"
)

// Store implements workflow.TxStore using SQLite.
type Store struct {
	queries
	db *sql.DB
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{queries: queries{db: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		currency TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		role TEXT NOT NULL,
		manager_id TEXT,
		company_id TEXT NOT NULL REFERENCES companies(id),
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email
		ON users(email COLLATE NOCASE);
	CREATE INDEX IF NOT EXISTS idx_users_company
		ON users(company_id);
	CREATE INDEX IF NOT EXISTS idx_users_manager
		ON users(manager_id) WHERE manager_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS credentials (
		user_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		password_hash TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		submitter_id TEXT NOT NULL REFERENCES users(id),
		company_id TEXT NOT NULL REFERENCES companies(id),
		description TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		category TEXT NOT NULL,
		date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		approved_amount TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_expenses_submitter
		ON expenses(submitter_id);
	CREATE INDEX IF NOT EXISTS idx_expenses_company_status
		ON expenses(company_id, status);

	-- Steps are owned by their expense; deleting an expense removes its chain.
	CREATE TABLE IF NOT EXISTS approval_steps (
		id TEXT PRIMARY KEY,
		expense_id TEXT NOT NULL REFERENCES expenses(id) ON DELETE CASCADE,
		approver_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(expense_id, step)
	);

	CREATE INDEX IF NOT EXISTS idx_steps_approver_status
		ON approval_steps(approver_id, status);
	CREATE INDEX IF NOT EXISTS idx_steps_expense
		ON approval_steps(expense_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS (workflow.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(workflow.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{queries: queries{db: sqlTx}}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore is the transactional view handed to WithTx callbacks. It carries
// the credential methods too, so auth signup can run atomically.
type txStore struct {
	queries
}

// dbtx is satisfied by both *sql.DB and *sql.Tx, so every query below works
// inside and outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

// =============================================================================
// ORG STORE
// =============================================================================

func (q queries) CreateCompany(ctx context.Context, c workflow.Company) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO companies (id, name, currency, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.Currency, c.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}
	return nil
}

func (q queries) GetCompany(ctx context.Context, id string) (*workflow.Company, error) {
	var c workflow.Company
	var createdAt string
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, currency, created_at FROM companies WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Currency, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &c, nil
}

func (q queries) CreateUser(ctx context.Context, u workflow.User) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, role, manager_id, company_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.Role, nullStringPtr(u.ManagerID), u.CompanyID,
		u.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &workflow.ValidationError{Field: "email", Reason: "already registered"}
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

const userColumns = `id, name, email, role, manager_id, company_id, created_at`

func (q queries) GetUser(ctx context.Context, id string) (*workflow.User, error) {
	return scanUserRow(q.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (q queries) GetUserByEmail(ctx context.Context, email string) (*workflow.User, error) {
	return scanUserRow(q.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email))
}

func scanUserRow(row *sql.Row) (*workflow.User, error) {
	var u workflow.User
	var managerID sql.NullString
	var createdAt string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &managerID, &u.CompanyID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if managerID.Valid {
		u.ManagerID = &managerID.String
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

func (q queries) ListUsers(ctx context.Context, companyID string) ([]workflow.User, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE company_id = ? ORDER BY name ASC`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []workflow.User
	for rows.Next() {
		var u workflow.User
		var managerID sql.NullString
		var createdAt string
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &managerID, &u.CompanyID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if managerID.Valid {
			u.ManagerID = &managerID.String
		}
		u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (q queries) UpdateUserManager(ctx context.Context, userID string, managerID *string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE users SET manager_id = ? WHERE id = ?`, nullStringPtr(managerID), userID)
	if err != nil {
		return fmt.Errorf("failed to update manager: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &workflow.NotFoundError{Kind: "user", ID: userID}
	}
	return nil
}

func (q queries) UpdateUserRole(ctx context.Context, userID string, role workflow.Role) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE users SET role = ? WHERE id = ?`, role, userID)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &workflow.NotFoundError{Kind: "user", ID: userID}
	}
	return nil
}

func (q queries) CountUsers(ctx context.Context, companyID string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE company_id = ?`, companyID).Scan(&n)
	return n, err
}

func (q queries) CountReports(ctx context.Context, managerID string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE manager_id = ?`, managerID).Scan(&n)
	return n, err
}

// =============================================================================
// LEDGER STORE - Expenses
// =============================================================================

func (q queries) CreateExpense(ctx context.Context, e workflow.Expense) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO expenses
		 (id, submitter_id, company_id, description, amount, currency, category, date,
		  status, approved_amount, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SubmitterID, e.CompanyID, e.Description, e.Amount.String(),
		e.Currency, e.Category, e.Date.Format(workflow.DateLayout),
		e.Status, nullDecimalPtr(e.ApprovedAmount),
		e.CreatedAt.UTC().Format(time.RFC3339), e.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

const expenseColumns = `id, submitter_id, company_id, description, amount, currency,
	category, date, status, approved_amount, created_at, updated_at`

func (q queries) GetExpense(ctx context.Context, id string) (*workflow.Expense, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	e, err := scanExpense(rows)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (q queries) ListExpensesBySubmitter(ctx context.Context, submitterID string) ([]workflow.Expense, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses
		 WHERE submitter_id = ? ORDER BY created_at DESC`, submitterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []workflow.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func scanExpense(rows *sql.Rows) (workflow.Expense, error) {
	var (
		e              workflow.Expense
		amount         string
		date           string
		approvedAmount sql.NullString
		createdAt      string
		updatedAt      string
	)
	err := rows.Scan(&e.ID, &e.SubmitterID, &e.CompanyID, &e.Description, &amount,
		&e.Currency, &e.Category, &date, &e.Status, &approvedAmount, &createdAt, &updatedAt)
	if err != nil {
		return e, fmt.Errorf("failed to scan expense: %w", err)
	}

	e.Amount, _ = decimal.NewFromString(amount)
	if approvedAmount.Valid {
		if d, err := decimal.NewFromString(approvedAmount.String); err == nil {
			e.ApprovedAmount = &d
		}
	}
	e.Date, _ = time.Parse(workflow.DateLayout, date)
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return e, nil
}

// ResolveExpense finalizes a pending expense. The status guard mirrors
// ResolveStep so step and expense only ever transition in lock-step.
func (q queries) ResolveExpense(ctx context.Context, expenseID string, status workflow.Status, approvedAmount *decimal.Decimal, at time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE expenses SET status = ?, approved_amount = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		status, nullDecimalPtr(approvedAmount), at.UTC().Format(time.RFC3339),
		expenseID, workflow.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return q.classifyUpdateMiss(ctx, "expense", expenseID,
			`SELECT status FROM expenses WHERE id = ?`)
	}
	return nil
}

// =============================================================================
// LEDGER STORE - Approval steps
// =============================================================================

func (q queries) CreateStep(ctx context.Context, s workflow.ApprovalStep) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO approval_steps (id, expense_id, approver_id, step, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ExpenseID, s.ApproverID, s.Step, s.Status,
		s.CreatedAt.UTC().Format(time.RFC3339), s.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create step: %w", err)
	}
	return nil
}

const stepColumns = `id, expense_id, approver_id, step, status, created_at, updated_at`

func (q queries) GetStep(ctx context.Context, id string) (*workflow.ApprovalStep, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM approval_steps WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get step: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	s, err := scanStep(rows)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (q queries) ListStepsByExpense(ctx context.Context, expenseID string) ([]workflow.ApprovalStep, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM approval_steps WHERE expense_id = ? ORDER BY step ASC`, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	var steps []workflow.ApprovalStep
	for rows.Next() {
		s, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

func scanStep(rows *sql.Rows) (workflow.ApprovalStep, error) {
	var s workflow.ApprovalStep
	var createdAt, updatedAt string
	err := rows.Scan(&s.ID, &s.ExpenseID, &s.ApproverID, &s.Step, &s.Status, &createdAt, &updatedAt)
	if err != nil {
		return s, fmt.Errorf("failed to scan step: %w", err)
	}
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return s, nil
}

// ResolveStep transitions a step out of PENDING. The WHERE clause is the
// effectively-once guard: a racing decision that lost sees zero rows.
func (q queries) ResolveStep(ctx context.Context, stepID string, status workflow.Status, at time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE approval_steps SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		status, at.UTC().Format(time.RFC3339), stepID, workflow.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve step: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return q.classifyUpdateMiss(ctx, "step", stepID,
			`SELECT status FROM approval_steps WHERE id = ?`)
	}
	return nil
}

// classifyUpdateMiss turns a zero-row conditional update into the right
// error: the row never existed (NotFound) or it left PENDING already
// (Conflict).
func (q queries) classifyUpdateMiss(ctx context.Context, kind, id, statusQuery string) error {
	var status workflow.Status
	err := q.db.QueryRowContext(ctx, statusQuery, id).Scan(&status)
	if err == sql.ErrNoRows {
		return &workflow.NotFoundError{Kind: kind, ID: id}
	}
	if err != nil {
		return fmt.Errorf("failed to classify update miss: %w", err)
	}
	return &workflow.ConflictError{StepID: id, Status: status}
}

// =============================================================================
// APPROVAL LISTINGS
// =============================================================================

func (q queries) ListPendingSteps(ctx context.Context, f workflow.ApprovalFilter) ([]workflow.ApprovalItem, error) {
	return q.listSteps(ctx, f, `s.status = 'PENDING'`)
}

func (q queries) ListResolvedSteps(ctx context.Context, f workflow.ApprovalFilter) ([]workflow.ApprovalItem, error) {
	return q.listSteps(ctx, f, `s.status != 'PENDING'`)
}

func (q queries) listSteps(ctx context.Context, f workflow.ApprovalFilter, statusCond string) ([]workflow.ApprovalItem, error) {
	query := `
		SELECT s.id, s.expense_id, s.approver_id, s.step, s.status, s.created_at, s.updated_at,
		       e.id, e.submitter_id, e.company_id, e.description, e.amount, e.currency,
		       e.category, e.date, e.status, e.approved_amount, e.created_at, e.updated_at,
		       u.name
		FROM approval_steps s
		JOIN expenses e ON e.id = s.expense_id
		JOIN users u ON u.id = e.submitter_id
		WHERE ` + statusCond
	var args []any
	if f.ApproverID != "" {
		query += ` AND s.approver_id = ?`
		args = append(args, f.ApproverID)
	}
	if f.CompanyID != "" {
		query += ` AND e.company_id = ?`
		args = append(args, f.CompanyID)
	}
	query += ` ORDER BY s.updated_at DESC, s.created_at DESC`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list approval steps: %w", err)
	}
	defer rows.Close()

	var items []workflow.ApprovalItem
	for rows.Next() {
		var (
			item           workflow.ApprovalItem
			stepCreated    string
			stepUpdated    string
			amount         string
			date           string
			approvedAmount sql.NullString
			expCreated     string
			expUpdated     string
		)
		err := rows.Scan(
			&item.Step.ID, &item.Step.ExpenseID, &item.Step.ApproverID, &item.Step.Step,
			&item.Step.Status, &stepCreated, &stepUpdated,
			&item.Expense.ID, &item.Expense.SubmitterID, &item.Expense.CompanyID,
			&item.Expense.Description, &amount, &item.Expense.Currency,
			&item.Expense.Category, &date, &item.Expense.Status, &approvedAmount,
			&expCreated, &expUpdated,
			&item.SubmitterName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval item: %w", err)
		}
		item.Step.CreatedAt, _ = time.Parse(time.RFC3339, stepCreated)
		item.Step.UpdatedAt, _ = time.Parse(time.RFC3339, stepUpdated)
		item.Expense.Amount, _ = decimal.NewFromString(amount)
		if approvedAmount.Valid {
			if d, err := decimal.NewFromString(approvedAmount.String); err == nil {
				item.Expense.ApprovedAmount = &d
			}
		}
		item.Expense.Date, _ = time.Parse(workflow.DateLayout, date)
		item.Expense.CreatedAt, _ = time.Parse(time.RFC3339, expCreated)
		item.Expense.UpdatedAt, _ = time.Parse(time.RFC3339, expUpdated)
		items = append(items, item)
	}
	return items, rows.Err()
}

// =============================================================================
// STATS STORE
// =============================================================================
// Amounts are decimal strings; each aggregate reads its rows in one query
// and sums them in Go so money arithmetic stays exact.

func (q queries) CompanyPendingAmount(ctx context.Context, companyID string) (decimal.Decimal, error) {
	return q.sumAmounts(ctx,
		`SELECT amount FROM expenses WHERE company_id = ? AND status = 'PENDING'`,
		companyID)
}

func (q queries) CompanyApprovedSince(ctx context.Context, companyID string, since time.Time) (decimal.Decimal, error) {
	return q.sumAmounts(ctx,
		`SELECT approved_amount FROM expenses
		 WHERE company_id = ? AND status = 'APPROVED'
		   AND approved_amount IS NOT NULL AND updated_at >= ?`,
		companyID, since.UTC().Format(time.RFC3339))
}

func (q queries) TeamPendingAmount(ctx context.Context, managerID string) (decimal.Decimal, error) {
	return q.sumAmounts(ctx,
		`SELECT e.amount FROM expenses e
		 JOIN users u ON u.id = e.submitter_id
		 WHERE u.manager_id = ? AND e.status = 'PENDING'`,
		managerID)
}

func (q queries) TeamApprovedSince(ctx context.Context, managerID string, since time.Time) (decimal.Decimal, error) {
	return q.sumAmounts(ctx,
		`SELECT e.approved_amount FROM expenses e
		 JOIN users u ON u.id = e.submitter_id
		 WHERE u.manager_id = ? AND e.status = 'APPROVED'
		   AND e.approved_amount IS NOT NULL AND e.updated_at >= ?`,
		managerID, since.UTC().Format(time.RFC3339))
}

func (q queries) TeamCategoryTotals(ctx context.Context, managerID string) ([]workflow.CategoryTotal, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT e.category, e.amount FROM expenses e
		 JOIN users u ON u.id = e.submitter_id
		 WHERE u.manager_id = ?
		 ORDER BY e.category ASC`,
		managerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query category totals: %w", err)
	}
	defer rows.Close()

	var result []workflow.CategoryTotal
	for rows.Next() {
		var category, amount string
		if err := rows.Scan(&category, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			continue
		}
		if n := len(result); n > 0 && result[n-1].Category == category {
			result[n-1].Total = result[n-1].Total.Add(d)
		} else {
			result = append(result, workflow.CategoryTotal{Category: category, Total: d})
		}
	}
	return result, rows.Err()
}

func (q queries) SubmitterTotals(ctx context.Context, submitterID string) (*workflow.SubmitterTotals, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT amount, approved_amount, status FROM expenses WHERE submitter_id = ?`,
		submitterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query submitter totals: %w", err)
	}
	defer rows.Close()

	t := &workflow.SubmitterTotals{Submitted: decimal.Zero, Approved: decimal.Zero}
	for rows.Next() {
		var amount string
		var approvedAmount sql.NullString
		var status workflow.Status
		if err := rows.Scan(&amount, &approvedAmount, &status); err != nil {
			return nil, fmt.Errorf("failed to scan totals row: %w", err)
		}
		if d, err := decimal.NewFromString(amount); err == nil {
			t.Submitted = t.Submitted.Add(d)
		}
		switch status {
		case workflow.StatusApproved:
			if approvedAmount.Valid {
				if d, err := decimal.NewFromString(approvedAmount.String); err == nil {
					t.Approved = t.Approved.Add(d)
				}
			}
		case workflow.StatusPending:
			t.PendingCount++
		}
	}
	return t, rows.Err()
}

func (q queries) sumAmounts(ctx context.Context, query string, args ...any) (decimal.Decimal, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query amounts: %w", err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan amount: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			continue
		}
		sum = sum.Add(d)
	}
	return sum, rows.Err()
}

// =============================================================================
// CREDENTIALS (auth.CredentialStore interface)
// =============================================================================

func (q queries) SavePasswordHash(ctx context.Context, userID, hash string) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO credentials (user_id, password_hash) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET password_hash = excluded.password_hash`,
		userID, hash)
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

func (q queries) GetPasswordHash(ctx context.Context, userID string) (string, error) {
	var hash string
	err := q.db.QueryRowContext(ctx,
		`SELECT password_hash FROM credentials WHERE user_id = ?`, userID).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", &workflow.NotFoundError{Kind: "user", ID: userID}
	}
	if err != nil {
		return "", fmt.Errorf("failed to get credentials: %w", err)
	}
	return hash, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullDecimalPtr(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
