/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the internal
  domain model from the external contract. Field names are camelCase to
  match the dashboard clients.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY ON THE WIRE:
  Monetary fields travel as JSON numbers in the expense's own currency; the
  engine performs no conversion. decimal.Decimal marshals exactly.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/orbit/expense-engine/workflow"
)

// =============================================================================
// AUTH
// =============================================================================

type SignupRequest struct {
	CompanyName string `json:"companyName"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Currency    string `json:"currency"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

// =============================================================================
// USERS
// =============================================================================

type UserDTO struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	ManagerID *string `json:"managerId"`
	CompanyID string  `json:"companyId"`
}

type CreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

type AssignManagerRequest struct {
	ManagerID *string `json:"managerId"` // null clears the assignment
}

// =============================================================================
// EXPENSES & APPROVALS
// =============================================================================

type SubmitExpenseRequest struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Category    string `json:"category"`
	Date        string `json:"date"` // YYYY-MM-DD
}

type ExpenseDTO struct {
	ID             string            `json:"id"`
	SubmitterID    string            `json:"submitterId"`
	Description    string            `json:"description"`
	Amount         decimal.Decimal   `json:"amount"`
	Currency       string            `json:"currency"`
	Category       string            `json:"category"`
	Date           string            `json:"date"`
	Status         string            `json:"status"`
	ApprovedAmount *decimal.Decimal  `json:"approvedAmount,omitempty"`
	CreatedAt      string            `json:"createdAt"`
	Steps          []ApprovalStepDTO `json:"steps"`
}

type ApprovalStepDTO struct {
	ID         string `json:"id"`
	ExpenseID  string `json:"expenseId"`
	ApproverID string `json:"approverId"`
	Step       int    `json:"step"`
	Status     string `json:"status"`
	UpdatedAt  string `json:"updatedAt"`
}

// ApprovalItemDTO is a step joined with its expense, as shown on approval
// queues and history views.
type ApprovalItemDTO struct {
	StepID        string     `json:"stepId"`
	Step          int        `json:"step"`
	Status        string     `json:"status"`
	UpdatedAt     string     `json:"updatedAt"`
	SubmitterName string     `json:"submitterName"`
	Expense       ExpenseDTO `json:"expense"`
}

type DecideRequest struct {
	Status         string           `json:"status"` // APPROVED or REJECTED
	ApprovedAmount *decimal.Decimal `json:"approvedAmount,omitempty"`
}

// =============================================================================
// DASHBOARD STATS - One flat shape per role
// =============================================================================

type AdminStatsDTO struct {
	TotalUsers        int             `json:"totalUsers"`
	PendingAmount     decimal.Decimal `json:"pendingAmount"`
	ApprovedThisMonth decimal.Decimal `json:"approvedThisMonth"`
}

type ManagerStatsDTO struct {
	TeamSize              int             `json:"teamSize"`
	PendingTeamAmount     decimal.Decimal `json:"pendingTeamAmount"`
	ApprovedTeamThisMonth decimal.Decimal `json:"approvedTeamThisMonth"`
	ExpensesByCategory    []CategorySlice `json:"expensesByCategory"`
}

// CategorySlice is one wedge of the manager's category breakdown chart.
type CategorySlice struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

type EmployeeStatsDTO struct {
	TotalSubmitted decimal.Decimal `json:"totalSubmitted"`
	TotalApproved  decimal.Decimal `json:"totalApproved"`
	PendingCount   int             `json:"pendingCount"`
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// DOMAIN -> DTO MAPPING
// =============================================================================

func toUserDTO(u *workflow.User) UserDTO {
	return UserDTO{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		ManagerID: u.ManagerID,
		CompanyID: u.CompanyID,
	}
}

func toExpenseDTO(e *workflow.Expense) ExpenseDTO {
	dto := ExpenseDTO{
		ID:             e.ID,
		SubmitterID:    e.SubmitterID,
		Description:    e.Description,
		Amount:         e.Amount,
		Currency:       e.Currency,
		Category:       e.Category,
		Date:           e.Date.Format(workflow.DateLayout),
		Status:         string(e.Status),
		ApprovedAmount: e.ApprovedAmount,
		CreatedAt:      e.CreatedAt.Format(timeLayout),
		Steps:          make([]ApprovalStepDTO, len(e.Steps)),
	}
	for i, s := range e.Steps {
		dto.Steps[i] = toStepDTO(&s)
	}
	return dto
}

func toStepDTO(s *workflow.ApprovalStep) ApprovalStepDTO {
	return ApprovalStepDTO{
		ID:         s.ID,
		ExpenseID:  s.ExpenseID,
		ApproverID: s.ApproverID,
		Step:       s.Step,
		Status:     string(s.Status),
		UpdatedAt:  s.UpdatedAt.Format(timeLayout),
	}
}

func toApprovalItemDTO(item *workflow.ApprovalItem) ApprovalItemDTO {
	return ApprovalItemDTO{
		StepID:        item.Step.ID,
		Step:          item.Step.Step,
		Status:        string(item.Step.Status),
		UpdatedAt:     item.Step.UpdatedAt.Format(timeLayout),
		SubmitterName: item.SubmitterName,
		Expense:       toExpenseDTO(&item.Expense),
	}
}

func toCategorySlices(totals []workflow.CategoryTotal) []CategorySlice {
	slices := make([]CategorySlice, len(totals))
	for i, t := range totals {
		slices[i] = CategorySlice{Name: t.Category, Value: t.Total}
	}
	return slices
}
