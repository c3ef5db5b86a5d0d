/*
handlers.go - HTTP API handlers for the expense approval system

PURPOSE:
  Exposes the approval engine via REST. Handles HTTP request/response and
  JSON serialization, delegating all rules to the workflow package.

ENDPOINTS:
  Auth:
    POST   /api/auth/signup             Create company + first admin
    POST   /api/auth/login              Exchange credentials for a JWT

  Expenses:
    POST   /api/expenses                Submit an expense
    GET    /api/expenses/my             The caller's own expenses

  Approvals:
    GET    /api/approvals               Pending queue (manager: own, admin: company)
    GET    /api/approvals/history       Resolved steps, same scoping
    POST   /api/approvals/{stepID}      Approve (full/partial) or reject

  Users (admin):
    GET    /api/users                   Company roster
    POST   /api/users                   Create employee/manager account
    PUT    /api/users/{id}              Change role
    PUT    /api/users/{id}/assign-manager  Set or clear reports-to

  Dashboard:
    GET    /api/dashboard-stats         Role-scoped aggregates

ERROR HANDLING:
  The workflow error kinds map onto HTTP statuses:
  - Validation    400
  - Authorization 403
  - NotFound      404
  - Conflict      409
  Anything else is a 500.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/orbit/expense-engine/auth"
	"github.com/orbit/expense-engine/workflow"
)

const timeLayout = time.RFC3339

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *workflow.Engine
	Org      *workflow.Org
	Reporter *workflow.Reporter
	Auth     *auth.Service
	JWT      *auth.JWTManager
	Logger   *slog.Logger
}

// NewHandler wires the handler with its collaborators.
func NewHandler(engine *workflow.Engine, org *workflow.Org, reporter *workflow.Reporter, authSvc *auth.Service, jwt *auth.JWTManager, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Engine:   engine,
		Org:      org,
		Reporter: reporter,
		Auth:     authSvc,
		JWT:      jwt,
		Logger:   logger,
	}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Signup creates a new company and its first ADMIN user.
// POST /api/auth/signup
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.Auth.Signup(r.Context(), auth.SignupInput{
		CompanyName: req.CompanyName,
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		Currency:    req.Currency,
	})
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	token, err := h.JWT.Generate(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate token", err)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, User: toUserDTO(user)})
}

// Login exchanges email/password for a JWT.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password", nil)
		return
	}

	token, err := h.JWT.Generate(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate token", err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: toUserDTO(user)})
}

func (h *Handler) writeAuthError(w http.ResponseWriter, err error) {
	switch err {
	case auth.ErrEmailExists:
		writeError(w, http.StatusBadRequest, "User with this email already exists", nil)
	case auth.ErrWeakPassword:
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters", nil)
	default:
		h.writeDomainError(w, err)
	}
}

// =============================================================================
// EXPENSE HANDLERS
// =============================================================================

// SubmitExpense creates an expense and its approval chain.
// POST /api/expenses
func (h *Handler) SubmitExpense(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	var req SubmitExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Description) < 3 || len(req.Category) < 2 || len(req.Currency) < 2 {
		writeError(w, http.StatusBadRequest, "Description, category, and currency are too short", nil)
		return
	}

	expense, err := h.Engine.SubmitExpense(r.Context(), principal.UserID, workflow.ExpenseInput{
		Description: req.Description,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Category:    req.Category,
		Date:        req.Date,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toExpenseDTO(expense))
}

// ListMyExpenses returns the caller's own expenses, newest first.
// GET /api/expenses/my
func (h *Handler) ListMyExpenses(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	expenses, err := h.Engine.ListMyExpenses(r.Context(), principal)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]ExpenseDTO, len(expenses))
	for i := range expenses {
		dtos[i] = toExpenseDTO(&expenses[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// APPROVAL HANDLERS
// =============================================================================

// ListPendingApprovals returns the caller's approval queue.
// GET /api/approvals
func (h *Handler) ListPendingApprovals(w http.ResponseWriter, r *http.Request) {
	h.listApprovals(w, r, h.Engine.ListPendingApprovals)
}

// ListApprovalHistory returns resolved steps under the same scoping.
// GET /api/approvals/history
func (h *Handler) ListApprovalHistory(w http.ResponseWriter, r *http.Request) {
	h.listApprovals(w, r, h.Engine.ListApprovalHistory)
}

func (h *Handler) listApprovals(w http.ResponseWriter, r *http.Request, list func(ctx context.Context, p workflow.Principal) ([]workflow.ApprovalItem, error)) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	items, err := list(r.Context(), principal)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]ApprovalItemDTO, len(items))
	for i := range items {
		dtos[i] = toApprovalItemDTO(&items[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Decide records an approval or rejection on a step.
// POST /api/approvals/{stepID}
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	stepID := chi.URLParam(r, "stepID")
	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	expense, err := h.Engine.Decide(r.Context(), stepID, principal, workflow.Decision(req.Status), req.ApprovedAmount)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	decisionsTotal.WithLabelValues(req.Status).Inc()
	h.Logger.Info("decision recorded",
		"step_id", stepID, "actor_id", principal.UserID, "decision", req.Status)
	writeJSON(w, http.StatusOK, toExpenseDTO(expense))
}

// =============================================================================
// USER MANAGEMENT HANDLERS (admin)
// =============================================================================

// ListUsers returns the company roster.
// GET /api/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	users, err := h.Org.ListUsers(r.Context(), principal)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]UserDTO, len(users))
	for i := range users {
		dtos[i] = toUserDTO(&users[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateUser adds an employee or manager account to the caller's company.
// POST /api/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.Auth.CreateUser(r.Context(), principal, auth.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     workflow.Role(req.Role),
	})
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserDTO(user))
}

// UpdateRole changes a user's role.
// PUT /api/users/{id}
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	var req UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.Org.ChangeRole(r.Context(), principal, chi.URLParam(r, "id"), workflow.Role(req.Role))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// AssignManager sets or clears a user's manager.
// PUT /api/users/{id}/assign-manager
func (h *Handler) AssignManager(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	var req AssignManagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.Org.AssignManager(r.Context(), principal, chi.URLParam(r, "id"), req.ManagerID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// =============================================================================
// DASHBOARD HANDLER
// =============================================================================

// DashboardStats returns the role-scoped aggregate view.
// GET /api/dashboard-stats
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	dash, err := h.Reporter.Dashboard(r.Context(), principal)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	switch dash.Role {
	case workflow.RoleAdmin:
		writeJSON(w, http.StatusOK, AdminStatsDTO{
			TotalUsers:        dash.Admin.TotalUsers,
			PendingAmount:     dash.Admin.PendingAmount,
			ApprovedThisMonth: dash.Admin.ApprovedThisMonth,
		})
	case workflow.RoleManager:
		writeJSON(w, http.StatusOK, ManagerStatsDTO{
			TeamSize:              dash.Manager.TeamSize,
			PendingTeamAmount:     dash.Manager.PendingTeamAmount,
			ApprovedTeamThisMonth: dash.Manager.ApprovedTeamThisMonth,
			ExpensesByCategory:    toCategorySlices(dash.Manager.ExpensesByCategory),
		})
	default:
		writeJSON(w, http.StatusOK, EmployeeStatsDTO{
			TotalSubmitted: dash.Employee.TotalSubmitted,
			TotalApproved:  dash.Employee.TotalApproved,
			PendingCount:   dash.Employee.PendingCount,
		})
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// writeDomainError maps the workflow error taxonomy to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case workflow.IsValidation(err):
		writeError(w, http.StatusBadRequest, "Invalid input", err)
	case workflow.IsAuthorization(err):
		writeError(w, http.StatusForbidden, "Not authorized", err)
	case workflow.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case workflow.IsConflict(err):
		writeError(w, http.StatusConflict, "Already resolved", err)
	default:
		h.Logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
