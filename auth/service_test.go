package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbit/expense-engine/auth"
	"github.com/orbit/expense-engine/workflow"
	"github.com/orbit/expense-engine/workflow/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService() (*auth.Service, *store.Memory) {
	mem := store.NewMemory()
	return auth.NewService(mem, mem, nil), mem
}

func signup(t *testing.T, svc *auth.Service) *workflow.User {
	t.Helper()
	admin, err := svc.Signup(context.Background(), auth.SignupInput{
		CompanyName: "Acme",
		Name:        "Ada Admin",
		Email:       "ada@acme.test",
		Password:    "correct horse",
		Currency:    "INR",
	})
	require.NoError(t, err)
	return admin
}

// =============================================================================
// SIGNUP
// =============================================================================

func TestSignup_CreatesCompanyAndAdmin(t *testing.T) {
	// GIVEN: A fresh store
	// WHEN: Someone signs up
	// THEN: A company exists and the user holds ADMIN in it

	svc, mem := newTestService()
	admin := signup(t, svc)

	assert.Equal(t, workflow.RoleAdmin, admin.Role)
	assert.Nil(t, admin.ManagerID)

	company, err := mem.GetCompany(context.Background(), admin.CompanyID)
	require.NoError(t, err)
	require.NotNil(t, company)
	assert.Equal(t, "Acme", company.Name)
	assert.Equal(t, "INR", company.Currency)
}

func TestSignup_DuplicateEmailRejected(t *testing.T) {
	svc, _ := newTestService()
	signup(t, svc)

	_, err := svc.Signup(context.Background(), auth.SignupInput{
		CompanyName: "Other Co",
		Name:        "Ada Again",
		Email:       "ADA@acme.test", // case-insensitive match
		Password:    "correct horse",
		Currency:    "USD",
	})
	assert.ErrorIs(t, err, auth.ErrEmailExists)
}

func TestSignup_ShortPasswordRejected(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Signup(context.Background(), auth.SignupInput{
		CompanyName: "Acme",
		Name:        "Ada",
		Email:       "ada@acme.test",
		Password:    "short",
		Currency:    "INR",
	})
	assert.ErrorIs(t, err, auth.ErrWeakPassword)
}

func TestSignup_MissingFieldsRejected(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Signup(context.Background(), auth.SignupInput{
		Name:     "Ada",
		Email:    "ada@acme.test",
		Password: "correct horse",
	})
	assert.True(t, workflow.IsValidation(err), "expected validation error, got %v", err)
}

// =============================================================================
// LOGIN
// =============================================================================

func TestLogin_RoundTrip(t *testing.T) {
	svc, _ := newTestService()
	admin := signup(t, svc)

	user, err := svc.Login(context.Background(), "ada@acme.test", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, user.ID)
}

func TestLogin_NormalizesEmail(t *testing.T) {
	svc, _ := newTestService()
	signup(t, svc)

	_, err := svc.Login(context.Background(), "  ADA@acme.test ", "correct horse")
	assert.NoError(t, err)
}

func TestLogin_FailuresIndistinguishable(t *testing.T) {
	// Unknown email and wrong password must yield the same error.
	svc, _ := newTestService()
	signup(t, svc)
	ctx := context.Background()

	_, err := svc.Login(ctx, "nobody@acme.test", "correct horse")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "ada@acme.test", "wrong password")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

// =============================================================================
// ADMIN-DRIVEN ACCOUNT CREATION
// =============================================================================

func TestCreateUser_AdminAddsEmployee(t *testing.T) {
	svc, _ := newTestService()
	admin := signup(t, svc)
	ctx := context.Background()

	actor := workflow.Principal{UserID: admin.ID, Role: admin.Role, CompanyID: admin.CompanyID}
	user, err := svc.CreateUser(ctx, actor, auth.CreateUserInput{
		Name:     "Evan Employee",
		Email:    "evan@acme.test",
		Password: "also secret",
		Role:     workflow.RoleEmployee,
	})
	require.NoError(t, err)
	assert.Equal(t, admin.CompanyID, user.CompanyID)
	assert.Equal(t, workflow.RoleEmployee, user.Role)

	// The new account can log in immediately.
	_, err = svc.Login(ctx, "evan@acme.test", "also secret")
	assert.NoError(t, err)
}

func TestCreateUser_NonAdminDenied(t *testing.T) {
	svc, _ := newTestService()
	admin := signup(t, svc)

	actor := workflow.Principal{UserID: "someone", Role: workflow.RoleManager, CompanyID: admin.CompanyID}
	_, err := svc.CreateUser(context.Background(), actor, auth.CreateUserInput{
		Name:     "Evan",
		Email:    "evan@acme.test",
		Password: "also secret",
		Role:     workflow.RoleEmployee,
	})
	assert.True(t, workflow.IsAuthorization(err), "expected authorization error, got %v", err)
}

func TestCreateUser_UnknownRoleRejected(t *testing.T) {
	svc, _ := newTestService()
	admin := signup(t, svc)

	actor := workflow.Principal{UserID: admin.ID, Role: admin.Role, CompanyID: admin.CompanyID}
	_, err := svc.CreateUser(context.Background(), actor, auth.CreateUserInput{
		Name:     "Evan",
		Email:    "evan@acme.test",
		Password: "also secret",
		Role:     workflow.Role("INTERN"),
	})
	assert.True(t, workflow.IsValidation(err), "expected validation error, got %v", err)
}
