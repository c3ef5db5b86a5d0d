/*
service.go - Signup, login, and admin-driven account creation

PURPOSE:
  Signup bootstraps a tenant: it creates the Company and its first user (an
  ADMIN) in one transaction; if either write fails, neither is visible.
  Login verifies the bcrypt hash and hands back the user; the HTTP layer
  exchanges that for a JWT.

CREDENTIALS:
  Password hashes live behind CredentialStore, separate from the workflow's
  user records. Both store implementations satisfy it alongside
  workflow.Store, so account creation and hash storage share a transaction.
*/
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/orbit/expense-engine/workflow"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrEmailExists        = errors.New("email already registered")
)

// CredentialStore persists password hashes keyed by user ID.
type CredentialStore interface {
	SavePasswordHash(ctx context.Context, userID, hash string) error
	GetPasswordHash(ctx context.Context, userID string) (string, error)
}

// Service implements signup and login on top of the workflow store.
type Service struct {
	store  workflow.TxStore
	creds  CredentialStore
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates the auth service. store and creds are typically the
// same object (both store implementations satisfy both interfaces).
func NewService(store workflow.TxStore, creds CredentialStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, creds: creds, logger: logger, now: time.Now}
}

// SignupInput are the fields required to bootstrap a company.
type SignupInput struct {
	CompanyName string
	Name        string
	Email       string
	Password    string
	Currency    string
}

// Signup creates a new company and its first ADMIN user atomically.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*workflow.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.CompanyName == "" || in.Name == "" || in.Email == "" || in.Currency == "" {
		return nil, &workflow.ValidationError{Field: "signup", Reason: "all fields are required"}
	}
	if len(in.Password) < 8 {
		return nil, ErrWeakPassword
	}

	existing, err := s.store.GetUserByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	company := workflow.Company{
		ID:        uuid.NewString(),
		Name:      in.CompanyName,
		Currency:  strings.ToUpper(strings.TrimSpace(in.Currency)),
		CreatedAt: now,
	}
	user := workflow.User{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Email:     in.Email,
		Role:      workflow.RoleAdmin, // the first user is always an ADMIN
		CompanyID: company.ID,
		CreatedAt: now,
	}

	err = s.store.WithTx(ctx, func(tx workflow.Store) error {
		if err := tx.CreateCompany(ctx, company); err != nil {
			return err
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		creds, ok := tx.(CredentialStore)
		if !ok {
			return errors.New("store does not support credentials")
		}
		return creds.SavePasswordHash(ctx, user.ID, string(hash))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("company created", "company_id", company.ID, "admin_id", user.ID)
	return &user, nil
}

// Login verifies the email/password pair and returns the matching user.
// Failures are deliberately indistinguishable: unknown email and wrong
// password both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*workflow.User, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	hash, err := s.creds.GetPasswordHash(ctx, user.ID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// CreateUserInput are the fields an admin supplies for a new account.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     workflow.Role
}

// CreateUser lets an ADMIN add an EMPLOYEE or MANAGER account to their own
// company.
func (s *Service) CreateUser(ctx context.Context, actor workflow.Principal, in CreateUserInput) (*workflow.User, error) {
	if !actor.IsAdmin() {
		return nil, &workflow.AuthorizationError{ActorID: actor.UserID, Operation: "create user"}
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || in.Email == "" {
		return nil, &workflow.ValidationError{Field: "user", Reason: "name and email are required"}
	}
	if !workflow.ValidRole(in.Role) {
		return nil, &workflow.ValidationError{Field: "role", Reason: "unknown role"}
	}
	if len(in.Password) < 8 {
		return nil, ErrWeakPassword
	}

	existing, err := s.store.GetUserByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := workflow.User{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Email:     in.Email,
		Role:      in.Role,
		CompanyID: actor.CompanyID,
		CreatedAt: s.now().UTC(),
	}

	err = s.store.WithTx(ctx, func(tx workflow.Store) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		creds, ok := tx.(CredentialStore)
		if !ok {
			return errors.New("store does not support credentials")
		}
		return creds.SavePasswordHash(ctx, user.ID, string(hash))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user created", "user_id", user.ID, "role", user.Role, "by", actor.UserID)
	return &user, nil
}
