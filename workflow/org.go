/*
org.go - Org hierarchy resolution and manager assignment

PURPOSE:
  The single-level reports-to relation. ResolveApprover is the pure lookup
  submission routing builds on; AssignManager is the ADMIN-only mutation that
  rewires the org chart.

SNAPSHOT POLICY:
  Reassigning a manager never touches approval steps that already exist.
  A step's approver was copied from the org chart at submission time and is
  historical record from then on.
*/
package workflow

import "context"

// Org resolves and mutates the reports-to relation.
type Org struct {
	store TxStore
}

func NewOrg(store TxStore) *Org {
	return &Org{store: store}
}

// ResolveApprover returns the submitter's manager ID, or nil if unassigned.
// Pure lookup: no side effects.
func (o *Org) ResolveApprover(ctx context.Context, submitterID string) (*string, error) {
	u, err := o.store.GetUser(ctx, submitterID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, &NotFoundError{Kind: "user", ID: submitterID}
	}
	return u.ManagerID, nil
}

// AssignManager sets or clears the target user's manager. Restricted to
// ADMIN. The assigned manager must exist in the same company and hold a role
// that can approve (MANAGER or ADMIN).
func (o *Org) AssignManager(ctx context.Context, actor Principal, employeeID string, managerID *string) (*User, error) {
	if !actor.IsAdmin() {
		return nil, &AuthorizationError{ActorID: actor.UserID, Operation: "assign manager"}
	}

	employee, err := o.store.GetUser(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if employee == nil || employee.CompanyID != actor.CompanyID {
		return nil, &NotFoundError{Kind: "user", ID: employeeID}
	}

	if managerID != nil {
		if *managerID == employeeID {
			return nil, &ValidationError{Field: "managerId", Reason: "cannot be own manager"}
		}
		manager, err := o.store.GetUser(ctx, *managerID)
		if err != nil {
			return nil, err
		}
		if manager == nil || manager.CompanyID != employee.CompanyID {
			return nil, &NotFoundError{Kind: "user", ID: *managerID}
		}
		if !manager.Role.CanApprove() {
			return nil, &ValidationError{Field: "managerId", Reason: "manager must hold MANAGER or ADMIN"}
		}
	}

	if err := o.store.UpdateUserManager(ctx, employeeID, managerID); err != nil {
		return nil, err
	}

	employee.ManagerID = managerID
	return employee, nil
}

// ChangeRole updates a user's role. Restricted to ADMIN within the same
// company.
func (o *Org) ChangeRole(ctx context.Context, actor Principal, userID string, role Role) (*User, error) {
	if !actor.IsAdmin() {
		return nil, &AuthorizationError{ActorID: actor.UserID, Operation: "change role"}
	}
	if !ValidRole(role) {
		return nil, &ValidationError{Field: "role", Reason: "unknown role"}
	}

	u, err := o.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil || u.CompanyID != actor.CompanyID {
		return nil, &NotFoundError{Kind: "user", ID: userID}
	}

	if err := o.store.UpdateUserRole(ctx, userID, role); err != nil {
		return nil, err
	}
	u.Role = role
	return u, nil
}

// ListUsers returns the company roster. Restricted to ADMIN.
func (o *Org) ListUsers(ctx context.Context, actor Principal) ([]User, error) {
	if !actor.IsAdmin() {
		return nil, &AuthorizationError{ActorID: actor.UserID, Operation: "list users"}
	}
	return o.store.ListUsers(ctx, actor.CompanyID)
}
