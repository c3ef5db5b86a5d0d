package workflow

// =============================================================================
// ROUTING POLICY - Who approves, and in what order
// =============================================================================

// RoutingPolicy plans the approval chain for a submission. It returns the
// ordered approver IDs; position i becomes step i+1. An empty plan means the
// expense is created without a chain.
//
// The step data model supports arbitrary chain lengths; only the policy
// decides how many steps exist. Swapping in a multi-level policy requires no
// schema or engine change.
type RoutingPolicy interface {
	PlanChain(submitter *User) []string
}

// SingleStepRouting routes every expense to the submitter's direct manager
// as the sole step. Submitters without a manager get no chain at all; such
// expenses stay PENDING with nobody able to act on them.
type SingleStepRouting struct{}

func (SingleStepRouting) PlanChain(submitter *User) []string {
	if submitter.ManagerID == nil {
		return nil
	}
	return []string{*submitter.ManagerID}
}
