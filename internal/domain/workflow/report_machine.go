package workflow

// Guards holds the guard functions the report graph needs. Nil guards make
// the corresponding edge unconditional, which the engine relies on in tests.
type Guards struct {
	// HasIssuedLink reports whether at least one party has an unexpired,
	// active link (guard for determination_complete -> collecting)
	HasIssuedLink GuardFunc

	// AllPartiesSubmitted reports whether every required party has submitted,
	// counted fresh at decision time (guard for collecting -> ready_to_file)
	AllPartiesSubmitted GuardFunc
}

// NewReportMachine builds the report lifecycle machine positioned at the
// given state.
//
// The primary chain is draft -> determination_complete -> collecting ->
// ready_to_file -> filed, with a side branch to exempt reachable from draft
// and determination_complete only. No backward edges exist; filed and exempt
// are terminal.
func NewReportMachine(current State, guards Guards) StateMachine {
	b := NewBuilder()

	b.Permit(StateDraft, TriggerCompleteDetermination, StateDeterminationComplete)
	b.Permit(StateDraft, TriggerDeclareExempt, StateExempt)

	b.Permit(StateDeterminationComplete, TriggerDeclareExempt, StateExempt)
	b.PermitIf(StateDeterminationComplete, TriggerIssueLinks, StateCollecting, guards.HasIssuedLink)

	b.PermitIf(StateCollecting, TriggerAllSubmitted, StateReadyToFile, guards.AllPartiesSubmitted)

	b.Permit(StateReadyToFile, TriggerFile, StateFiled)

	return b.Build(current)
}
