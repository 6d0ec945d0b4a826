package workflow

// Trigger represents an action that can cause a report state transition
type Trigger string

const (
	// TriggerCompleteDetermination applies a reportable determination result
	TriggerCompleteDetermination Trigger = "COMPLETE_DETERMINATION"

	// TriggerDeclareExempt applies an exempt determination result
	TriggerDeclareExempt Trigger = "DECLARE_EXEMPT"

	// TriggerIssueLinks creates the party set and their access links
	TriggerIssueLinks Trigger = "ISSUE_LINKS"

	// TriggerAllSubmitted promotes a report whose required parties have all submitted
	TriggerAllSubmitted Trigger = "ALL_SUBMITTED"

	// TriggerFile records the staff filing action
	TriggerFile Trigger = "FILE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
