package event

// Type identifies the type of domain event
type Type string

const (
	TypeDeterminationExempt Type = "determination.exempt"
	TypeLinksSent           Type = "links.sent"
	TypePartySubmitted      Type = "party.submitted"
	TypeReportReady         Type = "report.ready"
	TypeReportFiled         Type = "report.filed"
	TypeCorrectionRequested Type = "correction.requested"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeDeterminationExempt,
		TypeLinksSent,
		TypePartySubmitted,
		TypeReportReady,
		TypeReportFiled,
		TypeCorrectionRequested:
		return true
	default:
		return false
	}
}
