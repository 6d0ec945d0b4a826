package entity

import "time"

// Party roles and kinds
const (
	PartyRoleBuyer  = "buyer"
	PartyRoleSeller = "seller"

	PartyKindIndividual = "individual"
	PartyKindEntity     = "entity"
	PartyKindTrust      = "trust"
)

// ReportParty statuses
const (
	PartyStatusPending              = "pending"
	PartyStatusSubmitted            = "submitted"
	PartyStatusCorrectionsRequested = "corrections_requested"
)

// ReportParty is one required participant in a report. Payload holds the
// accepted submission; PreviousPayload retains the superseded submission when
// corrections were requested, so both survive for audit.
type ReportParty struct {
	ID              int64
	ReportID        int64
	Role            string
	Kind            string
	DisplayName     string
	Email           string
	Status          string
	Certified       bool
	Payload         *string
	PreviousPayload *string
	SubmittedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PartyLink is a single-party, time-bounded credential granting write access
// to exactly one ReportParty. A superseded or finalized link rejects writes
// unless the party was reopened for corrections.
type PartyLink struct {
	ID          int64
	PartyID     int64
	Token       string
	ExpiresAt   time.Time
	SendCount   int
	Superseded  bool
	FinalizedAt *time.Time
	CreatedAt   time.Time
}

// IsExpired reports whether the link has passed its expiry
func (l *PartyLink) IsExpired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// IsWritable reports whether the link currently accepts a submission
func (l *PartyLink) IsWritable(now time.Time) bool {
	return !l.Superseded && !l.IsExpired(now) && l.FinalizedAt == nil
}
