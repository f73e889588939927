package domain

import "time"

type Status string

const (
	// StatusWaiting means the participant sits in the waiting pool with no
	// assigned session.
	StatusWaiting Status = "waiting"
	// StatusPaired means the participant is a member of exactly one session.
	StatusPaired Status = "paired"
)

// Participant is an anonymous member of the system, identified only by a
// unique display name. The (Status, SessionID) pair is the single
// safety-critical piece of shared state: SessionID must be nil iff
// Status is StatusWaiting.
type Participant struct {
	ID          string
	DisplayName string
	Status      Status
	SessionID   *string
	JoinedAt    time.Time
}

// Waiting reports whether the participant is eligible for matching.
func (p Participant) Waiting() bool {
	return p.Status == StatusWaiting && p.SessionID == nil
}
