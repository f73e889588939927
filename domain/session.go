package domain

import "time"

// Session is a two-person conversation. A session always has exactly two
// members while it exists; it is never reused after it ends.
type Session struct {
	ID           string
	CreatedAt    time.Time
	Participants []Participant
	Messages     []Message
}

// MemberIDs returns the identifiers of the two participants.
func (s Session) MemberIDs() []string {
	ids := make([]string, 0, len(s.Participants))
	for _, p := range s.Participants {
		ids = append(ids, p.ID)
	}
	return ids
}

// Includes reports whether the given participant belongs to the session.
func (s Session) Includes(participantID string) bool {
	for _, p := range s.Participants {
		if p.ID == participantID {
			return true
		}
	}
	return false
}
