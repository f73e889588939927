package event

import (
	"time"

	"duo-chat/domain"

	"github.com/google/uuid"
)

// DomainEvent is anything the core emits towards connected subscribers.
// Recipients names the participants the event is addressed to; delivery and
// ordering are the transport's responsibility.
type DomainEvent interface {
	Recipients() []string
}

// MessageAppended is emitted after a message was persisted in a session.
type MessageAppended struct {
	ID        uuid.UUID
	SessionID string
	SenderID  string
	Content   string
	At        time.Time
	Members   []string
}

func (e MessageAppended) Recipients() []string {
	return e.Members
}

// SessionEnded is emitted when a session is torn down by rotate or
// terminate. Both former members receive it, including the one who did not
// ask for it.
type SessionEnded struct {
	SessionID string
	Members   []string
	At        time.Time
}

func (e SessionEnded) Recipients() []string {
	return e.Members
}

// ParticipantUpdated is emitted whenever a participant's (status, session)
// pair changes: paired by a match, or returned to the waiting pool.
type ParticipantUpdated struct {
	Participant domain.Participant
}

func (e ParticipantUpdated) Recipients() []string {
	return []string{e.Participant.ID}
}
