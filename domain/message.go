package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is one line of conversation inside a session. Messages only exist
// for content that passed moderation; they are destroyed with their session.
type Message struct {
	ID        uuid.UUID
	SessionID string
	SenderID  string
	Content   string
	CreatedAt time.Time
}
