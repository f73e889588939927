package server

import (
	"time"

	"duo-chat/domain"
	"duo-chat/domain/event"

	"github.com/samber/lo"
)

type participantResponse struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Status      string    `json:"status"`
	SessionID   *string   `json:"session_id"`
	JoinedAt    time.Time `json:"joined_at"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionResponse struct {
	ID           string                `json:"id"`
	CreatedAt    time.Time             `json:"created_at"`
	Participants []participantResponse `json:"participants"`
	Messages     []messageResponse     `json:"messages"`
}

func toParticipantResponse(p domain.Participant) participantResponse {
	return participantResponse{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Status:      string(p.Status),
		SessionID:   p.SessionID,
		JoinedAt:    p.JoinedAt,
	}
}

func toMessageResponse(m domain.Message) messageResponse {
	return messageResponse{
		ID:        m.ID.String(),
		SessionID: m.SessionID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

func toSessionResponse(s domain.Session) sessionResponse {
	return sessionResponse{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Participants: lo.Map(s.Participants, func(p domain.Participant, _ int) participantResponse {
			return toParticipantResponse(p)
		}),
		Messages: lo.Map(s.Messages, func(m domain.Message, _ int) messageResponse {
			return toMessageResponse(m)
		}),
	}
}

// toEventPayload flattens a domain event into its SSE name and JSON body.
func toEventPayload(e event.DomainEvent) (string, any) {
	switch evt := e.(type) {
	case event.MessageAppended:
		return "message-appended", messageResponse{
			ID:        evt.ID.String(),
			SessionID: evt.SessionID,
			SenderID:  evt.SenderID,
			Content:   evt.Content,
			CreatedAt: evt.At,
		}
	case event.SessionEnded:
		return "session-ended", map[string]any{
			"session_id": evt.SessionID,
			"members":    evt.Members,
			"at":         evt.At,
		}
	case event.ParticipantUpdated:
		return "participant-updated", toParticipantResponse(evt.Participant)
	default:
		return "", nil
	}
}
