//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	goerrors "errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"duo-chat/contract"
	"duo-chat/domain"
	"duo-chat/domain/event"
	"duo-chat/errors"
	"duo-chat/moderation"
	"duo-chat/repositories"

	"github.com/google/uuid"
)

type IChatService interface {
	SendMessage(ctx context.Context, sessionID, senderID, content string) (domain.Message, error)
}

// ChatService appends messages to active sessions. Every message passes the
// moderation gate first; rejected content is reported to the sender and
// never stored.
type ChatService struct {
	sessions         repositories.ISessionRepository
	messages         repositories.IMessageRepository
	moderator        *moderation.Moderator
	notifier         contract.INotifier
	log              *slog.Logger
	maxContentLength int
}

func NewChatService(
	sessions repositories.ISessionRepository,
	messages repositories.IMessageRepository,
	moderator *moderation.Moderator,
	notifier contract.INotifier,
	log *slog.Logger,
	maxContentLength int,
) *ChatService {
	return &ChatService{
		sessions:         sessions,
		messages:         messages,
		moderator:        moderator,
		notifier:         notifier,
		log:              log,
		maxContentLength: maxContentLength,
	}
}

func (s *ChatService) SendMessage(ctx context.Context, sessionID, senderID, content string) (domain.Message, error) {
	session, err := s.sessions.Get(sessionID)
	if goerrors.Is(err, errors.ErrNotFound) {
		return domain.Message{}, errors.ErrNotFound
	}
	if err != nil {
		return domain.Message{}, err
	}
	if !session.Includes(senderID) {
		return domain.Message{}, errors.ErrNotInSession
	}

	// maxContentLength counts characters, not bytes.
	if len(content) == 0 || utf8.RuneCountInString(content) > s.maxContentLength {
		return domain.Message{}, errors.ErrContentRejected
	}
	if !s.moderator.Allowed(content) {
		s.log.Info("message rejected", "session_id", sessionID, "sender_id", senderID)
		return domain.Message{}, errors.ErrContentRejected
	}

	message := domain.Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.messages.Store(message); err != nil {
		return domain.Message{}, err
	}

	s.notifier.Broadcast(ctx, event.MessageAppended{
		ID:        message.ID,
		SessionID: sessionID,
		SenderID:  senderID,
		Content:   content,
		At:        message.CreatedAt,
		Members:   session.MemberIDs(),
	})
	return message, nil
}
