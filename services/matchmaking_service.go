//go:generate go run go.uber.org/mock/mockgen -source=matchmaking_service.go -destination=../mocks/mock_matchmaking_service.go -package=mocks
package services

import (
	"context"
	goerrors "errors"

	"duo-chat/contract"
	"duo-chat/domain"
	"duo-chat/errors"
	"duo-chat/matchmaking"
	"duo-chat/repositories"
)

type IMatchmakingService interface {
	FindMatch(ctx context.Context, participantID string) (*domain.Session, error)
	Rotate(ctx context.Context, participantID string) error
	Terminate(ctx context.Context, participantID string) error
	GetCurrentSession(ctx context.Context, participantID string) (*domain.Session, error)
}

// MatchmakingService is the public surface of the pairing engine. It stays
// thin: selection, commit and teardown live in the matchmaking package, this
// layer only adds session hydration and subscriber cleanup.
type MatchmakingService struct {
	matcher      *matchmaking.Matcher
	lifecycle    matchmaking.ILifecycle
	participants repositories.IParticipantRepository
	sessions     repositories.ISessionRepository
	messages     repositories.IMessageRepository
	registry     contract.IRegistry
}

func NewMatchmakingService(
	matcher *matchmaking.Matcher,
	lifecycle matchmaking.ILifecycle,
	participants repositories.IParticipantRepository,
	sessions repositories.ISessionRepository,
	messages repositories.IMessageRepository,
	registry contract.IRegistry,
) *MatchmakingService {
	return &MatchmakingService{
		matcher:      matcher,
		lifecycle:    lifecycle,
		participants: participants,
		sessions:     sessions,
		messages:     messages,
		registry:     registry,
	}
}

// FindMatch tries to pair the participant with someone from the waiting
// pool. A nil session means "no match this round"; callers are expected to
// poll again.
func (s *MatchmakingService) FindMatch(ctx context.Context, participantID string) (*domain.Session, error) {
	return s.matcher.FindMatch(ctx, participantID)
}

// Rotate ends the participant's current session and puts both members back
// in the waiting pool. Calling it without a session is a no-op.
func (s *MatchmakingService) Rotate(ctx context.Context, participantID string) error {
	return s.lifecycle.Rotate(ctx, participantID)
}

// Terminate removes the participant for good, together with their pairing
// history, and drops any event subscription they still hold.
func (s *MatchmakingService) Terminate(ctx context.Context, participantID string) error {
	if err := s.lifecycle.Terminate(ctx, participantID); err != nil {
		return err
	}
	s.registry.Unsubscribe(participantID)
	return nil
}

// GetCurrentSession returns the participant's session with members and the
// full transcript hydrated, or nil when the participant is not in one.
func (s *MatchmakingService) GetCurrentSession(_ context.Context, participantID string) (*domain.Session, error) {
	participant, err := s.participants.Get(participantID)
	if goerrors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if participant.SessionID == nil {
		return nil, nil
	}

	session, err := s.sessions.Get(*participant.SessionID)
	if goerrors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	messages, err := s.messages.List(session.ID)
	if err != nil {
		return nil, err
	}
	session.Messages = messages
	return &session, nil
}
