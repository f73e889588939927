//go:generate go run go.uber.org/mock/mockgen -source=participant_service.go -destination=../mocks/mock_participant_service.go -package=mocks
package services

import (
	"context"
	goerrors "errors"
	"fmt"

	"duo-chat/domain"
	"duo-chat/errors"
	"duo-chat/repositories"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type IParticipantService interface {
	Register(ctx context.Context, displayName string) (domain.Participant, error)
	Get(ctx context.Context, participantID string) (*domain.Participant, error)
}

// ParticipantService is the anonymous directory: a participant is nothing
// but a unique display name and a place in the waiting pool.
type ParticipantService struct {
	participants repositories.IParticipantRepository
}

func NewParticipantService(participants repositories.IParticipantRepository) *ParticipantService {
	return &ParticipantService{participants: participants}
}

type registerRequest struct {
	DisplayName string `validate:"required,min=1,max=32,printascii"`
}

// Register creates a participant in waiting state. Display names are unique
// across the whole system.
func (s *ParticipantService) Register(_ context.Context, displayName string) (domain.Participant, error) {
	if err := validate.Struct(registerRequest{DisplayName: displayName}); err != nil {
		return domain.Participant{}, fmt.Errorf("%w: %v", errors.ErrInvalidDisplayName, err)
	}
	return s.participants.Create(displayName)
}

// Get resolves a participant, returning nil when unknown.
func (s *ParticipantService) Get(_ context.Context, participantID string) (*domain.Participant, error) {
	participant, err := s.participants.Get(participantID)
	if goerrors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &participant, nil
}
