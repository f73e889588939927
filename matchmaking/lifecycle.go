//go:generate go run go.uber.org/mock/mockgen -source=lifecycle.go -destination=../mocks/mock_lifecycle.go -package=mocks
package matchmaking

import (
	"context"
	"log/slog"
	"time"

	"duo-chat/contract"
	"duo-chat/domain/event"
	"duo-chat/repositories"
)

type ILifecycle interface {
	Rotate(ctx context.Context, participantID string) error
	Terminate(ctx context.Context, participantID string) error
}

// Lifecycle tears sessions down. A session only ever moves from active to
// ended, it is never reused; both operations are idempotent no-ops for
// participants without a session.
type Lifecycle struct {
	participants repositories.IParticipantRepository
	sessions     repositories.ISessionRepository
	history      repositories.IPairHistoryRepository
	notifier     contract.INotifier
	log          *slog.Logger
}

func NewLifecycle(
	participants repositories.IParticipantRepository,
	sessions repositories.ISessionRepository,
	history repositories.IPairHistoryRepository,
	notifier contract.INotifier,
	log *slog.Logger,
) *Lifecycle {
	return &Lifecycle{
		participants: participants,
		sessions:     sessions,
		history:      history,
		notifier:     notifier,
		log:          log,
	}
}

// Rotate ends the caller's current session. The partner is released too and
// observes it as a session-ended event; both members return to the waiting
// pool and the transcript is gone.
func (l *Lifecycle) Rotate(ctx context.Context, participantID string) error {
	sessionID, released, err := l.sessions.Release(participantID)
	if err != nil {
		return err
	}
	if sessionID == "" {
		return nil
	}

	memberIDs := make([]string, 0, len(released))
	for _, p := range released {
		memberIDs = append(memberIDs, p.ID)
	}
	l.notifier.Broadcast(ctx, event.SessionEnded{
		SessionID: sessionID,
		Members:   memberIDs,
		At:        time.Now().UTC(),
	})
	for _, p := range released {
		l.notifier.Broadcast(ctx, event.ParticipantUpdated{Participant: p})
	}
	return nil
}

// Terminate permanently removes a participant: the current session is
// released first so the partner is freed cleanly, then the participant's
// pairing history and the participant itself are erased. History never
// references departed participants.
func (l *Lifecycle) Terminate(ctx context.Context, participantID string) error {
	if err := l.Rotate(ctx, participantID); err != nil {
		return err
	}
	if err := l.history.DeleteFor(participantID); err != nil {
		return err
	}
	if err := l.participants.Delete(participantID); err != nil {
		return err
	}
	l.log.Info("participant departed", "participant_id", participantID)
	return nil
}
