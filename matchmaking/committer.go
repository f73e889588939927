//go:generate go run go.uber.org/mock/mockgen -source=committer.go -destination=../mocks/mock_committer.go -package=mocks
package matchmaking

import (
	"context"
	"log/slog"

	"duo-chat/contract"
	"duo-chat/domain"
	"duo-chat/domain/event"
	"duo-chat/repositories"

	"github.com/samber/lo"
)

type ICommitter interface {
	Commit(ctx context.Context, requesterID, partnerID string) (domain.Session, error)
}

// Committer finalizes a pairing the matcher selected. The atomic
// check-and-transition itself lives in the session repository; the committer
// adds the two follow-ups of a successful claim: the pairing-history record
// and the participant-updated notifications.
type Committer struct {
	sessions repositories.ISessionRepository
	history  repositories.IPairHistoryRepository
	notifier contract.INotifier
	log      *slog.Logger
}

func NewCommitter(
	sessions repositories.ISessionRepository,
	history repositories.IPairHistoryRepository,
	notifier contract.INotifier,
	log *slog.Logger,
) *Committer {
	return &Committer{sessions: sessions, history: history, notifier: notifier, log: log}
}

// Commit claims both participants and creates their session. On success the
// pairing is recorded in history; a failure to record is logged but does not
// undo the session, the write is idempotent and a later pairing of the same
// two people will restore it.
func (c *Committer) Commit(ctx context.Context, requesterID, partnerID string) (domain.Session, error) {
	session, err := c.sessions.CommitPair(requesterID, partnerID)
	if err != nil {
		return domain.Session{}, err
	}

	if err := c.history.Record(requesterID, partnerID); err != nil {
		c.log.Error("failed to record pairing history",
			"requester_id", requesterID,
			"partner_id", partnerID,
			"error", err)
	}

	lo.ForEach(session.Participants, func(p domain.Participant, _ int) {
		c.notifier.Broadcast(ctx, event.ParticipantUpdated{Participant: p})
	})
	return session, nil
}
