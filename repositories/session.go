//go:generate go run go.uber.org/mock/mockgen -source=session.go -destination=../mocks/mock_session_repository.go -package=mocks
package repositories

import (
	goerrors "errors"
	"log/slog"
	"time"

	"duo-chat/domain"
	"duo-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

type ISessionRepository interface {
	CommitPair(requesterID, partnerID string) (domain.Session, error)
	Get(sessionID string) (domain.Session, error)
	Release(participantID string) (string, []domain.Participant, error)
}

// SessionRepository owns the session records and, more importantly, the two
// transactions that move participants across the waiting/paired boundary.
// Badger transactions are serializable: every participant key read here is
// tracked, so of two concurrent commits racing on the same participant at
// most one can succeed; the loser aborts with badger.ErrConflict instead of
// observing a half-applied state. That conflict detection is the single
// synchronization point of the whole engine, there are no in-process locks
// around matching.
type SessionRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewSessionRepository(db *badger.DB, log *slog.Logger) SessionRepository {
	return SessionRepository{db: db, log: log}
}

type sessionRecord struct {
	ID        string   `cbor:"id"`
	Members   []string `cbor:"members"`
	CreatedAt int64    `cbor:"created_at"`
}

func sessionKey(id string) []byte {
	return []byte("session:" + id)
}

// CommitPair atomically re-verifies that both participants are still in the
// waiting pool and, only then, creates the session and flips both of them to
// paired. The verification and the writes share one transaction, so there is
// no window between check and transition.
//
// Failure modes map onto the retry protocol of the matcher:
//   - ErrIneligiblePartner: pick another candidate and try again.
//   - ErrIneligibleRequester: the requester itself was claimed or departed,
//     the whole matching attempt must stop.
func (r SessionRepository) CommitPair(requesterID, partnerID string) (domain.Session, error) {
	session := domain.Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		requester, err := verifyWaiting(txn, requesterID, errors.ErrIneligibleRequester)
		if err != nil {
			return err
		}
		partner, err := verifyWaiting(txn, partnerID, errors.ErrIneligiblePartner)
		if err != nil {
			return err
		}

		record := sessionRecord{
			ID:        session.ID,
			Members:   []string{requesterID, partnerID},
			CreatedAt: session.CreatedAt.UnixNano(),
		}
		data, err := cbor.Marshal(record)
		if err != nil {
			return err
		}
		if err := txn.Set(sessionKey(session.ID), data); err != nil {
			return err
		}

		session.Participants = session.Participants[:0]
		for _, p := range []participantRecord{requester, partner} {
			p.Status = string(domain.StatusPaired)
			p.SessionID = &session.ID
			if err := writeParticipant(txn, p); err != nil {
				return err
			}
			if err := txn.Delete(waitingKey(time.Unix(0, p.JoinedAt), p.ID)); err != nil {
				return err
			}
			session.Participants = append(session.Participants, toParticipant(p))
		}
		return nil
	})

	// A serialization conflict means a concurrent commit claimed one of the
	// two participants between our read and our write. Reporting it as an
	// ineligible partner sends the matcher back for another candidate; if it
	// was actually the requester who got claimed, the precondition check of
	// the next attempt will surface it.
	if goerrors.Is(err, badger.ErrConflict) {
		return domain.Session{}, errors.ErrIneligiblePartner
	}
	if err != nil {
		return domain.Session{}, err
	}

	r.log.Info("session committed",
		"session_id", session.ID,
		"requester_id", requesterID,
		"partner_id", partnerID)
	return session, nil
}

// Get returns the session with both member records hydrated, read in a
// single consistent snapshot.
func (r SessionRepository) Get(sessionID string) (domain.Session, error) {
	var session domain.Session
	err := r.db.View(func(txn *badger.Txn) error {
		var record sessionRecord
		if err := readRecord(txn, sessionKey(sessionID), &record); err != nil {
			return err
		}
		session = domain.Session{
			ID:        record.ID,
			CreatedAt: time.Unix(0, record.CreatedAt).UTC(),
		}
		for _, memberID := range record.Members {
			var member participantRecord
			if err := readRecord(txn, participantKey(memberID), &member); err != nil {
				return err
			}
			session.Participants = append(session.Participants, toParticipant(member))
		}
		return nil
	})
	if err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

// Release tears down the session the participant is in: the session record
// and its whole transcript are deleted and every member goes back to the
// waiting pool, all in one transaction. A participant without a session (or
// one that no longer exists) is a no-op, which is what makes rotate and
// terminate idempotent.
//
// It returns the ended session's id and the members that were put back to
// waiting, so the caller can notify them.
func (r SessionRepository) Release(participantID string) (string, []domain.Participant, error) {
	var sessionID string
	var released []domain.Participant

	err := r.db.Update(func(txn *badger.Txn) error {
		var caller participantRecord
		if err := readRecord(txn, participantKey(participantID), &caller); err != nil {
			if goerrors.Is(err, errors.ErrNotFound) {
				return nil
			}
			return err
		}
		if caller.SessionID == nil {
			return nil
		}
		sessionID = *caller.SessionID

		members := []string{participantID}
		var record sessionRecord
		switch err := readRecord(txn, sessionKey(sessionID), &record); {
		case goerrors.Is(err, errors.ErrNotFound):
			// Dangling reference, free the caller anyway.
		case err != nil:
			return err
		default:
			members = record.Members
			if err := txn.Delete(sessionKey(sessionID)); err != nil {
				return err
			}
		}

		if err := deleteTranscript(txn, sessionID); err != nil {
			return err
		}

		for _, memberID := range members {
			var member participantRecord
			if err := readRecord(txn, participantKey(memberID), &member); err != nil {
				if goerrors.Is(err, errors.ErrNotFound) {
					continue
				}
				return err
			}
			member.Status = string(domain.StatusWaiting)
			member.SessionID = nil
			if err := writeParticipant(txn, member); err != nil {
				return err
			}
			// Re-entering the pool keeps the original arrival time, so a
			// rotated participant does not lose its seniority.
			if err := txn.Set(waitingKey(time.Unix(0, member.JoinedAt), member.ID), []byte(member.ID)); err != nil {
				return err
			}
			released = append(released, toParticipant(member))
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	if sessionID != "" {
		r.log.Info("session released", "session_id", sessionID, "participant_id", participantID)
	}
	return sessionID, released, nil
}

func verifyWaiting(txn *badger.Txn, participantID string, ineligible error) (participantRecord, error) {
	var record participantRecord
	if err := readRecord(txn, participantKey(participantID), &record); err != nil {
		if goerrors.Is(err, errors.ErrNotFound) {
			return participantRecord{}, ineligible
		}
		return participantRecord{}, err
	}
	if record.Status != string(domain.StatusWaiting) || record.SessionID != nil {
		return participantRecord{}, ineligible
	}
	return record, nil
}

func writeParticipant(txn *badger.Txn, record participantRecord) error {
	data, err := cbor.Marshal(record)
	if err != nil {
		return err
	}
	return txn.Set(participantKey(record.ID), data)
}

func deleteTranscript(txn *badger.Txn, sessionID string) error {
	prefix := messagePrefix(sessionID)
	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
