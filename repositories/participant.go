//go:generate go run go.uber.org/mock/mockgen -source=participant.go -destination=../mocks/mock_participant_repository.go -package=mocks
package repositories

import (
	goerrors "errors"
	"fmt"
	"log/slog"
	"time"

	"duo-chat/domain"
	"duo-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

type IParticipantRepository interface {
	Create(displayName string) (domain.Participant, error)
	Get(id string) (domain.Participant, error)
	ListWaiting(excludeID string) ([]domain.Participant, error)
	Delete(id string) error
}

// ParticipantRepository persists participants in BadgerDB under three key
// families:
//
//	participant:{id}              the record itself
//	name:{display_name}           uniqueness guard, value is the owner's id
//	waiting:{joined_padded}:{id}  waiting-pool index, see waitingKey
//
// The waiting index is the read view the matcher scans. It is written and
// removed inside the same transactions that flip a participant's status, so
// it can never disagree with the records it points at.
type ParticipantRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewParticipantRepository(db *badger.DB, log *slog.Logger) ParticipantRepository {
	return ParticipantRepository{db: db, log: log}
}

type participantRecord struct {
	ID          string  `cbor:"id"`
	DisplayName string  `cbor:"display_name"`
	Status      string  `cbor:"status"`
	SessionID   *string `cbor:"session_id"`
	JoinedAt    int64   `cbor:"joined_at"`
}

func participantKey(id string) []byte {
	return []byte("participant:" + id)
}

func nameKey(displayName string) []byte {
	return []byte("name:" + displayName)
}

// waitingKey orders the waiting pool by arrival. The 19-digit zero padding
// keeps lexicographical order equal to chronological order; the id suffix
// disambiguates two arrivals in the same nanosecond.
func waitingKey(joinedAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("waiting:%019d:%s", joinedAt.UnixNano(), id))
}

// Create registers a new participant in waiting state. Display names are
// unique: the reservation of the name key and the record write share one
// transaction, so two concurrent registrations of the same name cannot both
// succeed.
func (r ParticipantRepository) Create(displayName string) (domain.Participant, error) {
	participant := domain.Participant{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		Status:      domain.StatusWaiting,
		JoinedAt:    time.Now().UTC(),
	}

	data, err := cbor.Marshal(fromParticipant(participant))
	if err != nil {
		return domain.Participant{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(nameKey(displayName)); err == nil {
			return errors.ErrNameTaken
		}
		if err := txn.Set(nameKey(displayName), []byte(participant.ID)); err != nil {
			return err
		}
		if err := txn.Set(participantKey(participant.ID), data); err != nil {
			return err
		}
		return txn.Set(waitingKey(participant.JoinedAt, participant.ID), []byte(participant.ID))
	})
	if err != nil {
		return domain.Participant{}, err
	}

	r.log.Info("participant registered", "participant_id", participant.ID, "display_name", displayName)
	return participant, nil
}

func (r ParticipantRepository) Get(id string) (domain.Participant, error) {
	var record participantRecord
	err := r.db.View(func(txn *badger.Txn) error {
		return readRecord(txn, participantKey(id), &record)
	})
	if err != nil {
		return domain.Participant{}, err
	}
	return toParticipant(record), nil
}

// ListWaiting scans the waiting index in key order, which is arrival order
// (oldest first). Records are resolved inside the same read transaction so
// the pool is a consistent snapshot.
func (r ParticipantRepository) ListWaiting(excludeID string) ([]domain.Participant, error) {
	var pool []domain.Participant
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("waiting:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var id string
			err := it.Item().Value(func(val []byte) error {
				id = string(val)
				return nil
			})
			if err != nil {
				return err
			}
			if id == excludeID {
				continue
			}

			var record participantRecord
			if err := readRecord(txn, participantKey(id), &record); err != nil {
				return err
			}
			pool = append(pool, toParticipant(record))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// Delete removes the participant together with its name reservation and any
// waiting-index entry. A missing participant is a no-op.
func (r ParticipantRepository) Delete(id string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		var record participantRecord
		if err := readRecord(txn, participantKey(id), &record); err != nil {
			if goerrors.Is(err, errors.ErrNotFound) {
				return nil
			}
			return err
		}
		if err := txn.Delete(participantKey(id)); err != nil {
			return err
		}
		if err := txn.Delete(nameKey(record.DisplayName)); err != nil {
			return err
		}
		return txn.Delete(waitingKey(time.Unix(0, record.JoinedAt), id))
	})
}

// readRecord fetches and decodes one CBOR record, mapping a missing key to
// the domain-level ErrNotFound.
func readRecord(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if goerrors.Is(err, badger.ErrKeyNotFound) {
		return errors.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return cbor.Unmarshal(val, out)
	})
}

func fromParticipant(p domain.Participant) participantRecord {
	return participantRecord{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Status:      string(p.Status),
		SessionID:   p.SessionID,
		JoinedAt:    p.JoinedAt.UnixNano(),
	}
}

func toParticipant(record participantRecord) domain.Participant {
	return domain.Participant{
		ID:          record.ID,
		DisplayName: record.DisplayName,
		Status:      domain.Status(record.Status),
		SessionID:   record.SessionID,
		JoinedAt:    time.Unix(0, record.JoinedAt).UTC(),
	}
}
