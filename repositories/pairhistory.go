//go:generate go run go.uber.org/mock/mockgen -source=pairhistory.go -destination=../mocks/mock_pair_history_repository.go -package=mocks
package repositories

import (
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

type IPairHistoryRepository interface {
	Record(participantA, participantB string) error
	Partners(participantID string) ([]string, error)
	PairCount(participantID string) (int, error)
	DeleteFor(participantID string) error
}

// PairHistoryRepository is the durable record of which pairs have already
// met. One logical record exists per unordered pair:
//
//	pair:{lo}:{hi}       canonical record (ids in lexical order)
//	pairidx:{a}:{b}      mirror index, written in both directions
//
// The mirror keys make a participant's partner set a single prefix scan
// instead of a full history walk.
type PairHistoryRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewPairHistoryRepository(db *badger.DB, log *slog.Logger) PairHistoryRepository {
	return PairHistoryRepository{db: db, log: log}
}

type pairRecord struct {
	ParticipantA string `cbor:"participant_a"`
	ParticipantB string `cbor:"participant_b"`
	CreatedAt    int64  `cbor:"created_at"`
}

func pairKey(a, b string) []byte {
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	return []byte("pair:" + lo + ":" + hi)
}

func pairIndexKey(owner, partner string) []byte {
	return []byte("pairidx:" + owner + ":" + partner)
}

// Record stores the pairing of two participants. Re-recording an existing
// pair is a success, not an error: the canonical key makes the write
// naturally idempotent.
func (r PairHistoryRepository) Record(participantA, participantB string) error {
	record := pairRecord{
		ParticipantA: participantA,
		ParticipantB: participantB,
		CreatedAt:    time.Now().UTC().UnixNano(),
	}
	data, err := cbor.Marshal(record)
	if err != nil {
		return err
	}

	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(pairKey(participantA, participantB)); err == nil {
			// Already recorded, keep the original timestamp.
			return nil
		}
		if err := txn.Set(pairKey(participantA, participantB), data); err != nil {
			return err
		}
		if err := txn.Set(pairIndexKey(participantA, participantB), nil); err != nil {
			return err
		}
		return txn.Set(pairIndexKey(participantB, participantA), nil)
	})
}

// Partners returns every participant the given one has ever been paired
// with. A participant with no history gets an empty set, not an error.
func (r PairHistoryRepository) Partners(participantID string) ([]string, error) {
	var partners []string
	prefix := []byte("pairidx:" + participantID + ":")

	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			partners = append(partners, key[len(prefix):])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return partners, nil
}

// PairCount returns the number of distinct historical partners, the metric
// the least-paired fallback sorts on.
func (r PairHistoryRepository) PairCount(participantID string) (int, error) {
	partners, err := r.Partners(participantID)
	if err != nil {
		return 0, err
	}
	return len(partners), nil
}

// DeleteFor erases every record referencing the participant, in both the
// canonical and the mirror key families. Called when a participant
// permanently departs so history never outlives the people it describes.
func (r PairHistoryRepository) DeleteFor(participantID string) error {
	partners, err := r.Partners(participantID)
	if err != nil {
		return err
	}

	return r.db.Update(func(txn *badger.Txn) error {
		for _, partner := range partners {
			if err := txn.Delete(pairKey(participantID, partner)); err != nil {
				return err
			}
			if err := txn.Delete(pairIndexKey(participantID, partner)); err != nil {
				return err
			}
			if err := txn.Delete(pairIndexKey(partner, participantID)); err != nil {
				return err
			}
		}
		return nil
	})
}
