//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"duo-chat/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	Store(message domain.Message) error
	List(sessionID string) ([]domain.Message, error)
}

// MessageRepository persists session messages in BadgerDB.
// The key is formatted as "msg:{session_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using the UUID as a collision disconnector if two
//     messages arrive at the same nanosecond.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

type messageRecord struct {
	ID        string `cbor:"id"`
	SessionID string `cbor:"session_id"`
	SenderID  string `cbor:"sender_id"`
	Content   string `cbor:"content"`
	CreatedAt int64  `cbor:"created_at"`
}

func messagePrefix(sessionID string) []byte {
	return []byte("msg:" + sessionID + ":")
}

func messageKey(message domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s",
		message.SessionID,
		message.CreatedAt.UnixNano(),
		message.ID,
	))
}

func (m MessageRepository) Store(message domain.Message) error {
	data, err := cbor.Marshal(fromMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), data)
	})
}

// List returns the full transcript of a session in chronological order.
// Thanks to the padded timestamp in the key a forward prefix scan is already
// sorted by time.
func (m MessageRepository) List(sessionID string) ([]domain.Message, error) {
	var byteMessages [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(sessionID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				byteMessages = append(byteMessages, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var messages []domain.Message
	for _, b := range byteMessages {
		var record messageRecord
		if err = cbor.Unmarshal(b, &record); err != nil {
			return nil, err
		}
		message, err := toMessage(record)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func fromMessage(message domain.Message) messageRecord {
	return messageRecord{
		ID:        message.ID.String(),
		SessionID: message.SessionID,
		SenderID:  message.SenderID,
		Content:   message.Content,
		CreatedAt: message.CreatedAt.UnixNano(),
	}
}

func toMessage(record messageRecord) (domain.Message, error) {
	parsedID, err := uuid.Parse(record.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        parsedID,
		SessionID: record.SessionID,
		SenderID:  record.SenderID,
		Content:   record.Content,
		CreatedAt: time.Unix(0, record.CreatedAt).UTC(),
	}, nil
}
