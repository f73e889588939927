package services

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"duo-chat/domain"
	"duo-chat/domain/event"
	"duo-chat/errors"
	"duo-chat/moderation"
	"duo-chat/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

const testMaxContentLength = 256

type captureNotifier struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (n *captureNotifier) Broadcast(_ context.Context, e event.DomainEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *captureNotifier) all() []event.DomainEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]event.DomainEvent(nil), n.events...)
}

type chatStack struct {
	participants repositories.ParticipantRepository
	sessions     repositories.SessionRepository
	messages     repositories.MessageRepository
	chat         *ChatService
	notifier     *captureNotifier
}

func newChatStack(t *testing.T) chatStack {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	participants := repositories.NewParticipantRepository(db, log)
	sessions := repositories.NewSessionRepository(db, log)
	messages := repositories.NewMessageRepository(db, log)

	words, err := moderation.DefaultWords()
	require.NoError(t, err)
	moderator, err := moderation.NewModerator(words, log)
	require.NoError(t, err)

	notifier := &captureNotifier{}
	chat := NewChatService(sessions, messages, &moderator, notifier, log, testMaxContentLength)

	return chatStack{
		participants: participants,
		sessions:     sessions,
		messages:     messages,
		chat:         chat,
		notifier:     notifier,
	}
}

func (s chatStack) pair(t *testing.T) (domain.Participant, domain.Participant, domain.Session) {
	t.Helper()
	alice, err := s.participants.Create("Alice")
	require.NoError(t, err)
	bob, err := s.participants.Create("Bob")
	require.NoError(t, err)
	session, err := s.sessions.CommitPair(alice.ID, bob.ID)
	require.NoError(t, err)
	return alice, bob, session
}

func Test_SendMessage_Stores_And_Notifies(t *testing.T) {
	req := require.New(t)
	stack := newChatStack(t)
	alice, bob, session := stack.pair(t)

	message, err := stack.chat.SendMessage(context.Background(), session.ID, alice.ID, "hello Bob")
	req.NoError(err)
	req.Equal("hello Bob", message.Content)
	req.Equal(alice.ID, message.SenderID)

	transcript, err := stack.messages.List(session.ID)
	req.NoError(err)
	req.Len(transcript, 1)
	req.Equal(message, transcript[0])

	// Both members are notified of the appended message
	events := stack.notifier.all()
	req.Len(events, 1)
	appended, ok := events[0].(event.MessageAppended)
	req.True(ok)
	req.ElementsMatch([]string{alice.ID, bob.ID}, appended.Recipients())
}

func Test_SendMessage_Rejected_Content_Is_Never_Stored(t *testing.T) {
	req := require.New(t)
	stack := newChatStack(t)
	alice, _, session := stack.pair(t)

	_, err := stack.chat.SendMessage(context.Background(), session.ID, alice.ID, "I will harass you")
	req.ErrorIs(err, errors.ErrContentRejected)

	transcript, err := stack.messages.List(session.ID)
	req.NoError(err)
	req.Empty(transcript)
	req.Empty(stack.notifier.all())
}

func Test_SendMessage_Rejects_Empty_And_Oversized_Content(t *testing.T) {
	req := require.New(t)
	stack := newChatStack(t)
	alice, _, session := stack.pair(t)

	_, err := stack.chat.SendMessage(context.Background(), session.ID, alice.ID, "")
	req.ErrorIs(err, errors.ErrContentRejected)

	oversized := make([]byte, testMaxContentLength+1)
	for i := range oversized {
		oversized[i] = 'a'
	}
	_, err = stack.chat.SendMessage(context.Background(), session.ID, alice.ID, string(oversized))
	req.ErrorIs(err, errors.ErrContentRejected)
}

func Test_SendMessage_Length_Limit_Counts_Characters_Not_Bytes(t *testing.T) {
	req := require.New(t)
	stack := newChatStack(t)
	alice, _, session := stack.pair(t)

	// A message of exactly the limit in multi-byte characters fits, even
	// though its byte length exceeds it
	atLimit := strings.Repeat("é", testMaxContentLength)
	message, err := stack.chat.SendMessage(context.Background(), session.ID, alice.ID, atLimit)
	req.NoError(err)
	req.Equal(atLimit, message.Content)

	_, err = stack.chat.SendMessage(context.Background(), session.ID, alice.ID, atLimit+"é")
	req.ErrorIs(err, errors.ErrContentRejected)
}

func Test_SendMessage_From_Outside_The_Session(t *testing.T) {
	req := require.New(t)
	stack := newChatStack(t)
	_, _, session := stack.pair(t)

	intruder, err := stack.participants.Create("Clara")
	req.NoError(err)

	_, err = stack.chat.SendMessage(context.Background(), session.ID, intruder.ID, "let me in")
	req.ErrorIs(err, errors.ErrNotInSession)
}

func Test_SendMessage_Unknown_Session(t *testing.T) {
	req := require.New(t)
	stack := newChatStack(t)

	_, err := stack.chat.SendMessage(context.Background(), "missing", "anyone", "hello")
	req.ErrorIs(err, errors.ErrNotFound)
}
