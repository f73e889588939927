package matchmaking

import (
	"context"
	"testing"
	"time"

	"duo-chat/domain"
	"duo-chat/domain/event"
	"duo-chat/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_Rotate_Returns_Both_Members_To_Waiting(t *testing.T) {
	req := require.New(t)
	e := newEngine(t)

	// Given X and Y share a session with a transcript
	people := e.register(t, "X", "Y")
	x, y := people[0], people[1]
	session, err := e.matcher.FindMatch(context.Background(), x.ID)
	req.NoError(err)
	req.NotNil(session)
	req.NoError(e.messages.Store(domain.Message{
		ID: uuid.New(), SessionID: session.ID, SenderID: x.ID,
		Content: "let's move on", CreatedAt: time.Now().UTC(),
	}))

	// When X rotates
	req.NoError(e.lifecycle.Rotate(context.Background(), x.ID))

	// Then both are waiting again and the session no longer exists
	for _, id := range []string{x.ID, y.ID} {
		fetched, err := e.participants.Get(id)
		req.NoError(err)
		req.True(fetched.Waiting())
	}
	_, err = e.sessions.Get(session.ID)
	req.ErrorIs(err, errors.ErrNotFound)
	transcript, err := e.messages.List(session.ID)
	req.NoError(err)
	req.Empty(transcript)

	// And the partner is told, not just the caller
	var ended *event.SessionEnded
	for _, evt := range e.notifier.all() {
		if se, ok := evt.(event.SessionEnded); ok {
			ended = &se
		}
	}
	req.NotNil(ended)
	req.Equal(session.ID, ended.SessionID)
	req.ElementsMatch([]string{x.ID, y.ID}, ended.Members)
}

func Test_Rotate_Without_Session_Is_Noop(t *testing.T) {
	req := require.New(t)
	e := newEngine(t)

	people := e.register(t, "X")
	req.NoError(e.lifecycle.Rotate(context.Background(), people[0].ID))
	req.NoError(e.lifecycle.Rotate(context.Background(), "ghost"))
	req.Empty(e.notifier.all())
}

func Test_Terminate_Removes_Participant_And_History(t *testing.T) {
	req := require.New(t)
	e := newEngine(t)

	// Given X in a session with Y and some history with Z
	people := e.register(t, "X", "Y", "Z")
	x, y, z := people[0], people[1], people[2]
	req.NoError(e.history.Record(x.ID, z.ID))
	session, err := e.matcher.FindMatch(context.Background(), x.ID)
	req.NoError(err)
	req.NotNil(session)

	// When X leaves for good
	req.NoError(e.lifecycle.Terminate(context.Background(), x.ID))

	// Then the partner is released back to the pool
	fetched, err := e.participants.Get(y.ID)
	req.NoError(err)
	req.True(fetched.Waiting())

	// And X is gone, along with every record that mentioned X
	_, err = e.participants.Get(x.ID)
	req.ErrorIs(err, errors.ErrNotFound)
	partners, err := e.history.Partners(z.ID)
	req.NoError(err)
	req.Empty(partners)
	partners, err = e.history.Partners(y.ID)
	req.NoError(err)
	req.Empty(partners)
}

func Test_Terminate_Twice_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	e := newEngine(t)

	people := e.register(t, "X", "Y")
	x := people[0]
	session, err := e.matcher.FindMatch(context.Background(), x.ID)
	req.NoError(err)
	req.NotNil(session)

	req.NoError(e.lifecycle.Terminate(context.Background(), x.ID))
	req.NoError(e.lifecycle.Terminate(context.Background(), x.ID))

	_, err = e.participants.Get(x.ID)
	req.ErrorIs(err, errors.ErrNotFound)
}
