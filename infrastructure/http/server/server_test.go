package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"duo-chat/matchmaking"
	"duo-chat/moderation"
	"duo-chat/repositories"
	"duo-chat/runtime"
	"duo-chat/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	participants := repositories.NewParticipantRepository(db, log)
	sessions := repositories.NewSessionRepository(db, log)
	messages := repositories.NewMessageRepository(db, log)
	history := repositories.NewPairHistoryRepository(db, log)

	words, err := moderation.DefaultWords()
	require.NoError(t, err)
	moderator, err := moderation.NewModerator(words, log)
	require.NoError(t, err)

	registry := runtime.NewRegistry(log, time.Second)
	committer := matchmaking.NewCommitter(sessions, history, registry, log)
	matcher := matchmaking.NewMatcher(participants, history, committer, log)
	lifecycle := matchmaking.NewLifecycle(participants, sessions, history, registry, log)

	srv := NewServer(
		log,
		services.NewParticipantService(participants),
		services.NewMatchmakingService(matcher, lifecycle, participants, sessions, messages, registry),
		services.NewChatService(sessions, messages, &moderator, registry, log, 256),
		registry,
		16,
	)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(encoded))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func registerParticipant(t *testing.T, ts *httptest.Server, displayName string) participantResponse {
	t.Helper()
	resp := postJSON(t, ts.URL+"/participants", map[string]string{"display_name": displayName})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[participantResponse](t, resp)
}

func Test_Health(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	req.NoError(err)
	req.Equal(http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	req.Equal("healthy", body["status"])
}

func Test_Register_And_Fetch_Participant(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	alice := registerParticipant(t, ts, "Alice")
	req.NotEmpty(alice.ID)
	req.Equal("Alice", alice.DisplayName)
	req.Equal("waiting", alice.Status)
	req.Nil(alice.SessionID)

	resp, err := http.Get(ts.URL + "/participants/" + alice.ID)
	req.NoError(err)
	req.Equal(http.StatusOK, resp.StatusCode)
	fetched := decode[participantResponse](t, resp)
	req.Equal(alice.ID, fetched.ID)
}

func Test_Register_Duplicate_Name_Conflicts(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	registerParticipant(t, ts, "Alice")
	resp := postJSON(t, ts.URL+"/participants", map[string]string{"display_name": "Alice"})
	defer resp.Body.Close()
	req.Equal(http.StatusConflict, resp.StatusCode)
}

func Test_Register_Blank_Name_Is_Bad_Request(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/participants", map[string]string{"display_name": ""})
	defer resp.Body.Close()
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}

func Test_FindMatch_Alone_Returns_No_Content(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	alice := registerParticipant(t, ts, "Alice")
	resp := postJSON(t, ts.URL+"/participants/"+alice.ID+"/match", nil)
	defer resp.Body.Close()
	req.Equal(http.StatusNoContent, resp.StatusCode)
}

func Test_FindMatch_Pairs_Two_Waiting_Participants(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	alice := registerParticipant(t, ts, "Alice")
	bob := registerParticipant(t, ts, "Bob")

	resp := postJSON(t, ts.URL+"/participants/"+alice.ID+"/match", nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	session := decode[sessionResponse](t, resp)
	req.Len(session.Participants, 2)

	// The session is visible from both sides
	for _, memberID := range []string{alice.ID, bob.ID} {
		resp, err := http.Get(ts.URL + "/participants/" + memberID + "/session")
		req.NoError(err)
		req.Equal(http.StatusOK, resp.StatusCode)
		current := decode[sessionResponse](t, resp)
		req.Equal(session.ID, current.ID)
	}
}

func Test_SendMessage_Round_Trip(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	alice := registerParticipant(t, ts, "Alice")
	registerParticipant(t, ts, "Bob")
	resp := postJSON(t, ts.URL+"/participants/"+alice.ID+"/match", nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	session := decode[sessionResponse](t, resp)

	resp = postJSON(t, fmt.Sprintf("%s/sessions/%s/messages", ts.URL, session.ID), map[string]string{
		"sender_id": alice.ID,
		"content":   "hello there",
	})
	req.Equal(http.StatusCreated, resp.StatusCode)
	message := decode[messageResponse](t, resp)
	req.Equal("hello there", message.Content)

	resp, err := http.Get(ts.URL + "/participants/" + alice.ID + "/session")
	req.NoError(err)
	current := decode[sessionResponse](t, resp)
	req.Len(current.Messages, 1)
}

func Test_SendMessage_Moderated_Content_Is_Unprocessable(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	alice := registerParticipant(t, ts, "Alice")
	registerParticipant(t, ts, "Bob")
	resp := postJSON(t, ts.URL+"/participants/"+alice.ID+"/match", nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	session := decode[sessionResponse](t, resp)

	resp = postJSON(t, fmt.Sprintf("%s/sessions/%s/messages", ts.URL, session.ID), map[string]string{
		"sender_id": alice.ID,
		"content":   "pure hate",
	})
	defer resp.Body.Close()
	req.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
}

func Test_Next_Then_Session_Is_Gone(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	alice := registerParticipant(t, ts, "Alice")
	registerParticipant(t, ts, "Bob")
	resp := postJSON(t, ts.URL+"/participants/"+alice.ID+"/match", nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/participants/"+alice.ID+"/next", nil)
	defer resp.Body.Close()
	req.Equal(http.StatusNoContent, resp.StatusCode)

	resp, err := http.Get(ts.URL + "/participants/" + alice.ID + "/session")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusNoContent, resp.StatusCode)
}

func Test_Leave_Removes_Participant(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	alice := registerParticipant(t, ts, "Alice")

	request, err := http.NewRequest(http.MethodDelete, ts.URL+"/participants/"+alice.ID, nil)
	req.NoError(err)
	resp, err := http.DefaultClient.Do(request)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/participants/" + alice.ID)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusNotFound, resp.StatusCode)
}
