package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"duo-chat/sink"

	"github.com/gorilla/mux"
)

type registerRequest struct {
	DisplayName string `json:"display_name"`
}

type sendMessageRequest struct {
	SenderID string `json:"sender_id"`
	Content  string `json:"content"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(fmt.Errorf("invalid body: %w", err)))
		return
	}

	participant, err := s.participants.Register(r.Context(), req.DisplayName)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toParticipantResponse(participant))
}

func (s *Server) handleGetParticipant(w http.ResponseWriter, r *http.Request) {
	participant, err := s.participants.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	if participant == nil {
		writeJSON(w, http.StatusNotFound, errorBody(fmt.Errorf("unknown participant")))
		return
	}
	writeJSON(w, http.StatusOK, toParticipantResponse(*participant))
}

// handleFindMatch runs one matching round. 200 with the session when a
// partner was found, 204 when the pool had nobody for us, callers poll again.
func (s *Server) handleFindMatch(w http.ResponseWriter, r *http.Request) {
	session, err := s.matchmaking.FindMatch(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	if session == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(*session))
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	if err := s.matchmaking.Rotate(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	if err := s.matchmaking.Terminate(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.matchmaking.GetCurrentSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	if session == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(*session))
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(fmt.Errorf("invalid body: %w", err)))
		return
	}

	message, err := s.chat.SendMessage(r.Context(), mux.Vars(r)["id"], req.SenderID, req.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMessageResponse(message))
}

// handleEvents establishes a long-lived server-sent-events stream for one
// participant and blocks until the client disconnects. The sink registered
// here is torn down on return.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody(fmt.Errorf("streaming unsupported")))
		return
	}

	participantID := mux.Vars(r)["id"]
	streamSink := sink.NewStreamSink(s.log, s.bufferSize)
	s.registry.Subscribe(participantID, streamSink)
	// A reconnect replaces this sink; only remove it while it is still ours.
	defer s.registry.UnsubscribeSink(participantID, streamSink)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.log.Debug("event stream closed", "participant_id", participantID)
			return
		case evt := <-streamSink.Events:
			name, payload := toEventPayload(evt)
			if name == "" {
				continue
			}
			body, err := json.Marshal(payload)
			if err != nil {
				s.log.Error("failed to encode event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, body); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
