// Package server exposes the matchmaking engine over a JSON HTTP API with a
// server-sent-events stream for real-time delivery.
package server

import (
	"encoding/json"
	goerrors "errors"
	"log/slog"
	"net/http"

	"duo-chat/contract"
	"duo-chat/errors"
	"duo-chat/services"

	"github.com/gorilla/mux"
)

type Server struct {
	log          *slog.Logger
	participants services.IParticipantService
	matchmaking  services.IMatchmakingService
	chat         services.IChatService
	registry     contract.IRegistry
	bufferSize   int
	router       *mux.Router
}

func NewServer(
	log *slog.Logger,
	participants services.IParticipantService,
	matchmaking services.IMatchmakingService,
	chat services.IChatService,
	registry contract.IRegistry,
	bufferSize int,
) *Server {
	s := &Server{
		log:          log,
		participants: participants,
		matchmaking:  matchmaking,
		chat:         chat,
		registry:     registry,
		bufferSize:   bufferSize,
		router:       mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/participants", s.handleRegister).Methods(http.MethodPost)
	s.router.HandleFunc("/participants/{id}", s.handleGetParticipant).Methods(http.MethodGet)
	s.router.HandleFunc("/participants/{id}", s.handleLeave).Methods(http.MethodDelete)
	s.router.HandleFunc("/participants/{id}/match", s.handleFindMatch).Methods(http.MethodPost)
	s.router.HandleFunc("/participants/{id}/next", s.handleNext).Methods(http.MethodPost)
	s.router.HandleFunc("/participants/{id}/session", s.handleCurrentSession).Methods(http.MethodGet)
	s.router.HandleFunc("/participants/{id}/events", s.handleEvents).Methods(http.MethodGet)
	s.router.HandleFunc("/sessions/{id}/messages", s.handleSendMessage).Methods(http.MethodPost)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain errors onto HTTP statuses. Anything unmapped is a
// store failure or a genuine bug and surfaces as a 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case goerrors.Is(err, errors.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(err))
	case goerrors.Is(err, errors.ErrNameTaken):
		writeJSON(w, http.StatusConflict, errorBody(err))
	case goerrors.Is(err, errors.ErrInvalidDisplayName):
		writeJSON(w, http.StatusBadRequest, errorBody(err))
	case goerrors.Is(err, errors.ErrContentRejected):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err))
	case goerrors.Is(err, errors.ErrNotInSession):
		writeJSON(w, http.StatusForbidden, errorBody(err))
	default:
		s.log.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody(goerrors.New("internal error")))
	}
}

func errorBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}
