package main

import (
	"context"
	goerrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"duo-chat/infrastructure/http/server"
	"duo-chat/internal"
	"duo-chat/matchmaking"
	"duo-chat/moderation"
	"duo-chat/repositories"
	"duo-chat/runtime"
	"duo-chat/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/rs/cors"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so deferred cleanup (database close, graceful
// shutdown) always executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories & moderation
	participantRepository := repositories.NewParticipantRepository(db, log)
	sessionRepository := repositories.NewSessionRepository(db, log)
	messageRepository := repositories.NewMessageRepository(db, log)
	historyRepository := repositories.NewPairHistoryRepository(db, log)

	words, err := moderation.DefaultWords()
	if err != nil {
		return fmt.Errorf("loading moderation dictionary failed: %w", err)
	}
	moderator, err := moderation.NewModerator(words, log)
	if err != nil {
		return fmt.Errorf("building moderator failed: %w", err)
	}

	// 4. Engine & services
	registry := runtime.NewRegistry(log, config.SinkTimeout)
	committer := matchmaking.NewCommitter(sessionRepository, historyRepository, registry, log)
	matcher := matchmaking.NewMatcher(participantRepository, historyRepository, committer, log)
	lifecycle := matchmaking.NewLifecycle(participantRepository, sessionRepository, historyRepository, registry, log)

	participantService := services.NewParticipantService(participantRepository)
	matchmakingService := services.NewMatchmakingService(
		matcher, lifecycle, participantRepository, sessionRepository, messageRepository, registry)
	chatService := services.NewChatService(
		sessionRepository, messageRepository, &moderator, registry, log, config.MaxContentLength)

	// 5. HTTP server with CORS
	apiServer := server.NewServer(
		log, participantService, matchmakingService, chatService, registry, config.ConnectionBufferSize)
	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(apiServer.Router())

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: handler}

	// 6. Context & signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
	}()

	log.Info(fmt.Sprintf("Listening on %s", address))
	if err := httpServer.ListenAndServe(); !goerrors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}
