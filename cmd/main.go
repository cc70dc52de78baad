package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"yalla-chat/auth"
	"yalla-chat/domain/event"
	"yalla-chat/gateway"
	"yalla-chat/moderation"
	"yalla-chat/observability"
	"yalla-chat/presence"
	"yalla-chat/repositories"
	"yalla-chat/runtime"
	"yalla-chat/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so deferred cleanups always execute.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log, closeLog := setupLogger(config.LogFile, config.LogLevel)
	defer func() { _ = closeLog() }()

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Collaborators
	wordlists, err := moderation.LoadWordlists()
	if err != nil {
		return fmt.Errorf("wordlists loading failed: %w", err)
	}
	moderator, err := moderation.NewModerator(wordlists.Words, config.ModerationCharReplacement)
	if err != nil {
		return fmt.Errorf("moderator setup failed: %w", err)
	}

	registry := presence.NewRegistry()
	catalog := repositories.NewCatalogRepository(db)
	conversations := repositories.NewConversationRepository(db, log)
	messages := repositories.NewMessageRepository(db, log, config.MessagePageLimit)

	events := make(chan event.DomainEvent, config.EventBufferSize)
	chat := services.NewChatService(log, conversations, messages,
		catalog, catalog, &moderator, events, config.MessagePageLimit)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Delivery pipeline under supervision
	supervisor := runtime.NewSupervisor(log)
	supervisor.Add(runtime.NewDeliveryWorker(log, registry, events, config.SinkTimeout))
	// Run blocks until every supervised worker has stopped.
	go supervisor.Run(ctx)

	// 6. HTTP server (websocket + REST)
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	handler := gateway.NewHandler(log, auth.NewVerifier([]byte(config.JWTKey)),
		registry, chat, config.ConnectionBufferSize)
	handler.RegisterRoutes(engine)
	observability.NewHealthHandler(log).RegisterRoutes(engine)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: engine}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	supervisor.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
