package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JustDoIt8888/chatbot-ui/internal/app"
	"github.com/JustDoIt8888/chatbot-ui/internal/config"
	"github.com/JustDoIt8888/chatbot-ui/internal/relay"
	"github.com/JustDoIt8888/chatbot-ui/internal/storage"
	"github.com/JustDoIt8888/chatbot-ui/internal/tokenizer"
	"github.com/JustDoIt8888/chatbot-ui/internal/transport/http/handler"
	"github.com/JustDoIt8888/chatbot-ui/internal/transport/http/handler/chat"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := config.EnsureConfigFile(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg)
	slog.SetDefault(logger)

	var store storage.Storage
	var tok tokenizer.Tokenizer
	if cfg.EnableRequestLog {
		store, err = storage.NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open request log: %w", err)
		}
		defer store.Close()

		cached, err := tokenizer.NewCachedCounter(tokenizer.New(), tokenizer.DefaultCacheEntries)
		if err != nil {
			return err
		}
		defer cached.Close()
		tok = cached
	}

	rel := relay.New(cfg.Provider, relay.WithLogger(logger))

	chatHandlers := chat.New(rel, chat.Defaults{
		SystemPrompt: cfg.DefaultSystemPrompt,
		Temperature:  cfg.DefaultTemperature,
	}, store, tok, logger)
	chatHandlers.Provider = cfg.Provider.Type
	chatHandlers.DefaultAPIKey = cfg.Provider.APIKey

	repo := handler.NewRepo(chatHandlers, cfg.Provider.Type)
	router := app.NewRouter(repo, &app.RouterOptions{Logger: logger})
	srv := app.NewServer(cfg, router, logger)

	printStartupBanner(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown incomplete", "error", err)
		}
	}

	// Flush request logs before the store closes.
	chatHandlers.Wait()
	return nil
}
