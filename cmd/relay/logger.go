package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/JustDoIt8888/chatbot-ui/internal/config"
	"github.com/JustDoIt8888/chatbot-ui/internal/version"
)

func setupLogger(cfg *config.Config) *slog.Logger {
	return newLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
}

// newLogger builds a text or JSON logger. Unknown levels fall back to info.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func printStartupBanner(cfg *config.Config) {
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "Chat relay %s\n", version.Version)
	fmt.Fprintln(os.Stderr, "════════════════════════════════════════════════")
	fmt.Fprintf(os.Stderr, "Chat API:   http://localhost%s/api/chat\n", cfg.ServerPort)
	if cfg.Provider.IsAzure() {
		fmt.Fprintf(os.Stderr, "Upstream:   azure %s (deployment %s)\n", cfg.Provider.Host, cfg.Provider.DeploymentID)
	} else {
		fmt.Fprintf(os.Stderr, "Upstream:   openai %s\n", cfg.Provider.Host)
	}
	if cfg.EnableRequestLog {
		fmt.Fprintf(os.Stderr, "Logs:       %s\n", cfg.DBPath)
	}
	fmt.Fprintln(os.Stderr, "════════════════════════════════════════════════")
	fmt.Fprintf(os.Stderr, "\n")
}
