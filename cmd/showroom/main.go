// Package main provides the CLI entry point for the Showroom dealership
// assistant.
//
// Showroom pairs an LLM provider (OpenAI or Anthropic) with a dealership
// MCP server so the model can browse inventory, draft quotations, and
// place orders through tool calls.
//
// # Basic Usage
//
// Start the chat API and dealer MCP server:
//
//	showroom mcp-serve --config showroom.yaml
//	showroom serve --config showroom.yaml
//
// Chat from the terminal:
//
//	showroom chat
//
// # Environment Variables
//
//   - OPENAI_API_KEY: OpenAI API key for GPT models
//   - ANTHROPIC_API_KEY: Anthropic API key for Claude models
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/showroom/internal/config"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "showroom",
		Short: "Showroom - AI car dealership assistant",
		Long: `Showroom answers customer questions about inventory, pricing, and
orders by calling dealership tools over MCP.

Supported LLM providers: OpenAI (GPT), Anthropic (Claude)`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildChatCmd(),
		buildMCPServeCmd(),
	)
	return rootCmd
}

// loadConfig reads the config file when one is given, otherwise falls
// back to built-in defaults, and reconfigures the default logger to
// match the logging section.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	if strings.TrimSpace(path) == "" {
		cfg = config.Default()
	} else {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	slog.SetDefault(newLogger(cfg.Logging))
	return cfg, nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
