package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func buildChatCmd() *cobra.Command {
	var configPath string
	var delegated bool
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant from the terminal",
		Long: `Reads messages from stdin and prints assistant replies. The whole
conversation shares one session, so follow-up questions keep their
context. Exit with Ctrl-D or by typing "exit".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), configPath, delegated, sessionID)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().BoolVar(&delegated, "delegate", false, "Let the Anthropic API drive MCP tool use server-side")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID to resume (default: a fresh session)")
	return cmd
}

func runChat(ctx context.Context, configPath string, delegated bool, sessionID string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := slog.Default()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(ctx, cfg, delegated, nil, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	fmt.Printf("session %s (provider: %s)\n", sessionID, cfg.LLM.DefaultProvider)
	fmt.Println(`type a message and press enter; "exit" quits`)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		result, err := rt.responder.Respond(ctx, sessionID, line)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println(result.Text)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	fmt.Println("bye")
	return nil
}
