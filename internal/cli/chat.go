// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command handler for the relay CLI.
//
// Handles "relay chat", a readline-style REPL that streams replies into
// the terminal. For the full-screen interface use the TUI (run relay with
// no command).
//
// Interactive commands:
//   /help, /h        Show available commands
//   /new             Start a fresh conversation (saves the current one)
//   /memory on|off   Toggle memory recall
//   /renew           Renew the session after a timeout
//   /status, /s      Show session status
//   /quit, /q        Exit chat
//   Ctrl+C           Cancel the current reply
//   Ctrl+D           Exit chat
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/tallgrass-io/relay-tui/internal/config"
	"github.com/tallgrass-io/relay-tui/internal/model"
	"github.com/tallgrass-io/relay-tui/internal/relay"
	"github.com/tallgrass-io/relay-tui/internal/session"
	"github.com/tallgrass-io/relay-tui/internal/ui/styles"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(styles.Teal).Bold(true)

	welcomeStyle = lipgloss.NewStyle().Foreground(styles.Indigo).Bold(true)

	infoStyle = lipgloss.NewStyle().Foreground(styles.TextSecondary)

	commandStyle = lipgloss.NewStyle().Foreground(styles.Emerald)

	warnStyle = lipgloss.NewStyle().Foreground(styles.Amber)
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader wraps liner with persistent input history. Arrow keys
// navigate prior inputs across sessions.
type lineReader struct {
	line        *liner.State
	historyFile string
}

func newLineReader() *lineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	r := &lineReader{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	r.loadHistory()
	return r
}

func (r *lineReader) loadHistory() {
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
}

func (r *lineReader) saveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	r.line.WriteHistory(f)
}

// readInput reads one line, recording non-empty input in history.
func (r *lineReader) readInput(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

func (r *lineReader) close() {
	r.saveHistory()
	r.line.Close()
}

// =============================================================================
// CHAT LOOP
// =============================================================================

// HandleChat handles the "relay chat" command.
func HandleChat(args *Args) error {
	app, err := BuildApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	reader := newLineReader()
	defer reader.close()

	if !args.Quiet {
		printWelcome(app)
	}

	for {
		input, err := reader.readInput(promptStyle.Render("you> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				continue // bare Ctrl+C at the prompt: ignore
			}
			break // Ctrl+D or read failure
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := handleChatCommand(app, input); quit {
				break
			}
			continue
		}

		app.Session.RecordActivity()
		if err := streamQuery(app, input, nil, args.Quiet); err != nil {
			printSendError(err)
		}
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.SaveConversation(saveCtx); err != nil {
		fmt.Fprintln(os.Stderr, warnStyle.Render("warning: conversation not saved: "+err.Error()))
	}
	if !args.Quiet {
		fmt.Println(infoStyle.Render("bye"))
	}
	return nil
}

// handleChatCommand processes a slash command. Returns true to exit.
func handleChatCommand(app *App, input string) bool {
	fields := strings.Fields(input)
	cmd := fields[0]

	switch cmd {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h":
		printChatHelp()

	case "/new":
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := app.SaveConversation(saveCtx); err != nil {
			fmt.Println(warnStyle.Render("warning: conversation not saved: " + err.Error()))
		}
		cancel()
		resetConversation(app)
		fmt.Println(infoStyle.Render("started a new conversation"))

	case "/memory":
		if len(fields) < 2 {
			state := "off"
			if app.Recaller.IsEnabled() {
				state = "on"
			}
			fmt.Println(infoStyle.Render("memory recall is " + state))
			break
		}
		switch fields[1] {
		case "on":
			app.Recaller.SetEnabled(true)
			fmt.Println(infoStyle.Render("memory recall enabled"))
		case "off":
			app.Recaller.SetEnabled(false)
			fmt.Println(infoStyle.Render("memory recall disabled"))
		default:
			fmt.Println(warnStyle.Render("usage: /memory on|off"))
		}

	case "/renew":
		app.Session.Renew()
		fmt.Println(infoStyle.Render("session renewed: " + app.Session.SessionID()))

	case "/status", "/s":
		printSessionStatus(app)

	default:
		fmt.Println(warnStyle.Render("unknown command: " + cmd + " (try /help)"))
	}
	return false
}

// resetConversation swaps in a fresh conversation behind a new coordinator,
// preserving the rest of the stack.
func resetConversation(app *App) {
	cfg := app.Cfg
	coord := relay.NewCoordinator(relay.Config{
		Endpoint:     cfg.Relay.Endpoint,
		APIKey:       cfg.Relay.APIKey,
		ProviderHint: cfg.Relay.ProviderHint,
		CommitDelay:  time.Duration(cfg.Stream.CommitDelayMs) * time.Millisecond,
		MemoryLimit:  cfg.Relay.MemoryLimit,
	}, app.Transport, app.Session, model.NewConversation())
	coord.SetAttachmentResolver(app.Store)
	coord.SetMemorySource(app.Recaller)
	app.Coord = coord
}

func printSendError(err error) {
	switch {
	case errors.Is(err, relay.ErrAuthRequired):
		fmt.Println(errStyle.Render("authentication required: run 'relay auth login' or set RELAY_TOKEN"))
	case errors.Is(err, relay.ErrNoSession):
		fmt.Println(errStyle.Render("session expired: use /renew to continue"))
	case errors.Is(err, relay.ErrAlreadySending):
		fmt.Println(warnStyle.Render("a reply is still streaming"))
	default:
		fmt.Println(errStyle.Render("error: " + err.Error()))
	}
}

func printWelcome(app *App) {
	fmt.Println(welcomeStyle.Render("relay chat"))
	fmt.Println(infoStyle.Render("endpoint: " + app.Cfg.Relay.Endpoint))
	if !app.Session.HasBearer() {
		fmt.Println(warnStyle.Render("no bearer token: run 'relay auth login' before sending"))
	}
	fmt.Println(infoStyle.Render("type /help for commands, Ctrl+D to exit"))
	fmt.Println()
}

func printChatHelp() {
	rows := [][2]string{
		{"/help, /h", "show this help"},
		{"/new", "start a fresh conversation"},
		{"/memory on|off", "toggle memory recall"},
		{"/renew", "renew the session after a timeout"},
		{"/status, /s", "show session status"},
		{"/quit, /q", "exit chat"},
	}
	for _, row := range rows {
		fmt.Printf("  %s  %s\n", commandStyle.Render(fmt.Sprintf("%-16s", row[0])), infoStyle.Render(row[1]))
	}
}

func printSessionStatus(app *App) {
	st := app.Session.GetStatus()
	fmt.Println(infoStyle.Render("session:   " + st.SessionID))
	fmt.Println(infoStyle.Render("duration:  " + session.FormatDuration(st.Duration)))
	fmt.Println(infoStyle.Render("idle:      " + session.FormatDuration(st.IdleTime)))
	fmt.Println(infoStyle.Render("remaining: " + session.FormatDuration(st.RemainingTime)))
	fmt.Println(infoStyle.Render(fmt.Sprintf("messages:  %d", app.Coord.Conversation().MessageCount())))
}
