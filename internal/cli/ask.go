// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single query command handler for the relay CLI.
//
// Handles "relay ask", which sends one question to the routing service
// and streams the reply to stdout. Interim tokens print as they arrive;
// when stdout is a TTY the final reply is re-rendered as markdown.
//
// Examples:
//   relay ask "how do I tune exponential backoff?"
//   relay ask --provider local "summarize this" --file notes.txt
//   relay ask --no-memory "a question with no history attached"
package cli

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/tallgrass-io/relay-tui/internal/model"
	"github.com/tallgrass-io/relay-tui/internal/relay"
	"github.com/tallgrass-io/relay-tui/internal/ui/styles"
)

// MaxAttachmentSize is the largest file "ask --file" will register (50KB).
const MaxAttachmentSize = 50 * 1024

var (
	stepStyle  = lipgloss.NewStyle().Foreground(styles.TextMuted)
	modelStyle = lipgloss.NewStyle().Foreground(styles.Indigo)
	errStyle   = lipgloss.NewStyle().Foreground(styles.Rose)
)

// markdownRenderer lazily builds the glamour renderer for final output.
var (
	mdOnce     sync.Once
	mdRenderer *glamour.TermRenderer
)

func renderMarkdown(content string) string {
	mdOnce.Do(func() {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(TerminalWidth()),
		)
		if err == nil {
			mdRenderer = r
		}
	})
	if mdRenderer == nil {
		return content
	}
	rendered, err := mdRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// HandleAsk handles the "relay ask" command.
func HandleAsk(args *Args) error {
	question := strings.TrimSpace(args.Query)
	if question == "" {
		return fmt.Errorf("usage: relay ask \"question\"")
	}

	app, err := BuildApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	var attachIDs []string
	if args.Attach != "" {
		id, err := registerAttachment(app, args.Attach)
		if err != nil {
			return err
		}
		attachIDs = append(attachIDs, id)
	}

	return streamQuery(app, question, attachIDs, args.Quiet)
}

// streamQuery performs one send, printing tokens as they stream. Shared by
// ask and the interactive chat loop.
func streamQuery(app *App, question string, attachIDs []string, quiet bool) error {
	printer := newStreamPrinter(quiet)
	app.Coord.SetCallbacks(relay.Callbacks{
		OnUpdate: printer.apply,
	})

	// Ctrl+C cancels the in-flight send; cancellation keeps partial output.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			app.Coord.Cancel()
		case <-done:
		}
	}()

	err := app.Coord.Send(context.Background(), question, attachIDs, nil)
	close(done)
	signal.Stop(sigCh)

	printer.finish()

	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if saveErr := app.SaveConversation(saveCtx); saveErr != nil && !quiet {
		fmt.Fprintf(os.Stderr, "%s\n", stepStyle.Render("warning: conversation not saved: "+saveErr.Error()))
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, relay.ErrCancelled):
		fmt.Fprintln(os.Stderr, stepStyle.Render("(cancelled)"))
		return nil
	default:
		return err
	}
}

// registerAttachment stores a local file as an attachment record and
// returns its identifier.
func registerAttachment(app *App, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("attach %s: %w", path, err)
	}
	if info.Size() > MaxAttachmentSize {
		return "", fmt.Errorf("attach %s: file exceeds %d bytes", path, MaxAttachmentSize)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	att := model.Attachment{
		ID:   model.NewID(),
		Name: filepath.Base(path),
		Mime: mimeType,
		URL:  "file://" + abs,
		Size: info.Size(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Store.PutAttachment(ctx, att); err != nil {
		return "", fmt.Errorf("register attachment: %w", err)
	}
	return att.ID, nil
}

// =============================================================================
// STREAM PRINTER
// =============================================================================

// streamPrinter writes streaming content to stdout incrementally. Content
// arrives as cumulative snapshots, so it tracks how much has been printed
// and emits only the newly appended suffix.
type streamPrinter struct {
	mu      sync.Mutex
	quiet   bool
	printed int
	final   model.Update
	model   string
}

func newStreamPrinter(quiet bool) *streamPrinter {
	return &streamPrinter{quiet: quiet}
}

func (p *streamPrinter) apply(u model.Update) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(u.Content) > p.printed {
		fmt.Print(u.Content[p.printed:])
		p.printed = len(u.Content)
	}

	if name, ok := u.Metadata["model"].(string); ok && name != p.model {
		p.model = name
		if !p.quiet && IsStdoutTTY() {
			fmt.Fprintf(os.Stderr, "\n%s\n", modelStyle.Render("[model: "+name+"]"))
		}
	}

	p.final = u
}

// finish prints the trailing newline and, on a TTY, re-renders the
// complete reply as markdown. Failed or cancelled replies keep the raw
// streamed text.
func (p *streamPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.printed > 0 {
		fmt.Println()
	}
	if p.final.Status != model.StatusComplete || p.final.Content == "" {
		return
	}
	if IsStdoutTTY() {
		fmt.Print(renderMarkdown(p.final.Content))
	}
}
