// relay TUI - a streaming terminal client for the Tallgrass relay service.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tallgrass-io/relay-tui/internal/cli"
	"github.com/tallgrass-io/relay-tui/internal/config"
	"github.com/tallgrass-io/relay-tui/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdTUI:
		runTUI(args)
	case cli.CmdAsk:
		exitOnError(cli.HandleAsk(args))
	case cli.CmdChat:
		exitOnError(cli.HandleChat(args))
	case cli.CmdAuth:
		exitOnError(cli.HandleAuth(args))
	case cli.CmdList:
		exitOnError(cli.HandleList(args))
	case cli.CmdConfig:
		exitOnError(cli.HandleConfig(args))
	case cli.CmdVersion:
		cli.PrintVersion()
	case cli.CmdHelp:
		cli.PrintUsage()
	default:
		runTUI(args)
	}
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runTUI wires the full stack and starts the Bubble Tea program.
func runTUI(args *cli.Args) {
	app, err := cli.BuildApp(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// Config edits take effect without a restart. Watch errors are not
	// fatal; the TUI keeps the config it started with.
	if path, err := config.ConfigPath(); err == nil {
		if w, err := config.NewWatcher(path, nil, nil); err == nil {
			defer w.Close()
		}
	}

	m := chat.New(app.Coord, app.Session, app.Store, app.Cfg)

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running relay: %v\n", err)
		os.Exit(1)
	}

	// Final save in case the quit path's async save did not land.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.SaveConversation(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: conversation not saved: %v\n", err)
	}
}
