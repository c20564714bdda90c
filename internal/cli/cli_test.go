// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"testing"
)

func TestParseArgs_Commands(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want Command
	}{
		{"no args is TUI", nil, CmdTUI},
		{"ask", []string{"ask", "hello"}, CmdAsk},
		{"chat", []string{"chat"}, CmdChat},
		{"auth", []string{"auth", "login"}, CmdAuth},
		{"list", []string{"list"}, CmdList},
		{"list alias ls", []string{"ls"}, CmdList},
		{"list alias sessions", []string{"sessions"}, CmdList},
		{"config", []string{"config", "show"}, CmdConfig},
		{"version", []string{"version"}, CmdVersion},
		{"version flag", []string{"--version"}, CmdVersion},
		{"help", []string{"help"}, CmdHelp},
		{"help flag", []string{"-h"}, CmdHelp},
		{"bare word is implicit ask", []string{"why is the sky blue"}, CmdAsk},
		{"bare flag stays TUI", []string{"--quiet"}, CmdTUI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _ := parseArgs(tt.argv)
			if cmd != tt.want {
				t.Errorf("parseArgs(%v) = %v, want %v", tt.argv, cmd, tt.want)
			}
		})
	}
}

func TestParseArgs_AskQuery(t *testing.T) {
	_, args := parseArgs([]string{"ask", "what", "is", "a", "goroutine"})
	if args.Query != "what is a goroutine" {
		t.Errorf("Query = %q, want joined positional args", args.Query)
	}
}

func TestParseArgs_AskFlags(t *testing.T) {
	_, args := parseArgs([]string{"ask", "-p", "local", "--file", "notes.txt", "--no-memory", "-q", "summarize"})

	if args.Provider != "local" {
		t.Errorf("Provider = %q, want local", args.Provider)
	}
	if args.Attach != "notes.txt" {
		t.Errorf("Attach = %q, want notes.txt", args.Attach)
	}
	if !args.NoMemory {
		t.Error("NoMemory not set")
	}
	if !args.Quiet {
		t.Error("Quiet not set")
	}
	if args.Query != "summarize" {
		t.Errorf("Query = %q, want summarize", args.Query)
	}
}

func TestParseArgs_EqualsForm(t *testing.T) {
	_, args := parseArgs([]string{"ask", "--provider=cloud", "--file=a.md", "hi"})
	if args.Provider != "cloud" {
		t.Errorf("Provider = %q, want cloud", args.Provider)
	}
	if args.Attach != "a.md" {
		t.Errorf("Attach = %q, want a.md", args.Attach)
	}
}

func TestParseArgs_Subcommands(t *testing.T) {
	_, args := parseArgs([]string{"auth", "logout"})
	if args.Subcommand != "logout" {
		t.Errorf("Subcommand = %q, want logout", args.Subcommand)
	}

	_, args = parseArgs([]string{"list", "delete", "conv_1", "--confirm"})
	if args.Subcommand != "delete" {
		t.Errorf("Subcommand = %q, want delete", args.Subcommand)
	}
	if len(args.Raw) == 0 || args.Raw[0] != "conv_1" {
		t.Errorf("Raw = %v, want conv_1 first", args.Raw)
	}
	if !args.HasRawFlag("confirm") {
		t.Error("HasRawFlag(confirm) = false, want true")
	}
}

func TestParseArgs_ConfigSet(t *testing.T) {
	_, args := parseArgs([]string{"config", "set", "relay.endpoint", "https://relay.example.com/v1/chat"})
	if args.Subcommand != "set" {
		t.Errorf("Subcommand = %q, want set", args.Subcommand)
	}
	if args.ConfigKey != "relay.endpoint" {
		t.Errorf("ConfigKey = %q", args.ConfigKey)
	}
	if args.ConfigVal != "https://relay.example.com/v1/chat" {
		t.Errorf("ConfigVal = %q", args.ConfigVal)
	}
}

func TestHasRawFlag_Absent(t *testing.T) {
	_, args := parseArgs([]string{"list", "clear"})
	if args.HasRawFlag("confirm") {
		t.Error("HasRawFlag(confirm) = true for bare clear")
	}
}
