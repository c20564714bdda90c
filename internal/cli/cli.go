// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command routing for relay-tui.
package cli

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdAuth
	CmdList
	CmdConfig
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet    bool
	Verbose  bool
	Provider string // overrides relay.provider_hint for this invocation
	NoMemory bool   // disable memory recall for this invocation

	// Command-specific
	Query      string
	Attach     string // file to register as an attachment (ask)
	Subcommand string

	// ConfigKey/ConfigVal for "config set"
	ConfigKey string
	ConfigVal string

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `relay - streaming chat client for the Tallgrass relay service

Relay sends your messages to a model-routing service and streams the
reply back, token by token. Conversations persist locally in SQLite.

Usage:
  relay                      Start the TUI (default)
  relay ask "question"       Ask a single question, stream to stdout
  relay chat                 Interactive chat in the terminal
  relay auth [subcommand]    Manage the stored bearer token
  relay list [subcommand]    List, search, or delete saved conversations
  relay config [show|set|path]  Configuration
  relay version              Show version information
  relay help                 Show this help

Ask Flags:
  -p, --provider NAME   Request a provider (auto, local, cloud)
  -f, --file FILE       Attach a file to the question
  --no-memory           Skip memory recall for this question
  -q, --quiet           Suppress progress output
  -v, --verbose         Verbose output

Auth Commands:
  relay auth login      Store a bearer token (encrypted at rest)
  relay auth status     Show whether a token is stored
  relay auth logout     Remove the stored token

List Commands:
  relay list                      List saved conversations
  relay list search <query>       Full-text search across messages
  relay list delete <id> --confirm   Delete one conversation
  relay list clear --confirm         Delete all conversations

Environment:
  RELAY_CONFIG      Path to the config file
  RELAY_ENDPOINT    Override the relay endpoint URL
  RELAY_API_KEY     Override the service API key
  RELAY_TOKEN       Bearer token (skips the encrypted vault)
  RELAY_PASSPHRASE  Vault passphrase (skips the interactive prompt)
`

// Parse parses os.Args into a command and its arguments.
func Parse() (Command, *Args) {
	return parseArgs(os.Args[1:])
}

func parseArgs(argv []string) (Command, *Args) {
	args := &Args{}

	if len(argv) == 0 {
		return CmdTUI, args
	}

	cmd := CmdTUI
	rest := argv

	switch argv[0] {
	case "ask":
		cmd = CmdAsk
		rest = argv[1:]
	case "chat":
		cmd = CmdChat
		rest = argv[1:]
	case "auth":
		cmd = CmdAuth
		rest = argv[1:]
	case "list", "ls", "sessions":
		cmd = CmdList
		rest = argv[1:]
	case "config":
		cmd = CmdConfig
		rest = argv[1:]
	case "version", "--version", "-V":
		return CmdVersion, args
	case "help", "--help", "-h":
		return CmdHelp, args
	default:
		// Unknown word: treat flags as TUI flags, anything else is an
		// implicit ask query.
		if !strings.HasPrefix(argv[0], "-") {
			cmd = CmdAsk
		}
	}

	var positional []string
	i := 0
	for i < len(rest) {
		arg := rest[i]
		switch arg {
		case "-q", "--quiet":
			args.Quiet = true
		case "-v", "--verbose":
			args.Verbose = true
		case "--no-memory":
			args.NoMemory = true
		case "-p", "--provider":
			if i+1 < len(rest) {
				args.Provider = rest[i+1]
				i++
			}
		case "-f", "--file", "--attach":
			if i+1 < len(rest) {
				args.Attach = rest[i+1]
				i++
			}
		default:
			if strings.HasPrefix(arg, "--provider=") {
				args.Provider = strings.TrimPrefix(arg, "--provider=")
			} else if strings.HasPrefix(arg, "--file=") {
				args.Attach = strings.TrimPrefix(arg, "--file=")
			} else if strings.HasPrefix(arg, "-") {
				args.Raw = append(args.Raw, arg)
			} else {
				positional = append(positional, arg)
			}
		}
		i++
	}

	switch cmd {
	case CmdAsk:
		args.Query = strings.Join(positional, " ")
	case CmdAuth, CmdList:
		if len(positional) > 0 {
			args.Subcommand = positional[0]
			args.Raw = append(append([]string{}, positional[1:]...), args.Raw...)
		}
	case CmdConfig:
		if len(positional) > 0 {
			args.Subcommand = positional[0]
		}
		if len(positional) > 1 {
			args.ConfigKey = positional[1]
		}
		if len(positional) > 2 {
			args.ConfigVal = strings.Join(positional[2:], " ")
		}
	default:
		args.Raw = append(args.Raw, positional...)
	}

	return cmd, args
}

// HasRawFlag reports whether a bare flag (e.g. "--confirm") was passed.
func (a *Args) HasRawFlag(name string) bool {
	for _, r := range a.Raw {
		if r == "--"+name || r == "-"+name {
			return true
		}
	}
	return false
}

// PrintUsage writes the top-level usage text to stdout.
func PrintUsage() {
	fmt.Print(usageText)
}

// PrintVersion writes version information to stdout.
func PrintVersion() {
	fmt.Printf("relay %s\n", Version)
	fmt.Printf("  commit:  %s\n", GitCommit)
	fmt.Printf("  built:   %s\n", BuildDate)
	fmt.Printf("  runtime: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
