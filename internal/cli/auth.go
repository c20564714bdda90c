// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth.go - Bearer token management for the relay CLI.
//
// Handles "relay auth". The token is encrypted at rest with a passphrase
// (Argon2id key derivation, XChaCha20-Poly1305) and decrypted on startup.
//
// Commands:
//   relay auth login    Store a bearer token
//   relay auth status   Show whether a token is stored
//   relay auth logout   Remove the stored token
package cli

import (
	"fmt"
	"strings"

	"github.com/tallgrass-io/relay-tui/internal/session"
)

// HandleAuth handles the "relay auth" command.
func HandleAuth(args *Args) error {
	vaultPath, err := session.DefaultVaultPath()
	if err != nil {
		return fmt.Errorf("resolve vault path: %w", err)
	}
	vault := session.NewVault(vaultPath)

	switch args.Subcommand {
	case "login", "store", "":
		return authLogin(vault)
	case "status":
		return authStatus(vault, vaultPath)
	case "logout", "remove":
		return authLogout(vault)
	default:
		return fmt.Errorf("unknown auth subcommand: %s (expected login, status, or logout)", args.Subcommand)
	}
}

func authLogin(vault *session.Vault) error {
	if !IsTTY() {
		return fmt.Errorf("auth login requires an interactive terminal")
	}

	token, err := ReadSecret("Bearer token: ")
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("token must not be empty")
	}

	passphrase, err := ReadSecret("Vault passphrase: ")
	if err != nil {
		return fmt.Errorf("read passphrase: %w", err)
	}
	if len(passphrase) < 8 {
		return fmt.Errorf("passphrase must be at least 8 characters")
	}

	confirm, err := ReadSecret("Confirm passphrase: ")
	if err != nil {
		return fmt.Errorf("read passphrase: %w", err)
	}
	if passphrase != confirm {
		return fmt.Errorf("passphrases do not match")
	}

	if err := vault.Store(token, passphrase); err != nil {
		return fmt.Errorf("store token: %w", err)
	}

	fmt.Println("Token stored. It will be decrypted on startup with your passphrase.")
	return nil
}

func authStatus(vault *session.Vault, path string) error {
	if vault.Exists() {
		fmt.Println("Token: stored (encrypted)")
	} else {
		fmt.Println("Token: not stored")
	}
	fmt.Printf("Vault: %s\n", path)
	return nil
}

func authLogout(vault *session.Vault) error {
	if !vault.Exists() {
		fmt.Println("No stored token.")
		return nil
	}
	if err := vault.Remove(); err != nil {
		return fmt.Errorf("remove token: %w", err)
	}
	fmt.Println("Token removed.")
	return nil
}
