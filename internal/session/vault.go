// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/tallgrass-io/relay-tui/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// vaultPrefix marks a stored value as encrypted
// (format: ENC:base64(salt|nonce|ciphertext)).
const vaultPrefix = "ENC:"

// saltSize is the size of the Argon2 salt in bytes.
const saltSize = 16

// Argon2id parameters. OWASP's minimum recommendation for interactive use.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoToken indicates no bearer token has been stored yet.
	ErrNoToken = errors.New("no bearer token stored: run 'relay auth'")
	// ErrInvalidCiphertext indicates the stored value is malformed.
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
	// ErrDecryptFailed indicates the passphrase is wrong or the file was tampered with.
	ErrDecryptFailed = errors.New("decryption failed: wrong passphrase or corrupted vault")
)

// =============================================================================
// VAULT
// =============================================================================

// Vault stores the bearer token encrypted at rest with a passphrase-derived
// key (Argon2id + ChaCha20-Poly1305).
type Vault struct {
	path string
}

// NewVault creates a vault backed by the given file path.
func NewVault(path string) *Vault {
	return &Vault{path: path}
}

// DefaultVaultPath returns the default token file location under the
// user config directory.
func DefaultVaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine config dir: %w", err)
	}
	return filepath.Join(dir, "relay-tui", "token"), nil
}

// Exists reports whether a token has been stored.
func (v *Vault) Exists() bool {
	info, err := os.Stat(v.path)
	return err == nil && !info.IsDir()
}

// Store encrypts the token with the passphrase and writes it atomically.
func (v *Vault) Store(token, passphrase string) error {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	key := deriveKey(passphrase, salt)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, []byte(token), nil)

	var blob []byte
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, sealed...)

	encoded := vaultPrefix + base64.StdEncoding.EncodeToString(blob)
	return util.AtomicWriteFileWithDir(v.path, []byte(encoded), 0600, 0700)
}

// Load reads and decrypts the stored token.
func (v *Vault) Load(passphrase string) (string, error) {
	data, err := os.ReadFile(v.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("failed to read vault: %w", err)
	}

	encoded := strings.TrimSpace(string(data))
	if !strings.HasPrefix(encoded, vaultPrefix) {
		return "", ErrInvalidCiphertext
	}

	blob, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(encoded, vaultPrefix))
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	if len(blob) < saltSize+chacha20poly1305.NonceSizeX {
		return "", ErrInvalidCiphertext
	}

	salt := blob[:saltSize]
	nonce := blob[saltSize : saltSize+chacha20poly1305.NonceSizeX]
	sealed := blob[saltSize+chacha20poly1305.NonceSizeX:]

	key := deriveKey(passphrase, salt)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plain), nil
}

// Remove deletes the stored token.
func (v *Vault) Remove() error {
	err := os.Remove(v.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove vault: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}

// zeroBytes zeros key material to limit memory disclosure via crash dumps.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
