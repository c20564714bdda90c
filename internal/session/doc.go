// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session tracks the active chat session.
//
// It supplies relay credentials (session ID, user ID, bearer token) to the
// send coordinator, tracks user activity for idle timeout, and stores the
// bearer token encrypted at rest.
//
// # Key Types
//
//   - Manager: session identity, credentials, and idle tracking
//   - Vault: passphrase-encrypted bearer token storage
//   - TimeoutMsg / TimeoutWarningMsg: Bubble Tea messages for expiry
//
// # Usage
//
// Create a manager and load the stored token:
//
//	mgr := session.NewManager(session.DefaultConfig())
//	vault := session.NewVault(path)
//	token, err := vault.Load(passphrase)
//	if err == nil {
//	    mgr.SetBearer(token)
//	}
//
// Record activity on user input:
//
//	mgr.RecordActivity()
//
// An expired session reports empty credentials, which makes the
// coordinator refuse further sends until the session is renewed.
package session
