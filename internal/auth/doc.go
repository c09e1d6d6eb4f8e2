// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

// Package auth provides player identity and session management for Dungeon Dash.
//
// # Components
//
// Leaf components are composed by the Service:
//   - PasswordHasher - salted one-way hashing (bcrypt by default, argon2id optional)
//   - TokenGenerator - 62-symbol session tokens from crypto/rand
//   - Directory - account lookup and creation with username uniqueness
//   - SessionManager - session minting, resolution and listing
//   - Service - signup, login, public profile and session resolution
//
// Persistence is behind AccountRepository and SessionRepository. Both must
// provide atomic insert-if-absent and report collisions with ErrDuplicate;
// the Directory and SessionManager turn that into caller-facing errors.
//
// # Errors
//
// Every error matches one kind with errors.Is: ErrValidation, ErrConflict,
// ErrInvalidCredentials, ErrCredential or ErrNotFound. Errors also carry an
// oops code (AUTH_INVALID_USERNAME, AUTH_USERNAME_TAKEN, ...). The message of a
// kind error is safe to show to players as-is.
package auth
