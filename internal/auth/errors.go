// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

package auth

import "errors"

// Error kinds. Every error returned by this package matches exactly one of
// these with errors.Is; the concrete error also carries an oops code.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks input that violates the credential or attribute policy.
	ErrValidation = errors.New("validation failed")

	// ErrConflict marks a uniqueness violation visible to the caller.
	ErrConflict = errors.New("conflict")

	// ErrInvalidCredentials is the single error for unknown usernames and
	// wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrCredential marks a failure inside the password hasher.
	ErrCredential = errors.New("credential processing failed")

	// ErrDuplicate is returned by repositories when an insert violates a
	// uniqueness constraint. Services translate it; callers never see it.
	ErrDuplicate = errors.New("duplicate record")
)

// ErrUsernameTaken is the conflict returned by signup.
var ErrUsernameTaken = &kindError{kind: ErrConflict, msg: "username already taken"}

// Validation failures. The message is shown to players as-is.
var (
	ErrUsernameTooShort  = &kindError{kind: ErrValidation, msg: "username must be at least 3 characters"}
	ErrPasswordTooShort  = &kindError{kind: ErrValidation, msg: "password must be at least 6 characters"}
	ErrPasswordTooLong   = &kindError{kind: ErrValidation, msg: "password must be at most 72 bytes"}
	ErrInvalidAttributes = &kindError{kind: ErrValidation, msg: "attributes must hold only primitive values or lists of primitives"}
)

// kindError is a user-facing error that also matches its kind sentinel.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }
