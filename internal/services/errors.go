// Package services implements the application's business rules on top of the
// persistence layer: account registration and login, partner-list management,
// unread bookkeeping, and message relay with live delivery. Handlers translate
// the sentinel errors defined here into HTTP responses.
package services

import "errors"

var (
	// ErrUsernameTaken indicates a registration attempt with an existing username.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrInvalidCredentials indicates a failed login (unknown user or wrong password).
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidUsername indicates a username that fails validation
	// (empty, too long, or containing reserved characters).
	ErrInvalidUsername = errors.New("invalid username")

	// ErrUnknownUser indicates an operation referencing a username that is not registered.
	ErrUnknownUser = errors.New("unknown user")

	// ErrSelfMessage indicates an attempt to open a chat with or message oneself.
	ErrSelfMessage = errors.New("cannot message yourself")

	// ErrEmptyMessage indicates a message with an empty body.
	ErrEmptyMessage = errors.New("message body is empty")

	// ErrMessageTooLong indicates a message body over the configured rune limit.
	ErrMessageTooLong = errors.New("message body too long")

	// ErrNotMember indicates a history request for a room the requester is not part of.
	ErrNotMember = errors.New("not a member of this room")

	// ErrBadRoomKey indicates a malformed room identifier.
	ErrBadRoomKey = errors.New("malformed room key")

	// ErrEmptyPublicKey indicates a public key upload with an empty payload.
	ErrEmptyPublicKey = errors.New("public key is empty")
)
