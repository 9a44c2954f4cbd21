// Package domain defines the core data records for the messenger: user
// accounts (mapped with GORM), relayed messages, chat summaries, and
// presence events. Chat state records are stored as JSON in the key-value
// layer, so only User carries persistence tags.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered account. The username is the public identity
// used everywhere else in the system (partner lists, room keys, presence);
// it is immutable after registration.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Username: unique public identifier; indexed for login and search.
//   - UsernameFolded: case-folded copy of Username, written at creation and
//     matched against case-folded search terms. SQLite's LOWER is ASCII-only,
//     so folding both sides in Go keeps non-ASCII names searchable.
//   - Email: contact address captured at registration.
//   - PasswordHash: bcrypt hash; never serialized.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
type User struct {
	ID             string         `json:"id"         gorm:"type:char(36);primaryKey"`
	Username       string         `json:"username"   gorm:"type:varchar(64);not null;uniqueIndex:ux_users_username"`
	UsernameFolded string         `json:"-"          gorm:"type:varchar(64);not null;index:ix_users_username_folded"`
	Email          string         `json:"email"      gorm:"type:varchar(255);not null"`
	PasswordHash   string         `json:"-"          gorm:"type:varchar(128);not null"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Message is a single relayed chat message. Messages are immutable once
// appended to a room's history and are serialized as JSON both on the wire
// (websocket delivery) and at rest (room history list).
//
// Timestamp is milliseconds since the Unix epoch, assigned by the server at
// relay time so that history order and wire order agree.
type Message struct {
	From      string `json:"from"`
	Body      string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// ChatSummary describes one entry of a user's chat overview: a partner plus
// the number of messages received from that partner since the last read
// acknowledgement.
type ChatSummary struct {
	Partner string `json:"partner"`
	Unread  int64  `json:"unread"`
}

// PresenceEvent announces a user going online or offline. It is broadcast to
// every other connected session when the presence registry changes.
type PresenceEvent struct {
	Username string `json:"username"`
	IsOnline bool   `json:"isOnline"`
}
