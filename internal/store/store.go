// ABOUTME: Data types and sentinel errors for the neru persistence layer
// ABOUTME: Defines Turn, BanEntry, CallNamePreference, ReplayRecord shared by all stores

package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrClosed is returned when an operation is attempted on a closed store.
var ErrClosed = errors.New("store is closed")

// Role constants for history turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Trigger constants for replay records.
const (
	TriggerCommand = "command"
	TriggerMention = "mention"
)

// Turn is one message exchange unit in a channel's bounded history.
type Turn struct {
	Role       string
	Content    string
	RecordedAt time.Time
}

// BanEntry records a per-(guild, user) ban with its audit trail.
type BanEntry struct {
	GuildID   int64
	UserID    int64
	BannedBy  int64
	Reason    string
	CreatedAt time.Time
}

// CallNamePreference holds the two call-name fields for a (guild, user)
// pair. An empty field means it was never set.
type CallNamePreference struct {
	UserCallsBot string
	BotCallsUser string
}

// ReplayRecord is an immutable audit entry for one completed chat exchange.
type ReplayRecord struct {
	Timestamp   time.Time
	GuildID     int64
	GuildName   string
	ChannelID   int64
	ChannelName string
	UserID      int64
	UserName    string
	UserDisplay string
	Trigger     string
	Prompt      string
	ReplyLength int
}

// IndexedReplay pairs a replay record with its persisted sequential id.
type IndexedReplay struct {
	ID     int64
	Record ReplayRecord
}
