// ABOUTME: Tests for handler helpers that need no gateway connection
// ABOUTME: Covers the inline replay pattern and error-to-reply mapping

package discord

import (
	"errors"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/akikohatsune/neru/internal/bot"
)

func testBot() *Bot {
	return &Bot{
		prefix:       "!",
		logger:       slog.Default(),
		inlineReplay: regexp.MustCompile(`(?i)^!replayneru(\d+)$`),
	}
}

func TestInlineReplayPattern(t *testing.T) {
	b := testBot()

	m := b.inlineReplay.FindStringSubmatch("!replayneru42")
	assert.NotNil(t, m)
	assert.Equal(t, "42", m[1])

	assert.NotNil(t, b.inlineReplay.FindStringSubmatch("!REPLAYNERU7"))

	// The plain command form is handled by dispatch, not the shorthand
	assert.Nil(t, b.inlineReplay.FindStringSubmatch("!replayneru 42"))
	assert.Nil(t, b.inlineReplay.FindStringSubmatch("!replayneru"))
	assert.Nil(t, b.inlineReplay.FindStringSubmatch("replayneru42"))
}

func TestReplyForError(t *testing.T) {
	b := testBot()

	assert.Empty(t, b.replyForError(bot.ErrDuplicateMessage))
	assert.Equal(t, "You are banned from using the bot in this server.", b.replyForError(bot.ErrBanned))
	assert.Contains(t, b.replyForError(bot.ErrTerminated), "!terminated off")
	assert.Equal(t, "This bot does not respond to direct messages.", b.replyForError(bot.ErrDMDisabled))
	assert.Equal(t, "Name cannot be empty.", b.replyForError(bot.ErrCallNameEmpty))
	assert.Equal(t, "Name is too long.", b.replyForError(bot.ErrCallNameTooLong))
	assert.Contains(t, b.replyForError(bot.ErrCallNameRejected), "rejected")
	assert.Contains(t, b.replyForError(errors.New("backend exploded")), "backend exploded")
}

func TestIsOwner(t *testing.T) {
	b := testBot()
	b.ownerIDs = map[int64]struct{}{42: {}}

	assert.True(t, b.isOwner(42))
	assert.False(t, b.isOwner(43))
}
