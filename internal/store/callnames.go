// ABOUTME: Per-(guild, user) call-name preferences with independent field upserts
// ABOUTME: Each setter touches only its own column; rows are never deleted

package store

import (
	"context"
	"database/sql"
	"fmt"
)

const callNameSchema = `
	CREATE TABLE IF NOT EXISTS call_names (
		guild_id       INTEGER NOT NULL,
		user_id        INTEGER NOT NULL,
		user_calls_bot TEXT,
		bot_calls_user TEXT,

		PRIMARY KEY (guild_id, user_id)
	);
`

// CallNameStore persists how each user addresses the bot and how the
// bot should address them, scoped per (guild, user).
type CallNameStore struct {
	eng *engine
}

// OpenCallNameStore opens the call-name database at path.
func OpenCallNameStore(path string) (*CallNameStore, error) {
	eng, err := openEngine(path, "callnames", callNameSchema)
	if err != nil {
		return nil, err
	}
	return &CallNameStore{eng: eng}, nil
}

// SetUserCallsBot upserts the user_calls_bot field, leaving
// bot_calls_user untouched if the row already exists.
func (s *CallNameStore) SetUserCallsBot(ctx context.Context, guildID, userID int64, value string) error {
	return s.setField(ctx, "user_calls_bot", guildID, userID, value)
}

// SetBotCallsUser upserts the bot_calls_user field, leaving
// user_calls_bot untouched if the row already exists.
func (s *CallNameStore) SetBotCallsUser(ctx context.Context, guildID, userID int64, value string) error {
	return s.setField(ctx, "bot_calls_user", guildID, userID, value)
}

func (s *CallNameStore) setField(ctx context.Context, column string, guildID, userID int64, value string) error {
	if err := s.eng.guard(); err != nil {
		return err
	}

	// column is one of the two fixed names above, never caller input.
	query := fmt.Sprintf(`
		INSERT INTO call_names (guild_id, user_id, %s)
		VALUES (?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET %s = excluded.%s
	`, column, column, column)

	if _, err := s.eng.db.ExecContext(ctx, query, guildID, userID, value); err != nil {
		return fmt.Errorf("setting %s: %w", column, err)
	}

	s.eng.logger.Debug("saved call name", "guild_id", guildID, "user_id", userID, "field", column)
	return nil
}

// Preferences returns both call-name fields for (guildID, userID). A
// field that was never set reads as the empty string.
func (s *CallNameStore) Preferences(ctx context.Context, guildID, userID int64) (CallNamePreference, error) {
	if err := s.eng.guard(); err != nil {
		return CallNamePreference{}, err
	}

	var userCallsBot, botCallsUser sql.NullString
	err := s.eng.db.QueryRowContext(ctx, `
		SELECT user_calls_bot, bot_calls_user
		FROM call_names
		WHERE guild_id = ? AND user_id = ?
	`, guildID, userID).Scan(&userCallsBot, &botCallsUser)
	if err == sql.ErrNoRows {
		return CallNamePreference{}, nil
	}
	if err != nil {
		return CallNamePreference{}, fmt.Errorf("querying call names: %w", err)
	}

	return CallNamePreference{
		UserCallsBot: userCallsBot.String,
		BotCallsUser: botCallsUser.String,
	}, nil
}

// Close releases the backing database.
func (s *CallNameStore) Close() error {
	return s.eng.Close()
}
