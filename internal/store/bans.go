// ABOUTME: Per-(guild, user) ban list with upsert semantics and a reason trail
// ABOUTME: Ban reports created-vs-updated; Unban reports whether an entry existed

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const banSchema = `
	CREATE TABLE IF NOT EXISTS bans (
		guild_id   INTEGER NOT NULL,
		user_id    INTEGER NOT NULL,
		banned_by  INTEGER NOT NULL,
		reason     TEXT,
		created_at TEXT NOT NULL,

		PRIMARY KEY (guild_id, user_id)
	);
`

// BanStore holds the per-(guild, user) membership set of banned users.
type BanStore struct {
	eng *engine
}

// OpenBanStore opens the ban-list database at path.
func OpenBanStore(path string) (*BanStore, error) {
	eng, err := openEngine(path, "bans", banSchema)
	if err != nil {
		return nil, err
	}
	return &BanStore{eng: eng}, nil
}

// Ban inserts a ban entry for (guildID, userID) and returns true, or
// updates the existing entry's author/reason/timestamp and returns
// false. There is never more than one entry per key.
func (s *BanStore) Ban(ctx context.Context, guildID, userID, bannedBy int64, reason string) (bool, error) {
	if err := s.eng.guard(); err != nil {
		return false, err
	}

	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.eng.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `
		SELECT 1 FROM bans WHERE guild_id = ? AND user_id = ?
	`, guildID, userID).Scan(&exists)

	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bans (guild_id, user_id, banned_by, reason, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, guildID, userID, bannedBy, nullString(reason), now); err != nil {
			return false, fmt.Errorf("inserting ban: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("committing ban: %w", err)
		}
		s.eng.logger.Debug("banned user", "guild_id", guildID, "user_id", userID)
		return true, nil
	case err != nil:
		return false, fmt.Errorf("checking existing ban: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE bans
		SET banned_by = ?, reason = ?, created_at = ?
		WHERE guild_id = ? AND user_id = ?
	`, bannedBy, nullString(reason), now, guildID, userID); err != nil {
		return false, fmt.Errorf("updating ban: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing ban update: %w", err)
	}
	s.eng.logger.Debug("updated ban", "guild_id", guildID, "user_id", userID)
	return false, nil
}

// Unban deletes the entry for (guildID, userID) and reports whether one
// existed.
func (s *BanStore) Unban(ctx context.Context, guildID, userID int64) (bool, error) {
	if err := s.eng.guard(); err != nil {
		return false, err
	}

	result, err := s.eng.db.ExecContext(ctx, `
		DELETE FROM bans WHERE guild_id = ? AND user_id = ?
	`, guildID, userID)
	if err != nil {
		return false, fmt.Errorf("deleting ban: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	if affected > 0 {
		s.eng.logger.Debug("unbanned user", "guild_id", guildID, "user_id", userID)
	}
	return affected > 0, nil
}

// IsBanned reports whether (guildID, userID) has an active ban entry.
func (s *BanStore) IsBanned(ctx context.Context, guildID, userID int64) (bool, error) {
	if err := s.eng.guard(); err != nil {
		return false, err
	}

	var exists int
	err := s.eng.db.QueryRowContext(ctx, `
		SELECT 1 FROM bans WHERE guild_id = ? AND user_id = ?
	`, guildID, userID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying ban: %w", err)
	}
	return true, nil
}

// Entry returns the full ban entry for (guildID, userID), or ErrNotFound.
func (s *BanStore) Entry(ctx context.Context, guildID, userID int64) (*BanEntry, error) {
	if err := s.eng.guard(); err != nil {
		return nil, err
	}

	var entry BanEntry
	var reason sql.NullString
	var createdAtStr string
	err := s.eng.db.QueryRowContext(ctx, `
		SELECT guild_id, user_id, banned_by, reason, created_at
		FROM bans
		WHERE guild_id = ? AND user_id = ?
	`, guildID, userID).Scan(&entry.GuildID, &entry.UserID, &entry.BannedBy, &reason, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying ban entry: %w", err)
	}

	if reason.Valid {
		entry.Reason = reason.String
	}
	entry.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &entry, nil
}

// Close releases the backing database.
func (s *BanStore) Close() error {
	return s.eng.Close()
}

// nullString returns nil for empty strings, otherwise the string itself.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
