// ABOUTME: Per-channel bounded conversation history with idle-channel eviction
// ABOUTME: Appends trim FIFO to the configured cap inside one transaction

package store

import (
	"context"
	"fmt"
	"time"
)

const historySchema = `
	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_id INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		recorded_at TEXT NOT NULL,

		CHECK (role IN ('user', 'assistant'))
	);

	CREATE INDEX IF NOT EXISTS idx_turns_channel ON turns(channel_id, id);

	CREATE TABLE IF NOT EXISTS channel_activity (
		channel_id INTEGER PRIMARY KEY,
		last_active TEXT NOT NULL
	);
`

// HistoryStore keeps a bounded ordered log of chat turns per channel.
// Appends beyond maxTurns drop the oldest turns first.
type HistoryStore struct {
	eng      *engine
	maxTurns int
}

// OpenHistoryStore opens the history database at path. maxTurns is the
// per-channel cap and must be at least 1.
func OpenHistoryStore(path string, maxTurns int) (*HistoryStore, error) {
	if maxTurns < 1 {
		return nil, fmt.Errorf("max history turns must be >= 1, got %d", maxTurns)
	}
	eng, err := openEngine(path, "history", historySchema)
	if err != nil {
		return nil, err
	}
	return &HistoryStore{eng: eng, maxTurns: maxTurns}, nil
}

// Append records one turn for the channel, trims the channel to the cap,
// and refreshes its last-activity timestamp, all in one transaction.
func (s *HistoryStore) Append(ctx context.Context, channelID int64, role, content string) error {
	if err := s.eng.guard(); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.eng.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO turns (channel_id, role, content, recorded_at)
		VALUES (?, ?, ?, ?)
	`, channelID, role, content, now); err != nil {
		return fmt.Errorf("inserting turn: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM turns
		WHERE channel_id = ?
		  AND id NOT IN (
			SELECT id FROM turns
			WHERE channel_id = ?
			ORDER BY id DESC
			LIMIT ?
		  )
	`, channelID, channelID, s.maxTurns); err != nil {
		return fmt.Errorf("trimming history: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO channel_activity (channel_id, last_active)
		VALUES (?, ?)
		ON CONFLICT(channel_id) DO UPDATE SET last_active = excluded.last_active
	`, channelID, now); err != nil {
		return fmt.Errorf("updating channel activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing append: %w", err)
	}

	s.eng.logger.Debug("appended turn", "channel_id", channelID, "role", role)
	return nil
}

// History returns the channel's current turns, oldest first. An unknown
// channel yields an empty slice.
func (s *HistoryStore) History(ctx context.Context, channelID int64) ([]Turn, error) {
	if err := s.eng.guard(); err != nil {
		return nil, err
	}

	rows, err := s.eng.db.QueryContext(ctx, `
		SELECT role, content, recorded_at
		FROM turns
		WHERE channel_id = ?
		ORDER BY id ASC
	`, channelID)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var recordedAtStr string
		if err := rows.Scan(&t.Role, &t.Content, &recordedAtStr); err != nil {
			return nil, fmt.Errorf("scanning turn row: %w", err)
		}
		t.RecordedAt, err = time.Parse(time.RFC3339, recordedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing recorded_at: %w", err)
		}
		turns = append(turns, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turn rows: %w", err)
	}

	return turns, nil
}

// ClearChannel deletes all turns and the activity timestamp for the
// channel. Clearing an unknown channel is not an error.
func (s *HistoryStore) ClearChannel(ctx context.Context, channelID int64) error {
	if err := s.eng.guard(); err != nil {
		return err
	}

	tx, err := s.eng.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE channel_id = ?`, channelID); err != nil {
		return fmt.Errorf("deleting turns: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM channel_activity WHERE channel_id = ?`, channelID); err != nil {
		return fmt.Errorf("deleting channel activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing clear: %w", err)
	}

	s.eng.logger.Debug("cleared channel", "channel_id", channelID)
	return nil
}

// PruneInactive deletes every channel whose last activity is strictly
// older than now minus idleTTL, and reports how many channels were
// evicted. Safe to call concurrently with Append and History.
func (s *HistoryStore) PruneInactive(ctx context.Context, idleTTL time.Duration) (int, error) {
	if err := s.eng.guard(); err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-idleTTL).Format(time.RFC3339)

	tx, err := s.eng.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM turns
		WHERE channel_id IN (
			SELECT channel_id FROM channel_activity WHERE last_active < ?
		)
	`, cutoff); err != nil {
		return 0, fmt.Errorf("pruning turns: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		DELETE FROM channel_activity WHERE last_active < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning channel activity: %w", err)
	}

	pruned, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing prune: %w", err)
	}

	if pruned > 0 {
		s.eng.logger.Debug("pruned inactive channels", "count", pruned)
	}
	return int(pruned), nil
}

// Close releases the backing database.
func (s *HistoryStore) Close() error {
	return s.eng.Close()
}
