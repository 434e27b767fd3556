// ABOUTME: Append-only replay log of chat exchanges with stable sequential ids
// ABOUTME: Ids come from SQLite AUTOINCREMENT and are never reused; records are immutable

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const replaySchema = `
	CREATE TABLE IF NOT EXISTS replay_records (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		ts_utc       TEXT NOT NULL,
		guild_id     INTEGER NOT NULL,
		guild_name   TEXT,
		channel_id   INTEGER NOT NULL,
		channel_name TEXT,
		user_id      INTEGER NOT NULL,
		user_name    TEXT NOT NULL,
		user_display TEXT NOT NULL,
		trigger_kind TEXT NOT NULL,
		prompt       TEXT NOT NULL,
		reply_length INTEGER NOT NULL,

		CHECK (trigger_kind IN ('command', 'mention'))
	);

	CREATE INDEX IF NOT EXISTS idx_replay_guild ON replay_records(guild_id, id);
`

// ReplayLog records every completed chat exchange for after-the-fact
// audit and replay. Records are write-once.
type ReplayLog struct {
	eng *engine
}

// OpenReplayLog opens the replay-log database at path.
func OpenReplayLog(path string) (*ReplayLog, error) {
	eng, err := openEngine(path, "replay", replaySchema)
	if err != nil {
		return nil, err
	}
	return &ReplayLog{eng: eng}, nil
}

// LogChat appends one record and returns its assigned sequential id.
// Concurrent callers each get a unique id.
func (l *ReplayLog) LogChat(ctx context.Context, rec ReplayRecord) (int64, error) {
	if err := l.eng.guard(); err != nil {
		return 0, err
	}

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	result, err := l.eng.db.ExecContext(ctx, `
		INSERT INTO replay_records (
			ts_utc, guild_id, guild_name, channel_id, channel_name,
			user_id, user_name, user_display, trigger_kind, prompt, reply_length
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ts.UTC().Format(time.RFC3339),
		rec.GuildID,
		rec.GuildName,
		rec.ChannelID,
		rec.ChannelName,
		rec.UserID,
		rec.UserName,
		rec.UserDisplay,
		rec.Trigger,
		rec.Prompt,
		rec.ReplyLength,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting replay record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting record id: %w", err)
	}

	l.eng.logger.Debug("logged chat", "id", id, "guild_id", rec.GuildID, "trigger", rec.Trigger)
	return id, nil
}

// RecentIndexed returns at most limit records, newest first, filtered to
// guildID if non-nil. Ids are the persisted sequential ids.
func (l *ReplayLog) RecentIndexed(ctx context.Context, limit int, guildID *int64) ([]IndexedReplay, error) {
	if err := l.eng.guard(); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	query := `
		SELECT id, ts_utc, guild_id, guild_name, channel_id, channel_name,
		       user_id, user_name, user_display, trigger_kind, prompt, reply_length
		FROM replay_records
	`
	var args []any
	if guildID != nil {
		query += ` WHERE guild_id = ?`
		args = append(args, *guildID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.eng.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying replay records: %w", err)
	}
	defer rows.Close()

	var records []IndexedReplay
	for rows.Next() {
		rec, id, err := scanReplay(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, IndexedReplay{ID: id, Record: rec})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating replay rows: %w", err)
	}
	return records, nil
}

// GetByIndex returns the record with the given id, or ErrNotFound. When
// guildID is non-nil, a record that exists under a different guild also
// reads as ErrNotFound so one guild cannot inspect another's exchanges.
func (l *ReplayLog) GetByIndex(ctx context.Context, id int64, guildID *int64) (*ReplayRecord, error) {
	if err := l.eng.guard(); err != nil {
		return nil, err
	}

	query := `
		SELECT id, ts_utc, guild_id, guild_name, channel_id, channel_name,
		       user_id, user_name, user_display, trigger_kind, prompt, reply_length
		FROM replay_records
		WHERE id = ?
	`
	args := []any{id}
	if guildID != nil {
		query += ` AND guild_id = ?`
		args = append(args, *guildID)
	}

	rows, err := l.eng.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying replay record: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("querying replay record: %w", err)
		}
		return nil, ErrNotFound
	}

	rec, _, err := scanReplay(rows)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanReplay(rows *sql.Rows) (ReplayRecord, int64, error) {
	var rec ReplayRecord
	var id int64
	var tsStr string
	var guildName, channelName sql.NullString

	if err := rows.Scan(
		&id,
		&tsStr,
		&rec.GuildID,
		&guildName,
		&rec.ChannelID,
		&channelName,
		&rec.UserID,
		&rec.UserName,
		&rec.UserDisplay,
		&rec.Trigger,
		&rec.Prompt,
		&rec.ReplyLength,
	); err != nil {
		return ReplayRecord{}, 0, fmt.Errorf("scanning replay row: %w", err)
	}

	rec.GuildName = guildName.String
	rec.ChannelName = channelName.String

	ts, err := time.Parse(time.RFC3339, tsStr)
	if err != nil {
		return ReplayRecord{}, 0, fmt.Errorf("parsing ts_utc: %w", err)
	}
	rec.Timestamp = ts
	return rec, id, nil
}

// Close releases the backing database.
func (l *ReplayLog) Close() error {
	return l.eng.Close()
}
