// ABOUTME: Owner-facing rendering of the replay log
// ABOUTME: Produces the ls summary and per-record detail text

package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/akikohatsune/neru/internal/store"
)

// replaySummaryLimit bounds the ls view so it stays readable in chat.
const replaySummaryLimit = 30

// ReplaySummary renders the most recent replay records for a guild scope
// as one line per record, newest first.
func (s *Service) ReplaySummary(ctx context.Context, guildID *int64) (string, error) {
	records, err := s.replay.RecentIndexed(ctx, replaySummaryLimit, guildID)
	if err != nil {
		return "", fmt.Errorf("reading replay log: %w", err)
	}
	if len(records) == 0 {
		return "No chat replays yet.", nil
	}

	var b strings.Builder
	b.WriteString("Replay logs (newest first):")
	for _, rec := range records {
		prompt := strings.TrimSpace(strings.ReplaceAll(rec.Record.Prompt, "\n", " "))
		if runes := []rune(prompt); len(runes) > 70 {
			prompt = string(runes[:67]) + "..."
		}
		fmt.Fprintf(&b, "\n[%d] %s | %s (%d) | %s | %s",
			rec.ID,
			rec.Record.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
			rec.Record.UserDisplay,
			rec.Record.UserID,
			rec.Record.Trigger,
			prompt,
		)
	}
	return b.String(), nil
}

// ReplayDetail renders one replay record in full. Returns
// store.ErrNotFound when the id does not exist in the given scope.
func (s *Service) ReplayDetail(ctx context.Context, id int64, guildID *int64) (string, error) {
	rec, err := s.replay.GetByIndex(ctx, id, guildID)
	if err != nil {
		return "", err
	}
	return renderReplayDetail(id, rec), nil
}

func renderReplayDetail(id int64, rec *store.ReplayRecord) string {
	prompt := strings.TrimSpace(rec.Prompt)
	if prompt == "" {
		prompt = "(empty)"
	}
	lines := []string{
		fmt.Sprintf("Replay #%d", id),
		fmt.Sprintf("Time: %s", rec.Timestamp.UTC().Format("2006-01-02T15:04:05Z")),
		fmt.Sprintf("Guild: %s (%d)", rec.GuildName, rec.GuildID),
		fmt.Sprintf("Channel: %s (%d)", rec.ChannelName, rec.ChannelID),
		fmt.Sprintf("User: %s (%d)", rec.UserDisplay, rec.UserID),
		fmt.Sprintf("Trigger: %s", rec.Trigger),
		fmt.Sprintf("Reply length: %d", rec.ReplyLength),
		"Prompt:",
		prompt,
	}
	return strings.Join(lines, "\n")
}
