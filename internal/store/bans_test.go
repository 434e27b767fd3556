// ABOUTME: Tests for the ban-list store
// ABOUTME: Covers upsert semantics, unban, lookups, and the audit entry

package store

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestBans(t *testing.T) *BanStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "bans.db")
	s, err := OpenBanStore(dbPath)
	if err != nil {
		t.Fatalf("OpenBanStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBan_ThenIsBanned(t *testing.T) {
	s := newTestBans(t)
	ctx := context.Background()

	created, err := s.Ban(ctx, 10, 20, 1, "spamming")
	if err != nil {
		t.Fatalf("Ban failed: %v", err)
	}
	if !created {
		t.Error("expected created=true on first ban")
	}

	banned, err := s.IsBanned(ctx, 10, 20)
	if err != nil {
		t.Fatalf("IsBanned failed: %v", err)
	}
	if !banned {
		t.Error("expected user to be banned")
	}

	// Same user in a different guild is unaffected.
	banned, err = s.IsBanned(ctx, 11, 20)
	if err != nil {
		t.Fatalf("IsBanned failed: %v", err)
	}
	if banned {
		t.Error("ban must be scoped to the guild")
	}
}

func TestBan_TwiceUpdatesSingleEntry(t *testing.T) {
	s := newTestBans(t)
	ctx := context.Background()

	created, err := s.Ban(ctx, 10, 20, 1, "first reason")
	if err != nil {
		t.Fatalf("Ban failed: %v", err)
	}
	if !created {
		t.Error("expected created=true on first ban")
	}

	created, err = s.Ban(ctx, 10, 20, 2, "second reason")
	if err != nil {
		t.Fatalf("Ban (update) failed: %v", err)
	}
	if created {
		t.Error("expected created=false on second ban")
	}

	entry, err := s.Entry(ctx, 10, 20)
	if err != nil {
		t.Fatalf("Entry failed: %v", err)
	}
	if entry.BannedBy != 2 {
		t.Errorf("BannedBy not updated: got %d, want 2", entry.BannedBy)
	}
	if entry.Reason != "second reason" {
		t.Errorf("Reason not updated: got %q", entry.Reason)
	}

	removed, err := s.Unban(ctx, 10, 20)
	if err != nil {
		t.Fatalf("Unban failed: %v", err)
	}
	if !removed {
		t.Error("expected exactly one entry to remove")
	}
	if removed, _ := s.Unban(ctx, 10, 20); removed {
		t.Error("second unban should find nothing")
	}
}

func TestUnban_ThenIsBanned(t *testing.T) {
	s := newTestBans(t)
	ctx := context.Background()

	if _, err := s.Ban(ctx, 10, 20, 1, ""); err != nil {
		t.Fatalf("Ban failed: %v", err)
	}

	removed, err := s.Unban(ctx, 10, 20)
	if err != nil {
		t.Fatalf("Unban failed: %v", err)
	}
	if !removed {
		t.Error("expected removed=true")
	}

	banned, err := s.IsBanned(ctx, 10, 20)
	if err != nil {
		t.Fatalf("IsBanned failed: %v", err)
	}
	if banned {
		t.Error("expected user to be unbanned")
	}
}

func TestBan_EmptyReasonReadsEmpty(t *testing.T) {
	s := newTestBans(t)
	ctx := context.Background()

	if _, err := s.Ban(ctx, 10, 20, 1, ""); err != nil {
		t.Fatalf("Ban failed: %v", err)
	}

	entry, err := s.Entry(ctx, 10, 20)
	if err != nil {
		t.Fatalf("Entry failed: %v", err)
	}
	if entry.Reason != "" {
		t.Errorf("expected empty reason, got %q", entry.Reason)
	}
}

func TestBanEntry_NotFound(t *testing.T) {
	s := newTestBans(t)

	if _, err := s.Entry(context.Background(), 1, 2); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBan_ClosedStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "bans.db")
	s, err := OpenBanStore(dbPath)
	if err != nil {
		t.Fatalf("OpenBanStore failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := s.IsBanned(context.Background(), 1, 2); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
