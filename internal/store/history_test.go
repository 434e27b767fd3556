// ABOUTME: Tests for the bounded per-channel history store
// ABOUTME: Covers cap enforcement, ordering, clearing, and idle pruning

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestHistory(t *testing.T, maxTurns int) *HistoryStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "history.db")
	s, err := OpenHistoryStore(dbPath, maxTurns)
	if err != nil {
		t.Fatalf("OpenHistoryStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenHistoryStore_InvalidCap(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	if _, err := OpenHistoryStore(dbPath, 0); err == nil {
		t.Fatal("expected error for maxTurns=0")
	}
}

func TestHistory_AppendAndRead(t *testing.T) {
	s := newTestHistory(t, 10)
	ctx := context.Background()

	if err := s.Append(ctx, 100, RoleUser, "hello"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := s.Append(ctx, 100, RoleAssistant, "hi there"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	turns, err := s.History(ctx, 100)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != RoleUser || turns[0].Content != "hello" {
		t.Errorf("first turn mismatch: %+v", turns[0])
	}
	if turns[1].Role != RoleAssistant || turns[1].Content != "hi there" {
		t.Errorf("second turn mismatch: %+v", turns[1])
	}
}

func TestHistory_UnknownChannelEmpty(t *testing.T) {
	s := newTestHistory(t, 10)

	turns, err := s.History(context.Background(), 999)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("expected empty history, got %d turns", len(turns))
	}
}

func TestHistory_CapKeepsMostRecent(t *testing.T) {
	s := newTestHistory(t, 3)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		if err := s.Append(ctx, 42, RoleUser, fmt.Sprintf("msg-%d", i)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	turns, err := s.History(ctx, 42)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns after trimming, got %d", len(turns))
	}
	for i, want := range []string{"msg-4", "msg-5", "msg-6"} {
		if turns[i].Content != want {
			t.Errorf("turn %d: got %q, want %q", i, turns[i].Content, want)
		}
	}
}

func TestHistory_CapIsPerChannel(t *testing.T) {
	s := newTestHistory(t, 2)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := s.Append(ctx, 1, RoleUser, fmt.Sprintf("a-%d", i)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if err := s.Append(ctx, 2, RoleUser, fmt.Sprintf("b-%d", i)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	for ch, prefix := range map[int64]string{1: "a", 2: "b"} {
		turns, err := s.History(ctx, ch)
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(turns) != 2 {
			t.Fatalf("channel %d: expected 2 turns, got %d", ch, len(turns))
		}
		if turns[0].Content != prefix+"-2" || turns[1].Content != prefix+"-3" {
			t.Errorf("channel %d: unexpected turns %+v", ch, turns)
		}
	}
}

func TestHistory_ClearChannel(t *testing.T) {
	s := newTestHistory(t, 5)
	ctx := context.Background()

	if err := s.Append(ctx, 7, RoleUser, "before clear"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := s.ClearChannel(ctx, 7); err != nil {
		t.Fatalf("ClearChannel failed: %v", err)
	}

	turns, err := s.History(ctx, 7)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected empty history after clear, got %d turns", len(turns))
	}

	// A fresh history after clearing is unaffected by pre-clear state.
	if err := s.Append(ctx, 7, RoleUser, "after clear"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	turns, err = s.History(ctx, 7)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(turns) != 1 || turns[0].Content != "after clear" {
		t.Errorf("unexpected post-clear history: %+v", turns)
	}

	// Clearing an unknown channel is not an error.
	if err := s.ClearChannel(ctx, 12345); err != nil {
		t.Errorf("ClearChannel on unknown channel failed: %v", err)
	}
}

// backdateChannel rewrites a channel's last-activity timestamp so prune
// behavior can be tested without sleeping.
func backdateChannel(t *testing.T, s *HistoryStore, channelID int64, age time.Duration) {
	t.Helper()

	ts := time.Now().UTC().Add(-age).Format(time.RFC3339)
	if _, err := s.eng.db.Exec(
		`UPDATE channel_activity SET last_active = ? WHERE channel_id = ?`, ts, channelID,
	); err != nil {
		t.Fatalf("backdating channel %d: %v", channelID, err)
	}
}

func TestHistory_PruneInactive(t *testing.T) {
	s := newTestHistory(t, 5)
	ctx := context.Background()

	if err := s.Append(ctx, 1, RoleUser, "stale"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := s.Append(ctx, 2, RoleUser, "fresh"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	ttl := 60 * time.Second
	backdateChannel(t, s, 1, ttl+time.Second)
	backdateChannel(t, s, 2, ttl-time.Second)

	pruned, err := s.PruneInactive(ctx, ttl)
	if err != nil {
		t.Fatalf("PruneInactive failed: %v", err)
	}
	if pruned != 1 {
		t.Errorf("expected 1 pruned channel, got %d", pruned)
	}

	stale, err := s.History(ctx, 1)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("stale channel should be empty, got %d turns", len(stale))
	}

	fresh, err := s.History(ctx, 2)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(fresh) != 1 {
		t.Errorf("fresh channel should survive, got %d turns", len(fresh))
	}
}

func TestHistory_PruneConcurrentWithAppend(t *testing.T) {
	s := newTestHistory(t, 10)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 60)

	for w := 0; w < 5; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if err := s.Append(ctx, int64(w), RoleUser, fmt.Sprintf("w%d-%d", w, i)); err != nil {
					errs <- err
				}
			}
		}(w)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			if _, err := s.PruneInactive(ctx, time.Hour); err != nil {
				errs <- err
			}
		}
	}()

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent operation failed: %v", err)
	}

	// Nothing was idle for an hour, so every append must have survived.
	for w := int64(0); w < 5; w++ {
		turns, err := s.History(ctx, w)
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(turns) != 10 {
			t.Errorf("channel %d: expected 10 turns, got %d", w, len(turns))
		}
	}
}

func TestHistory_ClosedStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	s, err := OpenHistoryStore(dbPath, 5)
	if err != nil {
		t.Fatalf("OpenHistoryStore failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := s.Append(context.Background(), 1, RoleUser, "x"); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := s.History(context.Background(), 1); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
