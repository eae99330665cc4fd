package state

import (
	"testing"
	"time"

	"github.com/tessro/riffbar/internal/core"
)

func playing(id string, isPlaying bool, progress int64) *core.PlaybackSnapshot {
	return &core.PlaybackSnapshot{
		IsPlaying:  isPlaying,
		ProgressMs: progress,
		Track:      &core.Track{ID: id, DurationMs: 180_000},
	}
}

func always(string, bool) bool { return true }

func drained(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestUpdatePlaybackNotifiesOnlyOnChange(t *testing.T) {
	s := New()
	ch, cancel := s.Subscribe()
	defer cancel()

	sameAsBefore := func(prevID string, prevPlaying bool) bool {
		return prevID != "t1" || !prevPlaying
	}

	if !s.UpdatePlayback(playing("t1", true, 0), sameAsBefore) {
		t.Fatal("first snapshot should count as a change")
	}
	if !drained(ch) {
		t.Fatal("expected notification")
	}

	if s.UpdatePlayback(playing("t1", true, 5000), sameAsBefore) {
		t.Error("progress-only update should not count as a change")
	}
	if drained(ch) {
		t.Error("unexpected notification for progress-only update")
	}

	// The fresh progress is stored regardless.
	if got := s.Playback().ProgressMs; got != 5000 {
		t.Errorf("ProgressMs = %d, want 5000", got)
	}
}

func TestOptimisticOverlay(t *testing.T) {
	s := New()
	s.UpdatePlayback(playing("t1", true, 0), always)

	gen := s.ApplyOptimistic(false)
	if s.IsPlaying() {
		t.Fatal("optimistic pause should be visible immediately")
	}
	if !s.View().Pending {
		t.Error("View().Pending = false while the command is in flight")
	}

	// An in-flight overlay survives an authoritative read that still says playing.
	s.UpdatePlayback(playing("t1", true, 1000), always)
	if s.IsPlaying() {
		t.Error("in-flight overlay should survive a stale poll")
	}

	// Once settled, the next authoritative read wins.
	s.Settle(gen)
	s.UpdatePlayback(playing("t1", false, 1100), always)
	if s.IsPlaying() {
		t.Error("IsPlaying() = true, want false from the authoritative read")
	}
	s.UpdatePlayback(playing("t1", true, 1200), always)
	if !s.IsPlaying() {
		t.Error("collapsed overlay should no longer mask authoritative state")
	}
}

func TestRollbackRestoresConfirmed(t *testing.T) {
	s := New()
	s.UpdatePlayback(playing("t1", true, 0), always)

	gen := s.ApplyOptimistic(false)
	if !s.Rollback(gen) {
		t.Fatal("Rollback() = false, want true")
	}
	if !s.IsPlaying() {
		t.Error("visible state should revert to playing after rollback")
	}
}

func TestRollbackLastWriteWins(t *testing.T) {
	s := New()
	s.UpdatePlayback(playing("t1", true, 0), always)

	first := s.ApplyOptimistic(false)
	second := s.ApplyOptimistic(true)

	if s.Rollback(first) {
		t.Error("stale generation must not roll back a newer command")
	}
	if !s.IsPlaying() {
		t.Error("newest optimistic value should remain visible")
	}
	if !s.Rollback(second) {
		t.Error("newest generation should roll back")
	}
}

func TestRollbackRestoresEarlierOverride(t *testing.T) {
	s := New()
	s.UpdatePlayback(playing("t1", true, 0), always)

	pause := s.ApplyOptimistic(false)
	s.Settle(pause)

	resume := s.ApplyOptimistic(true)
	if !s.Rollback(resume) {
		t.Fatal("Rollback() = false, want true")
	}
	if s.IsPlaying() {
		t.Error("IsPlaying() = true, want the paused value shown before the failed resume")
	}
	if s.View().Pending {
		t.Error("restored override belongs to a settled command")
	}

	// The restored override still gives way to the next authoritative read.
	s.UpdatePlayback(playing("t1", true, 500), always)
	if !s.IsPlaying() {
		t.Error("authoritative read should replace the restored override")
	}
}

func TestRollbackSkipsSupersededOverride(t *testing.T) {
	s := New()
	s.UpdatePlayback(playing("t1", true, 0), always)

	pause := s.ApplyOptimistic(false)
	s.Settle(pause)
	resume := s.ApplyOptimistic(true)

	// A read while the resume is in flight replaces the settled pause.
	s.UpdatePlayback(playing("t1", true, 200), always)
	s.Rollback(resume)

	if !s.IsPlaying() {
		t.Error("IsPlaying() = false, want the snapshot read after the pause settled")
	}
}

func TestBuriedOverrideSettlesAndRollsBack(t *testing.T) {
	s := New()
	s.UpdatePlayback(playing("t1", true, 0), always)

	first := s.ApplyOptimistic(false)
	second := s.ApplyOptimistic(true)
	third := s.ApplyOptimistic(false)

	// second fails while buried; first succeeds while buried.
	if s.Rollback(second) {
		t.Error("Rollback() of a buried override = true, want false")
	}
	s.Settle(first)

	if !s.Rollback(third) {
		t.Fatal("Rollback() = false, want true")
	}
	if s.IsPlaying() {
		t.Error("IsPlaying() = true, want the settled pause from first")
	}
	s.UpdatePlayback(playing("t1", true, 100), always)
	if !s.IsPlaying() {
		t.Error("a settled override must not outlive the next authoritative read")
	}
}

func TestExpire(t *testing.T) {
	s := New()
	s.UpdatePlayback(playing("t1", true, 0), always)
	s.ReplaceQueue(&core.QueueSnapshot{Queue: []core.QueueItem{{Name: "a"}}})

	s.Expire()

	v := s.View()
	if v.Playback != nil || v.Queue != nil {
		t.Error("snapshots should be cleared")
	}
	if v.Message.Text != SessionExpiredText || v.Message.Level != LevelError {
		t.Errorf("Message = %+v", v.Message)
	}
	if !v.Message.Expires.IsZero() {
		t.Error("session-expired message must not expire")
	}
}

func TestMessageExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New()
	s.SetClock(func() time.Time { return now })

	s.SetMessage("Track added to queue!", LevelSuccess, 3*time.Second)
	if s.Message().Text == "" {
		t.Fatal("message should be visible before expiry")
	}

	now = now.Add(3 * time.Second)
	if !s.Message().Empty() {
		t.Error("message should be gone at expiry")
	}
}

func TestSubscribeCoalesces(t *testing.T) {
	s := New()
	ch, cancel := s.Subscribe()

	s.ReplaceQueue(nil)
	s.ReplaceQueue(nil)
	s.ReplaceQueue(nil)

	if !drained(ch) {
		t.Fatal("expected one notification")
	}
	if drained(ch) {
		t.Error("bursts should coalesce into one notification")
	}

	cancel()
	s.ReplaceQueue(nil)
	if drained(ch) {
		t.Error("no notification after unsubscribe")
	}
}
