package app_test

import (
	"context"
	"testing"
	"time"
)

func TestPhaseTimersUseAbsoluteBounds(t *testing.T) {
	ctx := context.Background()
	service, store, session := newBaitFixture(t, []string{"host"})

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	service.WithClock(func() time.Time { return t0 })

	timer, err := service.StartQuestionTimer(ctx, session.ID, 0, 30*time.Second)
	if err != nil {
		t.Fatalf("start answer timer: %v", err)
	}
	if !timer.Running || !timer.StartedAt.Equal(t0) || !timer.EndsAt.Equal(t0.Add(30*time.Second)) {
		t.Fatalf("unexpected timer bounds: %+v", timer)
	}

	// Remaining time is derived from the absolute end, never counted down.
	if got := timer.Remaining(t0.Add(10 * time.Second)); got != 20*time.Second {
		t.Fatalf("expected 20s remaining, got %s", got)
	}
	if got := timer.Remaining(t0.Add(40 * time.Second)); got != 0 {
		t.Fatalf("expired timer must report zero, got %s", got)
	}

	q, _ := store.GetQuestion(ctx, session.ID, 0)
	if !q.AnswerTimer.Running || !q.AnswerTimer.EndsAt.Equal(t0.Add(30*time.Second)) {
		t.Fatalf("answer timer not persisted: %+v", q.AnswerTimer)
	}
}

func TestStartTimerDefaultsPhaseLength(t *testing.T) {
	ctx := context.Background()
	service, _, session := newBaitFixture(t, []string{"host"})

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	service.WithClock(func() time.Time { return t0 })
	service.WithPhaseDurations(45*time.Second, 25*time.Second)

	answer, err := service.StartQuestionTimer(ctx, session.ID, 0, 0)
	if err != nil {
		t.Fatalf("start answer timer: %v", err)
	}
	if !answer.EndsAt.Equal(t0.Add(45 * time.Second)) {
		t.Fatalf("expected configured answer length, got %+v", answer)
	}

	bait, err := service.StartBaitTimer(ctx, session.ID, 0, 0)
	if err != nil {
		t.Fatalf("start bait timer: %v", err)
	}
	if !bait.EndsAt.Equal(t0.Add(25 * time.Second)) {
		t.Fatalf("expected configured bait length, got %+v", bait)
	}
}

func TestStopTimerKeepsTimestamps(t *testing.T) {
	ctx := context.Background()
	service, store, session := newBaitFixture(t, []string{"host"})

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	service.WithClock(func() time.Time { return t0 })

	if _, err := service.StartBaitTimer(ctx, session.ID, 0, 20*time.Second); err != nil {
		t.Fatalf("start bait timer: %v", err)
	}
	if err := service.StopBaitTimer(ctx, session.ID, 0); err != nil {
		t.Fatalf("stop bait timer: %v", err)
	}

	q, _ := store.GetQuestion(ctx, session.ID, 0)
	if q.BaitTimer.Running {
		t.Fatalf("bait timer still running after stop")
	}
	if !q.BaitTimer.StartedAt.Equal(t0) || !q.BaitTimer.EndsAt.Equal(t0.Add(20*time.Second)) {
		t.Fatalf("stop must preserve phase bounds: %+v", q.BaitTimer)
	}
	if got := q.BaitTimer.Remaining(t0.Add(5 * time.Second)); got != 0 {
		t.Fatalf("stopped timer must report zero remaining, got %s", got)
	}

	// Each phase timer is independent: the answer timer is untouched.
	if q.AnswerTimer.Running || !q.AnswerTimer.StartedAt.IsZero() {
		t.Fatalf("answer timer mutated by bait stop: %+v", q.AnswerTimer)
	}
}
