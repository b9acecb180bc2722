package app_test

import (
	"context"
	"testing"
)

func TestRecordResponseScoresBySpeed(t *testing.T) {
	ctx := context.Background()
	service, store, session := newBaitFixture(t, []string{"host"})
	host, err := service.Participant(ctx, session.ID, "host")
	if err != nil {
		t.Fatalf("lookup host: %v", err)
	}

	cases := []struct {
		index      int
		responseMs int64
		want       int
	}{
		{0, 0, 200},     // instant answer takes the full bonus
		{1, 15000, 100}, // bonus window closes exactly at 15s
	}
	for _, tc := range cases {
		resp, err := service.RecordResponse(ctx, session.ID, host.ID, tc.index, "Paris", true, tc.responseMs, false)
		if err != nil {
			t.Fatalf("record q%d: %v", tc.index, err)
		}
		if resp.PointsEarned != tc.want {
			t.Fatalf("q%d at %dms: expected %d points, got %d", tc.index, tc.responseMs, tc.want, resp.PointsEarned)
		}
	}

	updated, _ := store.GetParticipantByID(ctx, host.ID)
	if updated.Score != 300 || updated.CorrectCount != 2 || updated.AnsweredCount != 2 {
		t.Fatalf("aggregates off: %+v", updated)
	}
	if updated.AvgResponseMs != 7500 {
		t.Fatalf("expected avg 7500ms, got %d", updated.AvgResponseMs)
	}
}

func TestRecordResponseFloorsSlowCorrectAnswers(t *testing.T) {
	ctx := context.Background()
	service, _, session := newBaitFixture(t, []string{"host"})
	host, _ := service.Participant(ctx, session.ID, "host")

	resp, err := service.RecordResponse(ctx, session.ID, host.ID, 0, "Paris", true, 20000, false)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if resp.PointsEarned != 100 {
		t.Fatalf("slow correct answer must floor at 100, got %d", resp.PointsEarned)
	}
}

func TestRecordResponseCapsNegativeResponseTime(t *testing.T) {
	ctx := context.Background()
	service, _, session := newBaitFixture(t, []string{"host"})
	host, _ := service.Participant(ctx, session.ID, "host")

	// A spoofed negative elapsed time must not beat the 200-point ceiling.
	resp, err := service.RecordResponse(ctx, session.ID, host.ID, 0, "Paris", true, -1500000, false)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if resp.PointsEarned != 200 {
		t.Fatalf("expected the 200-point cap, got %d", resp.PointsEarned)
	}
}

func TestRecordResponseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	service, store, session := newBaitFixture(t, []string{"host"})
	host, _ := service.Participant(ctx, session.ID, "host")

	first, err := service.RecordResponse(ctx, session.ID, host.ID, 0, "Paris", true, 1000, false)
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	second, err := service.RecordResponse(ctx, session.ID, host.ID, 0, "Lyon", false, 9000, false)
	if err != nil {
		t.Fatalf("repeat record: %v", err)
	}
	if second.ID != first.ID || second.Answer != "Paris" || second.PointsEarned != first.PointsEarned {
		t.Fatalf("repeat must return the stored row, got %+v", second)
	}

	updated, _ := store.GetParticipantByID(ctx, host.ID)
	if updated.Score != first.PointsEarned || updated.AnsweredCount != 1 {
		t.Fatalf("aggregates applied twice: %+v", updated)
	}
}

func TestRecordResponseWrongAnswerEarnsNothing(t *testing.T) {
	ctx := context.Background()
	service, store, session := newBaitFixture(t, []string{"host"})
	host, _ := service.Participant(ctx, session.ID, "host")

	resp, err := service.RecordResponse(ctx, session.ID, host.ID, 0, "Lyon", false, 500, false)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if resp.PointsEarned != 0 || resp.IsCorrect {
		t.Fatalf("wrong answer scored: %+v", resp)
	}

	updated, _ := store.GetParticipantByID(ctx, host.ID)
	if updated.Score != 0 || updated.CorrectCount != 0 || updated.AnsweredCount != 1 {
		t.Fatalf("wrong answer still counts toward the average only: %+v", updated)
	}
	if updated.AvgResponseMs != 500 {
		t.Fatalf("expected avg 500ms, got %d", updated.AvgResponseMs)
	}
}

func TestRecordResponseDowngradesSelfBait(t *testing.T) {
	ctx := context.Background()
	service, store, session := newBaitFixture(t, []string{"host"})
	host, _ := service.Participant(ctx, session.ID, "host")

	// The caller claims correctness, but picking your own decoy never pays.
	resp, err := service.RecordResponse(ctx, session.ID, host.ID, 0, "Lyon", true, 500, true)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if resp.IsCorrect || resp.PointsEarned != 0 {
		t.Fatalf("self-bait must persist incorrect and zero points, got %+v", resp)
	}

	// Audit row only: no stats, no ranking movement.
	updated, _ := store.GetParticipantByID(ctx, host.ID)
	if updated.Score != 0 || updated.CorrectCount != 0 || updated.AnsweredCount != 0 || updated.AvgResponseMs != 0 {
		t.Fatalf("self-bait leaked into aggregates: %+v", updated)
	}

	stored, err := store.GetResponse(ctx, session.ID, host.ID, 0)
	if err != nil {
		t.Fatalf("audit row missing: %v", err)
	}
	if stored.Answer != "Lyon" {
		t.Fatalf("audit row mangled: %+v", stored)
	}
}

func TestRecordResponseRanksBySessionScore(t *testing.T) {
	ctx := context.Background()
	service, store, session := newBaitFixture(t, []string{"host", "u2"})
	host, _ := service.Participant(ctx, session.ID, "host")
	u2, _ := service.Participant(ctx, session.ID, "u2")

	if _, err := service.RecordResponse(ctx, session.ID, host.ID, 0, "Paris", true, 14000, false); err != nil {
		t.Fatalf("host record: %v", err)
	}
	if _, err := service.RecordResponse(ctx, session.ID, u2.ID, 0, "Paris", true, 1000, false); err != nil {
		t.Fatalf("u2 record: %v", err)
	}

	hostNow, _ := store.GetParticipantByID(ctx, host.ID)
	u2Now, _ := store.GetParticipantByID(ctx, u2.ID)
	if u2Now.Rank != 1 || hostNow.Rank != 2 {
		t.Fatalf("expected faster player ranked first, got host=%d u2=%d", hostNow.Rank, u2Now.Rank)
	}
}
