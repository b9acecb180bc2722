package app_test

import (
	"context"
	"testing"

	"deckclash-challenge-service/internal/domain"
)

func TestBaitSettlementIsZeroSum(t *testing.T) {
	ctx := context.Background()
	service, store, session := newBaitFixture(t, []string{"alice", "bob"})
	alice, _ := service.Participant(ctx, session.ID, "alice")
	bob, _ := service.Participant(ctx, session.ID, "bob")

	// Alice baits with "Lyon", Bob with "Nice". Bob falls for Alice's decoy.
	_ = service.SubmitFakeAnswer(ctx, session.ID, "alice", 0, "Lyon")
	_ = service.SubmitFakeAnswer(ctx, session.ID, "bob", 0, "Nice")
	if _, err := service.RecordResponse(ctx, session.ID, alice.ID, 0, "Paris", true, 1000, false); err != nil {
		t.Fatalf("alice answer: %v", err)
	}
	if _, err := service.RecordResponse(ctx, session.ID, bob.ID, 0, "Lyon", false, 2000, false); err != nil {
		t.Fatalf("bob answer: %v", err)
	}

	bobResult, err := service.BetAndBaitResults(ctx, session.ID, 0, "bob", "Nice")
	if err != nil {
		t.Fatalf("bob settlement: %v", err)
	}
	if !bobResult.WasBaited || bobResult.BaitedCount != 0 || bobResult.XPDelta != -20 {
		t.Fatalf("bob settlement wrong: %+v", bobResult)
	}

	aliceResult, err := service.BetAndBaitResults(ctx, session.ID, 0, "alice", "Lyon")
	if err != nil {
		t.Fatalf("alice settlement: %v", err)
	}
	if aliceResult.WasBaited || aliceResult.BaitedCount != 1 || aliceResult.XPDelta != 20 {
		t.Fatalf("alice settlement wrong: %+v", aliceResult)
	}

	if aliceResult.XPDelta+bobResult.XPDelta != 0 {
		t.Fatalf("settlement is not zero-sum: alice=%d bob=%d", aliceResult.XPDelta, bobResult.XPDelta)
	}

	aliceBefore, _ := store.GetParticipantByID(ctx, alice.ID)
	bobBefore, _ := store.GetParticipantByID(ctx, bob.ID)
	if err := service.UpdateBaitScores(ctx, session.ID, "alice", aliceResult); err != nil {
		t.Fatalf("apply alice: %v", err)
	}
	if err := service.UpdateBaitScores(ctx, session.ID, "bob", bobResult); err != nil {
		t.Fatalf("apply bob: %v", err)
	}
	aliceAfter, _ := store.GetParticipantByID(ctx, alice.ID)
	bobAfter, _ := store.GetParticipantByID(ctx, bob.ID)
	if aliceAfter.Score != aliceBefore.Score+20 {
		t.Fatalf("alice credit not applied: %d -> %d", aliceBefore.Score, aliceAfter.Score)
	}
	if bobAfter.Score != bobBefore.Score-20 {
		t.Fatalf("bob debit not applied: %d -> %d", bobBefore.Score, bobAfter.Score)
	}
}

func TestBaitSettlementIgnoresOwnDecoyPick(t *testing.T) {
	ctx := context.Background()
	service, _, session := newBaitFixture(t, []string{"alice", "bob"})
	bob, _ := service.Participant(ctx, session.ID, "bob")

	// Both bait with the same text; Bob picks it. Bob self-baited, so he is
	// not counted as Alice's victim either way on his own settlement.
	_ = service.SubmitFakeAnswer(ctx, session.ID, "alice", 0, "Lyon")
	_ = service.SubmitFakeAnswer(ctx, session.ID, "bob", 0, "Lyon")
	if _, err := service.RecordResponse(ctx, session.ID, bob.ID, 0, "Lyon", false, 2000, true); err != nil {
		t.Fatalf("bob answer: %v", err)
	}

	bobResult, err := service.BetAndBaitResults(ctx, session.ID, 0, "bob", "Lyon")
	if err != nil {
		t.Fatalf("bob settlement: %v", err)
	}
	if bobResult.WasBaited {
		t.Fatalf("picking your own decoy must not count as baited: %+v", bobResult)
	}
}

func TestFakeAnswerOfReturnsStoredDecoy(t *testing.T) {
	ctx := context.Background()
	service, _, session := newBaitFixture(t, []string{"alice", "bob"})

	_ = service.SubmitFakeAnswer(ctx, session.ID, "alice", 0, "Lyon")

	got, err := service.FakeAnswerOf(ctx, session.ID, "alice", 0)
	if err != nil || got != "Lyon" {
		t.Fatalf("expected stored decoy, got %q err=%v", got, err)
	}
	got, err = service.FakeAnswerOf(ctx, session.ID, "bob", 0)
	if err != nil || got != "" {
		t.Fatalf("no submission must yield empty decoy, got %q err=%v", got, err)
	}
}

func TestBaitSettlementCountsEveryVictim(t *testing.T) {
	ctx := context.Background()
	service, _, session := newBaitFixture(t, []string{"alice", "bob", "carol"})
	bob, _ := service.Participant(ctx, session.ID, "bob")
	carol, _ := service.Participant(ctx, session.ID, "carol")

	_ = service.SubmitFakeAnswer(ctx, session.ID, "alice", 0, "Lyon")
	_ = service.SubmitFakeAnswer(ctx, session.ID, "bob", 0, "Nice")
	_ = service.SubmitFakeAnswer(ctx, session.ID, "carol", 0, "Lille")
	if _, err := service.RecordResponse(ctx, session.ID, bob.ID, 0, "Lyon", false, 2000, false); err != nil {
		t.Fatalf("bob answer: %v", err)
	}
	if _, err := service.RecordResponse(ctx, session.ID, carol.ID, 0, "Lyon", false, 3000, false); err != nil {
		t.Fatalf("carol answer: %v", err)
	}

	aliceResult, err := service.BetAndBaitResults(ctx, session.ID, 0, "alice", "Lyon")
	if err != nil {
		t.Fatalf("alice settlement: %v", err)
	}
	if aliceResult.BaitedCount != 2 || aliceResult.XPDelta != 40 {
		t.Fatalf("expected two victims worth +40, got %+v", aliceResult)
	}

	result := domain.BaitResult{QuestionIndex: 0, BaitedCount: 2, XPDelta: 40}
	if err := service.UpdateBaitScores(ctx, session.ID, "alice", result); err != nil {
		t.Fatalf("apply: %v", err)
	}
}
