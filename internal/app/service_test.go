package app_test

import (
	"context"
	"testing"
	"time"

	"deckclash-challenge-service/internal/app"
	"deckclash-challenge-service/internal/domain"
	"deckclash-challenge-service/internal/infra/memory"
)

func TestCreateSessionSeedsLobby(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)

	session, err := service.CreateSession(ctx, "host-1", "deck-1", 3)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.Status != domain.SessionWaiting {
		t.Fatalf("expected waiting session, got %s", session.Status)
	}
	if len(session.Code) != 5 {
		t.Fatalf("expected 5-char join code, got %q", session.Code)
	}
	if session.QuestionCount != 3 || session.CurrentQuestionIndex != 0 {
		t.Fatalf("unexpected question bookkeeping: %+v", session)
	}

	host, err := store.GetParticipant(ctx, session.ID, "host-1")
	if err != nil {
		t.Fatalf("host not joined: %v", err)
	}
	if !host.IsReady {
		t.Fatalf("host must be auto-ready")
	}

	for i := 0; i < 3; i++ {
		q, err := store.GetQuestion(ctx, session.ID, i)
		if err != nil {
			t.Fatalf("question %d missing: %v", i, err)
		}
		if q.Prompt == "" || q.CorrectAnswer == "" {
			t.Fatalf("question %d not populated: %+v", i, q)
		}
		if q.OptionsFinal() {
			t.Fatalf("question %d should start with empty wrong options", i)
		}
	}
}

func TestValidateJoinCodeMatrix(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	if _, err := service.ValidateJoinCode(ctx, "ZZZZZ"); err != domain.ErrInvalidCode {
		t.Fatalf("unknown code: expected ErrInvalidCode, got %v", err)
	}

	session, err := service.CreateSession(ctx, "host-1", "deck-1", 2)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	// One participant (the host): joinable.
	if _, err := service.ValidateJoinCode(ctx, session.Code); err != nil {
		t.Fatalf("waiting session with 1 player should validate, got %v", err)
	}

	if _, err := service.Join(ctx, session.Code, "u2"); err != nil {
		t.Fatalf("join u2: %v", err)
	}
	if _, err := service.Join(ctx, session.Code, "u3"); err != nil {
		t.Fatalf("join u3: %v", err)
	}
	if _, err := service.ValidateJoinCode(ctx, session.Code); err != domain.ErrSessionFull {
		t.Fatalf("full session: expected ErrSessionFull, got %v", err)
	}

	if err := service.StartGame(ctx, session.ID); err != nil {
		t.Fatalf("start game: %v", err)
	}
	if _, err := service.ValidateJoinCode(ctx, session.Code); err != domain.ErrSessionUnavailable {
		t.Fatalf("active session: expected ErrSessionUnavailable, got %v", err)
	}
}

func TestJoinIsIdempotentPerUser(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)

	session, _ := service.CreateSession(ctx, "host-1", "deck-1", 2)
	if _, err := service.Join(ctx, session.Code, "u2"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := service.Join(ctx, session.Code, "u2"); err != nil {
		t.Fatalf("rejoin must succeed: %v", err)
	}
	count, _ := store.CountParticipants(ctx, session.ID)
	if count != 2 {
		t.Fatalf("expected 2 participants after rejoin, got %d", count)
	}
}

func TestStartGameBroadcastsAndActivates(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)

	session, _ := service.CreateSession(ctx, "host-1", "deck-1", 2)
	updates, cancel, err := service.Subscribe(ctx, session.ID, "host-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	<-updates // initial snapshot

	if err := service.StartGame(ctx, session.ID); err != nil {
		t.Fatalf("start game: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-updates:
			if snap.Event == app.EventGameStarted {
				if snap.Status != domain.SessionActive {
					t.Fatalf("expected active status in start snapshot, got %s", snap.Status)
				}
				stored, _ := store.GetSession(ctx, session.ID)
				if stored.Status != domain.SessionActive || stored.StartedAt == nil {
					t.Fatalf("session not activated in store: %+v", stored)
				}
				return
			}
		case <-deadline:
			t.Fatalf("never saw game_started snapshot")
		}
	}
}

func TestAdvanceRespectsQuestionBounds(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)

	session, _ := service.CreateSession(ctx, "host-1", "deck-1", 3)
	_ = service.StartGame(ctx, session.ID)

	checkInvariant := func() {
		s, _ := store.GetSession(ctx, session.ID)
		if s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= s.QuestionCount {
			t.Fatalf("index invariant violated: %+v", s)
		}
	}

	checkInvariant()
	for want := 1; want <= 2; want++ {
		idx, done, err := service.AdvanceQuestion(ctx, session.ID)
		if err != nil {
			t.Fatalf("advance: %v", err)
		}
		if done || idx != want {
			t.Fatalf("expected advance to %d, got idx=%d done=%v", want, idx, done)
		}
		checkInvariant()
	}

	idx, done, err := service.AdvanceQuestion(ctx, session.ID)
	if err != nil {
		t.Fatalf("final advance: %v", err)
	}
	if !done || idx != 2 {
		t.Fatalf("expected completion at final index, got idx=%d done=%v", idx, done)
	}
	checkInvariant()

	s, _ := store.GetSession(ctx, session.ID)
	if s.Status != domain.SessionCompleted {
		t.Fatalf("expected completed session, got %s", s.Status)
	}
}

func TestLeaveRemovesLobbyParticipant(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)

	session, _ := service.CreateSession(ctx, "host-1", "deck-1", 2)
	if _, err := service.Join(ctx, session.Code, "u2"); err != nil {
		t.Fatalf("join: %v", err)
	}

	service.Leave(ctx, session.ID, "u2")
	service.Tasks().Wait()

	if _, err := store.GetParticipant(ctx, session.ID, "u2"); err != domain.ErrParticipantNotFound {
		t.Fatalf("lobby leaver still joined: %v", err)
	}
	count, _ := store.CountParticipants(ctx, session.ID)
	if count != 1 {
		t.Fatalf("expected only the host left, got %d", count)
	}
}

func TestLeaveKeepsActiveGameParticipant(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)

	session, _ := service.CreateSession(ctx, "host-1", "deck-1", 2)
	if _, err := service.Join(ctx, session.Code, "u2"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := service.StartGame(ctx, session.ID); err != nil {
		t.Fatalf("start game: %v", err)
	}

	u2, _ := service.Participant(ctx, session.ID, "u2")
	resp, err := service.RecordResponse(ctx, session.ID, u2.ID, 0, "Paris", true, 1000, false)
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	// Active sessions refuse rejoin, so a disconnect must not delete the row:
	// the score, the response audit trail and the settlement all depend on it.
	service.Leave(ctx, session.ID, "u2")
	service.Tasks().Wait()

	kept, err := service.Participant(ctx, session.ID, "u2")
	if err != nil {
		t.Fatalf("mid-game disconnect deleted the participant: %v", err)
	}
	if kept.Score != resp.PointsEarned {
		t.Fatalf("score lost across disconnect: %+v", kept)
	}
	stored, err := store.GetResponse(ctx, session.ID, u2.ID, 0)
	if err != nil || stored.ID != resp.ID {
		t.Fatalf("response row lost across disconnect: %+v err=%v", stored, err)
	}
}

func TestExpireStaleSweepsWaitingSessions(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	decks := memory.NewDeckRepository(memory.NewStaticDeckLoader(sampleDecks()), 5*time.Minute)
	service := app.NewChallengeService(store, decks, memory.NewCodeIndex(), app.NewHub(), 30*time.Minute)

	session, err := service.CreateSession(ctx, "host-1", "deck-1", 2)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	// Nothing is stale yet.
	expired, err := service.ExpireStale(ctx)
	if err != nil || expired != 0 {
		t.Fatalf("expected no expiry, got %d err=%v", expired, err)
	}

	// Jump the clock past the TTL.
	service.WithClock(func() time.Time { return time.Now().Add(time.Hour) })
	expired, err = service.ExpireStale(ctx)
	if err != nil || expired != 1 {
		t.Fatalf("expected 1 expired session, got %d err=%v", expired, err)
	}
	s, _ := store.GetSession(ctx, session.ID)
	if s.Status != domain.SessionExpired {
		t.Fatalf("expected expired status, got %s", s.Status)
	}
}

func sampleDecks() map[string]domain.Deck {
	return map[string]domain.Deck{
		"deck-1": {
			ID: "deck-1",
			Cards: []domain.Card{
				{Front: "Capital of France?", Back: "Paris"},
				{Front: "Largest planet in the solar system?", Back: "Jupiter"},
				{Front: "H2O is commonly known as?", Back: "Water"},
			},
		},
	}
}

func newTestService(t *testing.T) (*app.ChallengeService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	decks := memory.NewDeckRepository(memory.NewStaticDeckLoader(sampleDecks()), 5*time.Minute)
	return app.NewChallengeService(store, decks, memory.NewCodeIndex(), app.NewHub(), 30*time.Minute), store
}
