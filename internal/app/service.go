package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"deckclash-challenge-service/internal/domain"
)

// ChallengeService contains the multiplayer challenge use cases: lobby and
// session lifecycle, timers, bet-and-bait aggregation, response recording and
// bait settlement.
type ChallengeService struct {
	store Store
	decks DeckRepository
	codes CodeIndex
	hub   *Hub
	tasks *TaskRunner
	now   func() time.Time

	// sessionTTL bounds how long a waiting lobby may idle before ExpireStale
	// sweeps it; it also scopes code-index reservations.
	sessionTTL time.Duration

	// Phase lengths used when a timer request carries no explicit duration.
	answerPhase time.Duration
	baitPhase   time.Duration
}

func NewChallengeService(store Store, decks DeckRepository, codes CodeIndex, hub *Hub, sessionTTL time.Duration) *ChallengeService {
	return &ChallengeService{
		store:       store,
		decks:       decks,
		codes:       codes,
		hub:         hub,
		tasks:       NewTaskRunner(),
		now:         time.Now,
		sessionTTL:  sessionTTL,
		answerPhase: 30 * time.Second,
		baitPhase:   20 * time.Second,
	}
}

// WithPhaseDurations overrides the default answer and bait phase lengths.
func (s *ChallengeService) WithPhaseDurations(answer, bait time.Duration) *ChallengeService {
	if answer > 0 {
		s.answerPhase = answer
	}
	if bait > 0 {
		s.baitPhase = bait
	}
	return s
}

// WithClock is test-only for deterministic timestamps.
func (s *ChallengeService) WithClock(now func() time.Time) *ChallengeService {
	s.now = now
	return s
}

// Tasks exposes the background runner so callers can drain it on shutdown.
func (s *ChallengeService) Tasks() *TaskRunner {
	return s.tasks
}

func newID(prefix string) string {
	return prefix + "_" + uuid.New().String()[:8]
}

// CreateSession builds a session from a deck: one question per card, a unique
// join code, and the host joined and auto-ready.
func (s *ChallengeService) CreateSession(ctx context.Context, hostID, deckID string, questionCount int) (domain.Session, error) {
	deck, err := s.decks.GetDeck(ctx, deckID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("load deck: %w", err)
	}
	if questionCount <= 0 || questionCount > len(deck.Cards) {
		questionCount = len(deck.Cards)
	}
	if questionCount == 0 {
		return domain.Session{}, domain.ErrDeckNotFound
	}

	code, err := s.GenerateUniqueJoinCode(ctx)
	if err != nil {
		return domain.Session{}, err
	}

	now := s.now()
	session := domain.Session{
		ID:                   newID("s"),
		HostID:               hostID,
		Code:                 code,
		DeckID:               deckID,
		Status:               domain.SessionWaiting,
		CurrentQuestionIndex: 0,
		QuestionCount:        questionCount,
		CreatedAt:            now,
	}
	if err := s.store.CreateSession(ctx, &session); err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}

	questions := make([]domain.Question, 0, questionCount)
	for i := 0; i < questionCount; i++ {
		questions = append(questions, domain.Question{
			ID:            newID("q"),
			SessionID:     session.ID,
			Index:         i,
			Prompt:        deck.Cards[i].Front,
			CorrectAnswer: deck.Cards[i].Back,
		})
	}
	if err := s.store.CreateQuestions(ctx, questions); err != nil {
		return domain.Session{}, fmt.Errorf("create questions: %w", err)
	}

	// The host joins their own lobby immediately and is always ready.
	host := domain.Participant{
		ID:        newID("p"),
		SessionID: session.ID,
		UserID:    hostID,
		IsReady:   true,
		JoinedAt:  now,
	}
	if err := s.store.AddParticipant(ctx, &host); err != nil {
		return domain.Session{}, fmt.Errorf("add host: %w", err)
	}

	return session, nil
}

// ValidateJoinCode resolves a join code to a joinable session id.
func (s *ChallengeService) ValidateJoinCode(ctx context.Context, code string) (string, error) {
	session, err := s.store.GetSessionByCode(ctx, code)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return "", domain.ErrInvalidCode
	}
	if err != nil {
		return "", fmt.Errorf("lookup code: %w", err)
	}
	if session.Status != domain.SessionWaiting {
		return "", domain.ErrSessionUnavailable
	}
	count, err := s.store.CountParticipants(ctx, session.ID)
	if err != nil {
		return "", fmt.Errorf("count participants: %w", err)
	}
	if count >= domain.MaxPlayers {
		return "", domain.ErrSessionFull
	}
	return session.ID, nil
}

// Join adds a user to a waiting session located by code. Rejoining is a
// no-op thanks to the (session, user) uniqueness constraint.
func (s *ChallengeService) Join(ctx context.Context, code, userID string) (domain.Session, error) {
	sessionID, err := s.ValidateJoinCode(ctx, code)
	if err != nil {
		return domain.Session{}, err
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}

	participant := domain.Participant{
		ID:        newID("p"),
		SessionID: session.ID,
		UserID:    userID,
		IsReady:   userID == session.HostID,
		JoinedAt:  s.now(),
	}
	if err := s.store.AddParticipant(ctx, &participant); err != nil && !errors.Is(err, domain.ErrDuplicate) {
		return domain.Session{}, fmt.Errorf("add participant: %w", err)
	}
	return session, nil
}

// MarkReady flags a lobby participant as ready to play.
func (s *ChallengeService) MarkReady(ctx context.Context, sessionID, userID string) error {
	if err := s.store.SetReady(ctx, sessionID, userID); err != nil {
		return err
	}
	if live, ok := s.hub.Get(sessionID); ok {
		live.Announce(EventSync)
	}
	return nil
}

// StartGame transitions the session to active and broadcasts the start
// signal. By convention only the host calls it.
func (s *ChallengeService) StartGame(ctx context.Context, sessionID string) error {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != domain.SessionWaiting {
		return domain.ErrSessionUnavailable
	}

	now := s.now()
	if err := s.store.SetSessionStatus(ctx, sessionID, domain.SessionActive, &now); err != nil {
		return fmt.Errorf("activate session: %w", err)
	}
	s.hub.GetOrCreate(sessionID).SetSessionState(EventGameStarted, domain.SessionActive, session.CurrentQuestionIndex, &now)
	return nil
}

// AdvanceQuestion moves the session to the next round, or completes it when
// the bank is exhausted.
func (s *ChallengeService) AdvanceQuestion(ctx context.Context, sessionID string) (int, bool, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return 0, false, err
	}
	if session.CurrentQuestionIndex+1 >= session.QuestionCount {
		if err := s.store.SetSessionStatus(ctx, sessionID, domain.SessionCompleted, nil); err != nil {
			return session.CurrentQuestionIndex, false, fmt.Errorf("complete session: %w", err)
		}
		if live, ok := s.hub.Get(sessionID); ok {
			live.SetSessionState(EventQuestion, domain.SessionCompleted, session.CurrentQuestionIndex, nil)
		}
		return session.CurrentQuestionIndex, true, nil
	}

	next, err := s.store.AdvanceQuestion(ctx, sessionID)
	if err != nil {
		return session.CurrentQuestionIndex, false, fmt.Errorf("advance question: %w", err)
	}
	if live, ok := s.hub.Get(sessionID); ok {
		live.SetSessionState(EventQuestion, domain.SessionActive, next, nil)
	}
	return next, false, nil
}

// Subscribe attaches a user to the session's live channel. The first snapshot
// carries the presence map, timer state and session state.
func (s *ChallengeService) Subscribe(ctx context.Context, sessionID, userID string) (<-chan Snapshot, func(), error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, domain.ErrSessionNotFound
	}

	live := s.hub.GetOrCreate(sessionID)
	live.SetSessionState(EventSync, session.Status, session.CurrentQuestionIndex, session.StartedAt)
	ch, cancel := live.Subscribe()
	live.Track(userID, domain.PresenceAnswering)

	unsubscribe := func() {
		cancel()
		live.Untrack(userID)
		s.hub.DeleteIfEmpty(sessionID)
	}
	return ch, unsubscribe, nil
}

// UpdatePlayerStatus publishes a player's live status to the channel.
func (s *ChallengeService) UpdatePlayerStatus(sessionID, userID string, status domain.PresenceStatus) {
	if live, ok := s.hub.Get(sessionID); ok {
		live.SetStatus(userID, status)
	}
}

// Leave detaches a player from the live channel. Only lobby participants are
// removed from the store: once the game started the row must survive the
// disconnect, since responses, rankings and bait settlement all hang off it.
func (s *ChallengeService) Leave(ctx context.Context, sessionID, userID string) {
	s.tasks.Go("leave", func(ctx context.Context) error {
		session, err := s.store.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.Status != domain.SessionWaiting {
			return nil
		}
		return s.store.RemoveParticipant(ctx, sessionID, userID)
	})
	if live, ok := s.hub.Get(sessionID); ok {
		live.Untrack(userID)
	}
	s.hub.DeleteIfEmpty(sessionID)
}

// ExpireStale sweeps waiting sessions older than the configured TTL.
func (s *ChallengeService) ExpireStale(ctx context.Context) (int, error) {
	return s.store.ExpireStale(ctx, s.now().Add(-s.sessionTTL))
}
