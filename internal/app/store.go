package app

import (
	"context"
	"time"

	"deckclash-challenge-service/internal/domain"
)

// SessionStore persists challenge sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, id string) (domain.Session, error)
	GetSessionByCode(ctx context.Context, code string) (domain.Session, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	SetSessionStatus(ctx context.Context, id string, status domain.SessionStatus, startedAt *time.Time) error
	// AdvanceQuestion bumps current_question_index by one and returns the new
	// value. Implementations must refuse to advance past question_count-1.
	AdvanceQuestion(ctx context.Context, id string) (int, error)
	// ExpireStale marks waiting sessions created before the cutoff as expired
	// and returns how many were touched.
	ExpireStale(ctx context.Context, cutoff time.Time) (int, error)
}

// QuestionStore persists per-round questions and their phase timers.
type QuestionStore interface {
	CreateQuestions(ctx context.Context, questions []domain.Question) error
	GetQuestion(ctx context.Context, sessionID string, index int) (domain.Question, error)
	SetAnswerTimer(ctx context.Context, sessionID string, index int, timer domain.PhaseTimer) error
	SetBaitTimer(ctx context.Context, sessionID string, index int, timer domain.PhaseTimer) error
	// FinalizeWrongOptions writes the distractor array and sets the completed
	// flag. Redundant writes of the same array are harmless.
	FinalizeWrongOptions(ctx context.Context, sessionID string, index int, options [domain.WrongOptionCount]string) error
}

// ParticipantStore persists participants and their running aggregates. The
// three Update* operations are the opaque atomic collaborators of the store:
// each is a single-statement, idempotent-to-retry mutation.
type ParticipantStore interface {
	// AddParticipant returns domain.ErrDuplicate when the (session, user)
	// pair already exists.
	AddParticipant(ctx context.Context, participant *domain.Participant) error
	GetParticipant(ctx context.Context, sessionID, userID string) (domain.Participant, error)
	GetParticipantByID(ctx context.Context, participantID string) (domain.Participant, error)
	ListParticipants(ctx context.Context, sessionID string) ([]domain.Participant, error)
	CountParticipants(ctx context.Context, sessionID string) (int, error)
	CountReady(ctx context.Context, sessionID string) (int, error)
	SetReady(ctx context.Context, sessionID, userID string) error
	RemoveParticipant(ctx context.Context, sessionID, userID string) error
	// UpdateParticipantScore applies a signed XP delta as one atomic increment.
	UpdateParticipantScore(ctx context.Context, sessionID, userID string, delta int) error
	// UpdateParticipantStats folds one response into score, correct_count and
	// the running average response time.
	UpdateParticipantStats(ctx context.Context, participantID string, points int, isCorrect bool, responseTimeMs int64) error
	// UpdateSessionRankings recomputes ranks for the whole session. Idempotent
	// and totally ordered: score desc, avg response asc, user id asc.
	UpdateSessionRankings(ctx context.Context, sessionID string) error
}

// ResponseStore persists recorded answers.
type ResponseStore interface {
	// InsertResponse returns domain.ErrDuplicate when a response for the same
	// (session, participant, question) already exists.
	InsertResponse(ctx context.Context, response *domain.Response) error
	GetResponse(ctx context.Context, sessionID, participantID string, index int) (domain.Response, error)
	ListResponses(ctx context.Context, sessionID string, index int) ([]domain.Response, error)
}

// BaitStore persists bet-and-bait decoy submissions.
type BaitStore interface {
	// InsertBaitAnswer returns domain.ErrDuplicate when the same user already
	// submitted a decoy for this question.
	InsertBaitAnswer(ctx context.Context, answer *domain.BetAndBaitAnswer) error
	GetBaitAnswer(ctx context.Context, sessionID, userID string, index int) (domain.BetAndBaitAnswer, error)
	CountBaitAnswers(ctx context.Context, sessionID string, index int) (int, error)
	// ListBaitAnswers returns submissions in insert order, ties broken by
	// user id, so distractor synthesis is deterministic.
	ListBaitAnswers(ctx context.Context, sessionID string, index int) ([]domain.BetAndBaitAnswer, error)
	DeleteBaitAnswers(ctx context.Context, sessionID string, index int) error
}

// Store is the full persistent-store collaborator.
type Store interface {
	SessionStore
	QuestionStore
	ParticipantStore
	ResponseStore
	BaitStore
}

// DeckRepository loads the question bank backing a session (from cache or
// backing store).
type DeckRepository interface {
	GetDeck(ctx context.Context, deckID string) (domain.Deck, error)
}

// CodeIndex is a fast join-code reservation index. Reservations expire with
// the session TTL so stale codes stop colliding.
type CodeIndex interface {
	// Reserve claims the code; it reports false when the code is taken.
	Reserve(ctx context.Context, code string, ttl time.Duration) (bool, error)
	Exists(ctx context.Context, code string) (bool, error)
	Release(ctx context.Context, code string) error
}
