package domain

import "time"

// SessionStatus is the lifecycle state of a challenge session.
type SessionStatus string

const (
	SessionWaiting   SessionStatus = "waiting"
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionExpired   SessionStatus = "expired"
)

// WrongOptionCount is the number of distractors every question ends up with.
const WrongOptionCount = 3

// MaxPlayers is the hard cap of concurrent players per session.
const MaxPlayers = 3

// Session is one multiplayer challenge instance, located by a short join code.
type Session struct {
	ID                   string        `json:"id"`
	HostID               string        `json:"hostId"`
	Code                 string        `json:"code"`
	DeckID               string        `json:"deckId"`
	Status               SessionStatus `json:"status"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	QuestionCount        int           `json:"questionCount"`
	StartedAt            *time.Time    `json:"startedAt,omitempty"`
	CreatedAt            time.Time     `json:"createdAt"`
}

// PhaseTimer holds the absolute bounds of one timed phase. Remaining time is
// always End minus now; clients never count down locally.
type PhaseTimer struct {
	StartedAt time.Time `json:"startedAt"`
	EndsAt    time.Time `json:"endsAt"`
	Running   bool      `json:"running"`
}

// Remaining reports how much of the phase is left at the given instant.
func (t PhaseTimer) Remaining(now time.Time) time.Duration {
	if !t.Running || !now.Before(t.EndsAt) {
		return 0
	}
	return t.EndsAt.Sub(now)
}

// Question is one round of a session. WrongOptions starts as three empty
// slots; once BaitCompleted is set the array is final.
type Question struct {
	ID            string                   `json:"id"`
	SessionID     string                   `json:"sessionId"`
	Index         int                      `json:"index"`
	Prompt        string                   `json:"prompt"`
	CorrectAnswer string                   `json:"correctAnswer"`
	WrongOptions  [WrongOptionCount]string `json:"wrongOptions"`
	AnswerTimer   PhaseTimer               `json:"answerTimer"`
	BaitTimer     PhaseTimer               `json:"baitTimer"`
	BaitCompleted bool                     `json:"baitCompleted"`
}

// OptionsFinal reports whether all distractor slots are populated.
func (q Question) OptionsFinal() bool {
	for _, opt := range q.WrongOptions {
		if opt == "" {
			return false
		}
	}
	return true
}

// Participant is a joined user with their running stats. Unique per
// (session, user).
type Participant struct {
	ID           string `json:"id"`
	SessionID    string `json:"sessionId"`
	UserID       string `json:"userId"`
	IsReady      bool   `json:"isReady"`
	Score        int    `json:"score"`
	CorrectCount int    `json:"correctCount"`
	// AnsweredCount backs the running average; it counts every recorded
	// response except self-bait audit rows.
	AnsweredCount int       `json:"answeredCount"`
	AvgResponseMs int64     `json:"avgResponseMs"`
	Rank          int       `json:"rank"`
	JoinedAt      time.Time `json:"joinedAt"`
}

// Response is a recorded answer. Unique per (session, participant, question
// index) and immutable once written.
type Response struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"sessionId"`
	ParticipantID  string    `json:"participantId"`
	QuestionIndex  int       `json:"questionIndex"`
	Answer         string    `json:"answer"`
	IsCorrect      bool      `json:"isCorrect"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
	PointsEarned   int       `json:"pointsEarned"`
	CreatedAt      time.Time `json:"createdAt"`
}

// BetAndBaitAnswer is one participant's decoy for a question. Unique per
// (session, user, question index).
type BetAndBaitAnswer struct {
	SessionID     string    `json:"sessionId"`
	UserID        string    `json:"userId"`
	QuestionIndex int       `json:"questionIndex"`
	FakeAnswer    string    `json:"fakeAnswer"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PresenceStatus is the live, never-persisted activity state of a player.
type PresenceStatus string

const (
	PresenceAnswering      PresenceStatus = "answering"
	PresenceDone           PresenceStatus = "done"
	PresenceCorrect        PresenceStatus = "correct"
	PresenceWrong          PresenceStatus = "wrong"
	PresenceSubmittingFake PresenceStatus = "submitting_fake"
)

// PresenceEntry mirrors one player's channel presence. Its lifetime is bound
// to the live connection.
type PresenceEntry struct {
	UserID    string         `json:"userId"`
	Status    PresenceStatus `json:"status"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// RankingEntry is a snapshot-friendly view of a participant's standing.
type RankingEntry struct {
	UserID        string `json:"userId"`
	Score         int    `json:"score"`
	CorrectCount  int    `json:"correctCount"`
	AvgResponseMs int64  `json:"avgResponseMs"`
	Rank          int    `json:"rank"`
}

// Rankings is the ordered scoreboard for a session.
type Rankings struct {
	SessionID string         `json:"sessionId"`
	Entries   []RankingEntry `json:"entries"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Card is one flashcard of a deck; the front becomes the prompt, the back the
// correct answer.
type Card struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// Deck is the question bank a session is built from.
type Deck struct {
	ID    string `json:"id"`
	Cards []Card `json:"cards"`
}

// BaitResult is the per-player outcome of one bet-and-bait round.
type BaitResult struct {
	QuestionIndex int  `json:"questionIndex"`
	WasBaited     bool `json:"wasBaited"`
	BaitedCount   int  `json:"baitedCount"`
	XPDelta       int  `json:"xpDelta"`
}
