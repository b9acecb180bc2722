package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"deckclash-challenge-service/internal/domain"
)

// Store is an in-memory implementation of app.Store backed by maps. It keeps
// the same uniqueness guarantees as the SQL schema, so the core's idempotency
// behavior is identical in tests and dev mode.
type Store struct {
	mu           sync.RWMutex
	sessions     map[string]*domain.Session           // by id
	byCode       map[string]string                    // code -> session id
	questions    map[string][]domain.Question         // session id -> by index
	participants map[string][]*domain.Participant     // session id -> insert order
	responses    map[string][]domain.Response         // session id -> insert order
	baits        map[string][]domain.BetAndBaitAnswer // session id -> insert order
}

func NewStore() *Store {
	return &Store{
		sessions:     make(map[string]*domain.Session),
		byCode:       make(map[string]string),
		questions:    make(map[string][]domain.Question),
		participants: make(map[string][]*domain.Participant),
		responses:    make(map[string][]domain.Response),
		baits:        make(map[string][]domain.BetAndBaitAnswer),
	}
}

func (s *Store) CreateSession(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byCode[session.Code]; ok {
		return domain.ErrDuplicate
	}
	copied := *session
	s.sessions[session.ID] = &copied
	s.byCode[session.Code] = session.ID
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return *session, nil
}

func (s *Store) GetSessionByCode(_ context.Context, code string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[code]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return *s.sessions[id], nil
}

func (s *Store) CodeExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byCode[code]
	return ok, nil
}

func (s *Store) SetSessionStatus(_ context.Context, id string, status domain.SessionStatus, startedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.Status = status
	if startedAt != nil {
		session.StartedAt = startedAt
	}
	return nil
}

func (s *Store) AdvanceQuestion(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return 0, domain.ErrSessionNotFound
	}
	if session.CurrentQuestionIndex+1 >= session.QuestionCount {
		return session.CurrentQuestionIndex, domain.ErrQuestionNotFound
	}
	session.CurrentQuestionIndex++
	return session.CurrentQuestionIndex, nil
}

func (s *Store) ExpireStale(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expired := 0
	for _, session := range s.sessions {
		if session.Status == domain.SessionWaiting && session.CreatedAt.Before(cutoff) {
			session.Status = domain.SessionExpired
			expired++
		}
	}
	return expired, nil
}

func (s *Store) CreateQuestions(_ context.Context, questions []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range questions {
		s.questions[q.SessionID] = append(s.questions[q.SessionID], q)
	}
	return nil
}

func (s *Store) GetQuestion(_ context.Context, sessionID string, index int) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, q := range s.questions[sessionID] {
		if q.Index == index {
			return q, nil
		}
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

func (s *Store) SetAnswerTimer(_ context.Context, sessionID string, index int, timer domain.PhaseTimer) error {
	return s.mutateQuestion(sessionID, index, func(q *domain.Question) {
		q.AnswerTimer = timer
	})
}

func (s *Store) SetBaitTimer(_ context.Context, sessionID string, index int, timer domain.PhaseTimer) error {
	return s.mutateQuestion(sessionID, index, func(q *domain.Question) {
		q.BaitTimer = timer
	})
}

func (s *Store) FinalizeWrongOptions(_ context.Context, sessionID string, index int, options [domain.WrongOptionCount]string) error {
	return s.mutateQuestion(sessionID, index, func(q *domain.Question) {
		if q.BaitCompleted {
			return // options are immutable once completed
		}
		q.WrongOptions = options
		q.BaitCompleted = true
	})
}

func (s *Store) mutateQuestion(sessionID string, index int, mutate func(*domain.Question)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	questions := s.questions[sessionID]
	for i := range questions {
		if questions[i].Index == index {
			mutate(&questions[i])
			return nil
		}
	}
	return domain.ErrQuestionNotFound
}

func (s *Store) AddParticipant(_ context.Context, participant *domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participants[participant.SessionID] {
		if p.UserID == participant.UserID {
			return domain.ErrDuplicate
		}
	}
	copied := *participant
	s.participants[participant.SessionID] = append(s.participants[participant.SessionID], &copied)
	return nil
}

func (s *Store) GetParticipant(_ context.Context, sessionID, userID string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.participants[sessionID] {
		if p.UserID == userID {
			return *p, nil
		}
	}
	return domain.Participant{}, domain.ErrParticipantNotFound
}

func (s *Store) GetParticipantByID(_ context.Context, participantID string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, list := range s.participants {
		for _, p := range list {
			if p.ID == participantID {
				return *p, nil
			}
		}
	}
	return domain.Participant{}, domain.ErrParticipantNotFound
}

func (s *Store) ListParticipants(_ context.Context, sessionID string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Participant, 0, len(s.participants[sessionID]))
	for _, p := range s.participants[sessionID] {
		out = append(out, *p)
	}
	return out, nil
}

func (s *Store) CountParticipants(_ context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.participants[sessionID]), nil
}

func (s *Store) CountReady(_ context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.participants[sessionID] {
		if p.IsReady {
			n++
		}
	}
	return n, nil
}

func (s *Store) SetReady(_ context.Context, sessionID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participants[sessionID] {
		if p.UserID == userID {
			p.IsReady = true
			return nil
		}
	}
	return domain.ErrParticipantNotFound
}

func (s *Store) RemoveParticipant(_ context.Context, sessionID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.participants[sessionID]
	for i, p := range list {
		if p.UserID == userID {
			s.participants[sessionID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *Store) UpdateParticipantScore(_ context.Context, sessionID, userID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participants[sessionID] {
		if p.UserID == userID {
			p.Score += delta
			return nil
		}
	}
	return domain.ErrParticipantNotFound
}

func (s *Store) UpdateParticipantStats(_ context.Context, participantID string, points int, isCorrect bool, responseTimeMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, list := range s.participants {
		for _, p := range list {
			if p.ID != participantID {
				continue
			}
			if isCorrect {
				p.CorrectCount++
			}
			p.Score += points
			p.AvgResponseMs = (p.AvgResponseMs*int64(p.AnsweredCount) + responseTimeMs) / int64(p.AnsweredCount+1)
			p.AnsweredCount++
			return nil
		}
	}
	return domain.ErrParticipantNotFound
}

func (s *Store) UpdateSessionRankings(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.participants[sessionID]
	ordered := make([]*domain.Participant, len(list))
	copy(ordered, list)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		if ordered[i].AvgResponseMs != ordered[j].AvgResponseMs {
			return ordered[i].AvgResponseMs < ordered[j].AvgResponseMs
		}
		return ordered[i].UserID < ordered[j].UserID
	})
	for rank, p := range ordered {
		p.Rank = rank + 1
	}
	return nil
}

func (s *Store) InsertResponse(_ context.Context, response *domain.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.responses[response.SessionID] {
		if r.ParticipantID == response.ParticipantID && r.QuestionIndex == response.QuestionIndex {
			return domain.ErrDuplicate
		}
	}
	s.responses[response.SessionID] = append(s.responses[response.SessionID], *response)
	return nil
}

func (s *Store) GetResponse(_ context.Context, sessionID, participantID string, index int) (domain.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.responses[sessionID] {
		if r.ParticipantID == participantID && r.QuestionIndex == index {
			return r, nil
		}
	}
	return domain.Response{}, domain.ErrQuestionNotFound
}

func (s *Store) ListResponses(_ context.Context, sessionID string, index int) ([]domain.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Response
	for _, r := range s.responses[sessionID] {
		if r.QuestionIndex == index {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) InsertBaitAnswer(_ context.Context, answer *domain.BetAndBaitAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.baits[answer.SessionID] {
		if b.UserID == answer.UserID && b.QuestionIndex == answer.QuestionIndex {
			return domain.ErrDuplicate
		}
	}
	s.baits[answer.SessionID] = append(s.baits[answer.SessionID], *answer)
	return nil
}

func (s *Store) GetBaitAnswer(_ context.Context, sessionID, userID string, index int) (domain.BetAndBaitAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.baits[sessionID] {
		if b.UserID == userID && b.QuestionIndex == index {
			return b, nil
		}
	}
	return domain.BetAndBaitAnswer{}, domain.ErrQuestionNotFound
}

func (s *Store) CountBaitAnswers(_ context.Context, sessionID string, index int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, b := range s.baits[sessionID] {
		if b.QuestionIndex == index {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListBaitAnswers(_ context.Context, sessionID string, index int) ([]domain.BetAndBaitAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.BetAndBaitAnswer
	for _, b := range s.baits[sessionID] {
		if b.QuestionIndex == index {
			out = append(out, b)
		}
	}
	// Insert order already, but make ties on equal timestamps deterministic.
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (s *Store) DeleteBaitAnswers(_ context.Context, sessionID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.baits[sessionID][:0]
	for _, b := range s.baits[sessionID] {
		if b.QuestionIndex != index {
			kept = append(kept, b)
		}
	}
	s.baits[sessionID] = kept
	return nil
}
