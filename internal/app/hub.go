package app

import (
	"sync"
	"time"

	"deckclash-challenge-service/internal/domain"
)

// Event names the trigger of a snapshot broadcast.
type Event string

const (
	EventSync        Event = "sync"
	EventGameStarted Event = "game_started"
	EventTimers      Event = "timers"
	EventDistractors Event = "distractors_ready"
	EventRankings    Event = "rankings"
	EventQuestion    Event = "question_advanced"
)

// TimerState carries both phase timers of the current question.
type TimerState struct {
	QuestionIndex int               `json:"questionIndex"`
	Answer        domain.PhaseTimer `json:"answer"`
	Bait          domain.PhaseTimer `json:"bait"`
}

// Snapshot is the full channel state pushed to every subscriber. Each push
// replaces the subscriber's prior view wholesale; there is no incremental
// merge.
type Snapshot struct {
	Event                Event                           `json:"event"`
	SessionID            string                          `json:"sessionId"`
	Status               domain.SessionStatus            `json:"status"`
	CurrentQuestionIndex int                             `json:"currentQuestionIndex"`
	StartedAt            *time.Time                      `json:"startedAt,omitempty"`
	Presence             map[string]domain.PresenceEntry `json:"presence"`
	Timers               TimerState                      `json:"timers"`
	Rankings             []domain.RankingEntry           `json:"rankings"`
	UpdatedAt            time.Time                       `json:"updatedAt"`
}

// LiveSession is the in-process realtime channel for one session: presence
// keyed by user id plus snapshot fan-out to subscribers.
type LiveSession struct {
	id  string
	now func() time.Time

	mu          sync.RWMutex
	status      domain.SessionStatus
	currentIdx  int
	startedAt   *time.Time
	presence    map[string]domain.PresenceEntry
	timers      TimerState
	rankings    []domain.RankingEntry
	subscribers map[chan Snapshot]struct{}
}

func newLiveSession(id string, now func() time.Time) *LiveSession {
	return &LiveSession{
		id:          id,
		now:         now,
		status:      domain.SessionWaiting,
		presence:    make(map[string]domain.PresenceEntry),
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// Track registers a player's presence and broadcasts the new snapshot.
func (s *LiveSession) Track(userID string, status domain.PresenceStatus) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence[userID] = domain.PresenceEntry{
		UserID:    userID,
		Status:    status,
		UpdatedAt: s.now(),
	}
	return s.broadcastLocked(EventSync)
}

// Untrack drops a player's presence when their connection goes away.
func (s *LiveSession) Untrack(userID string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.presence, userID)
	return s.broadcastLocked(EventSync)
}

// SetStatus updates one player's live status.
func (s *LiveSession) SetStatus(userID string, status domain.PresenceStatus) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence[userID] = domain.PresenceEntry{
		UserID:    userID,
		Status:    status,
		UpdatedAt: s.now(),
	}
	return s.broadcastLocked(EventSync)
}

// SetSessionState mirrors the persisted session lifecycle into the channel.
func (s *LiveSession) SetSessionState(event Event, status domain.SessionStatus, currentIndex int, startedAt *time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.currentIdx = currentIndex
	if startedAt != nil {
		s.startedAt = startedAt
	}
	return s.broadcastLocked(event)
}

// SetTimers publishes the current question's phase timers.
func (s *LiveSession) SetTimers(timers TimerState) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers = timers
	return s.broadcastLocked(EventTimers)
}

// SetRankings publishes a refreshed scoreboard.
func (s *LiveSession) SetRankings(entries []domain.RankingEntry) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rankings = entries
	return s.broadcastLocked(EventRankings)
}

// Announce re-broadcasts the current snapshot under the given event, for
// state that lives outside the hub (e.g. finalized distractors).
func (s *LiveSession) Announce(event Event) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.broadcastLocked(event)
}

func (s *LiveSession) isEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.presence) == 0 && len(s.subscribers) == 0
}

// IsEmpty reports whether nobody is tracked or subscribed.
func (s *LiveSession) IsEmpty() bool {
	return s.isEmpty()
}

// Subscribe registers a snapshot channel. The current state is delivered
// immediately; the cancel func detaches and closes the channel.
func (s *LiveSession) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	// Enqueue the initial snapshot under the lock so no concurrent broadcast
	// can slip in ahead of it and then be overwritten by stale state.
	ch <- s.snapshotLocked(EventSync)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *LiveSession) broadcastLocked(event Event) Snapshot {
	snap := s.snapshotLocked(event)
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the oldest pending snapshot so slow readers never block
			// the broadcast; they only ever need the latest state.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return snap
}

func (s *LiveSession) snapshotLocked(event Event) Snapshot {
	presence := make(map[string]domain.PresenceEntry, len(s.presence))
	for userID, entry := range s.presence {
		presence[userID] = entry
	}
	rankings := make([]domain.RankingEntry, len(s.rankings))
	copy(rankings, s.rankings)

	return Snapshot{
		Event:                event,
		SessionID:            s.id,
		Status:               s.status,
		CurrentQuestionIndex: s.currentIdx,
		StartedAt:            s.startedAt,
		Presence:             presence,
		Timers:               s.timers,
		Rankings:             rankings,
		UpdatedAt:            s.now(),
	}
}

// Hub owns the live channels of all sessions hosted by this process.
type Hub struct {
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]*LiveSession
}

func NewHub() *Hub {
	return NewHubWithClock(time.Now)
}

// NewHubWithClock is test-only for deterministic timestamps.
func NewHubWithClock(now func() time.Time) *Hub {
	return &Hub{
		now:      now,
		sessions: make(map[string]*LiveSession),
	}
}

func (h *Hub) GetOrCreate(sessionID string) *LiveSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	if session, ok := h.sessions[sessionID]; ok {
		return session
	}
	session := newLiveSession(sessionID, h.now)
	h.sessions[sessionID] = session
	return session
}

func (h *Hub) Get(sessionID string) (*LiveSession, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	session, ok := h.sessions[sessionID]
	return session, ok
}

func (h *Hub) DeleteIfEmpty(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	session, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	if session.IsEmpty() {
		delete(h.sessions, sessionID)
	}
}
