package app

import (
	"context"
	"fmt"
	"time"

	"deckclash-challenge-service/internal/domain"
)

// Timer coordination persists absolute phase bounds; remaining time is always
// derived as end minus now so clients never accumulate countdown drift.

// StartQuestionTimer opens the answer phase of a question. A non-positive
// duration falls back to the configured phase length.
func (s *ChallengeService) StartQuestionTimer(ctx context.Context, sessionID string, index int, duration time.Duration) (domain.PhaseTimer, error) {
	if duration <= 0 {
		duration = s.answerPhase
	}
	return s.startPhase(ctx, sessionID, index, duration, s.store.SetAnswerTimer)
}

// StopQuestionTimer flips the answer phase off, keeping its timestamps.
func (s *ChallengeService) StopQuestionTimer(ctx context.Context, sessionID string, index int) error {
	return s.stopPhase(ctx, sessionID, index, func(q domain.Question) domain.PhaseTimer { return q.AnswerTimer }, s.store.SetAnswerTimer)
}

// StartBaitTimer opens the bet-and-bait phase of a question. A non-positive
// duration falls back to the configured phase length.
func (s *ChallengeService) StartBaitTimer(ctx context.Context, sessionID string, index int, duration time.Duration) (domain.PhaseTimer, error) {
	if duration <= 0 {
		duration = s.baitPhase
	}
	return s.startPhase(ctx, sessionID, index, duration, s.store.SetBaitTimer)
}

// StopBaitTimer flips the bet-and-bait phase off, keeping its timestamps.
func (s *ChallengeService) StopBaitTimer(ctx context.Context, sessionID string, index int) error {
	return s.stopPhase(ctx, sessionID, index, func(q domain.Question) domain.PhaseTimer { return q.BaitTimer }, s.store.SetBaitTimer)
}

type setTimerFunc func(ctx context.Context, sessionID string, index int, timer domain.PhaseTimer) error

func (s *ChallengeService) startPhase(ctx context.Context, sessionID string, index int, duration time.Duration, set setTimerFunc) (domain.PhaseTimer, error) {
	now := s.now()
	timer := domain.PhaseTimer{
		StartedAt: now,
		EndsAt:    now.Add(duration),
		Running:   true,
	}
	if err := set(ctx, sessionID, index, timer); err != nil {
		return domain.PhaseTimer{}, fmt.Errorf("persist timer: %w", err)
	}
	s.publishTimers(ctx, sessionID, index)
	return timer, nil
}

func (s *ChallengeService) stopPhase(ctx context.Context, sessionID string, index int, pick func(domain.Question) domain.PhaseTimer, set setTimerFunc) error {
	question, err := s.store.GetQuestion(ctx, sessionID, index)
	if err != nil {
		return err
	}
	timer := pick(question)
	timer.Running = false
	if err := set(ctx, sessionID, index, timer); err != nil {
		return fmt.Errorf("persist timer: %w", err)
	}
	s.publishTimers(ctx, sessionID, index)
	return nil
}

// publishTimers mirrors both phase timers of the question into the channel.
func (s *ChallengeService) publishTimers(ctx context.Context, sessionID string, index int) {
	live, ok := s.hub.Get(sessionID)
	if !ok {
		return
	}
	question, err := s.store.GetQuestion(ctx, sessionID, index)
	if err != nil {
		return
	}
	live.SetTimers(TimerState{
		QuestionIndex: index,
		Answer:        question.AnswerTimer,
		Bait:          question.BaitTimer,
	})
}
