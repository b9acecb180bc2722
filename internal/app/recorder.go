package app

import (
	"context"
	"errors"
	"fmt"
	"math"

	"deckclash-challenge-service/internal/domain"
)

const (
	basePoints    = 100
	speedBonusMax = 100
	speedWindowMs = 15000
	baitPenaltyXP = 20
	baitRewardXP  = 20
)

// scorePoints applies the time-decayed formula: a full-speed answer is worth
// 200 points, decaying linearly to the 100-point floor at 15 seconds. The
// factor is clamped to [0, 1] so a hostile negative time cannot mint points.
func scorePoints(responseTimeMs int64) int {
	timeFactor := 1 - float64(responseTimeMs)/speedWindowMs
	if timeFactor < 0 {
		timeFactor = 0
	}
	if timeFactor > 1 {
		timeFactor = 1
	}
	return int(math.Round(basePoints + speedBonusMax*timeFactor))
}

// RecordResponse persists a participant's answer exactly once and folds it
// into their aggregates and the session rankings.
//
// isOwnFakeAnswer marks a participant who picked the decoy they themselves
// authored: the response is stored for audit, but downgraded to incorrect,
// worth nothing, and excluded from stats and rankings.
func (s *ChallengeService) RecordResponse(ctx context.Context, sessionID, participantID string, index int, answer string, isCorrect bool, responseTimeMs int64, isOwnFakeAnswer bool) (domain.Response, error) {
	if existing, err := s.store.GetResponse(ctx, sessionID, participantID, index); err == nil {
		return existing, nil // already recorded; apply nothing twice
	}

	points := 0
	if isCorrect && !isOwnFakeAnswer {
		points = scorePoints(responseTimeMs)
	}
	if isOwnFakeAnswer {
		// Self-baiting never earns credit.
		isCorrect = false
		points = 0
	}

	response := domain.Response{
		ID:             newID("r"),
		SessionID:      sessionID,
		ParticipantID:  participantID,
		QuestionIndex:  index,
		Answer:         answer,
		IsCorrect:      isCorrect,
		ResponseTimeMs: responseTimeMs,
		PointsEarned:   points,
		CreatedAt:      s.now(),
	}
	if err := s.store.InsertResponse(ctx, &response); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			// Two concurrent submissions; the stored row is the truth.
			stored, getErr := s.store.GetResponse(ctx, sessionID, participantID, index)
			if getErr == nil {
				return stored, nil
			}
			return response, nil
		}
		return domain.Response{}, fmt.Errorf("insert response: %w", err)
	}

	if !isOwnFakeAnswer {
		if err := s.store.UpdateParticipantStats(ctx, participantID, points, isCorrect, responseTimeMs); err != nil {
			return response, fmt.Errorf("update stats: %w", err)
		}
		if err := s.store.UpdateSessionRankings(ctx, sessionID); err != nil {
			return response, fmt.Errorf("refresh rankings: %w", err)
		}
		s.publishRankings(ctx, sessionID)
	}
	return response, nil
}

func (s *ChallengeService) publishRankings(ctx context.Context, sessionID string) {
	live, ok := s.hub.Get(sessionID)
	if !ok {
		return
	}
	participants, err := s.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return
	}
	entries := make([]domain.RankingEntry, 0, len(participants))
	for _, p := range participants {
		entries = append(entries, domain.RankingEntry{
			UserID:        p.UserID,
			Score:         p.Score,
			CorrectCount:  p.CorrectCount,
			AvgResponseMs: p.AvgResponseMs,
			Rank:          p.Rank,
		})
	}
	live.SetRankings(entries)
}
