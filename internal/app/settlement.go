package app

import (
	"context"
	"fmt"

	"deckclash-challenge-service/internal/domain"
)

// BetAndBaitResults computes one player's settlement for a finished round.
//
// The player was baited when their recorded answer is wrong, is not the decoy
// they authored themselves, and matches a decoy some other participant wrote.
// BaitedCount is how many other players fell for this player's decoy.
func (s *ChallengeService) BetAndBaitResults(ctx context.Context, sessionID string, index int, userID, userFakeAnswer string) (domain.BaitResult, error) {
	responses, err := s.store.ListResponses(ctx, sessionID, index)
	if err != nil {
		return domain.BaitResult{}, fmt.Errorf("list responses: %w", err)
	}
	decoys, err := s.store.ListBaitAnswers(ctx, sessionID, index)
	if err != nil {
		return domain.BaitResult{}, fmt.Errorf("list decoys: %w", err)
	}
	participants, err := s.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return domain.BaitResult{}, fmt.Errorf("list participants: %w", err)
	}

	userOf := make(map[string]string, len(participants))
	for _, p := range participants {
		userOf[p.ID] = p.UserID
	}

	result := domain.BaitResult{QuestionIndex: index}

	var own *domain.Response
	for i := range responses {
		if userOf[responses[i].ParticipantID] == userID {
			own = &responses[i]
			break
		}
	}

	if own != nil && !own.IsCorrect && own.Answer != userFakeAnswer {
		for _, decoy := range decoys {
			if decoy.UserID != userID && decoy.FakeAnswer == own.Answer {
				result.WasBaited = true
				break
			}
		}
	}

	if userFakeAnswer != "" {
		for _, response := range responses {
			victim := userOf[response.ParticipantID]
			if victim == userID || response.IsCorrect {
				continue
			}
			if response.Answer == userFakeAnswer {
				result.BaitedCount++
			}
		}
	}

	if result.WasBaited {
		result.XPDelta -= baitPenaltyXP
	}
	result.XPDelta += result.BaitedCount * baitRewardXP
	return result, nil
}

// UpdateBaitScores applies a settlement as independent atomic increments: one
// debit when the player was baited, one credit for their victims. The pair is
// deliberately not wrapped in a transaction, matching the round protocol; a
// crash between the two leaves the ledger unbalanced and no recovery runs.
func (s *ChallengeService) UpdateBaitScores(ctx context.Context, sessionID, userID string, result domain.BaitResult) error {
	if result.WasBaited {
		if err := s.store.UpdateParticipantScore(ctx, sessionID, userID, -baitPenaltyXP); err != nil {
			return fmt.Errorf("apply bait debit: %w", err)
		}
	}
	if result.BaitedCount > 0 {
		if err := s.store.UpdateParticipantScore(ctx, sessionID, userID, result.BaitedCount*baitRewardXP); err != nil {
			return fmt.Errorf("apply bait credit: %w", err)
		}
	}
	return nil
}
