package app

import (
	"context"
	"errors"

	"deckclash-challenge-service/internal/domain"
)

// Question fetches one round of a session.
func (s *ChallengeService) Question(ctx context.Context, sessionID string, index int) (domain.Question, error) {
	return s.store.GetQuestion(ctx, sessionID, index)
}

// Participant fetches a session member by user id.
func (s *ChallengeService) Participant(ctx context.Context, sessionID, userID string) (domain.Participant, error) {
	return s.store.GetParticipant(ctx, sessionID, userID)
}

// Session fetches a session by id.
func (s *ChallengeService) Session(ctx context.Context, sessionID string) (domain.Session, error) {
	return s.store.GetSession(ctx, sessionID)
}

// IsOwnFakeAnswer reports whether the given answer is the decoy this user
// submitted for the question. Used to deny credit for self-baiting.
func (s *ChallengeService) IsOwnFakeAnswer(ctx context.Context, sessionID, userID string, index int, answer string) (bool, error) {
	decoy, err := s.store.GetBaitAnswer(ctx, sessionID, userID, index)
	if err != nil {
		if errors.Is(err, domain.ErrQuestionNotFound) {
			return false, nil // user never submitted a decoy this round
		}
		return false, err
	}
	return decoy.FakeAnswer != "" && decoy.FakeAnswer == answer, nil
}

// FakeAnswerOf returns the decoy this user submitted for the question, or an
// empty string when they never submitted one.
func (s *ChallengeService) FakeAnswerOf(ctx context.Context, sessionID, userID string, index int) (string, error) {
	decoy, err := s.store.GetBaitAnswer(ctx, sessionID, userID, index)
	if err != nil {
		if errors.Is(err, domain.ErrQuestionNotFound) {
			return "", nil
		}
		return "", err
	}
	return decoy.FakeAnswer, nil
}
