package app

import (
	"context"
	"errors"
	"fmt"

	"deckclash-challenge-service/internal/domain"
)

// baitFiller pads the distractor array when fewer than three players
// contributed a decoy.
func baitFiller(n int) string {
	return fmt.Sprintf("kanang kuan (%d)", n)
}

// SubmitFakeAnswer records one participant's decoy and, once every ready
// participant has submitted, finalizes the question's three wrong options.
//
// The whole operation is safe to run concurrently from every client: the
// insert is idempotent per (session, user, question), and synthesis is
// deterministic given the completed submission set, so redundant finalize
// writes all carry the same array.
func (s *ChallengeService) SubmitFakeAnswer(ctx context.Context, sessionID, userID string, index int, fakeAnswer string) error {
	question, err := s.store.GetQuestion(ctx, sessionID, index)
	if err != nil {
		return err
	}
	// Phase already closed; late decoys are dropped without complaint.
	if question.OptionsFinal() {
		return nil
	}

	answer := domain.BetAndBaitAnswer{
		SessionID:     sessionID,
		UserID:        userID,
		QuestionIndex: index,
		FakeAnswer:    fakeAnswer,
		CreatedAt:     s.now(),
	}
	if err := s.store.InsertBaitAnswer(ctx, &answer); err != nil && !errors.Is(err, domain.ErrDuplicate) {
		return fmt.Errorf("insert decoy: %w", err)
	}

	submitted, err := s.store.CountBaitAnswers(ctx, sessionID, index)
	if err != nil {
		return fmt.Errorf("count decoys: %w", err)
	}
	active, err := s.store.CountReady(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("count active: %w", err)
	}
	if submitted < active {
		return nil // still waiting on somebody
	}

	return s.finalizeWrongOptions(ctx, sessionID, index)
}

func (s *ChallengeService) finalizeWrongOptions(ctx context.Context, sessionID string, index int) error {
	decoys, err := s.store.ListBaitAnswers(ctx, sessionID, index)
	if err != nil {
		return fmt.Errorf("list decoys: %w", err)
	}

	var options [domain.WrongOptionCount]string
	filled := 0
	for _, decoy := range decoys {
		if filled == domain.WrongOptionCount {
			break // more submitters than slots; first three win
		}
		options[filled] = decoy.FakeAnswer
		filled++
	}
	for n := 1; filled < domain.WrongOptionCount; n++ {
		options[filled] = baitFiller(n)
		filled++
	}

	if err := s.store.FinalizeWrongOptions(ctx, sessionID, index, options); err != nil {
		return fmt.Errorf("finalize options: %w", err)
	}
	if live, ok := s.hub.Get(sessionID); ok {
		live.Announce(EventDistractors)
	}
	return nil
}

// ClearBaitAnswers wipes all decoy submissions for a question so the phase
// can be re-run.
func (s *ChallengeService) ClearBaitAnswers(ctx context.Context, sessionID string, index int) error {
	return s.store.DeleteBaitAnswers(ctx, sessionID, index)
}
