package app

import (
	"context"
	"crypto/rand"
	"fmt"

	"deckclash-challenge-service/internal/domain"
)

const (
	codeChars    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 5
	codeAttempts = 10
)

// GenerateUniqueJoinCode draws 5-char [A-Z0-9] codes until one is free in
// both the code index and the session table, giving up after 10 collisions.
func (s *ChallengeService) GenerateUniqueJoinCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", fmt.Errorf("draw code: %w", err)
		}

		taken, err := s.codes.Exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code index: %w", err)
		}
		if taken {
			continue
		}
		exists, err := s.store.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code: %w", err)
		}
		if exists {
			continue
		}

		ok, err := s.codes.Reserve(ctx, code, s.sessionTTL)
		if err != nil {
			return "", fmt.Errorf("reserve code: %w", err)
		}
		if !ok {
			// Lost the race for this code; draw another.
			continue
		}
		return code, nil
	}
	return "", domain.ErrCodeExhausted
}

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := make([]byte, codeLength)
	for i := range code {
		code[i] = codeChars[int(buf[i])%len(codeChars)]
	}
	return string(code), nil
}
