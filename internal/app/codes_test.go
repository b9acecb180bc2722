package app_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"deckclash-challenge-service/internal/domain"
)

func TestGenerateUniqueJoinCodeAvoidsTakenCodes(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)

	// Seed a thousand live sessions so the session-table check has real
	// codes to collide with.
	taken := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		code := fmt.Sprintf("T%04d", i)
		session := domain.Session{
			ID:            fmt.Sprintf("seed-%d", i),
			HostID:        "seed",
			Code:          code,
			DeckID:        "deck-1",
			Status:        domain.SessionWaiting,
			QuestionCount: 1,
			CreatedAt:     time.Now(),
		}
		if err := store.CreateSession(ctx, &session); err != nil {
			t.Fatalf("seed session %d: %v", i, err)
		}
		taken[code] = struct{}{}
	}

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		code, err := service.GenerateUniqueJoinCode(ctx)
		if err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
		if len(code) != 5 {
			t.Fatalf("code %q is not 5 chars", code)
		}
		for _, r := range code {
			if !strings.ContainsRune("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789", r) {
				t.Fatalf("code %q has a character outside [A-Z0-9]", code)
			}
		}
		if _, ok := taken[code]; ok {
			t.Fatalf("generated code %q collides with a live session", code)
		}
		if _, ok := seen[code]; ok {
			t.Fatalf("generated code %q twice", code)
		}
		seen[code] = struct{}{}
	}
}
