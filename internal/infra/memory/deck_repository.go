package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"deckclash-challenge-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// DeckLoader fetches deck content from a backing store (e.g., document DB).
type DeckLoader interface {
	LoadDeck(ctx context.Context, deckID string) (domain.Deck, error)
}

// DeckRepository caches decks with TTL to avoid repeated DB hits while
// sessions are being created from the same deck.
type DeckRepository struct {
	loader DeckLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedDeck
}

type cachedDeck struct {
	deck      domain.Deck
	expiresAt time.Time
}

func NewDeckRepository(loader DeckLoader, ttl time.Duration) *DeckRepository {
	return &DeckRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedDeck),
	}
}

func (r *DeckRepository) GetDeck(ctx context.Context, deckID string) (domain.Deck, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[deckID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.deck, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(deckID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[deckID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.deck, nil
		}
		r.mu.RUnlock()

		deck, err := r.loader.LoadDeck(ctx, deckID)
		if err != nil {
			return domain.Deck{}, err
		}

		r.mu.Lock()
		r.cache[deckID] = cachedDeck{
			deck:      deck,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return deck, nil
	})
	if err != nil {
		return domain.Deck{}, err
	}
	return result.(domain.Deck), nil
}

func (r *DeckRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticDeckLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticDeckLoader struct {
	decks map[string]domain.Deck
}

func NewStaticDeckLoader(decks map[string]domain.Deck) *StaticDeckLoader {
	return &StaticDeckLoader{decks: decks}
}

func (l *StaticDeckLoader) LoadDeck(_ context.Context, deckID string) (domain.Deck, error) {
	if deck, ok := l.decks[deckID]; ok {
		return deck, nil
	}
	return domain.Deck{}, domain.ErrDeckNotFound
}
