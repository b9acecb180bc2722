package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"deckclash-challenge-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// DeckLoader fetches deck content from a backing store (e.g., Postgres JSONB).
type DeckLoader interface {
	LoadDeck(ctx context.Context, deckID string) (domain.Deck, error)
}

// DeckRepository caches whole decks as JSON blobs in Redis and falls back to
// a loader on cache miss. Stored as: SET deck:{deckID} {json} EX ttl
type DeckRepository struct {
	client *redis.Client
	loader DeckLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewDeckRepository(client *redis.Client, loader DeckLoader, ttl time.Duration) *DeckRepository {
	return &DeckRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *DeckRepository) GetDeck(ctx context.Context, deckID string) (domain.Deck, error) {
	key := r.key(deckID)

	if deck, ok := r.fromCache(ctx, key); ok {
		return deck, nil
	}

	result, err, _ := r.sf.Do(deckID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if deck, ok := r.fromCache(ctx, key); ok {
			return deck, nil
		}

		deck, err := r.loader.LoadDeck(ctx, deckID)
		if err != nil {
			return domain.Deck{}, err
		}

		if data, err := json.Marshal(deck); err == nil {
			_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		}
		return deck, nil
	})
	if err != nil {
		return domain.Deck{}, err
	}
	return result.(domain.Deck), nil
}

func (r *DeckRepository) fromCache(ctx context.Context, key string) (domain.Deck, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.Deck{}, false
	}
	var deck domain.Deck
	if err := json.Unmarshal(data, &deck); err != nil {
		return domain.Deck{}, false
	}
	return deck, true
}

func (r *DeckRepository) key(deckID string) string {
	return "deck:" + deckID
}

func (r *DeckRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
