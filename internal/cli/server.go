package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deckclash-challenge-service/internal/app"
	"deckclash-challenge-service/internal/config"
	"deckclash-challenge-service/internal/domain"
	"deckclash-challenge-service/internal/infra/memory"
	pgloader "deckclash-challenge-service/internal/infra/postgres"
	redisinfra "deckclash-challenge-service/internal/infra/redis"
	transport "deckclash-challenge-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the challenge server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	sessionTTL := config.TTLDuration(cfg.Challenge.SessionTTL, 30*time.Minute)
	deckTTL := config.TTLDuration(cfg.Challenge.DeckTTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.DeckLoader = memory.NewStaticDeckLoader(sampleDecks())
	if pool != nil {
		loader = pgloader.NewDeckLoader(pool)
	}

	var decks app.DeckRepository
	if redisClient != nil {
		decks = redisinfra.NewDeckRepository(redisClient, loader, deckTTL)
	} else {
		decks = memory.NewDeckRepository(loader, deckTTL)
	}

	var codes app.CodeIndex
	if redisClient != nil {
		codes = redisinfra.NewCodeIndex(redisClient)
	} else {
		codes = memory.NewCodeIndex()
	}

	var store app.Store
	if pool != nil {
		store = pgloader.NewStore(newBunDB(cfg.Postgres.URL))
	} else {
		store = memory.NewStore()
	}

	hub := app.NewHub()
	service := app.NewChallengeService(store, decks, codes, hub, sessionTTL).
		WithPhaseDurations(
			time.Duration(cfg.Challenge.AnswerSeconds)*time.Second,
			time.Duration(cfg.Challenge.BaitSeconds)*time.Second,
		)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting challenge service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	service.Tasks().Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleDecks provides a minimal question bank; the Postgres loader replaces
// this in production.
func sampleDecks() map[string]domain.Deck {
	return map[string]domain.Deck{
		"deck-1": {
			ID: "deck-1",
			Cards: []domain.Card{
				{Front: "Capital of France?", Back: "Paris"},
				{Front: "Largest planet in the solar system?", Back: "Jupiter"},
				{Front: "H2O is commonly known as?", Back: "Water"},
			},
		},
	}
}
