package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/auth"
	"trivia-session-service/internal/config"
	"trivia-session-service/internal/infra/memory"
	pgbank "trivia-session-service/internal/infra/postgres"
	redisinfra "trivia-session-service/internal/infra/redis"
	"trivia-session-service/internal/infra/trivia"
	transport "trivia-session-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia session server",
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

	sessionTTL := config.TTLDuration(cfg.Game.SessionTTL, 3*time.Hour)
	sweepInterval := config.TTLDuration(cfg.Game.SweepInterval, time.Hour)
	triviaTTL := config.TTLDuration(cfg.Trivia.TTL, 10*time.Minute)
	tokenTTL := config.TTLDuration(cfg.Auth.TokenTTL, time.Hour)
	refreshTTL := config.TTLDuration(cfg.Auth.RefreshTTL, 24*time.Hour)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	// Question source: a Postgres question bank behind a TTL cache when
	// configured, otherwise the public trivia API.
	var source app.QuestionSource
	if pool != nil {
		source = memory.NewCachedQuestionSource(pgbank.NewQuestionBank(pool), triviaTTL)
	} else {
		source = trivia.NewClient(cfg.Trivia.URL)
	}

	registry := app.NewRegistry(sessionTTL)
	if redisClient != nil {
		registry.SetHook(redisinfra.NewRegistryHook(redisClient, sessionTTL))
	}

	bus := memory.NewEventBus()
	var publisher app.Publisher = bus
	if redisClient != nil {
		publisher = app.MultiPublisher{bus, redisinfra.NewPublisher(redisClient)}
	}

	secret := cfg.Auth.Secret
	if secret == "" {
		secret = os.Getenv("AUTH_SECRET")
	}
	if secret == "" {
		log.Printf("auth secret not configured, using an insecure development default")
		secret = "insecure-dev-secret"
	}
	tokens := auth.NewTokenService(secret, tokenTTL, refreshTTL)

	engine := app.NewEngine(registry, source, publisher, cfg.Game.QuestionTime, cfg.Game.RevealDelay)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go engine.RunClock(runCtx)
	go registry.RunSweeper(runCtx, sweepInterval)

	sessionHandler := transport.NewSessionHandler(engine, tokens)
	wsHandler := transport.NewWSHandler(engine, bus, tokens)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	sessionHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting trivia session service on :%s", finalPort)
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
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}
