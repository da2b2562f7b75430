package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cybersensei-service/internal/app"
	"cybersensei-service/internal/config"
	"cybersensei-service/internal/domain"
	"cybersensei-service/internal/infra/memory"
	pgstore "cybersensei-service/internal/infra/postgres"
	redisrepo "cybersensei-service/internal/infra/redis"
	transport "cybersensei-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the progression server",
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

	secret := cfg.Auth.Secret
	if secret == "" {
		secret = "dev-secret"
		log.Printf("auth.secret not configured, using insecure dev secret")
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	missionTTL := config.TTLDuration(cfg.Mission.TTL, 10*time.Minute)

	var (
		missions app.MissionRepository
		attempts app.AttemptStore
		stats    app.StatsStore
		friends  app.FriendStore
		profiles app.ProfileStore
		badges   app.BadgeStore
	)

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())

		loader := pgstore.NewMissionLoader(pool)
		if redisClient != nil {
			missions = redisrepo.NewMissionRepository(redisClient, loader, missionTTL)
		} else {
			missions = memory.NewMissionRepository(loader, missionTTL)
		}

		statsStore := pgstore.NewStatsStore(db)
		attempts = pgstore.NewAttemptStore(db)
		stats = statsStore
		friends = pgstore.NewFriendStore(db, statsStore)
		profiles = pgstore.NewProfileStore(db)
		badges = pgstore.NewBadgeStore(db)
	} else {
		// Demo mode: everything in memory, preloaded with sample content.
		log.Printf("postgres url not configured, running in demo mode")
		store := memory.NewStore()
		for _, m := range sampleMissions() {
			store.AddMission(m)
		}
		missions = store
		attempts = store
		stats = store
		friends = store
		profiles = store
		badges = store
	}

	board := app.NewScoreboard(stats)
	progression := app.NewProgressionService(missions, attempts, stats, profiles)
	attemptSvc := app.NewAttemptService(missions, attempts, stats, progression, board)
	statsSvc := app.NewStatsService(attempts, stats, badges)
	friendSvc := app.NewFriendService(friends, profiles)
	profileSvc := app.NewProfileService(profiles)

	verifier := transport.NewTokenVerifier(secret)
	api := transport.NewAPI(profileSvc, progression, attemptSvc, statsSvc, friendSvc, board, verifier)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      api.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting cybersensei service on :%s", finalPort)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleMissions provides minimal demo content; production missions are
// seeded into Postgres with the seed command.
func sampleMissions() []domain.Mission {
	return []domain.Mission{
		{
			ID:    "m-001",
			Level: 1,
			Type:  "basico",
			Payload: domain.MissionPayload{
				Title:    "Contrasenas",
				Question: "Which password is strongest?",
				Choices: []domain.Choice{
					{ID: "a", Text: "123456", IsCorrect: false},
					{ID: "b", Text: "correct-horse-battery-staple", IsCorrect: true},
					{ID: "c", Text: "password", IsCorrect: false},
				},
				Scoring: domain.Scoring{Points: 10},
				TimeMS:  30000,
			},
		},
		{
			ID:    "m-002",
			Level: 2,
			Type:  "basico",
			Payload: domain.MissionPayload{
				Title:    "Phishing",
				Question: "An email asks for your bank login. What do you do?",
				Choices: []domain.Choice{
					{ID: "a", Text: "Reply with the credentials", IsCorrect: false},
					{ID: "b", Text: "Report it as phishing", IsCorrect: true},
				},
				Scoring: domain.Scoring{Points: 10},
				TimeMS:  30000,
			},
		},
	}
}
