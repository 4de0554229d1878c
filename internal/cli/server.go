package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/gitucha/BrainFuel/internal/app"
	"github.com/gitucha/BrainFuel/internal/auth"
	"github.com/gitucha/BrainFuel/internal/config"
	"github.com/gitucha/BrainFuel/internal/domain"
	"github.com/gitucha/BrainFuel/internal/infra/memory"
	pginfra "github.com/gitucha/BrainFuel/internal/infra/postgres"
	redisinfra "github.com/gitucha/BrainFuel/internal/infra/redis"
	transport "github.com/gitucha/BrainFuel/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the arena server",
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
	if cfg.Auth.Secret == "" {
		return fmt.Errorf("auth secret not configured")
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
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	hub := transport.NewHub()

	var questions interface {
		app.QuestionSource
		app.AnswerGrader
	}
	if redisClient != nil {
		var loader redisinfra.PoolLoader = memory.NewStaticPool(sampleQuestions())
		if pool != nil {
			loader = pginfra.NewQuestionBank(pool)
		}
		questions = redisinfra.NewQuestionRepository(redisClient, loader, questionTTL)
	} else {
		var loader memory.PoolLoader = memory.NewStaticPool(sampleQuestions())
		if pool != nil {
			loader = pginfra.NewQuestionBank(pool)
		}
		questions = memory.NewQuestionRepository(loader, questionTTL)
	}

	var rewards app.RewardSettler = memory.NewRewardLedger()
	if pool != nil {
		rewards = pginfra.NewRewardStore(pool)
	}

	deps := app.Deps{
		Questions: questions,
		Grader:    questions,
		Rewards:   rewards,
		Broadcast: hub,
		Category:  cfg.Questions.Category,
	}

	var registry app.RoomRegistry
	if redisClient != nil {
		registry = redisinfra.NewRoomRegistry(redisClient, redisTTL, deps)
	} else {
		registry = memory.NewRoomRegistry(deps)
	}

	service := app.NewRoomService(registry)
	verifier := auth.NewVerifier(cfg.Auth.Secret)
	wsHandler := transport.NewWSHandler(service, hub, verifier)

	var roomsHandler *transport.RoomsHandler
	if cfg.Postgres.URL != "" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		roomsHandler = transport.NewRoomsHandler(pginfra.NewRoomRepository(db), verifier)
	}

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(wsHandler, roomsHandler),
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting arena server on :%s", finalPort)
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

// sampleQuestions seeds a small pool for running without Postgres; swap in
// the database-backed bank by configuring postgres.url.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID: 1, Text: "What is 2 + 2?", Difficulty: "easy",
			Options: []domain.Option{
				{ID: 11, Text: "3"},
				{ID: 12, Text: "4", Correct: true},
				{ID: 13, Text: "5"},
			},
		},
		{
			ID: 2, Text: "Which planet is known as the Red Planet?", Difficulty: "easy",
			Options: []domain.Option{
				{ID: 21, Text: "Venus"},
				{ID: 22, Text: "Mars", Correct: true},
				{ID: 23, Text: "Jupiter"},
			},
		},
		{
			ID: 3, Text: "What is the square root of 144?", Difficulty: "medium",
			Options: []domain.Option{
				{ID: 31, Text: "10"},
				{ID: 32, Text: "12", Correct: true},
				{ID: 33, Text: "14"},
			},
		},
		{
			ID: 4, Text: "Who wrote 'One Hundred Years of Solitude'?", Difficulty: "hard",
			Options: []domain.Option{
				{ID: 41, Text: "Jorge Luis Borges"},
				{ID: 42, Text: "Gabriel García Márquez", Correct: true},
				{ID: 43, Text: "Mario Vargas Llosa"},
			},
		},
	}
}
