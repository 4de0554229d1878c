package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"github.com/gitucha/BrainFuel/internal/app"
	"github.com/gitucha/BrainFuel/internal/domain"
	pgstore "github.com/gitucha/BrainFuel/internal/infra/postgres"
	pgmigrations "github.com/gitucha/BrainFuel/internal/infra/postgres/migrations"
	infraredis "github.com/gitucha/BrainFuel/internal/infra/redis"
)

// recordingBroadcaster captures events so the test can follow the match the
// way a connected client would.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []any
}

func (b *recordingBroadcaster) Broadcast(_ string, event any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBroadcaster) lastQuestion(t *testing.T) app.QuestionEvent {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.events) - 1; i >= 0; i-- {
		if q, ok := b.events[i].(app.QuestionEvent); ok {
			return q
		}
	}
	t.Fatalf("no question event broadcast")
	return app.QuestionEvent{}
}

func (b *recordingBroadcaster) results(t *testing.T) app.ResultsEvent {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.events) - 1; i >= 0; i-- {
		if r, ok := b.events[i].(app.ResultsEvent); ok {
			return r
		}
	}
	t.Fatalf("no results event broadcast")
	return app.ResultsEvent{}
}

func TestMatchEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	questions := seededQuestions()
	seedDatabase(t, ctx, pgURL, questions)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	broadcast := &recordingBroadcaster{}
	repo := infraredis.NewQuestionRepository(redisClient, pgstore.NewQuestionBank(pool), 5*time.Minute)
	rewards := pgstore.NewRewardStore(pool)
	registry := infraredis.NewRoomRegistry(redisClient, 5*time.Minute, app.Deps{
		Questions: repo,
		Grader:    repo,
		Rewards:   rewards,
		Broadcast: broadcast,
	})
	service := app.NewRoomService(registry)

	correct := make(map[int64]int64, len(questions))
	for _, q := range questions {
		correct[q.ID] = q.CorrectOption()
	}

	service.Join("GAME42", 1, "alice", domain.RolePlayer, "", 0)
	service.Join("GAME42", 2, "bob", domain.RolePlayer, "", 0)

	if err := service.Start(ctx, "GAME42", 1, "easy", len(questions)); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Alice answers every question correctly; bob never responds.
	for range questions {
		q := broadcast.lastQuestion(t)
		if err := service.Answer(ctx, "GAME42", 1, correct[q.Question.ID]); err != nil {
			t.Fatalf("answer: %v", err)
		}
	}

	results := broadcast.results(t)
	if results.Payload.Summary.TotalQuestions != len(questions) {
		t.Fatalf("unexpected summary: %+v", results.Payload.Summary)
	}
	winner := results.Payload.Ranking[0]
	if winner.UserID != 1 || winner.Correct != len(questions) || winner.XPEarned != len(questions)*10 {
		t.Fatalf("unexpected winner: %+v", winner)
	}

	var xp, level, thalers int
	err = pool.QueryRow(ctx, `SELECT xp, level, thalers FROM users WHERE id = 1`).Scan(&xp, &level, &thalers)
	if err != nil {
		t.Fatalf("read user: %v", err)
	}
	if xp != len(questions)*10 || thalers != len(questions)*2 || level != 1 {
		t.Fatalf("unexpected credited rewards: xp=%d level=%d thalers=%d", xp, level, thalers)
	}

	// Replaying the settlement must not double-credit.
	var matchID string
	if err := pool.QueryRow(ctx, `SELECT match_id FROM settlements WHERE user_id = 1`).Scan(&matchID); err != nil {
		t.Fatalf("read settlement: %v", err)
	}
	if err := rewards.Settle(ctx, matchID, 1, len(questions)*10, len(questions)*2); err != nil {
		t.Fatalf("replay settle: %v", err)
	}
	if err := pool.QueryRow(ctx, `SELECT xp FROM users WHERE id = 1`).Scan(&xp); err != nil {
		t.Fatalf("read user: %v", err)
	}
	if xp != len(questions)*10 {
		t.Fatalf("replayed settlement double-credited, xp=%d", xp)
	}
}

func TestRoomRepository(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	db := openBun(pgURL)
	defer db.Close()
	migrateDB(t, ctx, db)

	repo := pgstore.NewRoomRepository(db)
	room := domain.Room{
		ID:            "room-1",
		Code:          "ABC123",
		HostID:        1,
		HostUsername:  "alice",
		IsPublic:      true,
		Difficulty:    "easy",
		QuestionCount: 5,
		MaxPlayers:    8,
		Status:        domain.RoomWaiting,
	}
	if err := repo.Create(ctx, &room); err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := room
	dup.ID = "room-2"
	if err := repo.Create(ctx, &dup); err != domain.ErrRoomCodeTaken {
		t.Fatalf("expected ErrRoomCodeTaken for a duplicate code, got %v", err)
	}

	got, err := repo.ByCode(ctx, "ABC123")
	if err != nil {
		t.Fatalf("by code: %v", err)
	}
	if got.HostUsername != "alice" || got.QuestionCount != 5 {
		t.Fatalf("unexpected room: %+v", got)
	}
	if _, err := repo.ByCode(ctx, "NOPE"); err != domain.ErrRoomNotFound {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}

	private := room
	private.ID = "room-3"
	private.Code = "HIDDEN"
	private.IsPublic = false
	if err := repo.Create(ctx, &private); err != nil {
		t.Fatalf("create private: %v", err)
	}

	lobby, err := repo.PublicLobby(ctx)
	if err != nil {
		t.Fatalf("lobby: %v", err)
	}
	if len(lobby) != 1 || lobby[0].Code != "ABC123" {
		t.Fatalf("expected only the public room in the lobby, got %+v", lobby)
	}
}

func seededQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Text: "What is 2 + 2?", Difficulty: "easy", Options: []domain.Option{
			{ID: 11, Text: "4", Correct: true},
			{ID: 12, Text: "5"},
		}},
		{ID: 2, Text: "Capital of France?", Difficulty: "easy", Options: []domain.Option{
			{ID: 21, Text: "Paris", Correct: true},
			{ID: 22, Text: "Lyon"},
		}},
	}
}

func seedDatabase(t *testing.T, ctx context.Context, dsn string, questions []domain.Question) {
	t.Helper()
	db := openBun(dsn)
	defer db.Close()

	migrateDB(t, ctx, db)

	for _, q := range questions {
		data, err := json.Marshal(q)
		if err != nil {
			t.Fatalf("marshal question: %v", err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO questions (id, category, difficulty, data) VALUES (?, ?, ?, ?::jsonb)`,
			q.ID, q.Category, q.Difficulty, string(data)); err != nil {
			t.Fatalf("insert question: %v", err)
		}
	}
	for _, user := range []struct {
		id   int64
		name string
	}{{1, "alice"}, {2, "bob"}} {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO users (id, username) VALUES (?, ?)`, user.id, user.name); err != nil {
			t.Fatalf("insert user: %v", err)
		}
	}
}

func openBun(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func migrateDB(t *testing.T, ctx context.Context, db *bun.DB) {
	t.Helper()
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "arena", "POSTGRES_PASSWORD": "arenapass", "POSTGRES_DB": "arenadb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://arena:arenapass@%s:%s/arenadb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
