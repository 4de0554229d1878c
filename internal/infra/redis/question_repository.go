package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/gitucha/BrainFuel/internal/domain"
)

// answerTTL outlives any plausible match by a wide margin so a deck dealt
// from a cached pool stays gradable until the room finishes.
const answerTTL = 24 * time.Hour

// PoolLoader fetches the full question pool for a filter from a backing
// store (e.g. Postgres).
type PoolLoader interface {
	LoadQuestions(ctx context.Context, category, difficulty string) ([]domain.Question, error)
}

// QuestionRepository caches question pools in Redis and grades answers from
// per-question answer keys filled on every pool load:
//
//	SET arena:questions:{category}:{difficulty} <json pool>  EX ttl+jitter
//	SET arena:answer:{questionID} <correct option id>        EX 24h
//
// Correctness never leaves this package; deck sampling returns views only.
type QuestionRepository struct {
	client *redis.Client
	loader PoolLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader PoolLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Questions samples min(count, available) questions for the filter from the
// cached pool, falling back to the loader on a miss.
func (r *QuestionRepository) Questions(ctx context.Context, category, difficulty string, count int) ([]domain.QuestionView, error) {
	pool, err := r.pool(ctx, category, difficulty)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, nil
	}

	r.mu.Lock()
	picked := r.rnd.Perm(len(pool))
	r.mu.Unlock()

	if count > len(pool) {
		count = len(pool)
	}
	views := make([]domain.QuestionView, 0, count)
	for _, idx := range picked[:count] {
		views = append(views, pool[idx].View())
	}
	return views, nil
}

// Grade checks the submitted option against the cached answer key. A missing
// key grades as incorrect rather than failing the match.
func (r *QuestionRepository) Grade(ctx context.Context, questionID, optionID int64) (bool, error) {
	raw, err := r.client.Get(ctx, r.answerKey(questionID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	correct, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, nil
	}
	return correct != 0 && correct == optionID, nil
}

func (r *QuestionRepository) pool(ctx context.Context, category, difficulty string) ([]domain.Question, error) {
	key := r.poolKey(category, difficulty)

	if pool, ok := r.cachedPool(ctx, key); ok {
		return pool, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if pool, ok := r.cachedPool(ctx, key); ok {
			return pool, nil
		}

		pool, err := r.loader.LoadQuestions(ctx, category, difficulty)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(pool)
		if err != nil {
			return nil, err
		}
		pipe := r.client.Pipeline()
		pipe.Set(ctx, key, data, r.ttlWithJitter())
		for _, q := range pool {
			pipe.Set(ctx, r.answerKey(q.ID), strconv.FormatInt(q.CorrectOption(), 10), answerTTL)
		}
		_, _ = pipe.Exec(ctx)

		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) cachedPool(ctx context.Context, key string) ([]domain.Question, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var pool []domain.Question
	if err := json.Unmarshal(raw, &pool); err != nil {
		return nil, false
	}
	return pool, true
}

func (r *QuestionRepository) poolKey(category, difficulty string) string {
	return "arena:questions:" + strings.ToLower(category) + ":" + strings.ToLower(difficulty)
}

func (r *QuestionRepository) answerKey(questionID int64) string {
	return "arena:answer:" + strconv.FormatInt(questionID, 10)
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
