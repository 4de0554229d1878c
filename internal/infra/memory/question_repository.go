package memory

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gitucha/BrainFuel/internal/domain"
)

// PoolLoader fetches the full question pool for a filter from a backing
// store (Postgres in production, a static seed in dev and tests).
type PoolLoader interface {
	LoadQuestions(ctx context.Context, category, difficulty string) ([]domain.Question, error)
}

// QuestionRepository caches question pools with TTL and serves both sides of
// the engine's question needs: sampling decks (correctness stripped) and
// grading submitted options. The answer index never expires, so any question
// that was ever dealt into a deck stays gradable for the rest of the process.
type QuestionRepository struct {
	loader PoolLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu      sync.RWMutex
	cache   map[string]cachedPool
	answers map[int64]int64 // question id -> correct option id
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader PoolLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader:  loader,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:   make(map[string]cachedPool),
		answers: make(map[int64]int64),
	}
}

// Questions samples min(count, available) questions for the filter.
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

// Grade reports whether the option is the correct one for the question.
// Unknown questions and options grade as incorrect.
func (r *QuestionRepository) Grade(_ context.Context, questionID, optionID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	correct, ok := r.answers[questionID]
	return ok && correct != 0 && correct == optionID, nil
}

func (r *QuestionRepository) pool(ctx context.Context, category, difficulty string) ([]domain.Question, error) {
	key := poolKey(category, difficulty)
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.questions, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.questions, nil
		}
		r.mu.RUnlock()

		questions, err := r.loader.LoadQuestions(ctx, category, difficulty)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[key] = cachedPool{questions: questions, expiresAt: now.Add(r.ttlWithJitter())}
		for _, q := range questions {
			r.answers[q.ID] = q.CorrectOption()
		}
		r.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations; callers hold r.mu for rnd
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

func poolKey(category, difficulty string) string {
	return strings.ToLower(category) + "|" + strings.ToLower(difficulty)
}

// StaticPool is a PoolLoader backed by a fixed slice (dev mode and tests).
type StaticPool struct {
	questions []domain.Question
}

func NewStaticPool(questions []domain.Question) *StaticPool {
	return &StaticPool{questions: questions}
}

func (p *StaticPool) LoadQuestions(_ context.Context, category, difficulty string) ([]domain.Question, error) {
	matched := make([]domain.Question, 0, len(p.questions))
	for _, q := range p.questions {
		if difficulty != "" && !strings.EqualFold(q.Difficulty, difficulty) {
			continue
		}
		if category != "" && !strings.EqualFold(q.Category, category) {
			continue
		}
		matched = append(matched, q)
	}
	return matched, nil
}
