package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gitucha/BrainFuel/internal/domain"
)

type countingLoader struct {
	inner PoolLoader
	calls int
	err   error
}

func (l *countingLoader) LoadQuestions(ctx context.Context, category, difficulty string) ([]domain.Question, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.inner.LoadQuestions(ctx, category, difficulty)
}

func fixedQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Text: "q1", Category: "science", Difficulty: "easy", Options: []domain.Option{
			{ID: 11, Text: "right", Correct: true},
			{ID: 12, Text: "wrong"},
		}},
		{ID: 2, Text: "q2", Category: "science", Difficulty: "easy", Options: []domain.Option{
			{ID: 21, Text: "right", Correct: true},
			{ID: 22, Text: "wrong"},
		}},
		{ID: 3, Text: "q3", Category: "history", Difficulty: "hard", Options: []domain.Option{
			{ID: 31, Text: "right", Correct: true},
		}},
	}
}

func TestQuestionsServedFromCacheWithinTTL(t *testing.T) {
	loader := &countingLoader{inner: NewStaticPool(fixedQuestions())}
	repo := NewQuestionRepository(loader, time.Minute)
	ctx := context.Background()

	if _, err := repo.Questions(ctx, "", "easy", 2); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if _, err := repo.Questions(ctx, "", "easy", 2); err != nil {
		t.Fatalf("cached load: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected one backing load, got %d", loader.calls)
	}

	// A different filter is a different pool.
	if _, err := repo.Questions(ctx, "", "hard", 1); err != nil {
		t.Fatalf("hard load: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected a second backing load, got %d", loader.calls)
	}
}

func TestQuestionsSamplesAtMostAvailable(t *testing.T) {
	repo := NewQuestionRepository(NewStaticPool(fixedQuestions()), time.Minute)

	views, err := repo.Questions(context.Background(), "", "easy", 10)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected the 2 easy questions, got %d", len(views))
	}
	for _, view := range views {
		if view.ID != 1 && view.ID != 2 {
			t.Fatalf("unexpected question %d in easy deck", view.ID)
		}
	}
}

func TestQuestionsEmptyPool(t *testing.T) {
	repo := NewQuestionRepository(NewStaticPool(nil), time.Minute)
	views, err := repo.Questions(context.Background(), "", "easy", 5)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(views) != 0 {
		t.Fatalf("expected empty deck, got %d", len(views))
	}
}

func TestQuestionsLoaderFailure(t *testing.T) {
	loader := &countingLoader{err: errors.New("backing store down")}
	repo := NewQuestionRepository(loader, time.Minute)
	if _, err := repo.Questions(context.Background(), "", "easy", 5); err == nil {
		t.Fatalf("expected the loader error to surface")
	}
}

func TestGrade(t *testing.T) {
	repo := NewQuestionRepository(NewStaticPool(fixedQuestions()), time.Minute)
	ctx := context.Background()
	if _, err := repo.Questions(ctx, "", "easy", 2); err != nil {
		t.Fatalf("load: %v", err)
	}

	cases := []struct {
		name       string
		questionID int64
		optionID   int64
		want       bool
	}{
		{"correct option", 1, 11, true},
		{"wrong option", 1, 12, false},
		{"unknown question", 99, 11, false},
		{"option from another question", 1, 21, false},
	}
	for _, tc := range cases {
		got, err := repo.Grade(ctx, tc.questionID, tc.optionID)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestAnswerIndexSurvivesPoolExpiry(t *testing.T) {
	loader := &countingLoader{inner: NewStaticPool(fixedQuestions())}
	repo := NewQuestionRepository(loader, time.Minute)
	ctx := context.Background()

	if _, err := repo.Questions(ctx, "", "easy", 2); err != nil {
		t.Fatalf("load: %v", err)
	}

	// Move the clock past the pool's TTL. Dealt decks must stay gradable
	// even though the next sample would hit the backing store again.
	repo.clock = func() time.Time { return time.Now().Add(2 * time.Minute) }

	ok, err := repo.Grade(ctx, 1, 11)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if !ok {
		t.Fatalf("expected grading to work after pool expiry")
	}

	if _, err := repo.Questions(ctx, "", "easy", 2); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected expiry to trigger a reload, got %d calls", loader.calls)
	}
}
