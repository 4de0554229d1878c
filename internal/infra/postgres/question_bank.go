package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/gitucha/BrainFuel/internal/domain"
)

// QuestionBank loads question pools from the questions table, where each row
// stores the full question (options and correctness included) as JSONB.
type QuestionBank struct {
	pool *pgxpool.Pool
}

func NewQuestionBank(pool *pgxpool.Pool) *QuestionBank {
	return &QuestionBank{pool: pool}
}

func (b *QuestionBank) LoadQuestions(ctx context.Context, category, difficulty string) ([]domain.Question, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT data FROM questions
		WHERE ($1 = '' OR lower(category) = lower($1))
		  AND ($2 = '' OR lower(difficulty) = lower($2))`,
		category, difficulty)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var q domain.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
