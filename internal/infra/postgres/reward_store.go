package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// RewardStore settles match rewards against the users table. The settlements
// table is the idempotency ledger: a (match_id, user_id) pair is credited at
// most once, however often settlement is retried.
type RewardStore struct {
	pool *pgxpool.Pool
}

func NewRewardStore(pool *pgxpool.Pool) *RewardStore {
	return &RewardStore{pool: pool}
}

func (s *RewardStore) Settle(ctx context.Context, matchID string, userID int64, xp, thalers int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("settle: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO settlements (match_id, user_id, xp, thalers)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (match_id, user_id) DO NOTHING`,
		matchID, userID, xp, thalers)
	if err != nil {
		return fmt.Errorf("settle: ledger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already settled for this match.
		return tx.Commit(ctx)
	}

	var totalXP, level int
	err = tx.QueryRow(ctx, `
		UPDATE users SET xp = xp + $2, thalers = thalers + $3
		WHERE id = $1
		RETURNING xp, level`,
		userID, xp, thalers).Scan(&totalXP, &level)
	if errors.Is(err, pgx.ErrNoRows) {
		// Unknown user: keep the ledger entry so retries stay no-ops.
		return tx.Commit(ctx)
	}
	if err != nil {
		return fmt.Errorf("settle: credit user %d: %w", userID, err)
	}

	newLevel := level
	for totalXP >= newLevel*100 {
		newLevel++
	}
	if newLevel != level {
		if _, err := tx.Exec(ctx, `UPDATE users SET level = $2 WHERE id = $1`, userID, newLevel); err != nil {
			return fmt.Errorf("settle: level up user %d: %w", userID, err)
		}
		log.Printf("rewards: user %d leveled up to %d", userID, newLevel)
	}

	return tx.Commit(ctx)
}
