package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lfgarc/giftcode-redeemer/internal/model"
)

// PairRepository is the durable idempotency index over (player, code) pairs.
// A redeemed pair is never attempted again; a blocked reason retires the
// code for every player, not just the pair it was observed on.
type PairRepository struct {
	pool PoolInterface
}

// NewPairRepository creates a new PairRepository with the given pool.
func NewPairRepository(pool *pgxpool.Pool) *PairRepository {
	return &PairRepository{pool: pool}
}

// NewPairRepositoryWithPool creates a new PairRepository with a custom pool
// interface. This is primarily used for testing.
func NewPairRepositoryWithPool(pool PoolInterface) *PairRepository {
	return &PairRepository{pool: pool}
}

// MarkRedeemed upserts the redeemed timestamp for a pair. Idempotent;
// the latest write wins.
func (r *PairRepository) MarkRedeemed(ctx context.Context, playerID, code string, ts int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO player_codes (player_id, code, redeemed_at) VALUES ($1, $2, $3)
		 ON CONFLICT (player_id, code) DO UPDATE SET redeemed_at = EXCLUDED.redeemed_at`,
		playerID, code, ts)
	if err != nil {
		return fmt.Errorf("mark pair (%s, %s) redeemed: %w", playerID, code, err)
	}
	return nil
}

// MarkBlocked upserts the blocked reason for a pair. The block is projected
// code-wide when skip sets are computed.
func (r *PairRepository) MarkBlocked(ctx context.Context, playerID, code string, reason model.BlockReason) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO player_codes (player_id, code, blocked_reason) VALUES ($1, $2, $3)
		 ON CONFLICT (player_id, code) DO UPDATE SET blocked_reason = EXCLUDED.blocked_reason`,
		playerID, code, string(reason))
	if err != nil {
		return fmt.Errorf("mark pair (%s, %s) blocked: %w", playerID, code, err)
	}
	return nil
}

// SkipSet loads every satisfied pair and every globally blocked code. Used
// once per work-set construction so TotalTasks counts only genuine work.
func (r *PairRepository) SkipSet(ctx context.Context) (*model.SkipSet, error) {
	skip := model.NewSkipSet()

	rows, err := r.pool.Query(ctx,
		`SELECT player_id, code FROM player_codes WHERE redeemed_at IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("query redeemed pairs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pair model.Pair
		if err := rows.Scan(&pair.PlayerID, &pair.Code); err != nil {
			return nil, fmt.Errorf("scan redeemed pair: %w", err)
		}
		skip.Redeemed[pair] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate redeemed pairs: %w", err)
	}

	blockedRows, err := r.pool.Query(ctx,
		`SELECT DISTINCT code, blocked_reason FROM player_codes WHERE blocked_reason IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("query blocked codes: %w", err)
	}
	defer blockedRows.Close()
	for blockedRows.Next() {
		var code string
		var reason model.BlockReason
		if err := blockedRows.Scan(&code, &reason); err != nil {
			return nil, fmt.Errorf("scan blocked code: %w", err)
		}
		skip.BlockedCodes[code] = reason
	}
	if err := blockedRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocked codes: %w", err)
	}

	return skip, nil
}
