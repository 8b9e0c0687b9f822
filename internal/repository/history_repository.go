package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lfgarc/giftcode-redeemer/internal/model"
)

// HistoryRepository is the append-only record of every redemption attempt,
// kept for audit and the history viewer. Rows are never mutated here.
type HistoryRepository struct {
	pool PoolInterface
}

// NewHistoryRepository creates a new HistoryRepository with the given pool.
func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// NewHistoryRepositoryWithPool creates a new HistoryRepository with a custom
// pool interface. This is primarily used for testing.
func NewHistoryRepositoryWithPool(pool PoolInterface) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// Append inserts one attempt record.
func (r *HistoryRepository) Append(ctx context.Context, entry *model.HistoryEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO history (ts, player_id, code, status, message, raw)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.TS, entry.PlayerID, entry.Code, string(entry.Status), entry.Message, entry.Raw)
	if err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	return nil
}

// AttemptedSince returns the distinct pairs with at least one attempt record
// at or after the given epoch-millis timestamp. A resumed job uses it to
// avoid re-attempting pairs it already processed before pausing.
func (r *HistoryRepository) AttemptedSince(ctx context.Context, since int64) ([]model.Pair, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT player_id, code FROM history WHERE ts >= $1`, since)
	if err != nil {
		return nil, fmt.Errorf("list attempted pairs: %w", err)
	}
	defer rows.Close()

	pairs := []model.Pair{}
	for rows.Next() {
		var p model.Pair
		if err := rows.Scan(&p.PlayerID, &p.Code); err != nil {
			return nil, fmt.Errorf("scan attempted pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempted pairs: %w", err)
	}
	return pairs, nil
}

// HistoryFilter narrows a history listing. Day selects one UTC calendar day
// by its YYYY-MM-DD string.
type HistoryFilter struct {
	PlayerID string
	Code     string
	Day      string
	Limit    int
}

// List returns attempt records matching the filter, newest first.
func (r *HistoryRepository) List(ctx context.Context, filter HistoryFilter) ([]model.HistoryEntry, error) {
	query := `SELECT id, ts, player_id, code, status, message, raw FROM history WHERE 1=1`
	args := []any{}

	if filter.PlayerID != "" {
		args = append(args, filter.PlayerID)
		query += fmt.Sprintf(" AND player_id = $%d", len(args))
	}
	if filter.Code != "" {
		args = append(args, filter.Code)
		query += fmt.Sprintf(" AND code = $%d", len(args))
	}
	if filter.Day != "" {
		day, err := time.Parse("2006-01-02", filter.Day)
		if err != nil {
			return nil, fmt.Errorf("parse day %q: %w", filter.Day, err)
		}
		args = append(args, day.UnixMilli())
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
		args = append(args, day.Add(24*time.Hour).UnixMilli())
		query += fmt.Sprintf(" AND ts < $%d", len(args))
	}

	query += " ORDER BY ts DESC, id DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := []model.HistoryEntry{}
	for rows.Next() {
		var e model.HistoryEntry
		if err := rows.Scan(&e.ID, &e.TS, &e.PlayerID, &e.Code, &e.Status, &e.Message, &e.Raw); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return entries, nil
}
