package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lfgarc/giftcode-redeemer/internal/model"
	"github.com/lfgarc/giftcode-redeemer/internal/service"
)

// PoolInterface defines the database operations needed by repositories.
// This allows for easier testing with mocks.
type PoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// RosterRepository provides data access for the player and code roster
// using pgx. The orchestrator only reads it, plus the two timestamp touches.
type RosterRepository struct {
	pool PoolInterface
}

// NewRosterRepository creates a new RosterRepository with the given pool.
func NewRosterRepository(pool *pgxpool.Pool) *RosterRepository {
	return &RosterRepository{pool: pool}
}

// NewRosterRepositoryWithPool creates a new RosterRepository with a custom
// pool interface. This is primarily used for testing.
func NewRosterRepositoryWithPool(pool PoolInterface) *RosterRepository {
	return &RosterRepository{pool: pool}
}

// ListPlayers returns every tracked player ordered by insertion time.
func (r *RosterRepository) ListPlayers(ctx context.Context) ([]model.Player, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, nickname, added_at, last_redeemed_at FROM players ORDER BY added_at`)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	players := []model.Player{}
	for rows.Next() {
		var p model.Player
		if err := rows.Scan(&p.ID, &p.Nickname, &p.AddedAt, &p.LastRedeemedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate players rows: %w", err)
	}
	return players, nil
}

// GetPlayer retrieves a player by id.
// Returns nil, nil if the player is not found (service layer handles this).
func (r *RosterRepository) GetPlayer(ctx context.Context, id string) (*model.Player, error) {
	var p model.Player
	err := r.pool.QueryRow(ctx,
		`SELECT id, nickname, added_at, last_redeemed_at FROM players WHERE id = $1`, id).
		Scan(&p.ID, &p.Nickname, &p.AddedAt, &p.LastRedeemedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get player %s: %w", id, err)
	}
	return &p, nil
}

// InsertPlayer adds a player to the roster.
// Returns service.ErrPlayerExists if the id is already tracked.
func (r *RosterRepository) InsertPlayer(ctx context.Context, player *model.Player) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO players (id, nickname, added_at) VALUES ($1, $2, $3)`,
		player.ID, player.Nickname, player.AddedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return service.ErrPlayerExists
		}
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

// DeletePlayer removes a player. Reports whether a row was deleted.
func (r *RosterRepository) DeletePlayer(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM players WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete player %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListCodes returns every tracked gift code ordered by insertion time.
func (r *RosterRepository) ListCodes(ctx context.Context) ([]model.Code, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT code, note, active, added_at, last_tried_at FROM codes ORDER BY added_at`)
	if err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}
	defer rows.Close()

	codes := []model.Code{}
	for rows.Next() {
		var c model.Code
		if err := rows.Scan(&c.Code, &c.Note, &c.Active, &c.AddedAt, &c.LastTriedAt); err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		codes = append(codes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate codes rows: %w", err)
	}
	return codes, nil
}

// GetCode retrieves a gift code.
// Returns nil, nil if the code is not found (service layer handles this).
func (r *RosterRepository) GetCode(ctx context.Context, code string) (*model.Code, error) {
	var c model.Code
	err := r.pool.QueryRow(ctx,
		`SELECT code, note, active, added_at, last_tried_at FROM codes WHERE code = $1`, code).
		Scan(&c.Code, &c.Note, &c.Active, &c.AddedAt, &c.LastTriedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get code %s: %w", code, err)
	}
	return &c, nil
}

// InsertCode adds a gift code.
// Returns service.ErrCodeExists if the code is already tracked.
func (r *RosterRepository) InsertCode(ctx context.Context, code *model.Code) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO codes (code, note, active, added_at) VALUES ($1, $2, $3, $4)`,
		code.Code, code.Note, code.Active, code.AddedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return service.ErrCodeExists
		}
		return fmt.Errorf("insert code: %w", err)
	}
	return nil
}

// UpdateCode patches the active flag and/or note of a code.
// Reports whether a row was updated.
func (r *RosterRepository) UpdateCode(ctx context.Context, code string, active *bool, note *string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE codes SET active = COALESCE($2, active), note = COALESCE($3, note) WHERE code = $1`,
		code, active, note)
	if err != nil {
		return false, fmt.Errorf("update code %s: %w", code, err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteCode removes a gift code. Reports whether a row was deleted.
func (r *RosterRepository) DeleteCode(ctx context.Context, code string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM codes WHERE code = $1`, code)
	if err != nil {
		return false, fmt.Errorf("delete code %s: %w", code, err)
	}
	return tag.RowsAffected() > 0, nil
}

// TouchLastRedeemed stamps a player's last successful redemption time.
func (r *RosterRepository) TouchLastRedeemed(ctx context.Context, playerID string, ts int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE players SET last_redeemed_at = $2 WHERE id = $1`, playerID, ts)
	if err != nil {
		return fmt.Errorf("touch player %s last_redeemed_at: %w", playerID, err)
	}
	return nil
}

// TouchLastTried stamps a code's last attempt time.
func (r *RosterRepository) TouchLastTried(ctx context.Context, code string, ts int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE codes SET last_tried_at = $2 WHERE code = $1`, code, ts)
	if err != nil {
		return fmt.Errorf("touch code %s last_tried_at: %w", code, err)
	}
	return nil
}
