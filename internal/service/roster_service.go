package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lfgarc/giftcode-redeemer/internal/model"
)

// RosterAdminInterface defines the write side of the roster store used by
// the admin CRUD surface. The orchestrator itself never uses these.
type RosterAdminInterface interface {
	ListPlayers(ctx context.Context) ([]model.Player, error)
	InsertPlayer(ctx context.Context, player *model.Player) error
	DeletePlayer(ctx context.Context, id string) (bool, error)
	ListCodes(ctx context.Context) ([]model.Code, error)
	InsertCode(ctx context.Context, code *model.Code) error
	UpdateCode(ctx context.Context, code string, active *bool, note *string) (bool, error)
	DeleteCode(ctx context.Context, code string) (bool, error)
}

// RosterService provides the roster management operations behind the
// players/codes endpoints.
type RosterService struct {
	repo RosterAdminInterface
}

// NewRosterService creates a RosterService over the given store.
func NewRosterService(repo RosterAdminInterface) *RosterService {
	return &RosterService{repo: repo}
}

// NormalizeCode canonicalizes a gift code: trimmed and upper-cased. Codes
// are case-insensitive upstream; one spelling keeps the pair index unique.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ListPlayers returns the full roster.
func (s *RosterService) ListPlayers(ctx context.Context) ([]model.Player, error) {
	players, err := s.repo.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	return players, nil
}

// AddPlayer registers a new tracked account.
// Returns ErrPlayerExists when the id is already tracked.
func (s *RosterService) AddPlayer(ctx context.Context, req *model.AddPlayerRequest) (*model.Player, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}
	player := &model.Player{
		ID:       strings.TrimSpace(req.ID),
		Nickname: req.Nickname,
		AddedAt:  time.Now().UnixMilli(),
	}
	if err := s.repo.InsertPlayer(ctx, player); err != nil {
		return nil, err
	}
	return player, nil
}

// RemovePlayer deletes a tracked account. Pair index rows cascade with it.
func (s *RosterService) RemovePlayer(ctx context.Context, id string) error {
	deleted, err := s.repo.DeletePlayer(ctx, id)
	if err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	if !deleted {
		return ErrPlayerNotFound
	}
	return nil
}

// ListCodes returns every tracked gift code.
func (s *RosterService) ListCodes(ctx context.Context) ([]model.Code, error) {
	codes, err := s.repo.ListCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}
	return codes, nil
}

// AddCode registers a new gift code, active by default.
// Returns ErrCodeExists when the code is already tracked.
func (s *RosterService) AddCode(ctx context.Context, req *model.AddCodeRequest) (*model.Code, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}
	code := &model.Code{
		Code:    NormalizeCode(req.Code),
		Note:    req.Note,
		Active:  true,
		AddedAt: time.Now().UnixMilli(),
	}
	if err := s.repo.InsertCode(ctx, code); err != nil {
		return nil, err
	}
	return code, nil
}

// UpdateCode toggles a code's active flag or edits its note.
func (s *RosterService) UpdateCode(ctx context.Context, code string, req *model.UpdateCodeRequest) error {
	if req == nil || (req.Active == nil && req.Note == nil) {
		return ErrInvalidRequest
	}
	updated, err := s.repo.UpdateCode(ctx, NormalizeCode(code), req.Active, req.Note)
	if err != nil {
		return fmt.Errorf("update code: %w", err)
	}
	if !updated {
		return ErrCodeNotFound
	}
	return nil
}

// RemoveCode deletes a gift code. Pair index rows cascade with it.
func (s *RosterService) RemoveCode(ctx context.Context, code string) error {
	deleted, err := s.repo.DeleteCode(ctx, NormalizeCode(code))
	if err != nil {
		return fmt.Errorf("delete code: %w", err)
	}
	if !deleted {
		return ErrCodeNotFound
	}
	return nil
}
