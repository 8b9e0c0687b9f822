package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfgarc/giftcode-redeemer/internal/model"
	"github.com/lfgarc/giftcode-redeemer/internal/repository"
)

type mockHistoryLister struct {
	listFn func(ctx context.Context, filter repository.HistoryFilter) ([]model.HistoryEntry, error)
}

func (m *mockHistoryLister) List(ctx context.Context, filter repository.HistoryFilter) ([]model.HistoryEntry, error) {
	return m.listFn(ctx, filter)
}

func newHistoryApp(lister HistoryListerInterface) *fiber.App {
	app := fiber.New()
	app.Get("/api/history", NewHistoryHandler(lister).List)
	return app
}

func TestHistoryList_FiltersPassedThrough(t *testing.T) {
	var gotFilter repository.HistoryFilter
	lister := &mockHistoryLister{
		listFn: func(ctx context.Context, filter repository.HistoryFilter) ([]model.HistoryEntry, error) {
			gotFilter = filter
			return []model.HistoryEntry{{ID: 1, PlayerID: "12345", Code: "FOO", Status: model.StatusSuccess}}, nil
		},
	}
	app := newHistoryApp(lister)

	req := httptest.NewRequest(http.MethodGet, "/api/history?player_id=12345&code=FOO&day=2026-08-30&limit=10", nil)
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, repository.HistoryFilter{
		PlayerID: "12345",
		Code:     "FOO",
		Day:      "2026-08-30",
		Limit:    10,
	}, gotFilter)

	var out []model.HistoryEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 1)
	assert.Equal(t, model.StatusSuccess, out[0].Status)
}

func TestHistoryList_DefaultLimit(t *testing.T) {
	var gotFilter repository.HistoryFilter
	lister := &mockHistoryLister{
		listFn: func(ctx context.Context, filter repository.HistoryFilter) ([]model.HistoryEntry, error) {
			gotFilter = filter
			return nil, nil
		},
	}
	app := newHistoryApp(lister)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/history", nil))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 500, gotFilter.Limit)
}

func TestHistoryList_StoreFailure(t *testing.T) {
	lister := &mockHistoryLister{
		listFn: func(ctx context.Context, filter repository.HistoryFilter) ([]model.HistoryEntry, error) {
			return nil, errors.New("db down")
		},
	}
	app := newHistoryApp(lister)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/history", nil))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
