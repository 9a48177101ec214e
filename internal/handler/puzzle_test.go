package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/pips-puzzles/internal/auth"
	"github.com/sakif/pips-puzzles/internal/handler"
	"github.com/sakif/pips-puzzles/internal/model"
	"github.com/sakif/pips-puzzles/internal/repository/sqlite"
	"github.com/sakif/pips-puzzles/internal/service"
)

// The handler tests run against the real services backed by an in-memory
// SQLite database — the full stack below the router. Auth middleware is the
// one piece skipped: the session identity is injected straight into the
// request context with auth.WithUserID, exactly as the middleware would.

type testEnv struct {
	db      *sqlite.DB
	puzzles *handler.PuzzleHandler
	likes   *handler.LikeHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err, "creating test db")
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	puzzleService := service.NewPuzzleService(db, logger)
	likeService := service.NewLikeService(db, logger)

	return &testEnv{
		db:      db,
		puzzles: handler.NewPuzzleHandler(puzzleService, logger),
		likes:   handler.NewLikeHandler(likeService, logger),
	}
}

// seedUser inserts a user directly through the repository.
func (e *testEnv) seedUser(t *testing.T, email string) *model.User {
	t.Helper()
	user := &model.User{GoogleID: "sub-" + email, Email: email, Name: "Tester"}
	require.NoError(t, e.db.CreateUser(context.Background(), user))
	return user
}

// seedPuzzle inserts a puzzle directly through the repository.
func (e *testEnv) seedPuzzle(t *testing.T, puzzleID string, userID *int64) {
	t.Helper()
	puzzle := &model.Puzzle{
		PuzzleID: puzzleID,
		UserID:   userID,
		Rows:     [][]int{{1, 1}, {0, 1}},
		Regions: []model.Region{
			{ComputedValue: "4", Coordinates: []model.Coordinate{{X: 0, Y: 0}}},
		},
		Dice: [][2]int{{1, 3}},
	}
	require.NoError(t, e.db.Create(context.Background(), puzzle))
}

// asUser attaches a session identity to the request, standing in for the
// auth middleware.
func asUser(req *http.Request, userID int64) *http.Request {
	return req.WithContext(auth.WithUserID(req.Context(), userID))
}

// envelope mirrors the response shape for decoding in assertions.
type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Total      *int            `json:"total"`
	Pagination *struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
		Count  int `json:"count"`
	} `json:"pagination"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env), "decoding response envelope")
	return env
}

// =========================================================================
// LIST
// =========================================================================

func TestHandleList(t *testing.T) {
	env := newTestEnv(t)

	t.Run("empty database", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/puzzles", nil)
		rr := httptest.NewRecorder()

		env.puzzles.HandleList(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		res := decodeEnvelope(t, rr)
		assert.True(t, res.Success)
		require.NotNil(t, res.Total)
		assert.Equal(t, 0, *res.Total)
		require.NotNil(t, res.Pagination)
		assert.Equal(t, 20, res.Pagination.Limit)
	})

	t.Run("pagination metadata", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			env.seedPuzzle(t, fmt.Sprintf("list%04d", i), nil)
		}

		req := httptest.NewRequest(http.MethodGet, "/api/puzzles?limit=2&offset=0", nil)
		rr := httptest.NewRecorder()

		env.puzzles.HandleList(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		res := decodeEnvelope(t, rr)
		require.NotNil(t, res.Total)
		assert.Equal(t, 3, *res.Total)
		require.NotNil(t, res.Pagination)
		assert.Equal(t, 2, res.Pagination.Limit)
		assert.Equal(t, 2, res.Pagination.Count)
	})

	t.Run("non-numeric limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/puzzles?limit=lots", nil)
		rr := httptest.NewRecorder()

		env.puzzles.HandleList(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		res := decodeEnvelope(t, rr)
		assert.False(t, res.Success)
		assert.Equal(t, "validation_error", res.Error)
	})

	t.Run("limit out of range", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/puzzles?limit=500", nil)
		rr := httptest.NewRecorder()

		env.puzzles.HandleList(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

// =========================================================================
// CREATE
// =========================================================================

func TestHandleCreate(t *testing.T) {
	env := newTestEnv(t)

	board := `"row":[[1,1],[0,1]],"regions":[{"computedValue":"4","coordinates":[{"x":0,"y":0}]}],"dice":[[1,3]]`

	t.Run("anonymous create", func(t *testing.T) {
		body := fmt.Sprintf(`{"id":"anon0001",%s}`, board)
		req := httptest.NewRequest(http.MethodPost, "/api/puzzles", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()

		env.puzzles.HandleCreate(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		res := decodeEnvelope(t, rr)
		assert.True(t, res.Success)

		var data map[string]string
		require.NoError(t, json.Unmarshal(res.Data, &data))
		assert.Equal(t, "anon0001", data["puzzle_id"])
	})

	t.Run("owned create", func(t *testing.T) {
		user := env.seedUser(t, "owner@example.com")
		body := fmt.Sprintf(`{"id":"owned001","userId":%d,%s}`, user.ID, board)
		req := asUser(httptest.NewRequest(http.MethodPost, "/api/puzzles", bytes.NewBufferString(body)), user.ID)
		rr := httptest.NewRecorder()

		env.puzzles.HandleCreate(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
	})

	t.Run("claimed owner mismatch", func(t *testing.T) {
		user := env.seedUser(t, "someone@example.com")
		body := fmt.Sprintf(`{"id":"sneak001","userId":%d,%s}`, user.ID+100, board)
		req := asUser(httptest.NewRequest(http.MethodPost, "/api/puzzles", bytes.NewBufferString(body)), user.ID)
		rr := httptest.NewRecorder()

		env.puzzles.HandleCreate(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		res := decodeEnvelope(t, rr)
		assert.Equal(t, "forbidden", res.Error)
	})

	t.Run("duplicate id", func(t *testing.T) {
		env.seedPuzzle(t, "dupe0001", nil)
		body := fmt.Sprintf(`{"id":"dupe0001",%s}`, board)
		req := httptest.NewRequest(http.MethodPost, "/api/puzzles", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()

		env.puzzles.HandleCreate(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
		res := decodeEnvelope(t, rr)
		assert.Equal(t, "conflict", res.Error)
	})

	t.Run("invalid JSON body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/puzzles", bytes.NewBufferString(`{"id":`))
		rr := httptest.NewRecorder()

		env.puzzles.HandleCreate(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("invalid board", func(t *testing.T) {
		body := `{"id":"badboard","row":[[0,7]]}`
		req := httptest.NewRequest(http.MethodPost, "/api/puzzles", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()

		env.puzzles.HandleCreate(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		res := decodeEnvelope(t, rr)
		assert.Equal(t, "validation_error", res.Error)
	})
}

// =========================================================================
// GET
// =========================================================================

func TestHandleGet(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "creator@example.com")
	env.seedPuzzle(t, "fetch001", &user.ID)

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/puzzles/fetch001", nil)
		req.SetPathValue("id", "fetch001")
		rr := httptest.NewRecorder()

		env.puzzles.HandleGet(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		res := decodeEnvelope(t, rr)

		var puzzle model.PuzzleWithCreator
		require.NoError(t, json.Unmarshal(res.Data, &puzzle))
		assert.Equal(t, "fetch001", puzzle.PuzzleID)
		assert.Equal(t, "Tester", puzzle.CreatorName)
		assert.Len(t, puzzle.Rows, 2)
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/puzzles/zzzz9999", nil)
		req.SetPathValue("id", "zzzz9999")
		rr := httptest.NewRecorder()

		env.puzzles.HandleGet(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		res := decodeEnvelope(t, rr)
		assert.Equal(t, "not_found", res.Error)
	})

	t.Run("malformed id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/puzzles/nope", nil)
		req.SetPathValue("id", "nope")
		rr := httptest.NewRecorder()

		env.puzzles.HandleGet(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

// =========================================================================
// UPDATE / DELETE
// =========================================================================

func TestHandleUpdate(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "owner@example.com")
	other := env.seedUser(t, "other@example.com")
	env.seedPuzzle(t, "edit0001", &owner.ID)

	body := `{"row":[[1,0,1]],"regions":[],"dice":[[6,6]]}`

	t.Run("owner can update", func(t *testing.T) {
		req := asUser(httptest.NewRequest(http.MethodPut, "/api/puzzles/edit0001", bytes.NewBufferString(body)), owner.ID)
		req.SetPathValue("id", "edit0001")
		rr := httptest.NewRecorder()

		env.puzzles.HandleUpdate(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		req := asUser(httptest.NewRequest(http.MethodPut, "/api/puzzles/edit0001", bytes.NewBufferString(body)), other.ID)
		req.SetPathValue("id", "edit0001")
		rr := httptest.NewRecorder()

		env.puzzles.HandleUpdate(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestHandleDelete(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "owner@example.com")
	other := env.seedUser(t, "other@example.com")

	t.Run("owner can delete", func(t *testing.T) {
		env.seedPuzzle(t, "gone0001", &owner.ID)
		req := asUser(httptest.NewRequest(http.MethodDelete, "/api/puzzles/gone0001", nil), owner.ID)
		req.SetPathValue("id", "gone0001")
		rr := httptest.NewRecorder()

		env.puzzles.HandleDelete(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		env.seedPuzzle(t, "keep0001", &owner.ID)
		req := asUser(httptest.NewRequest(http.MethodDelete, "/api/puzzles/keep0001", nil), other.ID)
		req.SetPathValue("id", "keep0001")
		rr := httptest.NewRecorder()

		env.puzzles.HandleDelete(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("legacy body with mismatched claim", func(t *testing.T) {
		env.seedPuzzle(t, "keep0002", &owner.ID)
		body := fmt.Sprintf(`{"userId":%d}`, other.ID)
		req := asUser(httptest.NewRequest(http.MethodDelete, "/api/puzzles/keep0002", bytes.NewBufferString(body)), owner.ID)
		req.SetPathValue("id", "keep0002")
		rr := httptest.NewRecorder()

		env.puzzles.HandleDelete(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		// No body at all is fine (see "owner can delete" above), but a body
		// that fails to parse must not be treated like one.
		env.seedPuzzle(t, "keep0003", &owner.ID)
		req := asUser(httptest.NewRequest(http.MethodDelete, "/api/puzzles/keep0003", bytes.NewBufferString(`{"userId":`)), owner.ID)
		req.SetPathValue("id", "keep0003")
		rr := httptest.NewRecorder()

		env.puzzles.HandleDelete(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		res := decodeEnvelope(t, rr)
		assert.Equal(t, "validation_error", res.Error)

		// The puzzle survived.
		get := httptest.NewRequest(http.MethodGet, "/api/puzzles/keep0003", nil)
		get.SetPathValue("id", "keep0003")
		grr := httptest.NewRecorder()
		env.puzzles.HandleGet(grr, get)
		assert.Equal(t, http.StatusOK, grr.Code)
	})
}

// =========================================================================
// LIST BY USER
// =========================================================================

func TestHandleListByUser(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "author@example.com")
	env.seedPuzzle(t, "their001", &user.ID)
	env.seedPuzzle(t, "their002", &user.ID)
	env.seedPuzzle(t, "anon0001", nil)

	t.Run("returns only that user's puzzles", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/users/%d/puzzles", user.ID), nil)
		req.SetPathValue("id", fmt.Sprintf("%d", user.ID))
		rr := httptest.NewRecorder()

		env.puzzles.HandleListByUser(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		res := decodeEnvelope(t, rr)
		require.NotNil(t, res.Total)
		assert.Equal(t, 2, *res.Total)
	})

	t.Run("non-numeric user id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/users/bob/puzzles", nil)
		req.SetPathValue("id", "bob")
		rr := httptest.NewRecorder()

		env.puzzles.HandleListByUser(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
