package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postLike sends one like-endpoint request as the given user (0 = anonymous).
func postLike(t *testing.T, env *testEnv, userID int64, puzzleID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/puzzles/"+puzzleID+"/like", bytes.NewBufferString(body))
	req.SetPathValue("id", puzzleID)
	if userID > 0 {
		req = asUser(req, userID)
	}
	rr := httptest.NewRecorder()
	env.likes.HandleLike(rr, req)
	return rr
}

type likeData struct {
	PuzzleID string `json:"puzzle_id"`
	Likes    int    `json:"likes"`
	Action   string `json:"action"`
}

func decodeLikeData(t *testing.T, rr *httptest.ResponseRecorder) likeData {
	t.Helper()
	res := decodeEnvelope(t, rr)
	var data likeData
	require.NoError(t, json.Unmarshal(res.Data, &data))
	return data
}

func TestHandleLike_Toggle(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "liker@example.com")
	env.seedPuzzle(t, "abc12345", nil)

	// Empty body defaults to toggle.
	rr := postLike(t, env, user.ID, "abc12345", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	data := decodeLikeData(t, rr)
	assert.Equal(t, "liked", data.Action)
	assert.Equal(t, 1, data.Likes)

	// Second toggle flips it back off.
	rr = postLike(t, env, user.ID, "abc12345", `{"action":"toggle"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	data = decodeLikeData(t, rr)
	assert.Equal(t, "unliked", data.Action)
	assert.Equal(t, 0, data.Likes)
}

func TestHandleLike_ExplicitLikeIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "liker@example.com")
	env.seedPuzzle(t, "abc12345", nil)

	for i := 0; i < 2; i++ {
		rr := postLike(t, env, user.ID, "abc12345", `{"action":"like"}`)
		assert.Equal(t, http.StatusOK, rr.Code)
		data := decodeLikeData(t, rr)
		assert.Equal(t, "liked", data.Action)
		assert.Equal(t, 1, data.Likes, "repeat like must not inflate the counter")
	}
}

func TestHandleLike_Unlike(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "liker@example.com")
	env.seedPuzzle(t, "abc12345", nil)

	postLike(t, env, user.ID, "abc12345", `{"action":"like"}`)

	rr := postLike(t, env, user.ID, "abc12345", `{"action":"unlike"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	data := decodeLikeData(t, rr)
	assert.Equal(t, "unliked", data.Action)
	assert.Equal(t, 0, data.Likes)

	// Unliking again stays at zero — never negative.
	rr = postLike(t, env, user.ID, "abc12345", `{"action":"unlike"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	data = decodeLikeData(t, rr)
	assert.Equal(t, 0, data.Likes)
}

func TestHandleLike_Check(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "liker@example.com")
	env.seedPuzzle(t, "abc12345", nil)

	// Anonymous check is a 200 with hasLiked=false, not a 401.
	rr := postLike(t, env, 0, "abc12345", `{"action":"check"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	res := decodeEnvelope(t, rr)
	var check map[string]bool
	require.NoError(t, json.Unmarshal(res.Data, &check))
	assert.False(t, check["hasLiked"])

	postLike(t, env, user.ID, "abc12345", `{"action":"like"}`)

	rr = postLike(t, env, user.ID, "abc12345", `{"action":"check"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	res = decodeEnvelope(t, rr)
	require.NoError(t, json.Unmarshal(res.Data, &check))
	assert.True(t, check["hasLiked"])
}

func TestHandleLike_AnonymousMutationRejected(t *testing.T) {
	env := newTestEnv(t)
	env.seedPuzzle(t, "abc12345", nil)

	for _, action := range []string{"", `{"action":"toggle"}`, `{"action":"like"}`, `{"action":"unlike"}`} {
		rr := postLike(t, env, 0, "abc12345", action)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "body %q", action)
		res := decodeEnvelope(t, rr)
		assert.False(t, res.Success)
		assert.Equal(t, "unauthorized", res.Error)
	}
}

func TestHandleLike_PuzzleNotFound(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "liker@example.com")

	rr := postLike(t, env, user.ID, "zzzz9999", `{"action":"like"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleLike_MalformedBody(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "liker@example.com")
	env.seedPuzzle(t, "abc12345", nil)

	// An empty body means "toggle"; a body that fails to parse must NOT — a
	// wrong-typed action field or truncated JSON is a 400, and no like state
	// changes behind the caller's back.
	for _, body := range []string{`{"action":5}`, `{"action":`, `not json`} {
		rr := postLike(t, env, user.ID, "abc12345", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "body %q", body)
		res := decodeEnvelope(t, rr)
		assert.Equal(t, "validation_error", res.Error)
	}

	// Nothing toggled along the way.
	rr := postLike(t, env, user.ID, "abc12345", `{"action":"check"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	res := decodeEnvelope(t, rr)
	var check map[string]bool
	require.NoError(t, json.Unmarshal(res.Data, &check))
	assert.False(t, check["hasLiked"])
}

func TestHandleLike_InvalidAction(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "liker@example.com")
	env.seedPuzzle(t, "abc12345", nil)

	rr := postLike(t, env, user.ID, "abc12345", `{"action":"boost"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	res := decodeEnvelope(t, rr)
	assert.Equal(t, "validation_error", res.Error)
}
