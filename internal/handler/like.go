package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/pips-puzzles/internal/apperror"
	"github.com/sakif/pips-puzzles/internal/auth"
	"github.com/sakif/pips-puzzles/internal/service"
)

// LikeHandler serves the like endpoint — one POST route carrying an action
// field, mirroring how the frontend drives the like button:
//
//	{"action": "toggle"}  flip my like state       (default when omitted)
//	{"action": "like"}    ensure liked
//	{"action": "unlike"}  ensure not liked
//	{"action": "check"}   just tell me my state
type LikeHandler struct {
	likes  *service.LikeService
	logger *slog.Logger
}

// NewLikeHandler creates a LikeHandler.
func NewLikeHandler(likes *service.LikeService, logger *slog.Logger) *LikeHandler {
	return &LikeHandler{likes: likes, logger: logger}
}

type likeRequest struct {
	Action string `json:"action"`
}

// HandleLike executes a like action against one puzzle.
//
// HTTP: POST /api/puzzles/{id}/like
// Auth: optional at the ROUTE level, enforced per action — "check" answers
// anonymously (hasLiked=false without a session), everything else requires
// a signed-in caller and 401s without one.
func (h *LikeHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	puzzleID := r.PathValue("id")

	// An empty body is fine (Decode returns io.EOF → default action), but
	// garbage is not: a body that fails to parse gets a 400, not a silent
	// toggle the caller never asked for.
	var req likeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("invalid like JSON", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "Invalid JSON body"))
		return
	}
	if req.Action == "" {
		req.Action = service.ActionToggle
	}

	userID, _ := auth.UserIDFromContext(r.Context())

	switch req.Action {
	case service.ActionCheck:
		hasLiked, err := h.likes.Check(r.Context(), userID, puzzleID)
		if err != nil {
			writeError(w, err)
			return
		}
		message := "User has not liked this puzzle"
		if hasLiked {
			message = "User has liked this puzzle"
		}
		writeSuccess(w, http.StatusOK, map[string]bool{"hasLiked": hasLiked}, message)

	case service.ActionToggle:
		result, action, err := h.likes.Toggle(r.Context(), userID, puzzleID)
		if err != nil {
			writeError(w, err)
			return
		}
		h.writeLikeResult(w, puzzleID, result.Likes, action)

	case service.ActionLike:
		result, err := h.likes.Like(r.Context(), userID, puzzleID)
		if err != nil {
			writeError(w, err)
			return
		}
		h.writeLikeResult(w, puzzleID, result.Likes, "liked")

	case service.ActionUnlike:
		result, err := h.likes.Unlike(r.Context(), userID, puzzleID)
		if err != nil {
			writeError(w, err)
			return
		}
		h.writeLikeResult(w, puzzleID, result.Likes, "unliked")

	default:
		writeError(w, apperror.ValidationFailed("action",
			"Invalid action: must be toggle, like, unlike, or check"))
	}
}

// writeLikeResult is the shared success shape for the mutating actions:
// which puzzle, its counter after the operation, and what actually happened.
func (h *LikeHandler) writeLikeResult(w http.ResponseWriter, puzzleID string, likes int, action string) {
	writeSuccess(w, http.StatusOK,
		map[string]any{
			"puzzle_id": puzzleID,
			"likes":     likes,
			"action":    action,
		},
		fmt.Sprintf("Successfully %s puzzle %s", action, puzzleID))
}
