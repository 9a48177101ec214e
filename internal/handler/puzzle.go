package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/pips-puzzles/internal/apperror"
	"github.com/sakif/pips-puzzles/internal/auth"
	"github.com/sakif/pips-puzzles/internal/service"
)

// PuzzleHandler manages the puzzle CRUD endpoints.
//
// The handler's only jobs are: decode the request, resolve the caller from
// the session context, call the service, and write the envelope. Every rule
// about what's valid or who may do what lives in the service layer.
type PuzzleHandler struct {
	puzzles *service.PuzzleService
	logger  *slog.Logger
}

// NewPuzzleHandler creates a PuzzleHandler.
func NewPuzzleHandler(puzzles *service.PuzzleService, logger *slog.Logger) *PuzzleHandler {
	return &PuzzleHandler{puzzles: puzzles, logger: logger}
}

// HandleList returns puzzles sorted by popularity.
//
// HTTP: GET /api/puzzles?limit=20&offset=0
// Auth: optional — signed-in viewers get their hasLiked flag per puzzle.
func (h *PuzzleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := paginationParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	// 0 means anonymous; the repository's hasLiked join matches nothing.
	viewerID, _ := auth.UserIDFromContext(r.Context())

	puzzles, total, err := h.puzzles.List(r.Context(), limit, offset, viewerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeList(w, puzzles, total, limit, offset, len(puzzles),
		fmt.Sprintf("Successfully retrieved %d puzzles sorted by likes", len(puzzles)))
}

// HandleCreate saves a new puzzle submission.
//
// HTTP: POST /api/puzzles
// Auth: optional — anonymous submissions carry no owner. A submission that
// DOES claim an owner must come from that user's session (403 otherwise).
func (h *PuzzleHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input service.PuzzleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.Warn("invalid puzzle JSON", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "Invalid JSON body"))
		return
	}

	callerID, _ := auth.UserIDFromContext(r.Context())

	puzzle, err := h.puzzles.Create(r.Context(), callerID, input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated,
		map[string]string{"puzzle_id": puzzle.PuzzleID},
		fmt.Sprintf("Puzzle saved with ID: %s", puzzle.PuzzleID))
}

// HandleGet returns a single puzzle with its creator's public fields.
//
// HTTP: GET /api/puzzles/{id}
func (h *PuzzleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	puzzle, err := h.puzzles.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, puzzle,
		fmt.Sprintf("Successfully retrieved puzzle %s", puzzle.PuzzleID))
}

// HandleUpdate replaces a puzzle's board fields. Owner only.
//
// HTTP: PUT /api/puzzles/{id}
// Auth: required (route is behind RequireAuth).
func (h *PuzzleHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var input service.PuzzleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.Warn("invalid puzzle JSON", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "Invalid JSON body"))
		return
	}

	callerID, _ := auth.UserIDFromContext(r.Context())
	puzzleID := r.PathValue("id")

	puzzle, err := h.puzzles.Update(r.Context(), callerID, puzzleID, input.Rows, input.Regions, input.Dice)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, puzzle,
		fmt.Sprintf("Successfully updated puzzle %s", puzzle.PuzzleID))
}

// deletePuzzleRequest is the optional body some clients send along with a
// delete — a legacy shape that includes the claimed owner.
type deletePuzzleRequest struct {
	UserID *int64 `json:"userId"`
}

// HandleDelete removes a puzzle and, via the cascade, all its likes.
//
// HTTP: DELETE /api/puzzles/{id}
// Auth: required. Ownership is re-verified from the stored row against the
// session identity — the userId in the body is only ever checked for
// CONSISTENCY with the session, never used as the authority.
func (h *PuzzleHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	// The body is optional for DELETE — a missing one is io.EOF and that's
	// fine. A body that's present but unparseable is still a 400.
	var req deletePuzzleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("invalid delete JSON", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "Invalid JSON body"))
		return
	}

	callerID, _ := auth.UserIDFromContext(r.Context())
	puzzleID := r.PathValue("id")

	if err := h.puzzles.Delete(r.Context(), callerID, puzzleID, req.UserID); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK,
		map[string]string{"puzzle_id": puzzleID},
		fmt.Sprintf("Successfully deleted puzzle %s", puzzleID))
}

// HandleListByUser returns one user's puzzles, newest first, with that
// user's total for pagination.
//
// HTTP: GET /api/users/{id}/puzzles?limit=20&offset=0
func (h *PuzzleHandler) HandleListByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, apperror.ValidationFailed("user_id", "Invalid user_id: must be a positive number"))
		return
	}

	limit, offset, err := paginationParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	puzzles, total, err := h.puzzles.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeList(w, puzzles, total, limit, offset, len(puzzles),
		fmt.Sprintf("Successfully retrieved %d puzzles for user %d", len(puzzles), userID))
}

// paginationParams reads limit/offset from the query string with the
// defaults every list endpoint shares. Non-numeric values are a 400 — the
// service re-checks the RANGES, but only the handler sees the raw strings.
func paginationParams(r *http.Request) (limit, offset int, err error) {
	limit = service.DefaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil {
			return 0, 0, apperror.ValidationFailed("limit", "Invalid limit: must be a number")
		}
	}

	if s := r.URL.Query().Get("offset"); s != "" {
		if offset, err = strconv.Atoi(s); err != nil {
			return 0, 0, apperror.ValidationFailed("offset", "Invalid offset: must be a number")
		}
	}

	return limit, offset, nil
}
