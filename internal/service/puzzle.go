// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Handlers only know about HTTP (status codes, headers, JSON). Services only
// know about business rules (validation, ownership). Neither knows about SQL.
//
// DEPENDENCY INJECTION:
// PuzzleService takes repository interfaces, NOT a *sqlite.DB. Tests pass a
// mock; main passes the SQLite implementation; the service can't tell the
// difference and doesn't import the sqlite package at all.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/sakif/pips-puzzles/internal/apperror"
	"github.com/sakif/pips-puzzles/internal/model"
	"github.com/sakif/pips-puzzles/internal/repository"
)

// Validation constants. The board editor enforces the same bounds client-side,
// but the server never trusts that — every rule is re-checked here before any
// repository call.
const (
	PuzzleIDLength   = 8
	MaxPip           = 6
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// puzzleIDPattern: exactly 8 alphanumeric characters, the public share id
// format. Compiled once at package init — regexp.MustCompile panics on a bad
// pattern, which for a constant means "at boot, loudly", exactly what we want.
var puzzleIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{8}$`)

// PuzzleInput is a puzzle submission as received from the client, before
// validation. UserID is the CLAIMED owner — the service verifies it against
// the authenticated caller and never trusts it on its own.
type PuzzleInput struct {
	ID      string         `json:"id"`
	UserID  *int64         `json:"userId"`
	Rows    [][]int        `json:"row"`
	Regions []model.Region `json:"regions"`
	Dice    [][2]int       `json:"dice"`
}

// PuzzleService handles business logic for puzzle boards.
type PuzzleService struct {
	puzzles repository.PuzzleRepository
	logger  *slog.Logger
}

// NewPuzzleService creates a PuzzleService.
func NewPuzzleService(puzzles repository.PuzzleRepository, logger *slog.Logger) *PuzzleService {
	return &PuzzleService{
		puzzles: puzzles,
		logger:  logger,
	}
}

// Create validates and saves a new puzzle submission.
//
// callerID is the authenticated user (0 = anonymous). Anonymous submissions
// are allowed — the puzzle just has no owner. What is NOT allowed is claiming
// an owner other than yourself: a non-nil input.UserID must equal callerID.
//
// A duplicate public id surfaces as apperror.ErrConflict from the repository
// (backed by the UNIQUE constraint); the existing row is left untouched.
func (s *PuzzleService) Create(ctx context.Context, callerID int64, input PuzzleInput) (*model.Puzzle, error) {
	if err := validatePuzzleID(input.ID); err != nil {
		return nil, err
	}
	if err := validateBoard(input.Rows, input.Regions, input.Dice); err != nil {
		return nil, err
	}

	if input.UserID != nil {
		if *input.UserID <= 0 {
			return nil, apperror.ValidationFailed("userId", "userId must be a positive number")
		}
		if *input.UserID != callerID {
			return nil, apperror.Forbidden("Unauthorized: User ID mismatch")
		}
	}

	puzzle := &model.Puzzle{
		PuzzleID: input.ID,
		UserID:   input.UserID,
		Rows:     input.Rows,
		Regions:  input.Regions,
		Dice:     input.Dice,
	}

	if err := s.puzzles.Create(ctx, puzzle); err != nil {
		// Conflict is an expected client error, not a server failure — don't
		// log it at error level, just pass it up for the 409.
		if !isAppError(err) {
			s.logger.Error("failed to create puzzle",
				slog.String("puzzleID", input.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}

	s.logger.Info("puzzle created",
		slog.String("puzzleID", puzzle.PuzzleID),
		slog.Any("userID", puzzle.UserID),
	)

	return puzzle, nil
}

// Get retrieves one puzzle with its creator's public fields.
func (s *PuzzleService) Get(ctx context.Context, puzzleID string) (*model.PuzzleWithCreator, error) {
	if err := validatePuzzleID(puzzleID); err != nil {
		return nil, err
	}
	return s.puzzles.GetByPuzzleID(ctx, puzzleID)
}

// List returns a like-sorted page of puzzles plus the total count.
//
// Bounds are REJECTED here, not clamped: a limit of 500 is a client bug we
// want surfaced as a 400, not silently served as 100. viewerID feeds the
// hasLiked flag (0 = anonymous).
func (s *PuzzleService) List(ctx context.Context, limit, offset int, viewerID int64) ([]model.PuzzleWithCreator, int, error) {
	if err := validatePagination(limit, offset); err != nil {
		return nil, 0, err
	}

	puzzles, err := s.puzzles.ListByLikes(ctx, repository.ListOptions{Limit: limit, Offset: offset}, viewerID)
	if err != nil {
		s.logger.Error("failed to list puzzles", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("listing puzzles: %w", err)
	}

	// Separate COUNT query: the total is needed for "are there more pages"
	// and can't be derived from the page itself. A like committed between the
	// two queries can skew the pair slightly — accepted, read-committed view.
	total, err := s.puzzles.CountAll(ctx)
	if err != nil {
		s.logger.Error("failed to count puzzles", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("counting puzzles: %w", err)
	}

	return puzzles, total, nil
}

// ListByUser returns one user's puzzles plus that user's total.
func (s *PuzzleService) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.PuzzleWithCreator, int, error) {
	if userID <= 0 {
		return nil, 0, apperror.ValidationFailed("user_id", "Invalid user_id: must be a positive number")
	}
	if err := validatePagination(limit, offset); err != nil {
		return nil, 0, err
	}

	puzzles, err := s.puzzles.ListByUser(ctx, userID, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("failed to list user puzzles",
			slog.Int64("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, 0, fmt.Errorf("listing user puzzles: %w", err)
	}

	total, err := s.puzzles.CountByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to count user puzzles",
			slog.Int64("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, 0, fmt.Errorf("counting user puzzles: %w", err)
	}

	return puzzles, total, nil
}

// Update replaces a puzzle's board fields. Owner only.
//
// OWNERSHIP IS RE-VERIFIED HERE, from the stored row against the session
// identity — never from anything the client sent. Anonymous puzzles have no
// owner, so nobody can update them (there's no way to prove authorship).
func (s *PuzzleService) Update(ctx context.Context, callerID int64, puzzleID string, rows [][]int, regions []model.Region, dice [][2]int) (*model.Puzzle, error) {
	if callerID <= 0 {
		return nil, apperror.Unauthorized("Authentication required to update puzzles")
	}
	if err := validatePuzzleID(puzzleID); err != nil {
		return nil, err
	}
	if err := validateBoard(rows, regions, dice); err != nil {
		return nil, err
	}

	existing, err := s.puzzles.GetByPuzzleID(ctx, puzzleID)
	if err != nil {
		return nil, err
	}
	if existing.UserID == nil || *existing.UserID != callerID {
		return nil, apperror.Forbidden("Unauthorized: User does not own this puzzle")
	}

	puzzle := &model.Puzzle{
		PuzzleID: puzzleID,
		Rows:     rows,
		Regions:  regions,
		Dice:     dice,
	}
	if err := s.puzzles.Update(ctx, puzzle); err != nil {
		s.logger.Error("failed to update puzzle",
			slog.String("puzzleID", puzzleID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating puzzle: %w", err)
	}

	s.logger.Info("puzzle updated", slog.String("puzzleID", puzzleID))
	return puzzle, nil
}

// Delete removes a puzzle. Owner only, same re-verification as Update.
//
// claimedUserID is the optional userId field some clients still send in the
// delete body. When present it must match the session — a mismatch is an
// explicit 403, because it means the client thinks it's someone it isn't.
func (s *PuzzleService) Delete(ctx context.Context, callerID int64, puzzleID string, claimedUserID *int64) error {
	if callerID <= 0 {
		return apperror.Unauthorized("Authentication required to delete puzzles")
	}
	if err := validatePuzzleID(puzzleID); err != nil {
		return err
	}
	if claimedUserID != nil && *claimedUserID != callerID {
		return apperror.Forbidden("Unauthorized: User ID mismatch")
	}

	existing, err := s.puzzles.GetByPuzzleID(ctx, puzzleID)
	if err != nil {
		return err
	}
	if existing.UserID == nil || *existing.UserID != callerID {
		return apperror.Forbidden("Unauthorized: User does not own this puzzle")
	}

	if err := s.puzzles.Delete(ctx, puzzleID); err != nil {
		return err
	}

	s.logger.Info("puzzle deleted",
		slog.String("puzzleID", puzzleID),
		slog.Int64("userID", callerID),
	)
	return nil
}

// validatePuzzleID enforces the public id format: exactly 8 alphanumerics.
func validatePuzzleID(id string) error {
	if id == "" {
		return apperror.ValidationFailed("id", "puzzle ID is required")
	}
	if !puzzleIDPattern.MatchString(id) {
		return apperror.ValidationFailed("id",
			fmt.Sprintf("puzzle ID must be exactly %d alphanumeric characters", PuzzleIDLength))
	}
	return nil
}

// validateBoard checks the structural rules for the three board fields:
//   - at least one grid row, every cell 0 or 1
//   - every region has a non-empty coordinate list with non-negative coords
//   - every die is a pip pair in 0..6
func validateBoard(rows [][]int, regions []model.Region, dice [][2]int) error {
	if len(rows) == 0 {
		return apperror.ValidationFailed("row", "Row data must not be empty")
	}
	for y, row := range rows {
		for x, cell := range row {
			if cell != 0 && cell != 1 {
				return apperror.ValidationFailed("row",
					fmt.Sprintf("grid cell (%d,%d) must be 0 or 1", x, y))
			}
		}
	}

	for i, region := range regions {
		if len(region.Coordinates) == 0 {
			return apperror.ValidationFailed("regions",
				fmt.Sprintf("region %d must have at least one coordinate", i))
		}
		for _, c := range region.Coordinates {
			if c.X < 0 || c.Y < 0 {
				return apperror.ValidationFailed("regions",
					fmt.Sprintf("region %d has a negative coordinate", i))
			}
		}
	}

	for i, die := range dice {
		for _, pip := range die {
			if pip < 0 || pip > MaxPip {
				return apperror.ValidationFailed("dice",
					fmt.Sprintf("die %d has pip %d, must be between 0 and %d", i, pip, MaxPip))
			}
		}
	}

	return nil
}

// validatePagination rejects out-of-bounds paging parameters.
func validatePagination(limit, offset int) error {
	if limit <= 0 || limit > MaxListLimit {
		return apperror.ValidationFailed("limit",
			fmt.Sprintf("Invalid limit: must be between 1 and %d", MaxListLimit))
	}
	if offset < 0 {
		return apperror.ValidationFailed("offset", "Invalid offset: must be non-negative")
	}
	return nil
}

// isAppError reports whether err carries one of our typed application errors.
func isAppError(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr)
}
