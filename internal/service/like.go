package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/pips-puzzles/internal/apperror"
	"github.com/sakif/pips-puzzles/internal/model"
	"github.com/sakif/pips-puzzles/internal/repository"
)

// Like endpoint actions. The client sends one of these in the request body;
// toggle is the default when the field is omitted.
const (
	ActionToggle = "toggle"
	ActionLike   = "like"
	ActionUnlike = "unlike"
	ActionCheck  = "check"
)

// LikeService orchestrates the like/unlike/check/toggle operations on top of
// the transactional like repository.
type LikeService struct {
	likes  repository.LikeRepository
	logger *slog.Logger
}

// NewLikeService creates a LikeService.
func NewLikeService(likes repository.LikeRepository, logger *slog.Logger) *LikeService {
	return &LikeService{
		likes:  likes,
		logger: logger,
	}
}

// Like adds the caller's like to a puzzle. Idempotent: liking something you
// already liked is a success with AlreadyLiked set, and the counter moves by
// at most one across any number of calls.
func (s *LikeService) Like(ctx context.Context, userID int64, puzzleID string) (*model.LikeResult, error) {
	if userID <= 0 {
		return nil, apperror.Unauthorized("Authentication required to like/unlike puzzles")
	}
	if err := validatePuzzleID(puzzleID); err != nil {
		return nil, err
	}

	result, err := s.likes.AddLike(ctx, userID, puzzleID)
	if err != nil {
		if !isAppError(err) {
			s.logger.Error("failed to add like",
				slog.Int64("userID", userID),
				slog.String("puzzleID", puzzleID),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}

	s.logger.Info("like added",
		slog.Int64("userID", userID),
		slog.String("puzzleID", puzzleID),
		slog.Bool("alreadyLiked", result.AlreadyLiked),
		slog.Int("likes", result.Likes),
	)
	return result, nil
}

// Unlike removes the caller's like. Also idempotent: unliking something you
// never liked is a success with Removed=false and an untouched counter.
func (s *LikeService) Unlike(ctx context.Context, userID int64, puzzleID string) (*model.LikeResult, error) {
	if userID <= 0 {
		return nil, apperror.Unauthorized("Authentication required to like/unlike puzzles")
	}
	if err := validatePuzzleID(puzzleID); err != nil {
		return nil, err
	}

	result, err := s.likes.RemoveLike(ctx, userID, puzzleID)
	if err != nil {
		if !isAppError(err) {
			s.logger.Error("failed to remove like",
				slog.Int64("userID", userID),
				slog.String("puzzleID", puzzleID),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}

	s.logger.Info("like removed",
		slog.Int64("userID", userID),
		slog.String("puzzleID", puzzleID),
		slog.Bool("removed", result.Removed),
		slog.Int("likes", result.Likes),
	)
	return result, nil
}

// Check reports whether the user has liked the puzzle. Anonymous callers
// (userID 0) simply haven't liked anything — that's a normal answer, not an
// auth failure, because the UI asks this for every rendered card.
func (s *LikeService) Check(ctx context.Context, userID int64, puzzleID string) (bool, error) {
	if err := validatePuzzleID(puzzleID); err != nil {
		return false, err
	}
	if userID <= 0 {
		return false, nil
	}
	return s.likes.CheckLike(ctx, userID, puzzleID)
}

// Toggle flips the caller's like state: read the current state, then Like or
// Unlike accordingly. Returns the action actually performed ("liked" or
// "unliked") alongside the result.
//
// NOT RACE-FREE AT THE READ — and that's deliberate. Two simultaneous
// toggles from the same user can both observe "not liked" and both call
// Like. That is safe because AddLike re-checks inside its transaction and
// treats an insert conflict on the (user, puzzle) uniqueness constraint as
// "already liked". The database constraint, not this read, is the source of
// truth. See the AddLike documentation before reaching for a lock here.
func (s *LikeService) Toggle(ctx context.Context, userID int64, puzzleID string) (*model.LikeResult, string, error) {
	if userID <= 0 {
		return nil, "", apperror.Unauthorized("Authentication required to like/unlike puzzles")
	}
	if err := validatePuzzleID(puzzleID); err != nil {
		return nil, "", err
	}

	hasLiked, err := s.likes.CheckLike(ctx, userID, puzzleID)
	if err != nil {
		return nil, "", fmt.Errorf("checking like state: %w", err)
	}

	if hasLiked {
		result, err := s.Unlike(ctx, userID, puzzleID)
		if err != nil {
			return nil, "", err
		}
		return result, "unliked", nil
	}

	result, err := s.Like(ctx, userID, puzzleID)
	if err != nil {
		return nil, "", err
	}
	return result, "liked", nil
}
