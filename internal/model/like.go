package model

import "time"

// UserLike records the fact "user X likes puzzle Y".
//
// PuzzleID references the puzzle's PUBLIC id (puzzles.puzzle_id), not the
// internal row id — likes follow the identifier the client actually holds.
// The (UserID, PuzzleID) pair is UNIQUE: a user can like a puzzle at most
// once, and that constraint is the real source of truth for like state.
type UserLike struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	PuzzleID  string    `json:"puzzle_id"`
	CreatedAt time.Time `json:"created_at"`
}

// LikeResult reports the outcome of an add- or remove-like operation.
//
// "Already liked" and "hadn't liked" are NOT errors — they're successful
// idempotent outcomes, distinguished by the flags below. Likes carries the
// puzzle's counter after the operation so the client can render it without
// a second request.
type LikeResult struct {
	AlreadyLiked bool   `json:"alreadyLiked,omitempty"`
	Removed      bool   `json:"removed"`
	LikeID       int64  `json:"likeId,omitempty"`
	PuzzleID     string `json:"puzzle_id"`
	Likes        int    `json:"likes"`
}
