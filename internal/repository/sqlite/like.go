package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/pips-puzzles/internal/apperror"
	"github.com/sakif/pips-puzzles/internal/model"
	"github.com/sakif/pips-puzzles/internal/repository"
)

// compile-time check that *DB implements repository.LikeRepository
var _ repository.LikeRepository = (*DB)(nil)

// AddLike records that a user likes a puzzle.
//
// THE CONSISTENCY PROTOCOL:
// The user_likes row and the puzzle's denormalized counter must move
// together, so everything happens inside one transaction:
//
//  1. Check for an existing (user, puzzle) row. If present → return
//     AlreadyLiked without writing anything. Liking twice is an idempotent
//     no-op, not an error.
//  2. Insert the user_likes row.
//  3. Increment the puzzle's counter by exactly one.
//  4. Commit. A failure anywhere rolls back BOTH writes.
//
// THE RACE, AND WHY THE UNIQUE CONSTRAINT IS THE REAL GUARD:
// Two concurrent requests from the same user can both pass the existence
// check in step 1 (each in its own transaction, neither seeing the other's
// uncommitted insert). The UNIQUE(user_id, puzzle_id) constraint is what
// actually prevents a double like: the second insert fails, and we classify
// that failure as AlreadyLiked — a success. Do NOT "fix" this by taking a
// broader lock; the constraint backstop is the intended design.
//
// A like for a puzzle that doesn't exist trips the foreign key on
// user_likes.puzzle_id, which we surface as NotFound.
func (db *DB) AddLike(ctx context.Context, userID int64, puzzleID string) (*model.LikeResult, error) {
	result := &model.LikeResult{PuzzleID: puzzleID}

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		// Step 1: existence check inside the transaction.
		var likeID int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM user_likes WHERE user_id = ? AND puzzle_id = ?`,
			userID, puzzleID,
		).Scan(&likeID)

		if err == nil {
			// Already liked — read the current counter and stop. No writes.
			result.AlreadyLiked = true
			result.LikeID = likeID
			return tx.QueryRowContext(ctx,
				`SELECT likes FROM puzzles WHERE puzzle_id = ?`, puzzleID,
			).Scan(&result.Likes)
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("checking existing like: %w", err)
		}

		// Step 2: insert the like row.
		res, err := tx.ExecContext(ctx,
			`INSERT INTO user_likes (user_id, puzzle_id, created_at)
			 VALUES (?, ?, ?)`,
			userID, puzzleID, time.Now(),
		)
		if err != nil {
			// A concurrent transaction inserted the same pair between our
			// check and our insert. That means the user IS liked — success.
			if isUniqueViolation(err) {
				result.AlreadyLiked = true
				return tx.QueryRowContext(ctx,
					`SELECT likes FROM puzzles WHERE puzzle_id = ?`, puzzleID,
				).Scan(&result.Likes)
			}
			if isForeignKeyViolation(err) {
				return apperror.NotFound("puzzle", puzzleID)
			}
			return fmt.Errorf("inserting like: %w", err)
		}

		if result.LikeID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading like insert id: %w", err)
		}

		// Step 3: bump the counter in the SAME transaction.
		result.Likes, err = adjustLikesTx(ctx, tx, puzzleID, +1)
		return err
	})
	if err != nil {
		// apperror values pass through untouched so handlers can map them;
		// everything else gets the package prefix for the logs.
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlite: adding like (user=%d puzzle=%s): %w", userID, puzzleID, err)
	}

	return result, nil
}

// RemoveLike is the mirror of AddLike: check, delete, decrement — one
// transaction. Unliking something you never liked returns Removed=false
// without touching the counter.
func (db *DB) RemoveLike(ctx context.Context, userID int64, puzzleID string) (*model.LikeResult, error) {
	result := &model.LikeResult{PuzzleID: puzzleID}

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		var likeID int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM user_likes WHERE user_id = ? AND puzzle_id = ?`,
			userID, puzzleID,
		).Scan(&likeID)

		if err == sql.ErrNoRows {
			// Nothing to remove — idempotent no-op.
			result.Removed = false
			return tx.QueryRowContext(ctx,
				`SELECT likes FROM puzzles WHERE puzzle_id = ?`, puzzleID,
			).Scan(&result.Likes)
		}
		if err != nil {
			return fmt.Errorf("checking existing like: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM user_likes WHERE user_id = ? AND puzzle_id = ?`,
			userID, puzzleID,
		); err != nil {
			return fmt.Errorf("deleting like: %w", err)
		}

		result.Removed = true
		result.LikeID = likeID

		// Decrement, floored at zero by adjustLikesTx.
		result.Likes, err = adjustLikesTx(ctx, tx, puzzleID, -1)
		return err
	})
	if err != nil {
		if err == sql.ErrNoRows {
			// The counter read found no puzzle row at all.
			return nil, apperror.NotFound("puzzle", puzzleID)
		}
		return nil, fmt.Errorf("sqlite: removing like (user=%d puzzle=%s): %w", userID, puzzleID, err)
	}

	return result, nil
}

// CheckLike reports whether the user has liked the puzzle.
// A pure existence read — no transaction needed, nothing is written.
func (db *DB) CheckLike(ctx context.Context, userID int64, puzzleID string) (bool, error) {
	var likeID int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM user_likes WHERE user_id = ? AND puzzle_id = ?`,
		userID, puzzleID,
	).Scan(&likeID)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: checking like (user=%d puzzle=%s): %w", userID, puzzleID, err)
	}
	return true, nil
}
