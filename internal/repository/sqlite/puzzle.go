package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sakif/pips-puzzles/internal/apperror"
	"github.com/sakif/pips-puzzles/internal/model"
	"github.com/sakif/pips-puzzles/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// This line verifies AT COMPILE TIME that *DB implements repository.PuzzleRepository.
//
// How it works:
//   - `var _ X = (*Y)(nil)` creates a nil pointer of type *Y
//   - It assigns it to a variable of type X (the interface)
//   - If *Y doesn't implement X, the compiler errors immediately
//
// Without this, you'd only discover a missing method when you try to pass
// *DB to something that expects PuzzleRepository — which could be much later.
var _ repository.PuzzleRepository = (*DB)(nil)

// boardColumns marshals the three structured board fields to their JSON
// column representations. Centralised so Create and Update can't drift.
func boardColumns(p *model.Puzzle) (rowData, regionsData, diceData []byte, err error) {
	if rowData, err = json.Marshal(p.Rows); err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling row data: %w", err)
	}
	if regionsData, err = json.Marshal(p.Regions); err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling regions data: %w", err)
	}
	if diceData, err = json.Marshal(p.Dice); err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling dice data: %w", err)
	}
	return rowData, regionsData, diceData, nil
}

// decodeBoard is the inverse of boardColumns: raw JSON columns → struct fields.
// A row whose JSON doesn't parse is rejected as an error rather than passed
// upward half-empty — corrupt data should be loud, not invisible.
func decodeBoard(p *model.Puzzle, rowData, regionsData, diceData []byte) error {
	if err := json.Unmarshal(rowData, &p.Rows); err != nil {
		return fmt.Errorf("unmarshaling row data: %w", err)
	}
	if err := json.Unmarshal(regionsData, &p.Regions); err != nil {
		return fmt.Errorf("unmarshaling regions data: %w", err)
	}
	if err := json.Unmarshal(diceData, &p.Dice); err != nil {
		return fmt.Errorf("unmarshaling dice data: %w", err)
	}
	return nil
}

// Create inserts a new puzzle.
//
// The public puzzle_id is CLIENT-supplied (the board editor generates it when
// the user hits share), so unlike most Create methods we don't generate an id
// here — we only detect collisions. The UNIQUE constraint on puzzle_id turns
// a duplicate into a Conflict error; the existing row is never touched.
//
// PARAMETERIZED QUERIES (the ? placeholders):
// NEVER build SQL strings with fmt.Sprintf or string concatenation!
// That creates SQL injection vulnerabilities:
//
//	BAD:  "WHERE puzzle_id = '" + userInput + "'"   ← attacker sends: ' OR 1=1 --
//	GOOD: "WHERE puzzle_id = ?", userInput           ← driver safely escapes the value
func (db *DB) Create(ctx context.Context, puzzle *model.Puzzle) error {
	rowData, regionsData, diceData, err := boardColumns(puzzle)
	if err != nil {
		return fmt.Errorf("sqlite: creating puzzle %s: %w", puzzle.PuzzleID, err)
	}

	now := time.Now()
	puzzle.CreatedAt = now
	puzzle.UpdatedAt = now

	// UserID is *int64: nil marshals to SQL NULL (anonymous puzzle).
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO puzzles (puzzle_id, user_id, row_data, regions_data, dice_data, likes, is_verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, 0, ?, ?)`,
		puzzle.PuzzleID,
		puzzle.UserID,
		string(rowData),
		string(regionsData),
		string(diceData),
		puzzle.CreatedAt,
		puzzle.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("puzzle", puzzle.PuzzleID)
		}
		return fmt.Errorf("sqlite: creating puzzle %s: %w", puzzle.PuzzleID, err)
	}

	// LastInsertId gives us the internal numeric row id the database chose.
	if puzzle.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("sqlite: reading puzzle insert id: %w", err)
	}

	puzzle.Likes = 0
	puzzle.IsVerified = 0
	return nil
}

// GetByPuzzleID retrieves a single puzzle by its public id, joined with the
// creator's public display fields.
//
// LEFT JOIN, not JOIN: anonymous puzzles have user_id NULL and must still be
// returned — an inner join would silently drop them.
func (db *DB) GetByPuzzleID(ctx context.Context, puzzleID string) (*model.PuzzleWithCreator, error) {
	var (
		p           model.PuzzleWithCreator
		userID      sql.NullInt64
		rowData     []byte
		regionsData []byte
		diceData    []byte
		creatorName sql.NullString
		creatorPic  sql.NullString
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT p.id, p.puzzle_id, p.user_id, p.row_data, p.regions_data, p.dice_data,
		        p.likes, p.is_verified, p.created_at, p.updated_at,
		        u.name, u.picture
		 FROM puzzles p
		 LEFT JOIN users u ON p.user_id = u.id
		 WHERE p.puzzle_id = ?`,
		puzzleID,
	).Scan(
		&p.ID,
		&p.PuzzleID,
		&userID,
		&rowData,
		&regionsData,
		&diceData,
		&p.Likes,
		&p.IsVerified,
		&p.CreatedAt,
		&p.UpdatedAt,
		&creatorName,
		&creatorPic,
	)
	if err != nil {
		// sql.ErrNoRows is a sentinel, not a real failure — translate it to
		// our domain NotFound so the handler knows to return 404.
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("puzzle", puzzleID)
		}
		return nil, fmt.Errorf("sqlite: getting puzzle %s: %w", puzzleID, err)
	}

	if userID.Valid {
		p.UserID = &userID.Int64
	}
	p.CreatorName = creatorName.String
	p.CreatorAvatar = creatorPic.String

	if err := decodeBoard(&p.Puzzle, rowData, regionsData, diceData); err != nil {
		return nil, fmt.Errorf("sqlite: getting puzzle %s: %w", puzzleID, err)
	}

	return &p, nil
}

// ListByLikes retrieves puzzles ordered by popularity: likes DESC, then
// created_at DESC (newest first among ties), then id DESC so pagination is
// deterministic even when two rows share a timestamp.
//
// THE hasLiked JOIN:
// The second LEFT JOIN matches at most one user_likes row — the viewer's own
// like on that puzzle. A matched row means "this viewer already liked it".
// For anonymous requests viewerID is 0, which matches nothing (user ids
// start at 1), so every flag comes back false. One query instead of N+1
// CheckLike calls.
func (db *DB) ListByLikes(ctx context.Context, opts repository.ListOptions, viewerID int64) ([]model.PuzzleWithCreator, error) {
	limit, offset := clampListOptions(opts)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT p.id, p.puzzle_id, p.user_id, p.row_data, p.regions_data, p.dice_data,
		        p.likes, p.is_verified, p.created_at, p.updated_at,
		        u.name, u.picture,
		        CASE WHEN ul.user_id IS NOT NULL THEN 1 ELSE 0 END
		 FROM puzzles p
		 LEFT JOIN users u ON p.user_id = u.id
		 LEFT JOIN user_likes ul ON ul.puzzle_id = p.puzzle_id AND ul.user_id = ?
		 ORDER BY p.likes DESC, p.created_at DESC, p.id DESC
		 LIMIT ? OFFSET ?`,
		viewerID,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing puzzles by likes: %w", err)
	}
	// CRITICAL: always close rows when done! sql.Rows holds a pool
	// connection; a missed Close leaks it until the pool runs dry.
	defer rows.Close()

	return scanPuzzleRows(rows, limit)
}

// ListByUser retrieves one owner's puzzles, newest first.
// The total count comes from CountByUser — it can't be derived from a page.
func (db *DB) ListByUser(ctx context.Context, userID int64, opts repository.ListOptions) ([]model.PuzzleWithCreator, error) {
	limit, offset := clampListOptions(opts)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT p.id, p.puzzle_id, p.user_id, p.row_data, p.regions_data, p.dice_data,
		        p.likes, p.is_verified, p.created_at, p.updated_at,
		        u.name, u.picture,
		        0
		 FROM puzzles p
		 LEFT JOIN users u ON p.user_id = u.id
		 WHERE p.user_id = ?
		 ORDER BY p.created_at DESC, p.id DESC
		 LIMIT ? OFFSET ?`,
		userID,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing puzzles for user %d: %w", userID, err)
	}
	defer rows.Close()

	return scanPuzzleRows(rows, limit)
}

// CountAll returns the total number of puzzles, for pagination metadata.
func (db *DB) CountAll(ctx context.Context) (int, error) {
	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM puzzles`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sqlite: counting puzzles: %w", err)
	}
	return total, nil
}

// CountByUser returns how many puzzles one user owns.
func (db *DB) CountByUser(ctx context.Context, userID int64) (int, error) {
	var total int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM puzzles WHERE user_id = ?`, userID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting puzzles for user %d: %w", userID, err)
	}
	return total, nil
}

// Update replaces the board fields (rows, regions, dice) and bumps
// updated_at. Ownership, like count, verification flag, and the ids are
// deliberately NOT in the SET list — this statement cannot touch them no
// matter what the caller passes.
func (db *DB) Update(ctx context.Context, puzzle *model.Puzzle) error {
	rowData, regionsData, diceData, err := boardColumns(puzzle)
	if err != nil {
		return fmt.Errorf("sqlite: updating puzzle %s: %w", puzzle.PuzzleID, err)
	}

	puzzle.UpdatedAt = time.Now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE puzzles
		 SET row_data = ?, regions_data = ?, dice_data = ?, updated_at = ?
		 WHERE puzzle_id = ?`,
		string(rowData),
		string(regionsData),
		string(diceData),
		puzzle.UpdatedAt,
		puzzle.PuzzleID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating puzzle %s: %w", puzzle.PuzzleID, err)
	}

	// RowsAffected() tells us whether the WHERE clause matched anything.
	// 0 rows changed → the puzzle doesn't exist.
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("puzzle", puzzle.PuzzleID)
	}

	return nil
}

// adjustLikesTx atomically bumps a puzzle's like counter by delta inside an
// existing transaction, clamped at zero. MAX(x, 0) is SQLite's two-argument
// scalar max — the counter can never go negative even if the cache and the
// user_likes table have drifted.
//
// Only the like protocol (like.go) calls this; it is not reachable from any
// handler with caller-controlled deltas.
func adjustLikesTx(ctx context.Context, tx *sql.Tx, puzzleID string, delta int) (int, error) {
	_, err := tx.ExecContext(ctx,
		`UPDATE puzzles
		 SET likes = MAX(likes + ?, 0), updated_at = ?
		 WHERE puzzle_id = ?`,
		delta,
		time.Now(),
		puzzleID,
	)
	if err != nil {
		return 0, fmt.Errorf("adjusting likes for puzzle %s: %w", puzzleID, err)
	}

	var likes int
	err = tx.QueryRowContext(ctx,
		`SELECT likes FROM puzzles WHERE puzzle_id = ?`, puzzleID,
	).Scan(&likes)
	if err != nil {
		return 0, fmt.Errorf("reading likes for puzzle %s: %w", puzzleID, err)
	}
	return likes, nil
}

// Delete removes a puzzle by its public id. The ON DELETE CASCADE on
// user_likes.puzzle_id removes its likes in the same statement.
func (db *DB) Delete(ctx context.Context, puzzleID string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM puzzles WHERE puzzle_id = ?`,
		puzzleID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting puzzle %s: %w", puzzleID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("puzzle", puzzleID)
	}

	return nil
}

// clampListOptions applies the pagination defaults and bounds.
// The service layer enforces these too (and rejects rather than clamps),
// but the repository defends itself — it must stay safe even if a future
// caller skips the service.
func clampListOptions(opts repository.ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// scanPuzzleRows drains a puzzle list query into typed structs.
// Every list query selects the same columns in the same order, so the
// scanning loop lives in one place.
func scanPuzzleRows(rows *sql.Rows, limit int) ([]model.PuzzleWithCreator, error) {
	// Pre-allocate with the page size as the capacity hint — we know the
	// upper bound, no need to let append re-grow the slice.
	puzzles := make([]model.PuzzleWithCreator, 0, limit)

	for rows.Next() {
		var (
			p           model.PuzzleWithCreator
			userID      sql.NullInt64
			rowData     []byte
			regionsData []byte
			diceData    []byte
			creatorName sql.NullString
			creatorPic  sql.NullString
			hasLiked    int
		)
		if err := rows.Scan(
			&p.ID, &p.PuzzleID, &userID, &rowData, &regionsData, &diceData,
			&p.Likes, &p.IsVerified, &p.CreatedAt, &p.UpdatedAt,
			&creatorName, &creatorPic, &hasLiked,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning puzzle row: %w", err)
		}

		if userID.Valid {
			p.UserID = &userID.Int64
		}
		p.CreatorName = creatorName.String
		p.CreatorAvatar = creatorPic.String
		p.HasLiked = hasLiked == 1

		if err := decodeBoard(&p.Puzzle, rowData, regionsData, diceData); err != nil {
			return nil, fmt.Errorf("sqlite: decoding puzzle %s: %w", p.PuzzleID, err)
		}

		puzzles = append(puzzles, p)
	}

	// rows.Err() catches errors that happened DURING iteration — e.g. the
	// connection dropping mid-result-set.
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating puzzles: %w", err)
	}

	return puzzles, nil
}
