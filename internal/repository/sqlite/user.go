package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/pips-puzzles/internal/apperror"
	"github.com/sakif/pips-puzzles/internal/model"
	"github.com/sakif/pips-puzzles/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// CreateUser inserts a new user row.
//
// TWO INSERT SHAPES:
// Normally the database assigns the numeric id (user.ID == 0 on the way in,
// filled from LastInsertId on the way out). A caller may also supply an
// explicit id — that path exists for linking a pre-existing identity, e.g.
// importing accounts from a previous system with their ids intact.
//
// google_id is nullable (legacy rows predate OAuth), so an empty GoogleID is
// stored as NULL rather than "" — two users without a subject id must not
// collide on the UNIQUE constraint.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	googleID := sql.NullString{String: user.GoogleID, Valid: user.GoogleID != ""}
	picture := sql.NullString{String: user.Picture, Valid: user.Picture != ""}

	var (
		res sql.Result
		err error
	)
	if user.ID != 0 {
		res, err = db.conn.ExecContext(ctx,
			`INSERT INTO users (id, google_id, email, name, picture, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			user.ID, googleID, user.Email, user.Name, picture, user.CreatedAt, user.UpdatedAt,
		)
	} else {
		res, err = db.conn.ExecContext(ctx,
			`INSERT INTO users (google_id, email, name, picture, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			googleID, user.Email, user.Name, picture, user.CreatedAt, user.UpdatedAt,
		)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	if user.ID == 0 {
		if user.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("sqlite: reading user insert id: %w", err)
		}
	}

	return nil
}

// GetUserByID retrieves a user by their internal numeric id.
// Returns apperror.ErrNotFound if no user exists with that id.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return db.getUser(ctx, `WHERE id = ?`, strconv.FormatInt(id, 10), id)
}

// GetUserByGoogleID retrieves a user by the identity provider's subject id.
// This is the lookup the OAuth callback uses to find-or-create accounts.
func (db *DB) GetUserByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return db.getUser(ctx, `WHERE google_id = ?`, googleID, googleID)
}

// GetUserByEmail retrieves a user by email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, `WHERE email = ?`, email, email)
}

// getUser is the shared single-row lookup behind the three GetUserBy methods.
// The where clause is a trusted constant from THIS file, never caller input —
// the actual value always goes through a ? placeholder.
func (db *DB) getUser(ctx context.Context, where, idForError string, arg any) (*model.User, error) {
	var (
		u        model.User
		googleID sql.NullString
		picture  sql.NullString
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, google_id, email, name, picture, created_at, updated_at
		 FROM users `+where,
		arg,
	).Scan(
		&u.ID,
		&googleID,
		&u.Email,
		&u.Name,
		&picture,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", idForError)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", idForError, err)
	}

	u.GoogleID = googleID.String
	u.Picture = picture.String
	return &u, nil
}

// UpdateUser overwrites the identity-provider-sourced fields (google_id,
// email, name, picture) and bumps updated_at. Called on every sign-in so the
// local profile tracks what Google currently reports.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now()

	googleID := sql.NullString{String: user.GoogleID, Valid: user.GoogleID != ""}
	picture := sql.NullString{String: user.Picture, Valid: user.Picture != ""}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET google_id = ?, email = ?, name = ?, picture = ?, updated_at = ?
		 WHERE id = ?`,
		googleID,
		user.Email,
		user.Name,
		picture,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %d: %w", user.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", strconv.FormatInt(user.ID, 10))
	}

	return nil
}

// DeleteUser removes a user. The ON DELETE CASCADE relationships take their
// puzzles with them, and the puzzle cascade in turn removes the likes those
// puzzles had collected — plus the user's own likes on other puzzles.
//
// NOTE: deleting a user does NOT re-decrement counters on puzzles they had
// liked; the cascade removes the user_likes rows in bulk. This is an admin
// operation, and an admin cleanup pass recomputing counters from user_likes
// is the documented follow-up after bulk deletions.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM users WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}

	return nil
}
