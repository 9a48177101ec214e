// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// Coordinate is one cell position on the board grid.
// X is the column, Y is the row, both zero-based.
type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Region is a labelled group of grid cells sharing one constraint.
//
// ComputedValue is the constraint label the client computed when building the
// board, e.g. "=", "≠", ">3". The server stores it verbatim — it never
// re-derives constraints, the board editor owns that logic.
type Region struct {
	ComputedValue string       `json:"computedValue"`
	Coordinates   []Coordinate `json:"coordinates"`
}

// Puzzle represents one saved puzzle board.
//
// TWO IDs?
// ID is the internal numeric primary key (auto-increment, never leaves the
// server except in admin contexts). PuzzleID is the public 8-character
// alphanumeric identifier the client generates when sharing a board — it's
// what appears in URLs and what user_likes rows reference. Keeping them
// separate means the public identifier can stay short and opaque while the
// database keeps cheap integer joins for ownership.
//
// WHY UserID *int64 (a pointer)?
// Anonymous submissions are allowed, so the owning user is optional. A nil
// pointer maps cleanly to SQL NULL; an int64 zero value would be
// indistinguishable from "user 0".
//
// The board itself is three structured fields:
//   - Rows:    2-D grid of 0/1 cells marking which positions exist
//   - Regions: constraint groups over those cells
//   - Dice:    the available dominoes, each a [pip, pip] pair in 0..6
//
// These are stored as JSON in the database and round-trip through this struct.
type Puzzle struct {
	ID         int64     `json:"-"`
	PuzzleID   string    `json:"puzzle_id"`
	UserID     *int64    `json:"user_id,omitempty"`
	Rows       [][]int   `json:"row"`
	Regions    []Region  `json:"regions"`
	Dice       [][2]int  `json:"dice"`
	Likes      int       `json:"likes"`
	IsVerified int       `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PuzzleWithCreator is a puzzle joined with its creator's public display
// fields, as returned by the list and detail endpoints. HasLiked is only
// meaningful when the query ran on behalf of a signed-in viewer.
type PuzzleWithCreator struct {
	Puzzle
	CreatorName   string `json:"creator_name,omitempty"`
	CreatorAvatar string `json:"creator_avatar,omitempty"`
	HasLiked      bool   `json:"hasLiked"`
}
