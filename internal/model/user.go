package model

import "time"

// User represents a registered user account.
//
// We use Google OAuth as the identity provider, so the stable external
// identifier is Google's subject id (the "sub" claim — a decimal string,
// not an integer, per the OIDC spec). Our own primary key is a numeric id
// generated by the database, so internal references aren't tied to a third
// party's numbering scheme.
//
// WHY GoogleID string (not int64)?
// Google documents "sub" as an opaque string of up to 255 characters. Today
// the values happen to look numeric, but parsing them would break the day
// Google changes the format. The UNIQUE constraint on google_id ensures one
// Google account maps to exactly one app account.
//
// Picture is nullable in the database (some accounts have no photo); we keep
// it as a plain string with "" meaning absent — simpler than a pointer and
// safe to render.
type User struct {
	ID        int64     `json:"id"`
	GoogleID  string    `json:"google_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Picture   string    `json:"picture,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
