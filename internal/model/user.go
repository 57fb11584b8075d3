// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a registered account.
//
// ID is assigned by the store on insert (an auto-increment integer in both
// SQLite and Postgres). Email is stored lower-cased; the service normalises it
// before every lookup so uniqueness is case-insensitive.
//
// PasswordHash is the full bcrypt string. The `json:"-"` tag keeps it out of
// every response body, even if a handler encodes a User directly.
type User struct {
	ID           int64     `json:"id"        db:"id"`
	FullName     string    `json:"fullName"  db:"full_name"`
	Email        string    `json:"email"     db:"email"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}
