// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// WHY int64 IDs?
// The primary key is assigned by the database (AUTOINCREMENT) and read back
// via LastInsertId, which returns int64. Using the same type end to end
// avoids lossy conversions.
//
// PasswordHash holds a bcrypt hash — never a plain password. It is tagged
// `json:"-"` so it can never leak through an API response, no matter which
// handler serializes the struct.
//
// ResetToken and ResetTokenExpires are both nil except in the window between
// a password-reset request and its consumption. Pointers (not zero values)
// make "no token outstanding" explicit and map cleanly to NULL columns.
type User struct {
	ID           int64      `json:"id"        db:"id"`
	Username     string     `json:"username"  db:"username"`
	Email        string     `json:"email"     db:"email"`
	PasswordHash string     `json:"-"         db:"password_hash"`
	IsAdmin      bool       `json:"isAdmin"   db:"is_admin"`
	IsActive     bool       `json:"isActive"  db:"is_active"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	ResetToken   *string    `json:"-"         db:"reset_token"`
	ResetExpires *time.Time `json:"-"         db:"reset_token_expires"`
}
