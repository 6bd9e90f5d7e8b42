package types

import "time"

// User represents an account in the system.
// Email is the authentication key; username is a public handle.
type User struct {
	// ID is the unique identifier of the user.
	ID int64 `json:"id" db:"id"`

	// Email is the user's email address, stored lowercased.
	// It is globally unique and used for login.
	Email string `json:"email" db:"email"`

	// Username is the unique public handle chosen by the user
	// (3-30 alphanumeric characters).
	Username string `json:"username" db:"username"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// IsActive indicates whether the account may authenticate.
	IsActive bool `json:"is_active" db:"is_active"`

	// IsStaff grants access to administrative endpoints.
	IsStaff bool `json:"is_staff" db:"is_staff"`

	// DateJoined is the timestamp when the account was created.
	DateJoined time.Time `json:"date_joined" db:"date_joined"`

	// LastLogin is the timestamp of the most recent successful login,
	// nil until the user logs in for the first time.
	LastLogin *time.Time `json:"last_login" db:"last_login"`
}
