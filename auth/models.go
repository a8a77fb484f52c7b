package auth

import "time"

// User represents an account row in the users table. The same row carries
// both the credential (hashed password) and the public profile fields; there
// is no separate identity store.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	DisplayName    *string   `json:"display_name,omitempty"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"` // never exposed in API responses
	IsAdmin        bool      `json:"is_admin"`
	Reputation     int       `json:"reputation"`
	Bio            *string   `json:"bio,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
