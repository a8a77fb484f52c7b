package users

import "time"

// Profile is the public view of a user.
type Profile struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName *string   `json:"display_name,omitempty"`
	Reputation  int       `json:"reputation"`
	Bio         *string   `json:"bio,omitempty"`
	IsAdmin     bool      `json:"is_admin"`
	CreatedAt   time.Time `json:"created_at"`
}

// UpdateProfileRequest is the payload for editing one's own profile.
// Nil fields are left unchanged.
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name,omitempty" example:"Ada L."`
	Bio         *string `json:"bio,omitempty" example:"Systems programmer."`
}
