// Package auth provides authentication and authorization functionality.
// This file defines the request and response payloads for the auth endpoints.
package auth

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Username string `json:"username" example:"newuser"`
	Email    string `json:"email" example:"user@example.com"`
	Password string `json:"password" example:"strongpassword123"`
}

// LoginRequest is the login payload. Login accepts a username or an email.
type LoginRequest struct {
	Login    string `json:"login" example:"user@example.com"`
	Password string `json:"password" example:"strongpassword123"`
}

// TokenResponse is returned on successful login or token refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	RefreshToken string `json:"refresh_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	TokenType    string `json:"token_type" example:"Bearer"`
	ExpiresIn    int64  `json:"expires_in" example:"3600"` // access token expiry, unix seconds
}

// RefreshTokenRequest carries a refresh token to exchange for a new access
// token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}
