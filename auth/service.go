// Package auth handles registration, login and token management. Passwords
// are hashed with bcrypt; sessions are a pair of HS256-signed JWTs (short
// lived access token, long lived refresh token). The access token carries
// the admin flag so authorization checks need no extra database round trip.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/user/queryloop-go/apperror"
	"github.com/user/queryloop-go/config"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
	// pgUniqueViolation is the PostgreSQL error code for unique constraint
	// violations.
	pgUniqueViolation = "23505"
)

// AuthService provides registration, login and token refresh.
type AuthService struct {
	dbPool     *pgxpool.Pool
	authConfig config.AuthConfig
}

// NewAuthService creates a new AuthService.
func NewAuthService(dbPool *pgxpool.Pool, authConfig config.AuthConfig) *AuthService {
	return &AuthService{
		dbPool:     dbPool,
		authConfig: authConfig,
	}
}

// CustomClaims is the JWT payload: the caller identity plus the token type,
// so a refresh token can never be replayed as an access token.
type CustomClaims struct {
	UserID    string `json:"user_id"`
	IsAdmin   bool   `json:"is_admin"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Register creates a new account and its profile row. The display name
// defaults to the username and reputation starts at zero.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, apperror.NewValidationError("username, email and password are required", nil)
	}
	if len(req.Username) < 2 || len(req.Username) > 50 {
		return nil, apperror.NewValidationError("username must be 2-50 characters", nil)
	}
	if !strings.Contains(req.Email, "@") {
		return nil, apperror.NewValidationError("email is not valid", nil)
	}
	if len(req.Password) < 8 {
		return nil, apperror.NewValidationError("password must be at least 8 characters", nil)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	displayName := req.Username
	user := &User{
		ID:             uuid.NewString(),
		Username:       req.Username,
		DisplayName:    &displayName,
		Email:          strings.ToLower(req.Email),
		HashedPassword: string(hashedPassword),
	}

	createdUser, err := s.createUser(ctx, user)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			if strings.Contains(pgErr.ConstraintName, "username") {
				return nil, apperror.NewConflictError("username already exists", nil)
			}
			if strings.Contains(pgErr.ConstraintName, "email") {
				return nil, apperror.NewConflictError("email already exists", nil)
			}
		}
		return nil, apperror.NewDatabaseError("failed to create user", err)
	}
	return createdUser, nil
}

// Login authenticates a user by username or email and returns a token pair.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	user, err := s.getUserByLogin(ctx, req.Login)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Do not reveal whether the account or the password was wrong.
			return nil, apperror.NewAuthError("invalid credentials", nil)
		}
		slog.Error("login lookup failed", "error", err)
		return nil, apperror.NewDatabaseError("failed to get user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		return nil, apperror.NewAuthError("invalid credentials", nil)
	}

	return s.generateTokens(user)
}

// RefreshToken validates a refresh token and issues a fresh access token.
// The admin flag is re-read from the database so a revoked admin loses the
// capability on the next refresh at the latest.
func (s *AuthService) RefreshToken(ctx context.Context, refreshTokenString string) (*TokenResponse, error) {
	claims, err := s.validateToken(refreshTokenString, tokenTypeRefresh)
	if err != nil {
		return nil, apperror.NewAuthError(fmt.Sprintf("invalid refresh token: %s", err.Error()), err)
	}

	user, err := s.getUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewAuthError("account no longer exists", nil)
		}
		return nil, apperror.NewDatabaseError("failed to load user for refresh", err)
	}

	newAccessToken, newAccessExpiresAt, err := s.generateSpecificToken(user, tokenTypeAccess, s.authConfig.AccessTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to generate new access token: %w", err)
	}

	return &TokenResponse{
		AccessToken:  newAccessToken,
		RefreshToken: refreshTokenString,
		TokenType:    "Bearer",
		ExpiresIn:    newAccessExpiresAt.Unix(),
	}, nil
}

func (s *AuthService) generateTokens(user *User) (*TokenResponse, error) {
	accessToken, accessExpiresAt, err := s.generateSpecificToken(user, tokenTypeAccess, s.authConfig.AccessTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, _, err := s.generateSpecificToken(user, tokenTypeRefresh, s.authConfig.RefreshTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    accessExpiresAt.Unix(),
	}, nil
}

func (s *AuthService) generateSpecificToken(user *User, tokenType string, duration time.Duration) (string, time.Time, error) {
	expirationTime := time.Now().Add(duration)
	claims := &CustomClaims{
		UserID:    user.ID,
		IsAdmin:   user.IsAdmin,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "queryloop",
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.authConfig.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expirationTime, nil
}

func (s *AuthService) validateToken(tokenString string, expectedTokenType string) (*CustomClaims, error) {
	claims := &CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.authConfig.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token is invalid")
	}
	if claims.TokenType != expectedTokenType {
		return nil, fmt.Errorf("invalid token type: expected %s, got %s", expectedTokenType, claims.TokenType)
	}
	return claims, nil
}

func (s *AuthService) createUser(ctx context.Context, user *User) (*User, error) {
	query := `INSERT INTO users (id, username, display_name, email, password, reputation)
              VALUES ($1, $2, $3, $4, $5, 0)
              RETURNING created_at`
	err := s.dbPool.QueryRow(ctx, query,
		user.ID, user.Username, user.DisplayName, user.Email, user.HashedPassword,
	).Scan(&user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) getUserByLogin(ctx context.Context, login string) (*User, error) {
	var user User
	var query string
	var arg interface{}

	if strings.Contains(login, "@") {
		query = `SELECT id, username, display_name, email, password, is_admin, reputation, bio, created_at
                 FROM users WHERE email = $1`
		arg = strings.ToLower(login)
	} else {
		query = `SELECT id, username, display_name, email, password, is_admin, reputation, bio, created_at
                 FROM users WHERE username = $1`
		arg = login
	}

	err := s.dbPool.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.DisplayName, &user.Email,
		&user.HashedPassword, &user.IsAdmin, &user.Reputation, &user.Bio, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) getUserByID(ctx context.Context, id string) (*User, error) {
	var user User
	query := `SELECT id, username, display_name, email, password, is_admin, reputation, bio, created_at
              FROM users WHERE id = $1`
	err := s.dbPool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.DisplayName, &user.Email,
		&user.HashedPassword, &user.IsAdmin, &user.Reputation, &user.Bio, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
