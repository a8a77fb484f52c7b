package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/queryloop-go/answers"
	"github.com/user/queryloop-go/apperror"
	"github.com/user/queryloop-go/questions"
	"github.com/user/queryloop-go/storage"
)

// UserService defines the user profile and account operations.
type UserService interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (*Profile, error)
	UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*Profile, error)
	// DeleteUser removes the account and everything it authored: every
	// question it asked (with that question's full cascade), every answer
	// it wrote on other questions, and its votes and favorites.
	DeleteUser(ctx context.Context, userID string) error
	// SetAdmin grants or revokes the admin flag.
	SetAdmin(ctx context.Context, userID string, isAdmin bool) error
	// IsAdmin reports the user's current admin flag.
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

type userServiceImpl struct {
	db    *pgxpool.Pool
	files storage.FileStore
}

// NewUserService creates a UserService. The file store is needed for the
// blob sweep during account deletion.
func NewUserService(db *pgxpool.Pool, files storage.FileStore) UserService {
	return &userServiceImpl{db: db, files: files}
}

const profileColumns = `id, username, display_name, reputation, bio, is_admin, created_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.Username, &p.DisplayName, &p.Reputation, &p.Bio, &p.IsAdmin, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFoundError("user not found", nil)
		}
		return nil, apperror.NewDatabaseError("failed to load user", err)
	}
	return &p, nil
}

func (s *userServiceImpl) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	return scanProfile(s.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM users WHERE id = $1`, userID))
}

func (s *userServiceImpl) GetProfileByUsername(ctx context.Context, username string) (*Profile, error) {
	return scanProfile(s.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM users WHERE username = $1`, username))
}

const maxBioLen = 2000

func (s *userServiceImpl) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*Profile, error) {
	if req.DisplayName != nil {
		trimmed := strings.TrimSpace(*req.DisplayName)
		if trimmed == "" {
			return nil, apperror.NewValidationError("display_name must not be blank", nil)
		}
		req.DisplayName = &trimmed
	}
	if req.Bio != nil && len(*req.Bio) > maxBioLen {
		return nil, apperror.NewValidationError("bio is too long", nil)
	}

	return scanProfile(s.db.QueryRow(ctx, `
		UPDATE users SET
			display_name = COALESCE($2, display_name),
			bio = COALESCE($3, bio)
		WHERE id = $1
		RETURNING `+profileColumns,
		userID, req.DisplayName, req.Bio))
}

// DeleteUser is the account half of the deletion coordinator. All blobs go
// first: those of every authored question (answers on them included) and of
// every answer the user wrote elsewhere. Then one transaction removes all
// rows: each authored question's cascade, each authored answer's cascade,
// the user's loose votes and favorites, and the user row itself. An
// interruption between the sweeps leaves rerunnable metadata, never an
// orphaned blob.
func (s *userServiceImpl) DeleteUser(ctx context.Context, userID string) (err error) {
	if _, err = s.GetProfile(ctx, userID); err != nil {
		return err
	}

	questionIDs, err := s.collectIDs(ctx,
		`SELECT id FROM questions WHERE author_id = $1`, userID)
	if err != nil {
		return err
	}
	// Answers on the user's own questions fall under the question cascade;
	// this picks up the ones written on other people's questions too, where
	// the double delete is harmless.
	answerIDs, err := s.collectIDs(ctx,
		`SELECT id FROM answers WHERE author_id = $1`, userID)
	if err != nil {
		return err
	}

	for _, qid := range questionIDs {
		if err := questions.RemoveQuestionBlobs(ctx, s.db, s.files, qid); err != nil {
			return err
		}
	}
	for _, aid := range answerIDs {
		if err := answers.RemoveAnswerBlobs(ctx, s.db, s.files, aid); err != nil {
			return err
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return apperror.NewDatabaseError("failed to begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	for _, qid := range questionIDs {
		if err = questions.DeleteQuestionRows(ctx, tx, qid); err != nil {
			return err
		}
	}
	for _, aid := range answerIDs {
		if err = answers.DeleteAnswerRows(ctx, tx, aid); err != nil {
			return err
		}
	}

	for _, step := range []struct {
		desc  string
		query string
	}{
		{"delete user votes", `DELETE FROM votes WHERE user_id = $1`},
		{"delete user favorites", `DELETE FROM favorites WHERE user_id = $1`},
		{"delete user", `DELETE FROM users WHERE id = $1`},
	} {
		if _, err = tx.Exec(ctx, step.query, userID); err != nil {
			return apperror.NewDatabaseError("failed to "+step.desc, err)
		}
	}

	slog.Info("user deleted", "user_id", userID,
		"questions", len(questionIDs), "answers", len(answerIDs))
	return nil
}

func (s *userServiceImpl) collectIDs(ctx context.Context, query, arg string) ([]string, error) {
	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to list rows for deletion", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperror.NewDatabaseError("failed to scan id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *userServiceImpl) SetAdmin(ctx context.Context, userID string, isAdmin bool) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET is_admin = $2 WHERE id = $1`, userID, isAdmin)
	if err != nil {
		return apperror.NewDatabaseError("failed to update admin flag", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFoundError("user not found", nil)
	}
	return nil
}

func (s *userServiceImpl) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var isAdmin bool
	err := s.db.QueryRow(ctx,
		`SELECT is_admin FROM users WHERE id = $1`, userID).Scan(&isAdmin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, apperror.NewNotFoundError("user not found", nil)
		}
		return false, apperror.NewDatabaseError("failed to load admin flag", err)
	}
	return isAdmin, nil
}
