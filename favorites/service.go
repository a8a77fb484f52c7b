package favorites

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/queryloop-go/apperror"
)

// FavoriteResult reports whether the caller now favorites the question and
// the question's favorite count.
type FavoriteResult struct {
	Favorited bool  `json:"favorited"`
	Count     int64 `json:"count"`
}

// FavoriteService defines the favorite (bookmark) operations.
type FavoriteService interface {
	// Toggle favorites the question, or unfavorites it if the user
	// already had it favorited.
	Toggle(ctx context.Context, userID, questionID string) (*FavoriteResult, error)
}

type favoriteServiceImpl struct {
	db *pgxpool.Pool
}

// NewFavoriteService creates a FavoriteService backed by the given pool.
func NewFavoriteService(db *pgxpool.Pool) FavoriteService {
	return &favoriteServiceImpl{db: db}
}

func (s *favoriteServiceImpl) Toggle(ctx context.Context, userID, questionID string) (res *FavoriteResult, err error) {
	var exists bool
	err = s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM questions WHERE id = $1)`, questionID,
	).Scan(&exists)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to check question", err)
	}
	if !exists {
		return nil, apperror.NewNotFoundError("question not found", nil)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	result := &FavoriteResult{}

	tag, err := tx.Exec(ctx, `
		DELETE FROM favorites WHERE question_id = $1 AND user_id = $2`,
		questionID, userID)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to toggle favorite", err)
	}

	if tag.RowsAffected() == 0 {
		_, err = tx.Exec(ctx, `
			INSERT INTO favorites (question_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			questionID, userID)
		if err != nil {
			return nil, apperror.NewDatabaseError("failed to record favorite", err)
		}
		result.Favorited = true
	}

	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM favorites WHERE question_id = $1`, questionID,
	).Scan(&result.Count)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to count favorites", err)
	}

	return result, nil
}
