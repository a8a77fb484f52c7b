package tags

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/queryloop-go/apperror"
)

// Tag is a tag with its public question count.
type Tag struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	QuestionCount int64  `json:"question_count"`
}

// TagService defines the tag operations.
type TagService interface {
	// List returns all tags with their public question counts, most used
	// first.
	List(ctx context.Context) ([]Tag, error)
}

type tagServiceImpl struct {
	db *pgxpool.Pool
}

// NewTagService creates a TagService backed by the given pool.
func NewTagService(db *pgxpool.Pool) TagService {
	return &tagServiceImpl{db: db}
}

func (s *tagServiceImpl) List(ctx context.Context) ([]Tag, error) {
	rows, err := s.db.Query(ctx, `
		SELECT t.id, t.name,
		       (SELECT COUNT(*) FROM questions_tags qt
		        JOIN questions q ON q.id = qt.question_id
		        WHERE qt.tag_id = t.id AND q.is_public = TRUE) AS question_count
		FROM tags t
		ORDER BY question_count DESC, t.name ASC`)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to list tags", err)
	}
	defer rows.Close()

	tags := []Tag{}
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.QuestionCount); err != nil {
			return nil, apperror.NewDatabaseError("failed to scan tag row", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
