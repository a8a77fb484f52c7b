package answers

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/queryloop-go/apperror"
	"github.com/user/queryloop-go/auth"
	"github.com/user/queryloop-go/questions"
	"github.com/user/queryloop-go/storage"
)

// AnswerService defines the answer-related operations.
type AnswerService interface {
	Create(ctx context.Context, questionID string, caller auth.Identity, req CreateAnswerRequest) (*Answer, error)
	// Delete removes an answer, its votes and its stored files. The caller
	// must be the answer's author or an admin.
	Delete(ctx context.Context, answerID string, caller auth.Identity) error
	AddAttachment(ctx context.Context, answerID string, caller auth.Identity, filename string, r io.Reader) (*Attachment, error)
}

type answerServiceImpl struct {
	db        *pgxpool.Pool
	files     storage.FileStore
	questions questions.QuestionService
}

// NewAnswerService creates an AnswerService. The question service is used
// to apply the answerability gate.
func NewAnswerService(db *pgxpool.Pool, files storage.FileStore, qs questions.QuestionService) AnswerService {
	return &answerServiceImpl{db: db, files: files, questions: qs}
}

// Create posts an answer to a public question. Pending questions accept no
// answers from anyone, admins included.
func (s *answerServiceImpl) Create(ctx context.Context, questionID string, caller auth.Identity, req CreateAnswerRequest) (*Answer, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, apperror.NewValidationError("answer body is required", nil)
	}

	q, err := s.questions.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if !questions.CanAnswer(q, caller.IsAdmin) {
		return nil, apperror.NewUnauthorizedError("question is not open for answers", nil)
	}

	a := &Answer{
		ID:         uuid.NewString(),
		QuestionID: questionID,
		AuthorID:   caller.UserID,
		Body:       body,
	}
	err = s.db.QueryRow(ctx, `
		INSERT INTO answers (id, question_id, author_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		a.ID, a.QuestionID, a.AuthorID, a.Body,
	).Scan(&a.CreatedAt)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to insert answer", err)
	}
	return a, nil
}

func (s *answerServiceImpl) getAnswer(ctx context.Context, id string) (*Answer, error) {
	var a Answer
	err := s.db.QueryRow(ctx, `
		SELECT id, question_id, author_id, body, created_at
		FROM answers WHERE id = $1`, id,
	).Scan(&a.ID, &a.QuestionID, &a.AuthorID, &a.Body, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFoundError("answer not found", nil)
		}
		return nil, apperror.NewDatabaseError("failed to load answer", err)
	}
	return &a, nil
}

// Delete removes a single answer. Blobs go first so a rerun after an
// interruption converges, then the rows go in one transaction.
func (s *answerServiceImpl) Delete(ctx context.Context, answerID string, caller auth.Identity) (err error) {
	a, err := s.getAnswer(ctx, answerID)
	if err != nil {
		return err
	}
	if !caller.IsAdmin && caller.UserID != a.AuthorID {
		return apperror.NewUnauthorizedError("only the author or an admin may delete an answer", nil)
	}

	if err := RemoveAnswerBlobs(ctx, s.db, s.files, answerID); err != nil {
		return err
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

	return DeleteAnswerRows(ctx, tx, answerID)
}

// RemoveAnswerBlobs removes the blobs recorded against a single answer.
// Idempotent like the question-level sweep.
func RemoveAnswerBlobs(ctx context.Context, db *pgxpool.Pool, files storage.FileStore, answerID string) error {
	rows, err := db.Query(ctx, `
		SELECT file_path FROM answer_attachments WHERE answer_id = $1`, answerID)
	if err != nil {
		return apperror.NewDatabaseError("failed to list attachment paths", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return apperror.NewDatabaseError("failed to scan attachment path", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return apperror.NewDatabaseError("failed to read attachment paths", err)
	}

	if len(paths) > 0 {
		if err := files.Remove(ctx, storage.AnswerFilesBucket, paths); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAnswerRows deletes the answer and its dependent rows inside the
// caller's transaction.
func DeleteAnswerRows(ctx context.Context, tx pgx.Tx, answerID string) error {
	for _, step := range []struct {
		desc  string
		query string
	}{
		{"delete answer attachments", `DELETE FROM answer_attachments WHERE answer_id = $1`},
		{"delete answer votes", `DELETE FROM votes WHERE target_type = 'answer' AND target_id = $1`},
		{"delete answer", `DELETE FROM answers WHERE id = $1`},
	} {
		if _, err := tx.Exec(ctx, step.query, answerID); err != nil {
			return apperror.NewDatabaseError("failed to "+step.desc, err)
		}
	}
	return nil
}

// attachmentPath builds the blob path for an answer attachment. The
// answer ID segment keeps same-named uploads on sibling answers from
// colliding, so each blob is owned by exactly one attachment row.
func attachmentPath(questionID, answerID, filename string) string {
	return questionID + "/answers/" + answerID + "/" + storage.SafeFileName(filename)
}

// AddAttachment stores a blob for the answer and records it.
func (s *answerServiceImpl) AddAttachment(ctx context.Context, answerID string, caller auth.Identity, filename string, r io.Reader) (*Attachment, error) {
	a, err := s.getAnswer(ctx, answerID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin && caller.UserID != a.AuthorID {
		return nil, apperror.NewUnauthorizedError("only the author may attach files", nil)
	}
	if filename == "" || strings.ContainsAny(filename, "/\\") {
		return nil, apperror.NewValidationError("invalid attachment filename", nil)
	}

	path := attachmentPath(a.QuestionID, answerID, filename)
	if err := s.files.Upload(ctx, storage.AnswerFilesBucket, path, r); err != nil {
		return nil, err
	}

	attachment := &Attachment{ID: uuid.NewString(), FilePath: path}
	_, err = s.db.Exec(ctx, `
		INSERT INTO answer_attachments (id, answer_id, file_path)
		VALUES ($1, $2, $3)`,
		attachment.ID, answerID, attachment.FilePath)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to record attachment", err)
	}
	return attachment, nil
}
