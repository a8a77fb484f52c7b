package questions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/queryloop-go/apperror"
	"github.com/user/queryloop-go/auth"
	"github.com/user/queryloop-go/storage"
)

// QuestionService defines the question-related operations. Handlers (and the
// admin endpoints) depend on this interface rather than the implementation.
type QuestionService interface {
	Create(ctx context.Context, authorID string, req CreateQuestionRequest) (*Question, error)
	List(ctx context.Context, tag string, page, perPage int64) (*QuestionListResponse, error)
	Get(ctx context.Context, id string, viewer *auth.Identity) (*QuestionDetail, error)
	// GetQuestion loads the bare question row without applying the
	// visibility gate; callers gate it themselves.
	GetQuestion(ctx context.Context, id string) (*Question, error)
	Approve(ctx context.Context, id string) error
	EditTitle(ctx context.Context, id, newTitle string) error
	// Delete removes the question and every dependent record and blob.
	// The caller must be the author or an admin.
	Delete(ctx context.Context, id string, caller auth.Identity) error
	ListPending(ctx context.Context) ([]PendingQuestion, error)
	AddAttachment(ctx context.Context, questionID string, caller auth.Identity, filename string, r io.Reader) (*Attachment, error)
}

type questionServiceImpl struct {
	db    *pgxpool.Pool
	files storage.FileStore
}

// NewQuestionService creates a QuestionService backed by the given pool and
// file store.
func NewQuestionService(db *pgxpool.Pool, files storage.FileStore) QuestionService {
	return &questionServiceImpl{db: db, files: files}
}

const (
	maxTitleLen = 300
	maxTagsPer  = 5
)

// Create inserts a pending question and links its tags. Tag names are
// normalized to lowercase and upserted so two askers typing "Go" and "go"
// share one tag row.
func (s *questionServiceImpl) Create(ctx context.Context, authorID string, req CreateQuestionRequest) (q *Question, err error) {
	title := strings.TrimSpace(req.Title)
	body := strings.TrimSpace(req.Body)
	if title == "" || body == "" {
		return nil, apperror.NewValidationError("title and body are required", nil)
	}
	if len(title) > maxTitleLen {
		return nil, apperror.NewValidationError(fmt.Sprintf("title must be at most %d characters", maxTitleLen), nil)
	}

	tagNames := normalizeTags(req.Tags)
	if len(tagNames) > maxTagsPer {
		return nil, apperror.NewValidationError(fmt.Sprintf("at most %d tags per question", maxTagsPer), nil)
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

	q = &Question{
		ID:       uuid.NewString(),
		Title:    title,
		Body:     body,
		AuthorID: authorID,
		IsPublic: false,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO questions (id, title, body, author_id, is_public)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING created_at, updated_at`,
		q.ID, q.Title, q.Body, q.AuthorID,
	).Scan(&q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to insert question", err)
	}

	for _, name := range tagNames {
		var tagID string
		// The no-op update makes RETURNING yield the id on conflict too.
		err = tx.QueryRow(ctx, `
			INSERT INTO tags (id, name) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`,
			uuid.NewString(), name,
		).Scan(&tagID)
		if err != nil {
			return nil, apperror.NewDatabaseError("failed to upsert tag", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO questions_tags (question_id, tag_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			q.ID, tagID,
		)
		if err != nil {
			return nil, apperror.NewDatabaseError("failed to link tag", err)
		}
	}

	return q, nil
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range tags {
		name := strings.ToLower(strings.TrimSpace(t))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// List returns public questions, newest first, optionally filtered by tag.
// Scores, answer counts and favorite counts are aggregated per row; the
// score is the ledger sum, computed on read.
func (s *questionServiceImpl) List(ctx context.Context, tag string, page, perPage int64) (*QuestionListResponse, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	where := "q.is_public = TRUE"
	args := []interface{}{}
	if tag != "" {
		args = append(args, strings.ToLower(tag))
		where += fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM questions_tags qt
			JOIN tags t ON t.id = qt.tag_id
			WHERE qt.question_id = q.id AND t.name = $%d)`, len(args))
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM questions q WHERE " + where
	if err := s.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, apperror.NewDatabaseError("failed to count questions", err)
	}

	listArgs := append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`
		SELECT q.id, q.title, q.body, q.author_id, u.username, q.is_public,
		       q.created_at, q.updated_at,
		       COALESCE((SELECT SUM(v.value) FROM votes v
		                 WHERE v.target_type = 'question' AND v.target_id = q.id), 0) AS score,
		       (SELECT COUNT(*) FROM answers a WHERE a.question_id = q.id) AS answer_count,
		       (SELECT COUNT(*) FROM favorites f WHERE f.question_id = q.id) AS favorite_count,
		       (SELECT COALESCE(array_agg(t.name ORDER BY t.name), '{}') FROM questions_tags qt
		        JOIN tags t ON t.id = qt.tag_id WHERE qt.question_id = q.id) AS tags
		FROM questions q
		JOIN users u ON u.id = q.author_id
		WHERE %s
		ORDER BY q.created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)

	rows, err := s.db.Query(ctx, query, listArgs...)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to list questions", err)
	}
	defer rows.Close()

	questions := []QuestionSummary{}
	for rows.Next() {
		var qs QuestionSummary
		if err := rows.Scan(
			&qs.ID, &qs.Title, &qs.Body, &qs.AuthorID, &qs.AuthorUsername, &qs.IsPublic,
			&qs.CreatedAt, &qs.UpdatedAt,
			&qs.Score, &qs.AnswerCount, &qs.FavoriteCount, &qs.Tags,
		); err != nil {
			return nil, apperror.NewDatabaseError("failed to scan question row", err)
		}
		questions = append(questions, qs)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewDatabaseError("failed to read question rows", err)
	}

	return &QuestionListResponse{
		Questions: questions,
		Total:     total,
		Page:      page,
		PerPage:   perPage,
	}, nil
}

// GetQuestion loads a bare question row.
func (s *questionServiceImpl) GetQuestion(ctx context.Context, id string) (*Question, error) {
	var q Question
	err := s.db.QueryRow(ctx, `
		SELECT q.id, q.title, q.body, q.author_id, u.username, q.is_public, q.created_at, q.updated_at
		FROM questions q
		JOIN users u ON u.id = q.author_id
		WHERE q.id = $1`, id,
	).Scan(&q.ID, &q.Title, &q.Body, &q.AuthorID, &q.AuthorUsername, &q.IsPublic, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFoundError("question not found", nil)
		}
		return nil, apperror.NewDatabaseError("failed to load question", err)
	}
	return &q, nil
}

// Get returns the full detail view behind the visibility gate. A hidden
// question yields a 403 "awaiting moderation" for non-owners: the existence
// of pending content is deliberately not concealed.
func (s *questionServiceImpl) Get(ctx context.Context, id string, viewer *auth.Identity) (*QuestionDetail, error) {
	q, err := s.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}

	viewerID := ""
	isAdmin := false
	if viewer != nil {
		viewerID = viewer.UserID
		isAdmin = viewer.IsAdmin
	}
	if !CanView(q, viewerID, isAdmin) {
		return nil, apperror.NewUnauthorizedError("question is awaiting moderation", nil)
	}

	detail := &QuestionDetail{
		Question:  *q,
		CanAnswer: CanAnswer(q, isAdmin),
	}

	err = s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(value), 0) FROM votes
		WHERE target_type = 'question' AND target_id = $1`, id,
	).Scan(&detail.Score)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to compute question score", err)
	}

	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM favorites WHERE question_id = $1`, id,
	).Scan(&detail.FavoriteCount)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to count favorites", err)
	}

	if viewerID != "" {
		var vote int
		err = s.db.QueryRow(ctx, `
			SELECT value FROM votes
			WHERE target_type = 'question' AND target_id = $1 AND user_id = $2`,
			id, viewerID,
		).Scan(&vote)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewDatabaseError("failed to load viewer vote", err)
		}
		detail.ViewerVote = vote

		var favorited bool
		err = s.db.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM favorites WHERE question_id = $1 AND user_id = $2)`,
			id, viewerID,
		).Scan(&favorited)
		if err != nil {
			return nil, apperror.NewDatabaseError("failed to load viewer favorite", err)
		}
		detail.ViewerFavorited = favorited
	}

	err = s.db.QueryRow(ctx, `
		SELECT COALESCE(array_agg(t.name ORDER BY t.name), '{}')
		FROM questions_tags qt
		JOIN tags t ON t.id = qt.tag_id
		WHERE qt.question_id = $1`, id,
	).Scan(&detail.Tags)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to load tags", err)
	}

	detail.Attachments, err = s.questionAttachments(ctx, id)
	if err != nil {
		return nil, err
	}

	detail.Answers, err = s.loadAnswers(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}

	return detail, nil
}

func (s *questionServiceImpl) questionAttachments(ctx context.Context, questionID string) ([]Attachment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, file_path FROM question_attachments
		WHERE question_id = $1 ORDER BY created_at`, questionID)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to load question attachments", err)
	}
	defer rows.Close()

	var attachments []Attachment
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.ID, &a.FilePath); err != nil {
			return nil, apperror.NewDatabaseError("failed to scan attachment row", err)
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

func (s *questionServiceImpl) loadAnswers(ctx context.Context, questionID, viewerID string) ([]AnswerView, error) {
	// The viewer vote subselect compares against NULL for anonymous viewers
	// and therefore matches nothing.
	var viewerParam interface{}
	if viewerID != "" {
		viewerParam = viewerID
	}

	rows, err := s.db.Query(ctx, `
		SELECT a.id, a.author_id, u.username, a.body, a.created_at,
		       COALESCE((SELECT SUM(v.value) FROM votes v
		                 WHERE v.target_type = 'answer' AND v.target_id = a.id), 0) AS score,
		       COALESCE((SELECT v.value FROM votes v
		                 WHERE v.target_type = 'answer' AND v.target_id = a.id AND v.user_id = $2), 0) AS viewer_vote
		FROM answers a
		JOIN users u ON u.id = a.author_id
		WHERE a.question_id = $1
		ORDER BY a.created_at`, questionID, viewerParam)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to load answers", err)
	}
	defer rows.Close()

	answers := []AnswerView{}
	index := make(map[string]int)
	for rows.Next() {
		var a AnswerView
		if err := rows.Scan(&a.ID, &a.AuthorID, &a.AuthorUsername, &a.Body, &a.CreatedAt, &a.Score, &a.ViewerVote); err != nil {
			return nil, apperror.NewDatabaseError("failed to scan answer row", err)
		}
		index[a.ID] = len(answers)
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewDatabaseError("failed to read answer rows", err)
	}

	attRows, err := s.db.Query(ctx, `
		SELECT aa.answer_id, aa.id, aa.file_path
		FROM answer_attachments aa
		WHERE aa.answer_id IN (SELECT id FROM answers WHERE question_id = $1)
		ORDER BY aa.created_at`, questionID)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to load answer attachments", err)
	}
	defer attRows.Close()

	for attRows.Next() {
		var answerID string
		var a Attachment
		if err := attRows.Scan(&answerID, &a.ID, &a.FilePath); err != nil {
			return nil, apperror.NewDatabaseError("failed to scan answer attachment row", err)
		}
		if i, ok := index[answerID]; ok {
			answers[i].Attachments = append(answers[i].Attachments, a)
		}
	}

	return answers, attRows.Err()
}

// Approve publishes a pending question. Approving an already public
// question is a no-op; the state machine has no way back to pending.
func (s *questionServiceImpl) Approve(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE questions SET is_public = TRUE, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return apperror.NewDatabaseError("failed to approve question", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFoundError("question not found", nil)
	}
	return nil
}

// EditTitle changes a question's title.
func (s *questionServiceImpl) EditTitle(ctx context.Context, id, newTitle string) error {
	newTitle = strings.TrimSpace(newTitle)
	if newTitle == "" {
		return apperror.NewValidationError("title is required", nil)
	}
	if len(newTitle) > maxTitleLen {
		return apperror.NewValidationError(fmt.Sprintf("title must be at most %d characters", maxTitleLen), nil)
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE questions SET title = $2, updated_at = NOW()
		WHERE id = $1`, id, newTitle)
	if err != nil {
		return apperror.NewDatabaseError("failed to edit question", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFoundError("question not found", nil)
	}
	return nil
}

// Delete is the question half of the deletion coordinator. Blobs are
// removed from the file store first, so an interruption leaves attachment
// rows pointing at missing blobs (recoverable by rerunning the delete)
// rather than orphaned blobs nothing references. All row deletions then run
// in a single transaction: answers, attachments, favorites, tag links and
// votes go atomically with the question row.
func (s *questionServiceImpl) Delete(ctx context.Context, id string, caller auth.Identity) (err error) {
	q, err := s.GetQuestion(ctx, id)
	if err != nil {
		return err
	}
	if !caller.IsAdmin && caller.UserID != q.AuthorID {
		return apperror.NewUnauthorizedError("only the author or an admin may delete a question", nil)
	}

	if err := RemoveQuestionBlobs(ctx, s.db, s.files, id); err != nil {
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

	if err = DeleteQuestionRows(ctx, tx, id); err != nil {
		return err
	}

	slog.Info("question deleted", "question_id", id, "deleted_by", caller.UserID)
	return nil
}

// RemoveQuestionBlobs removes every blob owned by the question or one of
// its answers. Missing blobs are fine: the store's Remove is idempotent.
// Exported alongside DeleteQuestionRows so the account deletion cascade
// can sweep blobs for many questions before its single row transaction.
func RemoveQuestionBlobs(ctx context.Context, db *pgxpool.Pool, files storage.FileStore, questionID string) error {
	qPaths, err := collectPaths(ctx, db, `
		SELECT file_path FROM question_attachments WHERE question_id = $1`, questionID)
	if err != nil {
		return err
	}
	if len(qPaths) > 0 {
		if err := files.Remove(ctx, storage.QuestionFilesBucket, qPaths); err != nil {
			return err
		}
	}

	aPaths, err := collectPaths(ctx, db, `
		SELECT file_path FROM answer_attachments
		WHERE answer_id IN (SELECT id FROM answers WHERE question_id = $1)`, questionID)
	if err != nil {
		return err
	}
	if len(aPaths) > 0 {
		if err := files.Remove(ctx, storage.AnswerFilesBucket, aPaths); err != nil {
			return err
		}
	}
	return nil
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func collectPaths(ctx context.Context, q rowQuerier, query string, args ...any) ([]string, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to list attachment paths", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, apperror.NewDatabaseError("failed to scan attachment path", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// DeleteQuestionRows deletes every row referencing the question inside the
// caller's transaction, children before parents.
func DeleteQuestionRows(ctx context.Context, tx pgx.Tx, questionID string) error {
	// Answer-side children first: rows referencing answers must go before
	// the answers themselves.
	steps := []struct {
		desc  string
		query string
	}{
		{"delete question attachments", `DELETE FROM question_attachments WHERE question_id = $1`},
		{"delete answer attachments", `DELETE FROM answer_attachments
			WHERE answer_id IN (SELECT id FROM answers WHERE question_id = $1)`},
		{"delete answer votes", `DELETE FROM votes
			WHERE target_type = 'answer'
			AND target_id IN (SELECT id FROM answers WHERE question_id = $1)`},
		{"delete answers", `DELETE FROM answers WHERE question_id = $1`},
		{"delete favorites", `DELETE FROM favorites WHERE question_id = $1`},
		{"delete tag links", `DELETE FROM questions_tags WHERE question_id = $1`},
		{"delete question votes", `DELETE FROM votes
			WHERE target_type = 'question' AND target_id = $1`},
		{"delete question", `DELETE FROM questions WHERE id = $1`},
	}
	for _, step := range steps {
		if _, err := tx.Exec(ctx, step.query, questionID); err != nil {
			return apperror.NewDatabaseError("failed to "+step.desc, err)
		}
	}
	return nil
}

// ListPending returns the moderation queue, oldest first, with author info
// joined for display.
func (s *questionServiceImpl) ListPending(ctx context.Context) ([]PendingQuestion, error) {
	rows, err := s.db.Query(ctx, `
		SELECT q.id, q.title, q.author_id, u.username, u.display_name, q.created_at
		FROM questions q
		JOIN users u ON u.id = q.author_id
		WHERE q.is_public = FALSE
		ORDER BY q.created_at ASC`)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to list pending questions", err)
	}
	defer rows.Close()

	pending := []PendingQuestion{}
	for rows.Next() {
		var p PendingQuestion
		if err := rows.Scan(&p.ID, &p.Title, &p.AuthorID, &p.AuthorUsername, &p.AuthorDisplayName, &p.CreatedAt); err != nil {
			return nil, apperror.NewDatabaseError("failed to scan pending question row", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// AddAttachment stores a blob for the question and records it. The blob is
// uploaded before the row is inserted, mirroring the removal order of the
// deletion cascade.
func (s *questionServiceImpl) AddAttachment(ctx context.Context, questionID string, caller auth.Identity, filename string, r io.Reader) (*Attachment, error) {
	q, err := s.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin && caller.UserID != q.AuthorID {
		return nil, apperror.NewUnauthorizedError("only the author may attach files", nil)
	}
	if filename == "" || strings.ContainsAny(filename, "/\\") {
		return nil, apperror.NewValidationError("invalid attachment filename", nil)
	}

	path := questionID + "/" + storage.SafeFileName(filename)
	if err := s.files.Upload(ctx, storage.QuestionFilesBucket, path, r); err != nil {
		return nil, err
	}

	a := &Attachment{ID: uuid.NewString(), FilePath: path}
	_, err = s.db.Exec(ctx, `
		INSERT INTO question_attachments (id, question_id, file_path)
		VALUES ($1, $2, $3)`,
		a.ID, questionID, a.FilePath)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to record attachment", err)
	}
	return a, nil
}
