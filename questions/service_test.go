package questions

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/queryloop-go/auth"
	"github.com/user/queryloop-go/storage"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), url)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func seedUser(t *testing.T, pool *pgxpool.Pool, prefix string) string {
	t.Helper()
	ctx := context.Background()
	id := uuid.NewString()
	_, err := pool.Exec(ctx, `
		INSERT INTO users (id, username, email, password)
		VALUES ($1, $2, $3, 'x')`,
		id, prefix+"-"+id[:8], prefix+id[:8]+"@example.com")
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	})
	return id
}

// TestDeleteCascadeCompleteness builds a question with two answers,
// attachments on both levels, three votes and a favorite, deletes it, and
// verifies no referencing row and no blob survives.
func TestDeleteCascadeCompleteness(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	root := t.TempDir()
	store, err := storage.NewLocalStore(root)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	svc := NewQuestionService(pool, store)

	authorID := seedUser(t, pool, "author")
	voterID := seedUser(t, pool, "voter")
	author := auth.Identity{UserID: authorID}
	tagName := "cascade-" + uuid.NewString()[:8]

	q, err := svc.Create(ctx, authorID, CreateQuestionRequest{
		Title: "Will everything be cleaned up?",
		Body:  "Exercising the full deletion path.",
		Tags:  []string{tagName},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() {
		// Safety net for a failed run; the test expects Delete to have
		// removed all of this already.
		_, _ = pool.Exec(ctx, `DELETE FROM question_attachments WHERE question_id = $1`, q.ID)
		_, _ = pool.Exec(ctx, `DELETE FROM answer_attachments WHERE answer_id IN (SELECT id FROM answers WHERE question_id = $1)`, q.ID)
		_, _ = pool.Exec(ctx, `DELETE FROM votes WHERE target_id = $1 OR target_id IN (SELECT id FROM answers WHERE question_id = $1)`, q.ID)
		_, _ = pool.Exec(ctx, `DELETE FROM answers WHERE question_id = $1`, q.ID)
		_, _ = pool.Exec(ctx, `DELETE FROM favorites WHERE question_id = $1`, q.ID)
		_, _ = pool.Exec(ctx, `DELETE FROM questions_tags WHERE question_id = $1`, q.ID)
		_, _ = pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, q.ID)
		_, _ = pool.Exec(ctx, `DELETE FROM tags WHERE name = $1`, tagName)
	})
	if err := svc.Approve(ctx, q.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	answerIDs := []string{uuid.NewString(), uuid.NewString()}
	for _, aid := range answerIDs {
		_, err := pool.Exec(ctx, `
			INSERT INTO answers (id, question_id, author_id, body)
			VALUES ($1, $2, $3, 'an answer')`, aid, q.ID, voterID)
		if err != nil {
			t.Fatalf("failed to seed answer: %v", err)
		}
	}

	// One attachment on the question through the service, one per answer
	// seeded directly in the answer path layout.
	qAtt, err := svc.AddAttachment(ctx, q.ID, author, "question notes.txt", strings.NewReader("notes"))
	if err != nil {
		t.Fatalf("AddAttachment: %v", err)
	}
	blobFiles := []string{filepath.Join(root, storage.QuestionFilesBucket, filepath.FromSlash(qAtt.FilePath))}
	for _, aid := range answerIDs {
		path := q.ID + "/answers/" + aid + "/photo.png"
		if err := store.Upload(ctx, storage.AnswerFilesBucket, path, strings.NewReader("img")); err != nil {
			t.Fatalf("Upload: %v", err)
		}
		_, err := pool.Exec(ctx, `
			INSERT INTO answer_attachments (id, answer_id, file_path)
			VALUES ($1, $2, $3)`, uuid.NewString(), aid, path)
		if err != nil {
			t.Fatalf("failed to seed answer attachment: %v", err)
		}
		blobFiles = append(blobFiles, filepath.Join(root, storage.AnswerFilesBucket, filepath.FromSlash(path)))
	}

	// Three votes: both users on the question, one on an answer.
	voteSeeds := []struct {
		targetType, targetID, userID string
	}{
		{"question", q.ID, authorID},
		{"question", q.ID, voterID},
		{"answer", answerIDs[0], voterID},
	}
	for _, v := range voteSeeds {
		_, err := pool.Exec(ctx, `
			INSERT INTO votes (target_type, target_id, user_id, value)
			VALUES ($1, $2, $3, 1)`, v.targetType, v.targetID, v.userID)
		if err != nil {
			t.Fatalf("failed to seed vote: %v", err)
		}
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO favorites (question_id, user_id) VALUES ($1, $2)`, q.ID, voterID)
	if err != nil {
		t.Fatalf("failed to seed favorite: %v", err)
	}

	if err := svc.Delete(ctx, q.ID, author); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	counts := []struct {
		name  string
		query string
		args  []any
	}{
		{"questions", `SELECT COUNT(*) FROM questions WHERE id = $1`, []any{q.ID}},
		{"answers", `SELECT COUNT(*) FROM answers WHERE question_id = $1`, []any{q.ID}},
		{"votes", `SELECT COUNT(*) FROM votes WHERE target_id = $1 OR target_id = ANY($2)`, []any{q.ID, answerIDs}},
		{"favorites", `SELECT COUNT(*) FROM favorites WHERE question_id = $1`, []any{q.ID}},
		{"questions_tags", `SELECT COUNT(*) FROM questions_tags WHERE question_id = $1`, []any{q.ID}},
		{"question_attachments", `SELECT COUNT(*) FROM question_attachments WHERE question_id = $1`, []any{q.ID}},
		{"answer_attachments", `SELECT COUNT(*) FROM answer_attachments WHERE answer_id = ANY($1)`, []any{answerIDs}},
	}
	for _, c := range counts {
		var n int64
		if err := pool.QueryRow(ctx, c.query, c.args...).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", c.name, err)
		}
		if n != 0 {
			t.Errorf("%s rows remaining = %d, want 0", c.name, n)
		}
	}

	for _, f := range blobFiles {
		if _, err := os.Stat(f); !os.IsNotExist(err) {
			t.Errorf("blob %s still exists after cascade", f)
		}
	}
}

func TestDeleteRequiresOwnerOrAdmin(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	svc := NewQuestionService(pool, store)

	authorID := seedUser(t, pool, "owner")
	strangerID := seedUser(t, pool, "stranger")

	q, err := svc.Create(ctx, authorID, CreateQuestionRequest{Title: "Mine", Body: "body"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, q.ID)
	})

	err = svc.Delete(ctx, q.ID, auth.Identity{UserID: strangerID})
	if err == nil {
		t.Fatal("Delete by a non-owner should fail")
	}

	var n int64
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions WHERE id = $1`, q.ID).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("question rows = %d, want 1 (delete must not have run)", n)
	}
}
