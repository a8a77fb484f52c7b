package users

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/queryloop-go/apperror"
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

// TestDeleteUserCascade deletes an account that authored a question, an
// answer on someone else's question, a vote and a favorite, and verifies
// everything it authored is gone while the other user's content survives.
func TestDeleteUserCascade(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	svc := NewUserService(pool, store)

	doomedID := seedUser(t, pool, "doomed")
	otherID := seedUser(t, pool, "other")

	ownQuestionID := uuid.NewString()
	otherQuestionID := uuid.NewString()
	answerID := uuid.NewString()

	for _, seed := range []struct {
		query string
		args  []any
	}{
		{`INSERT INTO questions (id, title, body, author_id, is_public)
		  VALUES ($1, 'Doomed question', 'body', $2, TRUE)`, []any{ownQuestionID, doomedID}},
		{`INSERT INTO questions (id, title, body, author_id, is_public)
		  VALUES ($1, 'Surviving question', 'body', $2, TRUE)`, []any{otherQuestionID, otherID}},
		{`INSERT INTO answers (id, question_id, author_id, body)
		  VALUES ($1, $2, $3, 'an answer')`, []any{answerID, otherQuestionID, doomedID}},
		{`INSERT INTO votes (target_type, target_id, user_id, value)
		  VALUES ('question', $1, $2, 1)`, []any{otherQuestionID, doomedID}},
		{`INSERT INTO favorites (question_id, user_id)
		  VALUES ($1, $2)`, []any{otherQuestionID, doomedID}},
	} {
		if _, err := pool.Exec(ctx, seed.query, seed.args...); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM votes WHERE user_id = $1`, doomedID)
		_, _ = pool.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1`, doomedID)
		_, _ = pool.Exec(ctx, `DELETE FROM answers WHERE author_id = $1`, doomedID)
		_, _ = pool.Exec(ctx, `DELETE FROM questions WHERE author_id = $1`, doomedID)
		_, _ = pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, otherQuestionID)
	})

	if err := svc.DeleteUser(ctx, doomedID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	counts := []struct {
		name  string
		query string
		args  []any
	}{
		{"user row", `SELECT COUNT(*) FROM users WHERE id = $1`, []any{doomedID}},
		{"authored questions", `SELECT COUNT(*) FROM questions WHERE author_id = $1`, []any{doomedID}},
		{"authored answers", `SELECT COUNT(*) FROM answers WHERE author_id = $1`, []any{doomedID}},
		{"votes", `SELECT COUNT(*) FROM votes WHERE user_id = $1`, []any{doomedID}},
		{"favorites", `SELECT COUNT(*) FROM favorites WHERE user_id = $1`, []any{doomedID}},
	}
	for _, c := range counts {
		var n int64
		if err := pool.QueryRow(ctx, c.query, c.args...).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", c.name, err)
		}
		if n != 0 {
			t.Errorf("%s remaining = %d, want 0", c.name, n)
		}
	}

	// The other user's question must be untouched.
	var n int64
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions WHERE id = $1`, otherQuestionID).Scan(&n); err != nil {
		t.Fatalf("count surviving question: %v", err)
	}
	if n != 1 {
		t.Errorf("surviving question rows = %d, want 1", n)
	}

	if _, err := svc.GetProfile(ctx, doomedID); !apperror.IsNotFound(err) {
		t.Errorf("GetProfile after delete = %v, want not found", err)
	}
}
