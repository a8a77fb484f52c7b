package votes

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/queryloop-go/apperror"
)

// testPool connects to the database named by TEST_DATABASE_URL, or skips
// the test when none is configured. The schema must already be migrated.
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

// seedQuestion inserts a user and a public question and returns their IDs.
// The rows are removed again when the test finishes.
func seedQuestion(t *testing.T, pool *pgxpool.Pool) (userID, questionID string) {
	t.Helper()
	ctx := context.Background()
	userID = uuid.NewString()
	questionID = uuid.NewString()

	_, err := pool.Exec(ctx, `
		INSERT INTO users (id, username, email, password)
		VALUES ($1, $2, $3, 'x')`,
		userID, "voter-"+userID[:8], userID[:8]+"@example.com")
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO questions (id, title, body, author_id, is_public)
		VALUES ($1, 'Seed question', 'body', $2, TRUE)`,
		questionID, userID)
	if err != nil {
		t.Fatalf("failed to seed question: %v", err)
	}

	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM votes WHERE target_id = $1`, questionID)
		_, _ = pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, questionID)
		_, _ = pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	})
	return userID, questionID
}

func TestCastToggleAndFlip(t *testing.T) {
	pool := testPool(t)
	userID, questionID := seedQuestion(t, pool)
	svc := NewVoteService(pool)
	ctx := context.Background()

	req := VoteRequest{TargetType: "question", TargetID: questionID, Value: 1}

	// First upvote lands.
	result, err := svc.Cast(ctx, userID, req)
	if err != nil {
		t.Fatalf("first cast failed: %v", err)
	}
	if result.ViewerVote != 1 || result.Score != 1 {
		t.Fatalf("after upvote: %+v, want vote 1 score 1", result)
	}

	// Same vote again retracts it.
	result, err = svc.Cast(ctx, userID, req)
	if err != nil {
		t.Fatalf("toggle cast failed: %v", err)
	}
	if result.ViewerVote != 0 || result.Score != 0 {
		t.Fatalf("after toggle: %+v, want vote 0 score 0", result)
	}

	// Upvote, then downvote flips in place: one row, score -1.
	if _, err = svc.Cast(ctx, userID, req); err != nil {
		t.Fatalf("re-upvote failed: %v", err)
	}
	req.Value = -1
	result, err = svc.Cast(ctx, userID, req)
	if err != nil {
		t.Fatalf("flip cast failed: %v", err)
	}
	if result.ViewerVote != -1 || result.Score != -1 {
		t.Fatalf("after flip: %+v, want vote -1 score -1", result)
	}

	var rowCount int
	err = pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM votes
		WHERE target_type = 'question' AND target_id = $1 AND user_id = $2`,
		questionID, userID).Scan(&rowCount)
	if err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	if rowCount != 1 {
		t.Errorf("ledger rows = %d, want 1 after a flip", rowCount)
	}
}

func TestCastValidation(t *testing.T) {
	pool := testPool(t)
	userID, questionID := seedQuestion(t, pool)
	svc := NewVoteService(pool)
	ctx := context.Background()

	tests := []struct {
		name string
		req  VoteRequest
	}{
		{name: "zero value", req: VoteRequest{TargetType: "question", TargetID: questionID, Value: 0}},
		{name: "magnitude two", req: VoteRequest{TargetType: "question", TargetID: questionID, Value: 2}},
		{name: "bad target type", req: VoteRequest{TargetType: "user", TargetID: questionID, Value: 1}},
		{name: "missing target id", req: VoteRequest{TargetType: "question", Value: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Cast(ctx, userID, tt.req); !apperror.IsValidationError(err) {
				t.Errorf("Cast(%+v) error = %v, want validation error", tt.req, err)
			}
		})
	}
}

func TestCastMissingTarget(t *testing.T) {
	pool := testPool(t)
	userID, _ := seedQuestion(t, pool)
	svc := NewVoteService(pool)

	req := VoteRequest{TargetType: "question", TargetID: uuid.NewString(), Value: 1}
	if _, err := svc.Cast(context.Background(), userID, req); !apperror.IsNotFound(err) {
		t.Errorf("Cast on missing target error = %v, want not found", err)
	}
}
