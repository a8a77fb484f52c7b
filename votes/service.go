package votes

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/queryloop-go/apperror"
)

// VoteService defines the vote ledger operations.
type VoteService interface {
	// Cast toggles or flips a user's vote on a target and returns the
	// resulting state. Casting the same value twice retracts the vote;
	// casting the opposite value flips it in place.
	Cast(ctx context.Context, userID string, req VoteRequest) (*VoteResult, error)
}

type voteServiceImpl struct {
	db *pgxpool.Pool
}

// NewVoteService creates a VoteService backed by the given pool.
func NewVoteService(db *pgxpool.Pool) VoteService {
	return &voteServiceImpl{db: db}
}

// Cast runs the toggle, the flip and the score read in one transaction, so
// concurrent votes serialize on the ledger's primary key and the returned
// score reflects this vote.
func (s *voteServiceImpl) Cast(ctx context.Context, userID string, req VoteRequest) (res *VoteResult, err error) {
	if req.Value != 1 && req.Value != -1 {
		return nil, apperror.NewValidationError("value must be 1 or -1", nil)
	}
	targetType, err := ParseTargetType(req.TargetType)
	if err != nil {
		return nil, err
	}
	if req.TargetID == "" {
		return nil, apperror.NewValidationError("target_id is required", nil)
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

	// Checked inside the transaction: votes carry no foreign key to their
	// target, so a cast racing the target's deletion must not land after
	// the cascade has already swept the ledger.
	if err = targetExists(ctx, tx, targetType, req.TargetID); err != nil {
		return nil, err
	}

	result := &VoteResult{}

	// Same-value toggle: deleting the identical row retracts the vote.
	tag, err := tx.Exec(ctx, `
		DELETE FROM votes
		WHERE target_type = $1 AND target_id = $2 AND user_id = $3 AND value = $4`,
		targetType, req.TargetID, userID, req.Value)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to toggle vote", err)
	}

	if tag.RowsAffected() == 0 {
		// No identical vote existed: insert, or flip an opposite vote.
		_, err = tx.Exec(ctx, `
			INSERT INTO votes (target_type, target_id, user_id, value)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (target_type, target_id, user_id)
			DO UPDATE SET value = EXCLUDED.value`,
			targetType, req.TargetID, userID, req.Value)
		if err != nil {
			return nil, apperror.NewDatabaseError("failed to record vote", err)
		}
		result.ViewerVote = req.Value
	}

	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(value), 0) FROM votes
		WHERE target_type = $1 AND target_id = $2`,
		targetType, req.TargetID,
	).Scan(&result.Score)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to compute score", err)
	}

	return result, nil
}

func targetExists(ctx context.Context, tx pgx.Tx, targetType TargetType, targetID string) error {
	table := "questions"
	if targetType == TargetAnswer {
		table = "answers"
	}

	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, targetID,
	).Scan(&exists)
	if err != nil {
		return apperror.NewDatabaseError("failed to check vote target", err)
	}
	if !exists {
		return apperror.NewNotFoundError("vote target not found", nil)
	}
	return nil
}
