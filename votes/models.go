package votes

import "github.com/user/queryloop-go/apperror"

// TargetType discriminates what a vote points at.
type TargetType string

const (
	TargetQuestion TargetType = "question"
	TargetAnswer   TargetType = "answer"
)

// ParseTargetType validates a raw target type string.
func ParseTargetType(raw string) (TargetType, error) {
	switch TargetType(raw) {
	case TargetQuestion:
		return TargetQuestion, nil
	case TargetAnswer:
		return TargetAnswer, nil
	default:
		return "", apperror.NewValidationError("target_type must be \"question\" or \"answer\"", nil)
	}
}

// VoteRequest is the payload for casting a vote.
type VoteRequest struct {
	TargetType string `json:"target_type" example:"question"`
	TargetID   string `json:"target_id" example:"4e9c7f7e-8a1d-4d2a-9f3b-1c2d3e4f5a6b"`
	Value      int    `json:"value" example:"1"`
}

// VoteResult reports the caller's resulting vote and the target's new
// ledger score.
type VoteResult struct {
	// ViewerVote is 1, -1 or 0; 0 means the vote was retracted.
	ViewerVote int `json:"viewer_vote"`
	Score      int `json:"score"`
}
