// Package questions implements question CRUD, the moderation visibility
// rules, and the cascading deletion of a question's dependent records.
package questions

import "time"

// Question is a question row. AuthorUsername is joined from users for
// display; it is not a column on questions.
type Question struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	AuthorID       string    `json:"author_id"`
	AuthorUsername string    `json:"author_username,omitempty"`
	IsPublic       bool      `json:"is_public"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Attachment is a stored blob reference owned by a question.
type Attachment struct {
	ID       string `json:"id"`
	FilePath string `json:"file_path"`
}

// CreateQuestionRequest is the payload for posting a question. New questions
// always start pending; only an admin approval makes them public.
type CreateQuestionRequest struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags,omitempty"`
}

// QuestionSummary is a list item: the question plus the aggregates shown in
// an index view. Score always comes from the vote ledger, never from the
// legacy counter column.
type QuestionSummary struct {
	Question
	Score         int64    `json:"score"`
	AnswerCount   int64    `json:"answer_count"`
	FavoriteCount int64    `json:"favorite_count"`
	Tags          []string `json:"tags"`
}

// AnswerView is an answer as rendered inside a question detail, with its
// ledger score and the viewer's own vote.
type AnswerView struct {
	ID             string       `json:"id"`
	AuthorID       string       `json:"author_id"`
	AuthorUsername string       `json:"author_username"`
	Body           string       `json:"body"`
	Score          int64        `json:"score"`
	ViewerVote     int          `json:"viewer_vote"` // -1, 0 or +1
	Attachments    []Attachment `json:"attachments,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// QuestionDetail is the full question view behind the visibility gate.
type QuestionDetail struct {
	Question
	Tags            []string     `json:"tags"`
	Score           int64        `json:"score"`
	ViewerVote      int          `json:"viewer_vote"`
	FavoriteCount   int64        `json:"favorite_count"`
	ViewerFavorited bool         `json:"viewer_favorited"`
	CanAnswer       bool         `json:"can_answer"`
	Attachments     []Attachment `json:"attachments,omitempty"`
	Answers         []AnswerView `json:"answers"`
}

// QuestionListResponse is a paginated index of public questions.
type QuestionListResponse struct {
	Questions []QuestionSummary `json:"questions"`
	Total     int64             `json:"total"`
	Page      int64             `json:"page"`
	PerPage   int64             `json:"per_page"`
}

// PendingQuestion is an entry in the moderation queue.
type PendingQuestion struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	AuthorID          string    `json:"author_id"`
	AuthorUsername    string    `json:"author_username"`
	AuthorDisplayName *string   `json:"author_display_name,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
