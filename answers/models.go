package answers

import "time"

// Answer is a single answer row as stored in the database.
type Answer struct {
	ID         string    `json:"id"`
	QuestionID string    `json:"question_id"`
	AuthorID   string    `json:"author_id"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateAnswerRequest is the payload for posting an answer.
type CreateAnswerRequest struct {
	Body string `json:"body" example:"Use a buffered channel as a semaphore."`
}

// Attachment is a stored file recorded against an answer.
type Attachment struct {
	ID       string `json:"id"`
	FilePath string `json:"file_path"`
}
