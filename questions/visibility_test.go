package questions

import "testing"

func TestCanView(t *testing.T) {
	author := "11111111-1111-1111-1111-111111111111"
	stranger := "22222222-2222-2222-2222-222222222222"

	public := &Question{ID: "q1", AuthorID: author, IsPublic: true}
	pending := &Question{ID: "q2", AuthorID: author, IsPublic: false}

	tests := []struct {
		name     string
		question *Question
		viewerID string
		isAdmin  bool
		want     bool
	}{
		{"public question, anonymous", public, "", false, true},
		{"public question, stranger", public, stranger, false, true},
		{"pending question, anonymous", pending, "", false, false},
		{"pending question, stranger", pending, stranger, false, false},
		{"pending question, author", pending, author, false, true},
		{"pending question, admin", pending, stranger, true, true},
		{"pending question, anonymous admin flag", pending, "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanView(tt.question, tt.viewerID, tt.isAdmin); got != tt.want {
				t.Errorf("CanView() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanAnswer(t *testing.T) {
	public := &Question{ID: "q1", IsPublic: true}
	pending := &Question{ID: "q2", IsPublic: false}

	if !CanAnswer(public, false) {
		t.Error("anyone should be able to answer a public question")
	}
	if !CanAnswer(public, true) {
		t.Error("admins should be able to answer a public question")
	}
	if CanAnswer(pending, false) {
		t.Error("pending questions must not accept answers")
	}
	// Approval precedes answering even for the moderator.
	if CanAnswer(pending, true) {
		t.Error("pending questions must not accept answers, admin included")
	}
}
