package questions

// A question is born pending (is_public = false), becomes public through an
// admin approval, and can only leave the public state by deletion. There is
// no transition back to pending.

// CanView reports whether the caller may see the question. Pending
// questions are visible only to their author and to admins; everyone sees
// public ones. viewerID is empty for anonymous callers.
func CanView(q *Question, viewerID string, isAdmin bool) bool {
	if q.IsPublic {
		return true
	}
	if isAdmin {
		return true
	}
	return viewerID != "" && viewerID == q.AuthorID
}

// CanAnswer reports whether anyone may post an answer to the question.
// Answers are open exactly when the question is public: moderation comes
// first, and admins get no exception here even though they can see the
// pending question.
func CanAnswer(q *Question, isAdmin bool) bool {
	return q.IsPublic
}
