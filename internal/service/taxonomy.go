package service

// Category is the closed set of notification kinds. The two decision
// points that branch on it (recipient-set computation in fanout.go and
// PreferenceGroup below) switch exhaustively; an unknown category maps
// to GroupUnknown, which the resolver rejects.
type Category string

const (
	CategoryNewRequest          Category = "NEW_REQUEST" // a new ride or favor was posted
	CategoryRequestStatus       Category = "REQUEST_STATUS"
	CategoryQuestion            Category = "QUESTION"
	CategoryAnswer              Category = "ANSWER"
	CategoryCompletionReminder  Category = "COMPLETION_REMINDER"
	CategoryReviewRequest       Category = "REVIEW_REQUEST"
	CategoryBoardPost           Category = "BOARD_POST"
	CategoryBoardComment        Category = "BOARD_COMMENT"
	CategoryBoardReaction       Category = "BOARD_REACTION"
	CategoryPendingApproval     Category = "PENDING_APPROVAL"
	CategoryAccountApproved     Category = "ACCOUNT_APPROVED"
	CategoryAccountRejected     Category = "ACCOUNT_REJECTED"
	CategoryBroadcast           Category = "BROADCAST"
	CategoryDirectMessage       Category = "DIRECT_MESSAGE"
	CategoryAddedToConversation Category = "ADDED_TO_CONVERSATION"
)

// PreferenceGroup maps categories onto the per-user toggles. GroupNone
// marks a mandatory category; GroupAdminOnly is allowed for admins only.
type PreferenceGroup int

const (
	GroupUnknown PreferenceGroup = iota
	GroupNone
	GroupAdminOnly
	GroupDirectMessages
	GroupRequestUpdates
	GroupQA
	GroupReviews
	GroupBoard
)

func (c Category) PreferenceGroup() PreferenceGroup {
	switch c {
	case CategoryNewRequest, CategoryBroadcast, CategoryAccountApproved, CategoryAccountRejected:
		return GroupNone
	case CategoryPendingApproval:
		return GroupAdminOnly
	case CategoryDirectMessage, CategoryAddedToConversation:
		return GroupDirectMessages
	case CategoryRequestStatus, CategoryCompletionReminder:
		return GroupRequestUpdates
	case CategoryQuestion, CategoryAnswer:
		return GroupQA
	case CategoryReviewRequest:
		return GroupReviews
	case CategoryBoardPost, CategoryBoardComment, CategoryBoardReaction:
		return GroupBoard
	}
	return GroupUnknown
}

// Mandatory reports whether the category bypasses preference gating.
func (c Category) Mandatory() bool {
	return c.PreferenceGroup() == GroupNone
}

// IsMessage reports whether the category belongs to the messages badge
// rather than the bell feed.
func (c Category) IsMessage() bool {
	return c == CategoryDirectMessage || c == CategoryAddedToConversation
}

// IsRequestActivity reports whether the category counts toward the
// requests badge (grouped per ride/favor).
func (c Category) IsRequestActivity() bool {
	switch c {
	case CategoryNewRequest, CategoryRequestStatus, CategoryQuestion,
		CategoryAnswer, CategoryCompletionReminder, CategoryReviewRequest:
		return true
	}
	return false
}

// IsBoardActivity reports whether the category counts toward the
// community badge.
func (c Category) IsBoardActivity() bool {
	switch c {
	case CategoryBoardPost, CategoryBoardComment, CategoryBoardReaction:
		return true
	}
	return false
}
