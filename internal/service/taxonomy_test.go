package service

import "testing"

var allCategories = []Category{
	CategoryNewRequest,
	CategoryRequestStatus,
	CategoryQuestion,
	CategoryAnswer,
	CategoryCompletionReminder,
	CategoryReviewRequest,
	CategoryBoardPost,
	CategoryBoardComment,
	CategoryBoardReaction,
	CategoryPendingApproval,
	CategoryAccountApproved,
	CategoryAccountRejected,
	CategoryBroadcast,
	CategoryDirectMessage,
	CategoryAddedToConversation,
}

func TestEveryCategoryHasAGroup(t *testing.T) {
	for _, c := range allCategories {
		if c.PreferenceGroup() == GroupUnknown {
			t.Errorf("category %s maps to GroupUnknown", c)
		}
	}
}

func TestUnknownCategoryMapsToGroupUnknown(t *testing.T) {
	if g := Category("BOGUS").PreferenceGroup(); g != GroupUnknown {
		t.Errorf("got group %d, want GroupUnknown", g)
	}
}

func TestMandatoryCategories(t *testing.T) {
	mandatory := map[Category]bool{
		CategoryNewRequest:      true,
		CategoryBroadcast:       true,
		CategoryAccountApproved: true,
		CategoryAccountRejected: true,
	}
	for _, c := range allCategories {
		if got := c.Mandatory(); got != mandatory[c] {
			t.Errorf("%s: Mandatory() = %v, want %v", c, got, mandatory[c])
		}
	}
}

func TestBadgeClassificationsAreDisjoint(t *testing.T) {
	for _, c := range allCategories {
		n := 0
		if c.IsMessage() {
			n++
		}
		if c.IsRequestActivity() {
			n++
		}
		if c.IsBoardActivity() {
			n++
		}
		if n > 1 {
			t.Errorf("%s belongs to more than one badge classification", c)
		}
	}
}

func TestMessageCategories(t *testing.T) {
	if !CategoryDirectMessage.IsMessage() || !CategoryAddedToConversation.IsMessage() {
		t.Error("message categories not classified as messages")
	}
	if CategoryBroadcast.IsMessage() {
		t.Error("broadcast classified as a message")
	}
}
