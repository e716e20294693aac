package service

import (
	"testing"

	"curbside/internal/domain"
	"curbside/internal/models"

	"go.uber.org/zap"
)

func newTestResolver(users *memUsers, prefs *memPrefs) *PreferenceResolver {
	return NewPreferenceResolver(users, prefs, zap.NewNop())
}

func TestMandatoryAlwaysAllowed(t *testing.T) {
	users := newMemUsers(&models.User{ID: 1, Role: domain.RoleMember, Approved: true})
	prefs := newMemPrefs()
	prefs.set(&models.NotificationPreference{UserID: 1}) // every toggle off
	r := newTestResolver(users, prefs)

	for _, c := range []Category{CategoryNewRequest, CategoryBroadcast, CategoryAccountApproved, CategoryAccountRejected} {
		if !r.Allowed(1, c) {
			t.Errorf("mandatory category %s blocked by disabled toggles", c)
		}
	}
	// No preference row at all: mandatory still passes.
	if !r.Allowed(99, CategoryBroadcast) {
		t.Error("mandatory category blocked for user without a preference row")
	}
}

func TestOptionalFailsClosed(t *testing.T) {
	r := newTestResolver(newMemUsers(), newMemPrefs())
	if r.Allowed(1, CategoryDirectMessage) {
		t.Error("missing preference row should deny optional categories")
	}
}

func TestUnknownCategoryDenied(t *testing.T) {
	prefs := newMemPrefs()
	prefs.allOn(1)
	r := newTestResolver(newMemUsers(), prefs)
	if r.Allowed(1, Category("BOGUS")) {
		t.Error("unknown category should never be allowed")
	}
}

func TestPendingApprovalAdminOnly(t *testing.T) {
	users := newMemUsers(
		&models.User{ID: 1, Role: domain.RoleAdmin, Approved: true},
		&models.User{ID: 2, Role: domain.RoleMember, Approved: true},
	)
	r := newTestResolver(users, newMemPrefs())

	if !r.Allowed(1, CategoryPendingApproval) {
		t.Error("admin denied PENDING_APPROVAL")
	}
	if r.Allowed(2, CategoryPendingApproval) {
		t.Error("member allowed PENDING_APPROVAL")
	}
	if r.Allowed(3, CategoryPendingApproval) {
		t.Error("unknown user allowed PENDING_APPROVAL")
	}
}

func TestToggleMapping(t *testing.T) {
	prefs := newMemPrefs()
	prefs.set(&models.NotificationPreference{
		UserID:         1,
		DirectMessages: false,
		RequestUpdates: true,
		QAActivity:     false,
		Reviews:        true,
		BoardActivity:  false,
	})
	r := newTestResolver(newMemUsers(), prefs)

	cases := []struct {
		cat  Category
		want bool
	}{
		{CategoryDirectMessage, false},
		{CategoryAddedToConversation, false},
		{CategoryRequestStatus, true},
		{CategoryCompletionReminder, true},
		{CategoryQuestion, false},
		{CategoryAnswer, false},
		{CategoryReviewRequest, true},
		{CategoryBoardPost, false},
		{CategoryBoardComment, false},
		{CategoryBoardReaction, false},
	}
	for _, tc := range cases {
		if got := r.Allowed(1, tc.cat); got != tc.want {
			t.Errorf("%s: Allowed = %v, want %v", tc.cat, got, tc.want)
		}
	}
}
