package service

import (
	"context"
	"testing"
	"time"

	"curbside/internal/domain"
	"curbside/internal/models"

	"go.uber.org/zap"
)

type fanoutFixture struct {
	users         *memUsers
	prefs         *memPrefs
	participants  *memParticipants
	notifications *memNotifications
	queue         *recordingQueue
	reminders     *memReminders
	fanout        *Fanout
}

func newFanoutFixture(t *testing.T, users ...*models.User) *fanoutFixture {
	t.Helper()
	f := &fanoutFixture{
		users:         newMemUsers(users...),
		prefs:         newMemPrefs(),
		participants:  newMemParticipants(),
		notifications: newMemNotifications(),
		queue:         &recordingQueue{},
		reminders:     newMemReminders(),
	}
	for _, u := range users {
		f.prefs.allOn(u.ID)
	}
	resolver := NewPreferenceResolver(f.users, f.prefs, zap.NewNop())
	f.fanout = NewFanout(f.users, f.participants, f.notifications, f.queue,
		resolver, f.reminders, 2*time.Hour, zap.NewNop())
	return f
}

func member(id uint) *models.User {
	return &models.User{ID: id, Role: domain.RoleMember, Approved: true}
}

func TestNewRideNeverNotifiesActor(t *testing.T) {
	f := newFanoutFixture(t, member(1), member(2))

	err := f.fanout.Dispatch(DomainEvent{
		Kind: EventRideCreated, ActorID: 1, ActorName: "Ana",
		RequestKind: domain.RequestKindRide, RequestID: 10, Subject: "Ride to the airport",
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got := f.notifications.forUser(1); len(got) != 0 {
		t.Errorf("actor received %d notifications, want 0", len(got))
	}
	rows := f.notifications.forUser(2)
	if len(rows) != 1 {
		t.Fatalf("recipient got %d rows, want 1", len(rows))
	}
	if rows[0].Category != string(CategoryNewRequest) {
		t.Errorf("category = %s, want %s", rows[0].Category, CategoryNewRequest)
	}
	if rows[0].RideID == nil || *rows[0].RideID != 10 {
		t.Errorf("ride link missing or wrong: %v", rows[0].RideID)
	}
}

func TestNewRequestIgnoresDisabledToggles(t *testing.T) {
	f := newFanoutFixture(t, member(1), member(2))
	f.prefs.set(&models.NotificationPreference{UserID: 2}) // everything off

	if err := f.fanout.Dispatch(DomainEvent{
		Kind: EventFavorCreated, ActorID: 1, ActorName: "Ana",
		RequestKind: domain.RequestKindFavor, RequestID: 4, Subject: "Water my plants",
	}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(f.notifications.forUser(2)) != 1 {
		t.Error("mandatory NEW_REQUEST suppressed by preference toggles")
	}
}

func TestClaimNotifiesParticipantsAndSchedulesReminder(t *testing.T) {
	f := newFanoutFixture(t, member(1), member(2), member(3))
	f.participants.requests[requestKey(domain.RequestKindRide, 7)] = []uint{1, 3, 3}

	scheduled := time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC)
	if err := f.fanout.Dispatch(DomainEvent{
		Kind: EventRequestClaimed, ActorID: 2, ActorName: "Ben",
		RequestKind: domain.RequestKindRide, RequestID: 7, OwnerID: 1,
		ScheduledAt: scheduled,
		OldStatus:   domain.RequestStatusOpen, NewStatus: domain.RequestStatusClaimed,
		NewClaimerID: 2, Subject: "Ride downtown",
	}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if len(f.notifications.forUser(1)) != 1 {
		t.Error("owner not notified of claim")
	}
	if len(f.notifications.forUser(3)) != 1 {
		t.Error("co-requestor not notified of claim (or duplicate not collapsed)")
	}
	if len(f.notifications.forUser(2)) != 0 {
		t.Error("claimer notified of their own claim")
	}

	if len(f.reminders.rows) != 1 {
		t.Fatalf("got %d reminders, want 1", len(f.reminders.rows))
	}
	r := f.reminders.rows[0]
	if r.UserID != 2 {
		t.Errorf("reminder for user %d, want claimer 2", r.UserID)
	}
	if want := scheduled.Add(2 * time.Hour); !r.DueAt.Equal(want) {
		t.Errorf("reminder due %v, want %v", r.DueAt, want)
	}
}

func TestUnclaimDeletesPendingReminder(t *testing.T) {
	f := newFanoutFixture(t, member(1), member(2))
	f.participants.requests[requestKey(domain.RequestKindRide, 7)] = []uint{1}

	claim := DomainEvent{
		Kind: EventRequestClaimed, ActorID: 2, ActorName: "Ben",
		RequestKind: domain.RequestKindRide, RequestID: 7, OwnerID: 1,
		ScheduledAt: time.Now().Add(time.Hour),
		OldStatus:   domain.RequestStatusOpen, NewStatus: domain.RequestStatusClaimed,
		NewClaimerID: 2, Subject: "Ride downtown",
	}
	if err := f.fanout.Dispatch(claim); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := f.fanout.Dispatch(DomainEvent{
		Kind: EventRequestUnclaimed, ActorID: 2, ActorName: "Ben",
		RequestKind: domain.RequestKindRide, RequestID: 7, OwnerID: 1,
		OldStatus: domain.RequestStatusClaimed, NewStatus: domain.RequestStatusOpen,
		OldClaimerID: 2, Subject: "Ride downtown",
	}); err != nil {
		t.Fatalf("unclaim: %v", err)
	}

	due, _ := f.reminders.ListDue(time.Now().Add(100*time.Hour), 10)
	if len(due) != 0 {
		t.Errorf("%d pending reminders survive unclaim, want 0", len(due))
	}
}

func TestUnchangedStatusIsSilent(t *testing.T) {
	f := newFanoutFixture(t, member(1), member(2))
	f.participants.requests[requestKey(domain.RequestKindRide, 7)] = []uint{1, 2}

	if err := f.fanout.Dispatch(DomainEvent{
		Kind: EventRequestClaimed, ActorID: 2,
		RequestKind: domain.RequestKindRide, RequestID: 7,
		ScheduledAt: time.Now().Add(-time.Hour),
		OldStatus:   domain.RequestStatusClaimed, NewStatus: domain.RequestStatusClaimed,
		OldClaimerID: 2, NewClaimerID: 2,
	}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(f.notifications.rows) != 0 || len(f.queue.calls) != 0 {
		t.Error("no-op status event produced notifications")
	}
	// Side effects are deduplicated along with the rows: a repeated
	// claim must not schedule a second completion reminder.
	if len(f.reminders.rows) != 0 {
		t.Errorf("no-op claim scheduled %d reminders, want 0", len(f.reminders.rows))
	}
}

func TestCompletionSendsReviewRequestToOwner(t *testing.T) {
	f := newFanoutFixture(t, member(1), member(2))
	f.participants.requests[requestKey(domain.RequestKindFavor, 5)] = []uint{1, 2}

	if err := f.fanout.Dispatch(DomainEvent{
		Kind: EventRequestCompleted, ActorID: 2, ActorName: "Ben",
		RequestKind: domain.RequestKindFavor, RequestID: 5, OwnerID: 1,
		OldStatus: domain.RequestStatusClaimed, NewStatus: domain.RequestStatusCompleted,
		OldClaimerID: 2, Subject: "Grocery run",
	}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	var cats []string
	for _, n := range f.notifications.forUser(1) {
		cats = append(cats, n.Category)
	}
	if len(cats) != 2 {
		t.Fatalf("owner got categories %v, want status + review request", cats)
	}
	found := false
	for _, c := range cats {
		if c == string(CategoryReviewRequest) {
			found = true
		}
	}
	if !found {
		t.Errorf("owner got categories %v, missing %s", cats, CategoryReviewRequest)
	}
}

func TestOwnerCompletingOwnRequestGetsNoReviewRequest(t *testing.T) {
	f := newFanoutFixture(t, member(1), member(2))
	f.participants.requests[requestKey(domain.RequestKindFavor, 5)] = []uint{1, 2}

	if err := f.fanout.Dispatch(DomainEvent{
		Kind: EventRequestCompleted, ActorID: 1, ActorName: "Ana",
		RequestKind: domain.RequestKindFavor, RequestID: 5, OwnerID: 1,
		OldStatus: domain.RequestStatusClaimed, NewStatus: domain.RequestStatusCompleted,
		OldClaimerID: 2, Subject: "Grocery run",
	}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	for _, n := range f.notifications.forUser(1) {
		if n.Category == string(CategoryReviewRequest) {
			t.Error("owner asked to review their own completion")
		}
	}
}

func TestDownvoteIsSilent(t *testing.T) {
	f := newFanoutFixture(t, member(1), member(2))
	f.participants.interactors[3] = []uint{2}

	if err := f.fanout.Dispatch(DomainEvent{
		Kind: EventBoardVoted, ActorID: 1, ActorName: "Ana",
		PostID: 3, PostAuthorID: 2, VoteValue: domain.VoteDown, Subject: "Free couch",
	}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(f.notifications.rows) != 0 {
		t.Error("downvote produced notifications")
	}
}

func TestCommentNotifiesAuthorAndThreadOnce(t *testing.T) {
	f := newFanoutFixture(t, member(1), member(2), member(3), member(4))
	// Author 2 also commented earlier; 3 and 4 are thread interactors.
	f.participants.interactors[9] = []uint{2, 3, 4, 3}

	if err := f.fanout.Dispatch(DomainEvent{
		Kind: EventBoardCommentCreated, ActorID: 4, ActorName: "Dee",
		PostID: 9, PostAuthorID: 2, Subject: "Block party", Preview: "count me in",
	}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	for _, uid := range []uint{2, 3} {
		if n := len(f.notifications.forUser(uid)); n != 1 {
			t.Errorf("user %d got %d rows, want exactly 1", uid, n)
		}
	}
	if len(f.notifications.forUser(4)) != 0 {
		t.Error("commenter notified of their own comment")
	}
	calls := f.queue.forUser(2)
	if len(calls) != 1 || calls[0].BatchKey != "post:9" {
		t.Errorf("comment push batch key = %v, want post:9", calls)
	}
}

func TestBoardPostUsesBoardBatchKey(t *testing.T) {
	f := newFanoutFixture(t, member(1), member(2))

	if err := f.fanout.Dispatch(DomainEvent{
		Kind: EventBoardPostCreated, ActorID: 1, ActorName: "Ana",
		PostID: 3, Subject: "Free couch",
	}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	calls := f.queue.forUser(2)
	if len(calls) != 1 || calls[0].BatchKey != "board" {
		t.Errorf("board post batch key = %v, want board", calls)
	}
}

func TestPerRecipientFailureIsIsolated(t *testing.T) {
	f := newFanoutFixture(t, member(1), member(2), member(3))
	f.notifications.failForUID = 2

	if err := f.fanout.Dispatch(DomainEvent{
		Kind: EventRideCreated, ActorID: 1, ActorName: "Ana",
		RequestKind: domain.RequestKindRide, RequestID: 1, Subject: "Ride north",
	}); err != nil {
		t.Fatalf("dispatch should not surface per-recipient failures: %v", err)
	}
	if len(f.notifications.forUser(3)) != 1 {
		t.Error("failure for one recipient blocked another")
	}
	if len(f.queue.forUser(2)) != 0 {
		t.Error("push enqueued for recipient whose row write failed")
	}
}

func TestSignupPendingReachesAdminsOnly(t *testing.T) {
	admin := &models.User{ID: 1, Role: domain.RoleAdmin, Approved: true}
	f := newFanoutFixture(t, admin, member(2), member(3))

	if err := f.fanout.Dispatch(DomainEvent{
		Kind: EventSignupPending, ActorID: 3, ActorName: "Cal",
	}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(f.notifications.forUser(1)) != 1 {
		t.Error("admin not notified of pending signup")
	}
	if len(f.notifications.forUser(2)) != 0 {
		t.Error("member notified of pending signup")
	}
}

func TestMessageRespectsDirectMessageToggle(t *testing.T) {
	f := newFanoutFixture(t, member(1), member(2), member(3))
	f.participants.conversations[6] = []uint{1, 2, 3}
	f.prefs.set(&models.NotificationPreference{UserID: 3, RequestUpdates: true})

	if err := f.fanout.Dispatch(DomainEvent{
		Kind: EventMessageSent, ActorID: 1, ActorName: "Ana",
		ConversationID: 6, Preview: "running late",
	}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(f.notifications.forUser(2)) != 1 {
		t.Error("conversation member not notified")
	}
	if len(f.notifications.forUser(3)) != 0 {
		t.Error("DIRECT_MESSAGE delivered despite disabled toggle")
	}
}

func TestSweepDeliversDueReminders(t *testing.T) {
	f := newFanoutFixture(t, member(1), member(2))
	now := time.Now()
	f.reminders.Schedule(&models.CompletionReminder{
		RequestKind: domain.RequestKindRide, RequestID: 7, UserID: 2, DueAt: now.Add(-time.Minute),
	})
	f.reminders.Schedule(&models.CompletionReminder{
		RequestKind: domain.RequestKindRide, RequestID: 8, UserID: 2, DueAt: now.Add(time.Hour),
	})

	if err := f.fanout.SweepReminders(context.Background(), now); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	rows := f.notifications.forUser(2)
	if len(rows) != 1 || rows[0].Category != string(CategoryCompletionReminder) {
		t.Fatalf("got rows %v, want one completion reminder", rows)
	}
	if f.reminders.rows[0].SentAt == nil {
		t.Error("due reminder not marked sent")
	}
	if f.reminders.rows[1].SentAt != nil {
		t.Error("future reminder marked sent")
	}
}

type recordingRealtime struct {
	frames map[uint]int
}

func (m *recordingRealtime) NotifyUser(userID uint, payload any) {
	if m.frames == nil {
		m.frames = make(map[uint]int)
	}
	m.frames[userID]++
}

func TestRealtimeFramesFollowCreatedRows(t *testing.T) {
	f := newFanoutFixture(t, member(1), member(2), member(3))
	f.notifications.failForUID = 3
	rt := &recordingRealtime{}
	f.fanout.Realtime = rt

	if err := f.fanout.Dispatch(DomainEvent{
		Kind: EventRideCreated, ActorID: 1, ActorName: "Ana",
		RequestKind: domain.RequestKindRide, RequestID: 1, Subject: "Ride north",
	}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if rt.frames[2] != 1 {
		t.Errorf("recipient got %d realtime frames, want 1", rt.frames[2])
	}
	if rt.frames[3] != 0 {
		t.Error("realtime frame sent although the row write failed")
	}
	if rt.frames[1] != 0 {
		t.Error("actor received a realtime frame")
	}
}

func TestSweepMarksGatedRemindersSent(t *testing.T) {
	f := newFanoutFixture(t, member(1))
	f.prefs.set(&models.NotificationPreference{UserID: 1}) // RequestUpdates off
	now := time.Now()
	f.reminders.Schedule(&models.CompletionReminder{
		RequestKind: domain.RequestKindFavor, RequestID: 2, UserID: 1, DueAt: now.Add(-time.Minute),
	})

	if err := f.fanout.SweepReminders(context.Background(), now); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(f.notifications.rows) != 0 {
		t.Error("gated reminder still delivered")
	}
	if f.reminders.rows[0].SentAt == nil {
		t.Error("gated reminder must still be marked sent so the sweep never revisits it")
	}
}
