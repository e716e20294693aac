package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"curbside/internal/domain"
	"curbside/internal/models"

	"go.uber.org/zap"
)

// EventKind identifies a watched domain mutation. Handlers dispatch one
// event per committed mutation; the engine never sees the same logical
// event twice (status events are additionally deduplicated below).
type EventKind string

const (
	EventRideCreated         EventKind = "ride.created"
	EventFavorCreated        EventKind = "favor.created"
	EventRequestClaimed      EventKind = "request.claimed"
	EventRequestUnclaimed    EventKind = "request.unclaimed"
	EventRequestCompleted    EventKind = "request.completed"
	EventQuestionPosted      EventKind = "question.posted"
	EventAnswerPosted        EventKind = "answer.posted"
	EventBoardPostCreated    EventKind = "board.post_created"
	EventBoardCommentCreated EventKind = "board.comment_created"
	EventBoardVoted          EventKind = "board.voted"
	EventSignupPending       EventKind = "user.signup_pending"
	EventUserApproved        EventKind = "user.approved"
	EventUserRejected        EventKind = "user.rejected"
	EventBroadcast           EventKind = "broadcast"
	EventMessageSent         EventKind = "message.sent"
	EventMemberAdded         EventKind = "conversation.member_added"
)

// DomainEvent carries everything the engine needs to compute recipients
// and compose the notification text. Only the fields relevant to the
// Kind are set.
type DomainEvent struct {
	Kind      EventKind
	ActorID   uint
	ActorName string

	RequestKind  string // "ride" or "favor"
	RequestID    uint
	OwnerID      uint
	ScheduledAt  time.Time
	OldStatus    string
	NewStatus    string
	OldClaimerID uint
	NewClaimerID uint

	PostID       uint
	PostAuthorID uint
	VoteValue    int

	ConversationID uint
	TargetUserID   uint

	Subject string // short label for the entity ("Ride to the airport", post title)
	Preview string // message/comment/question snippet
}

type userDirectory interface {
	userGetter
	ListApproved() ([]models.User, error)
	ListAdmins() ([]models.User, error)
}

type participantSource interface {
	// RequestParticipants returns owner + co-requestors for a ride or favor.
	RequestParticipants(kind string, requestID uint) ([]uint, error)
	// PostInteractors returns everyone who commented on or voted on a post.
	PostInteractors(postID uint) ([]uint, error)
	ConversationMembers(conversationID uint) ([]uint, error)
}

type notificationCreator interface {
	Create(n *models.Notification) error
}

type reminderStore interface {
	Schedule(r *models.CompletionReminder) error
	DeletePending(kind string, requestID uint) error
	MarkFulfilled(kind string, requestID uint) error
	ListDue(now time.Time, limit int) ([]models.CompletionReminder, error)
	MarkSent(id uint, at time.Time) error
}

type enqueuer interface {
	Enqueue(userID uint, cat Category, title, body string, data map[string]string, batchKey string) error
}

// realtimeNotifier pushes a created notification row to the recipient's
// live connections; *ws.Hub satisfies it.
type realtimeNotifier interface {
	NotifyUser(userID uint, payload any)
}

// Fanout turns one domain event into zero or more per-recipient
// notification rows plus push queue entries. It runs inline with the
// triggering mutation, so nothing here may propagate a failure back to
// the domain write: recipients are iterated independently and every
// per-recipient failure is logged and skipped.
type Fanout struct {
	users          userDirectory
	participants   participantSource
	notifications  notificationCreator
	queue          enqueuer
	resolver       *PreferenceResolver
	reminders      reminderStore
	reminderOffset time.Duration
	log            *zap.Logger

	// Realtime, when set, receives every created row for delivery over
	// the websocket feed. Optional; nil means in-app rows are poll-only.
	Realtime realtimeNotifier
}

func NewFanout(users userDirectory, participants participantSource, notifications notificationCreator,
	queue enqueuer, resolver *PreferenceResolver, reminders reminderStore,
	reminderOffset time.Duration, log *zap.Logger) *Fanout {
	return &Fanout{
		users:          users,
		participants:   participants,
		notifications:  notifications,
		queue:          queue,
		resolver:       resolver,
		reminders:      reminders,
		reminderOffset: reminderOffset,
		log:            log,
	}
}

// Dispatch is the single entry point, invoked post-commit by domain
// handlers. The returned error covers recipient-set computation only;
// callers log it and move on.
func (s *Fanout) Dispatch(ev DomainEvent) error {
	plan, err := s.plan(ev)
	if err != nil {
		return err
	}
	if plan == nil {
		// Deduplicated no-op: nothing changed, so the reminder side
		// effects must not run either (a repeated claim event would
		// otherwise schedule a duplicate reminder).
		return nil
	}
	s.applySideEffects(ev)

	for _, uid := range plan.recipients {
		if uid == ev.ActorID {
			continue // never notify the actor of their own action
		}
		if !s.resolver.Allowed(uid, plan.category) {
			continue
		}
		row := plan.row(uid)
		if err := s.notifications.Create(row); err != nil {
			s.log.Error("fanout: notification write failed",
				zap.Uint("user_id", uid), zap.String("category", string(plan.category)), zap.Error(err))
			continue
		}
		if s.Realtime != nil {
			s.Realtime.NotifyUser(uid, row)
		}
		if err := s.queue.Enqueue(uid, plan.category, plan.title, plan.body, plan.data(), plan.batchKey); err != nil {
			// In-app row already exists; push degrades gracefully.
			s.log.Error("fanout: push enqueue failed",
				zap.Uint("user_id", uid), zap.String("category", string(plan.category)), zap.Error(err))
		}
	}

	// Completing a request also asks the owner to review the helper.
	if ev.Kind == EventRequestCompleted {
		s.reviewRequest(ev)
	}
	return nil
}

type fanoutPlan struct {
	category   Category
	recipients []uint
	title      string
	body       string
	batchKey   string
	rideID     *uint
	favorID    *uint
	postID     *uint
	convID     *uint
	actorID    *uint
}

func (p *fanoutPlan) row(uid uint) *models.Notification {
	return &models.Notification{
		UserID:         uid,
		Category:       string(p.category),
		Title:          p.title,
		Body:           p.body,
		RideID:         p.rideID,
		FavorID:        p.favorID,
		BoardPostID:    p.postID,
		ConversationID: p.convID,
		ActorID:        p.actorID,
	}
}

func (p *fanoutPlan) data() map[string]string {
	d := map[string]string{"category": string(p.category)}
	if p.rideID != nil {
		d["ride_id"] = strconv.FormatUint(uint64(*p.rideID), 10)
	}
	if p.favorID != nil {
		d["favor_id"] = strconv.FormatUint(uint64(*p.favorID), 10)
	}
	if p.postID != nil {
		d["post_id"] = strconv.FormatUint(uint64(*p.postID), 10)
	}
	if p.convID != nil {
		d["conversation_id"] = strconv.FormatUint(uint64(*p.convID), 10)
	}
	return d
}

// plan computes the recipient set and notification content for an event.
// A nil plan with nil error means the event is a deliberate no-op
// (silent downvote, unchanged status).
func (s *Fanout) plan(ev DomainEvent) (*fanoutPlan, error) {
	p := &fanoutPlan{actorID: uintPtr(ev.ActorID)}

	switch ev.Kind {
	case EventRideCreated, EventFavorCreated:
		ids, err := s.approvedIDs()
		if err != nil {
			return nil, err
		}
		p.recipients = ids
		p.category = CategoryNewRequest
		if ev.Kind == EventRideCreated {
			p.rideID = uintPtr(ev.RequestID)
			p.title = "New ride request"
		} else {
			p.favorID = uintPtr(ev.RequestID)
			p.title = "New favor request"
		}
		p.body = ev.ActorName + " posted: " + ev.Subject

	case EventRequestClaimed, EventRequestUnclaimed, EventRequestCompleted:
		if ev.OldStatus == ev.NewStatus && ev.OldClaimerID == ev.NewClaimerID {
			return nil, nil // nothing actually changed
		}
		ids, err := s.participants.RequestParticipants(ev.RequestKind, ev.RequestID)
		if err != nil {
			return nil, err
		}
		p.recipients = dedupe(ids)
		p.category = CategoryRequestStatus
		s.linkRequest(p, ev)
		switch ev.Kind {
		case EventRequestClaimed:
			p.title = "Request claimed"
			p.body = ev.ActorName + " claimed \"" + ev.Subject + "\""
		case EventRequestUnclaimed:
			p.title = "Request unclaimed"
			p.body = ev.ActorName + " can no longer help with \"" + ev.Subject + "\""
		default:
			p.title = "Request completed"
			p.body = "\"" + ev.Subject + "\" was marked completed"
		}

	case EventQuestionPosted, EventAnswerPosted:
		ids, err := s.participants.RequestParticipants(ev.RequestKind, ev.RequestID)
		if err != nil {
			return nil, err
		}
		p.recipients = dedupe(ids)
		s.linkRequest(p, ev)
		if ev.Kind == EventQuestionPosted {
			p.category = CategoryQuestion
			p.title = "New question"
		} else {
			p.category = CategoryAnswer
			p.title = "New answer"
		}
		p.body = ev.ActorName + ": " + ev.Preview

	case EventBoardPostCreated:
		ids, err := s.approvedIDs()
		if err != nil {
			return nil, err
		}
		p.recipients = ids
		p.category = CategoryBoardPost
		p.postID = uintPtr(ev.PostID)
		p.batchKey = "board"
		p.title = "New board post"
		p.body = ev.ActorName + " posted: " + ev.Subject

	case EventBoardCommentCreated, EventBoardVoted:
		if ev.Kind == EventBoardVoted && ev.VoteValue <= 0 {
			return nil, nil // downvotes never notify
		}
		ids, err := s.participants.PostInteractors(ev.PostID)
		if err != nil {
			return nil, err
		}
		// Post author is the primary recipient; thread participants ride along.
		p.recipients = dedupe(append([]uint{ev.PostAuthorID}, ids...))
		p.postID = uintPtr(ev.PostID)
		p.batchKey = fmt.Sprintf("post:%d", ev.PostID)
		if ev.Kind == EventBoardCommentCreated {
			p.category = CategoryBoardComment
			p.title = "New comment on \"" + ev.Subject + "\""
			p.body = ev.ActorName + ": " + ev.Preview
		} else {
			p.category = CategoryBoardReaction
			p.title = "Your post is getting attention"
			p.body = ev.ActorName + " upvoted \"" + ev.Subject + "\""
		}

	case EventSignupPending:
		admins, err := s.users.ListAdmins()
		if err != nil {
			return nil, err
		}
		for _, a := range admins {
			p.recipients = append(p.recipients, a.ID)
		}
		p.category = CategoryPendingApproval
		p.title = "Account pending approval"
		p.body = ev.ActorName + " signed up and is waiting for approval"

	case EventUserApproved:
		p.recipients = []uint{ev.TargetUserID}
		p.category = CategoryAccountApproved
		p.title = "Welcome to the neighborhood"
		p.body = "Your account has been approved"

	case EventUserRejected:
		p.recipients = []uint{ev.TargetUserID}
		p.category = CategoryAccountRejected
		p.title = "Account not approved"
		p.body = "Your account application was declined"

	case EventBroadcast:
		ids, err := s.approvedIDs()
		if err != nil {
			return nil, err
		}
		p.recipients = ids
		p.category = CategoryBroadcast
		p.title = ev.Subject
		p.body = ev.Preview

	case EventMessageSent:
		ids, err := s.participants.ConversationMembers(ev.ConversationID)
		if err != nil {
			return nil, err
		}
		p.recipients = dedupe(ids)
		p.category = CategoryDirectMessage
		p.convID = uintPtr(ev.ConversationID)
		p.title = ev.ActorName
		p.body = ev.Preview

	case EventMemberAdded:
		p.recipients = []uint{ev.TargetUserID}
		p.category = CategoryAddedToConversation
		p.convID = uintPtr(ev.ConversationID)
		p.title = "Added to a conversation"
		p.body = ev.ActorName + " added you to \"" + ev.Subject + "\""

	default:
		return nil, fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	return p, nil
}

// applySideEffects handles the reminder lifecycle tied to status events.
// Failures are logged only; the claim/unclaim/complete itself already
// committed.
func (s *Fanout) applySideEffects(ev DomainEvent) {
	switch ev.Kind {
	case EventRequestClaimed:
		r := &models.CompletionReminder{
			RequestKind: ev.RequestKind,
			RequestID:   ev.RequestID,
			UserID:      ev.NewClaimerID,
			DueAt:       ev.ScheduledAt.Add(s.reminderOffset),
		}
		if err := s.reminders.Schedule(r); err != nil {
			s.log.Error("fanout: reminder schedule failed",
				zap.String("kind", ev.RequestKind), zap.Uint("request_id", ev.RequestID), zap.Error(err))
		}
	case EventRequestUnclaimed:
		if err := s.reminders.DeletePending(ev.RequestKind, ev.RequestID); err != nil {
			s.log.Error("fanout: reminder delete failed",
				zap.String("kind", ev.RequestKind), zap.Uint("request_id", ev.RequestID), zap.Error(err))
		}
	case EventRequestCompleted:
		if err := s.reminders.MarkFulfilled(ev.RequestKind, ev.RequestID); err != nil {
			s.log.Error("fanout: reminder fulfil failed",
				zap.String("kind", ev.RequestKind), zap.Uint("request_id", ev.RequestID), zap.Error(err))
		}
	}
}

// reviewRequest notifies the request owner to review the helper after
// completion. Suppressed when the owner completed the request themselves.
func (s *Fanout) reviewRequest(ev DomainEvent) {
	if ev.OwnerID == 0 || ev.OwnerID == ev.ActorID {
		return
	}
	if !s.resolver.Allowed(ev.OwnerID, CategoryReviewRequest) {
		return
	}
	p := &fanoutPlan{category: CategoryReviewRequest, actorID: uintPtr(ev.ActorID)}
	s.linkRequest(p, ev)
	p.title = "How did it go?"
	p.body = "Leave a review for \"" + ev.Subject + "\""
	row := p.row(ev.OwnerID)
	if err := s.notifications.Create(row); err != nil {
		s.log.Error("fanout: review notification failed", zap.Uint("user_id", ev.OwnerID), zap.Error(err))
		return
	}
	if s.Realtime != nil {
		s.Realtime.NotifyUser(ev.OwnerID, row)
	}
	if err := s.queue.Enqueue(ev.OwnerID, p.category, p.title, p.body, p.data(), ""); err != nil {
		s.log.Error("fanout: review push enqueue failed", zap.Uint("user_id", ev.OwnerID), zap.Error(err))
	}
}

// SweepReminders delivers due completion reminders. Gated reminders are
// still marked sent so the sweep never revisits them.
func (s *Fanout) SweepReminders(ctx context.Context, now time.Time) error {
	due, err := s.reminders.ListDue(now, 100)
	if err != nil {
		return err
	}
	for _, r := range due {
		if s.resolver.Allowed(r.UserID, CategoryCompletionReminder) {
			p := &fanoutPlan{category: CategoryCompletionReminder}
			if r.RequestKind == domain.RequestKindRide {
				p.rideID = uintPtr(r.RequestID)
			} else {
				p.favorID = uintPtr(r.RequestID)
			}
			p.title = "Still on track?"
			p.body = "A request you claimed was scheduled a while ago. Mark it completed or unclaim it."
			row := p.row(r.UserID)
			if err := s.notifications.Create(row); err != nil {
				s.log.Error("fanout: reminder notification failed", zap.Uint("user_id", r.UserID), zap.Error(err))
				continue // retried next sweep
			}
			if s.Realtime != nil {
				s.Realtime.NotifyUser(r.UserID, row)
			}
			if err := s.queue.Enqueue(r.UserID, p.category, p.title, p.body, p.data(), ""); err != nil {
				s.log.Error("fanout: reminder push enqueue failed", zap.Uint("user_id", r.UserID), zap.Error(err))
			}
		}
		if err := s.reminders.MarkSent(r.ID, now); err != nil {
			s.log.Error("fanout: reminder mark sent failed", zap.Uint("reminder_id", r.ID), zap.Error(err))
		}
	}
	return nil
}

// RunReminderSweep sweeps on a fixed interval until ctx is cancelled.
func (s *Fanout) RunReminderSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := s.SweepReminders(ctx, now); err != nil {
				s.log.Error("fanout: reminder sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *Fanout) approvedIDs() ([]uint, error) {
	users, err := s.users.ListApproved()
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

func (s *Fanout) linkRequest(p *fanoutPlan, ev DomainEvent) {
	if ev.RequestKind == domain.RequestKindRide {
		p.rideID = uintPtr(ev.RequestID)
	} else {
		p.favorID = uintPtr(ev.RequestID)
	}
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func uintPtr(v uint) *uint {
	if v == 0 {
		return nil
	}
	return &v
}
