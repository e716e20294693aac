package service

import (
	"fmt"
	"time"

	"curbside/internal/domain"
	"curbside/internal/models"

	"go.uber.org/zap"
)

type badgeNotificationSource interface {
	// ListForBadge returns a user's rows that are unread, or read no
	// earlier than readCutoff. Read rows older than the cutoff are
	// archived and never surface again.
	ListForBadge(userID uint, readCutoff time.Time) ([]models.Notification, error)
	// MarkConversationRead flips the user's message-category rows for a
	// conversation to read. Idempotent.
	MarkConversationRead(userID, conversationID uint) error
}

type messageSource interface {
	// UnreadCounts returns, per conversation the user belongs to, the
	// number of messages authored by someone else that the user has not
	// read. Conversations with zero unread are omitted.
	UnreadCounts(userID uint) (map[uint]int, error)
}

// BadgeSnapshot is computed fresh on every call and never cached
// server-side.
type BadgeSnapshot struct {
	MessagesTotal  int                 `json:"messages_total"`
	RequestsTotal  int                 `json:"requests_total"`
	CommunityTotal int                 `json:"community_total"`
	BellTotal      int                 `json:"bell_total"`
	Conversations  []ConversationBadge `json:"conversations,omitempty"`
	Requests       []RequestBadge      `json:"requests,omitempty"`
}

type ConversationBadge struct {
	ConversationID uint `json:"conversation_id"`
	Unread         int  `json:"unread"`
}

type RequestBadge struct {
	Kind      string `json:"kind"`
	RequestID uint   `json:"request_id"`
	Unread    int    `json:"unread"`
}

// BadgeAggregator reduces one recipient's notification rows into the
// four client counters. Reads only, except for an idempotent read-state
// self-heal on message rows.
type BadgeAggregator struct {
	notifications badgeNotificationSource
	messages      messageSource
	readRetention time.Duration
	log           *zap.Logger
}

func NewBadgeAggregator(notifications badgeNotificationSource, messages messageSource,
	readRetention time.Duration, log *zap.Logger) *BadgeAggregator {
	return &BadgeAggregator{
		notifications: notifications,
		messages:      messages,
		readRetention: readRetention,
		log:           log,
	}
}

// GetBadgeCounts computes the snapshot for one user. Errors are
// retryable: the caller shows a stale or zero state and asks again.
func (a *BadgeAggregator) GetBadgeCounts(userID uint, includeDetails bool) (*BadgeSnapshot, error) {
	cutoff := time.Now().Add(-a.readRetention)
	rows, err := a.notifications.ListForBadge(userID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("badge: list notifications: %w", err)
	}
	msgCounts, err := a.messages.UnreadCounts(userID)
	if err != nil {
		return nil, fmt.Errorf("badge: unread messages: %w", err)
	}

	rows = a.healMessageRows(userID, rows, msgCounts)

	snap := &BadgeSnapshot{}
	for _, n := range msgCounts {
		snap.MessagesTotal += n
	}

	requestUnread := make(map[string]*RequestBadge) // "kind:id" -> detail
	bellGroups := make(map[string]struct{})

	// Only the single most recent broadcast counts; older ones are
	// pruned from consideration even when unread.
	latestBroadcast := latestBroadcastID(rows)

	for i := range rows {
		n := &rows[i]
		cat := Category(n.Category)
		if cat.IsMessage() {
			continue // messages badge comes from message read-state, not rows
		}
		if cat == CategoryBroadcast && n.ID != latestBroadcast {
			continue
		}
		if cat.IsBoardActivity() && !n.Read {
			snap.CommunityTotal++
		}
		if cat.IsRequestActivity() && !n.Read {
			if kind, id, ok := requestLink(n); ok {
				key := fmt.Sprintf("%s:%d", kind, id)
				if requestUnread[key] == nil {
					requestUnread[key] = &RequestBadge{Kind: kind, RequestID: id}
				}
				requestUnread[key].Unread++
			}
		}
		bellGroups[bellGroupKey(n)] = struct{}{}
	}

	snap.RequestsTotal = len(requestUnread)
	snap.BellTotal = len(bellGroups)

	if includeDetails {
		for convID, n := range msgCounts {
			snap.Conversations = append(snap.Conversations, ConversationBadge{ConversationID: convID, Unread: n})
		}
		for _, rb := range requestUnread {
			snap.Requests = append(snap.Requests, *rb)
		}
	}
	return snap, nil
}

// healMessageRows flips stale unread message rows to read when their
// conversation no longer has any qualifying unread message. Best-effort
// and idempotent: a concurrent read-state update from another device
// races harmlessly (last write wins). Returns the rows with the healed
// state applied locally so this call's counters are consistent.
func (a *BadgeAggregator) healMessageRows(userID uint, rows []models.Notification, msgCounts map[uint]int) []models.Notification {
	healed := make(map[uint]bool)
	for i := range rows {
		n := &rows[i]
		if !Category(n.Category).IsMessage() || n.Read || n.ConversationID == nil {
			continue
		}
		convID := *n.ConversationID
		if msgCounts[convID] > 0 {
			continue
		}
		if !healed[convID] {
			healed[convID] = true
			if err := a.notifications.MarkConversationRead(userID, convID); err != nil {
				a.log.Warn("badge: read-state heal failed",
					zap.Uint("user_id", userID), zap.Uint("conversation_id", convID), zap.Error(err))
				continue
			}
		}
		n.Read = true
	}
	return rows
}

// bellGroupKey collapses related rows into one bell unit: one key per
// request, per board post, per broadcast row, one fixed key for pending
// approvals, and one key per row for everything else.
func bellGroupKey(n *models.Notification) string {
	switch Category(n.Category) {
	case CategoryBroadcast:
		return fmt.Sprintf("broadcast:%d", n.ID)
	case CategoryPendingApproval:
		return "pending-approval"
	}
	if kind, id, ok := requestLink(n); ok {
		return fmt.Sprintf("%s:%d", kind, id)
	}
	if n.BoardPostID != nil {
		return fmt.Sprintf("post:%d", *n.BoardPostID)
	}
	return fmt.Sprintf("row:%d", n.ID)
}

func requestLink(n *models.Notification) (kind string, id uint, ok bool) {
	if n.RideID != nil {
		return domain.RequestKindRide, *n.RideID, true
	}
	if n.FavorID != nil {
		return domain.RequestKindFavor, *n.FavorID, true
	}
	return "", 0, false
}

func latestBroadcastID(rows []models.Notification) uint {
	var latest uint
	var latestAt time.Time
	for i := range rows {
		if Category(rows[i].Category) != CategoryBroadcast {
			continue
		}
		if latest == 0 || rows[i].CreatedAt.After(latestAt) {
			latest = rows[i].ID
			latestAt = rows[i].CreatedAt
		}
	}
	return latest
}
