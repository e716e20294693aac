package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"curbside/internal/models"

	"go.uber.org/zap"
)

type pushQueueStore interface {
	Create(e *models.PushQueueEntry) error
	ListBatchedBefore(cutoff time.Time) ([]models.PushQueueEntry, error)
	MarkProcessed(ids []uint, at time.Time) error
	MarkSent(ids []uint, at time.Time) error
}

// PushSender is the platform delivery boundary; *FCMService satisfies it.
type PushSender interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

// PushQueue buffers outbound push payloads. Entries without a batch key
// are processed and delivered at enqueue time; entries sharing a
// (batchKey, recipient) pair wait out a hold window and collapse into a
// single summary delivery per sweep. Rows are append-only once sent.
type PushQueue struct {
	store  pushQueueStore
	users  userGetter
	sender PushSender
	hold   time.Duration
	log    *zap.Logger
}

func NewPushQueue(store pushQueueStore, users userGetter, sender PushSender, hold time.Duration, log *zap.Logger) *PushQueue {
	return &PushQueue{store: store, users: users, sender: sender, hold: hold, log: log}
}

// Enqueue records a push payload for the recipient. An empty batchKey
// means the entry is eligible for immediate delivery.
func (q *PushQueue) Enqueue(userID uint, cat Category, title, body string, data map[string]string, batchKey string) error {
	var encoded string
	if data != nil {
		b, _ := json.Marshal(data)
		encoded = string(b)
	}
	entry := &models.PushQueueEntry{
		UserID:   userID,
		Category: string(cat),
		Title:    title,
		Body:     body,
		Data:     encoded,
		BatchKey: batchKey,
	}
	if batchKey != "" {
		return q.store.Create(entry)
	}

	now := time.Now()
	entry.ProcessedAt = &now
	if err := q.store.Create(entry); err != nil {
		return err
	}
	q.deliver(context.Background(), userID, title, body, data)
	if err := q.store.MarkSent([]uint{entry.ID}, time.Now()); err != nil {
		q.log.Warn("push queue: mark sent failed", zap.Uint("entry_id", entry.ID), zap.Error(err))
	}
	return nil
}

// Sweep collapses batched entries older than the hold window. Groups of
// one deliver verbatim; larger groups deliver a single summary built
// from the earliest entry, and every other entry is marked sent without
// its own delivery.
func (q *PushQueue) Sweep(ctx context.Context, now time.Time) error {
	entries, err := q.store.ListBatchedBefore(now.Add(-q.hold))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	groups := make(map[string][]models.PushQueueEntry)
	var order []string
	for _, e := range entries {
		key := fmt.Sprintf("%s|%d", e.BatchKey, e.UserID)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], e)
	}

	for _, key := range order {
		group := groups[key]
		primary := group[0] // store returns oldest first
		title, body := primary.Title, primary.Body
		data := decodeData(primary.Data)
		if len(group) > 1 {
			body = summaryBody(primary, len(group))
			data["count"] = strconv.Itoa(len(group))
		}

		q.deliver(ctx, primary.UserID, title, body, data)

		ids := make([]uint, 0, len(group))
		for _, e := range group {
			ids = append(ids, e.ID)
		}
		t := time.Now()
		if err := q.store.MarkProcessed(ids, t); err != nil {
			q.log.Warn("push queue: mark processed failed", zap.String("batch", key), zap.Error(err))
			continue
		}
		if err := q.store.MarkSent(ids, t); err != nil {
			q.log.Warn("push queue: mark sent failed", zap.String("batch", key), zap.Error(err))
		}
	}
	return nil
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (q *PushQueue) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := q.Sweep(ctx, now); err != nil {
				q.log.Error("push queue: sweep failed", zap.Error(err))
			}
		}
	}
}

// deliver is best-effort: a missing user, empty token, or send error is
// logged and swallowed so one recipient never blocks the queue.
func (q *PushQueue) deliver(ctx context.Context, userID uint, title, body string, data map[string]string) {
	if q.sender == nil {
		return
	}
	u, err := q.users.GetByID(userID)
	if err != nil || u.FCMToken == "" {
		return
	}
	if err := q.sender.Send(ctx, u.FCMToken, title, body, data); err != nil {
		q.log.Warn("push queue: delivery failed", zap.Uint("user_id", userID), zap.Error(err))
	}
}

func summaryBody(primary models.PushQueueEntry, count int) string {
	if Category(primary.Category) == CategoryBoardPost {
		return fmt.Sprintf("%d new posts on the community board", count)
	}
	return fmt.Sprintf("%d new updates: %s", count, primary.Title)
}

func decodeData(encoded string) map[string]string {
	data := make(map[string]string)
	if encoded != "" {
		_ = json.Unmarshal([]byte(encoded), &data)
	}
	return data
}
