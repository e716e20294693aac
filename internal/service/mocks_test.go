package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"curbside/internal/models"
)

var errNotFound = errors.New("not found")

// memUsers is an in-memory user directory.
type memUsers struct {
	users map[uint]*models.User
}

func newMemUsers(users ...*models.User) *memUsers {
	m := &memUsers{users: make(map[uint]*models.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) GetByID(id uint) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, errNotFound
	}
	return u, nil
}

func (m *memUsers) ListApproved() ([]models.User, error) {
	var out []models.User
	for _, u := range m.users {
		if u.Approved {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memUsers) ListAdmins() ([]models.User, error) {
	var out []models.User
	for _, u := range m.users {
		if u.IsAdmin() {
			out = append(out, *u)
		}
	}
	return out, nil
}

// memPrefs returns stored preference rows; users without a row get an
// error, which the resolver treats as a deny.
type memPrefs struct {
	rows map[uint]*models.NotificationPreference
}

func newMemPrefs() *memPrefs {
	return &memPrefs{rows: make(map[uint]*models.NotificationPreference)}
}

func (m *memPrefs) set(p *models.NotificationPreference) { m.rows[p.UserID] = p }

func (m *memPrefs) allOn(userID uint) {
	m.set(&models.NotificationPreference{
		UserID:         userID,
		DirectMessages: true,
		RequestUpdates: true,
		QAActivity:     true,
		Reviews:        true,
		BoardActivity:  true,
	})
}

func (m *memPrefs) GetByUserID(userID uint) (*models.NotificationPreference, error) {
	p, ok := m.rows[userID]
	if !ok {
		return nil, errNotFound
	}
	return p, nil
}

// memNotifications records created rows and serves badge queries.
type memNotifications struct {
	rows       []models.Notification
	nextID     uint
	failForUID uint // Create returns an error for this recipient
}

func newMemNotifications() *memNotifications {
	return &memNotifications{nextID: 1}
}

func (m *memNotifications) Create(n *models.Notification) error {
	if m.failForUID != 0 && n.UserID == m.failForUID {
		return errors.New("write failed")
	}
	n.ID = m.nextID
	m.nextID++
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	m.rows = append(m.rows, *n)
	return nil
}

func (m *memNotifications) forUser(userID uint) []models.Notification {
	var out []models.Notification
	for _, n := range m.rows {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func (m *memNotifications) ListForBadge(userID uint, readCutoff time.Time) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range m.rows {
		if n.UserID != userID {
			continue
		}
		if !n.Read || (n.ReadAt != nil && !n.ReadAt.Before(readCutoff)) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memNotifications) MarkConversationRead(userID, conversationID uint) error {
	now := time.Now()
	for i := range m.rows {
		n := &m.rows[i]
		if n.UserID == userID && n.ConversationID != nil && *n.ConversationID == conversationID && !n.Read {
			n.Read = true
			n.ReadAt = &now
		}
	}
	return nil
}

// memParticipants serves the three recipient-set lookups from fixed maps.
type memParticipants struct {
	requests      map[string][]uint // "kind:id"
	interactors   map[uint][]uint
	conversations map[uint][]uint
}

func newMemParticipants() *memParticipants {
	return &memParticipants{
		requests:      make(map[string][]uint),
		interactors:   make(map[uint][]uint),
		conversations: make(map[uint][]uint),
	}
}

func (m *memParticipants) RequestParticipants(kind string, requestID uint) ([]uint, error) {
	return m.requests[requestKey(kind, requestID)], nil
}

func (m *memParticipants) PostInteractors(postID uint) ([]uint, error) {
	return m.interactors[postID], nil
}

func (m *memParticipants) ConversationMembers(conversationID uint) ([]uint, error) {
	return m.conversations[conversationID], nil
}

func requestKey(kind string, id uint) string {
	return kind + ":" + strconv.FormatUint(uint64(id), 10)
}

// memReminders tracks the reminder lifecycle.
type memReminders struct {
	rows   []models.CompletionReminder
	nextID uint
}

func newMemReminders() *memReminders {
	return &memReminders{nextID: 1}
}

func (m *memReminders) Schedule(r *models.CompletionReminder) error {
	r.ID = m.nextID
	m.nextID++
	m.rows = append(m.rows, *r)
	return nil
}

func (m *memReminders) DeletePending(kind string, requestID uint) error {
	kept := m.rows[:0]
	for _, r := range m.rows {
		if r.RequestKind == kind && r.RequestID == requestID && r.SentAt == nil && r.FulfilledAt == nil {
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return nil
}

func (m *memReminders) MarkFulfilled(kind string, requestID uint) error {
	now := time.Now()
	for i := range m.rows {
		if m.rows[i].RequestKind == kind && m.rows[i].RequestID == requestID && m.rows[i].FulfilledAt == nil {
			m.rows[i].FulfilledAt = &now
		}
	}
	return nil
}

func (m *memReminders) ListDue(now time.Time, limit int) ([]models.CompletionReminder, error) {
	var out []models.CompletionReminder
	for _, r := range m.rows {
		if r.SentAt == nil && r.FulfilledAt == nil && !r.DueAt.After(now) {
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memReminders) MarkSent(id uint, at time.Time) error {
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows[i].SentAt = &at
		}
	}
	return nil
}

// enqueueCall records one push enqueue for assertion.
type enqueueCall struct {
	UserID   uint
	Category Category
	Title    string
	Body     string
	Data     map[string]string
	BatchKey string
}

type recordingQueue struct {
	calls []enqueueCall
}

func (m *recordingQueue) Enqueue(userID uint, cat Category, title, body string, data map[string]string, batchKey string) error {
	m.calls = append(m.calls, enqueueCall{
		UserID: userID, Category: cat, Title: title, Body: body, Data: data, BatchKey: batchKey,
	})
	return nil
}

func (m *recordingQueue) forUser(userID uint) []enqueueCall {
	var out []enqueueCall
	for _, c := range m.calls {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out
}

// memPushStore backs PushQueue tests.
type memPushStore struct {
	rows   []models.PushQueueEntry
	nextID uint
}

func newMemPushStore() *memPushStore {
	return &memPushStore{nextID: 1}
}

func (m *memPushStore) Create(e *models.PushQueueEntry) error {
	e.ID = m.nextID
	m.nextID++
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.rows = append(m.rows, *e)
	return nil
}

func (m *memPushStore) ListBatchedBefore(cutoff time.Time) ([]models.PushQueueEntry, error) {
	var out []models.PushQueueEntry
	for _, e := range m.rows {
		if e.BatchKey != "" && e.ProcessedAt == nil && e.CreatedAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memPushStore) MarkProcessed(ids []uint, at time.Time) error {
	for i := range m.rows {
		if m.rows[i].SentAt != nil {
			continue
		}
		for _, id := range ids {
			if m.rows[i].ID == id {
				m.rows[i].ProcessedAt = &at
			}
		}
	}
	return nil
}

func (m *memPushStore) MarkSent(ids []uint, at time.Time) error {
	for i := range m.rows {
		if m.rows[i].SentAt != nil {
			continue
		}
		for _, id := range ids {
			if m.rows[i].ID == id {
				m.rows[i].SentAt = &at
			}
		}
	}
	return nil
}

func (m *memPushStore) byID(id uint) *models.PushQueueEntry {
	for i := range m.rows {
		if m.rows[i].ID == id {
			return &m.rows[i]
		}
	}
	return nil
}

// sentPush captures one delivery through the PushSender boundary.
type sentPush struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentPush
	err  error
}

func (m *recordingSender) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentPush{Token: token, Title: title, Body: body, Data: data})
	return nil
}

// memMessages serves unread message counts for badge tests.
type memMessages struct {
	counts map[uint]map[uint]int // userID -> conversationID -> unread
}

func newMemMessages() *memMessages {
	return &memMessages{counts: make(map[uint]map[uint]int)}
}

func (m *memMessages) set(userID, conversationID uint, n int) {
	if m.counts[userID] == nil {
		m.counts[userID] = make(map[uint]int)
	}
	m.counts[userID][conversationID] = n
}

func (m *memMessages) UnreadCounts(userID uint) (map[uint]int, error) {
	out := make(map[uint]int)
	for convID, n := range m.counts[userID] {
		if n > 0 {
			out[convID] = n
		}
	}
	return out, nil
}
