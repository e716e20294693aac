package repository

import (
	"time"

	"curbside/internal/models"

	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(n *models.Notification) error {
	return r.db.Create(n).Error
}

func (r *NotificationRepository) ListByUser(userID uint, limit, offset int) ([]models.Notification, error) {
	var list []models.Notification
	err := r.db.Where("user_id = ?", userID).
		Order("pinned DESC, created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// ListForBadge returns the rows the badge aggregator reduces: anything
// unread, plus rows read no earlier than readCutoff. Read rows older
// than the cutoff are archived out of every badge computation.
func (r *NotificationRepository) ListForBadge(userID uint, readCutoff time.Time) ([]models.Notification, error) {
	var list []models.Notification
	err := r.db.Where("user_id = ?", userID).
		Where("`read` = ? OR read_at >= ?", false, readCutoff).
		Find(&list).Error
	return list, err
}

func (r *NotificationRepository) MarkRead(id, userID uint) error {
	return r.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"read": true, "read_at": time.Now()}).Error
}

func (r *NotificationRepository) MarkAllRead(userID uint) error {
	return r.db.Model(&models.Notification{}).
		Where("user_id = ? AND `read` = ?", userID, false).
		Updates(map[string]interface{}{"read": true, "read_at": time.Now()}).Error
}

// MarkConversationRead is the badge aggregator's self-heal: flip stale
// message rows for one conversation to read. Idempotent by construction.
func (r *NotificationRepository) MarkConversationRead(userID, conversationID uint) error {
	return r.db.Model(&models.Notification{}).
		Where("user_id = ? AND conversation_id = ? AND `read` = ?", userID, conversationID, false).
		Updates(map[string]interface{}{"read": true, "read_at": time.Now()}).Error
}

func (r *NotificationRepository) SetPinned(id, userID uint, pinned bool) error {
	return r.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).Update("pinned", pinned).Error
}
