package repository

import (
	"time"

	"curbside/internal/models"

	"gorm.io/gorm"
)

type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) Schedule(rem *models.CompletionReminder) error {
	return r.db.Create(rem).Error
}

// DeletePending removes reminders for a request that have not fired
// yet; called on unclaim so the claim cycle leaves no trace.
func (r *ReminderRepository) DeletePending(kind string, requestID uint) error {
	return r.db.Where("request_kind = ? AND request_id = ? AND sent_at IS NULL AND fulfilled_at IS NULL", kind, requestID).
		Delete(&models.CompletionReminder{}).Error
}

func (r *ReminderRepository) MarkFulfilled(kind string, requestID uint) error {
	return r.db.Model(&models.CompletionReminder{}).
		Where("request_kind = ? AND request_id = ? AND fulfilled_at IS NULL", kind, requestID).
		Update("fulfilled_at", time.Now()).Error
}

func (r *ReminderRepository) ListDue(now time.Time, limit int) ([]models.CompletionReminder, error) {
	var list []models.CompletionReminder
	err := r.db.Where("due_at <= ? AND sent_at IS NULL AND fulfilled_at IS NULL", now).
		Order("due_at ASC").Limit(limit).Find(&list).Error
	return list, err
}

func (r *ReminderRepository) MarkSent(id uint, at time.Time) error {
	return r.db.Model(&models.CompletionReminder{}).
		Where("id = ?", id).Update("sent_at", at).Error
}
