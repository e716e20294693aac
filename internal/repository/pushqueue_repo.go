package repository

import (
	"time"

	"curbside/internal/models"

	"gorm.io/gorm"
)

type PushQueueRepository struct {
	db *gorm.DB
}

func NewPushQueueRepository(db *gorm.DB) *PushQueueRepository {
	return &PushQueueRepository{db: db}
}

func (r *PushQueueRepository) Create(e *models.PushQueueEntry) error {
	return r.db.Create(e).Error
}

// ListBatchedBefore returns unprocessed batched entries created before
// the cutoff, oldest first, so the sweep's group primary is always the
// earliest entry.
func (r *PushQueueRepository) ListBatchedBefore(cutoff time.Time) ([]models.PushQueueEntry, error) {
	var list []models.PushQueueEntry
	err := r.db.Where("batch_key <> '' AND processed_at IS NULL AND created_at < ?", cutoff).
		Order("created_at ASC").Find(&list).Error
	return list, err
}

// MarkProcessed guards with sent_at IS NULL: a row is append-only once
// sent, even if a sweep races a re-enqueue of an equivalent event.
func (r *PushQueueRepository) MarkProcessed(ids []uint, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Model(&models.PushQueueEntry{}).
		Where("id IN ? AND sent_at IS NULL", ids).
		Update("processed_at", at).Error
}

func (r *PushQueueRepository) MarkSent(ids []uint, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Model(&models.PushQueueEntry{}).
		Where("id IN ? AND sent_at IS NULL", ids).
		Update("sent_at", at).Error
}
