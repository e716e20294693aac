package models

import (
	"time"

	"gorm.io/gorm"
)

// Notification is one per-recipient in-app notification row. At most one
// of RideID/FavorID is set; board and conversation links are likewise
// exclusive in practice but not enforced by schema.
type Notification struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UserID         uint           `gorm:"not null;index" json:"user_id"`
	Category       string         `gorm:"size:40;not null;index" json:"category"`
	Title          string         `gorm:"size:255" json:"title"`
	Body           string         `gorm:"type:text" json:"body"`
	Read           bool           `gorm:"default:false;index" json:"read"`
	ReadAt         *time.Time     `json:"read_at"`
	Pinned         bool           `gorm:"default:false" json:"pinned"`
	RideID         *uint          `gorm:"index" json:"ride_id,omitempty"`
	FavorID        *uint          `gorm:"index" json:"favor_id,omitempty"`
	BoardPostID    *uint          `gorm:"index" json:"board_post_id,omitempty"`
	ConversationID *uint          `gorm:"index" json:"conversation_id,omitempty"`
	ActorID        *uint          `gorm:"index" json:"actor_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Notification) TableName() string {
	return "notifications"
}

// PushQueueEntry holds a pending push payload. Entries with a BatchKey
// wait for the sweep; entries without one are processed at enqueue time.
// Once SentAt is set the row is never touched again.
type PushQueueEntry struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;index" json:"user_id"`
	Category    string     `gorm:"size:40;not null" json:"category"`
	Title       string     `gorm:"size:255" json:"title"`
	Body        string     `gorm:"type:text" json:"body"`
	Data        string     `gorm:"type:text" json:"data"` // JSON object of string values
	BatchKey    string     `gorm:"size:64;index" json:"batch_key"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	SentAt      *time.Time `json:"sent_at"`
}

// NotificationPreference is one row per user of per-group toggles.
// Mandatory categories never consult this record.
type NotificationPreference struct {
	UserID         uint      `gorm:"primaryKey" json:"user_id"`
	DirectMessages bool      `gorm:"default:true" json:"direct_messages"`
	RequestUpdates bool      `gorm:"default:true" json:"request_updates"`
	QAActivity     bool      `gorm:"default:true" json:"qa_activity"`
	Reviews        bool      `gorm:"default:true" json:"reviews"`
	BoardActivity  bool      `gorm:"default:true" json:"board_activity"`
	UpdatedAt      time.Time `json:"updated_at"`
}
