package models

import (
	"time"

	"gorm.io/gorm"
)

type Conversation struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedBy uint           `gorm:"not null;index" json:"created_by"`
	Title     string         `gorm:"size:255" json:"title"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

type ConversationMember struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"not null;uniqueIndex:idx_conv_member" json:"conversation_id"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_conv_member;index" json:"user_id"`
	AddedBy        uint      `json:"added_by"`
	CreatedAt      time.Time `json:"created_at"`
}

type Message struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ConversationID uint           `gorm:"not null;index" json:"conversation_id"`
	AuthorID       uint           `gorm:"not null;index" json:"author_id"`
	Body           string         `gorm:"type:text;not null" json:"body"`
	CreatedAt      time.Time      `json:"created_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// MessageRead records that a user has read a message. Read state lives
// here, per message and reader, not on notification rows.
type MessageRead struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID uint      `gorm:"not null;uniqueIndex:idx_message_read" json:"message_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_message_read;index" json:"user_id"`
	ReadAt    time.Time `json:"read_at"`
}
