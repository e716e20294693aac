package models

import (
	"time"

	"gorm.io/gorm"
)

// Ride is a community ride request (e.g. airport pickup).
type Ride struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	OwnerID     uint           `gorm:"not null;index" json:"owner_id"`
	Origin      string         `gorm:"size:255;not null" json:"origin"`
	Destination string         `gorm:"size:255;not null" json:"destination"`
	Seats       int            `gorm:"default:1" json:"seats"`
	Notes       string         `gorm:"type:text" json:"notes"`
	Status      string         `gorm:"size:20;not null;index;default:'OPEN'" json:"status"`
	ScheduledAt time.Time      `gorm:"not null" json:"scheduled_at"`
	ClaimedBy   *uint          `gorm:"index" json:"claimed_by"`
	CompletedAt *time.Time     `json:"completed_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Owner User `gorm:"foreignKey:OwnerID" json:"-"`
}

// Favor is a community favor request (e.g. borrow a ladder).
type Favor struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	OwnerID     uint           `gorm:"not null;index" json:"owner_id"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Details     string         `gorm:"type:text" json:"details"`
	Status      string         `gorm:"size:20;not null;index;default:'OPEN'" json:"status"`
	ScheduledAt time.Time      `gorm:"not null" json:"scheduled_at"`
	ClaimedBy   *uint          `gorm:"index" json:"claimed_by"`
	CompletedAt *time.Time     `json:"completed_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Owner User `gorm:"foreignKey:OwnerID" json:"-"`
}

// CoRequestor is a secondary participant on a ride or favor; they get the
// same status and Q&A notifications as the owner.
type CoRequestor struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RequestKind string    `gorm:"size:10;not null;uniqueIndex:idx_corequestor,priority:1" json:"request_kind"`
	RequestID   uint      `gorm:"not null;uniqueIndex:idx_corequestor,priority:2" json:"request_id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_corequestor,priority:3;index" json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Question is a single-level Q&A entry on a ride or favor. AnswerToID is
// set when the row answers an earlier question.
type Question struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	RequestKind string         `gorm:"size:10;not null;index:idx_question_request" json:"request_kind"`
	RequestID   uint           `gorm:"not null;index:idx_question_request" json:"request_id"`
	AuthorID    uint           `gorm:"not null;index" json:"author_id"`
	Body        string         `gorm:"type:text;not null" json:"body"`
	AnswerToID  *uint          `gorm:"index" json:"answer_to_id"`
	CreatedAt   time.Time      `json:"created_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// CompletionReminder is scheduled when a request is claimed and swept once
// DueAt passes. Unclaiming deletes the pending row; completing marks it
// fulfilled so the sweep skips it.
type CompletionReminder struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	RequestKind string     `gorm:"size:10;not null;index:idx_reminder_request" json:"request_kind"`
	RequestID   uint       `gorm:"not null;index:idx_reminder_request" json:"request_id"`
	UserID      uint       `gorm:"not null;index" json:"user_id"` // the claimer
	DueAt       time.Time  `gorm:"not null;index" json:"due_at"`
	FulfilledAt *time.Time `json:"fulfilled_at"`
	SentAt      *time.Time `json:"sent_at"`
	CreatedAt   time.Time  `json:"created_at"`
}
