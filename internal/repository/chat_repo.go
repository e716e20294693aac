package repository

import (
	"time"

	"curbside/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) CreateConversation(c *models.Conversation) error {
	return r.db.Create(c).Error
}

func (r *ChatRepository) GetConversation(id uint) (*models.Conversation, error) {
	var c models.Conversation
	if err := r.db.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ChatRepository) AddMember(conversationID, userID, addedBy uint) error {
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.ConversationMember{
		ConversationID: conversationID,
		UserID:         userID,
		AddedBy:        addedBy,
	}).Error
}

func (r *ChatRepository) ConversationMembers(conversationID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.ConversationMember{}).
		Where("conversation_id = ?", conversationID).Pluck("user_id", &ids).Error
	return ids, err
}

func (r *ChatRepository) IsMember(conversationID, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).Count(&count).Error
	return count > 0, err
}

func (r *ChatRepository) CreateMessage(m *models.Message) error {
	return r.db.Create(m).Error
}

func (r *ChatRepository) ListMessages(conversationID uint, limit, offset int) ([]models.Message, error) {
	var list []models.Message
	err := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// MarkConversationRead inserts read rows for every message in the
// conversation the user has not read yet.
func (r *ChatRepository) MarkConversationRead(conversationID, userID uint) error {
	var ids []uint
	err := r.db.Model(&models.Message{}).
		Where("conversation_id = ? AND author_id <> ?", conversationID, userID).
		Where("id NOT IN (?)", r.db.Model(&models.MessageRead{}).Select("message_id").Where("user_id = ?", userID)).
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	now := time.Now()
	for _, id := range ids {
		row := &models.MessageRead{MessageID: id, UserID: userID, ReadAt: now}
		if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
			return err
		}
	}
	return nil
}

// UnreadCounts returns per-conversation counts of messages written by
// someone else that the user has not read. Membership comes from the
// join table directly (a narrow, independently-gated projection).
func (r *ChatRepository) UnreadCounts(userID uint) (map[uint]int, error) {
	type row struct {
		ConversationID uint
		N              int
	}
	var rows []row
	err := r.db.Model(&models.Message{}).
		Select("messages.conversation_id AS conversation_id, COUNT(*) AS n").
		Joins("JOIN conversation_members cm ON cm.conversation_id = messages.conversation_id AND cm.user_id = ?", userID).
		Where("messages.author_id <> ?", userID).
		Where("messages.id NOT IN (?)", r.db.Model(&models.MessageRead{}).Select("message_id").Where("user_id = ?", userID)).
		Group("messages.conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uint]int, len(rows))
	for _, r := range rows {
		counts[r.ConversationID] = r.N
	}
	return counts, nil
}
