package repository

import (
	"curbside/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BoardRepository struct {
	db *gorm.DB
}

func NewBoardRepository(db *gorm.DB) *BoardRepository {
	return &BoardRepository{db: db}
}

func (r *BoardRepository) CreatePost(p *models.BoardPost) error {
	return r.db.Create(p).Error
}

func (r *BoardRepository) GetPost(id uint) (*models.BoardPost, error) {
	var p models.BoardPost
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *BoardRepository) ListPosts(limit, offset int) ([]models.BoardPost, error) {
	var list []models.BoardPost
	err := r.db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *BoardRepository) CreateComment(c *models.BoardComment) error {
	return r.db.Create(c).Error
}

func (r *BoardRepository) ListComments(postID uint) ([]models.BoardComment, error) {
	var list []models.BoardComment
	err := r.db.Where("post_id = ?", postID).Order("created_at ASC").Find(&list).Error
	return list, err
}

// UpsertVote records or replaces the user's vote on a post.
func (r *BoardRepository) UpsertVote(v *models.BoardVote) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(v).Error
}

// PostInteractors returns everyone who has commented on or voted on a
// post, for "you were in this thread" fan-out.
func (r *BoardRepository) PostInteractors(postID uint) ([]uint, error) {
	var commenters []uint
	if err := r.db.Model(&models.BoardComment{}).Where("post_id = ?", postID).
		Distinct().Pluck("author_id", &commenters).Error; err != nil {
		return nil, err
	}
	var voters []uint
	if err := r.db.Model(&models.BoardVote{}).Where("post_id = ?", postID).
		Distinct().Pluck("user_id", &voters).Error; err != nil {
		return nil, err
	}
	return append(commenters, voters...), nil
}
