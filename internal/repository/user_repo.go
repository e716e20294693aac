package repository

import (
	"time"

	"curbside/internal/domain"
	"curbside/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(u *models.User) error {
	return r.db.Create(u).Error
}

func (r *UserRepository) GetByID(id uint) (*models.User, error) {
	var u models.User
	if err := r.db.First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	var u models.User
	if err := r.db.Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) ListApproved() ([]models.User, error) {
	var list []models.User
	err := r.db.Where("approved = ?", true).Find(&list).Error
	return list, err
}

func (r *UserRepository) ListAdmins() ([]models.User, error) {
	var list []models.User
	err := r.db.Where("role = ?", domain.RoleAdmin).Find(&list).Error
	return list, err
}

func (r *UserRepository) ListPending() ([]models.User, error) {
	var list []models.User
	err := r.db.Where("approved = ? AND role = ?", false, domain.RoleMember).Order("created_at ASC").Find(&list).Error
	return list, err
}

func (r *UserRepository) SetApproved(id uint, approved bool) error {
	updates := map[string]interface{}{"approved": approved}
	if approved {
		updates["approved_at"] = time.Now()
	}
	return r.db.Model(&models.User{}).Where("id = ?", id).Updates(updates).Error
}

func (r *UserRepository) SetFCMToken(id uint, token string) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).Update("fcm_token", token).Error
}
