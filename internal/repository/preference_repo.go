package repository

import (
	"curbside/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PreferenceRepository struct {
	db *gorm.DB
}

func NewPreferenceRepository(db *gorm.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// CreateDefaults seeds the all-enabled preference row at signup so the
// fail-closed resolver has something to read.
func (r *PreferenceRepository) CreateDefaults(userID uint) error {
	p := &models.NotificationPreference{
		UserID:         userID,
		DirectMessages: true,
		RequestUpdates: true,
		QAActivity:     true,
		Reviews:        true,
		BoardActivity:  true,
	}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(p).Error
}

func (r *PreferenceRepository) GetByUserID(userID uint) (*models.NotificationPreference, error) {
	var p models.NotificationPreference
	if err := r.db.First(&p, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PreferenceRepository) Save(p *models.NotificationPreference) error {
	return r.db.Save(p).Error
}
