package repository

import (
	"curbside/internal/domain"
	"curbside/internal/models"

	"gorm.io/gorm"
)

// RequestRepository covers rides, favors and their shared participation
// rows. Participation is read from owner plus co_requestors directly,
// never through any access-filtered view, so the membership lookup can
// not recurse into itself.
type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) CreateRide(ride *models.Ride) error {
	return r.db.Create(ride).Error
}

func (r *RequestRepository) GetRide(id uint) (*models.Ride, error) {
	var ride models.Ride
	if err := r.db.First(&ride, id).Error; err != nil {
		return nil, err
	}
	return &ride, nil
}

func (r *RequestRepository) ListRides(limit, offset int) ([]models.Ride, error) {
	var list []models.Ride
	err := r.db.Order("scheduled_at ASC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *RequestRepository) SaveRide(ride *models.Ride) error {
	return r.db.Save(ride).Error
}

func (r *RequestRepository) CreateFavor(favor *models.Favor) error {
	return r.db.Create(favor).Error
}

func (r *RequestRepository) GetFavor(id uint) (*models.Favor, error) {
	var favor models.Favor
	if err := r.db.First(&favor, id).Error; err != nil {
		return nil, err
	}
	return &favor, nil
}

func (r *RequestRepository) ListFavors(limit, offset int) ([]models.Favor, error) {
	var list []models.Favor
	err := r.db.Order("scheduled_at ASC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *RequestRepository) SaveFavor(favor *models.Favor) error {
	return r.db.Save(favor).Error
}

func (r *RequestRepository) AddCoRequestor(kind string, requestID, userID uint) error {
	return r.db.Create(&models.CoRequestor{
		RequestKind: kind,
		RequestID:   requestID,
		UserID:      userID,
	}).Error
}

// RequestParticipants returns the owner plus all co-requestors.
func (r *RequestRepository) RequestParticipants(kind string, requestID uint) ([]uint, error) {
	table := "favors"
	if kind == domain.RequestKindRide {
		table = "rides"
	}
	var owner struct{ OwnerID uint }
	if err := r.db.Table(table).Select("owner_id").Where("id = ?", requestID).Take(&owner).Error; err != nil {
		return nil, err
	}
	var coIDs []uint
	err := r.db.Model(&models.CoRequestor{}).
		Where("request_kind = ? AND request_id = ?", kind, requestID).
		Pluck("user_id", &coIDs).Error
	if err != nil {
		return nil, err
	}
	return append([]uint{owner.OwnerID}, coIDs...), nil
}

func (r *RequestRepository) CreateQuestion(q *models.Question) error {
	return r.db.Create(q).Error
}

func (r *RequestRepository) ListQuestions(kind string, requestID uint) ([]models.Question, error) {
	var list []models.Question
	err := r.db.Where("request_kind = ? AND request_id = ?", kind, requestID).
		Order("created_at ASC").Find(&list).Error
	return list, err
}

func (r *RequestRepository) GetQuestion(id uint) (*models.Question, error) {
	var q models.Question
	if err := r.db.First(&q, id).Error; err != nil {
		return nil, err
	}
	return &q, nil
}
