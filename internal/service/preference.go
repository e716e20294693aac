package service

import (
	"curbside/internal/models"

	"go.uber.org/zap"
)

type userGetter interface {
	GetByID(id uint) (*models.User, error)
}

type preferenceGetter interface {
	GetByUserID(userID uint) (*models.NotificationPreference, error)
}

// PreferenceResolver decides whether a notification category may be
// delivered to a recipient. Mandatory categories always pass; everything
// else checks the recipient's toggle for the category's group. Lookup
// failures fail closed: an unresolvable recipient is never notified.
type PreferenceResolver struct {
	users userGetter
	prefs preferenceGetter
	log   *zap.Logger
}

func NewPreferenceResolver(users userGetter, prefs preferenceGetter, log *zap.Logger) *PreferenceResolver {
	return &PreferenceResolver{users: users, prefs: prefs, log: log}
}

func (r *PreferenceResolver) Allowed(userID uint, cat Category) bool {
	group := cat.PreferenceGroup()
	switch group {
	case GroupNone:
		return true
	case GroupAdminOnly:
		u, err := r.users.GetByID(userID)
		if err != nil {
			r.log.Debug("preference check: recipient lookup failed",
				zap.Uint("user_id", userID), zap.String("category", string(cat)), zap.Error(err))
			return false
		}
		return u.IsAdmin()
	case GroupUnknown:
		r.log.Warn("preference check: unknown category", zap.String("category", string(cat)))
		return false
	}

	p, err := r.prefs.GetByUserID(userID)
	if err != nil {
		r.log.Debug("preference check: settings lookup failed",
			zap.Uint("user_id", userID), zap.String("category", string(cat)), zap.Error(err))
		return false
	}
	switch group {
	case GroupDirectMessages:
		return p.DirectMessages
	case GroupRequestUpdates:
		return p.RequestUpdates
	case GroupQA:
		return p.QAActivity
	case GroupReviews:
		return p.Reviews
	case GroupBoard:
		return p.BoardActivity
	}
	return false
}
