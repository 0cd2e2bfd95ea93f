package services

import (
	"context"
	"errors"
	"time"

	"github.com/szabolcsnagy0/kindly/apperrors"
	"github.com/szabolcsnagy0/kindly/models"
	"github.com/szabolcsnagy0/kindly/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	minRating          = 1
	maxRating          = 5
	experiencePerStar  = 10
	perfectRatingValue = maxRating
)

type ApplicationService struct {
	db          *gorm.DB
	badges      *BadgeService
	progression *Progression
	logger      *zap.Logger
	now         func() time.Time
}

func NewApplicationService(conn *gorm.DB, badges *BadgeService, progression *Progression, logger *zap.Logger) *ApplicationService {
	return &ApplicationService{
		db:          conn,
		badges:      badges,
		progression: progression,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for applied_at.
func (s *ApplicationService) WithClock(now func() time.Time) *ApplicationService {
	s.now = now
	return s
}

// RatingInput is a 1 to 5 star rating.
type RatingInput struct {
	Rating int `json:"rating" validate:"required,min=1,max=5"`
}

// CreateApplication files the caller's application on an OPEN request.
func (s *ApplicationService) CreateApplication(ctx context.Context, caller Caller, requestID uint) (models.Application, error) {
	if err := RequireRole(caller, RoleVolunteer); err != nil {
		return models.Application{}, err
	}

	var app models.Application
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := lockRequest(tx, requestID)
		if err != nil {
			return err
		}
		if req.Status != models.RequestOpen {
			return apperrors.ErrRequestNotOpen
		}

		var existing int64
		if err := tx.Model(&models.Application{}).
			Where("request_id = ? AND user_id = ?", requestID, caller.UserID).
			Count(&existing).Error; err != nil {
			return apperrors.Internal(err)
		}
		if existing > 0 {
			return apperrors.ErrApplicationExists
		}

		app = models.Application{
			RequestID: requestID,
			UserID:    caller.UserID,
			Status:    models.ApplicationPending,
			AppliedAt: s.now(),
		}
		if err := tx.Omit("Volunteer").Create(&app).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.ErrApplicationExists
			}
			return apperrors.Internal(err)
		}

		return tx.Model(req).Update("application_count", gorm.Expr("application_count + 1")).Error
	})
	if err != nil {
		return models.Application{}, err
	}

	invalidateStats(ctx, s.logger, caller.UserID)
	s.logger.Info("application_created",
		zap.Uint("request_id", requestID),
		zap.Uint("volunteer_id", caller.UserID),
	)
	return app, nil
}

// DeleteApplication withdraws the caller's application while the request is OPEN.
func (s *ApplicationService) DeleteApplication(ctx context.Context, caller Caller, requestID uint) error {
	if err := RequireRole(caller, RoleVolunteer); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := lockRequest(tx, requestID)
		if err != nil {
			return err
		}
		if req.Status != models.RequestOpen {
			return apperrors.ErrCannotDeleteApplication
		}

		res := tx.Where("request_id = ? AND user_id = ?", requestID, caller.UserID).Delete(&models.Application{})
		if res.Error != nil {
			return apperrors.Internal(res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrApplicationNotFound
		}

		return tx.Model(req).Update("application_count", gorm.Expr("application_count - 1")).Error
	})
	if err != nil {
		return err
	}

	invalidateStats(ctx, s.logger, caller.UserID)
	s.logger.Info("application_deleted",
		zap.Uint("request_id", requestID),
		zap.Uint("volunteer_id", caller.UserID),
	)
	return nil
}

// AcceptApplication accepts volunteerID's application and declines every other one on
// the request in a single statement, then closes the request.
func (s *ApplicationService) AcceptApplication(ctx context.Context, caller Caller, requestID, volunteerID uint) error {
	if err := RequireRole(caller, RoleHelpSeeker); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := lockRequest(tx, requestID)
		if err != nil {
			return err
		}
		if req.CreatorID != caller.UserID {
			return apperrors.ErrRequestNotFound
		}
		if req.Status != models.RequestOpen {
			return apperrors.ErrCannotAcceptApplication
		}

		var chosen int64
		if err := tx.Model(&models.Application{}).
			Where("request_id = ? AND user_id = ?", requestID, volunteerID).
			Count(&chosen).Error; err != nil {
			return apperrors.Internal(err)
		}
		if chosen == 0 {
			return apperrors.ErrApplicationNotFound
		}

		if err := tx.Model(&models.Application{}).
			Where("request_id = ?", requestID).
			Update("status", gorm.Expr("CASE WHEN user_id = ? THEN ? ELSE ? END",
				volunteerID, models.ApplicationAccepted, models.ApplicationDeclined)).Error; err != nil {
			return apperrors.Internal(err)
		}

		if err := tx.Model(req).Update("status", models.RequestClosed).Error; err != nil {
			return apperrors.Internal(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	utils.ApplicationsAccepted.Inc()
	invalidateStats(ctx, s.logger, caller.UserID, volunteerID)
	s.logger.Info("application_accepted",
		zap.Uint("request_id", requestID),
		zap.Uint("volunteer_id", volunteerID),
	)
	return nil
}

type ratedParty int

const (
	rateTheVolunteer ratedParty = iota
	rateTheSeeker
)

// RateVolunteer lets the creator rate the accepted volunteer of a completed request once.
func (s *ApplicationService) RateVolunteer(ctx context.Context, caller Caller, requestID uint, in RatingInput) error {
	if err := RequireRole(caller, RoleHelpSeeker); err != nil {
		return err
	}
	return s.rate(ctx, caller, requestID, in.Rating, rateTheVolunteer)
}

// RateSeeker lets the accepted volunteer rate the creator of a completed request once.
func (s *ApplicationService) RateSeeker(ctx context.Context, caller Caller, requestID uint, in RatingInput) error {
	if err := RequireRole(caller, RoleVolunteer); err != nil {
		return err
	}
	return s.rate(ctx, caller, requestID, in.Rating, rateTheSeeker)
}

func (s *ApplicationService) rate(ctx context.Context, caller Caller, requestID uint, rating int, party ratedParty) error {
	if rating < minRating || rating > maxRating {
		return apperrors.Validation("rating must be between 1 and 5")
	}

	var ratedID uint
	err := s.badges.awardTx(ctx, s.db, func(tx *gorm.DB) error {
		req, err := lockRequest(tx, requestID)
		if err != nil {
			return err
		}
		if req.Status != models.RequestCompleted {
			return apperrors.ErrApplicationCannotBeRated
		}

		var app models.Application
		err = forUpdate(tx).
			Where("request_id = ? AND status = ?", requestID, models.ApplicationAccepted).
			First(&app).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrApplicationCannotBeRated
		}
		if err != nil {
			return apperrors.Internal(err)
		}

		var column string
		switch party {
		case rateTheVolunteer:
			if req.CreatorID != caller.UserID || app.VolunteerRating != nil {
				return apperrors.ErrApplicationCannotBeRated
			}
			column, ratedID = "volunteer_rating", app.UserID
		case rateTheSeeker:
			if app.UserID != caller.UserID || app.HelpSeekerRating != nil {
				return apperrors.ErrApplicationCannotBeRated
			}
			column, ratedID = "help_seeker_rating", req.CreatorID
		}

		if err := tx.Model(&app).Update(column, rating).Error; err != nil {
			return apperrors.Internal(err)
		}

		users, err := lockUsers(tx, caller.UserID, ratedID)
		if err != nil {
			return err
		}
		rater, rated := users[caller.UserID], users[ratedID]

		if err := s.progression.GrantExperience(tx, rated, rating*experiencePerStar); err != nil {
			return err
		}
		if err := recomputeAverageRating(tx, rated, party); err != nil {
			return err
		}

		if rating == perfectRatingValue {
			if _, _, err := s.badges.award(tx, rated, BadgeSuperStar); err != nil {
				return err
			}
			if _, _, err := s.badges.award(tx, rater, BadgeAppreciative); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	invalidateStats(ctx, s.logger, caller.UserID, ratedID)
	s.logger.Info("application_rated",
		zap.Uint("request_id", requestID),
		zap.Uint("rated_user_id", ratedID),
		zap.Int("rating", rating),
	)
	return nil
}

// recomputeAverageRating derives avg_rating from every stored rating the user received.
func recomputeAverageRating(tx *gorm.DB, user *models.User, party ratedParty) error {
	q := tx.Model(&models.Application{})
	switch party {
	case rateTheVolunteer:
		q = q.Select("AVG(applications.volunteer_rating)").
			Where("applications.user_id = ? AND applications.volunteer_rating IS NOT NULL", user.ID)
	case rateTheSeeker:
		q = q.Select("AVG(applications.help_seeker_rating)").
			Joins("JOIN requests ON requests.id = applications.request_id").
			Where("requests.creator_id = ? AND applications.help_seeker_rating IS NOT NULL", user.ID)
	}

	var avg *float64
	if err := q.Row().Scan(&avg); err != nil {
		return apperrors.Internal(err)
	}
	if avg == nil {
		return nil
	}

	user.AvgRating = *avg
	if err := tx.Model(user).Update("avg_rating", user.AvgRating).Error; err != nil {
		return apperrors.Internal(err)
	}
	return nil
}
