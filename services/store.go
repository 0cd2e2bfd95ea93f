package services

import (
	"context"
	"errors"
	"sort"

	"github.com/szabolcsnagy0/kindly/apperrors"
	"github.com/szabolcsnagy0/kindly/cache"
	"github.com/szabolcsnagy0/kindly/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// forUpdate takes a pessimistic row lock held until the surrounding transaction ends.
func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func lockRequest(tx *gorm.DB, requestID uint) (*models.Request, error) {
	var req models.Request
	if err := forUpdate(tx).First(&req, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRequestNotFound
		}
		return nil, apperrors.Internal(err)
	}
	return &req, nil
}

func lockUser(tx *gorm.DB, userID uint) (*models.User, error) {
	var user models.User
	if err := forUpdate(tx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Internal(err)
	}
	return &user, nil
}

// lockUsers locks several users in ascending id order so concurrent callers cannot deadlock.
func lockUsers(tx *gorm.DB, ids ...uint) (map[uint]*models.User, error) {
	unique := make([]uint, 0, len(ids))
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })

	var users []models.User
	if err := forUpdate(tx).Where("id IN ?", unique).Order("id").Find(&users).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	if len(users) != len(unique) {
		return nil, apperrors.ErrUserNotFound
	}

	out := make(map[uint]*models.User, len(users))
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

// saveProgress persists the progression fields of user.
func saveProgress(tx *gorm.DB, user *models.User) error {
	return tx.Model(user).Updates(map[string]interface{}{
		"experience": user.Experience,
		"level":      user.Level,
	}).Error
}

func saveBadgeSet(tx *gorm.DB, user *models.User) error {
	return tx.Model(user).Update("badges", user.Badges).Error
}

// countCompletedHelps counts accepted applications whose request is completed.
func countCompletedHelps(tx *gorm.DB, volunteerID uint) (int64, error) {
	var n int64
	err := tx.Model(&models.Application{}).
		Joins("JOIN requests ON requests.id = applications.request_id").
		Where("applications.user_id = ? AND applications.status = ? AND requests.status = ?",
			volunteerID, models.ApplicationAccepted, models.RequestCompleted).
		Count(&n).Error
	return n, err
}

func countRequestsCreated(tx *gorm.DB, creatorID uint) (int64, error) {
	var n int64
	err := tx.Model(&models.Request{}).Where("creator_id = ?", creatorID).Count(&n).Error
	return n, err
}

func loadRequestTypes(tx *gorm.DB, ids []uint) ([]models.RequestType, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	unique := make(map[uint]bool, len(ids))
	for _, id := range ids {
		unique[id] = true
	}

	var types []models.RequestType
	if err := tx.Where("id IN ?", ids).Order("id").Find(&types).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	if len(types) != len(unique) {
		return nil, apperrors.Validation("unknown request type")
	}
	return types, nil
}

// invalidateStats drops the cached dashboards of userIDs after a committed change.
func invalidateStats(ctx context.Context, logger *zap.Logger, userIDs ...uint) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, cache.UserStatsKey(id))
	}
	if err := cache.Delete(ctx, keys...); err != nil {
		logger.Warn("stats_cache_invalidate_failed", zap.Error(err))
	}
}
