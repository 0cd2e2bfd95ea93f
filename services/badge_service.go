package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/szabolcsnagy0/kindly/apperrors"
	"github.com/szabolcsnagy0/kindly/cache"
	"github.com/szabolcsnagy0/kindly/models"
	"github.com/szabolcsnagy0/kindly/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	leaderboardLimit = 100
	leaderboardTTL   = 5 * time.Minute
	bulkAwardWorkers = 4
)

type BadgeService struct {
	db     *gorm.DB
	admin  *AdminGuard
	logger *zap.Logger
}

func NewBadgeService(conn *gorm.DB, admin *AdminGuard, logger *zap.Logger) *BadgeService {
	return &BadgeService{db: conn, admin: admin, logger: logger}
}

type LeaderboardEntry struct {
	UserID         uint   `json:"user_id"`
	Name           string `json:"name"`
	BadgeCount     int64  `json:"badge_count"`
	LegendaryCount int64  `json:"legendary_count"`
}

type BadgeProgress struct {
	BadgeID   int  `json:"badge_id"`
	Progress  int  `json:"progress"`
	Completed bool `json:"completed"`
}

type SpecialBadgeInput struct {
	UserID      uint   `json:"user_id" validate:"required"`
	Name        string `json:"badge_name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Rarity      int    `json:"rarity" validate:"min=1,max=4"`
}

type BulkAwardResult struct {
	UserID  uint                     `json:"user_id"`
	Success bool                     `json:"success"`
	Badge   *models.BadgeAchievement `json:"badge,omitempty"`
	Error   string                   `json:"error,omitempty"`
}

// award inserts the (user, badge) record unless it exists and keeps the user's badge set in sync.
// It returns the stored record and whether it was created by this call.
func (s *BadgeService) award(tx *gorm.DB, user *models.User, badgeID int) (*models.BadgeAchievement, bool, error) {
	def, ok := LookupBadge(badgeID)
	if !ok {
		return nil, false, apperrors.ErrBadgeNotFound
	}

	existing, err := findAchievement(tx, user.ID, badgeID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if user.AddBadge(badgeID) {
			if err := saveBadgeSet(tx, user); err != nil {
				return nil, false, apperrors.Internal(err)
			}
		}
		return existing, false, nil
	}

	achievement := models.BadgeAchievement{
		UserID:        user.ID,
		BadgeID:       badgeID,
		BadgeName:     def.Name,
		Rarity:        def.Rarity,
		Description:   def.Description,
		Progress:      100,
		TotalRequired: 100,
		IsCompleted:   true,
	}

	// a savepoint keeps the outer transaction usable if a concurrent award won the insert
	err = tx.Transaction(func(sp *gorm.DB) error {
		return sp.Create(&achievement).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, err = findAchievement(tx, user.ID, badgeID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, apperrors.Internal(err)
	}

	if user.AddBadge(badgeID) {
		if err := saveBadgeSet(tx, user); err != nil {
			return nil, false, apperrors.Internal(err)
		}
	}

	utils.BadgesAwarded.WithLabelValues(strconv.Itoa(badgeID)).Inc()
	s.logger.Info("badge_awarded",
		zap.Uint("user_id", user.ID),
		zap.Int("badge_id", badgeID),
		zap.String("badge_name", def.Name),
	)
	return &achievement, true, nil
}

func findAchievement(tx *gorm.DB, userID uint, badgeID int) (*models.BadgeAchievement, error) {
	var existing models.BadgeAchievement
	err := tx.Where("user_id = ? AND badge_id = ?", userID, badgeID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &existing, nil
}

// AwardBadge grants badgeID to the user. Awarding a held badge returns the existing record.
func (s *BadgeService) AwardBadge(ctx context.Context, userID uint, badgeID int) (*models.BadgeAchievement, error) {
	if _, ok := LookupBadge(badgeID); !ok {
		return nil, apperrors.ErrBadgeNotFound
	}

	var result *models.BadgeAchievement
	err := s.awardTx(ctx, s.db, func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		result, _, err = s.award(tx, user, badgeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *BadgeService) GetUserBadges(ctx context.Context, userID uint) ([]models.BadgeAchievement, error) {
	var badges []models.BadgeAchievement
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("awarded_at, id").
		Find(&badges).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return badges, nil
}

// CheckAndAwardBadges recounts the user's completed helps and awards every completion
// milestone reached but not yet held. Safe to call repeatedly.
func (s *BadgeService) CheckAndAwardBadges(ctx context.Context, userID uint) ([]models.BadgeAchievement, error) {
	var awarded []models.BadgeAchievement
	err := s.awardTx(ctx, s.db, func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}

		completed, err := countCompletedHelps(tx, userID)
		if err != nil {
			return apperrors.Internal(err)
		}

		thresholds := make([]int64, 0, len(completionMilestones))
		for threshold := range completionMilestones {
			thresholds = append(thresholds, threshold)
		}
		sort.Slice(thresholds, func(i, j int) bool { return thresholds[i] < thresholds[j] })

		for _, threshold := range thresholds {
			if completed < threshold {
				break
			}
			badge, created, err := s.award(tx, user, completionMilestones[threshold])
			if err != nil {
				return err
			}
			if created {
				awarded = append(awarded, *badge)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return awarded, nil
}

// GetBadgeProgress reports how far the caller is towards badgeID.
func (s *BadgeService) GetBadgeProgress(ctx context.Context, caller Caller, badgeID int) (BadgeProgress, error) {
	def, ok := LookupBadge(badgeID)
	if !ok {
		return BadgeProgress{}, apperrors.ErrBadgeNotFound
	}

	conn := s.db.WithContext(ctx)
	held, err := findAchievement(conn, caller.UserID, badgeID)
	if err != nil {
		return BadgeProgress{}, err
	}
	if held != nil && held.IsCompleted {
		return BadgeProgress{BadgeID: badgeID, Progress: 100, Completed: true}, nil
	}

	var count int64
	switch {
	case def.Metric == MetricCompletedHelps && caller.Role == RoleVolunteer:
		count, err = countCompletedHelps(conn, caller.UserID)
	case def.Metric == MetricRequestsCreated && caller.Role == RoleHelpSeeker:
		count, err = countRequestsCreated(conn, caller.UserID)
	}
	if err != nil {
		return BadgeProgress{}, apperrors.Internal(err)
	}

	progress := CalculateBadgeProgress(badgeID, int(count))
	return BadgeProgress{BadgeID: badgeID, Progress: progress, Completed: progress >= 100}, nil
}

// Leaderboard ranks users by legendary badges, then total completed badges.
func (s *BadgeService) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	var cached []LeaderboardEntry
	if err := cache.Get(ctx, cache.LeaderboardKey, &cached); err == nil {
		return cached, nil
	}

	var rows []struct {
		UserID         uint
		FirstName      string
		LastName       string
		BadgeCount     int64
		LegendaryCount int64
	}
	err := s.db.WithContext(ctx).
		Table("users").
		Select("users.id AS user_id, users.first_name, users.last_name, "+
			"COUNT(badge_achievements.id) AS badge_count, "+
			"SUM(CASE WHEN badge_achievements.rarity = ? THEN 1 ELSE 0 END) AS legendary_count", RarityLegendary).
		Joins("JOIN badge_achievements ON badge_achievements.user_id = users.id AND badge_achievements.is_completed = ?", true).
		Group("users.id, users.first_name, users.last_name").
		Order("legendary_count DESC, badge_count DESC, users.id ASC").
		Limit(leaderboardLimit).
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	entries := make([]LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, LeaderboardEntry{
			UserID:         row.UserID,
			Name:           row.FirstName + " " + row.LastName,
			BadgeCount:     row.BadgeCount,
			LegendaryCount: row.LegendaryCount,
		})
	}

	if err := cache.Set(ctx, cache.LeaderboardKey, entries, leaderboardTTL); err != nil {
		s.logger.Warn("leaderboard_cache_set_failed", zap.Error(err))
	}
	return entries, nil
}

func (s *BadgeService) invalidateLeaderboard(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cache.Delete(ctx, cache.LeaderboardKey); err != nil {
		s.logger.Warn("leaderboard_cache_invalidate_failed", zap.Error(err))
	}
}

// AdminAllowed reports whether token passes the admin guard.
func (s *BadgeService) AdminAllowed(token AdminToken) bool {
	return s.admin.Allow(token)
}

// awardTx runs fn in a transaction on conn. Badges awarded inside fn only become visible on
// commit, so the cached leaderboard is dropped afterwards.
func (s *BadgeService) awardTx(ctx context.Context, conn *gorm.DB, fn func(tx *gorm.DB) error) error {
	if err := conn.WithContext(ctx).Transaction(fn); err != nil {
		return err
	}
	s.invalidateLeaderboard(ctx)
	return nil
}

// AwardSpecialBadge grants an ad-hoc badge outside the catalog. A bad token yields
// (nil, false, nil): the denial is a result, not an error.
func (s *BadgeService) AwardSpecialBadge(ctx context.Context, token AdminToken, in SpecialBadgeInput) (*models.BadgeAchievement, bool, error) {
	if !s.admin.Allow(token) {
		s.logger.Warn("special_badge_denied", zap.Uint("user_id", in.UserID))
		return nil, false, nil
	}
	if in.Rarity < RarityCommon || in.Rarity > RarityLegendary {
		return nil, true, apperrors.Validation("rarity must be between 1 and 4")
	}

	var achievement models.BadgeAchievement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, in.UserID)
		if err != nil {
			return err
		}

		var maxID sql.NullInt64
		if err := tx.Model(&models.BadgeAchievement{}).
			Where("badge_id >= ?", SpecialBadgeBase).
			Select("MAX(badge_id)").
			Row().Scan(&maxID); err != nil {
			return apperrors.Internal(err)
		}
		badgeID := SpecialBadgeBase
		if maxID.Valid && int(maxID.Int64) >= badgeID {
			badgeID = int(maxID.Int64) + 1
		}

		achievement = models.BadgeAchievement{
			UserID:        user.ID,
			BadgeID:       badgeID,
			BadgeName:     in.Name,
			Rarity:        in.Rarity,
			Description:   in.Description,
			Progress:      100,
			TotalRequired: 100,
			IsCompleted:   true,
		}
		if err := tx.Create(&achievement).Error; err != nil {
			return apperrors.Internal(err)
		}
		user.AddBadge(badgeID)
		return saveBadgeSet(tx, user)
	})
	if err != nil {
		return nil, true, err
	}

	utils.BadgesAwarded.WithLabelValues("special").Inc()
	s.invalidateLeaderboard(ctx)
	s.logger.Info("special_badge_awarded",
		zap.Uint("user_id", in.UserID),
		zap.Int("badge_id", achievement.BadgeID),
	)
	return &achievement, true, nil
}

// BulkAwardBadges awards badgeID to every user independently: one user's failure is
// reported in its result and does not affect the others.
func (s *BadgeService) BulkAwardBadges(ctx context.Context, token AdminToken, userIDs []uint, badgeID int) ([]BulkAwardResult, bool, error) {
	if !s.admin.Allow(token) {
		return nil, false, nil
	}
	if _, ok := LookupBadge(badgeID); !ok {
		return nil, true, apperrors.ErrBadgeNotFound
	}

	type job struct {
		index  int
		userID uint
	}

	results := make([]BulkAwardResult, len(userIDs))
	jobs := make(chan job, len(userIDs))
	var wg sync.WaitGroup

	workers := bulkAwardWorkers
	if len(userIDs) < workers {
		workers = len(userIDs)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				badge, err := s.AwardBadge(ctx, j.userID, badgeID)
				res := BulkAwardResult{UserID: j.userID, Success: err == nil, Badge: badge}
				if err != nil {
					res.Error = err.Error()
				}
				results[j.index] = res
			}
		}()
	}

	for i, id := range userIDs {
		jobs <- job{index: i, userID: id}
	}
	close(jobs)
	wg.Wait()

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	s.logger.Info("bulk_award_processed",
		zap.Int("badge_id", badgeID),
		zap.Int("success", len(results)-failed),
		zap.Int("errors", failed),
		zap.Int("workers", workers),
	)
	return results, true, nil
}

// ResetUserBadges removes every achievement of the user and clears the badge set.
func (s *BadgeService) ResetUserBadges(ctx context.Context, token AdminToken, userID uint) (bool, error) {
	if !s.admin.Allow(token) {
		return false, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.BadgeAchievement{}).Error; err != nil {
			return apperrors.Internal(err)
		}
		user.Badges = nil
		return saveBadgeSet(tx, user)
	})
	if err != nil {
		return true, err
	}

	s.invalidateLeaderboard(ctx)
	s.logger.Info("badges_reset", zap.Uint("user_id", userID))
	return true, nil
}
