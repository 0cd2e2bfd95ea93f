package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/szabolcsnagy0/kindly/apperrors"
	"github.com/szabolcsnagy0/kindly/cache"
	"github.com/szabolcsnagy0/kindly/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const statsTTL = 5 * time.Minute

type UserStats struct {
	UserID                uint             `json:"user_id"`
	Role                  string           `json:"role"`
	Level                 int              `json:"level"`
	Experience            int              `json:"experience"`
	ExperienceToNextLevel int              `json:"experience_to_next_level"`
	RequestsByStatus      map[string]int64 `json:"requests_by_status"`
	ApplicationsByStatus  map[string]int64 `json:"applications_by_status"`
	CompletedHelps        int64            `json:"completed_helps"`
	BadgeCount            int64            `json:"badge_count"`
	LegendaryBadges       int64            `json:"legendary_badges"`
	ActiveQuests          int64            `json:"active_quests"`
	ProcessingTimeMS      int64            `json:"processing_time_ms"`
}

type StatsService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewStatsService(conn *gorm.DB, logger *zap.Logger) *StatsService {
	return &StatsService{db: conn, logger: logger}
}

// statPart is one independently computed slice of the dashboard.
type statPart struct {
	name  string
	apply func(*UserStats)
	err   error
}

type statQuery func(conn *gorm.DB, userID uint) statPart

// GetUserStats computes every aggregate in its own goroutine and caches the result.
func (s *StatsService) GetUserStats(ctx context.Context, userID uint) (*UserStats, error) {
	start := time.Now()

	key := cache.UserStatsKey(userID)
	var cached UserStats
	if err := cache.Get(ctx, key, &cached); err == nil {
		s.logger.Debug("cache_hit", zap.String("key", key))
		return &cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("stats_cache_get_failed", zap.Error(err))
	}

	conn := s.db.WithContext(ctx)
	var user models.User
	if err := conn.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Internal(err)
	}

	stats := &UserStats{
		UserID:                user.ID,
		Role:                  RoleOf(user).String(),
		Level:                 user.Level,
		Experience:            user.Experience,
		ExperienceToNextLevel: user.ExperienceToNextLevel(),
		RequestsByStatus:      map[string]int64{},
		ApplicationsByStatus:  map[string]int64{},
	}

	queries := []statQuery{requestStats, applicationStats, completedHelpStats, badgeStats, questStats}
	parts := make(chan statPart, len(queries))
	var wg sync.WaitGroup

	for _, q := range queries {
		wg.Add(1)
		go func(q statQuery) {
			defer wg.Done()
			parts <- q(conn, userID)
		}(q)
	}

	go func() {
		wg.Wait()
		close(parts)
	}()

	var firstErr error
	for part := range parts {
		if part.err != nil {
			s.logger.Warn("user_stats_part_failed", zap.String("part", part.name), zap.Error(part.err))
			if firstErr == nil {
				firstErr = part.err
			}
			continue
		}
		part.apply(stats)
	}
	if firstErr != nil {
		return nil, apperrors.Internal(firstErr)
	}

	elapsed := time.Since(start)
	stats.ProcessingTimeMS = elapsed.Milliseconds()
	if err := cache.Set(ctx, key, stats, statsTTL); err != nil {
		s.logger.Warn("stats_cache_set_failed", zap.Error(err))
	}

	s.logger.Info("stats_calculated_concurrently",
		zap.Uint("user_id", userID),
		zap.Int("parts", len(queries)),
		zap.Duration("duration", elapsed),
	)
	return stats, nil
}

type statusCount struct {
	Status string
	N      int64
}

func requestStats(conn *gorm.DB, userID uint) statPart {
	var rows []statusCount
	err := conn.Model(&models.Request{}).
		Select("status, COUNT(*) AS n").
		Where("creator_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	return statPart{name: "requests", err: err, apply: func(s *UserStats) {
		for _, r := range rows {
			s.RequestsByStatus[r.Status] = r.N
		}
	}}
}

func applicationStats(conn *gorm.DB, userID uint) statPart {
	var rows []statusCount
	err := conn.Model(&models.Application{}).
		Select("status, COUNT(*) AS n").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	return statPart{name: "applications", err: err, apply: func(s *UserStats) {
		for _, r := range rows {
			s.ApplicationsByStatus[r.Status] = r.N
		}
	}}
}

func completedHelpStats(conn *gorm.DB, userID uint) statPart {
	n, err := countCompletedHelps(conn, userID)
	return statPart{name: "completed_helps", err: err, apply: func(s *UserStats) {
		s.CompletedHelps = n
	}}
}

func badgeStats(conn *gorm.DB, userID uint) statPart {
	var row struct {
		Total     int64
		Legendary int64
	}
	err := conn.Model(&models.BadgeAchievement{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN rarity = ? THEN 1 ELSE 0 END), 0) AS legendary", RarityLegendary).
		Where("user_id = ? AND is_completed = ?", userID, true).
		Scan(&row).Error
	return statPart{name: "badges", err: err, apply: func(s *UserStats) {
		s.BadgeCount = row.Total
		s.LegendaryBadges = row.Legendary
	}}
}

func questStats(conn *gorm.DB, userID uint) statPart {
	var n int64
	err := conn.Model(&models.Quest{}).Where("user_id = ?", userID).Count(&n).Error
	return statPart{name: "quests", err: err, apply: func(s *UserStats) {
		s.ActiveQuests = n
	}}
}
