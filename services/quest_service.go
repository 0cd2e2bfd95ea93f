package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/szabolcsnagy0/kindly/apperrors"
	"github.com/szabolcsnagy0/kindly/models"
	"github.com/szabolcsnagy0/kindly/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	InitialQuestCount = 3
	maxQuestTarget    = 5
	questDaysPerStep  = 7
	questXPPerStep    = 50
)

type QuestService struct {
	db          *gorm.DB
	progression *Progression
	logger      *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

func NewQuestService(conn *gorm.DB, progression *Progression, logger *zap.Logger) *QuestService {
	return &QuestService{
		db:          conn,
		progression: progression,
		logger:      logger,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for deadlines and expiry.
func (s *QuestService) WithClock(now func() time.Time) *QuestService {
	s.now = now
	return s
}

// QuestProgressResult is the outcome of advancing one quest.
type QuestProgressResult struct {
	QuestID          uint   `json:"quest_id"`
	RequestTypeID    uint   `json:"request_type_id"`
	CurrentCount     int    `json:"current_count"`
	Completed        bool   `json:"completed"`
	ExperienceGained int    `json:"experience_gained"`
	ReplacementID    *uint  `json:"replacement_id,omitempty"`
	Error            string `json:"error,omitempty"`
}

func (s *QuestService) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// AssignInitialQuests gives a new user up to three quests on distinct categories.
func (s *QuestService) AssignInitialQuests(tx *gorm.DB, userID uint) ([]models.Quest, error) {
	quests := make([]models.Quest, 0, InitialQuestCount)
	for i := 0; i < InitialQuestCount; i++ {
		q, err := s.createRandomQuest(tx, userID)
		if err != nil {
			return quests, err
		}
		if q == nil {
			break
		}
		quests = append(quests, *q)
	}
	return quests, nil
}

// createRandomQuest picks a category the user has no quest on. It returns nil when every
// category is taken or a concurrent writer claimed the chosen one.
func (s *QuestService) createRandomQuest(tx *gorm.DB, userID uint) (*models.Quest, error) {
	var free []models.RequestType
	err := tx.Where("id NOT IN (?)", tx.Model(&models.Quest{}).Select("request_type_id").Where("user_id = ?", userID)).
		Order("id").
		Find(&free).Error
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if len(free) == 0 {
		return nil, nil
	}

	rt := free[s.intn(len(free))]
	target := s.intn(maxQuestTarget) + 1
	quest := models.Quest{
		UserID:        userID,
		RequestTypeID: rt.ID,
		RequestType:   rt,
		TargetCount:   target,
		Deadline:      s.now().AddDate(0, 0, questDaysPerStep*target),
	}

	err = tx.Transaction(func(sp *gorm.DB) error {
		return sp.Omit("RequestType").Create(&quest).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &quest, nil
}

// GetUserQuests replaces expired quests and returns the live set.
func (s *QuestService) GetUserQuests(ctx context.Context, userID uint) ([]models.Quest, error) {
	conn := s.db.WithContext(ctx)

	var quests []models.Quest
	if err := conn.Where("user_id = ?", userID).Find(&quests).Error; err != nil {
		return nil, apperrors.Internal(err)
	}

	now := s.now()
	for _, q := range quests {
		if !q.Expired(now) {
			continue
		}
		err := conn.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&models.Quest{}, q.ID).Error; err != nil {
				return apperrors.Internal(err)
			}
			_, err := s.createRandomQuest(tx, userID)
			return err
		})
		if err != nil {
			return nil, err
		}
		s.logger.Info("quest_expired", zap.Uint("user_id", userID), zap.Uint("quest_id", q.ID))
	}

	quests = nil
	if err := conn.Preload("RequestType").
		Where("user_id = ?", userID).
		Order("id").
		Find(&quests).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return quests, nil
}

// CancelQuest deletes one of the user's quests and tries to assign a replacement.
func (s *QuestService) CancelQuest(ctx context.Context, userID, questID uint) (*models.Quest, error) {
	var replacement *models.Quest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quest models.Quest
		err := tx.Where("id = ? AND user_id = ?", questID, userID).First(&quest).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrQuestNotFound
		}
		if err != nil {
			return apperrors.Internal(err)
		}

		if err := tx.Delete(&quest).Error; err != nil {
			return apperrors.Internal(err)
		}
		replacement, err = s.createRandomQuest(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("quest_canceled", zap.Uint("user_id", userID), zap.Uint("quest_id", questID))
	return replacement, nil
}

// ProgressQuests advances the user's quests on any of categoryIDs in a transaction of its own.
func (s *QuestService) ProgressQuests(ctx context.Context, userID uint, categoryIDs []uint) ([]QuestProgressResult, error) {
	var results []QuestProgressResult
	err := s.progression.badges.awardTx(ctx, s.db, func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		results, err = s.progressQuests(tx, user, categoryIDs)
		return err
	})
	return results, err
}

// progressQuests advances each matching quest under its own savepoint. A failing quest is
// rolled back and reported while its siblings continue. user must be locked by tx.
func (s *QuestService) progressQuests(tx *gorm.DB, user *models.User, categoryIDs []uint) ([]QuestProgressResult, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}

	var quests []models.Quest
	if err := tx.Where("user_id = ? AND request_type_id IN ?", user.ID, categoryIDs).
		Order("id").
		Find(&quests).Error; err != nil {
		return nil, apperrors.Internal(err)
	}

	results := make([]QuestProgressResult, 0, len(quests))
	for i := range quests {
		quest := quests[i]
		snapshot := *user
		snapshot.Badges = append(snapshot.Badges[:0:0], user.Badges...)

		res := QuestProgressResult{QuestID: quest.ID, RequestTypeID: quest.RequestTypeID}
		err := tx.Transaction(func(sp *gorm.DB) error {
			quest.CurrentCount++
			res.CurrentCount = quest.CurrentCount

			if quest.CurrentCount < quest.TargetCount {
				return sp.Model(&quest).Update("current_count", quest.CurrentCount).Error
			}

			xp := questXPPerStep * quest.TargetCount
			if err := s.progression.GrantExperience(sp, user, xp); err != nil {
				return err
			}
			if err := sp.Delete(&quest).Error; err != nil {
				return err
			}
			replacement, err := s.createRandomQuest(sp, user.ID)
			if err != nil {
				return err
			}

			res.Completed = true
			res.ExperienceGained = xp
			if replacement != nil {
				res.ReplacementID = &replacement.ID
			}
			return nil
		})
		if err != nil {
			*user = snapshot
			res = QuestProgressResult{QuestID: quest.ID, RequestTypeID: quest.RequestTypeID, Error: err.Error()}
			s.logger.Warn("quest_progress_failed",
				zap.Uint("user_id", user.ID),
				zap.Uint("quest_id", quest.ID),
				zap.Error(err),
			)
		} else if res.Completed {
			utils.QuestsCompleted.Inc()
			s.logger.Info("quest_completed",
				zap.Uint("user_id", user.ID),
				zap.Uint("quest_id", quest.ID),
				zap.Int("experience", res.ExperienceGained),
			)
		}
		results = append(results, res)
	}
	return results, nil
}
