package services

import (
	"github.com/szabolcsnagy0/kindly/apperrors"
	"github.com/szabolcsnagy0/kindly/models"
	"github.com/szabolcsnagy0/kindly/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Progression applies experience grants and the level badge inside a caller's transaction.
type Progression struct {
	badges *BadgeService
	logger *zap.Logger
}

func NewProgression(badges *BadgeService, logger *zap.Logger) *Progression {
	return &Progression{badges: badges, logger: logger}
}

// GrantExperience adds xp to a user already locked by tx and persists the result.
// The level 2 badge is re-awarded whenever the user is at level 2 or above.
func (p *Progression) GrantExperience(tx *gorm.DB, user *models.User, xp int) error {
	if xp <= 0 {
		return nil
	}

	gained := user.AddExperience(xp)
	if err := saveProgress(tx, user); err != nil {
		return apperrors.Internal(err)
	}

	if gained > 0 {
		utils.LevelUps.Add(float64(gained))
		p.logger.Info("level_up",
			zap.Uint("user_id", user.ID),
			zap.Int("level", user.Level),
			zap.Int("levels_gained", gained),
		)
	}

	if user.Level >= models.LevelTwoThreshold {
		if _, _, err := p.badges.award(tx, user, BadgeLevelTwo); err != nil {
			return err
		}
	}
	return nil
}
