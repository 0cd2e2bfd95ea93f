package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/szabolcsnagy0/kindly/apperrors"
	"github.com/szabolcsnagy0/kindly/models"
	"github.com/szabolcsnagy0/kindly/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RegisterInput struct {
	FirstName   string    `json:"first_name" validate:"required,max=100"`
	LastName    string    `json:"last_name" validate:"required,max=100"`
	Email       string    `json:"email" validate:"required,email"`
	Password    string    `json:"password" validate:"required,min=8,max=72"`
	DateOfBirth time.Time `json:"date_of_birth" validate:"required"`
	AboutMe     string    `json:"about_me" validate:"max=1000"`
	IsVolunteer bool      `json:"is_volunteer"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ProfileInput struct {
	FirstName   string    `json:"first_name" validate:"required,max=100"`
	LastName    string    `json:"last_name" validate:"required,max=100"`
	DateOfBirth time.Time `json:"date_of_birth" validate:"required"`
	AboutMe     string    `json:"about_me" validate:"max=1000"`
}

type AuthResult struct {
	User        UserProfile `json:"user"`
	AccessToken string      `json:"access_token"`
}

type UserService struct {
	db     *gorm.DB
	quests *QuestService
	tokens *utils.TokenIssuer
	logger *zap.Logger
}

func NewUserService(conn *gorm.DB, quests *QuestService, tokens *utils.TokenIssuer, logger *zap.Logger) *UserService {
	return &UserService{db: conn, quests: quests, tokens: tokens, logger: logger}
}

// Register creates the account, hands out the initial quests and signs a token.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return AuthResult{}, apperrors.Internal(err)
	}

	user := models.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		DateOfBirth:  in.DateOfBirth,
		AboutMe:      in.AboutMe,
		IsVolunteer:  in.IsVolunteer,
		Level:        1,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.ErrUserAlreadyExists
			}
			return apperrors.Internal(err)
		}
		_, err := s.quests.AssignInitialQuests(tx, user.ID)
		return err
	})
	if err != nil {
		return AuthResult{}, err
	}

	s.logger.Info("user_registered",
		zap.Uint("user_id", user.ID),
		zap.String("role", RoleOf(user).String()),
	)
	return s.authResult(user)
}

func (s *UserService) Login(ctx context.Context, in LoginInput) (AuthResult, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(in.Email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return AuthResult{}, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return AuthResult{}, apperrors.Internal(err)
	}

	if !utils.CheckPasswordHash(in.Password, user.PasswordHash) {
		s.logger.Warn("login_failed", zap.Uint("user_id", user.ID))
		return AuthResult{}, apperrors.ErrInvalidCredentials
	}

	s.logger.Info("user_logged_in", zap.Uint("user_id", user.ID))
	return s.authResult(user)
}

func (s *UserService) authResult(user models.User) (AuthResult, error) {
	token, err := s.tokens.GenerateToken(user.ID, user.IsVolunteer)
	if err != nil {
		return AuthResult{}, apperrors.Internal(err)
	}
	return AuthResult{User: toUserProfile(user), AccessToken: token}, nil
}

// Authenticate resolves a bearer token to the caller it was issued for.
func (s *UserService) Authenticate(ctx context.Context, token string) (Caller, error) {
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return Caller{}, apperrors.Wrap(apperrors.ErrInvalidToken, err)
	}

	var user models.User
	err = s.db.WithContext(ctx).Select("id", "is_volunteer").First(&user, claims.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Caller{}, apperrors.ErrInvalidToken
	}
	if err != nil {
		return Caller{}, apperrors.Internal(err)
	}
	return CallerFor(user), nil
}

func (s *UserService) GetUser(ctx context.Context, userID uint) (UserProfile, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return UserProfile{}, apperrors.ErrUserNotFound
	}
	if err != nil {
		return UserProfile{}, apperrors.Internal(err)
	}
	return toUserProfile(user), nil
}

func (s *UserService) UpdateProfile(ctx context.Context, caller Caller, in ProfileInput) (UserProfile, error) {
	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = lockUser(tx, caller.UserID)
		if err != nil {
			return err
		}
		user.FirstName = in.FirstName
		user.LastName = in.LastName
		user.DateOfBirth = in.DateOfBirth
		user.AboutMe = in.AboutMe
		if err := tx.Model(user).Updates(map[string]interface{}{
			"first_name":    in.FirstName,
			"last_name":     in.LastName,
			"date_of_birth": in.DateOfBirth,
			"about_me":      in.AboutMe,
		}).Error; err != nil {
			return apperrors.Internal(err)
		}
		return nil
	})
	if err != nil {
		return UserProfile{}, err
	}

	s.logger.Info("profile_updated", zap.Uint("user_id", caller.UserID))
	return toUserProfile(*user), nil
}
