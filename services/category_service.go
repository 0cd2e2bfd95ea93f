package services

import (
	"context"
	"strings"

	"github.com/szabolcsnagy0/kindly/apperrors"
	"github.com/szabolcsnagy0/kindly/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SuggestInput struct {
	Description string `json:"description" validate:"required,max=2000"`
}

type CategoryService struct {
	db         *gorm.DB
	classifier CategoryClassifier
	logger     *zap.Logger
}

// NewCategoryService accepts a nil classifier; suggestions then report Unavailable.
func NewCategoryService(conn *gorm.DB, classifier CategoryClassifier, logger *zap.Logger) *CategoryService {
	return &CategoryService{db: conn, classifier: classifier, logger: logger}
}

func (s *CategoryService) ListRequestTypes(ctx context.Context) ([]models.RequestType, error) {
	var types []models.RequestType
	if err := s.db.WithContext(ctx).Order("id").Find(&types).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return types, nil
}

// SuggestCategories maps the classifier's answer back onto known categories,
// comparing names case-insensitively.
func (s *CategoryService) SuggestCategories(ctx context.Context, caller Caller, in SuggestInput) ([]models.RequestType, error) {
	if err := RequireRole(caller, RoleHelpSeeker); err != nil {
		return nil, err
	}
	if s.classifier == nil {
		return nil, apperrors.ErrAIUnavailable
	}

	types, err := s.ListRequestTypes(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(types))
	for _, rt := range types {
		names = append(names, rt.Name)
	}

	chosen, err := s.classifier.Classify(ctx, in.Description, names)
	if err != nil {
		s.logger.Error("category_classifier_failed", zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ErrAIUnavailable, err)
	}

	wanted := make(map[string]bool, len(chosen))
	for _, name := range chosen {
		wanted[strings.ToLower(strings.TrimSpace(name))] = true
	}

	matched := make([]models.RequestType, 0, len(chosen))
	for _, rt := range types {
		if wanted[strings.ToLower(rt.Name)] {
			matched = append(matched, rt)
		}
	}
	return matched, nil
}
