package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/szabolcsnagy0/kindly/apperrors"
	"github.com/szabolcsnagy0/kindly/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// speedyWindow is how soon after applying a volunteer must finish for "Speedy Service".
const speedyWindow = 24 * time.Hour

type RequestService struct {
	db          *gorm.DB
	badges      *BadgeService
	progression *Progression
	quests      *QuestService
	logger      *zap.Logger
	now         func() time.Time
}

func NewRequestService(conn *gorm.DB, badges *BadgeService, progression *Progression, quests *QuestService, logger *zap.Logger) *RequestService {
	return &RequestService{
		db:          conn,
		badges:      badges,
		progression: progression,
		quests:      quests,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for completion badges.
func (s *RequestService) WithClock(now func() time.Time) *RequestService {
	s.now = now
	return s
}

// CompletionResult describes what completing a request granted the volunteer.
type CompletionResult struct {
	Request          RequestInfo           `json:"request"`
	ExperienceGained int                   `json:"experience_gained"`
	VolunteerID      uint                  `json:"volunteer_id"`
	VolunteerBadges  []int                 `json:"volunteer_badges"`
	Quests           []QuestProgressResult `json:"quests"`
}

func (s *RequestService) CreateRequest(ctx context.Context, caller Caller, in RequestInput) (RequestInfo, error) {
	if err := RequireRole(caller, RoleHelpSeeker); err != nil {
		return RequestInfo{}, err
	}
	if in.Reward < 0 {
		return RequestInfo{}, apperrors.Validation("reward must not be negative")
	}

	var req models.Request
	err := s.badges.awardTx(ctx, s.db, func(tx *gorm.DB) error {
		creator, err := lockUser(tx, caller.UserID)
		if err != nil {
			return err
		}
		types, err := loadRequestTypes(tx, in.RequestTypeIDs)
		if err != nil {
			return err
		}

		req = models.Request{
			Name:         in.Name,
			Description:  in.Description,
			Address:      in.Address,
			Latitude:     in.Latitude,
			Longitude:    in.Longitude,
			StartsAt:     in.Start,
			EndsAt:       in.End,
			Reward:       in.Reward,
			Status:       models.RequestOpen,
			CreatorID:    creator.ID,
			RequestTypes: types,
		}
		if err := tx.Omit("Creator").Create(&req).Error; err != nil {
			return apperrors.Internal(err)
		}

		count, err := countRequestsCreated(tx, creator.ID)
		if err != nil {
			return apperrors.Internal(err)
		}
		if badgeID, ok := requestMilestones[count]; ok {
			if _, _, err := s.badges.award(tx, creator, badgeID); err != nil {
				return err
			}
		}
		if in.Reward >= GenerousRewardThreshold {
			if _, _, err := s.badges.award(tx, creator, BadgeGenerousSoul); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return RequestInfo{}, err
	}

	invalidateStats(ctx, s.logger, caller.UserID)
	s.logger.Info("request_created",
		zap.Uint("request_id", req.ID),
		zap.Uint("creator_id", caller.UserID),
		zap.Int("reward", req.Reward),
	)
	return toRequestInfo(req), nil
}

// lockOwnedRequest locks a request the caller may still edit.
func lockOwnedRequest(tx *gorm.DB, caller Caller, requestID uint) (*models.Request, error) {
	req, err := lockRequest(tx, requestID)
	if err != nil {
		return nil, err
	}
	if req.CreatorID != caller.UserID || req.Status != models.RequestOpen || req.ApplicationCount > 0 {
		return nil, apperrors.ErrRequestCannotBeUpdated
	}

	var applications int64
	if err := tx.Model(&models.Application{}).Where("request_id = ?", req.ID).Count(&applications).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	if applications > 0 {
		return nil, apperrors.ErrRequestCannotBeUpdated
	}
	return req, nil
}

func (s *RequestService) UpdateRequest(ctx context.Context, caller Caller, requestID uint, in RequestInput) (RequestInfo, error) {
	if err := RequireRole(caller, RoleHelpSeeker); err != nil {
		return RequestInfo{}, err
	}
	if in.Reward < 0 {
		return RequestInfo{}, apperrors.Validation("reward must not be negative")
	}

	var req *models.Request
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		req, err = lockOwnedRequest(tx, caller, requestID)
		if err != nil {
			return err
		}

		if len(in.RequestTypeIDs) > 0 {
			types, err := loadRequestTypes(tx, in.RequestTypeIDs)
			if err != nil {
				return err
			}
			if err := tx.Model(req).Association("RequestTypes").Replace(types); err != nil {
				return apperrors.Internal(err)
			}
		}

		if err := tx.Model(req).Updates(map[string]interface{}{
			"name":        in.Name,
			"description": in.Description,
			"address":     in.Address,
			"latitude":    in.Latitude,
			"longitude":   in.Longitude,
			"starts_at":   in.Start,
			"ends_at":     in.End,
			"reward":      in.Reward,
		}).Error; err != nil {
			return apperrors.Internal(err)
		}

		return tx.Preload("RequestTypes").First(req, req.ID).Error
	})
	if err != nil {
		return RequestInfo{}, err
	}

	s.logger.Info("request_updated", zap.Uint("request_id", requestID))
	return toRequestInfo(*req), nil
}

func (s *RequestService) DeleteRequest(ctx context.Context, caller Caller, requestID uint) error {
	if err := RequireRole(caller, RoleHelpSeeker); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := lockOwnedRequest(tx, caller, requestID)
		if err != nil {
			return err
		}
		if err := tx.Model(req).Association("RequestTypes").Clear(); err != nil {
			return apperrors.Internal(err)
		}
		if err := tx.Delete(req).Error; err != nil {
			return apperrors.Internal(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	invalidateStats(ctx, s.logger, caller.UserID)
	s.logger.Info("request_deleted", zap.Uint("request_id", requestID))
	return nil
}

// CompleteRequest moves a CLOSED request to COMPLETED and rewards both parties.
// Every reward is applied in the same transaction as the status change.
func (s *RequestService) CompleteRequest(ctx context.Context, caller Caller, requestID uint) (CompletionResult, error) {
	if err := RequireRole(caller, RoleHelpSeeker); err != nil {
		return CompletionResult{}, err
	}

	var result CompletionResult
	err := s.badges.awardTx(ctx, s.db, func(tx *gorm.DB) error {
		req, err := lockRequest(tx, requestID)
		if err != nil {
			return err
		}
		if req.CreatorID != caller.UserID {
			return apperrors.ErrRequestNotFound
		}
		if req.Status != models.RequestClosed {
			return apperrors.ErrRequestCannotBeUpdated
		}
		if err := tx.Model(req).Association("RequestTypes").Find(&req.RequestTypes); err != nil {
			return apperrors.Internal(err)
		}

		var accepted models.Application
		err = tx.Where("request_id = ? AND status = ?", req.ID, models.ApplicationAccepted).First(&accepted).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.Internal(errors.New("closed request has no accepted application"))
		}
		if err != nil {
			return apperrors.Internal(err)
		}

		users, err := lockUsers(tx, req.CreatorID, accepted.UserID)
		if err != nil {
			return err
		}
		creator, volunteer := users[req.CreatorID], users[accepted.UserID]

		if err := tx.Model(req).Update("status", models.RequestCompleted).Error; err != nil {
			return apperrors.Internal(err)
		}
		req.Status = models.RequestCompleted

		xp := req.CalculateExperience()
		if err := s.progression.GrantExperience(tx, creator, xp); err != nil {
			return err
		}
		if err := s.progression.GrantExperience(tx, volunteer, xp); err != nil {
			return err
		}

		awarded, err := s.awardCompletionBadges(tx, volunteer, accepted, *req)
		if err != nil {
			return err
		}

		quests, err := s.quests.progressQuests(tx, volunteer, req.CategoryIDs())
		if err != nil {
			return err
		}

		result = CompletionResult{
			Request:          toRequestInfo(*req),
			ExperienceGained: xp,
			VolunteerID:      volunteer.ID,
			VolunteerBadges:  awarded,
			Quests:           quests,
		}
		return nil
	})
	if err != nil {
		return CompletionResult{}, err
	}

	invalidateStats(ctx, s.logger, caller.UserID, result.VolunteerID)
	s.logger.Info("request_completed",
		zap.Uint("request_id", requestID),
		zap.Uint("volunteer_id", result.VolunteerID),
		zap.Int("experience", result.ExperienceGained),
	)
	return result, nil
}

func (s *RequestService) awardCompletionBadges(tx *gorm.DB, volunteer *models.User, accepted models.Application, req models.Request) ([]int, error) {
	candidates := make([]int, 0, 2+len(req.RequestTypes))

	if s.now().Sub(accepted.AppliedAt) < speedyWindow {
		candidates = append(candidates, BadgeSpeedyService)
	}

	completed, err := countCompletedHelps(tx, volunteer.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if badgeID, ok := completionMilestones[completed]; ok {
		candidates = append(candidates, badgeID)
	}

	// categories without a catalog badge award nothing
	for _, id := range req.CategoryIDs() {
		if _, ok := LookupBadge(CategoryBadgeID(id)); ok {
			candidates = append(candidates, CategoryBadgeID(id))
		}
	}

	awarded := make([]int, 0, len(candidates))
	for _, badgeID := range candidates {
		_, created, err := s.badges.award(tx, volunteer, badgeID)
		if err != nil {
			return nil, err
		}
		if created {
			awarded = append(awarded, badgeID)
		}
	}
	return awarded, nil
}

func (s *RequestService) GetMyRequests(ctx context.Context, caller Caller, filter MyRequestsFilter) (Page[RequestInfo], error) {
	if err := RequireRole(caller, RoleHelpSeeker); err != nil {
		return Page[RequestInfo]{}, err
	}
	page := filter.PageQuery.normalized()

	base := s.db.WithContext(ctx).Model(&models.Request{}).Where("requests.creator_id = ?", caller.UserID)
	switch status := strings.ToUpper(filter.Status); status {
	case "", "ALL":
	case string(models.RequestOpen), string(models.RequestClosed), string(models.RequestCompleted):
		base = base.Where("requests.status = ?", status)
	default:
		return Page[RequestInfo]{}, apperrors.Validation("unknown status filter")
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return Page[RequestInfo]{}, apperrors.Internal(err)
	}

	var requests []models.Request
	if err := page.apply(base.Preload("RequestTypes")).Find(&requests).Error; err != nil {
		return Page[RequestInfo]{}, apperrors.Internal(err)
	}

	data := make([]RequestInfo, 0, len(requests))
	for _, r := range requests {
		data = append(data, toRequestInfo(r))
	}
	return Page[RequestInfo]{Data: data, Total: total, Page: page.Page, PageSize: page.PageSize}, nil
}

// GetRequests lists requests for a volunteer along with the caller's application status.
// Status "ALL" means open requests plus every request the caller applied to.
func (s *RequestService) GetRequests(ctx context.Context, caller Caller, filter RequestsFilter) (Page[RequestWithApplicationStatus], error) {
	if err := RequireRole(caller, RoleVolunteer); err != nil {
		return Page[RequestWithApplicationStatus]{}, err
	}
	page := filter.PageQuery.normalized()

	conn := s.db.WithContext(ctx)
	base := conn.Model(&models.Request{}).
		Joins("LEFT JOIN applications ON applications.request_id = requests.id AND applications.user_id = ?", caller.UserID)

	switch strings.ToUpper(filter.Status) {
	case "OPEN":
		base = base.Where("requests.status = ?", models.RequestOpen)
	case "APPLIED":
		base = base.Where("applications.status = ?", models.ApplicationPending)
	case "COMPLETED":
		base = base.Where("requests.status = ?", models.RequestCompleted)
	case "", "ALL":
		base = base.Where("requests.status = ? OR applications.id IS NOT NULL", models.RequestOpen)
	default:
		return Page[RequestWithApplicationStatus]{}, apperrors.Validation("unknown status filter")
	}

	if filter.MaxReward != nil {
		base = base.Where("requests.reward < ?", *filter.MaxReward)
	}
	if filter.MinReward != nil {
		base = base.Where("requests.reward > ?", *filter.MinReward)
	}
	if len(filter.RequestTypeIDs) > 0 {
		base = base.Where("EXISTS (SELECT 1 FROM type_of WHERE type_of.request_id = requests.id AND type_of.request_type_id IN ?)",
			filter.RequestTypeIDs)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return Page[RequestWithApplicationStatus]{}, apperrors.Internal(err)
	}

	var rows []struct {
		ID                uint
		ApplicationStatus string
	}
	if err := page.apply(base.Select("requests.id, COALESCE(applications.status, ?) AS application_status", models.NotApplied)).
		Scan(&rows).Error; err != nil {
		return Page[RequestWithApplicationStatus]{}, apperrors.Internal(err)
	}

	data := make([]RequestWithApplicationStatus, 0, len(rows))
	if len(rows) == 0 {
		return Page[RequestWithApplicationStatus]{Data: data, Total: total, Page: page.Page, PageSize: page.PageSize}, nil
	}

	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	var requests []models.Request
	if err := conn.Preload("RequestTypes").Preload("Creator").Where("id IN ?", ids).Find(&requests).Error; err != nil {
		return Page[RequestWithApplicationStatus]{}, apperrors.Internal(err)
	}
	byID := make(map[uint]models.Request, len(requests))
	for _, r := range requests {
		byID[r.ID] = r
	}

	for _, row := range rows {
		r := byID[row.ID]
		data = append(data, RequestWithApplicationStatus{
			RequestInfo:       toRequestInfo(r),
			ApplicationStatus: row.ApplicationStatus,
			Creator:           toUserInfo(r.Creator),
		})
	}
	return Page[RequestWithApplicationStatus]{Data: data, Total: total, Page: page.Page, PageSize: page.PageSize}, nil
}

func (s *RequestService) GetRequestForHelpSeeker(ctx context.Context, caller Caller, requestID uint) (RequestDetailForHelpSeeker, error) {
	if err := RequireRole(caller, RoleHelpSeeker); err != nil {
		return RequestDetailForHelpSeeker{}, err
	}

	var req models.Request
	err := s.db.WithContext(ctx).
		Preload("RequestTypes").
		Preload("Applications", func(tx *gorm.DB) *gorm.DB { return tx.Order("applied_at, id") }).
		Preload("Applications.Volunteer").
		Where("id = ? AND creator_id = ?", requestID, caller.UserID).
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RequestDetailForHelpSeeker{}, apperrors.ErrRequestNotFound
	}
	if err != nil {
		return RequestDetailForHelpSeeker{}, apperrors.Internal(err)
	}

	detail := RequestDetailForHelpSeeker{
		RequestInfo:  toRequestInfo(req),
		Applications: make([]ApplicationInfo, 0, len(req.Applications)),
	}
	for _, a := range req.Applications {
		detail.Applications = append(detail.Applications, toApplicationInfo(a))
		if a.VolunteerRating != nil {
			detail.HasRatedHelper = true
		}
	}
	return detail, nil
}

func (s *RequestService) GetRequestForVolunteer(ctx context.Context, caller Caller, requestID uint) (RequestDetailForVolunteer, error) {
	if err := RequireRole(caller, RoleVolunteer); err != nil {
		return RequestDetailForVolunteer{}, err
	}

	conn := s.db.WithContext(ctx)
	var req models.Request
	err := conn.Preload("RequestTypes").Preload("Creator").First(&req, requestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RequestDetailForVolunteer{}, apperrors.ErrRequestNotFound
	}
	if err != nil {
		return RequestDetailForVolunteer{}, apperrors.Internal(err)
	}

	detail := RequestDetailForVolunteer{
		RequestInfo:       toRequestInfo(req),
		ApplicationStatus: models.NotApplied,
		Creator:           toUserInfo(req.Creator),
	}

	var app models.Application
	err = conn.Where("request_id = ? AND user_id = ?", requestID, caller.UserID).First(&app).Error
	switch {
	case err == nil:
		detail.ApplicationStatus = string(app.Status)
		detail.HasRatedSeeker = app.HelpSeekerRating != nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return RequestDetailForVolunteer{}, apperrors.Internal(err)
	}
	return detail, nil
}
