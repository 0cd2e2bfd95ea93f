package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/szabolcsnagy0/kindly/apperrors"
	"github.com/szabolcsnagy0/kindly/services"
)

type bulkAwardInput struct {
	UserIDs []uint `json:"user_ids" validate:"required,min=1,max=500,dive,gt=0"`
	BadgeID int    `json:"badge_id" validate:"required,gt=0"`
}

func badgeParam(c *gin.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("badgeId"))
	if err != nil || id <= 0 {
		return 0, apperrors.Validation("badgeId must be a positive integer")
	}
	return id, nil
}

func (h *Handlers) MyBadges(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		fail(c, "get_badges", err)
		return
	}
	h.userBadges(c, caller.UserID)
}

func (h *Handlers) UserBadges(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		fail(c, "get_badges", err)
		return
	}
	h.userBadges(c, id)
}

func (h *Handlers) userBadges(c *gin.Context, userID uint) {
	badges, err := h.Badges.GetUserBadges(c.Request.Context(), userID)
	if err != nil {
		fail(c, "get_badges", err)
		return
	}
	ok(c, http.StatusOK, badges)
}

func (h *Handlers) CheckBadges(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		fail(c, "check_badges", err)
		return
	}

	awarded, err := h.Badges.CheckAndAwardBadges(c.Request.Context(), caller.UserID)
	if err != nil {
		fail(c, "check_badges", err)
		return
	}
	ok(c, http.StatusOK, awarded)
}

func (h *Handlers) BadgeProgress(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		fail(c, "badge_progress", err)
		return
	}
	badgeID, err := badgeParam(c)
	if err != nil {
		fail(c, "badge_progress", err)
		return
	}

	progress, err := h.Badges.GetBadgeProgress(c.Request.Context(), caller, badgeID)
	if err != nil {
		fail(c, "badge_progress", err)
		return
	}
	ok(c, http.StatusOK, progress)
}

func (h *Handlers) Leaderboard(c *gin.Context) {
	board, err := h.Badges.Leaderboard(c.Request.Context())
	if err != nil {
		fail(c, "leaderboard", err)
		return
	}
	ok(c, http.StatusOK, board)
}

// requireAdmin rejects the request before its input is looked at.
func (h *Handlers) requireAdmin(c *gin.Context, handler string) bool {
	if !h.Badges.AdminAllowed(adminToken(c)) {
		fail(c, handler, apperrors.ErrAdminRequired)
		return false
	}
	return true
}

func (h *Handlers) AwardSpecialBadge(c *gin.Context) {
	if !h.requireAdmin(c, "award_special_badge") {
		return
	}
	var in services.SpecialBadgeInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, "award_special_badge", err)
		return
	}

	badge, allowed, err := h.Badges.AwardSpecialBadge(c.Request.Context(), adminToken(c), in)
	if err != nil {
		fail(c, "award_special_badge", err)
		return
	}
	if !allowed {
		fail(c, "award_special_badge", apperrors.ErrAdminRequired)
		return
	}
	ok(c, http.StatusCreated, badge)
}

func (h *Handlers) BulkAwardBadges(c *gin.Context) {
	if !h.requireAdmin(c, "bulk_award_badges") {
		return
	}
	var in bulkAwardInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, "bulk_award_badges", err)
		return
	}

	results, allowed, err := h.Badges.BulkAwardBadges(c.Request.Context(), adminToken(c), in.UserIDs, in.BadgeID)
	if err != nil {
		fail(c, "bulk_award_badges", err)
		return
	}
	if !allowed {
		fail(c, "bulk_award_badges", apperrors.ErrAdminRequired)
		return
	}
	ok(c, http.StatusOK, results)
}

func (h *Handlers) ResetUserBadges(c *gin.Context) {
	if !h.requireAdmin(c, "reset_badges") {
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		fail(c, "reset_badges", err)
		return
	}

	allowed, err := h.Badges.ResetUserBadges(c.Request.Context(), adminToken(c), id)
	if err != nil {
		fail(c, "reset_badges", err)
		return
	}
	if !allowed {
		fail(c, "reset_badges", apperrors.ErrAdminRequired)
		return
	}
	ok(c, http.StatusOK, gin.H{"user_id": id})
}
