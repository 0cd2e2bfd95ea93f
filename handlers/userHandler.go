package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/szabolcsnagy0/kindly/services"
)

func (h *Handlers) Me(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		fail(c, "get_profile", err)
		return
	}

	profile, err := h.Users.GetUser(c.Request.Context(), caller.UserID)
	if err != nil {
		fail(c, "get_profile", err)
		return
	}
	ok(c, http.StatusOK, profile)
}

func (h *Handlers) UpdateMe(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		fail(c, "update_profile", err)
		return
	}
	var in services.ProfileInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, "update_profile", err)
		return
	}

	profile, err := h.Users.UpdateProfile(c.Request.Context(), caller, in)
	if err != nil {
		fail(c, "update_profile", err)
		return
	}
	ok(c, http.StatusOK, profile)
}

func (h *Handlers) GetUser(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		fail(c, "get_user", err)
		return
	}

	profile, err := h.Users.GetUser(c.Request.Context(), id)
	if err != nil {
		fail(c, "get_user", err)
		return
	}
	ok(c, http.StatusOK, profile)
}

func (h *Handlers) MyStats(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		fail(c, "get_stats", err)
		return
	}

	stats, err := h.Stats.GetUserStats(c.Request.Context(), caller.UserID)
	if err != nil {
		fail(c, "get_stats", err)
		return
	}
	ok(c, http.StatusOK, stats)
}
