package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MyQuests lists the caller's live quests, replacing any that expired.
func (h *Handlers) MyQuests(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		fail(c, "get_quests", err)
		return
	}

	quests, err := h.Quests.GetUserQuests(c.Request.Context(), caller.UserID)
	if err != nil {
		fail(c, "get_quests", err)
		return
	}
	ok(c, http.StatusOK, quests)
}

func (h *Handlers) CancelQuest(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		fail(c, "cancel_quest", err)
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		fail(c, "cancel_quest", err)
		return
	}

	replacement, err := h.Quests.CancelQuest(c.Request.Context(), caller.UserID, id)
	if err != nil {
		fail(c, "cancel_quest", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"cancelled_id": id, "replacement": replacement})
}
