package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/szabolcsnagy0/kindly/services"
)

func (h *Handlers) RequestTypes(c *gin.Context) {
	types, err := h.Categories.ListRequestTypes(c.Request.Context())
	if err != nil {
		fail(c, "request_types", err)
		return
	}
	ok(c, http.StatusOK, types)
}

func (h *Handlers) SuggestCategories(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		fail(c, "suggest_categories", err)
		return
	}
	var in services.SuggestInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, "suggest_categories", err)
		return
	}

	types, err := h.Categories.SuggestCategories(c.Request.Context(), caller, in)
	if err != nil {
		fail(c, "suggest_categories", err)
		return
	}
	ok(c, http.StatusOK, types)
}
