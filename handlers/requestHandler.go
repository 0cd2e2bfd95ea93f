package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/szabolcsnagy0/kindly/services"
)

func (h *Handlers) CreateRequest(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		fail(c, "create_request", err)
		return
	}
	var in services.RequestInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, "create_request", err)
		return
	}

	req, err := h.Requests.CreateRequest(c.Request.Context(), caller, in)
	if err != nil {
		fail(c, "create_request", err)
		return
	}
	ok(c, http.StatusCreated, req)
}

func (h *Handlers) UpdateRequest(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		fail(c, "update_request", err)
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		fail(c, "update_request", err)
		return
	}
	var in services.RequestInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, "update_request", err)
		return
	}

	req, err := h.Requests.UpdateRequest(c.Request.Context(), caller, id, in)
	if err != nil {
		fail(c, "update_request", err)
		return
	}
	ok(c, http.StatusOK, req)
}

func (h *Handlers) DeleteRequest(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		fail(c, "delete_request", err)
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		fail(c, "delete_request", err)
		return
	}

	if err := h.Requests.DeleteRequest(c.Request.Context(), caller, id); err != nil {
		fail(c, "delete_request", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id})
}

func (h *Handlers) CompleteRequest(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		fail(c, "complete_request", err)
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		fail(c, "complete_request", err)
		return
	}

	res, err := h.Requests.CompleteRequest(c.Request.Context(), caller, id)
	if err != nil {
		fail(c, "complete_request", err)
		return
	}
	ok(c, http.StatusOK, res)
}

// MyRequests lists the help seeker's own requests.
func (h *Handlers) MyRequests(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		fail(c, "my_requests", err)
		return
	}
	var filter services.MyRequestsFilter
	if err := bindQuery(c, &filter); err != nil {
		fail(c, "my_requests", err)
		return
	}

	page, err := h.Requests.GetMyRequests(c.Request.Context(), caller, filter)
	if err != nil {
		fail(c, "my_requests", err)
		return
	}
	ok(c, http.StatusOK, page)
}

// ListRequests is the volunteer's request feed.
func (h *Handlers) ListRequests(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		fail(c, "list_requests", err)
		return
	}
	var filter services.RequestsFilter
	if err := bindQuery(c, &filter); err != nil {
		fail(c, "list_requests", err)
		return
	}

	page, err := h.Requests.GetRequests(c.Request.Context(), caller, filter)
	if err != nil {
		fail(c, "list_requests", err)
		return
	}
	ok(c, http.StatusOK, page)
}

// GetRequest answers with the detail view matching the caller's role.
func (h *Handlers) GetRequest(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		fail(c, "get_request", err)
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		fail(c, "get_request", err)
		return
	}

	ctx := c.Request.Context()
	if caller.Role == services.RoleHelpSeeker {
		detail, err := h.Requests.GetRequestForHelpSeeker(ctx, caller, id)
		if err != nil {
			fail(c, "get_request", err)
			return
		}
		ok(c, http.StatusOK, detail)
		return
	}

	detail, err := h.Requests.GetRequestForVolunteer(ctx, caller, id)
	if err != nil {
		fail(c, "get_request", err)
		return
	}
	ok(c, http.StatusOK, detail)
}
