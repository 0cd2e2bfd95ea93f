package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/szabolcsnagy0/kindly/services"
)

func (h *Handlers) Apply(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		fail(c, "create_application", err)
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		fail(c, "create_application", err)
		return
	}

	app, err := h.Applications.CreateApplication(c.Request.Context(), caller, id)
	if err != nil {
		fail(c, "create_application", err)
		return
	}
	ok(c, http.StatusCreated, app)
}

func (h *Handlers) Withdraw(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		fail(c, "delete_application", err)
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		fail(c, "delete_application", err)
		return
	}

	if err := h.Applications.DeleteApplication(c.Request.Context(), caller, id); err != nil {
		fail(c, "delete_application", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"request_id": id})
}

func (h *Handlers) Accept(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		fail(c, "accept_application", err)
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		fail(c, "accept_application", err)
		return
	}
	volunteerID, err := idParam(c, "volunteerId")
	if err != nil {
		fail(c, "accept_application", err)
		return
	}

	if err := h.Applications.AcceptApplication(c.Request.Context(), caller, id, volunteerID); err != nil {
		fail(c, "accept_application", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"request_id": id, "volunteer_id": volunteerID})
}

func (h *Handlers) RateVolunteer(c *gin.Context) {
	h.rate(c, "rate_volunteer", h.Applications.RateVolunteer)
}

func (h *Handlers) RateSeeker(c *gin.Context) {
	h.rate(c, "rate_seeker", h.Applications.RateSeeker)
}

type rateFunc func(ctx context.Context, caller services.Caller, requestID uint, in services.RatingInput) error

func (h *Handlers) rate(c *gin.Context, name string, rate rateFunc) {
	caller, err := callerOf(c)
	if err != nil {
		fail(c, name, err)
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		fail(c, name, err)
		return
	}
	var in services.RatingInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, name, err)
		return
	}

	if err := rate(c.Request.Context(), caller, id, in); err != nil {
		fail(c, name, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"request_id": id, "rating": in.Rating})
}
