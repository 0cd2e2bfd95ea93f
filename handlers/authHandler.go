package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/szabolcsnagy0/kindly/services"
)

func (h *Handlers) Register(c *gin.Context) {
	var in services.RegisterInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, "register", err)
		return
	}

	res, err := h.Users.Register(c.Request.Context(), in)
	if err != nil {
		fail(c, "register", err)
		return
	}
	ok(c, http.StatusCreated, res)
}

func (h *Handlers) Login(c *gin.Context) {
	var in services.LoginInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, "login", err)
		return
	}

	res, err := h.Users.Login(c.Request.Context(), in)
	if err != nil {
		fail(c, "login", err)
		return
	}
	ok(c, http.StatusOK, res)
}
