package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/szabolcsnagy0/kindly/apperrors"
	"github.com/szabolcsnagy0/kindly/middleware"
	"github.com/szabolcsnagy0/kindly/services"
	"github.com/szabolcsnagy0/kindly/utils"
	"go.uber.org/zap"
)

// AdminKeyHeader carries the shared admin secret for badge administration.
const AdminKeyHeader = "X-Admin-Key"

// Handlers binds the HTTP surface to the domain services.
type Handlers struct {
	Users        *services.UserService
	Requests     *services.RequestService
	Applications *services.ApplicationService
	Badges       *services.BadgeService
	Quests       *services.QuestService
	Categories   *services.CategoryService
	Stats        *services.StatsService
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// fail writes the error envelope with the status mapped from the error kind.
func fail(c *gin.Context, handler string, err error) {
	kind := apperrors.KindOf(err)
	utils.ErrorCount.WithLabelValues(handler, kind.String()).Inc()

	message := apperrors.ErrInternal.Message
	var domainErr *apperrors.Error
	if kind == apperrors.KindInternal {
		utils.Logger.Error(handler+"_failed",
			zap.Error(err),
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		)
	} else if errors.As(err, &domainErr) {
		message = domainErr.Message
		utils.Logger.Debug(handler+"_rejected", zap.String("code", domainErr.Code))
	}

	c.AbortWithStatusJSON(kind.HTTPStatus(), middleware.ErrorBody(apperrors.CodeOf(err), message))
}

// bindJSON decodes the body into dest and runs its validate tags.
func bindJSON(c *gin.Context, dest interface{}) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		return apperrors.Validation("request body is not valid JSON")
	}
	return middleware.ValidateStruct(dest)
}

func bindQuery(c *gin.Context, dest interface{}) error {
	if err := c.ShouldBindQuery(dest); err != nil {
		return apperrors.Validation("invalid query parameters")
	}
	return nil
}

func idParam(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.Validation(name + " must be a positive integer")
	}
	return uint(id), nil
}

func callerOf(c *gin.Context) (services.Caller, error) {
	caller, found := middleware.CallerFrom(c)
	if !found {
		return services.Caller{}, apperrors.ErrInvalidToken
	}
	return caller, nil
}

func adminToken(c *gin.Context) services.AdminToken {
	return services.AdminToken(c.GetHeader(AdminKeyHeader))
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
