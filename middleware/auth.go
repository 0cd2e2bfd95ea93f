package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/szabolcsnagy0/kindly/apperrors"
	"github.com/szabolcsnagy0/kindly/services"
	"github.com/szabolcsnagy0/kindly/utils"
	"go.uber.org/zap"
)

const callerKey = "caller"

// Authenticator resolves a bearer token to a caller.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (services.Caller, error)
}

// Auth rejects requests without a valid bearer token and stores the caller on the context.
func Auth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			utils.Logger.Warn("missing_or_invalid_token", zap.String("path", c.Request.URL.Path))
			abortUnauthorized(c, apperrors.ErrInvalidToken)
			return
		}

		caller, err := auth.Authenticate(c.Request.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			utils.Logger.Warn("token_rejected", zap.Error(err))
			abortUnauthorized(c, err)
			return
		}

		SetCaller(c, caller)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, err error) {
	status := apperrors.KindOf(err).HTTPStatus()
	if status != http.StatusUnauthorized {
		status = http.StatusInternalServerError
	}
	code, message := apperrors.CodeOf(err), apperrors.ErrInvalidToken.Message
	if status == http.StatusInternalServerError {
		message = apperrors.ErrInternal.Message
	}
	c.AbortWithStatusJSON(status, ErrorBody(code, message))
}

func SetCaller(c *gin.Context, caller services.Caller) {
	c.Set(callerKey, caller)
}

// CallerFrom returns the caller stored by Auth.
func CallerFrom(c *gin.Context) (services.Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return services.Caller{}, false
	}
	caller, ok := v.(services.Caller)
	return caller, ok
}

// SecurityHeaders sets the response headers every JSON endpoint carries.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Next()
	}
}
