package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/szabolcsnagy0/kindly/apperrors"
	"github.com/szabolcsnagy0/kindly/utils"
	"go.uber.org/zap"
)

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				utils.Logger.Error("panic_recovered",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", c.GetString(RequestIDKey)),
				)
				utils.ErrorCount.WithLabelValues("recovery", apperrors.KindInternal.String()).Inc()
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorBody(apperrors.ErrInternal.Code, apperrors.ErrInternal.Message))
			}
		}()
		c.Next()
	}
}
