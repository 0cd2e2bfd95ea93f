package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"
	"github.com/szabolcsnagy0/kindly/utils"
	"go.uber.org/zap"
)

const CSRFHeader = "X-CSRF-Token"

// CSRFProtection rejects unsafe requests without a matching X-CSRF-Token header.
func CSRFProtection(authKey []byte, secure bool) gin.HandlerFunc {
	protect := csrf.Protect(
		authKey,
		csrf.Secure(secure),
		csrf.HttpOnly(true),
		csrf.Path("/"),
		csrf.RequestHeader(CSRFHeader),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			utils.Logger.Warn("csrf_rejected",
				zap.String("path", r.URL.Path),
				zap.Error(csrf.FailureReason(r)),
			)
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":"CSRF_TOKEN_INVALID","message":"CSRF token validation failed"}}`))
		})),
	)

	return func(c *gin.Context) {
		passed := false
		handler := protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Header(CSRFHeader, csrf.Token(r))
			c.Next()
		}))
		handler.ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}
