package middleware

import "github.com/gin-gonic/gin"

// ErrorBody is the failure envelope every endpoint answers with.
func ErrorBody(code, message string) gin.H {
	return gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
