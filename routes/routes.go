package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/szabolcsnagy0/kindly/handlers"
	"github.com/szabolcsnagy0/kindly/middleware"
)

type Options struct {
	// ResponseTTL is how long cacheable GET responses stay in Redis.
	ResponseTTL time.Duration
}

// Setup mounts the whole API on router.
func Setup(router *gin.Engine, h *handlers.Handlers, auth middleware.Authenticator, opts Options) {
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	RegisterAuthRoutes(api, h)
	api.GET("/request-types", middleware.CacheMiddleware(opts.ResponseTTL), h.RequestTypes)
	api.GET("/badges/leaderboard", h.Leaderboard)

	protected := api.Group("")
	protected.Use(middleware.Auth(auth), middleware.InvalidateOnWrite())
	RegisterUserRoutes(protected, h, opts)
	RegisterRequestRoutes(protected, h)
	RegisterBadgeRoutes(protected, h)

	// admin routes authenticate with X-Admin-Key instead of a user token
	RegisterAdminRoutes(api.Group("/admin"), h)
}

func RegisterAuthRoutes(api *gin.RouterGroup, h *handlers.Handlers) {
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
}

func RegisterUserRoutes(api *gin.RouterGroup, h *handlers.Handlers, opts Options) {
	api.GET("/users/me", h.Me)
	api.PUT("/users/me", h.UpdateMe)
	api.GET("/users/me/stats", h.MyStats)
	api.GET("/users/me/quests", h.MyQuests)
	api.DELETE("/users/me/quests/:id", h.CancelQuest)
	api.GET("/users/:id", middleware.CacheMiddleware(opts.ResponseTTL), h.GetUser)
}

func RegisterRequestRoutes(api *gin.RouterGroup, h *handlers.Handlers) {
	api.POST("/request-types/suggest", h.SuggestCategories)

	api.POST("/requests", h.CreateRequest)
	api.GET("/requests", h.ListRequests)
	api.GET("/requests/mine", h.MyRequests)
	api.GET("/requests/:id", h.GetRequest)
	api.PUT("/requests/:id", h.UpdateRequest)
	api.DELETE("/requests/:id", h.DeleteRequest)
	api.POST("/requests/:id/complete", h.CompleteRequest)

	api.POST("/requests/:id/applications", h.Apply)
	api.DELETE("/requests/:id/applications", h.Withdraw)
	api.POST("/requests/:id/applications/:volunteerId/accept", h.Accept)
	api.POST("/requests/:id/rate-volunteer", h.RateVolunteer)
	api.POST("/requests/:id/rate-seeker", h.RateSeeker)
}

func RegisterBadgeRoutes(api *gin.RouterGroup, h *handlers.Handlers) {
	api.GET("/users/me/badges", h.MyBadges)
	api.POST("/users/me/badges/check", h.CheckBadges)
	api.GET("/users/:id/badges", h.UserBadges)
	api.GET("/badges/:badgeId/progress", h.BadgeProgress)
}

func RegisterAdminRoutes(admin *gin.RouterGroup, h *handlers.Handlers) {
	admin.POST("/badges/special", h.AwardSpecialBadge)
	admin.POST("/badges/bulk", h.BulkAwardBadges)
	admin.DELETE("/users/:id/badges", h.ResetUserBadges)
}
