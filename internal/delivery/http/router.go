// Package http exposes the review scheduler over a JSON API.
package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Logger              *zap.Logger
	AuthMiddleware      *AuthMiddleware
	ReviewHandler       *ReviewHandler
	TopicHandler        *TopicHandler
	ProgressHandler     *ProgressHandler
	NotificationHandler *NotificationHandler
	AllowOrigins        []string
	RequestTimeout      time.Duration
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(cfg.Logger))
	if len(cfg.AllowOrigins) > 0 {
		router.Use(CORS(cfg.AllowOrigins))
	}

	router.GET("/healthcheck", HealthCheck)

	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth(), RequestTimeout(cfg.RequestTimeout))

	// Reviews
	api.POST("/reviews", cfg.ReviewHandler.Submit)
	api.GET("/reviews/:flashcardId", cfg.ReviewHandler.Get)
	api.GET("/reviews/:flashcardId/preview", cfg.ReviewHandler.Preview)
	api.GET("/reviews/:flashcardId/history", cfg.ReviewHandler.History)
	api.POST("/reviews/:flashcardId/rebuild", cfg.ReviewHandler.Rebuild)

	// Topics
	api.GET("/topics/:id/due", cfg.TopicHandler.Due)
	api.GET("/topics/:id/session", cfg.TopicHandler.Session)
	api.GET("/topics/:id/progress", cfg.ProgressHandler.Topic)
	api.DELETE("/topics/:id/progress", cfg.ProgressHandler.Reset)

	// Progress
	api.GET("/progress", cfg.ProgressHandler.All)
	api.POST("/progress/assessment", cfg.ProgressHandler.Assessment)

	// Notifications
	if cfg.NotificationHandler != nil {
		api.PUT("/notifications", cfg.NotificationHandler.Put)
	}

	return router
}
