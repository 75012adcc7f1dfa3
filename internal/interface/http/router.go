package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/eldertech-assistant/internal/infra/config"
	"github.com/yanqian/eldertech-assistant/pkg/metrics"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(handler.logger),
		metricsMiddleware(),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		errorHandlingMiddleware(handler.logger),
		rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger),
	)

	router.GET("/", handler.Root)
	router.GET("/healthz", handler.Health)
	if cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(metrics.Handler()))
	}

	requireUser := authMiddleware(handler.authSvc)
	requireAdmin := adminMiddleware()

	api := router.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/register", handler.Register)
		authGroup.POST("/login", handler.Login)
		authGroup.POST("/refresh", handler.Refresh)
		authGroup.GET("/me", requireUser, handler.Me)
		authGroup.PUT("/profile", requireUser, handler.UpdateProfile)
		authGroup.POST("/logout", requireUser, handler.Logout)

		chatGroup := api.Group("/chat", requireUser)
		chatGroup.POST("/messages", handler.SendMessage)
		chatGroup.POST("/messages/stream", handler.StreamMessage)
		chatGroup.GET("/conversations", handler.ListConversations)
		chatGroup.GET("/conversations/:id/messages", handler.ConversationMessages)
		chatGroup.DELETE("/conversations/:id", handler.DeleteConversation)
		chatGroup.POST("/conversations/:id/export", handler.ExportConversation)

		speechGroup := api.Group("/speech")
		speechGroup.GET("/voices", handler.Voices)
		speechGroup.POST("/transcriptions", requireUser, handler.Transcribe)
		speechGroup.POST("/synthesis", requireUser, handler.Synthesize)

		faqGroup := api.Group("/faqs")
		faqGroup.GET("", handler.ListFAQs)
		faqGroup.GET("/categories", handler.FAQCategories)
		faqGroup.GET("/trending", handler.TrendingFAQ)
		faqGroup.GET("/:id", handler.GetFAQ)
		faqGroup.POST("/search", handler.SearchFAQ)
		faqGroup.POST("/ask", handler.SmartFAQ)
		faqGroup.POST("/:id/feedback", optionalAuthMiddleware(handler.authSvc), handler.FAQFeedback)
		faqGroup.POST("", requireUser, requireAdmin, handler.CreateFAQ)
		faqGroup.POST("/categories", requireUser, requireAdmin, handler.CreateFAQCategory)
		faqGroup.PUT("/:id", requireUser, requireAdmin, handler.UpdateFAQ)
		faqGroup.DELETE("/:id", requireUser, requireAdmin, handler.DeleteFAQ)

		adminGroup := api.Group("/admin", requireUser, requireAdmin)
		adminGroup.GET("/faq-analysis/report", handler.AnalysisReport)
		adminGroup.POST("/faq-analysis/runs", handler.RunAnalysis)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, cfg.HTTP.Retry, handler.logger),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}
