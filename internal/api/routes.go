package api

import (
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"certforge/internal/api/middleware"
	"certforge/internal/auth"
	"certforge/internal/config"
	"certforge/internal/issuance"
	"certforge/internal/storage"
	"certforge/internal/template"
)

// RegisterRoutes wires the /v1 API surface.
func RegisterRoutes(
	router *gin.Engine,
	db *gorm.DB,
	cfg *config.Config,
	authService *auth.Service,
	redisClient redis.UniversalClient,
	asynqClient *asynq.Client,
	storageClient *storage.Client,
	templates *template.Store,
	engine *issuance.Engine,
) {
	authHandler := NewAuthHandler(db, authService, redisClient)
	templateHandler := NewTemplateHandler(templates)
	issuanceHandler := NewIssuanceHandler(engine, templates, asynqClient, cfg.Brand.ValidationBaseURL)
	validationHandler := NewValidationHandler(issuance.NewLookup(db), redisClient, cfg.API.ValidateRatePerMinute)
	assetHandler := NewAssetHandler(storageClient, cfg.API.ClamdAddr)
	authMiddleware := middleware.AuthMiddleware(authService)

	v1 := router.Group("/v1")
	{
		// Public: anyone holding a token may validate a certificate.
		v1.GET("/validate/:token", validationHandler.Validate)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authHandler.Logout)
		}

		templateGroup := v1.Group("/templates")
		templateGroup.Use(authMiddleware)
		{
			templateGroup.POST("", templateHandler.CreateTemplate)
			templateGroup.GET("", templateHandler.ListTemplates)
			templateGroup.GET("/:id", templateHandler.GetTemplate)
			templateGroup.PATCH("/:id", templateHandler.UpdateTemplate)
			templateGroup.DELETE("/:id", templateHandler.DeleteTemplate)
			templateGroup.POST("/:id/duplicate", templateHandler.DuplicateTemplate)
			templateGroup.POST("/:id/publish", templateHandler.PublishTemplate)
			templateGroup.POST("/:id/unpublish", templateHandler.UnpublishTemplate)
			templateGroup.GET("/:id/preview", templateHandler.PreviewTemplate)

			templateGroup.POST("/:id/elements", templateHandler.AddElement)
			templateGroup.PATCH("/:id/elements/:elementId", templateHandler.UpdateElement)
			templateGroup.DELETE("/:id/elements/:elementId", templateHandler.RemoveElement)

			templateGroup.POST("/:id/issue", issuanceHandler.Issue)
			templateGroup.POST("/:id/issue-batch", issuanceHandler.IssueBatch)
			templateGroup.GET("/:id/issuances", issuanceHandler.ListIssuances)
		}

		assetGroup := v1.Group("/assets")
		assetGroup.Use(authMiddleware)
		{
			assetGroup.POST("/upload", assetHandler.UploadAsset)
			assetGroup.GET("", assetHandler.ListAssets)
		}
	}
}
