package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/warecover/backend/internal/config"
	"github.com/warecover/backend/internal/db"
	"github.com/warecover/backend/internal/engine"
	"github.com/warecover/backend/internal/http/handlers"
	"github.com/warecover/backend/internal/http/middleware"

	_ "github.com/warecover/backend/docs"
)

func Router(cfg config.Config, store *db.Store, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.MaxMultipartMemory = cfg.MaxUploadSizeMB << 20

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:        store,
		Validator:    validator.New(),
		Logger:       logger,
		AdminKey:     cfg.AdminKey,
		NameConflict: engine.NameConflictPolicy(cfg.NameConflict),
		DefaultTopN:  cfg.DefaultTopN,
	}

	r.GET("/healthz", h.Healthz)

	sessions := r.Group("/api/sessions/:sid")
	{
		sessions.GET("/warehouses", h.WarehousesList)
		sessions.GET("/report", h.Report)
		sessions.GET("/recommendations", h.Recommendations)
		sessions.GET("/simulate/:wid", h.Simulate)
		sessions.GET("/export", h.Export)
		sessions.GET("/uploads", h.UploadsList)
	}

	admin := sessions.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/speeds", h.UploadSpeeds)
		admin.POST("/sales", h.UploadSales)
		admin.PUT("/active", h.SetActive)
		admin.POST("/active/:wid", h.AddActive)
		admin.DELETE("/active/:wid", h.RemoveActive)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
