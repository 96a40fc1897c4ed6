package api

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/dmarcviz/internal/auth"
	"github.com/jengzang/dmarcviz/internal/config"
	"github.com/jengzang/dmarcviz/internal/handler"
	"github.com/jengzang/dmarcviz/internal/middleware"
	"github.com/jengzang/dmarcviz/internal/repository"
	"github.com/jengzang/dmarcviz/internal/service"
)

// SetupRouter 设置路由. stop ends background work of the middleware.
func SetupRouter(cfg *config.Config, db *sql.DB, stop <-chan struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger())

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, "+middleware.RequestIDHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		status, code := "ok", http.StatusOK
		if err := db.PingContext(c.Request.Context()); err != nil {
			status, code = "database unavailable", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":  status,
			"message": "DMARC viewer API is running",
		})
	})

	// Repositories
	reportRepo := repository.NewReportRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	viewRepo := repository.NewViewRepository(db)
	importTaskRepo := repository.NewImportTaskRepository(db)

	// Services
	analysisService := service.NewAnalysisService(reportRepo, analysisRepo, viewRepo, cfg.Map, cfg.Workers)
	viewService := service.NewViewService(viewRepo, reportRepo)
	// The HTTP API only reads import history, so no resolver
	importService := service.NewImportService(reportRepo, importTaskRepo, nil)
	authenticator := auth.NewAuthenticator(cfg.Auth)

	// Handlers
	analysisHandler := handler.NewAnalysisHandler(analysisService)
	viewHandler := handler.NewViewHandler(viewService)
	exportHandler := handler.NewExportHandler(analysisService)
	authHandler := handler.NewAuthHandler(authenticator)
	importHandler := handler.NewImportHandler(importService)

	// API 路由组
	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(cfg.RateLimit, stop))
	{
		api.POST("/auth/login", authHandler.Login)

		protected := api.Group("")
		protected.Use(middleware.Auth(authenticator))
		{
			protected.GET("/overview", analysisHandler.GetOverview)
			protected.GET("/choices", viewHandler.Choices)

			views := protected.Group("/views")
			{
				views.GET("", viewHandler.ListViews)
				views.POST("", viewHandler.CreateView)
				views.PUT("/order", viewHandler.OrderViews)
				views.GET("/:id", viewHandler.GetView)
				views.PUT("/:id", viewHandler.UpdateView)
				views.DELETE("/:id", viewHandler.DeleteView)
				views.POST("/:id/clone", viewHandler.CloneView)

				views.GET("/:id/line", analysisHandler.GetLineData)
				views.GET("/:id/map", analysisHandler.GetMapData)
				views.GET("/:id/table", analysisHandler.GetTableData)

				views.GET("/:id/export", exportHandler.ExportTable)
				views.GET("/:id/line/export", exportHandler.ExportLine)
			}

			imports := protected.Group("/imports")
			{
				imports.GET("", importHandler.ListTasks)
				imports.GET("/:id", importHandler.GetTask)
			}
		}
	}

	return r
}
