package router

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/medtrack/internal/config"
	"github.com/medtrack/internal/handler"
	"github.com/medtrack/internal/logger"
)

const sessionName = "medtrack_session"

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, cfg config.AppConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), handler.RequestID())

	// 配置会话中间件
	secret := cfg.SessionSecret
	if secret == "" {
		secret = uuid.New().String()
		if api.AuthEnabled() {
			logger.Warn("session secret not configured, sessions will not survive restart")
		}
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 7 * 24 * 3600, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))

	// 本地照片目录，/uploads 为兼容旧地址的别名
	if cfg.PhotoStore == "" || cfg.PhotoStore == "local" {
		if cfg.UploadDir != "" {
			uploadPath := "/" + strings.Trim(cfg.UploadURLPath, "/")
			if uploadPath != "/" {
				r.Static(uploadPath, cfg.UploadDir)
			}
			if uploadPath != "/uploads" {
				r.Static("/uploads", cfg.UploadDir)
			}
		}
	}
	r.GET("/photos/:name", api.ServePhoto)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/login", api.Login)
		authGroup.POST("/logout", api.Logout)
		authGroup.GET("/me", api.Me)
	}

	apiGroup := r.Group("/api")
	if api.AuthEnabled() {
		apiGroup.Use(handler.AuthRequired())
	}
	{
		apiGroup.GET("/medications", api.ListMedications)
		apiGroup.POST("/medications", api.CreateMedication)
		apiGroup.GET("/medications/:id", api.GetMedication)
		apiGroup.PUT("/medications/:id", api.UpdateMedication)
		apiGroup.DELETE("/medications/:id", api.DeleteMedication)
		apiGroup.POST("/medications/:id/quantity", api.UpdateQuantity)
		apiGroup.POST("/medications/:id/photo", api.UploadMedicationPhoto)
		apiGroup.DELETE("/medications/:id/photo", api.DeleteMedicationPhoto)

		apiGroup.GET("/schedules", api.ListSchedules)
		apiGroup.POST("/schedules", api.CreateSchedule)
		apiGroup.GET("/schedules/:id", api.GetSchedule)
		apiGroup.PUT("/schedules/:id", api.UpdateSchedule)
		apiGroup.DELETE("/schedules/:id", api.DeleteSchedule)

		apiGroup.GET("/logs", api.ListLogs)
		apiGroup.POST("/logs", api.CreateLog)

		apiGroup.GET("/schedule/today", api.TodaySchedule)
		apiGroup.GET("/alerts/refill", api.RefillAlerts)
		apiGroup.GET("/alerts/out-of-stock", api.OutOfStock)
		apiGroup.GET("/stats/adherence", api.AdherenceStats)

		apiGroup.GET("/interactions", api.ListInteractions)
		apiGroup.POST("/interactions", api.CreateInteraction)
		apiGroup.DELETE("/interactions/:id", api.DeleteInteraction)

		apiGroup.GET("/backup/export", api.ExportBackup)
		apiGroup.POST("/backup/import", api.ImportBackup)
	}

	return r
}
