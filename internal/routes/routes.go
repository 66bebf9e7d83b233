package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/zaqqye/defense_backend_v1/internal/config"
	"github.com/zaqqye/defense_backend_v1/internal/controllers"
	"github.com/zaqqye/defense_backend_v1/internal/metrics"
	"github.com/zaqqye/defense_backend_v1/internal/middleware"
	"github.com/zaqqye/defense_backend_v1/internal/submission"
	"github.com/zaqqye/defense_backend_v1/internal/ws"
)

func Register(r *gin.Engine, db *gorm.DB, cfg *config.Config, svc *submission.Service, hub *ws.Hub) {
	authCfg := middleware.AuthConfig{
		JWTSecret:    cfg.JWTSecret,
		JWTExpiresIn: cfg.AccessTokenTTL(),
	}
	r.Use(middleware.ErrorDetail(cfg.IsDevelopment()))

	// Controllers
	evalCtrl := &controllers.EvaluationController{Service: svc}
	sessionCtrl := &controllers.SessionController{DB: db, Auth: authCfg}
	progressCtrl := &controllers.ProgressController{DB: db}
	adminCtrl := &controllers.AdminController{DB: db, CodeLength: cfg.AccessCodeLength}

	// Public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.POST("/api/v1/evaluators/session", sessionCtrl.Open)

	// Submissions accept anonymous callers; a presented token must match the body.
	r.POST("/api/v1/evaluations", middleware.OptionalAuth(db, authCfg), evalCtrl.Submit)

	// Protected
	api := r.Group("/api/v1", middleware.AuthMiddleware(db, authCfg))
	{
		api.GET("/defenses/:id/progress", progressCtrl.DefenseProgress)
		api.GET("/rooms/:id/progress", progressCtrl.RoomProgress)
		api.GET("/ws/defenses", ws.Handler(hub))

		// Admin-only
		admin := api.Group("/admin", middleware.RequireRoles(middleware.RoleAdmin))
		{
			admin.GET("/defenses", progressCtrl.ListDefenses)
			admin.POST("/defenses/:id/evaluators/:evaluator_id/access-code", adminCtrl.IssueAccessCode)
		}
	}
}
