package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/zaqqye/defense_backend_v1/internal/apperror"
	"github.com/zaqqye/defense_backend_v1/internal/middleware"
	"github.com/zaqqye/defense_backend_v1/internal/models"
	"github.com/zaqqye/defense_backend_v1/internal/utils"
)

// SessionController exchanges an evaluator's one-time access code for a
// session token.
type SessionController struct {
	DB   *gorm.DB
	Auth middleware.AuthConfig
}

type openSessionRequest struct {
	EvaluatorID string `json:"evaluatorId" binding:"required"`
	DefenseID   string `json:"defenseId" binding:"required"`
	AccessCode  string `json:"accessCode" binding:"required"`
}

func (sc *SessionController) Open(c *gin.Context) {
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperror.Validation(err.Error()))
		return
	}

	var link models.EvaluatorDefense
	err := sc.DB.WithContext(c.Request.Context()).
		Where("evaluator_id_ref = ? AND defense_id_ref = ?", req.EvaluatorID, req.DefenseID).
		First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		middleware.Fail(c, apperror.New(apperror.CodeUnauthorized, "invalid access code"))
		return
	}
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	if link.AccessCode == nil {
		middleware.Fail(c, apperror.New(apperror.CodeUnauthorized, "access code has been revoked"))
		return
	}
	if !utils.CheckPassword(*link.AccessCode, req.AccessCode) {
		middleware.Fail(c, apperror.New(apperror.CodeUnauthorized, "invalid access code"))
		return
	}

	token, expires, err := middleware.IssueToken(sc.Auth, middleware.Claims{
		Role:        middleware.RoleEvaluator,
		EvaluatorID: req.EvaluatorID,
		DefenseID:   req.DefenseID,
	})
	if err != nil {
		middleware.Fail(c, apperror.Internal("sign session token", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "session opened",
		"data": gin.H{
			"accessToken": token,
			"expiresAt":   expires.UTC(),
		},
		"timestamp": time.Now().UTC(),
	})
}
