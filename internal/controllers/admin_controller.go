package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/zaqqye/defense_backend_v1/internal/apperror"
	"github.com/zaqqye/defense_backend_v1/internal/logutils"
	"github.com/zaqqye/defense_backend_v1/internal/middleware"
	"github.com/zaqqye/defense_backend_v1/internal/models"
	"github.com/zaqqye/defense_backend_v1/internal/utils"
)

type AdminController struct {
	DB         *gorm.DB
	CodeLength int
}

// IssueAccessCode replaces the evaluator's access code for a defense. The
// plaintext is only ever returned here.
func (ac *AdminController) IssueAccessCode(c *gin.Context) {
	defenseID, err := uuidParam(c, "id")
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	evaluatorID, err := uuidParam(c, "evaluator_id")
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	code, hash, err := utils.NewAccessCode(ac.CodeLength)
	if err != nil {
		middleware.Fail(c, apperror.Internal("generate access code", err))
		return
	}
	now := time.Now().UTC()
	q := ac.DB.WithContext(c.Request.Context()).Model(&models.EvaluatorDefense{}).
		Where("evaluator_id_ref = ? AND defense_id_ref = ?", evaluatorID, defenseID).
		Updates(map[string]any{"access_code": hash, "issued_at": now, "revoked_at": nil})
	if q.Error != nil {
		middleware.Fail(c, q.Error)
		return
	}
	if q.RowsAffected == 0 {
		middleware.Fail(c, apperror.NotFound("evaluator is not registered for this defense"))
		return
	}

	logutils.Log.WithFields(logutils.Fields{
		"evaluator_id": evaluatorID,
		"defense_id":   defenseID,
	}).Info("access code issued")
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "access code issued",
		"data": gin.H{
			"evaluatorId": evaluatorID,
			"defenseId":   defenseID,
			"accessCode":  code,
			"issuedAt":    now,
		},
		"timestamp": now,
	})
}
