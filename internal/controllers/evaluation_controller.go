package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zaqqye/defense_backend_v1/internal/apperror"
	"github.com/zaqqye/defense_backend_v1/internal/middleware"
	"github.com/zaqqye/defense_backend_v1/internal/submission"
)

type EvaluationController struct {
	Service *submission.Service
}

func (ec *EvaluationController) Submit(c *gin.Context) {
	var req submission.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperror.Validation("invalid request body: "+err.Error()))
		return
	}

	// An evaluator may only submit as themselves, for the defense their
	// session was opened for.
	if claims, ok := middleware.CurrentClaims(c); ok && claims.Role == middleware.RoleEvaluator {
		if claims.EvaluatorID != req.EvaluatorID || claims.DefenseID != req.DefenseID {
			middleware.Fail(c, apperror.New(apperror.CodeForbidden, "token does not belong to this evaluator and defense"))
			return
		}
	}

	res, err := ec.Service.Submit(c.Request.Context(), req)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":          true,
		"message":          "evaluation recorded",
		"data":             res.Evaluation,
		"evaluatorId":      res.EvaluatorID,
		"defenseCompleted": res.Completion.DefenseCompleted,
		"timestamp":        time.Now().UTC(),
	})
}
