package controllers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zaqqye/defense_backend_v1/internal/apperror"
)

// uuidParam reads a path parameter that must hold a uuid.
func uuidParam(c *gin.Context, name string) (string, error) {
	raw := strings.TrimSpace(c.Param(name))
	if _, err := uuid.Parse(raw); err != nil {
		return "", apperror.Validation(name + " must be a uuid")
	}
	return raw, nil
}
