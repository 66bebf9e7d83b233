package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/zaqqye/defense_backend_v1/internal/apperror"
	"github.com/zaqqye/defense_backend_v1/internal/models"
)

const (
	RoleAdmin     = "admin"
	RoleEvaluator = "evaluator"

	claimsKey = "claims"
)

type AuthConfig struct {
	JWTSecret    string
	JWTExpiresIn time.Duration
}

// Claims identify either an admin or an evaluator bound to one defense.
type Claims struct {
	Role        string `json:"role"`
	EvaluatorID string `json:"evaluator_id,omitempty"`
	DefenseID   string `json:"defense_id,omitempty"`
	jwt.RegisteredClaims
}

func IssueToken(cfg AuthConfig, claims Claims) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(cfg.JWTExpiresIn)
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(expires)
	if claims.Subject == "" {
		claims.Subject = claims.EvaluatorID
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func ParseToken(secret, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func AuthMiddleware(db *gorm.DB, cfg AuthConfig) gin.HandlerFunc {
	return authenticate(db, cfg, false)
}

// OptionalAuth lets anonymous requests through but still rejects a bad token.
func OptionalAuth(db *gorm.DB, cfg AuthConfig) gin.HandlerFunc {
	return authenticate(db, cfg, true)
}

func authenticate(db *gorm.DB, cfg AuthConfig, optional bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" && optional {
			c.Next()
			return
		}
		if auth == "" || !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			Fail(c, apperror.New(apperror.CodeUnauthorized, "missing or invalid authorization header"))
			return
		}
		tokenStr := strings.TrimSpace(auth[len("Bearer "):])

		claims, err := ParseToken(cfg.JWTSecret, tokenStr)
		if err != nil {
			Fail(c, apperror.New(apperror.CodeUnauthorized, "invalid token"))
			return
		}

		switch claims.Role {
		case RoleAdmin:
		case RoleEvaluator:
			var link models.EvaluatorDefense
			err := db.WithContext(c.Request.Context()).
				Where("evaluator_id_ref = ? AND defense_id_ref = ?", claims.EvaluatorID, claims.DefenseID).
				First(&link).Error
			if err != nil {
				Fail(c, apperror.New(apperror.CodeUnauthorized, "evaluator is not registered for this defense"))
				return
			}
		default:
			Fail(c, apperror.New(apperror.CodeUnauthorized, "unknown role"))
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func CurrentClaims(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := map[string]struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			Fail(c, apperror.New(apperror.CodeUnauthorized, "unauthorized"))
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			// allow admin to pass any role-gate
			if claims.Role != RoleAdmin {
				Fail(c, apperror.New(apperror.CodeForbidden, "forbidden"))
				return
			}
		}
		c.Next()
	}
}
