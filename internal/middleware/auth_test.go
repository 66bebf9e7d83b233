package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAuth = AuthConfig{JWTSecret: "secret", JWTExpiresIn: time.Minute}

func TestIssueAndParseToken(t *testing.T) {
	token, expires, err := IssueToken(testAuth, Claims{Role: RoleEvaluator, EvaluatorID: "e1", DefenseID: "d1"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expires, 5*time.Second)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, RoleEvaluator, claims.Role)
	assert.Equal(t, "e1", claims.EvaluatorID)
	assert.Equal(t, "e1", claims.Subject)
	assert.Equal(t, "d1", claims.DefenseID)

	_, err = ParseToken("other-secret", token)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpiredAndForeignAlg(t *testing.T) {
	expired, _, err := IssueToken(AuthConfig{JWTSecret: "secret", JWTExpiresIn: -time.Minute}, Claims{Role: RoleAdmin})
	require.NoError(t, err)
	_, err = ParseToken("secret", expired)
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: RoleAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken("secret", unsigned)
	assert.Error(t, err)
}

func roleRouter(claims *Claims, roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		if claims != nil {
			c.Set(claimsKey, claims)
		}
		c.Next()
	}, RequireRoles(roles...), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequireRoles(t *testing.T) {
	cases := []struct {
		name   string
		claims *Claims
		want   int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"evaluator", &Claims{Role: RoleEvaluator}, http.StatusNoContent},
		{"admin passes any gate", &Claims{Role: RoleAdmin}, http.StatusNoContent},
		{"unknown role", &Claims{Role: "student"}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			roleRouter(tc.claims, RoleEvaluator).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestFailRedactsInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, detailed := range []bool{false, true} {
		r := gin.New()
		r.Use(ErrorDetail(detailed))
		r.GET("/boom", func(c *gin.Context) { Fail(c, assert.AnError) })
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), `"code":"INTERNAL_ERROR"`)
		if detailed {
			assert.Contains(t, rec.Body.String(), assert.AnError.Error())
		} else {
			assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
		}
	}
}
