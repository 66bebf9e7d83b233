package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaqqye/defense_backend_v1/internal/middleware"
)

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "seed", "token"} {
		assert.True(t, names[want], "missing %s", want)
	}
}

func TestTokenCommandMintsAdminToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "--subject", "ops"})
	require.NoError(t, rootCmd.Execute())

	token := strings.TrimSpace(strings.SplitN(out.String(), "\n", 2)[0])
	claims, err := middleware.ParseToken("cli-secret", token)
	require.NoError(t, err)
	assert.Equal(t, middleware.RoleAdmin, claims.Role)
	assert.Equal(t, "ops", claims.Subject)
}
