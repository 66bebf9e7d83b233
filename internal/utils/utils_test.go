package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(10)
	require.NoError(t, err)
	assert.Len(t, code, 10)
	for _, r := range code {
		assert.True(t, strings.ContainsRune(codeAlphabet, r), "unexpected rune %q", r)
	}

	code, err = GenerateCode(0)
	require.NoError(t, err)
	assert.Len(t, code, 8)
}

func TestNewAccessCode(t *testing.T) {
	code, hash, err := NewAccessCode(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.NotEqual(t, code, hash)
	assert.True(t, CheckPassword(hash, code))
	assert.False(t, CheckPassword(hash, code+"X"))
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte(`{"a":1}`))
	assert.Len(t, a, 16)
	assert.Equal(t, a, Fingerprint([]byte(`{"a":1}`)))
	assert.NotEqual(t, a, Fingerprint([]byte(`{"a":2}`)))
}
