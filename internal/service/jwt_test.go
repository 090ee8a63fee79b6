package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	InitJWT("test-secret")

	token, err := GenerateJWT(42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := ParseJWT(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestParseJWTRejectsGarbage(t *testing.T) {
	InitJWT("test-secret")

	_, err := ParseJWT("not-a-token")
	assert.Error(t, err)
}

func TestParseJWTRejectsWrongSecret(t *testing.T) {
	InitJWT("secret-a")
	token, err := GenerateJWT(7)
	require.NoError(t, err)

	InitJWT("secret-b")
	_, err = ParseJWT(token)
	assert.Error(t, err)
}
