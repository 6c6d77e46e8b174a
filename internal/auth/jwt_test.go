package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParseJWT(t *testing.T) {
	tok, err := SignJWT(42, "admin", "s3cret", time.Hour)
	require.NoError(t, err)

	uid, role, err := ParseJWT(tok, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), uid)
	assert.Equal(t, "admin", role)
}

func TestParseJWT_WrongSecret(t *testing.T) {
	tok, err := SignJWT(1, "user", "a", time.Hour)
	require.NoError(t, err)

	_, _, err = ParseJWT(tok, "b")
	require.Error(t, err)
}

func TestParseJWT_Expired(t *testing.T) {
	tok, err := SignJWT(1, "user", "a", -time.Minute)
	require.NoError(t, err)

	_, _, err = ParseJWT(tok, "a")
	require.Error(t, err)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "hunter3"))
}
