package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_GenerateAndParse(t *testing.T) {
	tm := NewTokenManager(TokenConfig{SecretKey: "test-key", Expiry: time.Hour})

	token, err := tm.Generate(42, "alice", "127.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	actor, err := tm.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), actor.UID)
	assert.Equal(t, "alice", actor.Nickname)
	assert.Equal(t, "127.0.0.1", actor.IP)
	assert.Equal(t, "42", actor.ID)
}

func TestTokenManager_WrongKey(t *testing.T) {
	tm := NewTokenManager(TokenConfig{SecretKey: "key-a"})
	token, err := tm.Generate(1, "bob", "10.0.0.1")
	require.NoError(t, err)

	_, err = ParseTokenWithKey(token, "key-b")
	assert.Error(t, err)
}

func TestTokenManager_Expired(t *testing.T) {
	tm := NewTokenManager(TokenConfig{SecretKey: "test-key", Expiry: -time.Minute})
	token, err := tm.Generate(1, "bob", "10.0.0.1")
	require.NoError(t, err)

	assert.Error(t, tm.Validate(token))
}
