package api

import (
	"testing"
	"time"

	"github.com/codecollab-io/codecollab/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCreateAndVerifyToken(t *testing.T) {
	s := &CollabApp{
		log:        testutil.TestLogger(t),
		signingKey: []byte("test-signing-key"),
	}

	token, err := s.createToken("testuser", "test@example.com", time.Hour)
	assert.NoError(t, err, "expected no error creating token")
	assert.NotEmpty(t, token)

	username, err := s.identityFromToken(token)
	assert.NoError(t, err, "expected token to verify")
	assert.Equal(t, "testuser", username)
}

func TestIdentityFromToken_expired(t *testing.T) {
	s := &CollabApp{
		log:        testutil.TestLogger(t),
		signingKey: []byte("test-signing-key"),
	}

	token, err := s.createToken("testuser", "test@example.com", -time.Minute)
	assert.NoError(t, err)

	_, err = s.identityFromToken(token)
	assert.Error(t, err, "expected an expired token to be rejected")
}

func TestIdentityFromToken_wrongKey(t *testing.T) {
	issuer := &CollabApp{
		log:        testutil.TestLogger(t),
		signingKey: []byte("issuer-key"),
	}
	verifier := &CollabApp{
		log:        testutil.TestLogger(t),
		signingKey: []byte("other-key"),
	}

	token, err := issuer.createToken("testuser", "test@example.com", time.Hour)
	assert.NoError(t, err)

	_, err = verifier.identityFromToken(token)
	assert.Error(t, err, "expected a token signed with another key to be rejected")
}

func TestIdentityFromToken_garbage(t *testing.T) {
	s := &CollabApp{
		log:        testutil.TestLogger(t),
		signingKey: []byte("test-signing-key"),
	}

	_, err := s.identityFromToken("not-a-token")
	assert.Error(t, err)
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := hashPassword("hunter2")
	assert.NoError(t, err)
	assert.True(t, verifyPassword(hash, "hunter2"))
	assert.False(t, verifyPassword(hash, "hunter3"))
}
