package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyPair(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestGenerateAndVerify(t *testing.T) {
	key := testKeyPair(t)
	gen := NewGenerator(key, "subgate", "subgate-services", "test-key", time.Hour)
	ver := NewVerifier(&key.PublicKey, "subgate", "subgate-services")

	token, jti, err := gen.Generate(7, "payment-bot", "creator")
	require.NoError(t, err)
	require.NotEmpty(t, jti)

	claims, err := ver.Verify(token)
	require.NoError(t, err)

	assert.Equal(t, int64(7), claims.IdentityID)
	assert.Equal(t, "payment-bot", claims.IdentityName)
	assert.Equal(t, "creator", claims.Capability)
	assert.Equal(t, jti, claims.ID)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	key := testKeyPair(t)
	gen := NewGenerator(key, "someone-else", "subgate-services", "", time.Hour)
	ver := NewVerifier(&key.PublicKey, "subgate", "subgate-services")

	token, _, err := gen.Generate(1, "verifier-worker", "verifier")
	require.NoError(t, err)

	_, err = ver.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	key := testKeyPair(t)
	gen := NewGenerator(key, "subgate", "other-audience", "", time.Hour)
	ver := NewVerifier(&key.PublicKey, "subgate", "subgate-services")

	token, _, err := gen.Generate(1, "verifier-worker", "verifier")
	require.NoError(t, err)

	_, err = ver.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	key := testKeyPair(t)
	gen := NewGenerator(key, "subgate", "subgate-services", "", -time.Minute)
	ver := NewVerifier(&key.PublicKey, "subgate", "subgate-services")

	token, _, err := gen.Generate(1, "reader-svc", "reader")
	require.NoError(t, err)

	_, err = ver.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	signing := testKeyPair(t)
	other := testKeyPair(t)
	gen := NewGenerator(signing, "subgate", "subgate-services", "", time.Hour)
	ver := NewVerifier(&other.PublicKey, "subgate", "subgate-services")

	token, _, err := gen.Generate(1, "reader-svc", "reader")
	require.NoError(t, err)

	_, err = ver.Verify(token)
	assert.Error(t, err)
}
