package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKeyPair(t *testing.T) (privPEM, pubPEM []byte) {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})

	pubBytes, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pubPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	})
	return privPEM, pubPEM
}

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	privPEM, pubPEM := generateKeyPair(t)
	signer, err := NewSigner(privPEM, pubPEM, "tokenhaus-test")
	require.NoError(t, err)
	return signer
}

func TestGenerateAndValidateToken(t *testing.T) {
	signer := newTestSigner(t)

	tokenString, err := signer.GenerateToken("alice", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims, err := signer.ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.AccountID())
	assert.Equal(t, "tokenhaus-test", claims.Issuer)
}

func TestValidateToken_Expired(t *testing.T) {
	signer := newTestSigner(t)

	tokenString, err := signer.GenerateToken("alice", -time.Minute)
	require.NoError(t, err)

	_, err = signer.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestValidateToken_WrongKey(t *testing.T) {
	issuing := newTestSigner(t)
	verifying := newTestSigner(t)

	tokenString, err := issuing.GenerateToken("alice", time.Hour)
	require.NoError(t, err)

	_, err = verifying.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	signer := newTestSigner(t)

	_, err := signer.ValidateToken("not-a-jwt")
	assert.Error(t, err)
}

func TestNewSignerFromPublicKey(t *testing.T) {
	privPEM, pubPEM := generateKeyPair(t)

	issuer, err := NewSigner(privPEM, pubPEM, "tokenhaus-test")
	require.NoError(t, err)

	verifier, err := NewSignerFromPublicKey(pubPEM, "tokenhaus-test")
	require.NoError(t, err)

	tokenString, err := issuer.GenerateToken("bob", time.Hour)
	require.NoError(t, err)

	claims, err := verifier.ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.AccountID())

	// validate-only signer cannot issue
	_, err = verifier.GenerateToken("bob", time.Hour)
	assert.Error(t, err)
}

func TestNewSigner_BadPEM(t *testing.T) {
	_, pubPEM := generateKeyPair(t)

	_, err := NewSigner([]byte("garbage"), pubPEM, "tokenhaus-test")
	assert.Error(t, err)

	_, err = NewSignerFromPublicKey([]byte("garbage"), "tokenhaus-test")
	assert.Error(t, err)
}
