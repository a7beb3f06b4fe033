package auth_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/auth"
)

func TestJWTValidator_VerifiesTokenAgainstJWKS(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwks := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]any{{
				"kty": "RSA",
				"kid": "test-key-1",
				"n":   base64.RawURLEncoding.EncodeToString(privateKey.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(bigEndianBytes(privateKey.PublicKey.E)),
			}},
		})
	}))
	defer jwks.Close()

	cache := auth.NewJWKSCache(jwks.URL, time.Minute)
	validator := auth.NewJWTValidator(cache)

	claims := auth.GatewayClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TenantID: "t-1",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-key-1"
	signed, err := token.SignedString(privateKey)
	require.NoError(t, err)

	got, err := validator.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, "t-1", got.TenantID)
	assert.Equal(t, "user-1", got.Subject)
}

func TestJWTValidator_RejectsUnknownKid(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwks := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]any{}})
	}))
	defer jwks.Close()

	cache := auth.NewJWKSCache(jwks.URL, time.Minute)
	validator := auth.NewJWTValidator(cache)

	claims := auth.GatewayClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "x"}, TenantID: "t-1"}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "missing-kid"
	signed, err := token.SignedString(privateKey)
	require.NoError(t, err)

	_, err = validator.Validate(signed)
	assert.Error(t, err)
}

func bigEndianBytes(n int) []byte {
	if n == 0 {
		return []byte{0}
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte(n & 0xff)}, b...)
		n >>= 8
	}
	return b
}
