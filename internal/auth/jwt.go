package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// GatewayClaims is the third-party session-JWT shape the resolver accepts,
// mirroring helm's HelmClaims but without the roles-based authorization
// that gateway tenancy doesn't need.
type GatewayClaims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenant_id"`
}

type jwksKey struct {
	publicKey any
	expiresAt time.Time
}

// JWKSCache fetches and caches a remote JWKS document, with at most one
// refresh in flight at a time (one singleflight key shared by every kid),
// and a bounded TTL so a rotated signing key is picked up without a restart.
type JWKSCache struct {
	endpoint   string
	ttl        time.Duration
	httpClient *http.Client

	mu    sync.RWMutex
	keys  map[string]jwksKey
	group singleflight.Group
}

// NewJWKSCache builds a cache pointed at a JWKS endpoint (e.g.
// ".../.well-known/jwks.json").
func NewJWKSCache(endpoint string, ttl time.Duration) *JWKSCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &JWKSCache{
		endpoint:   endpoint,
		ttl:        ttl,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		keys:       map[string]jwksKey{},
	}
}

type jwkDoc struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

// Get returns the public key for kid, refreshing the whole document at most
// once per concurrent miss.
func (c *JWKSCache) Get(ctx context.Context, kid string) (any, error) {
	c.mu.RLock()
	entry, ok := c.keys[kid]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.publicKey, nil
	}

	v, err, _ := c.group.Do("refresh", func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	keys := v.(map[string]any)

	key, ok := keys[kid]
	if !ok {
		return nil, fmt.Errorf("auth: unknown kid %q", kid)
	}
	return key, nil
}

func (c *JWKSCache) refresh(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: build jwks request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: fetch jwks: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: jwks endpoint returned status %d", resp.StatusCode)
	}

	var doc jwkDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("auth: decode jwks: %w", err)
	}

	now := time.Now()
	fresh := make(map[string]any, len(doc.Keys))
	c.mu.Lock()
	for _, k := range doc.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := rsaPublicKeyFromJWK(k.N, k.E)
		if err != nil {
			continue
		}
		fresh[k.Kid] = pub
		c.keys[k.Kid] = jwksKey{publicKey: pub, expiresAt: now.Add(c.ttl)}
	}
	c.mu.Unlock()

	return fresh, nil
}

func rsaPublicKeyFromJWK(nRaw, eRaw string) (any, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nRaw)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eRaw)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)

	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

// JWTValidator verifies a bearer token against a JWKSCache, the same
// kid-lookup KeyFunc shape as helm's identity.KeySet.KeyFunc.
type JWTValidator struct {
	jwks *JWKSCache
}

// NewJWTValidator builds a validator backed by the given JWKS cache.
func NewJWTValidator(jwks *JWKSCache) *JWTValidator {
	return &JWTValidator{jwks: jwks}
}

// Validate parses and verifies a JWT, returning its GatewayClaims.
func (v *JWTValidator) Validate(tokenStr string) (*GatewayClaims, error) {
	if v.jwks == nil {
		return nil, fmt.Errorf("auth: no jwks configured")
	}

	claims := &GatewayClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		kid, ok := t.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("auth: missing kid in header")
		}
		return v.jwks.Get(context.Background(), kid)
	})
	if err != nil {
		return nil, fmt.Errorf("auth: token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("auth: invalid token")
	}
	return claims, nil
}
