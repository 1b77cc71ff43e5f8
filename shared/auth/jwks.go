package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
)

// JWK represents a JSON Web Key
type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS represents a JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWKSValidator verifies RS256 tokens issued by a Cognito user pool
type JWKSValidator struct {
	jwksURL    string
	client     *resty.Client
	refreshTTL time.Duration
	minRefresh time.Duration

	mutex       sync.RWMutex
	keys        map[string]*rsa.PublicKey
	lastRefresh time.Time
}

// NewJWKSValidator creates a validator for the user pool's well-known key set
func NewJWKSValidator(region, userPoolID string) *JWKSValidator {
	return NewJWKSValidatorWithURL(fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s/.well-known/jwks.json", region, userPoolID))
}

// NewJWKSValidatorWithURL creates a validator reading keys from jwksURL
func NewJWKSValidatorWithURL(jwksURL string) *JWKSValidator {
	return &JWKSValidator{
		jwksURL:    jwksURL,
		client:     resty.New().SetTimeout(5 * time.Second),
		keys:       make(map[string]*rsa.PublicKey),
		refreshTTL: 24 * time.Hour,
		minRefresh: time.Minute,
	}
}

// refreshKeys fetches the key set; unless force is set it is skipped while the cache is fresh
func (v *JWKSValidator) refreshKeys(force bool) error {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	since := time.Since(v.lastRefresh)
	if !v.lastRefresh.IsZero() {
		if !force && since < v.refreshTTL {
			return nil
		}
		if force && since < v.minRefresh {
			return nil
		}
	}

	var jwks JWKS
	resp, err := v.client.R().SetResult(&jwks).Get(v.jwksURL)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode())
	}

	newKeys := make(map[string]*rsa.PublicKey)
	for _, jwk := range jwks.Keys {
		if jwk.Kty != "RSA" {
			continue
		}
		pubKey, err := jwkToRSAPublicKey(jwk)
		if err != nil {
			continue
		}
		newKeys[jwk.Kid] = pubKey
	}

	v.keys = newKeys
	v.lastRefresh = time.Now()
	return nil
}

func jwkToRSAPublicKey(jwk JWK) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode N: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode E: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

// GetKey returns the public key for the given key ID
func (v *JWKSValidator) GetKey(kid string) (*rsa.PublicKey, error) {
	if err := v.refreshKeys(false); err != nil {
		return nil, err
	}

	v.mutex.RLock()
	key, exists := v.keys[kid]
	v.mutex.RUnlock()
	if exists {
		return key, nil
	}

	// Key rotation: try once more before giving up
	if err := v.refreshKeys(true); err != nil {
		return nil, fmt.Errorf("failed to refresh keys: %w", err)
	}

	v.mutex.RLock()
	key, exists = v.keys[kid]
	v.mutex.RUnlock()
	if !exists {
		return nil, fmt.Errorf("key with kid %s not found", kid)
	}
	return key, nil
}

// ValidateToken validates a JWT using the key set and returns its claims
func (v *JWKSValidator) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("kid not found in token header")
		}
		return v.GetKey(kid)
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}
	return claims, nil
}

// getClaimString safely extracts a string claim from JWT claims
func getClaimString(claims jwt.MapClaims, key string) string {
	if val, ok := claims[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
