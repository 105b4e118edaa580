// Package tenantauth derives per-tenant auth secrets and mints service
// tokens accepted by dedicated tenant deployments.
package tenantauth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DeriveSecret generates a deterministic but unique auth secret per tenant
// so a redeploy reproduces the same secret from the master key.
func DeriveSecret(masterKey, slug string) string {
	if masterKey == "" {
		masterKey = "default-insecure-key-change-in-production"
	}
	hash := sha256.Sum256([]byte(masterKey + "-" + slug))
	return hex.EncodeToString(hash[:])
}

// MintServiceToken signs a short-lived HS256 token scoped to one tenant,
// used by control-plane probes calling the tenant deployment.
func MintServiceToken(masterKey, slug string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   "control-plane",
		Audience:  jwt.ClaimStrings{slug},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(DeriveSecret(masterKey, slug)))
	if err != nil {
		return "", fmt.Errorf("sign service token: %w", err)
	}
	return signed, nil
}
