package provider

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// accessTokenClaims is the subset of the provider's JWT payload the client
// reads. Identity lives in the registered subject plus custom claims; the
// metadata object mirrors what the provider stores alongside the account.
type accessTokenClaims struct {
	jwt.RegisteredClaims
	Email        string `json:"email"`
	UserMetadata struct {
		FullName string `json:"full_name"`
	} `json:"user_metadata"`
}

// parseAccessToken decodes the token payload without verifying the
// signature. Verification needs the provider's secret and is the backend's
// job; this side only mines the claims for expiry and identity fallbacks.
func parseAccessToken(token string) (*accessTokenClaims, error) {
	var claims accessTokenClaims
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse access token: %w", err)
	}
	return &claims, nil
}
