package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/timmyl2410/PlatelyAI-sub000/config"
)

const tokenLeeway = 30 * time.Second

// AuthClaims are the parts of a verified Firebase ID token the API uses
type AuthClaims struct {
	UID           string
	Email         string
	EmailVerified bool
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// FirebaseVerifier validates Firebase ID tokens against Google's published keys
type FirebaseVerifier struct {
	keys   keyfunc.Keyfunc
	parser *jwt.Parser
}

// NewFirebaseVerifier fetches the signing keys and keeps them refreshed until ctx ends
func NewFirebaseVerifier(ctx context.Context, cfg *config.Config) (*FirebaseVerifier, error) {
	if strings.TrimSpace(cfg.FirebaseProjectID) == "" {
		return nil, errors.New("FIREBASE_PROJECT_ID must be set")
	}
	keys, err := keyfunc.NewDefaultCtx(ctx, []string{cfg.FirebaseJWKSURL})
	if err != nil {
		return nil, fmt.Errorf("failed to init JWKS keyfunc: %w", err)
	}
	return newFirebaseVerifier(keys, cfg.FirebaseIssuer(), cfg.FirebaseProjectID), nil
}

func newFirebaseVerifier(keys keyfunc.Keyfunc, issuer, audience string) *FirebaseVerifier {
	return &FirebaseVerifier{
		keys: keys,
		parser: jwt.NewParser(
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithLeeway(tokenLeeway),
			jwt.WithExpirationRequired(),
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name}),
		),
	}
}

// Verify parses and validates a raw ID token
func (v *FirebaseVerifier) Verify(ctx context.Context, rawToken string) (*AuthClaims, error) {
	if rawToken == "" {
		return nil, fmt.Errorf("missing token: %w", ErrUnauthorized)
	}
	token, err := v.parser.Parse(rawToken, v.keys.KeyfuncCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrUnauthorized)
	}
	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims: %w", ErrUnauthorized)
	}

	claims := &AuthClaims{
		UID:   readClaimString(mapClaims, "sub"),
		Email: readClaimString(mapClaims, "email"),
	}
	if claims.UID == "" {
		return nil, fmt.Errorf("token missing sub: %w", ErrUnauthorized)
	}
	if verified, ok := mapClaims["email_verified"].(bool); ok {
		claims.EmailVerified = verified
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	return claims, nil
}

func readClaimString(claims jwt.MapClaims, key string) string {
	if s, ok := claims[key].(string); ok {
		return s
	}
	return ""
}
