package api

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	platformerrors "github.com/mdc-engine/ramka/internal/platform/errors"
)

// TokenVerifier resolves user identity from bearer access tokens.
type TokenVerifier interface {
	VerifyAccessToken(token string) (string, error)
}

// AuthConfig defines how access tokens are verified.
type AuthConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// accessClaims is the internal claims type used for JWT parsing.
type accessClaims struct {
	jwt.RegisteredClaims
}

type tokenVerifier struct {
	cfg AuthConfig
}

// NewTokenVerifier creates an EdDSA access token verifier.
func NewTokenVerifier(cfg AuthConfig) (TokenVerifier, error) {
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("auth issuer is required")
	}
	if cfg.Audience == "" {
		return nil, fmt.Errorf("auth audience is required")
	}
	if len(cfg.Key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("auth public key must be %d bytes", ed25519.PublicKeySize)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &tokenVerifier{cfg: cfg}, nil
}

// ParseAuthPublicKey decodes a base64 Ed25519 public key. Standard and URL
// alphabets are accepted, with or without padding.
func ParseAuthPublicKey(encoded string) (ed25519.PublicKey, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("auth public key is required")
	}
	for _, encoding := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		raw, err := encoding.DecodeString(encoded)
		if err == nil {
			if len(raw) != ed25519.PublicKeySize {
				return nil, fmt.Errorf("auth public key must be %d bytes", ed25519.PublicKeySize)
			}
			return ed25519.PublicKey(raw), nil
		}
	}
	return nil, fmt.Errorf("auth public key is not valid base64")
}

// VerifyAccessToken validates the token signature, issuer, audience, and
// lifetime, and returns the subject user id.
func (v *tokenVerifier) VerifyAccessToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", platformerrors.New(platformerrors.CodeUnauthenticated, "access token is required")
	}

	var parsed accessClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return v.cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return "", platformerrors.Wrap(platformerrors.CodeUnauthenticated, "access token is invalid", err)
	}

	if parsed.Issuer == "" || parsed.Issuer != v.cfg.Issuer {
		return "", platformerrors.New(platformerrors.CodeUnauthenticated, "access token issuer mismatch")
	}
	if !audienceContains(parsed.Audience, v.cfg.Audience) {
		return "", platformerrors.New(platformerrors.CodeUnauthenticated, "access token audience mismatch")
	}
	if parsed.ExpiresAt == nil {
		return "", platformerrors.New(platformerrors.CodeUnauthenticated, "access token exp is required")
	}

	now := v.cfg.Now().UTC()
	if !parsed.ExpiresAt.Time.UTC().After(now) {
		return "", platformerrors.New(platformerrors.CodeUnauthenticated, "access token is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time.UTC()) {
		return "", platformerrors.New(platformerrors.CodeUnauthenticated, "access token not active yet")
	}

	userID := strings.TrimSpace(parsed.Subject)
	if userID == "" {
		return "", platformerrors.New(platformerrors.CodeUnauthenticated, "access token sub is required")
	}
	return userID, nil
}

func audienceContains(audience jwt.ClaimStrings, expected string) bool {
	for _, value := range audience {
		if value == expected {
			return true
		}
	}
	return false
}

// bearerToken extracts the bearer token from an Authorization header.
func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", platformerrors.New(platformerrors.CodeUnauthenticated, "authorization header is required")
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", platformerrors.New(platformerrors.CodeUnauthenticated, "authorization header must be a bearer token")
	}
	return strings.TrimSpace(token), nil
}
