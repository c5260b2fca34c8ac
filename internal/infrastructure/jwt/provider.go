package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-read-marker/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "read-marker"

// Scopes a control token may carry.
const (
	ScopeWindow = "window"
	ScopeStatus = "status"
)

// Claims holds the control-token payload. Subject names the caller (usually the
// window-signal bridge).
type Claims struct {
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

// Allows reports whether the token grants scope.
func (c *Claims) Allows(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Provider verifies RS256 control tokens and, when a private key is available,
// signs them.
type Provider struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	expiry     time.Duration
}

// NewProvider loads the public key. The private key is optional: the daemon only
// verifies, the token command signs.
func NewProvider(cfg *config.Config) (*Provider, error) {
	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	p := &Provider{publicKey: pubKey, expiry: cfg.JWTExpiry}

	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return p, nil
	case err != nil:
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	p.privateKey = privKey
	return p, nil
}

// CanSign reports whether a private key was loaded.
func (p *Provider) CanSign() bool { return p.privateKey != nil }

func (p *Provider) Sign(subject string, scopes ...string) (string, error) {
	if p.privateKey == nil {
		return "", errors.New("no private key loaded")
	}
	now := time.Now()
	claims := Claims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(p.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(p.privateKey)
}

func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
