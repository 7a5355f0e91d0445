// ABOUTME: JWT token verification for private invoker variants
// ABOUTME: Uses HS256 signing with the configured secret and optional variant audiences

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token expired")
	ErrMissingClaim  = errors.New("missing required claim")
	ErrWrongAudience = errors.New("token not valid for this variant")
	ErrEmptySecret   = errors.New("jwt secret is empty")
)

// Claims is the verified identity carried by an invoker token.
type Claims struct {
	Subject  string
	Audience []string // variant names; empty means every variant
	Expires  time.Time
}

// Allows reports whether the token may invoke variant.
func (c *Claims) Allows(variant string) bool {
	if len(c.Audience) == 0 {
		return true
	}
	for _, aud := range c.Audience {
		if aud == variant {
			return true
		}
	}
	return false
}

// TokenVerifier defines the interface for token verification
type TokenVerifier interface {
	Verify(tokenString string) (*Claims, error)
}

// JWTVerifier implements TokenVerifier using HS256 signed JWTs
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a new JWT verifier with the given secret
func NewJWTVerifier(secret []byte) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return &JWTVerifier{secret: secret}, nil
}

// Verify validates the token and extracts the subject and audience claims
func (v *JWTVerifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())

	if err != nil {
		// Check if it's specifically an expiration error
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	aud, err := token.Claims.GetAudience()
	if err != nil {
		return nil, fmt.Errorf("%w: aud: %v", ErrInvalidToken, err)
	}

	claims := &Claims{Subject: sub, Audience: aud}
	if exp, err := token.Claims.GetExpirationTime(); err == nil && exp != nil {
		claims.Expires = exp.Time
	}
	return claims, nil
}

// Generate creates a new JWT token for subject with expiration.
// Passing variant names restricts the token to those variants.
func (v *JWTVerifier) Generate(subject string, expiresIn time.Duration, variants ...string) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}
	if len(variants) > 0 {
		claims["aud"] = variants
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
