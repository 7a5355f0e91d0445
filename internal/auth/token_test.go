// ABOUTME: Unit tests for JWT token verification and generation
// ABOUTME: Tests valid tokens, invalid tokens, expired tokens, and variant audiences

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestVerifier(t *testing.T, secret string) *JWTVerifier {
	t.Helper()
	v, err := NewJWTVerifier([]byte(secret))
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}
	return v
}

func TestNewJWTVerifier_EmptySecret(t *testing.T) {
	if _, err := NewJWTVerifier(nil); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("NewJWTVerifier(nil) error = %v, want ErrEmptySecret", err)
	}
}

func TestJWTVerifier_ValidToken(t *testing.T) {
	verifier := newTestVerifier(t, "test-secret-key-for-jwt-signing")

	token, err := verifier.Generate("ops@ahi", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	claims, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if claims.Subject != "ops@ahi" {
		t.Errorf("Verify().Subject = %q, want %q", claims.Subject, "ops@ahi")
	}
	if len(claims.Audience) != 0 {
		t.Errorf("Verify().Audience = %v, want none", claims.Audience)
	}
	if time.Until(claims.Expires) <= 0 || time.Until(claims.Expires) > time.Hour {
		t.Errorf("Verify().Expires = %v, want within the next hour", claims.Expires)
	}
	if !claims.Allows("any-variant") {
		t.Error("token without audience should allow every variant")
	}
}

func TestJWTVerifier_Audience(t *testing.T) {
	verifier := newTestVerifier(t, "test-secret-key-for-jwt-signing")

	token, err := verifier.Generate("ops@ahi", time.Hour, "v2", "gen2")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	claims, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if !claims.Allows("v2") || !claims.Allows("gen2") {
		t.Errorf("claims should allow v2 and gen2, audience = %v", claims.Audience)
	}
	if claims.Allows("v1") {
		t.Error("claims should not allow v1")
	}
}

func TestJWTVerifier_InvalidToken(t *testing.T) {
	verifier := newTestVerifier(t, "test-secret-key-for-jwt-signing")

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "empty token",
			token: "",
		},
		{
			name:  "garbage token",
			token: "not-a-jwt-token",
		},
		{
			name:  "malformed JWT",
			token: "header.payload.signature",
		},
		{
			name: "wrong secret",
			token: func() string {
				other := newTestVerifier(t, "different-secret")
				token, _ := other.Generate("ops@ahi", time.Hour)
				return token
			}(),
		},
		{
			name: "no expiry",
			token: func() string {
				token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "ops@ahi"})
				s, _ := token.SignedString([]byte("test-secret-key-for-jwt-signing"))
				return s
			}(),
		},
		{
			name: "none algorithm",
			token: func() string {
				token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
					"sub": "ops@ahi",
					"exp": time.Now().Add(time.Hour).Unix(),
				})
				s, _ := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
				return s
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	verifier := newTestVerifier(t, "test-secret-key-for-jwt-signing")

	token, err := verifier.Generate("ops@ahi", -time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	_, err = verifier.Verify(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

func TestJWTVerifier_MissingSubject(t *testing.T) {
	secret := []byte("test-secret-key-for-jwt-signing")
	verifier := newTestVerifier(t, string(secret))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tokenString, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	_, err = verifier.Verify(tokenString)
	if !errors.Is(err, ErrMissingClaim) {
		t.Errorf("Verify() error = %v, want ErrMissingClaim", err)
	}

	if _, err := verifier.Generate("", time.Hour); !errors.Is(err, ErrMissingClaim) {
		t.Errorf("Generate(\"\") error = %v, want ErrMissingClaim", err)
	}
}
