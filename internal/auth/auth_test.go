package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(secret string, claims *Claims) string {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}
	return s
}

func TestJWTVerifierAcceptsValidToken(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	now := time.Now()
	token := signToken("test-secret", &Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})

	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("expected user-1, got %s", claims.UserID)
	}
}

func TestJWTVerifierRejectsExpired(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	token := signToken("test-secret", &Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, err := v.Verify(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestJWTVerifierRejectsWrongSecret(t *testing.T) {
	v := NewJWTVerifier("real-secret")
	token := signToken("wrong-secret", &Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := v.Verify(token)
	if err == nil {
		t.Fatal("expected verification to fail with wrong secret")
	}
}

func TestJWTVerifierRejectsMissingUserID(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	token := signToken("test-secret", &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := v.Verify(token)
	if !errors.Is(err, ErrInvalidClaims) {
		t.Fatalf("expected ErrInvalidClaims, got %v", err)
	}
}

func TestAPIKeyVerifier(t *testing.T) {
	v := NewAPIKeyVerifier(map[string]string{"key-abc": "partner-1"})

	principal, err := v.Verify("key-abc")
	if err != nil || principal != "partner-1" {
		t.Fatalf("expected partner-1/nil, got %s/%v", principal, err)
	}

	if _, err := v.Verify("unknown"); !errors.Is(err, ErrUnknownAPIKey) {
		t.Fatalf("expected ErrUnknownAPIKey, got %v", err)
	}
}

func TestServiceTokenVerifier(t *testing.T) {
	secret := "a-very-long-worker-secret-value"
	v := NewServiceTokenVerifier(map[string]string{"email-service": secret})

	name, err := v.Verify("email-service:" + secret)
	if err != nil || name != "email-service" {
		t.Fatalf("expected email-service/nil, got %s/%v", name, err)
	}

	if _, err := v.Verify("email-service:short"); !errors.Is(err, ErrMalformedServiceToken) {
		t.Fatalf("expected ErrMalformedServiceToken for short secret, got %v", err)
	}
	if _, err := v.Verify("push-service:" + secret); !errors.Is(err, ErrUnknownService) {
		t.Fatalf("expected ErrUnknownService, got %v", err)
	}
	if _, err := v.Verify("email-service:" + secret + "x"); !errors.Is(err, ErrServiceSecretMismatch) {
		t.Fatalf("expected ErrServiceSecretMismatch, got %v", err)
	}
}
