package jwt

import (
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestService() *JWTService {
	return NewJWTService(testSecret, time.Hour, 24*time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newTestService()

	token, err := svc.GenerateAccessToken(42, "alice")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Subject != "access" {
		t.Errorf("subject = %q, want access", claims.Subject)
	}
}

func TestRefreshTokenSubject(t *testing.T) {
	svc := newTestService()

	access, _ := svc.GenerateAccessToken(1, "a")
	refresh, _ := svc.GenerateRefreshToken(1, "a")

	if _, err := svc.ValidateRefreshToken(refresh); err != nil {
		t.Errorf("refresh token rejected: %v", err)
	}
	// Access Token 不能当 Refresh Token 用
	if _, err := svc.ValidateRefreshToken(access); err == nil {
		t.Error("access token accepted as refresh token")
	}
}

func TestExpiredToken(t *testing.T) {
	svc := NewJWTService(testSecret, -time.Minute, -time.Minute)

	token, _ := svc.GenerateAccessToken(1, "a")
	if _, err := svc.ValidateToken(token); err != ErrExpiredToken {
		t.Errorf("err = %v, want ErrExpiredToken", err)
	}
}

func TestWrongSecret(t *testing.T) {
	token, _ := newTestService().GenerateAccessToken(1, "a")

	other := NewJWTService("another-secret-another-secret-32", time.Hour, time.Hour)
	if _, err := other.ValidateToken(token); err != ErrInvalidToken {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseUserToken(t *testing.T) {
	token, _ := newTestService().GenerateAccessToken(9, "bob")

	claims, err := ParseUserToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseUserToken failed: %v", err)
	}
	if claims.UserID != 9 || claims.Username != "bob" {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := ParseUserToken(token, "wrong-secret"); err == nil {
		t.Error("wrong secret accepted")
	}
}
