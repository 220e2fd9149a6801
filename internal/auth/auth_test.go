package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wellnessgrid/wellnessgrid/internal/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestPasswordHashAndCheck(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("hash equals plaintext")
	}

	if err := CheckPassword(hash, "correct horse battery staple"); err != nil {
		t.Errorf("CheckPassword with right password: %v", err)
	}
	if err := CheckPassword(hash, "wrong"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("CheckPassword with wrong password = %v, want ErrUnauthorized", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)
	userID := uuid.New()

	signed, err := tokens.Issue(userID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	got, err := tokens.Verify(signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got != userID {
		t.Errorf("user = %s, want %s", got, userID)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"wrong secret", mustSign(t, NewTokens("another-secret-another-secret-32", time.Hour))},
		{"expired", mustSign(t, NewTokens(testSecret, -time.Minute))},
		{"wrong issuer", signWithIssuer(t, "someone-else")},
		{"non-uuid subject", signWithSubject(t, "admin")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tokens.Verify(tt.token); !errors.Is(err, domain.ErrUnauthorized) {
				t.Errorf("Verify(%s) = %v, want ErrUnauthorized", tt.name, err)
			}
		})
	}
}

func TestVerifyRejectsUnsignedAlg(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   uuid.New().String(),
		Issuer:    Issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tokens := NewTokens(testSecret, time.Hour)
	if _, err := tokens.Verify(unsigned); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Verify(alg=none) = %v, want ErrUnauthorized", err)
	}
}

func mustSign(t *testing.T, tokens *Tokens) string {
	t.Helper()
	signed, err := tokens.Issue(uuid.New())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return signed
}

func signWithIssuer(t *testing.T, issuer string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   uuid.New().String(),
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func signWithSubject(t *testing.T, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    Issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}
