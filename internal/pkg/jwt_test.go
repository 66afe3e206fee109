package pkg

import (
	"errors"
	"testing"
	"time"

	"PinSocial/internal/config"
)

func newManager(t *testing.T) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(config.JWTConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestGeneratePairAndParse(t *testing.T) {
	m := newManager(t)
	pair, err := m.GeneratePair(42)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := m.ParseAccess(pair.AccessToken)
	if err != nil || claims.UserID != 42 {
		t.Fatalf("parse access = %+v, %v", claims, err)
	}
	claims, err = m.ParseRefresh(pair.RefreshToken)
	if err != nil || claims.UserID != 42 {
		t.Fatalf("parse refresh = %+v, %v", claims, err)
	}
	// 两种 token 密钥不同，不能互用
	if _, err := m.ParseAccess(pair.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("refresh as access err = %v", err)
	}
	if _, err := m.ParseRefresh(pair.AccessToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("access as refresh err = %v", err)
	}
}

func TestParseAccessExpired(t *testing.T) {
	m := newManager(t)
	issued := time.Now().Add(-2 * time.Minute)
	m.now = func() time.Time { return issued }
	pair, err := m.GeneratePair(1)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	m.now = time.Now
	if _, err := m.ParseAccess(pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
	if _, err := m.ParseRefresh(pair.RefreshToken); err != nil {
		t.Fatalf("refresh should still be valid: %v", err)
	}
}

func TestNewTokenManagerRequiresSecrets(t *testing.T) {
	if _, err := NewTokenManager(config.JWTConfig{AccessSecret: "a"}); !errors.Is(err, ErrSecretMissing) {
		t.Fatalf("err = %v", err)
	}
}

func TestPinImageKey(t *testing.T) {
	key, err := PinImageKey(3, 9, "image/png")
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if len(key) < len("pins/3/9/.png") || key[:9] != "pins/3/9/" || key[len(key)-4:] != ".png" {
		t.Fatalf("key = %q", key)
	}
	if _, err := PinImageKey(3, 9, "application/pdf"); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("err = %v", err)
	}
}
