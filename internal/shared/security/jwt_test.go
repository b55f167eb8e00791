package security

import (
	"errors"
	"testing"
	"time"
)

func TestLoadSettings_缺少JWT_SECRET应失败(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadSettings(); !errors.Is(err, ErrJWTSecretMissing) {
		t.Fatalf("期望 JWT_SECRET 为空时返回 ErrJWTSecretMissing, got=%v", err)
	}
}

func TestLoadSettings_读取环境变量(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_TOKEN_TTL", "2h")
	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings err=%v", err)
	}
	if s.TokenTTL != 2*time.Hour || s.Issuer != "conquest" {
		t.Fatalf("unexpected settings: %+v", s)
	}
}

func TestAwardParse_正常签发并解析(t *testing.T) {
	iss, err := NewIssuer(Settings{Secret: "test-secret-123", TokenTTL: time.Hour, Issuer: "conquest"})
	if err != nil {
		t.Fatalf("NewIssuer err=%v", err)
	}

	token, exp, err := iss.Award(42)
	if err != nil || token == "" {
		t.Fatalf("Award token=%q err=%v", token, err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("期望过期时间在未来, got=%v", exp)
	}

	claims, err := iss.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken err=%v", err)
	}
	if claims.PlayerID != 42 || claims.Subject != "42" {
		t.Fatalf("期望 claims.PlayerID==42, got=%+v", claims)
	}
}

func TestParseToken_过期与篡改(t *testing.T) {
	iss, _ := NewIssuer(Settings{Secret: "k", TokenTTL: time.Minute, Issuer: "conquest"})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	iss.now = func() time.Time { return base }
	token, _, _ := iss.Award(7)

	iss.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := iss.ParseToken(token); err == nil {
		t.Fatalf("期望过期 token 解析失败")
	}

	other, _ := NewIssuer(Settings{Secret: "other", TokenTTL: time.Minute, Issuer: "conquest"})
	other.now = func() time.Time { return base }
	if _, err := other.ParseToken(token); err == nil {
		t.Fatalf("期望不同密钥解析失败")
	}
}
