package security

import (
	"errors"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"
)

var ErrJWTSecretMissing = errors.New("JWT_SECRET is not set")

// Settings 从环境变量读取，不进配置文件。
type Settings struct {
	Secret   string        `env:"JWT_SECRET"`
	TokenTTL time.Duration `env:"JWT_TOKEN_TTL" envDefault:"168h"`
	Issuer   string        `env:"JWT_ISSUER" envDefault:"conquest"`
}

func LoadSettings() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, err
	}
	if s.Secret == "" {
		return Settings{}, ErrJWTSecretMissing
	}
	return s, nil
}

// Claims 的 subject 是玩家 id。
type Claims struct {
	PlayerID int64 `json:"pid"`
	jwt.RegisteredClaims
}

type Issuer struct {
	key []byte
	ttl time.Duration
	iss string
	now func() time.Time
}

func NewIssuer(s Settings) (*Issuer, error) {
	if s.Secret == "" {
		return nil, ErrJWTSecretMissing
	}
	if s.TokenTTL <= 0 {
		s.TokenTTL = 7 * 24 * time.Hour
	}
	return &Issuer{key: []byte(s.Secret), ttl: s.TokenTTL, iss: s.Issuer, now: time.Now}, nil
}

// Award 给玩家签发 Token。
func (i *Issuer) Award(playerID int64) (string, time.Time, error) {
	now := i.now()
	expireTime := now.Add(i.ttl)
	claims := &Claims{
		PlayerID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(playerID, 10),
			Issuer:    i.iss,
			ExpiresAt: jwt.NewNumericDate(expireTime),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expireTime, nil
}

// ParseToken 解析并验证 Token。
func (i *Issuer) ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return i.key, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithIssuer(i.iss))
	if err != nil {
		return nil, err
	}
	if token == nil || !token.Valid || claims.PlayerID <= 0 {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
