// Package jwt 校验外部认证服务签发的 HS256 令牌，本服务不签发令牌
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 用户类型
const (
	UserTypeVendor = "vendor"
	UserTypeAdmin  = "admin"
)

// Claims 令牌声明，商家令牌的 UserID 即商家 ID
type Claims struct {
	UserID   int64  `json:"user_id"`
	UserType string `json:"user_type"`
	Role     string `json:"role,omitempty"` // 仅管理员
	jwt.RegisteredClaims
}

// Config 校验配置
type Config struct {
	Secret string
	Issuer string
	Leeway time.Duration // 容忍的时钟偏差
}

var (
	ErrTokenInvalid   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenNotActive = errors.New("token not active yet")
)

// Verifier 令牌校验器
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier 创建校验器，令牌必须带 exp
func NewVerifier(cfg *Config) *Verifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	return &Verifier{secret: []byte(cfg.Secret), parser: jwt.NewParser(opts...)}
}

// ParseToken 解析并校验令牌
func (v *Verifier) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return nil, ErrTokenNotActive
	case err != nil:
		return nil, ErrTokenInvalid
	}

	if claims.UserID <= 0 {
		return nil, ErrTokenInvalid
	}
	if claims.UserType != UserTypeVendor && claims.UserType != UserTypeAdmin {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
