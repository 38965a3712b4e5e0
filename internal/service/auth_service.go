package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wfunc/usb-bench/internal/config"
	"github.com/wfunc/usb-bench/internal/errors"
	"github.com/wfunc/usb-bench/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Claims JWT载荷
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AuthService 操作员认证服务
//
// 测试台是单操作员系统，账号和口令哈希都来自配置。
type AuthService struct {
	cfg    *config.SecurityConfig
	logger *zap.Logger
}

// NewAuthService 创建认证服务
func NewAuthService(cfg *config.SecurityConfig) *AuthService {
	return &AuthService{
		cfg:    cfg,
		logger: logger.GetModuleLogger("auth"),
	}
}

// Login 校验操作员口令并签发令牌
func (s *AuthService) Login(username, password string) (string, error) {
	if username != s.cfg.Operator.Username {
		return "", errors.New(errors.ErrAuthentication, "用户名或密码错误")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.Operator.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("操作员登录失败", zap.String("username", username))
		return "", errors.New(errors.ErrAuthentication, "用户名或密码错误")
	}

	token, err := s.GenerateToken(username)
	if err != nil {
		return "", err
	}

	s.logger.Info("操作员登录成功", zap.String("username", username))
	return token, nil
}

// GenerateToken 签发JWT令牌
func (s *AuthService) GenerateToken(username string) (string, error) {
	expireHours := s.cfg.JWT.ExpireHours
	if expireHours <= 0 {
		expireHours = 24
	}

	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(expireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "usb-bench",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrAuthentication, "令牌签发失败")
	}

	return signed, nil
}

// ParseToken 解析并校验令牌
func (s *AuthService) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New(errors.ErrTokenInvalid, "意外的签名算法")
		}
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil {
		if errors.Is(err, errors.ErrTokenInvalid) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrTokenInvalid)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New(errors.ErrTokenInvalid)
	}

	return claims, nil
}

// HashPassword 生成口令哈希（配置初始化用）
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
