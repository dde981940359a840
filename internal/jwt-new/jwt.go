package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin роль, которую требуют админские маршруты
const RoleAdmin = "admin"

var ErrEmptySecret = errors.New("jwt secret is empty")

// NewAdminToken генерирует JWT-токен администратора с заданным временем жизни.
func NewAdminToken(subject, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	if subject == "" {
		return "", errors.New("token subject is empty")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": RoleAdmin,
		"exp":  now.Add(ttl).Unix(),
		"iat":  now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
