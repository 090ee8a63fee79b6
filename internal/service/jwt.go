package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var jwtSecret []byte

const tokenTTL = 12 * time.Hour

// InitJWT installs the signing secret. Must be called once at startup.
func InitJWT(secret string) {
	if secret == "" {
		panic("jwt secret is empty")
	}
	jwtSecret = []byte(secret)
}

// GenerateJWT issues a token carrying the user id.
func GenerateJWT(userID int64) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.Add(tokenTTL).Unix(),
		"iat":     now.Unix(),
		"nbf":     now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
}

// ParseJWT validates the token and extracts the user id.
func ParseJWT(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("invalid claims")
	}

	userID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, errors.New("user_id not found")
	}
	return int64(userID), nil
}
