package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/courseforge/courseforge-backend/internal/platform/apperr"
)

// TokenVerifier turns a bearer credential into a user id. Every protected
// route resolves the caller through this interface before touching any
// user-scoped document.
type TokenVerifier interface {
	Verify(credential string) (uid string, err error)
}

type hmacVerifier struct {
	secretKey []byte
}

func NewHMACVerifier(secretKey string) (TokenVerifier, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, fmt.Errorf("missing JWT_SECRET_KEY")
	}
	return &hmacVerifier{secretKey: []byte(secretKey)}, nil
}

func (v *hmacVerifier) Verify(credential string) (string, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return "", apperr.Authf("missing credential")
	}

	token, err := jwt.Parse(credential, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secretKey, nil
	})
	if err != nil {
		return "", apperr.Authf("invalid token: %v", err)
	}
	if !token.Valid {
		return "", apperr.Authf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", apperr.Authf("invalid token claims")
	}
	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", apperr.Authf("token missing subject")
	}
	return sub, nil
}
