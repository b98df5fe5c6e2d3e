package auth

import (
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// TokenTTL is the lifetime of an issued access token. Logout revokes tokens
// early by denylisting the token id for the remaining TTL.
const TokenTTL = 7 * 24 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

// TokenInfo is the verified content of a parsed access token.
type TokenInfo struct {
	UserId    string
	TokenId   string
	ExpiresAt time.Time
}

func signingKey() ([]byte, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	return []byte(secret), nil
}

// IssueToken signs an HS256 access token for the user. The jti is a fresh
// uuid so individual tokens can be revoked without touching the others.
func IssueToken(userId string, now time.Time) (string, error) {
	key, err := signingKey()
	if err != nil {
		return "", err
	}

	claims := jwt.RegisteredClaims{
		Subject:   userId,
		ID:        uuid.New().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		Issuer:    "spark-backend",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// ParseToken validates signature and expiry and returns the token content.
// The signing method is pinned to HMAC so a forged "none" or RS256 header is
// rejected before any claim is trusted.
func ParseToken(tokenString string) (*TokenInfo, error) {
	key, err := signingKey()
	if err != nil {
		return nil, err
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	info := &TokenInfo{UserId: claims.Subject, TokenId: claims.ID}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}
