package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims carries the authenticated user id plus the token type, so a
// refresh token can never be presented as an access token.
type Claims struct {
	jwt.RegisteredClaims
	UserID    int64  `json:"uid"`
	TokenType string `json:"token_type"`
}

// Pair is an access/refresh token pair issued together.
type Pair struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
}

// NewPair issues an access/refresh pair for the user.
func NewPair(userID int64, secret string, accessTTL, refreshTTL time.Duration) (Pair, error) {
	access, err := newToken(userID, TypeAccess, secret, accessTTL)
	if err != nil {
		return Pair{}, err
	}

	refresh, err := newToken(userID, TypeRefresh, secret, refreshTTL)
	if err != nil {
		return Pair{}, err
	}

	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

// Parse validates the signature and expiry and requires the expected type.
func Parse(tokenStr, secret, wantType string) (Claims, error) {
	claims := Claims{}

	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	if !token.Valid || claims.TokenType != wantType {
		return Claims{}, ErrInvalidToken
	}

	return claims, nil
}

func newToken(userID int64, tokenType, secret string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID:    userID,
		TokenType: tokenType,
	})

	return token.SignedString([]byte(secret))
}
