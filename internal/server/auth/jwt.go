// Package auth verifies the bearer tokens issued by the account service and
// signs the single-purpose unsubscribe tokens carried in emails.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/omnivore/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the registered claims plus the authenticated user.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

// UnsubscribeClaims identify the user and the email kind to switch off.
type UnsubscribeClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Kind   string `json:"kind"`
}

func sign(claims jwt.Claims, secretKey []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func parse(tokenString string, claims jwt.Claims, secretKey []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return common.ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return common.ErrInvalidToken
	}

	return nil
}

func GenerateToken(userID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	return sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserID: userID,
	}, secretKey)
}

// GetUserIDFromToken returns the user of a valid bearer token.
// Expired tokens yield common.ErrTokenExpired, anything else unusable
// common.ErrInvalidToken.
func GetUserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}
	if err := parse(tokenString, claims, secretKey); err != nil {
		return "", err
	}
	if claims.UserID == "" {
		return "", common.ErrInvalidToken
	}
	return claims.UserID, nil
}

func GenerateUnsubscribeToken(userID, kind string, secretKey []byte, validityDuration time.Duration) (string, error) {
	return sign(UnsubscribeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserID: userID,
		Kind:   kind,
	}, secretKey)
}

func ParseUnsubscribeToken(tokenString string, secretKey []byte) (*UnsubscribeClaims, error) {
	claims := &UnsubscribeClaims{}
	if err := parse(tokenString, claims, secretKey); err != nil {
		return nil, err
	}
	if claims.UserID == "" || claims.Kind == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
