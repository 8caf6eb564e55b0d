// Package auth issues and checks the HS256 access tokens exchanged between
// the client and the bridge. Both sides hold the same secret.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the registered claims plus the calling client's id.
type Claims struct {
	jwt.RegisteredClaims
	ClientID string `json:"cid"`
}

// tokenIDSize is the number of random bytes in a token id.
const tokenIDSize = 16

// GenerateToken signs a token for clientID valid for validity. Every token
// carries a fresh random id.
func GenerateToken(clientID string, secret []byte, validity time.Duration) (string, error) {
	id, err := common.MakeRandHexString(tokenIDSize)
	if err != nil {
		return "", err
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		ClientID: clientID,
	})
	return token.SignedString(secret)
}

// ParseToken validates token and returns the client id. Expired tokens yield
// common.ErrTokenExpired; anything else wrong yields common.ErrInvalidToken.
// A positive maxLifetime also rejects tokens issued for longer than that.
func ParseToken(token string, secret []byte, maxLifetime time.Duration) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}
	if !parsed.Valid {
		return "", common.ErrInvalidToken
	}
	if maxLifetime > 0 {
		if claims.IssuedAt == nil || claims.ExpiresAt.Sub(claims.IssuedAt.Time) > maxLifetime {
			return "", common.ErrInvalidToken
		}
	}
	return claims.ClientID, nil
}
