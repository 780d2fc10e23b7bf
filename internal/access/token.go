package access

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carried by API tokens.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	Phone  string `json:"phone_number,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier checks HS256 tokens signed with a shared secret.
type TokenVerifier struct {
	secret []byte
	now    func() time.Time
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), now: time.Now}
}

// Verify parses token and returns its subject and phone. The user ID comes
// from "sub", falling back to "user_id".
func (v *TokenVerifier) Verify(token string) (userID, phone string, err error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenMalformed
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID = claims.Subject
	if userID == "" {
		userID = claims.UserID
	}
	if userID == "" {
		return "", "", fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return userID, claims.Phone, nil
}

// Issue signs a token for userID valid for ttl.
func (v *TokenVerifier) Issue(userID, phone string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		Phone: phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
