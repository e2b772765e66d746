// Package token issues and verifies the room tokens a client presents when
// opening a chat connection.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptySecret   = errors.New("token secret cannot be empty")
	ErrMissingClaims = errors.New("user ID, nickname and room ID are required")
	ErrInvalidToken  = errors.New("invalid room token")
)

// Claims binds a user and nickname to exactly one room.
type Claims struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
	RoomID   string `json:"room_id"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 room tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer. Tokens expire after ttl.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue creates a token for userID, known as nickname, scoped to roomID.
func (i *Issuer) Issue(userID, nickname, roomID string) (string, error) {
	if userID == "" || nickname == "" || roomID == "" {
		return "", ErrMissingClaims
	}
	now := i.now()
	claims := Claims{
		UserID:   userID,
		Nickname: nickname,
		RoomID:   roomID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of tok and returns its claims.
func (i *Issuer) Verify(tok string) (*Claims, error) {
	claims := &Claims{}
	keyFunc := func(*jwt.Token) (any, error) { return i.secret, nil }
	_, err := jwt.ParseWithClaims(tok, claims, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.UserID == "" || claims.Nickname == "" || claims.RoomID == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrMissingClaims)
	}
	return claims, nil
}
