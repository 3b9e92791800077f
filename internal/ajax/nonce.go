package ajax

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrBadNonce is returned for a missing, expired or mismatched nonce.
var ErrBadNonce = errors.New("invalid nonce")

type nonceClaims struct {
	Action string `json:"act"`
	jwt.RegisteredClaims
}

// NonceIssuer mints and checks CSRF nonces: HS256 tokens bound to one action
// and one user.
type NonceIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewNonceIssuer creates an issuer.
func NewNonceIssuer(secret []byte, ttl time.Duration) *NonceIssuer {
	return &NonceIssuer{secret: secret, ttl: ttl, now: time.Now}
}

// Issue returns a nonce for action and user, and when it expires.
func (n *NonceIssuer) Issue(action Action, user string) (string, time.Time, error) {
	now := n.now()
	exp := now.Add(n.ttl)
	claims := nonceClaims{
		Action: action.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(n.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign nonce: %w", err)
	}
	return signed, exp, nil
}

// Verify checks that token was issued for action and user and has not expired.
func (n *NonceIssuer) Verify(token string, action Action, user string) error {
	if token == "" {
		return fmt.Errorf("%w: missing", ErrBadNonce)
	}

	var claims nonceClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (interface{}, error) { return n.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(n.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadNonce, err)
	}
	if claims.Action != action.String() {
		return fmt.Errorf("%w: issued for %s", ErrBadNonce, claims.Action)
	}
	if claims.Subject != user {
		return fmt.Errorf("%w: issued for another user", ErrBadNonce)
	}
	return nil
}
