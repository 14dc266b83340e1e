// Package admin implements the shared-secret gate permitting audio deletion.
// The gate only issues and checks capabilities; enforcement happens in the
// HTTP layer, never inside the audio repository.
package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrBadPasscode rejects a wrong shared secret.
	ErrBadPasscode = errors.New("invalid passcode")
	// ErrInvalidToken rejects an expired, malformed or revoked token.
	ErrInvalidToken = errors.New("invalid admin token")
)

// RevocationStore remembers revoked token ids until they would have expired.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Gate checks the admin passcode and issues short-lived admin tokens.
type Gate struct {
	passcodeHash []byte
	secret       []byte
	ttl          time.Duration
	revoked      RevocationStore
}

// NewGate hashes the configured passcode and prepares the gate.
func NewGate(passcode, tokenSecret string, ttl time.Duration, revoked RevocationStore) (*Gate, error) {
	if passcode == "" {
		return nil, fmt.Errorf("admin passcode not configured")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash passcode: %w", err)
	}
	return &Gate{
		passcodeHash: hash,
		secret:       []byte(tokenSecret),
		ttl:          ttl,
		revoked:      revoked,
	}, nil
}

// Verify checks the passcode and returns an admin token on success.
func (g *Gate) Verify(passcode string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(g.passcodeHash, []byte(passcode)); err != nil {
		return "", ErrBadPasscode
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"adm": true,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(g.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign admin token: %w", err)
	}
	return signed, nil
}

// Check validates an admin token: signature, expiry and revocation.
func (g *Gate) Check(ctx context.Context, tokenString string) error {
	claims, err := g.parse(tokenString)
	if err != nil {
		return err
	}

	if g.revoked != nil {
		jti, _ := claims["jti"].(string)
		revoked, err := g.revoked.IsRevoked(ctx, jti)
		if err != nil {
			return fmt.Errorf("failed to check token revocation: %w", err)
		}
		if revoked {
			return ErrInvalidToken
		}
	}
	return nil
}

// Revoke invalidates a token for its remaining lifetime.
func (g *Gate) Revoke(ctx context.Context, tokenString string) error {
	claims, err := g.parse(tokenString)
	if err != nil {
		return err
	}
	if g.revoked == nil {
		return nil
	}

	jti, _ := claims["jti"].(string)
	remaining := g.ttl
	if exp, ok := claims["exp"].(float64); ok {
		if until := time.Until(time.Unix(int64(exp), 0)); until > 0 {
			remaining = until
		}
	}
	return g.revoked.Revoke(ctx, jti, remaining)
}

func (g *Gate) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return g.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if adm, _ := claims["adm"].(bool); !adm {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
