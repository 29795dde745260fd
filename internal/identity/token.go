package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anonto42/lofi-room/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "session:revoked:"

// TokenIssuer signs and verifies HS256 session tokens. Revoked token ids
// go to Redis when configured, otherwise to process memory.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	rdb    *redis.Client

	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewTokenIssuer creates a new TokenIssuer. rdb may be nil.
func NewTokenIssuer(secret string, ttl time.Duration, rdb *redis.Client) *TokenIssuer {
	return &TokenIssuer{
		secret:  []byte(secret),
		ttl:     ttl,
		rdb:     rdb,
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (t *TokenIssuer) Issue(id *Identity) (string, error) {
	now := t.now()
	claims := &models.SessionClaims{
		UID:     id.UID,
		Name:    id.DisplayName,
		Picture: id.PhotoURL,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and expiry of a session token.
func (t *TokenIssuer) Parse(tokenString string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, models.Wrap(models.ErrUnauthenticated, err)
	}
	return claims, nil
}

// Revoke denies the token until it would have expired anyway.
func (t *TokenIssuer) Revoke(ctx context.Context, claims *models.SessionClaims) error {
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	if t.rdb != nil {
		return t.rdb.Set(ctx, revokedKeyPrefix+claims.ID, 1, ttl).Err()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.revoked[claims.ID] = claims.ExpiresAt.Time
	return nil
}

func (t *TokenIssuer) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if t.rdb != nil {
		n, err := t.rdb.Exists(ctx, revokedKeyPrefix+jti).Result()
		if err != nil {
			return false, err
		}
		return n > 0, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	exp, ok := t.revoked[jti]
	if !ok {
		return false, nil
	}
	if t.now().After(exp) {
		delete(t.revoked, jti)
		return false, nil
	}
	return true, nil
}
