package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedPrefix = "revoked:"

// Revocations wraps Redis as a denylist of logged-out token ids.
type Revocations struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRevocations(rdb *redis.Client) *Revocations {
	return &Revocations{rdb: rdb, now: time.Now}
}

// Revoke marks a token id as unusable until the token would have expired.
func (r *Revocations) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, revokedPrefix+tokenID, "1", ttl).Err()
}

// IsRevoked reports whether the token id has been revoked.
func (r *Revocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, revokedPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
