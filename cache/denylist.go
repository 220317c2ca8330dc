package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const denyPrefix = "kaizen:session:revoked:"

// Denylist holds revoked session token ids until the token would have expired anyway.
type Denylist struct {
	client redis.Cmdable
}

func NewDenylist(client redis.Cmdable) *Denylist {
	return &Denylist{client: client}
}

func (d *Denylist) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return d.client.Set(ctx, denyPrefix+tokenID, 1, ttl).Err()
}

func (d *Denylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, denyPrefix+tokenID).Result()
	return n > 0, err
}
