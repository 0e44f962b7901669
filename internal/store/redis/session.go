package redis

import (
	"context"
	"fmt"
	"time"
)

// RevokeSession marks a session id as revoked until it would have expired
func (s *Store) RevokeSession(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		// already expired, nothing to remember
		return nil
	}
	if err := s.client.Set(ctx, RevokedSessionKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// IsSessionRevoked reports whether a session id was revoked
func (s *Store) IsSessionRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, RevokedSessionKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session revocation: %w", err)
	}
	return n > 0, nil
}
