package auth

import (
	"context"
	"log"
	"time"
)

const DefaultTokenCleanupInterval = time.Hour

// StartTokenJanitor deletes expired token rows every interval until ctx is done.
func (s *Service) StartTokenJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTokenCleanupInterval
	}
	go s.cleanupLoop(ctx, interval)
}

func (s *Service) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.purgeExpiredTokens(ctx); err != nil {
				log.Printf("cleanup tokens error: %v", err)
			} else if n > 0 {
				log.Printf("cleanup tokens: removed %d expired", n)
			}
		}
	}
}

// Cached entries carry the same TTL, so only the table needs sweeping.
func (s *Service) purgeExpiredTokens(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE expires_at <= ?`, s.now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
