package cache

import (
	"context"
	"time"

	"github.com/koustreak/schemacache/internal/logger"
)

// RunPurger calls s.Purge every interval until ctx is cancelled. Purge
// failures are logged and retried on the next tick.
func RunPurger(ctx context.Context, s Maintained, interval time.Duration, log *logger.Logger) error {
	log = logger.OrNop(log)
	if interval <= 0 {
		log.Info("cache purger disabled")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.Purge(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.WarnWith("purge expired cache entries", err, nil)
				continue
			}
			if n > 0 {
				log.InfoWith("expired cache entries purged", map[string]any{"purged": n})
			}
		}
	}
}
