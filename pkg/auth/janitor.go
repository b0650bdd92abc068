package auth

import (
	"context"
	"time"
)

// PruneSessions deletes every session that has expired.
func (s *Service) PruneSessions(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredSessions(ctx, s.now())
}

// RunJanitor prunes expired sessions right away and then every interval
// until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	s.log.Infof("Starting session janitor (interval: %s)", interval)

	s.prune(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.prune(ctx)
		}
	}
}

func (s *Service) prune(ctx context.Context) {
	n, err := s.PruneSessions(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Infof("Session prune failed: %v", err)
		}
		return
	}
	if n > 0 {
		s.log.Debugf("Pruned %d expired sessions", n)
	}
}
