package pipeline

import (
	"context"
	"time"

	"turbopix/internal/logging"
)

// dailyClock fires a full rescan (with orphan cleanup and a trailing
// VACUUM) once every 24 hours at cfg.RescanHour:cfg.VacuumMinute local
// time, sleeping until the next occurrence rather than polling on a short
// ticker, so a late start doesn't cause an immediate extra run.
func (s *Scheduler) dailyClock(ctx context.Context) {
	for {
		wait := time.Until(nextRescan(time.Now(), s.cfg.RescanHour, s.cfg.VacuumMinute))
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			logging.Info("pipeline: nightly rescan triggered")
			if err := s.RunOnce(ctx, true); err != nil {
				logging.Error("pipeline: nightly rescan failed: %v", err)
			}
		case <-s.stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// nextRescan returns the next local time at hour:minute strictly after now.
func nextRescan(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
