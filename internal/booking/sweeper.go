package booking

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SweepMissed transitions every overdue, un-acted appointment to
// missed and returns how many rows it moved. Overdue means the
// scheduled end plus the configured grace period elapsed strictly
// before now, on the clinic's local clock.
//
// The selection only matches sweepable statuses and the write is a
// compare-and-swap, so overlapping or repeated runs with the same now
// find nothing left to do; the second run reports zero.
func (s *Service) SweepMissed(ctx context.Context, now time.Time) (int, error) {
	local := now.In(s.location())
	today := DateOf(local)
	minute := MinuteOf(local)
	grace := int(s.cfg.GracePeriod / time.Minute)

	overdue, err := s.store.ListOverdue(ctx, today, minute, grace)
	if err != nil {
		return 0, fmt.Errorf("find overdue appointments: %w", err)
	}

	count := 0
	for _, a := range overdue {
		if !CanTransition(a.Status, StatusMissed) {
			continue
		}
		if _, err := s.store.UpdateStatusFrom(ctx, a.ID, a.Status, StatusMissed, a.Date, a.Start, now); err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				// Raced with a concurrent sweep or with a write that
				// moved the row's status or slot on.
				continue
			}
			s.logger.Error("failed to mark appointment missed", "appointment_id", a.ID, "error", err)
			continue
		}
		count++
		s.logEvent(ctx, s.store, a.ID, EventAppointmentMissed, map[string]any{
			"reason": "sweeper",
			"date":   a.Date.String(),
			"start":  a.Start.String(),
		})
	}

	s.metrics.ObserveSwept(count)
	if count > 0 {
		s.logger.Info("missed sweep complete", "transitioned", count)
	}
	return count, nil
}
