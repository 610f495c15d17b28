package service

import (
	"context"
	"time"

	"ridebook/internal/domain/ride"
)

const sweepBatchSize = 200

// RunTimeoutSweeper periodically applies the per-state fallback transition to
// rides whose deadline elapsed. Deadlines are derived from the persisted
// timestamp that entered the state, so a restart never loses one: whatever
// expired while the service was down fires on the first sweep after boot.
func (service *rideService) RunTimeoutSweeper(ctx context.Context) {
	interval := time.Duration(service.cfg.Timeouts.SweepIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	service.logger.Info(ctx, "timeout_sweeper_started", "Ride timeout sweeper running", map[string]any{
		"interval_s": service.cfg.Timeouts.SweepIntervalSeconds,
	})

	for {
		select {
		case <-ctx.Done():
			service.logger.Info(ctx, "timeout_sweeper_stopped", "Ride timeout sweeper stopped", nil)
			return
		case <-ticker.C:
			service.sweepOnce(ctx)
		}
	}
}

// sweepOnce scans active rides and fires the fallback for every expired one.
func (service *rideService) sweepOnce(ctx context.Context) {
	now := time.Now().UTC()

	var active []*ride.Ride
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		active, err = service.rideRepo.ListActive(txCtx, sweepBatchSize)
		return err
	})
	if err != nil {
		service.logger.Error(ctx, "timeout_sweep_failed", "Failed to list active rides", err, nil)
		return
	}

	expired := 0
	for _, r := range active {
		deadline, ok := service.deadlineFor(r.Status)
		if !ok {
			continue
		}
		if now.Sub(r.EnteredStateAt()) < deadline {
			continue
		}

		fb, ok := ride.FallbackFor(r.Status)
		if !ok {
			continue
		}

		// the fallback goes through the same locked transition path as every
		// other event; if a user event won the race in the meantime, the
		// revalidation inside simply rejects the stale fallback
		_, err := service.applyTransition(ctx, r.ID, fb.Event, ride.TransitionPayload{
			CancelledBy: fb.Actor,
			Reason:      fb.Reason,
		}, fb.Actor)
		if err != nil {
			service.logger.Error(ctx, "timeout_fallback_failed", "Failed to apply timeout fallback", err, map[string]any{
				"ride_id": r.ID,
				"status":  r.Status.String(),
				"reason":  fb.Reason,
			})
			continue
		}
		expired++
	}

	if expired > 0 {
		service.logger.Info(ctx, "timeout_sweep_done", "Applied timeout fallbacks", map[string]any{
			"scanned": len(active),
			"expired": expired,
		})
	}
}

// deadlineFor maps a lifecycle state to its configured deadline.
func (service *rideService) deadlineFor(status ride.Status) (time.Duration, bool) {
	switch status {
	case ride.StatusRequested:
		return service.cfg.RequestGrace(), true
	case ride.StatusSearchingDriver:
		return service.cfg.DriverSearch(), true
	case ride.StatusDriverAssigned:
		return service.cfg.DriverArrival(), true
	case ride.StatusDriverArrived:
		return service.cfg.NoShow(), true
	case ride.StatusStarted:
		return service.cfg.MaxRideDuration(), true
	default:
		return 0, false
	}
}
