// Package sweep runs the expiry cleanup pass on a timer. The external
// contract does not require it: expired reservations are also closed out
// lazily whenever the machine list is read. The sweep keeps machines from
// sitting occupied indefinitely in deployments nobody polls.
package sweep

import (
	"context"
	"log"
	"time"

	"laundry-reservation-backend/config"
	"laundry-reservation-backend/internal/reserve"
)

// Service periodically closes out expired reservations.
type Service struct {
	cfg    *config.SweepConfig
	engine *reserve.Engine
}

// NewService creates a sweep service over the given engine.
func NewService(cfg *config.SweepConfig, engine *reserve.Engine) *Service {
	return &Service{cfg: cfg, engine: engine}
}

// Run executes cleanup passes until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Println("Cleanup sweep is disabled. Not starting.")
		return
	}
	log.Printf("Starting cleanup sweep every %s...", s.cfg.Interval)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Cleanup sweep shutting down.")
			return
		case <-timer.C:
			s.sweepOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

func (s *Service) sweepOnce(ctx context.Context) {
	closed, err := s.engine.CleanupExpired(ctx)
	if err != nil {
		log.Printf("Cleanup sweep error: %v", err)
		return
	}
	if closed > 0 {
		log.Printf("Cleanup sweep closed %d expired reservations", closed)
	}
}
