package challenge

import (
	"context"
	"log"
	"time"
)

// DefaultSweepBatch is how many expired challenges one sweep pass transitions at most.
const DefaultSweepBatch = 100

// Sweeper periodically expires pending challenges that outlived their TTL, so stored status stays
// accurate for challenges nobody answers.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	batch    int
}

// NewSweeper returns a Sweeper running every interval. batch <= 0 uses DefaultSweepBatch.
func NewSweeper(m *Manager, interval time.Duration, batch int) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batch <= 0 {
		batch = DefaultSweepBatch
	}
	return &Sweeper{manager: m, interval: interval, batch: batch}
}

// Run sweeps until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				log.Printf("challenge: sweep failed after %d: %v", n, err)
			} else if n > 0 {
				log.Printf("challenge: expired %d challenges", n)
			}
		}
	}
}

// SweepOnce drains expired challenges batch by batch and returns the total expired.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := s.manager.SweepExpired(ctx, s.batch)
		total += n
		if err != nil || n < s.batch || ctx.Err() != nil {
			return total, err
		}
	}
}
