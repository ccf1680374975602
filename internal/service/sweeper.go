package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/clock"
)

// Sweeper is the recurring scan that forces past-deadline pending
// reservations through the expire transition. It goes through the
// coordinator, so the guarded transition and version checks apply — the
// sweeper has no special privilege and losing a race to a user cancel is
// fine.
type Sweeper struct {
	store    ReservationStore
	coord    *Coordinator
	clk      clock.Clock
	log      *slog.Logger
	interval time.Duration
	batch    int
}

func NewSweeper(store ReservationStore, coord *Coordinator, clk clock.Clock, log *slog.Logger, interval time.Duration, batch int) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &Sweeper{store: store, coord: coord, clk: clk, log: log, interval: interval, batch: batch}
}

// Run sweeps on a ticker until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopping")
			return nil
		case <-t.C:
			if err := s.Sweep(ctx); err != nil {
				s.log.Error("sweep failed", "err", err)
			}
		}
	}
}

// Sweep expires one batch. A single reservation's failure is logged and
// skipped so it cannot abort the rest of the batch.
func (s *Sweeper) Sweep(ctx context.Context) error {
	ids, err := s.store.ListExpiredIDs(ctx, s.clk.Now(), s.batch)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := s.coord.Expire(ctx, id); err != nil {
			s.log.Warn("expiry failed for reservation", "reservation_id", id, "err", err)
		}
	}
	return nil
}
