package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/TriNguyen2808/backend-eventapp/internal/inventory"
	"github.com/TriNguyen2808/backend-eventapp/internal/kafka"
	"github.com/TriNguyen2808/backend-eventapp/internal/logger"
	"github.com/TriNguyen2808/backend-eventapp/internal/models"
	paydb "github.com/TriNguyen2808/backend-eventapp/internal/payment/db"
)

// Sweeper expires payment sessions the customer abandoned. A session that
// stays pending past the timeout never paid; its reserved capacity goes back
// on sale.
type Sweeper struct {
	DB       *bun.DB
	Producer *kafka.Producer
	Logger   *logger.Logger
	Timeout  time.Duration
	Interval time.Duration
}

func New(db *bun.DB, producer *kafka.Producer, log *logger.Logger, timeout, interval time.Duration) *Sweeper {
	return &Sweeper{
		DB:       db,
		Producer: producer,
		Logger:   log,
		Timeout:  timeout,
		Interval: interval,
	}
}

// SweepOnce expires every pending session older than the timeout. Each
// expiry is a compare-and-set; losing the race to a concurrent callback means
// the customer paid at the last second, so the session is left alone.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) (int, error) {
	sessions := paydb.NewDB(s.DB)
	ledger := inventory.NewLedger(s.DB)

	stale, err := sessions.ListPendingOlderThan(ctx, now.Add(-s.Timeout))
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, session := range stale {
		err := sessions.Expire(ctx, session.OrderID)
		if errors.Is(err, paydb.ErrAlreadySettled) {
			continue
		}
		if err != nil {
			s.Logger.Error("SWEEPER", fmt.Sprintf("expire %s: %v", session.OrderID, err))
			continue
		}
		expired++

		if err := ledger.Release(ctx, session.TicketClassID); err != nil && !errors.Is(err, inventory.ErrEventInactive) {
			s.Logger.Error("SWEEPER", fmt.Sprintf("release class %d for %s: %v", session.TicketClassID, session.OrderID, err))
		}

		if s.Producer != nil {
			session.Status = models.StatusExpired
			if err := s.Producer.PublishPaymentSettled(ctx, &session); err != nil {
				s.Logger.LogKafka("ERROR", kafka.TopicPaymentExpired, err.Error())
			}
		}
	}

	if expired > 0 {
		s.Logger.LogSweeper(fmt.Sprintf("expired %d stale payment session(s)", expired))
	}
	return expired, nil
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.Logger.LogSweeper(fmt.Sprintf("started, timeout %s, interval %s", s.Timeout, s.Interval))
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Logger.LogSweeper("stopped")
			return
		case now := <-ticker.C:
			if _, err := s.SweepOnce(ctx, now); err != nil {
				s.Logger.Error("SWEEPER", fmt.Sprintf("sweep failed: %v", err))
			}
		}
	}
}
