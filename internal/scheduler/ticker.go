package scheduler

import (
	"context"
	"time"

	"github.com/m-lab/go/memoryless"
)

// Ticker delivers ticks on a channel until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a Ticker ticking roughly every interval. The ticker
// must stop ticking when ctx is done.
type TickerFactory func(ctx context.Context, interval time.Duration) (Ticker, error)

type memorylessTicker struct {
	t *memoryless.Ticker
}

func (m *memorylessTicker) C() <-chan time.Time { return m.t.C }
func (m *memorylessTicker) Stop()              { m.t.Stop() }

// FixedTicker returns a TickerFactory for tickers with a constant period.
func FixedTicker() TickerFactory {
	return func(ctx context.Context, interval time.Duration) (Ticker, error) {
		t, err := memoryless.NewTicker(ctx, memoryless.Config{
			Min:      interval,
			Expected: interval,
			Max:      interval,
		})
		if err != nil {
			return nil, err
		}
		return &memorylessTicker{t: t}, nil
	}
}

// JitteredTicker returns a TickerFactory for tickers whose waits are drawn
// from an exponential distribution with mean interval, truncated to
// [interval/2, 2*interval]. Randomized waits avoid lining up with periodic
// network events.
func JitteredTicker() TickerFactory {
	return func(ctx context.Context, interval time.Duration) (Ticker, error) {
		t, err := memoryless.NewTicker(ctx, memoryless.Config{
			Min:      interval / 2,
			Expected: interval,
			Max:      2 * interval,
		})
		if err != nil {
			return nil, err
		}
		return &memorylessTicker{t: t}, nil
	}
}
