// Package scheduler periodically runs speedtests and stores their results in
// a cache.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/m-lab/speedtest-statuspage/internal/cache"
	"github.com/m-lab/speedtest-statuspage/internal/runner"
	"github.com/m-lab/speedtest-statuspage/pkg/speedtest/model"
	"github.com/m-lab/speedtest-statuspage/pkg/speedtest/spec"
)

// Scheduler refreshes a cache by running a measurement immediately and then
// once per interval.
type Scheduler struct {
	runner   runner.Runner
	cache    *cache.Cache
	interval time.Duration

	newTicker TickerFactory
	now       func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTicker sets the factory used to create the interval ticker.
func WithTicker(f TickerFactory) Option {
	return func(s *Scheduler) {
		s.newTicker = f
	}
}

// WithClock sets the function used to timestamp cache entries.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New returns a Scheduler running r and writing results to c. Intervals
// shorter than spec.MinInterval are raised to spec.MinInterval.
func New(r runner.Runner, c *cache.Cache, interval time.Duration, opts ...Option) *Scheduler {
	if interval < spec.MinInterval {
		log.Warn("Interval too short, using minimum", "interval", interval,
			"minimum", spec.MinInterval)
		interval = spec.MinInterval
	}
	s := &Scheduler{
		runner:    r,
		cache:     c,
		interval:  interval,
		newTicker: FixedTicker(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interval returns the time between two measurement cycles.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Run runs one measurement cycle immediately, then one per interval until
// ctx is canceled. Failed cycles are logged and do not stop the loop.
//
// Run returns nil when ctx is canceled, or an error if the ticker cannot be
// created.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info("Starting speedtest scheduler", "interval", s.interval)
	// Many tickers wait a full interval before the first tick, so the first
	// cycle runs explicitly.
	s.Tick(ctx)

	t, err := s.newTicker(ctx, s.interval)
	if err != nil {
		return fmt.Errorf("cannot create ticker: %w", err)
	}
	defer t.Stop()

	for {
		if ctx.Err() != nil {
			log.Info("Speedtest scheduler stopped")
			return nil
		}
		select {
		case <-ctx.Done():
			log.Info("Speedtest scheduler stopped")
			return nil
		case <-t.C():
			s.Tick(ctx)
		}
	}
}

// Tick runs a single measurement cycle: it runs the measurement, parses its
// output and replaces the cached result. On failure the cache is left
// unchanged and the error is logged and returned.
func (s *Scheduler) Tick(ctx context.Context) error {
	id := uuid.NewString()
	start := s.now()
	log.Debug("Starting measurement cycle", "cycle", id)

	err := s.fetch(ctx, id)
	cycleDuration.Observe(s.now().Sub(start).Seconds())
	if err != nil && ctx.Err() != nil {
		// Shutting down: the tool was killed, not broken.
		log.Info("Measurement cycle interrupted", "cycle", id, "reason", ctx.Err())
		return err
	}
	cyclesTotal.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		log.Error("Measurement cycle failed", "cycle", id, "error", err)
		if e, ok := s.cache.Entry(); ok {
			log.Info("Keeping previous result", "cycle", id,
				"captured", e.CapturedAt, "age", s.now().Sub(e.CapturedAt))
		}
	}
	return err
}

func (s *Scheduler) fetch(ctx context.Context, id string) error {
	out, err := s.runner.Run(ctx)
	if err != nil {
		return err
	}
	result, err := model.Parse(out)
	if err != nil {
		log.Debug("Unparsable speedtest output", "cycle", id, "output", string(out))
		return err
	}

	capturedAt := s.now()
	s.cache.Write(*result, capturedAt)

	downloadMbps.Set(result.DownloadMbps)
	uploadMbps.Set(result.UploadMbps)
	pingMS.Set(result.PingMS)
	lastSuccess.Set(float64(capturedAt.Unix()))
	log.Info("Speedtest updated", "cycle", id, "timestamp", result.Timestamp,
		"download_mbps", result.DownloadMbps, "upload_mbps", result.UploadMbps,
		"ping_ms", result.PingMS)
	return nil
}

// resultLabel maps a cycle error to its metric label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, runner.ErrSpawnFailed):
		return "spawn-failed"
	case errors.Is(err, runner.ErrToolFailed):
		return "tool-failed"
	case errors.Is(err, model.ErrMalformed):
		return "malformed"
	default:
		return "error"
	}
}
