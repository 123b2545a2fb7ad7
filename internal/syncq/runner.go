package syncq

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/virtual-shiksha/shiksha/internal/connectivity"
	"github.com/virtual-shiksha/shiksha/internal/log"
)

// Drainer is what the Runner schedules. *Queue satisfies it.
type Drainer interface {
	Drain(ctx context.Context) (Result, error)
}

// Ticker abstracts time.Ticker so tests can drive periodic drains.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTicker returns a Ticker backed by time.Ticker.
func NewTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Runner drains the queue when connectivity returns and on every tick.
// Back-to-back triggers are throttled to one drain per minGap.
type Runner struct {
	queue   Drainer
	conn    connectivity.Source
	ticker  Ticker
	limiter *rate.Limiter

	// OnDrain, if set, observes every drain the runner performs.
	OnDrain func(trigger string, res Result, err error)
}

// NewRunner creates a scheduler. conn and ticker may be nil to disable
// that trigger.
func NewRunner(q Drainer, conn connectivity.Source, ticker Ticker, minGap time.Duration) *Runner {
	limit := rate.Inf
	if minGap > 0 {
		limit = rate.Every(minGap)
	}
	return &Runner{
		queue:   q,
		conn:    conn,
		ticker:  ticker,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	var (
		changes <-chan bool
		ticks   <-chan time.Time
	)
	if r.conn != nil {
		changes = r.conn.Changes()
	}
	if r.ticker != nil {
		ticks = r.ticker.C()
		defer r.ticker.Stop()
	}

	r.drain(ctx, "startup")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case online := <-changes:
			if !online {
				continue
			}
			// A reconnect always drains, waiting out the limiter if needed.
			if err := r.limiter.Wait(ctx); err != nil {
				return ctx.Err()
			}
			r.run(ctx, "online")
		case <-ticks:
			if !r.limiter.Allow() {
				log.Debugf("sync queue: periodic drain throttled")
				continue
			}
			r.run(ctx, "tick")
		}
	}
}

func (r *Runner) drain(ctx context.Context, trigger string) {
	if !r.limiter.Allow() {
		return
	}
	r.run(ctx, trigger)
}

func (r *Runner) run(ctx context.Context, trigger string) {
	res, err := r.queue.Drain(ctx)
	switch {
	case err != nil:
		log.Errorf("sync queue drain (%s): %v", trigger, err)
	case res.Skipped:
		log.Debugf("sync queue drain (%s) skipped: %s", trigger, res.SkipReason)
	case res.Delivered+res.Failed+res.Abandoned > 0:
		log.Infof("sync queue drain (%s): %d delivered, %d failed, %d abandoned",
			trigger, res.Delivered, res.Failed, res.Abandoned)
	}
	if r.OnDrain != nil {
		r.OnDrain(trigger, res, err)
	}
}
