// Package realtime maintains a bounded sliding window of live bars and keeps
// indicator values current over it. It is the live-data counterpart of the
// backtest runner: same indicator runtime, different buffering policy.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rzcastilho/trading-strategy-sub000/internal/indicator"
	"github.com/rzcastilho/trading-strategy-sub000/internal/logger"
	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

// Subscriber receives the latest indicator values after a recomputation.
// Callbacks run on a notification goroutine, never on the ingestion path.
type Subscriber func(symbol string, values map[string]decimal.Decimal)

// Config parameterizes one rolling engine.
type Config struct {
	// Symbol is the traded symbol this engine buffers.
	Symbol string `validate:"required"`
	// Timeframe buckets ticks into bars, e.g. "1m", "1h".
	Timeframe string `validate:"required"`
	// WindowSize bounds the bar buffer. The oldest bar is evicted on
	// overflow.
	WindowSize int `validate:"gt=0"`
	// MinRecomputeInterval rate-limits tick-driven recomputation. Inside
	// the interval a tick returns the previous values unchanged. Closed
	// bars always recompute.
	MinRecomputeInterval time.Duration
	// BatchTimeout bounds each indicator computation.
	BatchTimeout time.Duration
}

// RollingEngine ingests live bars and ticks for one symbol, recomputes
// indicator values over the buffered window, and fans results out to
// subscribers. All state is owned by a single request loop; ingestion,
// queries, and subscription management are serialized through it.
//
// The buffer is held most-recent-first. Recomputation reverses it to
// chronological order before handing it to the indicator runtime.
type RollingEngine struct {
	cfg           Config
	periodSeconds int64
	runtime       *indicator.Runtime
	log           *logger.Logger
	now           func() time.Time

	buffer        []types.Bar
	currentPeriod int64
	lastRecompute time.Time
	lastValues    map[string]decimal.Decimal
	ready         bool

	subscribers map[string]Subscriber
	notifyWG    sync.WaitGroup

	requests chan func()
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewRollingEngine validates the configuration, binds the declared
// indicators in batch mode, and starts the request loop.
func NewRollingEngine(cfg Config, registry indicator.Registry, defs []types.IndicatorDefinition, log *logger.Logger) (*RollingEngine, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	if cfg.Symbol == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "rolling engine requires a symbol")
	}

	if cfg.WindowSize <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
			"window size must be positive, got %d", cfg.WindowSize)
	}

	periodSeconds, err := types.TimeframeSeconds(cfg.Timeframe)
	if err != nil {
		return nil, err
	}

	runtime, err := indicator.NewBatchRuntime(registry, defs, cfg.BatchTimeout, log)
	if err != nil {
		return nil, err
	}

	engine := &RollingEngine{
		cfg:           cfg,
		periodSeconds: periodSeconds,
		runtime:       runtime,
		log:           log,
		now:           time.Now,
		currentPeriod: -1,
		subscribers:   make(map[string]Subscriber),
		requests:      make(chan func()),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
	}

	go engine.loop()

	return engine, nil
}

func (e *RollingEngine) loop() {
	defer close(e.done)

	for {
		select {
		case request := <-e.requests:
			request()
		case <-e.quit:
			return
		}
	}
}

// PushBar ingests a whole closed bar: append, evict the oldest past the
// window, and recompute. Closed bars bypass the minimum recompute interval.
func (e *RollingEngine) PushBar(ctx context.Context, bar types.Bar) (map[string]decimal.Decimal, error) {
	return e.request(ctx, func() (map[string]decimal.Decimal, error) {
		if bar.Symbol != e.cfg.Symbol {
			return nil, errors.Newf(errors.ErrCodeInvalidParameter,
				"bar symbol %s does not match engine symbol %s", bar.Symbol, e.cfg.Symbol)
		}

		if len(e.buffer) > 0 && !bar.Time.After(e.buffer[0].Time) {
			return nil, errors.Newf(errors.ErrCodeInvalidParameter,
				"out-of-order bar at %s, newest buffered is %s", bar.Time, e.buffer[0].Time)
		}

		e.insert(bar)
		e.currentPeriod = bar.Time.Unix() / e.periodSeconds

		return e.recompute(ctx), nil
	})
}

// PushTick folds a traded price into the window: it mutates the in-progress
// bar, or opens a new bar when the tick's timestamp lands in a new period.
// Recomputation is skipped inside the minimum interval, returning the
// previous values.
func (e *RollingEngine) PushTick(ctx context.Context, ts time.Time, price decimal.Decimal) (map[string]decimal.Decimal, error) {
	return e.request(ctx, func() (map[string]decimal.Decimal, error) {
		period := ts.Unix() / e.periodSeconds

		switch {
		case period < e.currentPeriod:
			return nil, errors.Newf(errors.ErrCodeInvalidParameter,
				"stale tick at %s, current period already at %d", ts, e.currentPeriod)
		case len(e.buffer) == 0 || period > e.currentPeriod:
			open := time.Unix(period*e.periodSeconds, 0).UTC()
			e.insert(types.NewBarFromTick(e.cfg.Symbol, open, price))
			e.currentPeriod = period
		default:
			e.buffer[0].ApplyTick(price)
		}

		if e.ready && e.now().Sub(e.lastRecompute) < e.cfg.MinRecomputeInterval {
			return e.lastValues, nil
		}

		return e.recompute(ctx), nil
	})
}

// CurrentValues returns the values of the last recomputation, or a not-ready
// error before the first one.
func (e *RollingEngine) CurrentValues(ctx context.Context) (map[string]decimal.Decimal, error) {
	return e.request(ctx, func() (map[string]decimal.Decimal, error) {
		if !e.ready {
			return nil, errors.NewNotReadyError(e.cfg.Symbol)
		}

		return e.lastValues, nil
	})
}

// Subscribe registers a subscriber under the given ID. Re-subscribing the
// same ID replaces the callback.
func (e *RollingEngine) Subscribe(ctx context.Context, id string, fn Subscriber) error {
	return e.submit(ctx, func() {
		e.subscribers[id] = fn
	})
}

// Unsubscribe removes a subscriber. Unknown IDs are a no-op.
func (e *RollingEngine) Unsubscribe(ctx context.Context, id string) error {
	return e.submit(ctx, func() {
		delete(e.subscribers, id)
	})
}

// Stop shuts the engine down after any in-flight request completes and
// waits for pending subscriber notifications to drain. Idempotent.
func (e *RollingEngine) Stop() {
	e.stopOnce.Do(func() {
		close(e.quit)
	})
	<-e.done
	e.notifyWG.Wait()
}

// insert prepends a bar, evicting the oldest past the window.
func (e *RollingEngine) insert(bar types.Bar) {
	e.buffer = append([]types.Bar{bar}, e.buffer...)
	if len(e.buffer) > e.cfg.WindowSize {
		e.buffer = e.buffer[:e.cfg.WindowSize]
	}
}

// recompute runs the indicator runtime over the chronological window and
// fans the latest values out to the current subscribers. Indicator failures
// are absorbed by the runtime; the affected names are simply absent.
func (e *RollingEngine) recompute(ctx context.Context) map[string]decimal.Decimal {
	chronological := make([]types.Bar, len(e.buffer))
	for i, bar := range e.buffer {
		chronological[len(e.buffer)-1-i] = bar
	}

	results := e.runtime.OnBar(ctx, chronological)

	values := make(map[string]decimal.Decimal, len(results))
	for name, value := range results {
		values[name] = value.Latest
	}

	e.lastValues = values
	e.lastRecompute = e.now()
	e.ready = true

	e.log.Debug("rolling recompute",
		zap.String("symbol", e.cfg.Symbol),
		zap.Int("window", len(e.buffer)),
		zap.Int("indicators", len(values)))

	e.notify(values)

	return values
}

// notify delivers asynchronously so ingestion never waits on a subscriber.
func (e *RollingEngine) notify(values map[string]decimal.Decimal) {
	if len(e.subscribers) == 0 {
		return
	}

	targets := make([]Subscriber, 0, len(e.subscribers))
	for _, fn := range e.subscribers {
		targets = append(targets, fn)
	}

	snapshot := make(map[string]decimal.Decimal, len(values))
	for name, value := range values {
		snapshot[name] = value
	}

	e.notifyWG.Add(1)

	go func() {
		defer e.notifyWG.Done()

		for _, fn := range targets {
			fn(e.cfg.Symbol, snapshot)
		}
	}()
}

func (e *RollingEngine) request(ctx context.Context, op func() (map[string]decimal.Decimal, error)) (map[string]decimal.Decimal, error) {
	type response struct {
		values map[string]decimal.Decimal
		err    error
	}

	reply := make(chan response, 1)

	err := e.submit(ctx, func() {
		values, err := op()
		reply <- response{values: values, err: err}
	})
	if err != nil {
		return nil, err
	}

	select {
	case r := <-reply:
		return r.values, r.err
	case <-ctx.Done():
		return nil, errors.Wrap(errors.ErrCodeEngineStopped, "request abandoned", ctx.Err())
	}
}

func (e *RollingEngine) submit(ctx context.Context, request func()) error {
	select {
	case e.requests <- request:
		return nil
	case <-e.quit:
		return errors.New(errors.ErrCodeEngineStopped, "rolling engine stopped")
	case <-ctx.Done():
		return errors.Wrap(errors.ErrCodeEngineStopped, "submission abandoned", ctx.Err())
	}
}
