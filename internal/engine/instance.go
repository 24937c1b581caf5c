package engine

import (
	"context"
	"sync"

	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

// Instance wraps an Engine behind a single goroutine request loop, giving
// each running strategy its own isolated, independently scheduled unit of
// execution. All mutation is serialized through the loop; instances run
// fully in parallel with respect to each other, and no locks guard the
// engine state itself.
type Instance struct {
	engine   *Engine
	requests chan func()
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewInstance starts the request loop for the given engine. The engine must
// not be used directly afterwards.
func NewInstance(engine *Engine) *Instance {
	instance := &Instance{
		engine:   engine,
		requests: make(chan func()),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go instance.loop()

	return instance
}

func (i *Instance) loop() {
	defer close(i.done)

	for {
		select {
		case request := <-i.requests:
			request()
		case <-i.quit:
			return
		}
	}
}

// ProcessData submits the next data point and waits for the tick result.
// Returns an engine-stopped error after Stop.
func (i *Instance) ProcessData(ctx context.Context, bar types.Bar) (*TickResult, error) {
	type response struct {
		result *TickResult
		err    error
	}

	reply := make(chan response, 1)

	err := i.submit(ctx, func() {
		result, err := i.engine.ProcessBar(ctx, bar)
		reply <- response{result: result, err: err}
	})
	if err != nil {
		return nil, err
	}

	select {
	case r := <-reply:
		return r.result, r.err
	case <-ctx.Done():
		return nil, errors.Wrap(errors.ErrCodeEngineStopped, "tick abandoned", ctx.Err())
	}
}

// State returns a snapshot of the engine state, serialized with ticks.
func (i *Instance) State(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)

	err := i.submit(ctx, func() {
		reply <- i.engine.Snapshot()
	})
	if err != nil {
		return Snapshot{}, err
	}

	select {
	case snapshot := <-reply:
		return snapshot, nil
	case <-ctx.Done():
		return Snapshot{}, errors.Wrap(errors.ErrCodeEngineStopped, "state query abandoned", ctx.Err())
	}
}

// SessionID returns the run identifier of the wrapped engine.
func (i *Instance) SessionID() string {
	return i.engine.SessionID()
}

// Stop shuts the instance down after any in-flight request completes.
// Subsequent calls are no-ops; subsequent submissions fail.
func (i *Instance) Stop() {
	i.stopOnce.Do(func() {
		close(i.quit)
	})
	<-i.done
}

func (i *Instance) submit(ctx context.Context, request func()) error {
	select {
	case i.requests <- request:
		return nil
	case <-i.quit:
		return errors.New(errors.ErrCodeEngineStopped, "engine instance stopped")
	case <-ctx.Done():
		return errors.Wrap(errors.ErrCodeEngineStopped, "submission abandoned", ctx.Err())
	}
}
