// Package spy implements the per-spy runtime that owns a watcher, a
// rule-matching dispatcher, and a completion drain: an event source
// feeds the matcher, a matched event becomes a worker task that runs
// through the rate limiter and executor, and every result is logged by
// a dedicated drain goroutine.
package spy

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/yukimemi/spyrun/internal/command"
	"github.com/yukimemi/spyrun/internal/config"
	spyrunerrors "github.com/yukimemi/spyrun/internal/errors"
	"github.com/yukimemi/spyrun/internal/executor"
	"github.com/yukimemi/spyrun/internal/logging"
	"github.com/yukimemi/spyrun/internal/matcher"
	"github.com/yukimemi/spyrun/internal/ratelimit"
	"github.com/yukimemi/spyrun/internal/tmpl"
	"github.com/yukimemi/spyrun/internal/walk"
	"github.com/yukimemi/spyrun/internal/workerpool"
)

// Runtime is one spy's live state: its watcher source, its dispatcher
// goroutine, and its completion drain.
type Runtime struct {
	spy     config.Spy
	matcher *matcher.Matcher
	pool    *workerpool.Pool
	sched   *ratelimit.Scheduler
	log     logging.Logger
	baseCtx tmpl.Context

	src source

	events      chan matcher.Event
	stopDispatch chan struct{}
	dispatcherDone chan struct{}
	completions chan command.Result
	drainDone   chan struct{}
	tasksWg     sync.WaitGroup

	stopOnce sync.Once
}

// New constructs a Runtime for spy. It does not start any goroutines;
// call Start.
func New(spy config.Spy, pool *workerpool.Pool, sched *ratelimit.Scheduler, log logging.Logger, baseCtx tmpl.Context) (*Runtime, error) {
	m, err := matcher.New(spy)
	if err != nil {
		return nil, spyrunerrors.Config("spy.New", "compile patterns", err).WithSpy(spy.Name)
	}

	return &Runtime{
		spy:            spy,
		matcher:        m,
		pool:           pool,
		sched:          sched,
		log:            log.With("spy", spy.Name),
		baseCtx:        baseCtx,
		events:         make(chan matcher.Event, 256),
		stopDispatch:   make(chan struct{}),
		dispatcherDone: make(chan struct{}),
		completions:    make(chan command.Result, 256),
		drainDone:      make(chan struct{}),
	}, nil
}

// Start launches the dispatcher and completion drain, performs the
// optional startup walk, applies the optional startup delay, then
// starts the watcher source. The walk (if any) runs before the watcher
// starts, and its own delay is independent of the spy's startup delay.
func (r *Runtime) Start(ctx context.Context) error {
	go r.dispatch(ctx)
	go r.drain()

	if r.spy.Walk != nil {
		sleepRange(r.spy.Walk.DelayMs)
		kind := walk.DefaultKind(r.spy.Events)
		events, err := walk.Sweep(r.spy.Input, *r.spy.Walk, kind)
		if err != nil {
			r.Stop()
			return spyrunerrors.Watcher("spy.Start", "startup walk failed", err).WithSpy(r.spy.Name)
		}
		for _, ev := range events {
			r.events <- ev
		}
	}

	sleepRange(r.spy.DelayMs)

	src, err := newSource(r.spy)
	if err != nil {
		r.Stop()
		return spyrunerrors.Watcher("spy.Start", "watcher setup failed", err).WithSpy(r.spy.Name)
	}
	r.src = src

	go r.pump()
	return nil
}

// sleepRange sleeps ms[0] ms, or a uniform random duration in
// [ms[0], ms[1]] ms when a second bound is given; it is a no-op for a
// nil or empty slice.
func sleepRange(ms []int) {
	switch len(ms) {
	case 0:
		return
	case 1:
		time.Sleep(time.Duration(ms[0]) * time.Millisecond)
	default:
		lo, hi := ms[0], ms[1]
		if hi <= lo {
			time.Sleep(time.Duration(lo) * time.Millisecond)
			return
		}
		d := lo + rand.Intn(hi-lo+1)
		time.Sleep(time.Duration(d) * time.Millisecond)
	}
}

// pump forwards the watcher source's events into r.events until the
// source closes or dispatch has stopped.
func (r *Runtime) pump() {
	for {
		select {
		case ev, ok := <-r.src.Events():
			if !ok {
				return
			}
			select {
			case r.events <- ev:
			case <-r.stopDispatch:
				return
			}
		case err, ok := <-r.src.Errors():
			if !ok {
				continue
			}
			r.log.Warn(context.Background(), err, "watcher error")
		case <-r.stopDispatch:
			return
		}
	}
}

// dispatch is the rule-matcher-to-worker-fan-out loop: on each Event it
// matches rules and, on a match, submits a worker task. On Stop it
// stops reading new events (any already-submitted tasks keep running
// to completion, since they're not cancelled) and exits.
func (r *Runtime) dispatch(ctx context.Context) {
	defer close(r.dispatcherDone)
	for {
		select {
		case <-r.stopDispatch:
			return
		case ev, ok := <-r.events:
			if !ok {
				return
			}
			r.handle(ctx, ev)
		}
	}
}

func (r *Runtime) handle(ctx context.Context, ev matcher.Event) {
	pattern, ok := r.matcher.Match(ev)
	if !ok {
		return
	}

	workCtx := r.baseCtx.Clone()
	r.tasksWg.Add(1)
	r.pool.Submit(func() {
		defer r.tasksWg.Done()
		r.runOne(ctx, pattern, ev, workCtx)
	})
}

func (r *Runtime) runOne(ctx context.Context, pattern config.Pattern, ev matcher.Event, workCtx tmpl.Context) {
	info, err := command.Materialize(r.spy.Name, ev.Path(), matcher.MappedKind(ev.Kind), pattern.Cmd, pattern.Arg, r.spy.Input, r.spy.Output, workCtx)
	if err != nil {
		r.log.Warn(ctx, err, "template render failed, event skipped")
		r.completions <- command.Result{Skipped: true}
		return
	}

	limitKey, err := resolveKey(r.spy.LimitKey, info, workCtx)
	if err != nil {
		r.log.Warn(ctx, err, "limitkey render failed, event skipped")
		r.completions <- command.Result{Skipped: true}
		return
	}
	mutexKey, err := resolveKey(r.spy.MutexKey, info, workCtx)
	if err != nil {
		r.log.Warn(ctx, err, "mutexkey render failed, event skipped")
		r.completions <- command.Result{Skipped: true}
		return
	}

	debounce := time.Duration(r.spy.DebounceMs) * time.Millisecond
	throttle := time.Duration(r.spy.ThrottleMs) * time.Millisecond

	result, decision, err := r.sched.Run(limitKey, mutexKey, debounce, throttle, func() (any, error) {
		return executor.Run(ctx, info)
	})
	if err != nil {
		r.log.Warn(ctx, err, "invocation failed", "cmd", info.Cmd)
		r.completions <- command.Result{Skipped: true}
		return
	}
	if decision != ratelimit.DecisionProceed {
		r.completions <- command.Result{Skipped: true}
		return
	}

	cmdResult, _ := result.(command.Result)
	r.completions <- cmdResult
}

// resolveKey renders tmplStr against ctx, falling back to info's own
// canonical string form when tmplStr is empty.
func resolveKey(tmplStr string, info command.Info, ctx tmpl.Context) (string, error) {
	if tmplStr == "" {
		return info.String(), nil
	}
	return tmpl.Render(tmplStr, ctx)
}

// drain logs every CommandResult until completions is closed.
func (r *Runtime) drain() {
	defer close(r.drainDone)
	for res := range r.completions {
		if res.Skipped {
			r.log.Debug(context.Background(), "invocation skipped")
			continue
		}
		r.log.Info(context.Background(), "invocation complete", "status", res.Status, "stdout", res.StdoutPath, "stderr", res.StderrPath)
	}
}

// Stop signals the dispatcher to stop reading new events, waits for
// every already-submitted worker task to finish, then closes the
// completion channel and waits for the drain to finish. Stop is
// idempotent and blocks until fully joined.
func (r *Runtime) Stop() {
	r.stopOnce.Do(func() {
		if r.src != nil {
			r.src.Close()
		}
		close(r.stopDispatch)
		<-r.dispatcherDone
		r.tasksWg.Wait()
		close(r.completions)
		<-r.drainDone
	})
}
