package ratelimit

import (
	"time"
)

// Decision records, for tests and logging, which gate (if any) caused
// a Run call to skip execution.
type Decision string

const (
	// DecisionProceed means all three gates passed and exec ran.
	DecisionProceed Decision = "proceed"
	// DecisionDebounced means a later arrival for the same limit key
	// superseded this one before its debounce window elapsed.
	DecisionDebounced Decision = "debounced"
	// DecisionThrottled means an earlier arrival already occupied the
	// throttle window for this limit key.
	DecisionThrottled Decision = "throttled"
	// DecisionMutexBusy means another invocation already held the
	// mutex key.
	DecisionMutexBusy Decision = "mutex_busy"
)

// Scheduler applies up to three gates, in order debounce, throttle,
// mutex, around a caller-supplied exec step. Throttle is checked only
// when debounce is zero: with both non-zero, debounce alone applies. Only one
// Scheduler need exist per process: its Cache is the sole shared
// state, shared across every watched path.
type Scheduler struct {
	cache *Cache
}

// NewScheduler constructs a Scheduler backed by cache. Pass the same
// *Cache to every Scheduler in a process so limit/mutex keys are
// compared across all spies.
func NewScheduler(cache *Cache) *Scheduler {
	return &Scheduler{cache: cache}
}

// Run gates a single invocation attempt identified by limitKey
// (debounce+throttle) and mutexKey (mutual exclusion), then, if every
// gate passes, calls exec and returns its result. debounce/throttle of
// zero disable that gate; an empty mutexKey disables the mutex gate.
// debounce=0 and throttle=0 together means exec runs unconditionally,
// since neither gate is active.
//
// exec is called without any lock held: long-running work (sleeps,
// process execution) must never occur while either of Cache's locks
// is held, so a single invocation can never stall unrelated keys.
func (s *Scheduler) Run(limitKey, mutexKey string, debounce, throttle time.Duration, exec func() (any, error)) (any, Decision, error) {
	if debounce > 0 {
		stamped := s.cache.Stamp(limitKey)
		time.Sleep(debounce)
		last, ok := s.cache.LastSeen(limitKey)
		if ok && last.After(stamped) {
			return nil, DecisionDebounced, nil
		}
	} else if throttle > 0 {
		if !s.cache.TryThrottle(limitKey, throttle) {
			return nil, DecisionThrottled, nil
		}
	}

	if mutexKey != "" {
		if !s.cache.TryAcquireMutex(mutexKey) {
			return nil, DecisionMutexBusy, nil
		}
		defer s.cache.ReleaseMutex(mutexKey)
	}

	result, err := exec()
	return result, DecisionProceed, err
}
