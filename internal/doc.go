// Package internal contains spyrun's core implementation packages.
//
// # Package Organization
//
//   - config: TOML configuration loading, defaulting, and validation
//   - logging: structured logging with an optional rotating file sink
//   - errors: the classified error type used at every process boundary
//   - tmpl: template rendering and the sprig/custom function set
//   - cryptox: the enc/dec template functions' AES-GCM implementation
//   - command: rule-to-invocation materialization
//   - matcher: event-kind and regex rule matching
//   - ratelimit: the debounce/throttle/mutex scheduler and its caches
//   - executor: external process spawning with captured stdout/stderr
//   - walk: the startup directory sweep
//   - workerpool: the shared, bounded goroutine pool
//   - spy: the per-spy runtime (watcher + dispatcher + drain)
//   - singleinstance: the config-hash-keyed advisory lock
//   - supervisor: startup sequencing and shutdown coordination
//   - version: build-info accessors
//
// # Data Flow
//
// A filesystem event flows watcher -> per-spy channel -> matcher ->
// (on match) worker task -> command -> ratelimit -> executor ->
// completion drain.
package internal
