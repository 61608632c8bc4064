// Package supervisor implements the top-level start sequence and
// shutdown coordination that owns every spy runtime: load config,
// acquire the single-instance lock, run the optional init command,
// start one runtime per configured spy, then block until a sentinel
// file or signal requests shutdown.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yukimemi/spyrun/internal/command"
	"github.com/yukimemi/spyrun/internal/config"
	spyrunerrors "github.com/yukimemi/spyrun/internal/errors"
	"github.com/yukimemi/spyrun/internal/executor"
	"github.com/yukimemi/spyrun/internal/logging"
	"github.com/yukimemi/spyrun/internal/ratelimit"
	"github.com/yukimemi/spyrun/internal/singleinstance"
	"github.com/yukimemi/spyrun/internal/spy"
	"github.com/yukimemi/spyrun/internal/tmpl"
	"github.com/yukimemi/spyrun/internal/version"
	"github.com/yukimemi/spyrun/internal/workerpool"
)

// State is the supervisor's lifecycle state.
type State int

const (
	StateInitializing State = iota
	StateRunning
	StateStopping
	StateJoined
	StateForceExit
)

// Supervisor owns every running spy and the two sentinel watchers that
// trigger shutdown.
type Supervisor struct {
	cfg  *config.Config
	log  logging.Logger
	pool *workerpool.Pool
	lock *singleinstance.Guard

	spies []*spy.Runtime

	mu    sync.Mutex
	state State

	stopOnce sync.Once
}

// Run loads configPath, runs the full start sequence, blocks until a
// sentinel file (or ctx) signals shutdown, then shuts down gracefully.
// It returns the process exit code: 0 on a clean graceful shutdown, 1
// on any startup or forced-shutdown failure.
func Run(ctx context.Context, configPath string) int {
	sup, err := start(ctx, configPath)
	if err != nil {
		writeErrorLog(err)
		return 1
	}
	return sup.waitAndShutdown(ctx)
}

func start(ctx context.Context, configPath string) (*Supervisor, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, spyrunerrors.Config("supervisor.start", "load configuration", err)
	}

	workers := cfg.Cfg.MaxThreads
	if workers <= 0 {
		workers = 8
	}
	pool := workerpool.New(workers)
	pool.Start(ctx, workers)

	configuredLevel := logging.ParseLevel(cfg.Log.Level)
	fileLevel := logging.ResolveLevel("SPYRUN_LOG_FILE", configuredLevel)
	stdoutLevel := logging.ResolveLevel("SPYRUN_LOG_STDOUT", configuredLevel)

	fileLog, closer, err := logging.NewFileLogger(logging.FileConfig{
		Path:   cfg.Log.Path,
		Level:  fileLevel,
		Switch: cfg.Log.Switch,
	})
	if err != nil {
		pool.Stop()
		return nil, spyrunerrors.Config("supervisor.start", "initialize logging", err)
	}
	_ = closer // closed implicitly at process exit; size-based rotation handled by lumberjack

	stdoutLog := logging.New(logging.Config{Level: stdoutLevel, Output: os.Stdout})
	log := logging.NewMultiLogger(fileLog, stdoutLog)
	log.Info(ctx, "starting", "build", version.String(), "config", configPath)

	guard, err := singleinstance.Acquire(filepath.Dir(configPath), configPath)
	if err != nil {
		pool.Stop()
		return nil, err
	}

	sup := &Supervisor{cfg: cfg, log: log, pool: pool, lock: guard, state: StateInitializing}

	baseCtx, err := buildBaseContext(cfg)
	if err != nil {
		guard.Release()
		pool.Stop()
		return nil, spyrunerrors.Config("supervisor.start", "build base context", err)
	}

	if cfg.Init.Cmd != "" {
		if err := sup.runInit(ctx, baseCtx); err != nil && cfg.Init.ErrorStop {
			guard.Release()
			pool.Stop()
			return nil, err
		}
	}

	sched := ratelimit.NewScheduler(ratelimit.NewCache())
	for _, s := range cfg.Spys {
		rt, err := spy.New(s, pool, sched, log, baseCtx)
		if err != nil {
			log.Warn(ctx, err, "spy omitted due to setup failure", "spy", s.Name)
			continue
		}
		if err := rt.Start(ctx); err != nil {
			log.Warn(ctx, err, "spy omitted due to watcher failure", "spy", s.Name)
			continue
		}
		sup.spies = append(sup.spies, rt)
	}

	sup.setState(StateRunning)
	return sup, nil
}

func (s *Supervisor) runInit(ctx context.Context, baseCtx tmpl.Context) error {
	output := os.TempDir()
	if s.cfg.Log.Path != "" {
		output = filepath.Dir(s.cfg.Log.Path)
	}
	info, err := command.Materialize("init", "", "", s.cfg.Init.Cmd, s.cfg.Init.Arg, "", output, baseCtx)
	if err != nil {
		return spyrunerrors.Template("supervisor.runInit", "render init command", err)
	}
	result, err := executor.Run(ctx, info)
	if err != nil {
		return spyrunerrors.IO("supervisor.runInit", "run init command", err)
	}
	if result.Status != 0 {
		return spyrunerrors.IO("supervisor.runInit", fmt.Sprintf("init command exited %d", result.Status), nil)
	}
	return nil
}

// buildBaseContext populates the template rendering context: process
// metadata, current time, CWD, the sentinel paths, and the config's
// user-declared vars (each rendered against the context built so far).
func buildBaseContext(cfg *config.Config) (tmpl.Context, error) {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	ctx := tmpl.Context{
		"exe_path": tmpl.ToSlash(exe),
		"exe_dir":  tmpl.ToSlash(filepath.Dir(exe)),
		"exe_name": filepath.Base(exe),
		"cwd":      tmpl.ToSlash(cwd),
		"now":      time.Now().Format(time.RFC3339),
		"args":     os.Args,
		"stop_flg":       cfg.Cfg.StopFlg,
		"stop_force_flg": cfg.Cfg.StopForceFlg,
	}

	for k, v := range cfg.Vars {
		rendered, err := tmpl.Render(v, ctx)
		if err != nil {
			return nil, fmt.Errorf("render var %q: %w", k, err)
		}
		ctx[k] = rendered
	}

	return ctx, nil
}

// writeErrorLog writes a terse message to error.log beside the running
// executable: the user-visible trace of a fatal config failure.
func writeErrorLog(cause error) {
	exe, err := os.Executable()
	dir := "."
	if err == nil {
		dir = filepath.Dir(exe)
	}
	path := filepath.Join(dir, "error.log")
	msg := fmt.Sprintf("[%s] %v\n", time.Now().Format(time.RFC3339), cause)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(msg)
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State returns the supervisor's current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// sentinelEvent is matched against the configured sentinel path by
// the two watchers started in waitAndShutdown.
type sentinelEvent int

const (
	sentinelStop sentinelEvent = iota
	sentinelForce
)

// waitAndShutdown watches the two sentinel files and ctx, then drives
// the graceful-vs-forced shutdown protocol. It returns the process
// exit code.
func (s *Supervisor) waitAndShutdown(ctx context.Context) int {
	sentinels := make(chan sentinelEvent, 4)

	stopWatch, err := watchSentinel(s.cfg.Cfg.StopFlg, sentinelStop, sentinels)
	if err != nil {
		s.log.Warn(ctx, err, "stop sentinel watcher failed to start")
	} else {
		defer stopWatch.Close()
	}

	forceWatch, err := watchSentinel(s.cfg.Cfg.StopForceFlg, sentinelForce, sentinels)
	if err != nil {
		s.log.Warn(ctx, err, "stop_force sentinel watcher failed to start")
	} else {
		defer forceWatch.Close()
	}

	graceful := false
	for {
		select {
		case <-ctx.Done():
			s.shutdownGraceful(ctx)
			return 0
		case ev := <-sentinels:
			switch ev {
			case sentinelForce:
				s.log.Info(ctx, "stop_force sentinel observed, exiting immediately")
				os.Exit(1)
			case sentinelStop:
				if graceful {
					s.log.Info(ctx, "repeated stop sentinel after graceful shutdown began, forcing exit")
					os.Exit(1)
				}
				graceful = true
				s.shutdownGraceful(ctx)
				return 0
			}
		}
	}
}

// shutdownGraceful signals every spy dispatcher to stop and joins them
// in parallel, then releases the single-instance lock and worker pool.
func (s *Supervisor) shutdownGraceful(ctx context.Context) {
	s.stopOnce.Do(func() {
		s.setState(StateStopping)

		var wg sync.WaitGroup
		for _, rt := range s.spies {
			wg.Add(1)
			go func(r *spy.Runtime) {
				defer wg.Done()
				r.Stop()
			}(rt)
		}
		wg.Wait()

		s.pool.Stop()
		if s.lock != nil {
			_ = s.lock.Release()
		}

		s.setState(StateJoined)
	})
}

// sentinelWatcher watches a sentinel file's parent directory
// non-recursively and forwards kind onto ch the instant a Create or
// Modify event names path exactly. It uses the same fsnotify.Watcher +
// loop-goroutine shape as internal/spy's fsnotifySource, trimmed
// to the one-path, no-rule-matching case a sentinel needs.
type sentinelWatcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

func (w *sentinelWatcher) Close() {
	w.watcher.Close()
	<-w.done
}

// watchSentinel starts watching path's parent directory and sends kind
// to ch on every Create/Modify event whose name matches path exactly.
func watchSentinel(path string, kind sentinelEvent, ch chan<- sentinelEvent) (*sentinelWatcher, error) {
	if path == "" {
		return nil, spyrunerrors.Watcher("supervisor.watchSentinel", "sentinel path is empty", nil)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, spyrunerrors.Watcher("supervisor.watchSentinel", "create fsnotify watcher", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, spyrunerrors.Watcher("supervisor.watchSentinel", "watch sentinel directory", err)
	}

	sw := &sentinelWatcher{watcher: w, done: make(chan struct{})}
	go func() {
		defer close(sw.done)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				evAbs, err := filepath.Abs(ev.Name)
				if err != nil || evAbs != abs {
					continue
				}
				select {
				case ch <- kind:
				default:
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return sw, nil
}
