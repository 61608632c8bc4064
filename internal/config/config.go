// Package config loads and validates spyrun's TOML configuration: the
// set of watch specifications ("spies"), their pattern-to-command
// rules, rate-limiting policy, and the supervisor-level settings
// (sentinel files, logging, the optional init command).
//
// Loading uses github.com/spf13/viper: Unmarshal into a plain struct,
// then backfill zero-valued fields with defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EventKind is one of the tokens a filesystem event is mapped to.
type EventKind string

const (
	EventCreate EventKind = "Create"
	EventModify EventKind = "Modify"
	EventRemove EventKind = "Remove"
	EventAccess EventKind = "Access"
	EventAny    EventKind = "Any"
	EventOther  EventKind = "Other"
)

// Pattern is a single rule within a Spy.
type Pattern struct {
	Pattern string   `mapstructure:"pattern"`
	Cmd     string   `mapstructure:"cmd"`
	Arg     []string `mapstructure:"arg"`
}

// Poll selects polling-mode watching over the OS-native watcher.
type Poll struct {
	IntervalMs int `mapstructure:"interval"`
}

// Walk is the optional startup sweep of pre-existing files.
type Walk struct {
	MinDepth       int    `mapstructure:"min_depth"`
	MaxDepth       int    `mapstructure:"max_depth"`
	FollowSymlinks bool   `mapstructure:"follow_symlinks"`
	Pattern        string `mapstructure:"pattern"`
	// DelayMs is [min] or [min, max], milliseconds, applied before the walk.
	DelayMs []int `mapstructure:"delay"`
}

// Spy is one watch specification.
type Spy struct {
	Name      string     `mapstructure:"name"`
	Events    []string   `mapstructure:"events"`
	Input     string     `mapstructure:"input"`
	Output    string     `mapstructure:"output"`
	Recursive bool       `mapstructure:"recursive"`
	ThrottleMs int       `mapstructure:"throttle"`
	DebounceMs int       `mapstructure:"debounce"`
	LimitKey  string     `mapstructure:"limitkey"`
	MutexKey  string     `mapstructure:"mutexkey"`
	// DelayMs is [min] or [min, max], milliseconds, applied before the watcher starts.
	DelayMs  []int     `mapstructure:"delay"`
	Patterns []Pattern `mapstructure:"patterns"`
	Poll     *Poll     `mapstructure:"poll"`
	Walk     *Walk     `mapstructure:"walk"`
}

// Init is the optional global startup command.
type Init struct {
	Cmd       string   `mapstructure:"cmd"`
	Arg       []string `mapstructure:"arg"`
	ErrorStop bool     `mapstructure:"error_stop"`
}

// Cfg holds supervisor-level settings.
type Cfg struct {
	StopFlg      string `mapstructure:"stop_flg"`
	StopForceFlg string `mapstructure:"stop_force_flg"`
	MaxThreads   int    `mapstructure:"max_threads"`
}

// Log configures the structured process log.
type Log struct {
	Path   string `mapstructure:"path"`
	Level  string `mapstructure:"level"`
	Switch bool   `mapstructure:"switch"`
}

// Config is the top-level parsed spyrun.toml.
type Config struct {
	Log  Log            `mapstructure:"log"`
	Cfg  Cfg             `mapstructure:"cfg"`
	Init Init            `mapstructure:"init"`
	Spys []Spy           `mapstructure:"spys"`
	Vars map[string]string `mapstructure:"vars"`

	// path is the file this Config was loaded from, kept for the
	// backup-on-load-failure dance and for single-instance hashing.
	path string
}

// Path returns the file this configuration was loaded from.
func (c *Config) Path() string { return c.path }

// Load reads and parses the TOML file at path. On failure it retries
// exactly once against the sibling "{stem}_backup{ext}" file; on
// success loading the primary, it writes a copy to that backup path so
// the fallback stays fresh.
func Load(path string) (*Config, error) {
	cfg, primaryErr := load(path)
	if primaryErr == nil {
		if err := writeBackup(path); err != nil {
			// Backup write failure must not block a successful primary load.
			_ = err
		}
		return cfg, nil
	}

	backupPath := backupPathFor(path)
	cfg, backupErr := load(backupPath)
	if backupErr != nil {
		return nil, fmt.Errorf("load %s: %w (backup %s also failed: %v)", path, primaryErr, backupPath, backupErr)
	}
	cfg.path = path
	return cfg, nil
}

func load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	cfg.path = path

	applySpyDefaults(&cfg)
	applyFieldDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func backupPathFor(path string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	return stem + "_backup" + ext
}

func writeBackup(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return os.WriteFile(backupPathFor(path), data, 0o644)
}

// applySpyDefaults backfills any Spy whose fields are zero-valued from
// the reserved spy named "default".
func applySpyDefaults(cfg *Config) {
	var def *Spy
	for i := range cfg.Spys {
		if cfg.Spys[i].Name == "default" {
			def = &cfg.Spys[i]
			break
		}
	}
	if def == nil {
		return
	}

	for i := range cfg.Spys {
		s := &cfg.Spys[i]
		if s.Name == "default" {
			continue
		}
		if len(s.Events) == 0 {
			s.Events = def.Events
		}
		if len(s.Patterns) == 0 {
			s.Patterns = def.Patterns
		}
		if s.Input == "" {
			s.Input = def.Input
		}
		if s.Output == "" {
			s.Output = def.Output
		}
		if s.ThrottleMs == 0 {
			s.ThrottleMs = def.ThrottleMs
		}
		if s.DebounceMs == 0 {
			s.DebounceMs = def.DebounceMs
		}
		if s.LimitKey == "" {
			s.LimitKey = def.LimitKey
		}
		if s.MutexKey == "" {
			s.MutexKey = def.MutexKey
		}
		if len(s.DelayMs) == 0 {
			s.DelayMs = def.DelayMs
		}
		if !s.Recursive {
			s.Recursive = def.Recursive
		}
		if s.Poll == nil {
			s.Poll = def.Poll
		}
		if s.Walk == nil {
			s.Walk = def.Walk
		}
	}

	// Drop the reserved entry; it is never itself a runtime spy.
	filtered := cfg.Spys[:0]
	for _, s := range cfg.Spys {
		if s.Name != "default" {
			filtered = append(filtered, s)
		}
	}
	cfg.Spys = filtered
}

// applyFieldDefaults fills in defaults for fields still empty after
// spy-default backfill, so a spy's events list is never empty.
// Patterns get no default here; validate rejects a spy without any.
func applyFieldDefaults(cfg *Config) {
	if cfg.Cfg.StopForceFlg == "" && cfg.Cfg.StopFlg != "" {
		ext := filepath.Ext(cfg.Cfg.StopFlg)
		stem := strings.TrimSuffix(cfg.Cfg.StopFlg, ext)
		cfg.Cfg.StopForceFlg = stem + "_force" + ext
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	for i := range cfg.Spys {
		s := &cfg.Spys[i]
		if len(s.Events) == 0 {
			s.Events = []string{string(EventAny)}
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Cfg.StopFlg == "" {
		return fmt.Errorf("cfg.stop_flg is required")
	}
	for _, s := range cfg.Spys {
		if s.Name == "" {
			return fmt.Errorf("every spy must have a name")
		}
		if len(s.Patterns) == 0 {
			return fmt.Errorf("spy %q: patterns must be non-empty", s.Name)
		}
	}
	return nil
}
