// Package matcher selects the first Pattern within a Spy whose regex
// matches an event's path, among spies whose event-kind set contains
// the event's mapped kind: the first matching rule wins, and it
// carries a payload (the command to run).
package matcher

import (
	"fmt"
	"regexp"

	"github.com/yukimemi/spyrun/internal/config"
)

// Event is the (kind, paths) record the filesystem-event source
// produces. The effective path is the last element of Paths.
type Event struct {
	Kind  string
	Paths []string
}

// Path returns the event's effective path, the last entry of Paths, or
// "" if Paths is empty.
func (e Event) Path() string {
	if len(e.Paths) == 0 {
		return ""
	}
	return e.Paths[len(e.Paths)-1]
}

// MappedKind maps a raw watcher event kind to one of the five
// recognized kind tokens.
func MappedKind(kind string) string {
	switch kind {
	case string(config.EventCreate), string(config.EventModify), string(config.EventRemove), string(config.EventAccess):
		return kind
	default:
		return string(config.EventOther)
	}
}

// compiled pairs a Spy's declared Pattern with its compiled regex, so
// Match doesn't recompile on every event.
type compiled struct {
	pattern config.Pattern
	re      *regexp.Regexp
}

// Matcher holds a spy's compiled patterns and event-kind set.
type Matcher struct {
	events   map[string]bool
	patterns []compiled
}

// New compiles spy's patterns. A bad regex is a configuration error
// that rejects this spy when its runtime is built.
func New(spy config.Spy) (*Matcher, error) {
	events := make(map[string]bool, len(spy.Events))
	for _, e := range spy.Events {
		if e == string(config.EventAny) {
			events[string(config.EventCreate)] = true
			events[string(config.EventModify)] = true
			events[string(config.EventRemove)] = true
			events[string(config.EventAccess)] = true
			events[string(config.EventOther)] = true
			continue
		}
		events[e] = true
	}

	patterns := make([]compiled, 0, len(spy.Patterns))
	for _, p := range spy.Patterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("spy %q: compile pattern %q: %w", spy.Name, p.Pattern, err)
		}
		patterns = append(patterns, compiled{pattern: p, re: re})
	}

	return &Matcher{events: events, patterns: patterns}, nil
}

// Match selects the first Pattern matching ev, or ok=false if none do
// (including when ev's kind isn't in the spy's event set, or ev.Path()
// is empty). Match is a pure function of its inputs.
func (m *Matcher) Match(ev Event) (config.Pattern, bool) {
	path := ev.Path()
	if path == "" {
		return config.Pattern{}, false
	}

	mapped := MappedKind(ev.Kind)
	if !m.events[mapped] {
		return config.Pattern{}, false
	}

	for _, c := range m.patterns {
		if c.re.MatchString(path) {
			return c.pattern, true
		}
	}
	return config.Pattern{}, false
}
