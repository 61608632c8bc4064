// Package walk implements the optional startup sweep: for a spy with a
// Walk config, iterate the filesystem under input before the watcher
// starts, and emit a synthetic matcher.Event for each pre-existing file
// that satisfies the depth bounds, optional regex, and follow-symlinks
// policy.
package walk

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yukimemi/spyrun/internal/config"
	"github.com/yukimemi/spyrun/internal/matcher"
)

// depth returns the number of path separators between root and path,
// 0 when path == root.
func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(filepath.ToSlash(rel), "/") + 1
}

// Sweep walks root honoring w's bounds and returns one synthetic event
// per matching non-directory entry, using kind as every event's Kind.
// Symlinks are never descended into: without w.FollowSymlinks they are
// skipped; with it, each symlink is emitted as an entry of its own,
// a symlink to a directory included.
func Sweep(root string, w config.Walk, kind string) ([]matcher.Event, error) {
	var re *regexp.Regexp
	if w.Pattern != "" {
		compiled, err := regexp.Compile(w.Pattern)
		if err != nil {
			return nil, err
		}
		re = compiled
	}

	var events []matcher.Event
	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		d := depth(root, path)
		if w.MinDepth > 0 && d < w.MinDepth {
			return nil
		}
		if w.MaxDepth > 0 && d > w.MaxDepth {
			return nil
		}
		if re != nil && !re.MatchString(path) {
			return nil
		}

		events = append(events, matcher.Event{Kind: kind, Paths: []string{path}})
		return nil
	}

	var err error
	if w.FollowSymlinks {
		err = filepath.Walk(root, walkFn)
	} else {
		err = filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if info.Mode()&os.ModeSymlink != 0 {
				return nil
			}
			return walkFn(path, info, walkErr)
		})
	}
	if err != nil {
		return nil, err
	}
	return events, nil
}

// DefaultKind returns events[0], or "Modify" if events is empty.
func DefaultKind(events []string) string {
	if len(events) == 0 {
		return "Modify"
	}
	return events[0]
}
