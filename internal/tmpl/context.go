package tmpl

import (
	"path"
	"path/filepath"
	"strings"
)

// ToSlash normalizes an absolute path to POSIX-style forward slashes,
// the form templates observe on every platform.
func ToSlash(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		abs = p
	}
	return filepath.ToSlash(abs)
}

// WithEventPath augments ctx with the event-path decomposition under
// the "event_" prefix. It returns a new Context; ctx itself is not
// mutated.
func WithEventPath(ctx Context, eventPath string) Context {
	out := ctx.Clone()

	slashPath := ToSlash(eventPath)
	dir := path.Dir(slashPath)
	name := path.Base(slashPath)
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	dirname := path.Base(dir)

	out["event_path"] = slashPath
	out["event_dir"] = dir
	out["event_dirname"] = dirname
	out["event_name"] = name
	out["event_stem"] = stem
	out["event_ext"] = ext

	return out
}
