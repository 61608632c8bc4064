// Package tmpl implements spyrun's Template Engine: rendering of
// command, argument, input, output, and rate-limit-key strings against
// a Context populated from process metadata, the triggering event, and
// user-declared config vars.
//
// Rendering is stdlib text/template with Masterminds/sprig/v3's
// function set merged in, plus custom env/setenv/enc/dec/ps/psf
// functions.
package tmpl

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/yukimemi/spyrun/internal/cryptox"
)

// Context is the string-to-value mapping templates render against.
type Context map[string]any

// Clone returns a shallow copy, so callers can augment a context
// without mutating the one owned by a caller higher up the stack.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

func funcMap() template.FuncMap {
	fm := sprig.TxtFuncMap()

	fm["env"] = func(arg string) string {
		return os.Getenv(arg)
	}
	fm["setenv"] = func(key, value string) (string, error) {
		if err := os.Setenv(key, value); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s=%s", key, value), nil
	}
	fm["enc"] = cryptox.Enc
	fm["dec"] = cryptox.Dec
	fm["ps"] = runPowerShellSnippet
	fm["psf"] = runPowerShellFile

	return fm
}

// Render renders tmplStr against ctx. A parse or execution error is
// returned verbatim for the caller to classify as errors.KindTemplate.
func Render(tmplStr string, ctx Context) (string, error) {
	t, err := template.New("spyrun").Funcs(funcMap()).Option("missingkey=zero").Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, map[string]any(ctx)); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

// RenderAll renders each (key, template) pair in order, adding the
// rendered value under key to a copy of ctx before rendering the next
// template, so later templates can reference earlier rendered values.
// The copy is returned; ctx itself is not mutated.
func RenderAll(ctx Context, pairs ...[2]string) (Context, error) {
	out := ctx.Clone()
	for _, pair := range pairs {
		key, tmplStr := pair[0], pair[1]
		rendered, err := Render(tmplStr, out)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", key, err)
		}
		out[key] = rendered
	}
	return out, nil
}

func runPowerShellSnippet(snippet string) (string, error) {
	return runPowerShell([]string{"-NoProfile", "-NonInteractive", "-Command", snippet})
}

func runPowerShellFile(path string) (string, error) {
	return runPowerShell([]string{"-NoProfile", "-NonInteractive", "-File", path})
}

func runPowerShell(args []string) (string, error) {
	bin := "pwsh"
	if runtime.GOOS == "windows" {
		bin = "powershell"
	}
	cmd := exec.Command(bin, args...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("powershell invocation failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
